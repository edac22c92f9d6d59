package tusclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/docker/go-units"
)

// DefaultChunkSize is the number of bytes transferred per PATCH request
// unless changed via SetChunkSize.
const DefaultChunkSize = 2 * 1024 * 1024

// Uploader transfers the bytes of one upload to its upload URL in chunks,
// starting at the offset the server reported. It performs no retries of its
// own: every failure surfaces to the caller, who can resume via the client
// after fixing the cause.
type Uploader struct {
	client *Client
	upload *Upload
	url    *url.URL
	offset int64

	chunkSize int64
	seeked    bool
}

func newUploader(client *Client, upload *Upload, uploadURL *url.URL, offset int64) *Uploader {
	return &Uploader{
		client:    client,
		upload:    upload,
		url:       uploadURL,
		offset:    offset,
		chunkSize: DefaultChunkSize,
	}
}

// URL returns the resolved upload URL.
func (u *Uploader) URL() *url.URL {
	return u.url
}

// Offset returns the number of bytes the server has received so far.
func (u *Uploader) Offset() int64 {
	return u.offset
}

// ChunkSize returns the current chunk size in bytes.
func (u *Uploader) ChunkSize() int64 {
	return u.chunkSize
}

// SetChunkSize changes the number of bytes sent per PATCH request.
func (u *Uploader) SetChunkSize(size int64) {
	if size > 0 {
		u.chunkSize = size
	}
}

// UploadChunk reads the next chunk from the byte source and sends it in a
// single PATCH request. It returns the number of bytes transferred, or io.EOF
// once the source is exhausted.
func (u *Uploader) UploadChunk(ctx context.Context) (int64, error) {
	if !u.seeked {
		if _, err := u.upload.source.Seek(u.offset, io.SeekStart); err != nil {
			return 0, fmt.Errorf("seek byte source to offset %d: %w", u.offset, err)
		}
		u.seeked = true
	}

	chunk := make([]byte, u.chunkSize)
	n, err := io.ReadFull(u.upload.source, chunk)
	if errors.Is(err, io.EOF) {
		return 0, io.EOF
	}
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("read chunk: %w", err)
	}

	header := u.client.PrepareRequestHeader(u.upload.Fingerprint())
	header.Set("Upload-Offset", strconv.FormatInt(u.offset, 10))
	header.Set("Content-Type", "application/offset+octet-stream")

	resp, err := u.client.transport.Do(ctx, http.MethodPatch, u.url, header, chunk[:n])
	if err != nil {
		return 0, fmt.Errorf("upload chunk: %w", err)
	}

	u.client.CaptureCookies(u.upload.Fingerprint(), resp)

	if !is2xx(resp.StatusCode) {
		return 0, protocolErrorf(resp, "unexpected status code (%d) while uploading chunk", resp.StatusCode)
	}

	offsetValue := resp.Header.Get("Upload-Offset")
	if offsetValue == "" {
		return 0, protocolErrorf(resp, "missing upload offset in response for uploading chunk")
	}
	newOffset, err := strconv.ParseInt(offsetValue, 10, 64)
	if err != nil {
		return 0, protocolErrorf(resp, "invalid upload offset (%q) in response for uploading chunk", offsetValue)
	}
	expected := u.offset + int64(n)
	if newOffset != expected {
		return 0, protocolErrorf(resp, "server reported offset %d after uploading chunk, expected %d", newOffset, expected)
	}
	u.offset = newOffset

	u.client.logger.Debugf("Uploaded %s of %s",
		units.HumanSize(float64(u.offset)), units.HumanSize(float64(u.upload.Size())))

	return int64(n), nil
}

// Upload transfers all remaining bytes chunk by chunk and finishes the
// upload.
func (u *Uploader) Upload(ctx context.Context) error {
	for u.offset < u.upload.Size() {
		if _, err := u.UploadChunk(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("byte source exhausted at offset %d, upload size is %d", u.offset, u.upload.Size())
			}
			return err
		}
	}

	u.Finish()
	return nil
}

// Finish marks the transfer as completed, removing the session entry if the
// client is configured to do so. Call it after the final chunk when driving
// UploadChunk manually.
func (u *Uploader) Finish() {
	u.client.UploadFinished(u.upload)
}
