package tusclient

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Upload describes one logical upload: a stable fingerprint, the total size
// in bytes, optional metadata and the byte source to read from. The
// fingerprint is the session store key and must stay stable across process
// restarts for resuming to work; the client never computes it.
type Upload struct {
	fingerprint string
	size        int64
	metadata    map[string]string
	source      io.ReadSeeker
}

// NewUpload creates an upload for an arbitrary byte source. The caller is
// responsible for supplying a fingerprint that identifies this logical
// upload across restarts.
func NewUpload(source io.ReadSeeker, size int64, fingerprint string) *Upload {
	return &Upload{
		fingerprint: fingerprint,
		size:        size,
		metadata:    map[string]string{},
		source:      source,
	}
}

// NewUploadFromFile creates an upload for a file. The fingerprint is derived
// from the file's absolute path and size, and the base name is stored as
// "filename" metadata.
func NewUploadFromFile(file *os.File) (*Upload, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	absPath, err := filepath.Abs(file.Name())
	if err != nil {
		return nil, fmt.Errorf("resolve file path: %w", err)
	}

	upload := NewUpload(file, info.Size(), fmt.Sprintf("%s-%d", absPath, info.Size()))
	upload.metadata["filename"] = filepath.Base(absPath)
	return upload, nil
}

// Fingerprint returns the upload's stable identity.
func (u *Upload) Fingerprint() string {
	return u.fingerprint
}

// Size returns the total upload size in bytes.
func (u *Upload) Size() int64 {
	return u.size
}

// Metadata returns the metadata map. Mutations are visible to the upload.
func (u *Upload) Metadata() map[string]string {
	return u.metadata
}

// SetMetadata replaces the upload's metadata.
func (u *Upload) SetMetadata(metadata map[string]string) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	u.metadata = metadata
}

// EncodedMetadata renders the metadata in Upload-Metadata wire form: comma
// separated "key base64(value)" pairs, keys in lexical order so the header is
// deterministic. Returns the empty string when there is no metadata.
func (u *Upload) EncodedMetadata() string {
	if len(u.metadata) == 0 {
		return ""
	}

	keys := make([]string, 0, len(u.metadata))
	for key := range u.metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		encoded := base64.StdEncoding.EncodeToString([]byte(u.metadata[key]))
		pairs = append(pairs, fmt.Sprintf("%s %s", key, encoded))
	}
	return strings.Join(pairs, ",")
}
