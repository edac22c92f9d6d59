// Package tusclient implements the client side of the tus resumable upload
// protocol: creating uploads, probing their current offset and transferring
// bytes in resumable chunks. Session state is kept in a fingerprint-indexed
// store so interrupted uploads can be picked up again.
package tusclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/hashicorp/go-retryablehttp"
)

// Version of the tus protocol spoken by this client. The remote server needs
// to support this version, too.
const Version = "1.0.0"

// Config holds the client configuration. The zero value of every optional
// field is usable; DefaultConfig fills in the recommended defaults.
type Config struct {
	// CreationEndpoint is the absolute URL new uploads are created at via
	// POST. Required for CreateUpload and ResumeOrCreateUpload, not used
	// when only resuming existing uploads.
	CreationEndpoint string

	// Store enables resuming. When nil, resume operations fail with
	// ErrResumingNotEnabled and no session state is kept.
	Store SessionStore

	// CookieSupport enables capturing Set-Cookie response headers into the
	// session entry and replaying them on subsequent requests. Only
	// effective when a Store is configured.
	CookieSupport bool

	// RemoveFingerprintOnSuccess removes the session entry once the
	// transfer finished. Only effective when a Store is configured.
	RemoveFingerprintOnSuccess bool

	// Headers are added to every request. They may collide with protocol
	// headers (Tus-*), which can cause unexpected behavior and is not
	// prevented.
	Headers map[string]string

	// ConnectTimeout bounds the connection establishment of the default
	// transport. Response reading is not bounded by it.
	ConnectTimeout time.Duration

	// FollowRedirects makes the default transport follow redirects. Off by
	// default: following a redirected creation POST is only safe when the
	// method is preserved, so redirect responses surface as protocol errors
	// instead.
	FollowRedirects bool

	// HTTPClient overrides the HTTP client used by the default transport.
	HTTPClient *retryablehttp.Client

	// Transport overrides the transport entirely. Mainly useful in tests.
	Transport Transport

	// Logger receives debug traces of the HTTP traffic.
	Logger log.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
	}
}

// Client creates and resumes uploads against a tus server. All methods are
// synchronous; the client keeps no state of its own beyond the injected
// session store, so one client can serve many uploads.
type Client struct {
	creationURL     *url.URL
	store           SessionStore
	cookieSupport   bool
	removeOnSuccess bool
	headers         map[string]string
	transport       Transport
	logger          log.Logger
}

// NewClient creates a client from the given configuration.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewLogger()
	}

	var creationURL *url.URL
	if cfg.CreationEndpoint != "" {
		parsed, err := url.Parse(cfg.CreationEndpoint)
		if err != nil {
			return nil, fmt.Errorf("parse upload creation URL: %w", err)
		}
		if !parsed.IsAbs() {
			return nil, fmt.Errorf("upload creation URL must be absolute: %s", cfg.CreationEndpoint)
		}
		creationURL = parsed
	}

	transport := cfg.Transport
	if transport == nil {
		transport = newHTTPTransport(cfg, logger)
	}

	headers := make(map[string]string, len(cfg.Headers))
	for key, value := range cfg.Headers {
		headers[key] = value
	}

	return &Client{
		creationURL:     creationURL,
		store:           cfg.Store,
		cookieSupport:   cfg.CookieSupport,
		removeOnSuccess: cfg.RemoveFingerprintOnSuccess,
		headers:         headers,
		transport:       transport,
		logger:          logger,
	}, nil
}

// ResumingEnabled reports whether a session store was configured.
func (c *Client) ResumingEnabled() bool {
	return c.store != nil
}

// CreateUpload creates a new upload by POSTing to the creation endpoint. The
// upload's bytes are not transferred yet; use the returned Uploader for that.
// The upload URL announced by the server is resolved against the URL the
// response was received from, not the configured endpoint, because the
// creation request may have been redirected.
func (c *Client) CreateUpload(ctx context.Context, upload *Upload) (*Uploader, error) {
	if c.creationURL == nil {
		return nil, ErrNoUploadCreationURL
	}

	c.logger.Debugf("Creating upload at %s", c.creationURL)

	header := c.PrepareRequestHeader(upload.Fingerprint())
	header.Set("Upload-Length", strconv.FormatInt(upload.Size(), 10))
	if encoded := upload.EncodedMetadata(); encoded != "" {
		header.Set("Upload-Metadata", encoded)
	}

	resp, err := c.transport.Do(ctx, http.MethodPost, c.creationURL, header, nil)
	if err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}

	if !is2xx(resp.StatusCode) {
		return nil, protocolErrorf(resp, "unexpected status code (%d) while creating upload", resp.StatusCode)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, protocolErrorf(resp, "missing upload URL in response for creating upload")
	}
	uploadURL, err := resp.EffectiveURL.Parse(location)
	if err != nil {
		return nil, protocolErrorf(resp, "invalid upload URL in response for creating upload: %s", location)
	}

	c.storeEntry(upload.Fingerprint(), uploadURL, resp)

	return newUploader(c, upload, uploadURL, 0), nil
}

// ResumeUpload resumes an already started upload. The upload URL is looked up
// in the session store by the upload's fingerprint, then a HEAD request
// determines the current offset without transferring bytes. Fails with
// ErrResumingNotEnabled when no store is configured and with
// ErrFingerprintNotFound when the store has no usable entry; no network
// request is made in either case.
func (c *Client) ResumeUpload(ctx context.Context, upload *Upload) (*Uploader, error) {
	if c.store == nil {
		return nil, ErrResumingNotEnabled
	}

	entry, ok := c.store.Get(upload.Fingerprint())
	if !ok || entry.Location == nil {
		return nil, fmt.Errorf("%w: %s", ErrFingerprintNotFound, upload.Fingerprint())
	}

	return c.BeginOrResumeUploadFromURL(ctx, upload, entry.Location)
}

// BeginOrResumeUploadFromURL begins or resumes an upload at a known upload
// URL without ever creating one. This is useful when a third party created
// the upload out-of-band and the creation endpoint is unknown here. A HEAD
// request to the URL determines the current offset.
func (c *Client) BeginOrResumeUploadFromURL(ctx context.Context, upload *Upload, uploadURL *url.URL) (*Uploader, error) {
	c.logger.Debugf("Probing upload offset at %s", uploadURL)

	header := c.PrepareRequestHeader(upload.Fingerprint())

	resp, err := c.transport.Do(ctx, http.MethodHead, uploadURL, header, nil)
	if err != nil {
		return nil, fmt.Errorf("resume upload: %w", err)
	}

	if !is2xx(resp.StatusCode) {
		return nil, protocolErrorf(resp, "unexpected status code (%d) while resuming upload", resp.StatusCode)
	}

	offsetValue := resp.Header.Get("Upload-Offset")
	if offsetValue == "" {
		return nil, protocolErrorf(resp, "missing upload offset in response for resuming upload")
	}
	offset, err := strconv.ParseInt(offsetValue, 10, 64)
	if err != nil {
		return nil, protocolErrorf(resp, "invalid upload offset (%q) in response for resuming upload", offsetValue)
	}

	c.storeEntry(upload.Fingerprint(), uploadURL, resp)

	return newUploader(c, upload, uploadURL, offset), nil
}

// ResumeOrCreateUpload tries to resume the upload and falls back to creating
// a new one when resuming is disabled, the fingerprint is unknown, or the
// server answered the probe with 404 because it no longer knows the upload.
// Any other failure propagates unchanged.
func (c *Client) ResumeOrCreateUpload(ctx context.Context, upload *Upload) (*Uploader, error) {
	uploader, err := c.ResumeUpload(ctx, upload)
	if err == nil {
		return uploader, nil
	}
	if shouldCreateAfter(err) {
		return c.CreateUpload(ctx, upload)
	}
	return nil, err
}

// PrepareRequestHeader builds the headers every request of this client
// carries: the Tus-Resumable version header, the configured custom headers
// and, when cookie support and resuming are enabled, the serialized session
// cookies for the fingerprint.
func (c *Client) PrepareRequestHeader(fingerprint string) http.Header {
	header := http.Header{}
	header.Set("Tus-Resumable", Version)

	for key, value := range c.headers {
		header.Add(key, value)
	}

	if c.cookieSupport && c.store != nil {
		if entry, ok := c.store.Get(fingerprint); ok {
			if value, ok := serializeCookieHeader(entry.Cookies); ok {
				header.Set("Cookie", value)
			}
		}
	}

	return header
}

// CaptureCookies merges any Set-Cookie values of the response into the
// fingerprint's session entry. It does nothing unless both resuming and
// cookie support are enabled.
func (c *Client) CaptureCookies(fingerprint string, resp *Response) {
	if c.store == nil || !c.cookieSupport {
		return
	}
	values := resp.Header.Values("Set-Cookie")
	if len(values) == 0 {
		return
	}
	c.store.UpdateCookies(fingerprint, parseSetCookies(values))
}

// UploadFinished is called by the Uploader once the transfer completed. It
// removes the fingerprint's session entry when both resuming and remove on
// success are enabled.
func (c *Client) UploadFinished(upload *Upload) {
	if c.store != nil && c.removeOnSuccess {
		c.store.Remove(upload.Fingerprint())
	}
}

// storeEntry persists the resolved upload URL for the fingerprint, merging
// cookies from the response and from any previously stored entry.
func (c *Client) storeEntry(fingerprint string, uploadURL *url.URL, resp *Response) {
	if c.store == nil {
		return
	}

	entry := SessionEntry{Location: uploadURL}
	if previous, ok := c.store.Get(fingerprint); ok {
		entry.Cookies = previous.Cookies
	}
	if c.cookieSupport {
		entry = entry.MergeCookies(parseSetCookies(resp.Header.Values("Set-Cookie")))
	}

	c.store.Set(fingerprint, entry)
}

func is2xx(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
