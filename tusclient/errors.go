package tusclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrResumingNotEnabled is returned by resume operations when the client was
// constructed without a session store.
var ErrResumingNotEnabled = errors.New("resuming not enabled: no session store configured")

// ErrNoUploadCreationURL is returned by CreateUpload when no creation endpoint
// was configured.
var ErrNoUploadCreationURL = errors.New("no upload creation URL configured")

// ErrFingerprintNotFound is returned by ResumeUpload when the session store
// has no entry for the upload's fingerprint.
var ErrFingerprintNotFound = errors.New("fingerprint not found in session store")

// ProtocolError indicates that the remote server sent a response which
// violates the tus protocol contract: an unexpected status code or a
// missing/invalid required header. The offending response is retained so
// callers can branch on its status code.
type ProtocolError struct {
	Msg      string
	Response *Response
}

func (e *ProtocolError) Error() string {
	return e.Msg
}

func protocolErrorf(resp *Response, format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{
		Msg:      fmt.Sprintf(format, args...),
		Response: resp,
	}
}

// shouldCreateAfter decides whether a failed resume attempt may transparently
// fall back to creating a fresh upload. Only three failure kinds qualify:
// resuming is disabled, the fingerprint is unknown locally, or the remote no
// longer recognizes the upload (404). Everything else, including transport
// errors and other protocol errors, propagates to the caller.
func shouldCreateAfter(err error) bool {
	if errors.Is(err, ErrFingerprintNotFound) || errors.Is(err, ErrResumingNotEnabled) {
		return true
	}

	var protocolErr *ProtocolError
	if errors.As(err, &protocolErr) {
		return protocolErr.Response != nil && protocolErr.Response.StatusCode == http.StatusNotFound
	}

	return false
}
