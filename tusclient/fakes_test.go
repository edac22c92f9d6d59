package tusclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"
)

type transportCall struct {
	method string
	url    string
	header http.Header
	body   []byte
}

// fakeTransport replays canned responses in request order and records every
// call for assertions.
type fakeTransport struct {
	responses []*Response
	errs      []error
	calls     []transportCall
}

func (t *fakeTransport) Do(ctx context.Context, method string, target *url.URL, header http.Header, body []byte) (*Response, error) {
	t.calls = append(t.calls, transportCall{
		method: method,
		url:    target.String(),
		header: header,
		body:   body,
	})

	i := len(t.calls) - 1
	if i < len(t.errs) && t.errs[i] != nil {
		return nil, t.errs[i]
	}
	if i < len(t.responses) {
		return t.responses[i], nil
	}
	return nil, fmt.Errorf("unexpected request %d: %s %s", i, method, target)
}

func mustParseURL(t *testing.T, rawURL string) *url.URL {
	t.Helper()
	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL %q: %s", rawURL, err)
	}
	return parsed
}

// testConfig merges the test-relevant overrides into DefaultConfig so
// end-to-end tests exercise the real transport defaults.
func testConfig(t *testing.T, overrides Config) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.CreationEndpoint = overrides.CreationEndpoint
	cfg.Store = overrides.Store
	cfg.CookieSupport = overrides.CookieSupport
	cfg.RemoveFingerprintOnSuccess = overrides.RemoveFingerprintOnSuccess
	cfg.Headers = overrides.Headers
	cfg.FollowRedirects = overrides.FollowRedirects
	return cfg
}
