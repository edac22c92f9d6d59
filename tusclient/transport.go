package tusclient

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

const maxErrorBodySize = 8 * 1024

// Response is the transport-level view of an HTTP exchange. EffectiveURL is
// the URL the response was actually received from, which differs from the
// request URL when the transport followed redirects. Body holds at most
// maxErrorBodySize bytes of the response body for diagnostics.
type Response struct {
	StatusCode   int
	Header       http.Header
	EffectiveURL *url.URL
	Body         []byte
}

// Transport performs a single HTTP exchange. It exists so the session
// resolution logic can be tested against a fake without a concrete HTTP
// stack; the default implementation is backed by retryablehttp.
type Transport interface {
	Do(ctx context.Context, method string, target *url.URL, header http.Header, body []byte) (*Response, error)
}

type httpTransport struct {
	client *retryablehttp.Client
	logger log.Logger
}

func newHTTPTransport(cfg Config, logger log.Logger) *httpTransport {
	client := cfg.HTTPClient
	if client == nil {
		client = retryhttp.NewClient(logger)
		// Failures surface to the caller immediately, the client performs
		// no request-level retries.
		client.RetryMax = 0

		transport := cleanhttp.DefaultPooledTransport()
		if cfg.ConnectTimeout > 0 {
			transport.DialContext = (&net.Dialer{
				Timeout:   cfg.ConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext
		}
		client.HTTPClient.Transport = transport

		if !cfg.FollowRedirects {
			// A redirected creation POST must not be downgraded to GET by the
			// HTTP stack. Redirect responses are returned as-is and surface
			// as protocol errors.
			client.HTTPClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			}
		}
	}

	return &httpTransport{
		client: client,
		logger: logger,
	}
}

func (t *httpTransport) Do(ctx context.Context, method string, target *url.URL, header http.Header, body []byte) (*Response, error) {
	var rawBody interface{}
	if body != nil {
		rawBody = body
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, target.String(), rawBody)
	if err != nil {
		return nil, err
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if body != nil {
		req.ContentLength = int64(len(body))
	}

	dump, err := httputil.DumpRequest(req.Request, false)
	if err != nil {
		t.logger.Warnf("error while dumping request: %s", err)
	}
	t.logger.Debugf("Request dump: %s", string(dump))

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			t.logger.Printf(err.Error())
		}
	}(resp.Body)

	dump, err = httputil.DumpResponse(resp, false)
	if err != nil {
		t.logger.Warnf("error while dumping response: %s", err)
	}
	t.logger.Debugf("Response dump: %s", string(dump))

	excerpt, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode:   resp.StatusCode,
		Header:       resp.Header,
		EffectiveURL: resp.Request.URL,
		Body:         excerpt,
	}, nil
}
