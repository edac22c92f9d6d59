package tusclient

import (
	"net/http"
	"strings"
	"time"
)

// parseSetCookies parses raw Set-Cookie header values into cookies. Values
// that fail to parse are dropped without failing the batch.
func parseSetCookies(values []string) []*http.Cookie {
	if len(values) == 0 {
		return nil
	}

	header := http.Header{}
	for _, value := range values {
		header.Add("Set-Cookie", value)
	}
	response := http.Response{Header: header}
	return response.Cookies()
}

// serializeCookieHeader builds a single Cookie header value out of the
// non-expired cookies in the set. The second return value is false when no
// cookie qualifies, so callers can skip the header entirely instead of
// sending an empty one.
func serializeCookieHeader(cookies []*http.Cookie) (string, bool) {
	var b strings.Builder
	now := time.Now()

	for _, cookie := range cookies {
		if cookieExpired(cookie, now) {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString(cookie.Name)
		b.WriteByte('=')
		b.WriteString(cookie.Value)
	}

	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}

func cookieExpired(cookie *http.Cookie, now time.Time) bool {
	if cookie.MaxAge < 0 {
		return true
	}
	return !cookie.Expires.IsZero() && cookie.Expires.Before(now)
}
