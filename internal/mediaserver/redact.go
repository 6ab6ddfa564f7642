package mediaserver

import (
	"net/url"
	"strings"
)

// sensitiveParams are query parameters that carry credentials.
var sensitiveParams = []string{"api_key", "apikey", "token", "x-emby-token", "accesstoken"}

// RedactURL masks credentials in a URL: user info and any token-like query
// parameter. Unparseable input is replaced entirely.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable url]"
	}
	if u.User != nil {
		u.User = url.User("redacted")
	}
	q := u.Query()
	changed := false
	for key := range q {
		for _, s := range sensitiveParams {
			if strings.EqualFold(key, s) {
				q.Set(key, "redacted")
				changed = true
			}
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// RedactEndpoint hides a client address.
func RedactEndpoint(addr string) string {
	if addr == "" {
		return ""
	}
	return "[redacted]"
}
