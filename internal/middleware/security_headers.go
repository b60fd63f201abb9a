package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// apiCSP forbids everything: responses are JSON and never rendered as pages.
const apiCSP = "default-src 'none'; frame-ancestors 'none'"

// APIHeaders sets the headers every response of the account API carries.
// Bodies can hold session tokens, so nothing is cached. HSTS is sent only
// when hstsMaxAge is positive, i.e. the service is reached over HTTPS.
func APIHeaders(hstsMaxAge time.Duration) func(http.Handler) http.Handler {
	var hsts string
	if hstsMaxAge > 0 {
		hsts = "max-age=" + strconv.FormatInt(int64(hstsMaxAge/time.Second), 10) + "; includeSubDomains"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers := w.Header()
			headers.Set("Content-Security-Policy", apiCSP)
			headers.Set("X-Content-Type-Options", "nosniff")
			headers.Set("Referrer-Policy", "no-referrer")
			headers.Set("Cache-Control", "no-store")
			if hsts != "" {
				headers.Set("Strict-Transport-Security", hsts)
			}
			next.ServeHTTP(w, r)
		})
	}
}
