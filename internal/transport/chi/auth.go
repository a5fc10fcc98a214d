package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// PublicPaths are served without credentials so health checks and scrapers keep working.
var PublicPaths = []string{"/health", "/metrics"}

// BearerAuth guards every route except public with "Authorization: Bearer <key>".
// With no non-empty keys the middleware is a pass-through.
func BearerAuth(keys []string, public ...string) func(http.Handler) http.Handler {
	var allowed [][]byte
	for _, k := range keys {
		if k != "" {
			allowed = append(allowed, []byte(k))
		}
	}
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}

	return func(next http.Handler) http.Handler {
		if len(allowed) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if msg := checkBearer(allowed, r.Header.Get("Authorization")); msg != "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="quizrag"`)
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkBearer returns "" when header carries an allowed key, otherwise the
// client-facing reason.
func checkBearer(allowed [][]byte, header string) string {
	if header == "" {
		return "missing authorization header"
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "authorization header must use Bearer scheme"
	}
	// compare against every key so timing does not reveal which one matched
	match := 0
	for _, k := range allowed {
		match |= subtle.ConstantTimeCompare(k, []byte(token))
	}
	if match != 1 {
		return "invalid api key"
	}
	return ""
}
