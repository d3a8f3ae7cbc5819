package middleware

import (
	"net/http"
	"strings"
)

// pageCSP lets the live page load its own assets and open the feed socket.
const pageCSP = "default-src 'self'; img-src 'self' data:; connect-src 'self' ws: wss:"

// maxQueryLength bounds the query string; the feed only takes offset,
// count and limit.
const maxQueryLength = 256

// SecurityHeaders sets response hardening headers. JSON endpoints get a
// deny-all content security policy, the web page a same-origin one.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if isPage(r.URL.Path) {
			h.Set("Content-Security-Policy", pageCSP)
		} else {
			h.Set("Content-Security-Policy", "default-src 'none'")
		}

		next.ServeHTTP(w, r)
	})
}

func isPage(path string) bool {
	return path == "/" || strings.HasPrefix(path, "/static/")
}

// MaxBodySize rejects request bodies over maxBytes. The receiver only
// serves reads, so the limit is small.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, `{"error":"request body too large"}`, http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// ValidateRequest turns away overlong queries and paths or queries that
// try directory traversal or script injection before they reach the file
// server or a handler.
func ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.RawQuery) > maxQueryLength ||
			suspicious(r.URL.Path) || suspicious(r.URL.RawQuery) {
			http.Error(w, `{"error":"invalid request"}`, http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var suspiciousPatterns = []string{"..", "//", "<script", "javascript:", "onerror="}

func suspicious(input string) bool {
	lower := strings.ToLower(input)
	for _, p := range suspiciousPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
