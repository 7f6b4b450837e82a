package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go-query-gateway/internal/response"
)

// APIKeyAuth validates the caller's key from X-API-Key or a Bearer token.
// With no configured keys every request passes.
func APIKeyAuth(validKeys []string) func(next http.Handler) http.Handler {
	keys := make([][]byte, 0, len(validKeys))
	for _, key := range validKeys {
		if key != "" {
			keys = append(keys, []byte(key))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := requestKey(r)
			if apiKey == "" || !matchKey(keys, apiKey) {
				response.ErrorWithCode(w, "unauthorized", "Invalid or missing API key", "", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func matchKey(keys [][]byte, candidate string) bool {
	c := []byte(candidate)
	for _, k := range keys {
		if subtle.ConstantTimeCompare(k, c) == 1 {
			return true
		}
	}
	return false
}
