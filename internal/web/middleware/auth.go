package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/manifestcheck/internal/config"
)

// APIKeyAuth gates requests behind the X-API-Key header (or an
// "Authorization: Bearer" token) when cfg.RequireAPIKey is set. With the gate
// on and no keys configured, every request is rejected.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			key := requestKey(r)
			if key == "" || !isValidAPIKey(key, cfg.APIKeys) {
				slog.Warn("auth: rejected API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
					"missing", key == "",
				)
				status := http.StatusForbidden
				if key == "" {
					status = http.StatusUnauthorized
				}
				writeAuthError(w, status)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requestKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "invalid api key",
		"message": "Invalid or missing API key",
		"action":  "Send a valid key in the X-API-Key header",
		"code":    "AUTH001",
	})
}

// isValidAPIKey compares against every configured key in constant time.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}
