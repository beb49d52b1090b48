package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/colegiosrd/internal/config"
	"github.com/JonMunkholm/colegiosrd/internal/logging"
)

// APIKeyHeader carries the admin key on /api requests.
const APIKeyHeader = "X-API-Key"

// authError has the same JSON shape as the API's other error bodies.
type authError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var (
	errMissingKey = authError{
		Error:   "missing API key",
		Message: "This endpoint requires an API key",
		Action:  "Send the key in the " + APIKeyHeader + " header",
		Code:    "AUTH_MISSING_KEY",
	}
	errInvalidKey = authError{
		Error:   "invalid API key",
		Message: "The API key was not accepted",
		Action:  "Check the key against API_KEYS",
		Code:    "AUTH_INVALID_KEY",
	}
)

// APIKeyAuth guards the routes that run imports and jobs. With
// RequireAPIKey off every request passes; with it on and no keys
// configured every request is refused.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		keys = append(keys, []byte(k))
	}

	return func(next http.Handler) http.Handler {
		if !cfg.RequireAPIKey {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)

			var rejected *authError
			status := http.StatusUnauthorized
			switch {
			case key == "":
				rejected = &errMissingKey
			case !keyAccepted([]byte(key), keys):
				rejected, status = &errInvalidKey, http.StatusForbidden
			}
			if rejected == nil {
				next.ServeHTTP(w, r)
				return
			}

			logging.FromContext(r.Context()).Warn("admin request rejected",
				"reason", rejected.Code,
				"method", r.Method,
				"path", r.URL.Path,
				"ip", RemoteIP(r),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(rejected)
		})
	}
}

// keyAccepted compares against every key so timing does not reveal which
// one matched.
func keyAccepted(key []byte, keys [][]byte) bool {
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare(key, k)
	}
	return match == 1
}
