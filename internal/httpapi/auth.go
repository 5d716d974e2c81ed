package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// AdminAuthMiddleware guards the dispatch endpoints with a shared bearer
// token. Booking, position, and directory endpoints stay public. An empty
// configured token disables the check entirely.
func AdminAuthMiddleware(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token == "" || !isAdminEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		presented := bearerToken(r.Header.Get("Authorization"))
		if presented == "" {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			writeAuthError(w, http.StatusForbidden, "ACCESS_DENIED", "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAdminEndpoint(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	path := r.URL.Path
	if path == "/api/tickets/actions/call-next" {
		return true
	}
	return strings.HasPrefix(path, "/api/tickets/") &&
		(strings.HasSuffix(path, "/status") || strings.HasSuffix(path, "/transfer"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Success: false,
		Error:   responseError{Code: code, Message: message},
	})
}
