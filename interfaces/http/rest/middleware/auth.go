package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/Sakeeb91/claim-mapper-sub003/pkg/auth"
	"github.com/Sakeeb91/claim-mapper-sub003/pkg/common"
	"go.uber.org/zap"
)

// Authenticate guards the local API. Requests are rate limited per client
// IP; when token is set, callers must also present it as a bearer token.
func Authenticate(token string, limiter *auth.KeyedLimiter, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)

			if limiter != nil && !limiter.Allow(clientIP) {
				respondWithError(w, http.StatusTooManyRequests, common.StandardErrorCodes.TooManyRequests, "Rate limit exceeded")
				return
			}

			if token != "" {
				presented := extractToken(r)
				if presented == "" {
					respondUnauthorized(w, "Missing authorization header")
					return
				}
				if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
					logger.Warn("Rejected local API token", zap.String("client_ip", clientIP))
					respondUnauthorized(w, "Invalid token")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(common.WithClientIP(r.Context(), clientIP)))
		})
	}
}

// extractToken returns the bearer token, if any
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="collab"`)
	respondWithError(w, http.StatusUnauthorized, common.StandardErrorCodes.Unauthorized, message)
}

func respondWithError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    code,
		"message": message,
	})
}
