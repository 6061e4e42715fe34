package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// requireAPIToken guards the order API. Requests must carry the configured
// token as "Authorization: Bearer <token>" or "X-Api-Key: <token>". With no
// token configured every request is rejected.
func (h *Handler) requireAPIToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.setCORSHeaders(w)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		if h.cfg.APIToken == "" {
			h.unauthorized(w, r, "API token not configured")
			return
		}

		token := r.Header.Get("X-Api-Key")
		if auth := r.Header.Get("Authorization"); auth != "" {
			parts := strings.SplitN(auth, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				h.unauthorized(w, r, "Invalid Authorization header format (expected 'Bearer <token>')")
				return
			}
			token = strings.TrimSpace(parts[1])
		}
		if token == "" {
			h.unauthorized(w, r, "Missing API token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.APIToken)) != 1 {
			h.unauthorized(w, r, "Invalid API token")
			return
		}

		next(w, r)
	}
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request, reason string) {
	h.logger.Warn("Unauthorized API request",
		zap.String("path", r.URL.Path),
		zap.String("remote", r.RemoteAddr),
		zap.String("reason", reason))
	w.Header().Set("WWW-Authenticate", `Bearer realm="simbot"`)
	h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": reason})
}
