package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/marcogenualdo/notes-gate/internal/gate"
)

const (
	CSRFFieldName  = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
)

// CSRFMiddleware checks state-changing requests against the token bound to
// the caller's session. It must run inside gate.RequireAuth.
type CSRFMiddleware struct {
	logger *slog.Logger
}

func NewCSRFMiddleware(logger *slog.Logger) *CSRFMiddleware {
	return &CSRFMiddleware{
		logger: logger,
	}
}

func (cm *CSRFMiddleware) ValidateCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			token := r.FormValue(CSRFFieldName)
			if token == "" {
				token = r.Header.Get(CSRFHeaderName)
			}

			if token == "" {
				cm.logger.Warn("missing CSRF token", "path", r.URL.Path)
				http.Error(w, "Missing CSRF token", http.StatusForbidden)
				return
			}

			expected := gate.CSRFTokenFrom(r.Context())
			if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				cm.logger.Warn("invalid CSRF token", "path", r.URL.Path)
				http.Error(w, "Invalid or expired CSRF token", http.StatusForbidden)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
