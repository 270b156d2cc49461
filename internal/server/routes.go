package server

import (
	"net/http"
	"strings"

	"github.com/marcogenualdo/notes-gate/internal/gate"
	"github.com/marcogenualdo/notes-gate/internal/handlers"
	"github.com/marcogenualdo/notes-gate/internal/middleware"
)

func (s *Server) setupRoutes() (http.Handler, error) {
	mux := http.NewServeMux()

	authGate := gate.New(s.cfg, s.provider, s.store, s.codec, s.logger)
	csrfMiddleware := middleware.NewCSRFMiddleware(s.logger)

	renderer, err := handlers.NewRenderer(s.logger)
	if err != nil {
		return nil, err
	}

	pagesHandler := handlers.NewPagesHandler(renderer)
	notesHandler := handlers.NewNotesHandler(s.notes, renderer, s.logger)
	healthHandler := handlers.NewHealthHandler(s.cfg, s.store, s.provider, s.logger)

	protected := func(h http.HandlerFunc) http.Handler {
		return authGate.RequireAuth(csrfMiddleware.ValidateCSRF(h))
	}

	mux.HandleFunc("GET "+gate.LoginPath, authGate.Login)
	mux.HandleFunc("GET "+gate.CallbackPath, authGate.Callback)
	mux.HandleFunc("GET "+gate.LogoutPath, authGate.Logout)
	mux.Handle("GET /health", healthHandler)

	mux.Handle("GET /{$}", protected(pagesHandler.Home))
	mux.Handle("GET "+gate.UnauthorizedPath, protected(pagesHandler.Unauthorized))
	mux.Handle("GET /notes", protected(notesHandler.List))
	mux.Handle("POST /notes", protected(notesHandler.Create))
	mux.Handle("GET /notes/{id}", protected(notesHandler.Show))
	mux.Handle("POST /notes/{id}/delete", protected(notesHandler.Delete))

	// unknown paths are gated too, so they reveal nothing to anonymous callers
	mux.Handle("/", authGate.RequireAuth(http.NotFoundHandler()))

	handler := middleware.Recovery(s.logger)(
		middleware.Logging(s.logger)(
			addSecurityHeaders(
				cleanURLs(mux),
			),
		),
	)

	return handler, nil
}

func addSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; frame-ancestors 'none'")

		next.ServeHTTP(w, r)
	})
}

// cleanURLs permanently redirects "/notes/" to "/notes".
func cleanURLs(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" || !strings.HasSuffix(path, "/") {
			next.ServeHTTP(w, r)
			return
		}

		// a leading "//" would make the Location header protocol-relative
		target := "/" + strings.Trim(path, "/")
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
}
