// Package gate puts every application request behind the OIDC login flow.
package gate

import (
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/marcogenualdo/notes-gate/internal/auth"
	"github.com/marcogenualdo/notes-gate/internal/config"
	"github.com/marcogenualdo/notes-gate/internal/session"
	"github.com/marcogenualdo/notes-gate/internal/tokenstore"
	"github.com/marcogenualdo/notes-gate/pkg/security"
)

const (
	LoginPath        = "/login"
	CallbackPath     = "/callback"
	LogoutPath       = "/logout"
	UnauthorizedPath = "/unauthorized"
)

type Gate struct {
	cfg      config.Config
	provider auth.Provider
	store    tokenstore.Store
	codec    *session.Codec
	logger   *slog.Logger
	now      func() time.Time
}

func New(cfg config.Config, provider auth.Provider, store tokenstore.Store, codec *session.Codec, logger *slog.Logger) *Gate {
	return &Gate{
		cfg:      cfg,
		provider: provider,
		store:    store,
		codec:    codec,
		logger:   logger,
		now:      time.Now,
	}
}

func (g *Gate) baseURL() string {
	return strings.TrimSuffix(g.cfg.Server.BaseURL, "/")
}

func (g *Gate) redirectURI() string {
	return g.baseURL() + CallbackPath
}

// readPayload never fails: a missing or unverifiable cookie is an empty payload.
func (g *Gate) readPayload(r *http.Request) session.Payload {
	payload, err := g.codec.Read(r, g.cfg.Session.CookieName)
	if err != nil {
		g.logger.Debug("ignoring invalid session cookie", "path", r.URL.Path)
	}
	return payload
}

// writePayload sets the cookie to payload, or clears it when nothing is left to carry.
func (g *Gate) writePayload(w http.ResponseWriter, payload session.Payload, ttl time.Duration) error {
	if payload == (session.Payload{}) {
		http.SetCookie(w, security.ClearSessionCookie(g.cfg.Session))
		return nil
	}

	value, err := g.codec.Encode(payload, ttl)
	if err != nil {
		return err
	}
	http.SetCookie(w, security.CreateSessionCookie(g.cfg.Session, value, ttl))
	return nil
}

func (g *Gate) internalError(w http.ResponseWriter) {
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// safeRedirect keeps post-login targets on this origin. Anything that is not a
// plain absolute path, before or after path cleaning, becomes "/".
func safeRedirect(target string) string {
	if target == "" || strings.Contains(target, "\\") {
		return "/"
	}

	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Opaque != "" {
		return "/"
	}
	if strings.Contains(u.Path, "\\") {
		return "/"
	}

	cleaned := path.Clean(u.Path)
	if !strings.HasPrefix(u.Path, "/") || !strings.HasPrefix(cleaned, "/") || strings.HasPrefix(cleaned, "//") {
		return "/"
	}
	return target
}
