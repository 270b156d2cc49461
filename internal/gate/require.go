package gate

import (
	"context"
	"errors"
	"net/http"

	"github.com/marcogenualdo/notes-gate/internal/auth"
	"github.com/marcogenualdo/notes-gate/internal/session"
	"github.com/marcogenualdo/notes-gate/internal/tokenstore"
)

// errRelogin marks outcomes that send the caller back through the login flow.
var errRelogin = errors.New("session requires login")

// RequireAuth resolves every request to either next, with the principal in the
// request context, or a redirect. Only token store failures produce an error page.
func (g *Gate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := g.readPayload(r)

		tokenSet, err := g.currentTokenSet(r.Context(), payload)
		if errors.Is(err, errRelogin) {
			g.startLogin(w, r, payload, loginTarget(r), "")
			return
		}
		if err != nil {
			g.logger.Error("token store unavailable", "path", r.URL.Path, "error", err)
			g.internalError(w)
			return
		}

		principal, err := auth.PrincipalFromTokenSet(tokenSet, g.cfg.OIDC.RequiredRealmRole)
		if err != nil {
			g.logger.Warn("discarding session with unreadable token", "error", err)
			g.discard(r.Context(), payload.SessionID)
			g.startLogin(w, r, payload, loginTarget(r), "")
			return
		}

		if !principal.Authorized && r.URL.Path != UnauthorizedPath {
			g.logger.Debug("required role missing", "subject", principal.Subject, "role", g.cfg.OIDC.RequiredRealmRole)
			http.Redirect(w, r, UnauthorizedPath, http.StatusFound)
			return
		}

		ctx := WithPrincipal(r.Context(), principal, payload.CSRFToken)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentTokenSet loads the caller's token set, refreshing it at most once when
// it has expired. errRelogin covers every case the login flow can repair.
func (g *Gate) currentTokenSet(ctx context.Context, payload session.Payload) (*auth.TokenSet, error) {
	if payload.SessionID == "" {
		return nil, errRelogin
	}

	record, ok, err := g.store.Get(ctx, payload.SessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errRelogin
	}

	tokenSet := &record.TokenSet
	if !tokenSet.Expired(g.now()) {
		return tokenSet, nil
	}

	refreshed, err := g.provider.Refresh(ctx, tokenSet)
	if err == nil && refreshed.Expired(g.now()) {
		err = errors.New("refreshed token is already expired")
	}
	if err != nil {
		g.logger.Info("token refresh failed", "error", err)
		g.discard(ctx, payload.SessionID)
		return nil, errRelogin
	}

	if err := g.store.Update(ctx, payload.SessionID, refreshed); err != nil {
		if errors.Is(err, tokenstore.ErrNotFound) {
			g.logger.Debug("session removed during refresh")
			return nil, errRelogin
		}
		return nil, err
	}

	return refreshed, nil
}

func (g *Gate) discard(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := g.store.Remove(ctx, sessionID); err != nil {
		g.logger.Warn("failed to remove session", "error", err)
	}
}

// loginTarget is where the caller returns after login. Only safe methods can be
// replayed by a redirect, so anything else returns home.
func loginTarget(r *http.Request) string {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return "/"
	}
	return r.URL.RequestURI()
}
