package gate

import (
	"net/http"

	"github.com/marcogenualdo/notes-gate/pkg/security"
)

// Logout always ends in a redirect. Store failures are logged and otherwise ignored.
func (g *Gate) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payload := g.readPayload(r)

	var idTokenHint string
	if payload.SessionID != "" {
		record, ok, err := g.store.Get(ctx, payload.SessionID)
		if err != nil {
			g.logger.Warn("failed to load session for logout", "error", err)
		} else if ok {
			idTokenHint = record.TokenSet.IDToken
		}

		if err := g.store.Remove(ctx, payload.SessionID); err != nil {
			g.logger.Warn("failed to remove session on logout", "error", err)
		}
	}

	http.SetCookie(w, security.ClearSessionCookie(g.cfg.Session))

	target, err := g.provider.EndSessionURL(g.baseURL()+"/", idTokenHint)
	if err != nil {
		g.logger.Warn("provider has no end-session endpoint", "error", err)
		target = "/"
	}

	g.logger.Info("user logged out")
	http.Redirect(w, r, target, http.StatusFound)
}
