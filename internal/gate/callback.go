package gate

import (
	"net/http"

	"github.com/marcogenualdo/notes-gate/internal/session"
	"github.com/marcogenualdo/notes-gate/pkg/security"
)

const csrfTokenBytes = 32

// Callback completes the flow started by startLogin. The flow fields are
// consumed whatever the outcome, so a replayed callback finds nothing to match.
func (g *Gate) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload := g.readPayload(r)
	flow := payload.FlowState
	consumed := payload.WithoutFlow()

	tokenSet, err := g.provider.Exchange(ctx, r.URL, g.redirectURI(), flow)
	if err != nil {
		g.logger.Warn("login callback rejected", "error", err)
		g.abandonFlow(w, r, consumed)
		return
	}

	sessionID, err := g.store.Put(ctx, tokenSet)
	if err != nil {
		g.logger.Error("failed to store token set", "error", err)
		if err := g.writePayload(w, consumed, g.cfg.Session.SessionTTL); err != nil {
			g.logger.Error("failed to write session cookie", "error", err)
		}
		g.internalError(w)
		return
	}

	if consumed.SessionID != "" && consumed.SessionID != sessionID {
		if err := g.store.Remove(ctx, consumed.SessionID); err != nil {
			g.logger.Warn("failed to remove superseded session", "error", err)
		}
	}

	csrfToken, err := security.GenerateRandomString(csrfTokenBytes)
	if err != nil {
		g.logger.Error("failed to generate CSRF token", "error", err)
		g.abandonFlow(w, r, session.Payload{})
		return
	}

	next := session.Payload{SessionID: sessionID, CSRFToken: csrfToken}
	if err := g.writePayload(w, next, g.cfg.Session.SessionTTL); err != nil {
		g.logger.Error("failed to write session cookie", "error", err)
		g.internalError(w)
		return
	}

	g.logger.Info("authentication successful")
	g.logger.Debug("session established", "session_id", sessionID)

	http.Redirect(w, r, safeRedirect(flow.RedirectTo), http.StatusFound)
}

func (g *Gate) abandonFlow(w http.ResponseWriter, r *http.Request, payload session.Payload) {
	if err := g.writePayload(w, payload, g.cfg.Session.SessionTTL); err != nil {
		g.logger.Error("failed to write session cookie", "error", err)
		http.SetCookie(w, security.ClearSessionCookie(g.cfg.Session))
	}
	http.Redirect(w, r, "/", http.StatusFound)
}
