package gate

import (
	"net/http"

	"github.com/marcogenualdo/notes-gate/internal/auth"
	"github.com/marcogenualdo/notes-gate/internal/session"
	"github.com/marcogenualdo/notes-gate/pkg/security"
)

const flowSecretBytes = 32

func newFlowState(redirectTo string) (auth.FlowState, error) {
	state, err := security.GenerateRandomString(flowSecretBytes)
	if err != nil {
		return auth.FlowState{}, err
	}
	nonce, err := security.GenerateRandomString(flowSecretBytes)
	if err != nil {
		return auth.FlowState{}, err
	}
	// 32 bytes encode to a 43 character verifier, the RFC 7636 minimum.
	verifier, err := security.GenerateRandomString(flowSecretBytes)
	if err != nil {
		return auth.FlowState{}, err
	}

	return auth.FlowState{
		State:        state,
		Nonce:        nonce,
		CodeVerifier: verifier,
		RedirectTo:   safeRedirect(redirectTo),
	}, nil
}

// startLogin stores fresh flow state in the cookie and sends the browser to the provider.
func (g *Gate) startLogin(w http.ResponseWriter, r *http.Request, payload session.Payload, redirectTo, action string) {
	flow, err := newFlowState(redirectTo)
	if err != nil {
		g.logger.Error("failed to generate login flow state", "error", err)
		g.internalError(w)
		return
	}

	payload.FlowState = flow
	if err := g.writePayload(w, payload, g.cfg.Session.FlowTTL); err != nil {
		g.logger.Error("failed to write flow cookie", "error", err)
		g.internalError(w)
		return
	}

	g.logger.Debug("starting login", "redirect_to", flow.RedirectTo)
	http.Redirect(w, r, g.provider.AuthorizationURL(flow, g.redirectURI(), action), http.StatusFound)
}

// Login starts the flow explicitly. redirect_to picks the page to return to
// and action is forwarded to the provider as a required-action hint.
func (g *Gate) Login(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	g.startLogin(w, r, g.readPayload(r), q.Get("redirect_to"), q.Get("action"))
}
