package handlers

import (
	"net/http"

	"github.com/marcogenualdo/notes-gate/internal/gate"
)

type PagesHandler struct {
	renderer *Renderer
}

func NewPagesHandler(renderer *Renderer) *PagesHandler {
	return &PagesHandler{renderer: renderer}
}

func (h *PagesHandler) Home(w http.ResponseWriter, r *http.Request) {
	principal, _ := gate.PrincipalFrom(r.Context())
	h.renderer.Render(w, http.StatusOK, "home", PageData{
		Title:     "Home",
		Principal: principal,
	})
}

// Unauthorized is the landing page for callers without the required role.
// Callers who have it are sent home.
func (h *PagesHandler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	principal, ok := gate.PrincipalFrom(r.Context())
	if ok && principal.Authorized {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	h.renderer.Render(w, http.StatusOK, "unauthorized", PageData{
		Title:     "Access restricted",
		Principal: principal,
	})
}
