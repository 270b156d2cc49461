package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/marcogenualdo/notes-gate/internal/gate"
	"github.com/marcogenualdo/notes-gate/internal/middleware"
	"github.com/marcogenualdo/notes-gate/internal/notes"
)

type NotesHandler struct {
	store    *notes.Store
	renderer *Renderer
	logger   *slog.Logger
}

func NewNotesHandler(store *notes.Store, renderer *Renderer, logger *slog.Logger) *NotesHandler {
	return &NotesHandler{
		store:    store,
		renderer: renderer,
		logger:   logger,
	}
}

func (h *NotesHandler) pageData(r *http.Request, title string) (PageData, bool) {
	principal, ok := gate.PrincipalFrom(r.Context())
	return PageData{
		Title:     title,
		Principal: principal,
		CSRFToken: gate.CSRFTokenFrom(r.Context()),
	}, ok
}

func (h *NotesHandler) List(w http.ResponseWriter, r *http.Request) {
	data, ok := h.pageData(r, "Notes")
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	data.Notes = h.store.List(data.Principal.Subject)
	h.renderer.Render(w, http.StatusOK, "notes", data)
}

func (h *NotesHandler) Show(w http.ResponseWriter, r *http.Request) {
	data, ok := h.pageData(r, "Note")
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	note, err := h.store.Get(data.Principal.Subject, r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	data.Title = note.Title
	data.Note = &note
	h.renderer.Render(w, http.StatusOK, "note", data)
}

func (h *NotesHandler) Create(w http.ResponseWriter, r *http.Request) {
	data, ok := h.pageData(r, "Notes")
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	userID := data.Principal.Subject
	note, err := h.store.Create(userID, r.PostFormValue("title"), r.PostFormValue("body"))
	if errors.Is(err, notes.ErrEmptyTitle) || errors.Is(err, notes.ErrTitleTooLong) {
		data.Notes = h.store.List(userID)
		data.Error = err.Error()
		h.renderer.Render(w, http.StatusBadRequest, "notes", data)
		return
	}
	if err != nil {
		h.logger.Error("failed to create note", "request_id", middleware.RequestID(r.Context()), "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Debug("note created", "request_id", middleware.RequestID(r.Context()), "note_id", note.ID)
	http.Redirect(w, r, "/notes/"+note.ID, http.StatusSeeOther)
}

func (h *NotesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := gate.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.store.Delete(principal.Subject, r.PathValue("id")); err != nil {
		http.NotFound(w, r)
		return
	}

	http.Redirect(w, r, "/notes", http.StatusSeeOther)
}
