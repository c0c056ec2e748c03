package assistant

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Vovarama1992/notebot/internal/notes"
)

type Handler struct {
	router *Router
	store  NoteStore
	log    *zap.Logger
}

func NewHandler(router *Router, store NoteStore, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{router: router, store: store, log: log}
}

type messageResponse struct {
	Reply                string `json:"reply"`
	Command              string `json:"command"`
	AwaitingConfirmation bool   `json:"awaiting_confirmation"`
	Discarded            bool   `json:"discarded"`
}

type historyEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type noteView struct {
	ID         int64     `json:"id"`
	Content    string    `json:"content"`
	Categories []string  `json:"categories"`
	CreatedAt  time.Time `json:"created_at"`
}

type categoryView struct {
	Name      string `json:"name"`
	NoteCount int    `json:"note_count"`
}

// CreateConversation hands out a fresh conversation id.
func (h *Handler) CreateConversation(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"conversation_id": uuid.NewString()})
}

// PostMessage runs one message through the router and waits for its reply.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	reply, err := h.router.Handle(r.Context(), chi.URLParam(r, "id"), payload.Text)
	switch {
	case errors.Is(err, ErrEmptyConversation):
		http.Error(w, "missing conversation id", http.StatusBadRequest)
		return
	case err != nil:
		h.log.Warn("message not handled", zap.Error(err))
		http.Error(w, "conversation busy", http.StatusServiceUnavailable)
		return
	}

	command := ""
	if reply.Command != KindNone {
		command = reply.Command.String()
	}
	writeJSON(w, http.StatusOK, messageResponse{
		Reply:                reply.Text,
		Command:              command,
		AwaitingConfirmation: reply.AwaitingConfirmation,
		Discarded:            reply.Discarded,
	})
}

func (h *Handler) ResetConversation(w http.ResponseWriter, r *http.Request) {
	h.router.Reset(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history := h.router.History(chi.URLParam(r, "id"))
	out := make([]historyEntry, 0, len(history))
	for _, m := range history {
		out = append(out, historyEntry{Role: m.Role, Text: m.Text})
	}
	writeJSON(w, http.StatusOK, out)
}

// ListNotes returns every note of the conversation, or only one category
// when ?category= is set.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var list []notes.Note
	if category := r.URL.Query().Get("category"); category != "" {
		list = h.store.GetNotesByCategory(r.Context(), id, category)
	} else {
		list = h.store.GetAllNotes(r.Context(), id)
	}

	out := make([]noteView, 0, len(list))
	for _, n := range list {
		categories := n.Categories
		if categories == nil {
			categories = []string{}
		}
		out = append(out, noteView{ID: n.ID, Content: n.Content, Categories: categories, CreatedAt: n.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	list := h.store.GetAllCategories(r.Context(), chi.URLParam(r, "id"))
	out := make([]categoryView, 0, len(list))
	for _, c := range list {
		out = append(out, categoryView{Name: c.Name, NoteCount: c.NoteCount})
	}
	writeJSON(w, http.StatusOK, out)
}

// Health reports 503 while the store cannot be reached.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.store.VerifyConnection(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
