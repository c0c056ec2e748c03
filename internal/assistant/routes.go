package assistant

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	r.Get("/healthz", h.Health)

	r.Route("/conversations", func(r chi.Router) {
		r.Post("/", h.CreateConversation)
		r.Route("/{id}", func(r chi.Router) {
			r.Post("/messages", h.PostMessage)
			r.Post("/reset", h.ResetConversation)
			r.Get("/history", h.GetHistory)
			r.Get("/notes", h.ListNotes)
			r.Get("/categories", h.ListCategories)
		})
	})
}
