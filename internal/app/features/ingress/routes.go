package ingress

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter mounted under /events.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Serve)
	return r
}
