package identity

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter mounted under /identity.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/accounts", h.Create)
	r.Delete("/accounts/{id}", h.Delete)
	return r
}
