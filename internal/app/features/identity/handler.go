// Package identity receives account lifecycle callbacks from the identity
// provider.
package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dalemusser/lessonsync/internal/app/maintainers/accounts"
	"github.com/dalemusser/lessonsync/internal/app/system/timeouts"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Mirror applies account events to user records.
type Mirror interface {
	OnAccountCreated(ctx context.Context, a accounts.Account) error
	OnAccountDeleted(ctx context.Context, id string) error
}

type Handler struct {
	Accounts Mirror
	Log      *zap.Logger
	validate *validator.Validate
}

func NewHandler(m Mirror, logger *zap.Logger) *Handler {
	return &Handler{Accounts: m, Log: logger, validate: validator.New()}
}

// Create handles POST /identity/accounts with an accounts.Account body.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var a accounts.Account
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	a.ID = strings.TrimSpace(a.ID)
	if err := h.validate.Struct(a); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !tree.ValidID(a.ID) {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if err := h.Accounts.OnAccountCreated(ctx, a); err != nil {
		h.Log.Error("account create failed", zap.String("user", a.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "account create failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /identity/accounts/{id}. Unknown ids succeed.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if !tree.ValidID(id) {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if err := h.Accounts.OnAccountDeleted(ctx, id); err != nil {
		h.Log.Error("account delete failed", zap.String("user", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "account delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
