// Package ingress accepts change events pushed by an external trigger source
// and hands them to the dispatcher.
package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dalemusser/lessonsync/internal/app/changes"
	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
	"github.com/dalemusser/lessonsync/internal/app/system/auth"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// maxBody caps a single event request.
const maxBody = 1 << 20

// Dispatcher runs the maintainers of one change.
type Dispatcher interface {
	Dispatch(ctx context.Context, c changes.Change) error
}

// Handler serves POST /events.
type Handler struct {
	Disp     Dispatcher
	Log      *zap.Logger
	validate *validator.Validate
}

func NewHandler(d Dispatcher, logger *zap.Logger) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("docpath", func(fl validator.FieldLevel) bool {
		return tree.IsDocument(fl.Field().String())
	})
	return &Handler{Disp: d, Log: logger, validate: v}
}

// EventRequest is one change. Before and After are MongoDB Extended JSON
// documents; an absent or null snapshot means the document did not exist.
type EventRequest struct {
	Path   string          `json:"path" validate:"required,docpath"`
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`
	Hop    int             `json:"hop" validate:"gte=0"`
}

type eventResponse struct {
	EventID string `json:"event_id"`
	Kind    string `json:"kind"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Serve handles POST /events.
//
// 202 and {"event_id":"…","kind":"update"} once every maintainer finished;
// 400 for a malformed event, 422 when the hop limit is exceeded and 500 when
// a maintainer failed (the sender should retry).
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	c, err := req.Change()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	caller, _ := auth.CallerFrom(r.Context())
	h.Log.Debug("event received",
		zap.String("event_id", c.ID),
		zap.String("path", c.Path),
		zap.Stringer("kind", c.Kind()),
		zap.String("caller", caller.Subject))

	if err := h.Disp.Dispatch(r.Context(), c); err != nil {
		var hop *dispatch.HopLimitError
		if errors.As(err, &hop) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}
		h.Log.Error("event dispatch failed", zap.String("event_id", c.ID), zap.String("path", c.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "dispatch failed"})
		return
	}
	writeJSON(w, http.StatusAccepted, eventResponse{EventID: c.ID, Kind: c.Kind().String()})
}

// Change converts the request into a change. Both snapshots absent is an
// error.
func (req EventRequest) Change() (changes.Change, error) {
	before, err := snapshot(req.Before)
	if err != nil {
		return changes.Change{}, fmt.Errorf("before: %w", err)
	}
	after, err := snapshot(req.After)
	if err != nil {
		return changes.Change{}, fmt.Errorf("after: %w", err)
	}
	if before == nil && after == nil {
		return changes.Change{}, errors.New("one of before or after is required")
	}
	return changes.New(req.Path, before, after, req.Hop), nil
}

func snapshot(raw json.RawMessage) (docstore.Data, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var m bson.M
	if err := bson.UnmarshalExtJSON(raw, false, &m); err != nil {
		return nil, err
	}
	return docstore.NormalizeData(m), nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
