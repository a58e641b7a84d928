package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/healthbridge/go-medscheme/internal/core"
	"github.com/healthbridge/go-medscheme/pkg/problem"
)

type RateCardHandler struct {
	Svc core.RateCardService
	Log *slog.Logger
}

func NewRateCardHandler(svc core.RateCardService, log *slog.Logger) *RateCardHandler {
	return &RateCardHandler{Svc: svc, Log: log}
}

func (h *RateCardHandler) Mount(r chi.Router) {
	r.Route("/rate-cards", func(r chi.Router) {
		r.Post("/", h.CreateDraft)
		r.Get("/", h.ListByPlan)
		r.Get("/{card_id}", h.Get)
		r.Put("/{card_id}", h.UpdateDraft)
		r.Post("/{card_id}/approve", h.Approve)
		r.Post("/{card_id}/activate", h.Activate)
		r.Post("/{card_id}/clone", h.Clone)
	})
}

// CreateDraft registers a new draft rate card for a plan.
// 201: JSON; 400: bad JSON; 422: validation; 404: plan not found; 500: internal error.
func (h *RateCardHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var in core.RateCard
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		problem.Write(w, http.StatusBadRequest, "Invalid JSON", "Body could not be decoded.")
		return
	}

	rc, err := h.Svc.CreateDraft(r.Context(), in)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(rc); err != nil {
		h.Log.Error("failed to encode rate card", "err", err)
	}
}

// ListByPlan lists all versions of a plan's rate cards.
// 200: JSON array; 400: missing plan_id query parameter; 500: internal error.
func (h *RateCardHandler) ListByPlan(w http.ResponseWriter, r *http.Request) {
	planID := r.URL.Query().Get("plan_id")
	if planID == "" {
		problem.Write(w, http.StatusBadRequest, "Missing Plan ID", "Query parameter plan_id is required.")
		return
	}

	cards, err := h.Svc.ListByPlan(r.Context(), planID)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to list rate cards")
		return
	}

	if err := json.NewEncoder(w).Encode(cards); err != nil {
		h.Log.Error("failed to encode rate cards", "plan_id", planID, "err", err)
	}
}

func (h *RateCardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "card_id")
	rc, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to get rate card")
		return
	}
	if err := json.NewEncoder(w).Encode(rc); err != nil {
		h.Log.Error("failed to encode rate card", "card_id", id, "err", err)
	}
}

// UpdateDraft replaces a draft card's contents. Non-draft cards reject the
// update; clone to amend.
func (h *RateCardHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "card_id")
	var in core.RateCard
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		problem.Write(w, http.StatusBadRequest, "Invalid JSON", "Body could not be decoded.")
		return
	}
	in.ID = id

	rc, err := h.Svc.UpdateDraft(r.Context(), in)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	if err := json.NewEncoder(w).Encode(rc); err != nil {
		h.Log.Error("failed to encode rate card", "card_id", id, "err", err)
	}
}

func (h *RateCardHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Svc.Approve)
}

func (h *RateCardHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Svc.Activate)
}

func (h *RateCardHandler) Clone(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Svc.Clone)
}

func (h *RateCardHandler) transition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id string) (core.RateCard, error)) {
	id := chi.URLParam(r, "card_id")
	rc, err := op(r.Context(), id)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	if err := json.NewEncoder(w).Encode(rc); err != nil {
		h.Log.Error("failed to encode rate card", "card_id", id, "err", err)
	}
}
