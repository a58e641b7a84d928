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

type ApplicationHandler struct {
	Svc core.ApplicationService
	Log *slog.Logger
}

func NewApplicationHandler(svc core.ApplicationService, log *slog.Logger) *ApplicationHandler {
	return &ApplicationHandler{Svc: svc, Log: log}
}

func (h *ApplicationHandler) Mount(r chi.Router) {
	r.Route("/applications", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/{application_id}", h.Get)

		r.Post("/{application_id}/members", h.AddMember)
		r.Delete("/{application_id}/members/{member_id}", h.RemoveMember)
		r.Post("/{application_id}/addons/{addon_id}", h.AddAddon)
		r.Delete("/{application_id}/addons/{addon_id}", h.RemoveAddon)

		r.Post("/{application_id}:recalculate", h.Recalculate)
		r.Post("/{application_id}:quote", h.MarkQuoted)
		r.Post("/{application_id}:submit", h.Submit)
		r.Post("/{application_id}:underwrite", h.StartUnderwriting)
		r.Post("/{application_id}:approve", h.Approve)
		r.Post("/{application_id}:decline", h.Decline)
		r.Post("/{application_id}:refer", h.Refer)
		r.Post("/{application_id}:accept", h.Accept)
		r.Post("/{application_id}:convert", h.Convert)
		r.Post("/{application_id}:cancel", h.Cancel)

		r.Post("/{application_id}/members/{member_id}:approve", h.ApproveMember)
		r.Post("/{application_id}/members/{member_id}:decline", h.DeclineMember)
		r.Post("/{application_id}/members/{member_id}:terms", h.ApplyMemberTerms)
	})
}

// Create opens a new draft application.
// 201: JSON; 400: bad JSON; 422: validation; 500: internal error.
func (h *ApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in core.NewApplicationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		problem.Write(w, http.StatusBadRequest, "Invalid JSON", "Body could not be decoded.")
		return
	}

	app, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}

	w.WriteHeader(http.StatusCreated)
	h.encode(w, app)
}

// Get retrieves an application by ID.
// 200: JSON; 404: not found; 500: internal error.
func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "application_id")
	app, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to get application")
		return
	}
	h.encode(w, app)
}

// AddMember adds a member and re-rates the application.
// 200: JSON; 422: validation or non-mutable status; 404: not found; 500: internal error.
func (h *ApplicationHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "application_id")
	var in core.NewMemberInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		problem.Write(w, http.StatusBadRequest, "Invalid JSON", "Body could not be decoded.")
		return
	}

	app, err := h.Svc.AddMember(r.Context(), id, in)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, app)
}

func (h *ApplicationHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "application_id")
	memberID := chi.URLParam(r, "member_id")

	app, err := h.Svc.RemoveMember(r.Context(), id, memberID)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, app)
}

func (h *ApplicationHandler) AddAddon(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "application_id")
	addonID := chi.URLParam(r, "addon_id")

	app, err := h.Svc.AddAddon(r.Context(), id, addonID)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, app)
}

func (h *ApplicationHandler) RemoveAddon(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "application_id")
	addonID := chi.URLParam(r, "addon_id")

	app, err := h.Svc.RemoveAddon(r.Context(), id, addonID)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, app)
}

func (h *ApplicationHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Svc.Recalculate)
}

func (h *ApplicationHandler) MarkQuoted(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Svc.MarkQuoted)
}

func (h *ApplicationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Svc.Submit)
}

// actorRequest carries the acting party plus a free-text field whose
// meaning depends on the action (decline reason, referral notes, ...).
type actorRequest struct {
	UnderwriterID string `json:"underwriter_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Notes         string `json:"notes,omitempty"`
	AcceptanceRef string `json:"acceptance_ref,omitempty"`
	IssuedBy      string `json:"issued_by,omitempty"`
}

func (h *ApplicationHandler) decodeActor(w http.ResponseWriter, r *http.Request) (actorRequest, bool) {
	var in actorRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			problem.Write(w, http.StatusBadRequest, "Invalid JSON", "Body could not be decoded.")
			return in, false
		}
	}
	return in, true
}

func (h *ApplicationHandler) StartUnderwriting(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "application_id")
	in, ok := h.decodeActor(w, r)
	if !ok {
		return
	}
	app, err := h.Svc.StartUnderwriting(r.Context(), id, in.UnderwriterID)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, app)
}

func (h *ApplicationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "application_id")
	in, ok := h.decodeActor(w, r)
	if !ok {
		return
	}
	app, err := h.Svc.Approve(r.Context(), id, in.UnderwriterID)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, app)
}

func (h *ApplicationHandler) Decline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "application_id")
	in, ok := h.decodeActor(w, r)
	if !ok {
		return
	}
	app, err := h.Svc.Decline(r.Context(), id, in.Reason)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, app)
}

func (h *ApplicationHandler) Refer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "application_id")
	in, ok := h.decodeActor(w, r)
	if !ok {
		return
	}
	app, err := h.Svc.Refer(r.Context(), id, in.Notes)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, app)
}

func (h *ApplicationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "application_id")
	in, ok := h.decodeActor(w, r)
	if !ok {
		return
	}
	app, err := h.Svc.Accept(r.Context(), id, in.AcceptanceRef)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, app)
}

// Convert issues a policy from an accepted application.
// 201: {application, policy}; 422: not accepted or offer expired; 409: already converted.
func (h *ApplicationHandler) Convert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "application_id")
	in, ok := h.decodeActor(w, r)
	if !ok {
		return
	}
	app, policy, err := h.Svc.Convert(r.Context(), id, in.IssuedBy)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}

	w.WriteHeader(http.StatusCreated)
	h.encode(w, map[string]any{"application": app, "policy": policy})
}

func (h *ApplicationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "application_id")
	in, ok := h.decodeActor(w, r)
	if !ok {
		return
	}
	app, err := h.Svc.Cancel(r.Context(), id, in.Reason)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, app)
}

func (h *ApplicationHandler) ApproveMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "application_id")
	memberID := chi.URLParam(r, "member_id")

	app, err := h.Svc.ApproveMember(r.Context(), id, memberID)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, app)
}

func (h *ApplicationHandler) DeclineMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "application_id")
	memberID := chi.URLParam(r, "member_id")
	in, ok := h.decodeActor(w, r)
	if !ok {
		return
	}
	app, err := h.Svc.DeclineMember(r.Context(), id, memberID, in.Reason)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, app)
}

func (h *ApplicationHandler) ApplyMemberTerms(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "application_id")
	memberID := chi.URLParam(r, "member_id")

	var in core.TermsInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		problem.Write(w, http.StatusBadRequest, "Invalid JSON", "Body could not be decoded.")
		return
	}

	app, err := h.Svc.ApplyMemberTerms(r.Context(), id, memberID, in)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, app)
}

func (h *ApplicationHandler) transition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id string) (core.Application, error)) {
	id := chi.URLParam(r, "application_id")
	app, err := op(r.Context(), id)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, app)
}

func (h *ApplicationHandler) encode(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Error("failed to encode response", "err", err)
	}
}
