package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/healthbridge/go-medscheme/internal/core"
	"github.com/healthbridge/go-medscheme/pkg/problem"
)

type PolicyHandler struct {
	Svc core.PolicyService
	Log *slog.Logger
}

func NewPolicyHandler(svc core.PolicyService, log *slog.Logger) *PolicyHandler {
	return &PolicyHandler{Svc: svc, Log: log}
}

func (h *PolicyHandler) Mount(r chi.Router) {
	r.Route("/policies", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{policy_id}", h.Get)
		r.Get("/number/{number}", h.GetByNumber)

		r.Post("/{policy_id}:suspend", h.Suspend)
		r.Post("/{policy_id}:reinstate", h.Reinstate)
		r.Post("/{policy_id}:cancel", h.Cancel)
		r.Post("/{policy_id}:renew", h.Renew)

		r.Post("/{policy_id}/members", h.AddMember)
		r.Delete("/{policy_id}/members/{member_id}", h.RemoveMember)
		r.Post("/{policy_id}/members/{member_id}:suspend", h.SuspendMember)
		r.Post("/{policy_id}/members/{member_id}:reinstate", h.ReinstateMember)
	})
}

// List pages issued policies, optionally filtered by status and plan.
// 200: {policies, total}; 500: internal error.
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.PolicyFilter{
		Status: core.PolicyStatus(q.Get("status")),
		PlanID: q.Get("plan_id"),
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	policies, total, err := h.Svc.List(r.Context(), filter, limit, offset)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to list policies")
		return
	}

	h.encode(w, map[string]any{"policies": policies, "total": total})
}

func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "policy_id")
	p, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to get policy")
		return
	}
	h.encode(w, p)
}

func (h *PolicyHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	p, err := h.Svc.GetByNumber(r.Context(), number)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to get policy")
		return
	}
	h.encode(w, p)
}

type policyActionRequest struct {
	Reason      string `json:"reason,omitempty"`
	CancelledBy string `json:"cancelled_by,omitempty"`
}

func (h *PolicyHandler) decodeAction(w http.ResponseWriter, r *http.Request) (policyActionRequest, bool) {
	var in policyActionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			problem.Write(w, http.StatusBadRequest, "Invalid JSON", "Body could not be decoded.")
			return in, false
		}
	}
	return in, true
}

// Suspend pauses cover; the suspension cascades to all active members.
// 200: JSON; 422: invalid lifecycle state; 404: not found.
func (h *PolicyHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "policy_id")
	in, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	p, err := h.Svc.Suspend(r.Context(), id, in.Reason)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, p)
}

func (h *PolicyHandler) Reinstate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "policy_id")
	p, err := h.Svc.Reinstate(r.Context(), id)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, p)
}

func (h *PolicyHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "policy_id")
	in, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	p, err := h.Svc.Cancel(r.Context(), id, in.Reason, in.CancelledBy)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, p)
}

// Renew opens a draft renewal application pre-filled from the policy.
// 201: application JSON; 422: policy not active.
func (h *PolicyHandler) Renew(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "policy_id")
	app, err := h.Svc.CreateRenewalApplication(r.Context(), id)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}

	w.WriteHeader(http.StatusCreated)
	h.encode(w, app)
}

func (h *PolicyHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "policy_id")
	var in core.NewMemberInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		problem.Write(w, http.StatusBadRequest, "Invalid JSON", "Body could not be decoded.")
		return
	}

	p, err := h.Svc.AddMember(r.Context(), id, in)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, p)
}

func (h *PolicyHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "policy_id")
	memberID := chi.URLParam(r, "member_id")
	in, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	p, err := h.Svc.RemoveMember(r.Context(), id, memberID, in.Reason)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, p)
}

func (h *PolicyHandler) SuspendMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "policy_id")
	memberID := chi.URLParam(r, "member_id")
	in, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	p, err := h.Svc.SuspendMember(r.Context(), id, memberID, in.Reason)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, p)
}

func (h *PolicyHandler) ReinstateMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "policy_id")
	memberID := chi.URLParam(r, "member_id")
	p, err := h.Svc.ReinstateMember(r.Context(), id, memberID)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, p)
}

func (h *PolicyHandler) encode(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Error("failed to encode response", "err", err)
	}
}
