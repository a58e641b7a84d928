package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/healthbridge/go-medscheme/internal/core"
	"github.com/healthbridge/go-medscheme/internal/platform/ids"
	"github.com/healthbridge/go-medscheme/pkg/problem"
)

// CatalogHandler exposes the rating reference data: plans, addons and their
// rates, discount rules, promo codes and medical loading rules. Upserts are
// admin operations; reads feed broker tooling.
type CatalogHandler struct {
	Plans     core.PlanRepo
	Addons    core.AddonRepo
	Discounts core.DiscountRuleRepo
	Promos    core.PromoCodeRepo
	Loadings  core.LoadingRuleRepo
	Log       *slog.Logger
}

func NewCatalogHandler(plans core.PlanRepo, addons core.AddonRepo, discounts core.DiscountRuleRepo,
	promos core.PromoCodeRepo, loadings core.LoadingRuleRepo, log *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		Plans:     plans,
		Addons:    addons,
		Discounts: discounts,
		Promos:    promos,
		Loadings:  loadings,
		Log:       log,
	}
}

func (h *CatalogHandler) Mount(r chi.Router) {
	r.Route("/catalog", func(r chi.Router) {
		r.Get("/plans", h.ListPlans)
		r.Put("/plans/{plan_id}", h.UpsertPlan)

		r.Get("/addons", h.ListAddons)
		r.Put("/addons/{addon_id}", h.UpsertAddon)
		r.Put("/addon-rates/{rate_id}", h.UpsertAddonRate)

		r.Put("/discount-rules/{rule_id}", h.UpsertDiscountRule)
		r.Put("/promo-codes/{promo_id}", h.UpsertPromoCode)

		r.Get("/loading-rules", h.ListLoadingRules)
		r.Put("/loading-rules/{rule_id}", h.UpsertLoadingRule)
	})
}

func (h *CatalogHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Plans.List(r.Context())
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to list plans")
		return
	}
	h.encode(w, plans)
}

func (h *CatalogHandler) UpsertPlan(w http.ResponseWriter, r *http.Request) {
	var in core.Plan
	if !h.decode(w, r, &in) {
		return
	}
	in.ID = chi.URLParam(r, "plan_id")
	if in.Name == "" {
		problem.Write(w, http.StatusUnprocessableEntity, "Validation Error", "name is required")
		return
	}
	if err := h.Plans.Upsert(r.Context(), in); err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, in)
}

func (h *CatalogHandler) ListAddons(w http.ResponseWriter, r *http.Request) {
	addons, err := h.Addons.ListAddons(r.Context())
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to list addons")
		return
	}
	h.encode(w, addons)
}

func (h *CatalogHandler) UpsertAddon(w http.ResponseWriter, r *http.Request) {
	var in core.Addon
	if !h.decode(w, r, &in) {
		return
	}
	in.ID = chi.URLParam(r, "addon_id")
	if in.Code == "" || in.Name == "" {
		problem.Write(w, http.StatusUnprocessableEntity, "Validation Error", "code and name are required")
		return
	}
	if err := h.Addons.UpsertAddon(r.Context(), in); err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, in)
}

func (h *CatalogHandler) UpsertAddonRate(w http.ResponseWriter, r *http.Request) {
	var in core.AddonRate
	if !h.decode(w, r, &in) {
		return
	}
	in.ID = chi.URLParam(r, "rate_id")
	if in.AddonID == "" {
		problem.Write(w, http.StatusUnprocessableEntity, "Validation Error", "addon_id is required")
		return
	}
	if err := h.Addons.UpsertRate(r.Context(), in); err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, in)
}

func (h *CatalogHandler) UpsertDiscountRule(w http.ResponseWriter, r *http.Request) {
	var in core.DiscountRule
	if !h.decode(w, r, &in) {
		return
	}
	in.ID = chi.URLParam(r, "rule_id")
	if in.Name == "" {
		problem.Write(w, http.StatusUnprocessableEntity, "Validation Error", "name is required")
		return
	}
	if err := h.Discounts.Upsert(r.Context(), in); err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, in)
}

func (h *CatalogHandler) UpsertPromoCode(w http.ResponseWriter, r *http.Request) {
	var in core.PromoCode
	if !h.decode(w, r, &in) {
		return
	}
	in.ID = chi.URLParam(r, "promo_id")
	if in.ID == "" {
		in.ID = ids.New()
	}
	if in.Code == "" || in.DiscountRuleID == "" {
		problem.Write(w, http.StatusUnprocessableEntity, "Validation Error", "code and discount_rule_id are required")
		return
	}
	if err := h.Promos.Upsert(r.Context(), in); err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, in)
}

func (h *CatalogHandler) ListLoadingRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Loadings.FindActive(r.Context())
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to list loading rules")
		return
	}
	h.encode(w, rules)
}

func (h *CatalogHandler) UpsertLoadingRule(w http.ResponseWriter, r *http.Request) {
	var in core.LoadingRule
	if !h.decode(w, r, &in) {
		return
	}
	in.ID = chi.URLParam(r, "rule_id")
	if in.ConditionName == "" {
		problem.Write(w, http.StatusUnprocessableEntity, "Validation Error", "condition_name is required")
		return
	}
	if err := h.Loadings.Upsert(r.Context(), in); err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}
	h.encode(w, in)
}

func (h *CatalogHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		problem.Write(w, http.StatusBadRequest, "Invalid JSON", "Body could not be decoded.")
		return false
	}
	return true
}

func (h *CatalogHandler) encode(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Error("failed to encode response", "err", err)
	}
}
