package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/healthbridge/go-medscheme/internal/core"
	"github.com/healthbridge/go-medscheme/pkg/problem"
)

type PremiumHandler struct {
	Svc       core.PremiumService
	Discounts core.DiscountService
	Loadings  core.LoadingService
	Log       *slog.Logger
}

func NewPremiumHandler(svc core.PremiumService, discounts core.DiscountService, loadings core.LoadingService, log *slog.Logger) *PremiumHandler {
	return &PremiumHandler{Svc: svc, Discounts: discounts, Loadings: loadings, Log: log}
}

func (h *PremiumHandler) Mount(r chi.Router) {
	r.Route("/premium", func(r chi.Router) {
		r.Post("/quote", h.Quote)
		r.Post("/promo", h.ApplyPromo)
		r.Post("/discounts", h.CalculateDiscounts)
		r.Post("/loadings", h.CalculateLoadings)
		r.Post("/periodize", h.Periodize)
	})
}

// Quote rates an ad-hoc member set without persisting anything.
// 200: breakdown (success=false when no rate matches); 422: invalid input; 500: internal error.
func (h *PremiumHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var in core.QuoteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		problem.Write(w, http.StatusBadRequest, "Invalid JSON", "Body could not be decoded.")
		return
	}

	breakdown, err := h.Svc.CalculateTotalPremium(r.Context(), in)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}

	if err := json.NewEncoder(w).Encode(breakdown); err != nil {
		h.Log.Error("failed to encode premium breakdown", "err", err)
	}
}

type applyPromoRequest struct {
	Code    string               `json:"code"`
	Premium decimal.Decimal      `json:"premium"`
	Context core.DiscountContext `json:"context"`
}

// ApplyPromo validates and redeems a promo code against a premium.
// 200: result (success=false with a reason for expected failures); 500: internal error.
func (h *PremiumHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	var in applyPromoRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		problem.Write(w, http.StatusBadRequest, "Invalid JSON", "Body could not be decoded.")
		return
	}
	if in.Premium.IsNegative() {
		problem.Write(w, http.StatusUnprocessableEntity, "Validation Error", "premium must not be negative")
		return
	}

	result, err := h.Discounts.ApplyPromoCode(r.Context(), in.Code, in.Premium, in.Context)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.Log.Error("failed to encode promo result", "err", err)
	}
}

type calculateDiscountsRequest struct {
	Premium decimal.Decimal      `json:"premium"`
	Context core.DiscountContext `json:"context"`
}

// CalculateDiscounts previews the automatic rules in scope for a context.
// 200: discount result; 422: negative premium; 500: internal error.
func (h *PremiumHandler) CalculateDiscounts(w http.ResponseWriter, r *http.Request) {
	var in calculateDiscountsRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		problem.Write(w, http.StatusBadRequest, "Invalid JSON", "Body could not be decoded.")
		return
	}
	if in.Premium.IsNegative() {
		problem.Write(w, http.StatusUnprocessableEntity, "Validation Error", "premium must not be negative")
		return
	}

	result, err := h.Discounts.CalculateDiscounts(r.Context(), in.Premium, in.Context)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.Log.Error("failed to encode discount result", "err", err)
	}
}

type calculateLoadingsRequest struct {
	Premium    decimal.Decimal `json:"premium"`
	Conditions []string        `json:"conditions"`
	CoverStart *time.Time      `json:"cover_start,omitempty"`
}

// CalculateLoadings previews the medical loadings for a set of declared
// conditions without touching any application.
// 200: loading result (unmatched conditions listed); 500: internal error.
func (h *PremiumHandler) CalculateLoadings(w http.ResponseWriter, r *http.Request) {
	var in calculateLoadingsRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		problem.Write(w, http.StatusBadRequest, "Invalid JSON", "Body could not be decoded.")
		return
	}
	if in.Premium.IsNegative() {
		problem.Write(w, http.StatusUnprocessableEntity, "Validation Error", "premium must not be negative")
		return
	}
	if len(in.Conditions) == 0 {
		problem.Write(w, http.StatusUnprocessableEntity, "Validation Error", "at least one condition is required")
		return
	}

	result, err := h.Loadings.CalculateLoadings(r.Context(), in.Premium, in.Conditions, in.CoverStart)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.Log.Error("failed to encode loading result", "err", err)
	}
}

type periodizeRequest struct {
	Annual decimal.Decimal       `json:"annual"`
	From   core.BillingFrequency `json:"from,omitempty"`
	To     core.BillingFrequency `json:"to"`
}

type periodizeResponse struct {
	Amount    decimal.Decimal       `json:"amount"`
	Frequency core.BillingFrequency `json:"frequency"`
}

// Periodize converts an annual premium (or an instalment at another
// frequency when "from" is set) to one instalment at the target frequency.
// 200: converted amount; 422: unknown frequency.
func (h *PremiumHandler) Periodize(w http.ResponseWriter, r *http.Request) {
	var in periodizeRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		problem.Write(w, http.StatusBadRequest, "Invalid JSON", "Body could not be decoded.")
		return
	}

	var (
		amount decimal.Decimal
		err    error
	)
	if in.From != "" {
		amount, err = core.ConvertFrequency(in.Annual, in.From, in.To)
	} else {
		amount, err = h.Svc.Periodize(in.Annual, in.To)
	}
	if err != nil {
		writeError(r.Context(), h.Log, w, err, err.Error())
		return
	}

	if err := json.NewEncoder(w).Encode(periodizeResponse{Amount: amount, Frequency: in.To}); err != nil {
		h.Log.Error("failed to encode periodize response", "err", err)
	}
}
