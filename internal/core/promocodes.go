package core

import (
	"context"
	"fmt"
	"time"
)

// PromoCode wraps a DiscountRule behind a redeemable code with its own
// validity window, usage caps and eligibility allow-lists.
type PromoCode struct {
	ID               string     `json:"id"`
	Code             string     `json:"code"` // stored uppercased, unique
	DiscountRuleID   string     `json:"discount_rule_id"`
	ValidFrom        *time.Time `json:"valid_from,omitempty"`
	ValidUntil       *time.Time `json:"valid_until,omitempty"`
	MaxUses          *int       `json:"max_uses,omitempty"`
	CurrentUses      int        `json:"current_uses"`
	EligibleSchemeIDs []string  `json:"eligible_scheme_ids,omitempty"`
	EligiblePlanIDs  []string   `json:"eligible_plan_ids,omitempty"`
	EligibleGroupIDs []string   `json:"eligible_group_ids,omitempty"`
	Active           bool       `json:"active"`
	CreatedAt        time.Time  `json:"created_at"`
}

type PromoCodeRepo interface {
	GetByCode(ctx context.Context, code string) (PromoCode, error)
	Upsert(ctx context.Context, p PromoCode) error
	// ConsumeUse atomically increments current_uses while it is still under
	// max_uses; exhausted codes fail with ErrPromoExhausted. This is the
	// guard against double-spending a single-use code under concurrency.
	ConsumeUse(ctx context.Context, id string) error
}

var (
	ErrPromoNotFound  = fmt.Errorf("%w: promo code not found", ErrNotFound)
	ErrPromoExhausted = fmt.Errorf("%w: promo code usage limit reached", ErrValidation)
)

// Usable checks the code's own gate: active, inside the validity window,
// uses remaining. The reason string is caller-facing.
func (p PromoCode) Usable(now time.Time) (bool, string) {
	if !p.Active {
		return false, "promo code is not active"
	}
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false, "promo code is not yet valid"
	}
	if p.ValidUntil != nil && now.After(*p.ValidUntil) {
		return false, "promo code has expired"
	}
	if p.MaxUses != nil && p.CurrentUses >= *p.MaxUses {
		return false, "promo code usage limit reached"
	}
	return true, ""
}

// EligibleFor checks the scheme/plan/group allow-lists; an empty list is
// unrestricted.
func (p PromoCode) EligibleFor(schemeID, planID, groupID string) (bool, string) {
	if !inAllowList(p.EligibleSchemeIDs, schemeID) {
		return false, "promo code is not available for this scheme"
	}
	if !inAllowList(p.EligiblePlanIDs, planID) {
		return false, "promo code is not available for this plan"
	}
	if !inAllowList(p.EligibleGroupIDs, groupID) {
		return false, "promo code is not available for this group"
	}
	return true, ""
}

func inAllowList(list []string, id string) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
