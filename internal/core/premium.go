package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MemberInput is one person to be rated: demographics for the rate card
// lookup plus declared conditions for the loading engine.
type MemberInput struct {
	MemberID   string   `json:"member_id,omitempty"`
	Age        int      `json:"age"`
	Gender     string   `json:"gender,omitempty"`
	Region     string   `json:"region,omitempty"`
	Conditions []string `json:"conditions,omitempty"`
}

// QuoteInput asks for a premium over a member set. RateCardID overrides the
// plan's active card when set. GroupSize > 0 selects corporate tier pricing.
type QuoteInput struct {
	SchemeID         string           `json:"scheme_id,omitempty"`
	PlanID           string           `json:"plan_id"`
	RateCardID       string           `json:"rate_card_id,omitempty"`
	GroupID          string           `json:"group_id,omitempty"`
	GroupSize        int              `json:"group_size,omitempty"`
	BillingFrequency BillingFrequency `json:"billing_frequency,omitempty"`
	CoverStart       *time.Time       `json:"cover_start,omitempty"`
	Members          []MemberInput    `json:"members"`
	AddonIDs         []string         `json:"addon_ids,omitempty"`
}

// MemberPremium is the per-member rating outcome.
type MemberPremium struct {
	MemberID      string             `json:"member_id,omitempty"`
	Age           int                `json:"age"`
	BasePremium   decimal.Decimal    `json:"base_premium"`
	LoadingAmount decimal.Decimal    `json:"loading_amount"`
	TotalPremium  decimal.Decimal    `json:"total_premium"`
	Loadings      []AppliedLoading   `json:"loadings,omitempty"`
	Exclusions    []AppliedExclusion `json:"exclusions,omitempty"`
	Unmatched     []string           `json:"unmatched_conditions,omitempty"`
}

// AddonBreakdown is one addon's priced contribution.
type AddonBreakdown struct {
	AddonID     string           `json:"addon_id"`
	Name        string           `json:"name"`
	PricingType AddonPricingType `json:"pricing_type"`
	Amount      decimal.Decimal  `json:"amount"`
}

// PremiumBreakdown is the aggregator output. All figures are annual;
// PeriodPremium is the gross converted to the requested billing frequency.
// Success=false with Message means no rate entry matched and nothing else
// was computed.
type PremiumBreakdown struct {
	Success          bool              `json:"success"`
	Message          string            `json:"message,omitempty"`
	Currency         string            `json:"currency,omitempty"`
	BillingFrequency BillingFrequency  `json:"billing_frequency"`
	BasePremium      decimal.Decimal   `json:"base_premium"`
	AddonPremium     decimal.Decimal   `json:"addon_premium"`
	LoadingAmount    decimal.Decimal   `json:"loading_amount"`
	DiscountAmount   decimal.Decimal   `json:"discount_amount"`
	TotalPremium     decimal.Decimal   `json:"total_premium"`
	TaxAmount        decimal.Decimal   `json:"tax_amount"`
	GrossPremium     decimal.Decimal   `json:"gross_premium"`
	PeriodPremium    decimal.Decimal   `json:"period_premium"`
	Members          []MemberPremium   `json:"members,omitempty"`
	Addons           []AddonBreakdown  `json:"addons,omitempty"`
	Discounts        []AppliedDiscount `json:"discounts,omitempty"`
}

func (in QuoteInput) Validate() error {
	if in.PlanID == "" && in.RateCardID == "" {
		return fmt.Errorf("%w: plan_id or rate_card_id is required", ErrValidation)
	}
	if len(in.Members) == 0 {
		return fmt.Errorf("%w: at least one member is required", ErrValidation)
	}
	for _, m := range in.Members {
		if m.Age < 0 || m.Age > 130 {
			return fmt.Errorf("%w: invalid age %d", ErrValidation, m.Age)
		}
	}
	if in.BillingFrequency != "" && !in.BillingFrequency.Valid() {
		return fmt.Errorf("%w: unknown billing frequency %q", ErrValidation, in.BillingFrequency)
	}
	return nil
}
