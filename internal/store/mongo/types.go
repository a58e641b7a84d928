package mongo

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/healthbridge/go-medscheme/internal/core"
)

const (
	ColPlans         = "plans"
	ColRateCards     = "rate_cards"
	ColAddons        = "addons"
	ColAddonRates    = "addon_rates"
	ColDiscountRules = "discount_rules"
	ColPromoCodes    = "promo_codes"
	ColLoadingRules  = "loading_rules"
	ColApplications  = "applications"
	ColPolicies      = "policies"
	ColCounters      = "counters"
)

// Money is stored as decimal strings so amounts round-trip exactly;
// float64 in bson would silently corrupt cents.
func dec(d decimal.Decimal) string { return d.String() }

func toDec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func toDecPtr(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	d := toDec(*s)
	return &d
}

// Plan
type PlanDoc struct {
	ID       string `bson:"_id"`
	SchemeID string `bson:"scheme_id"`
	Name     string `bson:"name"`
	Active   bool   `bson:"active"`
}

func fromPlanDoc(d PlanDoc) core.Plan {
	return core.Plan{ID: d.ID, SchemeID: d.SchemeID, Name: d.Name, Active: d.Active}
}

func toPlanDoc(p core.Plan) PlanDoc {
	return PlanDoc{ID: p.ID, SchemeID: p.SchemeID, Name: p.Name, Active: p.Active}
}

// RateCard
type RateCardEntryDoc struct {
	MinAge      int    `bson:"min_age"`
	MaxAge      int    `bson:"max_age"`
	Gender      string `bson:"gender,omitempty"`
	Region      string `bson:"region,omitempty"`
	BasePremium string `bson:"base_premium"`
}

type RateCardTierDoc struct {
	MinMembers         int    `bson:"min_members"`
	MaxMembers         int    `bson:"max_members"`
	TierPremium        string `bson:"tier_premium"`
	ExtraMemberPremium string `bson:"extra_member_premium,omitempty"`
}

type RateCardDoc struct {
	ID         string             `bson:"_id"`
	PlanID     string             `bson:"plan_id"`
	Currency   string             `bson:"currency"`
	Version    string             `bson:"version"`
	Status     string             `bson:"status"`
	IsActive   bool               `bson:"is_active"`
	ValidFrom  time.Time          `bson:"valid_from"`
	ValidUntil *time.Time         `bson:"valid_until,omitempty"`
	Entries    []RateCardEntryDoc `bson:"entries"`
	Tiers      []RateCardTierDoc  `bson:"tiers,omitempty"`
	CreatedAt  time.Time          `bson:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at"`
}

func fromRateCardDoc(d RateCardDoc) core.RateCard {
	rc := core.RateCard{
		ID:         d.ID,
		PlanID:     d.PlanID,
		Currency:   d.Currency,
		Version:    d.Version,
		Status:     core.RateCardStatus(d.Status),
		IsActive:   d.IsActive,
		ValidFrom:  d.ValidFrom,
		ValidUntil: d.ValidUntil,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	for _, e := range d.Entries {
		rc.Entries = append(rc.Entries, core.RateCardEntry{
			MinAge:      e.MinAge,
			MaxAge:      e.MaxAge,
			Gender:      e.Gender,
			Region:      e.Region,
			BasePremium: toDec(e.BasePremium),
		})
	}
	for _, t := range d.Tiers {
		rc.Tiers = append(rc.Tiers, core.RateCardTier{
			MinMembers:         t.MinMembers,
			MaxMembers:         t.MaxMembers,
			TierPremium:        toDec(t.TierPremium),
			ExtraMemberPremium: toDec(t.ExtraMemberPremium),
		})
	}
	return rc
}

func toRateCardDoc(rc core.RateCard) RateCardDoc {
	d := RateCardDoc{
		ID:         rc.ID,
		PlanID:     rc.PlanID,
		Currency:   rc.Currency,
		Version:    rc.Version,
		Status:     string(rc.Status),
		IsActive:   rc.IsActive,
		ValidFrom:  rc.ValidFrom,
		ValidUntil: rc.ValidUntil,
		CreatedAt:  rc.CreatedAt,
		UpdatedAt:  rc.UpdatedAt,
	}
	for _, e := range rc.Entries {
		d.Entries = append(d.Entries, RateCardEntryDoc{
			MinAge:      e.MinAge,
			MaxAge:      e.MaxAge,
			Gender:      e.Gender,
			Region:      e.Region,
			BasePremium: dec(e.BasePremium),
		})
	}
	for _, t := range rc.Tiers {
		d.Tiers = append(d.Tiers, RateCardTierDoc{
			MinMembers:         t.MinMembers,
			MaxMembers:         t.MaxMembers,
			TierPremium:        dec(t.TierPremium),
			ExtraMemberPremium: dec(t.ExtraMemberPremium),
		})
	}
	return d
}

// Addon
type AddonDoc struct {
	ID          string `bson:"_id"`
	Code        string `bson:"code"` // unique index
	Name        string `bson:"name"`
	Description string `bson:"description,omitempty"`
	Active      bool   `bson:"active"`
}

func fromAddonDoc(d AddonDoc) core.Addon {
	return core.Addon{ID: d.ID, Code: d.Code, Name: d.Name, Description: d.Description, Active: d.Active}
}

func toAddonDoc(a core.Addon) AddonDoc {
	return AddonDoc{ID: a.ID, Code: a.Code, Name: a.Name, Description: a.Description, Active: a.Active}
}

type AddonRateEntryDoc struct {
	MinAge  int    `bson:"min_age"`
	MaxAge  int    `bson:"max_age"`
	Gender  string `bson:"gender,omitempty"`
	Premium string `bson:"premium"`
}

type AddonRateDoc struct {
	ID              string              `bson:"_id"`
	AddonID         string              `bson:"addon_id"`
	PlanID          string              `bson:"plan_id,omitempty"`
	PricingType     string              `bson:"pricing_type"`
	Currency        string              `bson:"currency"`
	Amount          string              `bson:"amount"`
	Percentage      string              `bson:"percentage"`
	PercentageBasis string              `bson:"percentage_basis,omitempty"`
	Entries         []AddonRateEntryDoc `bson:"entries,omitempty"`
	ValidFrom       time.Time           `bson:"valid_from"`
	ValidUntil      *time.Time          `bson:"valid_until,omitempty"`
	Active          bool                `bson:"active"`
}

func fromAddonRateDoc(d AddonRateDoc) core.AddonRate {
	r := core.AddonRate{
		ID:              d.ID,
		AddonID:         d.AddonID,
		PlanID:          d.PlanID,
		PricingType:     core.AddonPricingType(d.PricingType),
		Currency:        d.Currency,
		Amount:          toDec(d.Amount),
		Percentage:      toDec(d.Percentage),
		PercentageBasis: core.PercentageBasis(d.PercentageBasis),
		ValidFrom:       d.ValidFrom,
		ValidUntil:      d.ValidUntil,
		Active:          d.Active,
	}
	for _, e := range d.Entries {
		r.Entries = append(r.Entries, core.AddonRateEntry{
			MinAge:  e.MinAge,
			MaxAge:  e.MaxAge,
			Gender:  e.Gender,
			Premium: toDec(e.Premium),
		})
	}
	return r
}

func toAddonRateDoc(r core.AddonRate) AddonRateDoc {
	d := AddonRateDoc{
		ID:              r.ID,
		AddonID:         r.AddonID,
		PlanID:          r.PlanID,
		PricingType:     string(r.PricingType),
		Currency:        r.Currency,
		Amount:          dec(r.Amount),
		Percentage:      dec(r.Percentage),
		PercentageBasis: string(r.PercentageBasis),
		ValidFrom:       r.ValidFrom,
		ValidUntil:      r.ValidUntil,
		Active:          r.Active,
	}
	for _, e := range r.Entries {
		d.Entries = append(d.Entries, AddonRateEntryDoc{
			MinAge:  e.MinAge,
			MaxAge:  e.MaxAge,
			Gender:  e.Gender,
			Premium: dec(e.Premium),
		})
	}
	return d
}

// DiscountRule
type TriggerRuleDoc struct {
	Field  string   `bson:"field"`
	Kind   string   `bson:"kind"`
	Value  string   `bson:"value,omitempty"`
	Min    *int     `bson:"min,omitempty"`
	Max    *int     `bson:"max,omitempty"`
	Values []string `bson:"values,omitempty"`
}

type DiscountRuleDoc struct {
	ID                  string           `bson:"_id"`
	Name                string           `bson:"name"`
	SchemeID            string           `bson:"scheme_id,omitempty"`
	PlanID              string           `bson:"plan_id,omitempty"`
	AdjustmentType      string           `bson:"adjustment_type"`
	ValueType           string           `bson:"value_type"`
	Value               string           `bson:"value"`
	ApplicationMethod   string           `bson:"application_method"`
	TriggerRules        []TriggerRuleDoc `bson:"trigger_rules,omitempty"`
	CanStack            bool             `bson:"can_stack"`
	Priority            int              `bson:"priority"`
	MaxDiscountAmount   *string          `bson:"max_discount_amount,omitempty"`
	MaxTotalDiscountPct *string          `bson:"max_total_discount,omitempty"`
	UsageLimit          *int             `bson:"usage_limit,omitempty"`
	UsageCount          int              `bson:"usage_count"`
	EffectiveFrom       *time.Time       `bson:"effective_from,omitempty"`
	EffectiveTo         *time.Time       `bson:"effective_to,omitempty"`
	Active              bool             `bson:"active"`
}

func fromDiscountRuleDoc(d DiscountRuleDoc) core.DiscountRule {
	r := core.DiscountRule{
		ID:                  d.ID,
		Name:                d.Name,
		SchemeID:            d.SchemeID,
		PlanID:              d.PlanID,
		AdjustmentType:      core.AdjustmentType(d.AdjustmentType),
		ValueType:           core.ValueType(d.ValueType),
		Value:               toDec(d.Value),
		ApplicationMethod:   core.ApplicationMethod(d.ApplicationMethod),
		CanStack:            d.CanStack,
		Priority:            d.Priority,
		MaxDiscountAmount:   toDecPtr(d.MaxDiscountAmount),
		MaxTotalDiscountPct: toDecPtr(d.MaxTotalDiscountPct),
		UsageLimit:          d.UsageLimit,
		UsageCount:          d.UsageCount,
		EffectiveFrom:       d.EffectiveFrom,
		EffectiveTo:         d.EffectiveTo,
		Active:              d.Active,
	}
	for _, t := range d.TriggerRules {
		r.TriggerRules = append(r.TriggerRules, core.TriggerRule{
			Field:  t.Field,
			Kind:   core.TriggerKind(t.Kind),
			Value:  t.Value,
			Min:    t.Min,
			Max:    t.Max,
			Values: t.Values,
		})
	}
	return r
}

func toDiscountRuleDoc(r core.DiscountRule) DiscountRuleDoc {
	d := DiscountRuleDoc{
		ID:                  r.ID,
		Name:                r.Name,
		SchemeID:            r.SchemeID,
		PlanID:              r.PlanID,
		AdjustmentType:      string(r.AdjustmentType),
		ValueType:           string(r.ValueType),
		Value:               dec(r.Value),
		ApplicationMethod:   string(r.ApplicationMethod),
		CanStack:            r.CanStack,
		Priority:            r.Priority,
		MaxDiscountAmount:   decPtr(r.MaxDiscountAmount),
		MaxTotalDiscountPct: decPtr(r.MaxTotalDiscountPct),
		UsageLimit:          r.UsageLimit,
		UsageCount:          r.UsageCount,
		EffectiveFrom:       r.EffectiveFrom,
		EffectiveTo:         r.EffectiveTo,
		Active:              r.Active,
	}
	for _, t := range r.TriggerRules {
		d.TriggerRules = append(d.TriggerRules, TriggerRuleDoc{
			Field:  t.Field,
			Kind:   string(t.Kind),
			Value:  t.Value,
			Min:    t.Min,
			Max:    t.Max,
			Values: t.Values,
		})
	}
	return d
}

// PromoCode
type PromoCodeDoc struct {
	ID                string     `bson:"_id"`
	Code              string     `bson:"code"` // unique index, uppercased
	DiscountRuleID    string     `bson:"discount_rule_id"`
	ValidFrom         *time.Time `bson:"valid_from,omitempty"`
	ValidUntil        *time.Time `bson:"valid_until,omitempty"`
	MaxUses           *int       `bson:"max_uses,omitempty"`
	CurrentUses       int        `bson:"current_uses"`
	EligibleSchemeIDs []string   `bson:"eligible_scheme_ids,omitempty"`
	EligiblePlanIDs   []string   `bson:"eligible_plan_ids,omitempty"`
	EligibleGroupIDs  []string   `bson:"eligible_group_ids,omitempty"`
	Active            bool       `bson:"active"`
	CreatedAt         time.Time  `bson:"created_at"`
}

func fromPromoCodeDoc(d PromoCodeDoc) core.PromoCode {
	return core.PromoCode{
		ID:                d.ID,
		Code:              d.Code,
		DiscountRuleID:    d.DiscountRuleID,
		ValidFrom:         d.ValidFrom,
		ValidUntil:        d.ValidUntil,
		MaxUses:           d.MaxUses,
		CurrentUses:       d.CurrentUses,
		EligibleSchemeIDs: d.EligibleSchemeIDs,
		EligiblePlanIDs:   d.EligiblePlanIDs,
		EligibleGroupIDs:  d.EligibleGroupIDs,
		Active:            d.Active,
		CreatedAt:         d.CreatedAt,
	}
}

func toPromoCodeDoc(p core.PromoCode) PromoCodeDoc {
	return PromoCodeDoc{
		ID:                p.ID,
		Code:              p.Code,
		DiscountRuleID:    p.DiscountRuleID,
		ValidFrom:         p.ValidFrom,
		ValidUntil:        p.ValidUntil,
		MaxUses:           p.MaxUses,
		CurrentUses:       p.CurrentUses,
		EligibleSchemeIDs: p.EligibleSchemeIDs,
		EligiblePlanIDs:   p.EligiblePlanIDs,
		EligibleGroupIDs:  p.EligibleGroupIDs,
		Active:            p.Active,
		CreatedAt:         p.CreatedAt,
	}
}

// LoadingRule
type LoadingRuleDoc struct {
	ID               string   `bson:"_id"`
	ConditionName    string   `bson:"condition_name"`
	ICD10Code        string   `bson:"icd10_code,omitempty"`
	RelatedCodes     []string `bson:"related_codes,omitempty"`
	LoadingType      string   `bson:"loading_type"`
	Value            string   `bson:"value"`
	DurationType     string   `bson:"duration_type"`
	DurationMonths   *int     `bson:"duration_months,omitempty"`
	MinLoading       *string  `bson:"min_loading,omitempty"`
	MaxLoading       *string  `bson:"max_loading,omitempty"`
	ExclusionBenefit string   `bson:"exclusion_benefit,omitempty"`
	Active           bool     `bson:"active"`
}

func fromLoadingRuleDoc(d LoadingRuleDoc) core.LoadingRule {
	return core.LoadingRule{
		ID:               d.ID,
		ConditionName:    d.ConditionName,
		ICD10Code:        d.ICD10Code,
		RelatedCodes:     d.RelatedCodes,
		LoadingType:      core.LoadingType(d.LoadingType),
		Value:            toDec(d.Value),
		DurationType:     core.LoadingDuration(d.DurationType),
		DurationMonths:   d.DurationMonths,
		MinLoading:       toDecPtr(d.MinLoading),
		MaxLoading:       toDecPtr(d.MaxLoading),
		ExclusionBenefit: d.ExclusionBenefit,
		Active:           d.Active,
	}
}

func toLoadingRuleDoc(r core.LoadingRule) LoadingRuleDoc {
	return LoadingRuleDoc{
		ID:               r.ID,
		ConditionName:    r.ConditionName,
		ICD10Code:        r.ICD10Code,
		RelatedCodes:     r.RelatedCodes,
		LoadingType:      string(r.LoadingType),
		Value:            dec(r.Value),
		DurationType:     string(r.DurationType),
		DurationMonths:   r.DurationMonths,
		MinLoading:       decPtr(r.MinLoading),
		MaxLoading:       decPtr(r.MaxLoading),
		ExclusionBenefit: r.ExclusionBenefit,
		Active:           r.Active,
	}
}

// Shared applied-loading subdocuments
type AppliedLoadingDoc struct {
	RuleID        string     `bson:"rule_id"`
	Condition     string     `bson:"condition"`
	ConditionName string     `bson:"condition_name"`
	LoadingType   string     `bson:"loading_type"`
	Amount        string     `bson:"amount"`
	DurationType  string     `bson:"duration_type"`
	StartDate     time.Time  `bson:"start_date"`
	EndDate       *time.Time `bson:"end_date,omitempty"`
	ReviewDate    *time.Time `bson:"review_date,omitempty"`
	Status        string     `bson:"status"`
}

type AppliedExclusionDoc struct {
	RuleID           string `bson:"rule_id"`
	Condition        string `bson:"condition"`
	ConditionName    string `bson:"condition_name"`
	ExclusionBenefit string `bson:"exclusion_benefit,omitempty"`
}

func fromAppliedLoadingDocs(docs []AppliedLoadingDoc) []core.AppliedLoading {
	var out []core.AppliedLoading
	for _, d := range docs {
		out = append(out, core.AppliedLoading{
			RuleID:        d.RuleID,
			Condition:     d.Condition,
			ConditionName: d.ConditionName,
			LoadingType:   core.LoadingType(d.LoadingType),
			Amount:        toDec(d.Amount),
			DurationType:  core.LoadingDuration(d.DurationType),
			StartDate:     d.StartDate,
			EndDate:       d.EndDate,
			ReviewDate:    d.ReviewDate,
			Status:        core.LoadingStatus(d.Status),
		})
	}
	return out
}

func toAppliedLoadingDocs(loadings []core.AppliedLoading) []AppliedLoadingDoc {
	var out []AppliedLoadingDoc
	for _, l := range loadings {
		out = append(out, AppliedLoadingDoc{
			RuleID:        l.RuleID,
			Condition:     l.Condition,
			ConditionName: l.ConditionName,
			LoadingType:   string(l.LoadingType),
			Amount:        dec(l.Amount),
			DurationType:  string(l.DurationType),
			StartDate:     l.StartDate,
			EndDate:       l.EndDate,
			ReviewDate:    l.ReviewDate,
			Status:        string(l.Status),
		})
	}
	return out
}

func fromAppliedExclusionDocs(docs []AppliedExclusionDoc) []core.AppliedExclusion {
	var out []core.AppliedExclusion
	for _, d := range docs {
		out = append(out, core.AppliedExclusion{
			RuleID:           d.RuleID,
			Condition:        d.Condition,
			ConditionName:    d.ConditionName,
			ExclusionBenefit: d.ExclusionBenefit,
		})
	}
	return out
}

func toAppliedExclusionDocs(exclusions []core.AppliedExclusion) []AppliedExclusionDoc {
	var out []AppliedExclusionDoc
	for _, e := range exclusions {
		out = append(out, AppliedExclusionDoc{
			RuleID:           e.RuleID,
			Condition:        e.Condition,
			ConditionName:    e.ConditionName,
			ExclusionBenefit: e.ExclusionBenefit,
		})
	}
	return out
}

// Application
type ApplicationMemberDoc struct {
	ID                string                `bson:"_id"`
	FirstName         string                `bson:"first_name"`
	LastName          string                `bson:"last_name"`
	Role              string                `bson:"role"`
	DateOfBirth       *time.Time            `bson:"date_of_birth,omitempty"`
	AgeAtInception    int                   `bson:"age_at_inception"`
	Gender            string                `bson:"gender,omitempty"`
	Region            string                `bson:"region,omitempty"`
	Conditions        []string              `bson:"conditions,omitempty"`
	BasePremium       string                `bson:"base_premium"`
	LoadingAmount     string                `bson:"loading_amount"`
	TotalPremium      string                `bson:"total_premium"`
	UnderwritingState string                `bson:"underwriting_status"`
	AppliedLoadings   []AppliedLoadingDoc   `bson:"applied_loadings,omitempty"`
	AppliedExclusions []AppliedExclusionDoc `bson:"applied_exclusions,omitempty"`
	Active            bool                  `bson:"active"`
	CreatedAt         time.Time             `bson:"created_at"`
	UpdatedAt         time.Time             `bson:"updated_at"`
}

type ApplicationAddonDoc struct {
	ID          string `bson:"_id"`
	AddonID     string `bson:"addon_id"`
	Name        string `bson:"name"`
	PricingType string `bson:"pricing_type"`
	Amount      string `bson:"amount"`
}

type ApplicationDoc struct {
	ID               string                 `bson:"_id"`
	SchemeID         string                 `bson:"scheme_id,omitempty"`
	PlanID           string                 `bson:"plan_id"`
	RateCardID       string                 `bson:"rate_card_id,omitempty"`
	GroupID          string                 `bson:"group_id,omitempty"`
	GroupSize        int                    `bson:"group_size,omitempty"`
	BillingFrequency string                 `bson:"billing_frequency"`
	ProposedStart    time.Time              `bson:"proposed_start"`
	Status           string                 `bson:"status"`
	UWStatus         string                 `bson:"underwriting_status"`
	UnderwriterID    string                 `bson:"underwriter_id,omitempty"`
	DecisionNotes    string                 `bson:"decision_notes,omitempty"`
	QuoteValidUntil  *time.Time             `bson:"quote_valid_until,omitempty"`
	AcceptanceRef    string                 `bson:"acceptance_ref,omitempty"`
	PolicyID         string                 `bson:"policy_id,omitempty"`
	CancelReason     string                 `bson:"cancel_reason,omitempty"`
	Members          []ApplicationMemberDoc `bson:"members"`
	Addons           []ApplicationAddonDoc  `bson:"addons,omitempty"`
	MemberCount      int                    `bson:"member_count"`
	PrincipalCount   int                    `bson:"principal_count"`
	DependentCount   int                    `bson:"dependent_count"`
	Currency         string                 `bson:"currency,omitempty"`
	BasePremium      string                 `bson:"base_premium"`
	AddonPremium     string                 `bson:"addon_premium"`
	LoadingAmount    string                 `bson:"loading_amount"`
	DiscountAmount   string                 `bson:"discount_amount"`
	TotalPremium     string                 `bson:"total_premium"`
	TaxAmount        string                 `bson:"tax_amount"`
	GrossPremium     string                 `bson:"gross_premium"`
	Revision         int64                  `bson:"revision"`
	CreatedAt        time.Time              `bson:"created_at"`
	UpdatedAt        time.Time              `bson:"updated_at"`
}

func fromApplicationDoc(d ApplicationDoc) core.Application {
	app := core.Application{
		ID:               d.ID,
		SchemeID:         d.SchemeID,
		PlanID:           d.PlanID,
		RateCardID:       d.RateCardID,
		GroupID:          d.GroupID,
		GroupSize:        d.GroupSize,
		BillingFrequency: core.BillingFrequency(d.BillingFrequency),
		ProposedStart:    d.ProposedStart,
		Status:           core.ApplicationStatus(d.Status),
		UWStatus:         core.UnderwritingStatus(d.UWStatus),
		UnderwriterID:    d.UnderwriterID,
		DecisionNotes:    d.DecisionNotes,
		QuoteValidUntil:  d.QuoteValidUntil,
		AcceptanceRef:    d.AcceptanceRef,
		PolicyID:         d.PolicyID,
		CancelReason:     d.CancelReason,
		MemberCount:      d.MemberCount,
		PrincipalCount:   d.PrincipalCount,
		DependentCount:   d.DependentCount,
		Currency:         d.Currency,
		BasePremium:      toDec(d.BasePremium),
		AddonPremium:     toDec(d.AddonPremium),
		LoadingAmount:    toDec(d.LoadingAmount),
		DiscountAmount:   toDec(d.DiscountAmount),
		TotalPremium:     toDec(d.TotalPremium),
		TaxAmount:        toDec(d.TaxAmount),
		GrossPremium:     toDec(d.GrossPremium),
		Revision:         d.Revision,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	for _, m := range d.Members {
		app.Members = append(app.Members, core.ApplicationMember{
			ID:                m.ID,
			FirstName:         m.FirstName,
			LastName:          m.LastName,
			Role:              core.MemberRole(m.Role),
			DateOfBirth:       m.DateOfBirth,
			AgeAtInception:    m.AgeAtInception,
			Gender:            m.Gender,
			Region:            m.Region,
			Conditions:        m.Conditions,
			BasePremium:       toDec(m.BasePremium),
			LoadingAmount:     toDec(m.LoadingAmount),
			TotalPremium:      toDec(m.TotalPremium),
			UnderwritingState: core.UnderwritingStatus(m.UnderwritingState),
			AppliedLoadings:   fromAppliedLoadingDocs(m.AppliedLoadings),
			AppliedExclusions: fromAppliedExclusionDocs(m.AppliedExclusions),
			Active:            m.Active,
			CreatedAt:         m.CreatedAt,
			UpdatedAt:         m.UpdatedAt,
		})
	}
	for _, a := range d.Addons {
		app.Addons = append(app.Addons, core.ApplicationAddon{
			ID:          a.ID,
			AddonID:     a.AddonID,
			Name:        a.Name,
			PricingType: core.AddonPricingType(a.PricingType),
			Amount:      toDec(a.Amount),
		})
	}
	return app
}

func toApplicationDoc(app core.Application) ApplicationDoc {
	d := ApplicationDoc{
		ID:               app.ID,
		SchemeID:         app.SchemeID,
		PlanID:           app.PlanID,
		RateCardID:       app.RateCardID,
		GroupID:          app.GroupID,
		GroupSize:        app.GroupSize,
		BillingFrequency: string(app.BillingFrequency),
		ProposedStart:    app.ProposedStart,
		Status:           string(app.Status),
		UWStatus:         string(app.UWStatus),
		UnderwriterID:    app.UnderwriterID,
		DecisionNotes:    app.DecisionNotes,
		QuoteValidUntil:  app.QuoteValidUntil,
		AcceptanceRef:    app.AcceptanceRef,
		PolicyID:         app.PolicyID,
		CancelReason:     app.CancelReason,
		MemberCount:      app.MemberCount,
		PrincipalCount:   app.PrincipalCount,
		DependentCount:   app.DependentCount,
		Currency:         app.Currency,
		BasePremium:      dec(app.BasePremium),
		AddonPremium:     dec(app.AddonPremium),
		LoadingAmount:    dec(app.LoadingAmount),
		DiscountAmount:   dec(app.DiscountAmount),
		TotalPremium:     dec(app.TotalPremium),
		TaxAmount:        dec(app.TaxAmount),
		GrossPremium:     dec(app.GrossPremium),
		Revision:         app.Revision,
		CreatedAt:        app.CreatedAt,
		UpdatedAt:        app.UpdatedAt,
	}
	for _, m := range app.Members {
		d.Members = append(d.Members, ApplicationMemberDoc{
			ID:                m.ID,
			FirstName:         m.FirstName,
			LastName:          m.LastName,
			Role:              string(m.Role),
			DateOfBirth:       m.DateOfBirth,
			AgeAtInception:    m.AgeAtInception,
			Gender:            m.Gender,
			Region:            m.Region,
			Conditions:        m.Conditions,
			BasePremium:       dec(m.BasePremium),
			LoadingAmount:     dec(m.LoadingAmount),
			TotalPremium:      dec(m.TotalPremium),
			UnderwritingState: string(m.UnderwritingState),
			AppliedLoadings:   toAppliedLoadingDocs(m.AppliedLoadings),
			AppliedExclusions: toAppliedExclusionDocs(m.AppliedExclusions),
			Active:            m.Active,
			CreatedAt:         m.CreatedAt,
			UpdatedAt:         m.UpdatedAt,
		})
	}
	for _, a := range app.Addons {
		d.Addons = append(d.Addons, ApplicationAddonDoc{
			ID:          a.ID,
			AddonID:     a.AddonID,
			Name:        a.Name,
			PricingType: string(a.PricingType),
			Amount:      dec(a.Amount),
		})
	}
	return d
}

// Policy
type MemberDoc struct {
	ID                string                `bson:"_id"`
	FirstName         string                `bson:"first_name"`
	LastName          string                `bson:"last_name"`
	Role              string                `bson:"role"`
	Age               int                   `bson:"age"`
	Gender            string                `bson:"gender,omitempty"`
	Region            string                `bson:"region,omitempty"`
	CardNumber        string                `bson:"card_number,omitempty"`
	CardStatus        string                `bson:"card_status,omitempty"`
	WaitingPeriodEnd  *time.Time            `bson:"waiting_period_end,omitempty"`
	Status            string                `bson:"status"`
	SuspendedByPolicy bool                  `bson:"suspended_by_policy,omitempty"`
	SuspensionReason  string                `bson:"suspension_reason,omitempty"`
	TerminationReason string                `bson:"termination_reason,omitempty"`
	BasePremium       string                `bson:"base_premium"`
	LoadingAmount     string                `bson:"loading_amount"`
	TotalPremium      string                `bson:"total_premium"`
	Loadings          []AppliedLoadingDoc   `bson:"loadings,omitempty"`
	Exclusions        []AppliedExclusionDoc `bson:"exclusions,omitempty"`
	CreatedAt         time.Time             `bson:"created_at"`
	UpdatedAt         time.Time             `bson:"updated_at"`
}

type PolicyAddonDoc struct {
	ID          string `bson:"_id"`
	AddonID     string `bson:"addon_id"`
	Name        string `bson:"name"`
	PricingType string `bson:"pricing_type"`
	Amount      string `bson:"amount"`
}

type PolicyDoc struct {
	ID               string           `bson:"_id"`
	Number           string           `bson:"number"` // unique index
	ApplicationID    string           `bson:"application_id"`
	SchemeID         string           `bson:"scheme_id,omitempty"`
	PlanID           string           `bson:"plan_id"`
	RateCardID       string           `bson:"rate_card_id,omitempty"`
	GroupID          string           `bson:"group_id,omitempty"`
	GroupSize        int              `bson:"group_size,omitempty"`
	BillingFrequency string           `bson:"billing_frequency"`
	Status           string           `bson:"status"`
	EffectiveDate    time.Time        `bson:"effective_date"`
	RenewalDate      time.Time        `bson:"renewal_date"`
	SuspensionReason string           `bson:"suspension_reason,omitempty"`
	CancelReason     string           `bson:"cancel_reason,omitempty"`
	CancelledBy      string           `bson:"cancelled_by,omitempty"`
	IssuedBy         string           `bson:"issued_by,omitempty"`
	Members          []MemberDoc      `bson:"members"`
	Addons           []PolicyAddonDoc `bson:"addons,omitempty"`
	MemberCount      int              `bson:"member_count"`
	PrincipalCount   int              `bson:"principal_count"`
	DependentCount   int              `bson:"dependent_count"`
	Currency         string           `bson:"currency,omitempty"`
	BasePremium      string           `bson:"base_premium"`
	AddonPremium     string           `bson:"addon_premium"`
	LoadingAmount    string           `bson:"loading_amount"`
	DiscountAmount   string           `bson:"discount_amount"`
	TotalPremium     string           `bson:"total_premium"`
	TaxAmount        string           `bson:"tax_amount"`
	GrossPremium     string           `bson:"gross_premium"`
	Revision         int64            `bson:"revision"`
	IssuedAt         time.Time        `bson:"issued_at"`
	UpdatedAt        time.Time        `bson:"updated_at"`
}

func fromPolicyDoc(d PolicyDoc) core.Policy {
	p := core.Policy{
		ID:               d.ID,
		Number:           d.Number,
		ApplicationID:    d.ApplicationID,
		SchemeID:         d.SchemeID,
		PlanID:           d.PlanID,
		RateCardID:       d.RateCardID,
		GroupID:          d.GroupID,
		GroupSize:        d.GroupSize,
		BillingFrequency: core.BillingFrequency(d.BillingFrequency),
		Status:           core.PolicyStatus(d.Status),
		EffectiveDate:    d.EffectiveDate,
		RenewalDate:      d.RenewalDate,
		SuspensionReason: d.SuspensionReason,
		CancelReason:     d.CancelReason,
		CancelledBy:      d.CancelledBy,
		IssuedBy:         d.IssuedBy,
		MemberCount:      d.MemberCount,
		PrincipalCount:   d.PrincipalCount,
		DependentCount:   d.DependentCount,
		Currency:         d.Currency,
		BasePremium:      toDec(d.BasePremium),
		AddonPremium:     toDec(d.AddonPremium),
		LoadingAmount:    toDec(d.LoadingAmount),
		DiscountAmount:   toDec(d.DiscountAmount),
		TotalPremium:     toDec(d.TotalPremium),
		TaxAmount:        toDec(d.TaxAmount),
		GrossPremium:     toDec(d.GrossPremium),
		Revision:         d.Revision,
		IssuedAt:         d.IssuedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	for _, m := range d.Members {
		p.Members = append(p.Members, core.Member{
			ID:                m.ID,
			FirstName:         m.FirstName,
			LastName:          m.LastName,
			Role:              core.MemberRole(m.Role),
			Age:               m.Age,
			Gender:            m.Gender,
			Region:            m.Region,
			CardNumber:        m.CardNumber,
			CardStatus:        core.CardStatus(m.CardStatus),
			WaitingPeriodEnd:  m.WaitingPeriodEnd,
			Status:            core.MemberStatus(m.Status),
			SuspendedByPolicy: m.SuspendedByPolicy,
			SuspensionReason:  m.SuspensionReason,
			TerminationReason: m.TerminationReason,
			BasePremium:       toDec(m.BasePremium),
			LoadingAmount:     toDec(m.LoadingAmount),
			TotalPremium:      toDec(m.TotalPremium),
			Loadings:          fromAppliedLoadingDocs(m.Loadings),
			Exclusions:        fromAppliedExclusionDocs(m.Exclusions),
			CreatedAt:         m.CreatedAt,
			UpdatedAt:         m.UpdatedAt,
		})
	}
	for _, a := range d.Addons {
		p.Addons = append(p.Addons, core.PolicyAddon{
			ID:          a.ID,
			AddonID:     a.AddonID,
			Name:        a.Name,
			PricingType: core.AddonPricingType(a.PricingType),
			Amount:      toDec(a.Amount),
		})
	}
	return p
}

func toPolicyDoc(p core.Policy) PolicyDoc {
	d := PolicyDoc{
		ID:               p.ID,
		Number:           p.Number,
		ApplicationID:    p.ApplicationID,
		SchemeID:         p.SchemeID,
		PlanID:           p.PlanID,
		RateCardID:       p.RateCardID,
		GroupID:          p.GroupID,
		GroupSize:        p.GroupSize,
		BillingFrequency: string(p.BillingFrequency),
		Status:           string(p.Status),
		EffectiveDate:    p.EffectiveDate,
		RenewalDate:      p.RenewalDate,
		SuspensionReason: p.SuspensionReason,
		CancelReason:     p.CancelReason,
		CancelledBy:      p.CancelledBy,
		IssuedBy:         p.IssuedBy,
		MemberCount:      p.MemberCount,
		PrincipalCount:   p.PrincipalCount,
		DependentCount:   p.DependentCount,
		Currency:         p.Currency,
		BasePremium:      dec(p.BasePremium),
		AddonPremium:     dec(p.AddonPremium),
		LoadingAmount:    dec(p.LoadingAmount),
		DiscountAmount:   dec(p.DiscountAmount),
		TotalPremium:     dec(p.TotalPremium),
		TaxAmount:        dec(p.TaxAmount),
		GrossPremium:     dec(p.GrossPremium),
		Revision:         p.Revision,
		IssuedAt:         p.IssuedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	for _, m := range p.Members {
		d.Members = append(d.Members, MemberDoc{
			ID:                m.ID,
			FirstName:         m.FirstName,
			LastName:          m.LastName,
			Role:              string(m.Role),
			Age:               m.Age,
			Gender:            m.Gender,
			Region:            m.Region,
			CardNumber:        m.CardNumber,
			CardStatus:        string(m.CardStatus),
			WaitingPeriodEnd:  m.WaitingPeriodEnd,
			Status:            string(m.Status),
			SuspendedByPolicy: m.SuspendedByPolicy,
			SuspensionReason:  m.SuspensionReason,
			TerminationReason: m.TerminationReason,
			BasePremium:       dec(m.BasePremium),
			LoadingAmount:     dec(m.LoadingAmount),
			TotalPremium:      dec(m.TotalPremium),
			Loadings:          toAppliedLoadingDocs(m.Loadings),
			Exclusions:        toAppliedExclusionDocs(m.Exclusions),
			CreatedAt:         m.CreatedAt,
			UpdatedAt:         m.UpdatedAt,
		})
	}
	for _, a := range p.Addons {
		d.Addons = append(d.Addons, PolicyAddonDoc{
			ID:          a.ID,
			AddonID:     a.AddonID,
			Name:        a.Name,
			PricingType: string(a.PricingType),
			Amount:      dec(a.Amount),
		})
	}
	return d
}
