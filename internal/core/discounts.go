package core

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AdjustmentType string

const (
	AdjustmentDiscount AdjustmentType = "discount"
	AdjustmentLoading  AdjustmentType = "loading"
)

type ValueType string

const (
	ValuePercentage ValueType = "percentage"
	ValueFixed      ValueType = "fixed"
)

type ApplicationMethod string

const (
	MethodAutomatic ApplicationMethod = "automatic"
	MethodManual    ApplicationMethod = "manual"
	MethodPromoCode ApplicationMethod = "promo_code"
)

type TriggerKind string

const (
	TriggerEquals TriggerKind = "equals"
	TriggerRange  TriggerKind = "range"
	TriggerInSet  TriggerKind = "in"
)

// TriggerRule is one predicate against the rating context. The closed kind
// set keeps evaluation exhaustive instead of sniffing key suffixes.
type TriggerRule struct {
	Field  string      `json:"field"` // billing_frequency, group_size, member_count, principal_count, dependent_count
	Kind   TriggerKind `json:"kind"`
	Value  string      `json:"value,omitempty"`  // equals
	Min    *int        `json:"min,omitempty"`    // range
	Max    *int        `json:"max,omitempty"`    // range
	Values []string    `json:"values,omitempty"` // in
}

// DiscountContext carries the facts trigger rules evaluate against.
type DiscountContext struct {
	SchemeID         string           `json:"scheme_id,omitempty"`
	PlanID           string           `json:"plan_id,omitempty"`
	GroupID          string           `json:"group_id,omitempty"`
	BillingFrequency BillingFrequency `json:"billing_frequency"`
	GroupSize        int              `json:"group_size"`
	MemberCount      int              `json:"member_count"`
	PrincipalCount   int              `json:"principal_count"`
	DependentCount   int              `json:"dependent_count"`
}

func (c DiscountContext) field(name string) (string, int, bool) {
	switch name {
	case "billing_frequency":
		return string(c.BillingFrequency), 0, false
	case "group_size":
		return strconv.Itoa(c.GroupSize), c.GroupSize, true
	case "member_count":
		return strconv.Itoa(c.MemberCount), c.MemberCount, true
	case "principal_count":
		return strconv.Itoa(c.PrincipalCount), c.PrincipalCount, true
	case "dependent_count":
		return strconv.Itoa(c.DependentCount), c.DependentCount, true
	default:
		return "", 0, false
	}
}

// Matches evaluates one predicate. Unknown fields never match.
func (r TriggerRule) Matches(ctx DiscountContext) bool {
	str, n, isInt := ctx.field(r.Field)
	if str == "" && !isInt {
		return false
	}
	switch r.Kind {
	case TriggerEquals:
		return strings.EqualFold(str, r.Value)
	case TriggerRange:
		if !isInt {
			return false
		}
		if r.Min != nil && n < *r.Min {
			return false
		}
		if r.Max != nil && n > *r.Max {
			return false
		}
		return true
	case TriggerInSet:
		for _, v := range r.Values {
			if strings.EqualFold(str, v) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// DiscountRule adjusts premium up (loading) or down (discount). Scope is
// global when SchemeID/PlanID are empty.
type DiscountRule struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	SchemeID            string            `json:"scheme_id,omitempty"`
	PlanID              string            `json:"plan_id,omitempty"`
	AdjustmentType      AdjustmentType    `json:"adjustment_type"`
	ValueType           ValueType         `json:"value_type"`
	Value               decimal.Decimal   `json:"value"`
	ApplicationMethod   ApplicationMethod `json:"application_method"`
	TriggerRules        []TriggerRule     `json:"trigger_rules,omitempty"`
	CanStack            bool              `json:"can_stack"`
	Priority            int               `json:"priority"`
	MaxDiscountAmount   *decimal.Decimal  `json:"max_discount_amount,omitempty"`
	MaxTotalDiscountPct *decimal.Decimal  `json:"max_total_discount,omitempty"`
	UsageLimit          *int              `json:"usage_limit,omitempty"`
	UsageCount          int               `json:"usage_count"`
	EffectiveFrom       *time.Time        `json:"effective_from,omitempty"`
	EffectiveTo         *time.Time        `json:"effective_to,omitempty"`
	Active              bool              `json:"active"`
}

type DiscountRuleRepo interface {
	Get(ctx context.Context, id string) (DiscountRule, error)
	// FindAutomatic returns active automatic rules whose scope covers the
	// scheme/plan (null scope = global), effective on the given date.
	FindAutomatic(ctx context.Context, schemeID, planID string, on time.Time) ([]DiscountRule, error)
	Upsert(ctx context.Context, r DiscountRule) error
	// IncrementUsage bumps usage_count only while under usage_limit.
	IncrementUsage(ctx context.Context, id string) error
}

var ErrDiscountRuleNotFound = fmt.Errorf("%w: discount rule not found", ErrNotFound)

func (r DiscountRule) EffectiveOn(t time.Time) bool {
	if r.EffectiveFrom != nil && t.Before(*r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && t.After(*r.EffectiveTo) {
		return false
	}
	return true
}

// CanBeUsed reports whether the rule is active, in its effective window and
// under its usage limit.
func (r DiscountRule) CanBeUsed(now time.Time) bool {
	if !r.Active || !r.EffectiveOn(now) {
		return false
	}
	if r.UsageLimit != nil && r.UsageCount >= *r.UsageLimit {
		return false
	}
	return true
}

// MatchesTriggers requires every predicate to hold (AND semantics). A rule
// with no trigger rules always matches.
func (r DiscountRule) MatchesTriggers(ctx DiscountContext) bool {
	for _, t := range r.TriggerRules {
		if !t.Matches(ctx) {
			return false
		}
	}
	return true
}

// AppliedDiscount is one rule's contribution to the final premium.
type AppliedDiscount struct {
	RuleID         string          `json:"rule_id"`
	Name           string          `json:"name"`
	AdjustmentType AdjustmentType  `json:"adjustment_type"`
	ValueType      ValueType       `json:"value_type"`
	Amount         decimal.Decimal `json:"amount"`
}

// DiscountResult reports the engine outcome. TotalDiscount is the net
// premium movement (negative when rule-loadings dominate).
type DiscountResult struct {
	Discounts     []AppliedDiscount `json:"discounts"`
	TotalDiscount decimal.Decimal   `json:"total_discount"`
	FinalPremium  decimal.Decimal   `json:"final_premium"`
}

// CalculateDiscounts applies rules to premium in descending priority order.
// Each rule computes against the current running premium. A non-stackable
// rule only applies when nothing applied before it, and nothing applies
// after it. Per-rule deltas are capped by max_discount_amount; the
// cumulative discount is clamped to the tightest max_total_discount ceiling
// declared by an applied rule.
func CalculateDiscounts(premium decimal.Decimal, rules []DiscountRule, ctx DiscountContext, now time.Time) DiscountResult {
	eligible := make([]DiscountRule, 0, len(rules))
	for _, r := range rules {
		if r.CanBeUsed(now) && r.MatchesTriggers(ctx) {
			eligible = append(eligible, r)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Priority > eligible[j].Priority
	})

	running := premium
	discountTotal := decimal.Zero
	var ceiling *decimal.Decimal
	var applied []AppliedDiscount

	for _, r := range eligible {
		if !r.CanStack && len(applied) > 0 {
			continue
		}

		var delta decimal.Decimal
		switch r.ValueType {
		case ValuePercentage:
			delta = PercentOf(running, r.Value)
		case ValueFixed:
			delta = Round2(r.Value)
		default:
			continue
		}
		if r.MaxDiscountAmount != nil && delta.GreaterThan(*r.MaxDiscountAmount) {
			delta = Round2(*r.MaxDiscountAmount)
		}

		if r.AdjustmentType == AdjustmentLoading {
			running = running.Add(delta)
		} else {
			if r.MaxTotalDiscountPct != nil {
				c := PercentOf(premium, *r.MaxTotalDiscountPct)
				if ceiling == nil || c.LessThan(*ceiling) {
					ceiling = &c
				}
			}
			discountTotal = discountTotal.Add(delta)
			if ceiling != nil && discountTotal.GreaterThan(*ceiling) {
				over := discountTotal.Sub(*ceiling)
				delta = delta.Sub(over)
				discountTotal = *ceiling
			}
			if !delta.IsPositive() {
				continue
			}
			running = running.Sub(delta)
		}

		applied = append(applied, AppliedDiscount{
			RuleID:         r.ID,
			Name:           r.Name,
			AdjustmentType: r.AdjustmentType,
			ValueType:      r.ValueType,
			Amount:         delta,
		})
		if !r.CanStack {
			break
		}
	}

	running = Round2(running)
	return DiscountResult{
		Discounts:     applied,
		TotalDiscount: Round2(premium.Sub(running)),
		FinalPremium:  running,
	}
}
