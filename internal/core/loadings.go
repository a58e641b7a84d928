package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type LoadingType string

const (
	LoadingPercentage LoadingType = "percentage"
	LoadingFixed      LoadingType = "fixed"
	LoadingExclusion  LoadingType = "exclusion"
)

type LoadingDuration string

const (
	DurationPermanent   LoadingDuration = "permanent"
	DurationTimeLimited LoadingDuration = "time_limited"
	DurationReviewable  LoadingDuration = "reviewable"
)

type LoadingStatus string

const (
	LoadingStatusActive  LoadingStatus = "active"
	LoadingStatusExpired LoadingStatus = "expired"
)

// reviewableCycleMonths is how far out a reviewable loading's review date
// sits after cover start.
const reviewableCycleMonths = 12

// LoadingRule maps a declared medical condition to a premium surcharge or
// coverage exclusion. Pure catalog data, shared across applications.
type LoadingRule struct {
	ID               string           `json:"id"`
	ConditionName    string           `json:"condition_name"`
	ICD10Code        string           `json:"icd10_code,omitempty"`
	RelatedCodes     []string         `json:"related_codes,omitempty"`
	LoadingType      LoadingType      `json:"loading_type"`
	Value            decimal.Decimal  `json:"value"` // percentage or fixed amount
	DurationType     LoadingDuration  `json:"duration_type"`
	DurationMonths   *int             `json:"duration_months,omitempty"`
	MinLoading       *decimal.Decimal `json:"min_loading,omitempty"`
	MaxLoading       *decimal.Decimal `json:"max_loading,omitempty"`
	ExclusionBenefit string           `json:"exclusion_benefit,omitempty"`
	Active           bool             `json:"active"`
}

type LoadingRuleRepo interface {
	Get(ctx context.Context, id string) (LoadingRule, error)
	FindActive(ctx context.Context) ([]LoadingRule, error)
	Upsert(ctx context.Context, r LoadingRule) error
}

var ErrLoadingRuleNotFound = fmt.Errorf("%w: loading rule not found", ErrNotFound)

// MatchLoadingRule resolves the best rule for one declared condition:
// exact ICD-10 code first, then related-code membership, then
// case-insensitive condition-name substring in either direction.
func MatchLoadingRule(rules []LoadingRule, condition string) (LoadingRule, bool) {
	cond := strings.TrimSpace(condition)
	if cond == "" {
		return LoadingRule{}, false
	}
	for _, r := range rules {
		if r.ICD10Code != "" && strings.EqualFold(r.ICD10Code, cond) {
			return r, true
		}
	}
	for _, r := range rules {
		for _, code := range r.RelatedCodes {
			if strings.EqualFold(code, cond) {
				return r, true
			}
		}
	}
	lower := strings.ToLower(cond)
	for _, r := range rules {
		name := strings.ToLower(r.ConditionName)
		if name == "" {
			continue
		}
		if strings.Contains(name, lower) || strings.Contains(lower, name) {
			return r, true
		}
	}
	return LoadingRule{}, false
}

// AppliedLoading is a loading attached to a member after underwriting terms.
type AppliedLoading struct {
	RuleID        string          `json:"rule_id"`
	Condition     string          `json:"condition"` // as declared
	ConditionName string          `json:"condition_name"`
	LoadingType   LoadingType     `json:"loading_type"`
	Amount        decimal.Decimal `json:"amount"`
	DurationType  LoadingDuration `json:"duration_type"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       *time.Time      `json:"end_date,omitempty"`    // time_limited only
	ReviewDate    *time.Time      `json:"review_date,omitempty"` // reviewable only
	Status        LoadingStatus   `json:"status"`
}

// AppliedExclusion records a coverage carve-out with no premium effect.
type AppliedExclusion struct {
	RuleID           string `json:"rule_id"`
	Condition        string `json:"condition"`
	ConditionName    string `json:"condition_name"`
	ExclusionBenefit string `json:"exclusion_benefit,omitempty"`
}

// Expired reports whether a time-limited loading has run out. Permanent
// loadings never expire; reviewable ones await manual re-assessment.
func (l AppliedLoading) Expired(now time.Time) bool {
	return l.DurationType == DurationTimeLimited && l.EndDate != nil && now.After(*l.EndDate)
}

// LoadingResult is the engine output for one member's declared conditions.
// Unmatched carries condition strings no rule resolved; they contribute
// nothing but are surfaced for underwriting review.
type LoadingResult struct {
	Loadings     []AppliedLoading   `json:"loadings"`
	Exclusions   []AppliedExclusion `json:"exclusions"`
	Unmatched    []string           `json:"unmatched,omitempty"`
	TotalLoading decimal.Decimal    `json:"total_loading"`
	FinalPremium decimal.Decimal    `json:"final_premium"`
}

// CalculateLoadings maps declared conditions to rules and computes the
// additive loading on the premium baseline. Exclusion rules contribute zero
// premium but record an exclusion obligation.
func CalculateLoadings(premium decimal.Decimal, conditions []string, rules []LoadingRule, coverStart time.Time) LoadingResult {
	res := LoadingResult{TotalLoading: decimal.Zero}
	for _, cond := range conditions {
		rule, ok := MatchLoadingRule(rules, cond)
		if !ok || !rule.Active {
			if strings.TrimSpace(cond) != "" {
				res.Unmatched = append(res.Unmatched, cond)
			}
			continue
		}

		if rule.LoadingType == LoadingExclusion {
			res.Exclusions = append(res.Exclusions, AppliedExclusion{
				RuleID:           rule.ID,
				Condition:        cond,
				ConditionName:    rule.ConditionName,
				ExclusionBenefit: rule.ExclusionBenefit,
			})
			continue
		}

		var delta decimal.Decimal
		if rule.LoadingType == LoadingPercentage {
			delta = PercentOf(premium, rule.Value)
		} else {
			delta = Round2(rule.Value)
		}
		if rule.MinLoading != nil && delta.LessThan(*rule.MinLoading) {
			delta = Round2(*rule.MinLoading)
		}
		if rule.MaxLoading != nil && delta.GreaterThan(*rule.MaxLoading) {
			delta = Round2(*rule.MaxLoading)
		}

		applied := AppliedLoading{
			RuleID:        rule.ID,
			Condition:     cond,
			ConditionName: rule.ConditionName,
			LoadingType:   rule.LoadingType,
			Amount:        delta,
			DurationType:  rule.DurationType,
			StartDate:     coverStart,
			Status:        LoadingStatusActive,
		}
		switch rule.DurationType {
		case DurationTimeLimited:
			if rule.DurationMonths != nil {
				end := coverStart.AddDate(0, *rule.DurationMonths, 0)
				applied.EndDate = &end
			}
		case DurationReviewable:
			review := coverStart.AddDate(0, reviewableCycleMonths, 0)
			applied.ReviewDate = &review
		}

		res.Loadings = append(res.Loadings, applied)
		res.TotalLoading = res.TotalLoading.Add(delta)
	}

	res.TotalLoading = Round2(res.TotalLoading)
	res.FinalPremium = Round2(premium.Add(res.TotalLoading))
	return res
}

// SumActiveLoadings totals the premium effect of loadings still active at
// now, used when re-deriving member totals.
func SumActiveLoadings(loadings []AppliedLoading, now time.Time) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range loadings {
		if l.Status != LoadingStatusActive || l.Expired(now) {
			continue
		}
		sum = sum.Add(l.Amount)
	}
	return Round2(sum)
}
