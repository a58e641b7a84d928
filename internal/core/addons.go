package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AddonPricingType string

const (
	AddonPricingFixed      AddonPricingType = "fixed"
	AddonPricingPerMember  AddonPricingType = "per_member"
	AddonPricingPercentage AddonPricingType = "percentage"
	AddonPricingAgeRated   AddonPricingType = "age_rated"
)

type PercentageBasis string

const (
	BasisBase  PercentageBasis = "base"
	BasisTotal PercentageBasis = "total"
)

// Addon is a named optional cover priced independently of the base plan.
type Addon struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}

// AddonRateEntry supplies the per-age premium when pricing is age_rated.
// Gender is a wildcard when empty.
type AddonRateEntry struct {
	MinAge  int             `json:"min_age"`
	MaxAge  int             `json:"max_age"`
	Gender  string          `json:"gender,omitempty"`
	Premium decimal.Decimal `json:"premium"`
}

// AddonRate binds an addon to a pricing rule, optionally scoped to one plan
// (global when PlanID is empty).
type AddonRate struct {
	ID              string           `json:"id"`
	AddonID         string           `json:"addon_id"`
	PlanID          string           `json:"plan_id,omitempty"`
	PricingType     AddonPricingType `json:"pricing_type"`
	Currency        string           `json:"currency"`
	Amount          decimal.Decimal  `json:"amount"`
	Percentage      decimal.Decimal  `json:"percentage"`
	PercentageBasis PercentageBasis  `json:"percentage_basis,omitempty"`
	Entries         []AddonRateEntry `json:"entries,omitempty"`
	ValidFrom       time.Time        `json:"valid_from"`
	ValidUntil      *time.Time       `json:"valid_until,omitempty"`
	Active          bool             `json:"active"`
}

type AddonRepo interface {
	GetAddon(ctx context.Context, id string) (Addon, error)
	ListAddons(ctx context.Context) ([]Addon, error)
	UpsertAddon(ctx context.Context, a Addon) error
	// FindActiveRate resolves the rate for an addon on a date, preferring a
	// plan-scoped rate over a global one.
	FindActiveRate(ctx context.Context, addonID, planID string, on time.Time) (AddonRate, error)
	UpsertRate(ctx context.Context, r AddonRate) error
}

var (
	ErrAddonNotFound     = fmt.Errorf("%w: addon not found", ErrNotFound)
	ErrAddonRateNotFound = fmt.Errorf("%w: addon rate not found", ErrNotFound)
)

// EffectiveOn reports whether the rate's validity window covers t.
func (r AddonRate) EffectiveOn(t time.Time) bool {
	if !r.Active || t.Before(r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && t.After(*r.ValidUntil) {
		return false
	}
	return true
}

// PriceAddon computes one addon's contribution for a member set.
// basePremium and totalPremium feed the percentage basis; age_rated members
// with no matching entry silently contribute zero.
func PriceAddon(rate AddonRate, members []MemberInput, basePremium, totalPremium decimal.Decimal) (decimal.Decimal, error) {
	switch rate.PricingType {
	case AddonPricingFixed:
		return Round2(rate.Amount), nil

	case AddonPricingPerMember:
		return Round2(rate.Amount.Mul(decimal.NewFromInt(int64(len(members))))), nil

	case AddonPricingPercentage:
		basis := basePremium
		if rate.PercentageBasis == BasisTotal {
			basis = totalPremium
		}
		return PercentOf(basis, rate.Percentage), nil

	case AddonPricingAgeRated:
		sum := decimal.Zero
		for _, m := range members {
			if e, ok := matchAddonEntry(rate.Entries, m.Age, m.Gender); ok {
				sum = sum.Add(e.Premium)
			}
		}
		return Round2(sum), nil

	default:
		return decimal.Zero, fmt.Errorf("%w: unknown addon pricing type %q", ErrValidation, rate.PricingType)
	}
}

func matchAddonEntry(entries []AddonRateEntry, age int, gender string) (AddonRateEntry, bool) {
	var best *AddonRateEntry
	for i := range entries {
		e := entries[i]
		if age < e.MinAge || age > e.MaxAge {
			continue
		}
		if e.Gender != "" && !strings.EqualFold(e.Gender, gender) {
			continue
		}
		// gender-specific entries beat wildcard ones
		if best == nil || (best.Gender == "" && e.Gender != "") {
			best = &entries[i]
		}
	}
	if best == nil {
		return AddonRateEntry{}, false
	}
	return *best, true
}
