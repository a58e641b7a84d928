package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type RateCardStatus string

const (
	RateCardStatusDraft    RateCardStatus = "draft"
	RateCardStatusApproved RateCardStatus = "approved"
	RateCardStatusActive   RateCardStatus = "active"
	RateCardStatusRetired  RateCardStatus = "retired"
)

// RateCardEntry is one age-banded base premium. Gender and Region are
// wildcards when empty.
type RateCardEntry struct {
	MinAge      int             `json:"min_age"`
	MaxAge      int             `json:"max_age"`
	Gender      string          `json:"gender,omitempty"`
	Region      string          `json:"region,omitempty"`
	BasePremium decimal.Decimal `json:"base_premium"`
}

// RateCardTier prices a corporate group by size band. ExtraMemberPremium,
// when positive, is the marginal premium for each member beyond MaxMembers
// of the top band.
type RateCardTier struct {
	MinMembers         int             `json:"min_members"`
	MaxMembers         int             `json:"max_members"`
	TierPremium        decimal.Decimal `json:"tier_premium"`
	ExtraMemberPremium decimal.Decimal `json:"extra_member_premium,omitempty"`
}

// RateCard is a versioned premium table scoped to a plan. Entries and tiers
// are immutable once the card is active; amendments clone a new draft.
type RateCard struct {
	ID         string          `json:"id"`
	PlanID     string          `json:"plan_id"`
	Currency   string          `json:"currency"`
	Version    string          `json:"version"`
	Status     RateCardStatus  `json:"status"`
	IsActive   bool            `json:"is_active"`
	ValidFrom  time.Time       `json:"valid_from"`
	ValidUntil *time.Time      `json:"valid_until,omitempty"`
	Entries    []RateCardEntry `json:"entries"`
	Tiers      []RateCardTier  `json:"tiers,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type RateCardRepo interface {
	Create(ctx context.Context, rc RateCard) error
	Get(ctx context.Context, id string) (RateCard, error)
	GetActiveByPlan(ctx context.Context, planID string) (RateCard, error)
	Update(ctx context.Context, rc RateCard) error
	// Activate marks cardID active and deactivates every other card on the
	// same plan, atomically. At most one card per plan is active.
	Activate(ctx context.Context, planID, cardID string, now time.Time) error
	ListByPlan(ctx context.Context, planID string) ([]RateCard, error)
}

var ErrRateCardNotFound = fmt.Errorf("%w: rate card not found", ErrNotFound)

// EffectiveOn reports whether the card's validity window covers t.
func (rc RateCard) EffectiveOn(t time.Time) bool {
	if t.Before(rc.ValidFrom) {
		return false
	}
	if rc.ValidUntil != nil && t.After(*rc.ValidUntil) {
		return false
	}
	return true
}

func (e RateCardEntry) matches(age int, gender, region string) bool {
	if age < e.MinAge || age > e.MaxAge {
		return false
	}
	if e.Gender != "" && !strings.EqualFold(e.Gender, gender) {
		return false
	}
	if e.Region != "" && !strings.EqualFold(e.Region, region) {
		return false
	}
	return true
}

// specificity ranks candidate entries: gender+region beats gender-only
// beats region-only beats wildcard.
func (e RateCardEntry) specificity() int {
	s := 0
	if e.Gender != "" {
		s += 2
	}
	if e.Region != "" {
		s++
	}
	return s
}

// ResolveEntry selects the base premium entry for one member. Among all
// entries matching age, gender and region, the most specific wins; the
// first listed wins a specificity tie.
func (rc RateCard) ResolveEntry(age int, gender, region string) (RateCardEntry, error) {
	var best *RateCardEntry
	for i := range rc.Entries {
		e := rc.Entries[i]
		if !e.matches(age, gender, region) {
			continue
		}
		if best == nil || e.specificity() > best.specificity() {
			best = &rc.Entries[i]
		}
	}
	if best == nil {
		return RateCardEntry{}, fmt.Errorf("%w: age %d gender %q region %q on rate card %s",
			ErrRateNotFound, age, gender, region, rc.ID)
	}
	return *best, nil
}

// ResolveTier prices a corporate group of the given size. When the size
// exceeds every band, the top band's marginal extra-member premium extends
// it; otherwise resolution fails.
func (rc RateCard) ResolveTier(size int) (RateCardTier, decimal.Decimal, error) {
	if size <= 0 {
		return RateCardTier{}, decimal.Zero, fmt.Errorf("%w: group size must be > 0", ErrValidation)
	}
	var top *RateCardTier
	for i := range rc.Tiers {
		t := rc.Tiers[i]
		if size >= t.MinMembers && size <= t.MaxMembers {
			return t, Round2(t.TierPremium), nil
		}
		if top == nil || t.MaxMembers > top.MaxMembers {
			top = &rc.Tiers[i]
		}
	}
	if top != nil && size > top.MaxMembers && top.ExtraMemberPremium.IsPositive() {
		extra := top.ExtraMemberPremium.Mul(decimal.NewFromInt(int64(size - top.MaxMembers)))
		return *top, Round2(top.TierPremium.Add(extra)), nil
	}
	return RateCardTier{}, decimal.Zero, fmt.Errorf("%w: group size %d on rate card %s",
		ErrRateNotFound, size, rc.ID)
}

// Clone produces a new draft card carrying the entries and tiers of the
// receiver with a bumped version. The caller assigns the ID.
func (rc RateCard) Clone(now time.Time) RateCard {
	next := rc
	next.ID = ""
	next.Status = RateCardStatusDraft
	next.IsActive = false
	next.Version = NextVersion(rc.Version)
	next.Entries = append([]RateCardEntry(nil), rc.Entries...)
	next.Tiers = append([]RateCardTier(nil), rc.Tiers...)
	next.CreatedAt = now
	next.UpdatedAt = now
	return next
}

// NextVersion increments a "v<N>" version string; anything unparseable
// restarts at v1.
func NextVersion(v string) string {
	n, err := strconv.Atoi(strings.TrimPrefix(v, "v"))
	if err != nil || n < 1 {
		return "v1"
	}
	return "v" + strconv.Itoa(n+1)
}

// Validate checks structural soundness of a draft card: sane bands, no
// overlapping age bands within one (gender, region) combination, no
// overlapping size bands across tiers.
func (rc RateCard) Validate() error {
	if rc.PlanID == "" {
		return fmt.Errorf("%w: plan_id is required", ErrValidation)
	}
	if rc.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrValidation)
	}
	if len(rc.Entries) == 0 && len(rc.Tiers) == 0 {
		return fmt.Errorf("%w: rate card needs at least one entry or tier", ErrValidation)
	}
	for i, e := range rc.Entries {
		if e.MinAge < 0 || e.MaxAge < e.MinAge {
			return fmt.Errorf("%w: entry %d has invalid age band [%d,%d]", ErrValidation, i, e.MinAge, e.MaxAge)
		}
		if e.BasePremium.IsNegative() {
			return fmt.Errorf("%w: entry %d has negative base premium", ErrValidation, i)
		}
		for j := 0; j < i; j++ {
			o := rc.Entries[j]
			if strings.EqualFold(o.Gender, e.Gender) && strings.EqualFold(o.Region, e.Region) &&
				e.MinAge <= o.MaxAge && o.MinAge <= e.MaxAge {
				return fmt.Errorf("%w: entries %d and %d overlap for gender %q region %q",
					ErrValidation, j, i, e.Gender, e.Region)
			}
		}
	}
	for i, t := range rc.Tiers {
		if t.MinMembers <= 0 || t.MaxMembers < t.MinMembers {
			return fmt.Errorf("%w: tier %d has invalid size band [%d,%d]", ErrValidation, i, t.MinMembers, t.MaxMembers)
		}
		for j := 0; j < i; j++ {
			o := rc.Tiers[j]
			if t.MinMembers <= o.MaxMembers && o.MinMembers <= t.MaxMembers {
				return fmt.Errorf("%w: tiers %d and %d overlap", ErrValidation, j, i)
			}
		}
	}
	return nil
}
