package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PolicyStatus string

const (
	PolicyStatusActive    PolicyStatus = "active"
	PolicyStatusSuspended PolicyStatus = "suspended"
	PolicyStatusCancelled PolicyStatus = "cancelled"
)

type MemberStatus string

const (
	MemberStatusActive     MemberStatus = "active"
	MemberStatusSuspended  MemberStatus = "suspended"
	MemberStatusTerminated MemberStatus = "terminated"
)

type CardStatus string

const (
	CardStatusIssued  CardStatus = "issued"
	CardStatusBlocked CardStatus = "blocked"
)

// Member is a covered person after issuance.
type Member struct {
	ID                string             `json:"id"`
	FirstName         string             `json:"first_name"`
	LastName          string             `json:"last_name"`
	Role              MemberRole         `json:"role"`
	Age               int                `json:"age"`
	Gender            string             `json:"gender,omitempty"`
	Region            string             `json:"region,omitempty"`
	CardNumber        string             `json:"card_number,omitempty"`
	CardStatus        CardStatus         `json:"card_status,omitempty"`
	WaitingPeriodEnd  *time.Time         `json:"waiting_period_end,omitempty"`
	Status            MemberStatus       `json:"status"`
	// SuspendedByPolicy marks a suspension cascaded from the policy, so a
	// reinstate only wakes members the policy itself put to sleep.
	SuspendedByPolicy bool               `json:"suspended_by_policy,omitempty"`
	SuspensionReason  string             `json:"suspension_reason,omitempty"`
	TerminationReason string             `json:"termination_reason,omitempty"`
	BasePremium       decimal.Decimal    `json:"base_premium"`
	LoadingAmount     decimal.Decimal    `json:"loading_amount"`
	TotalPremium      decimal.Decimal    `json:"total_premium"`
	Loadings          []AppliedLoading   `json:"loadings,omitempty"`
	Exclusions        []AppliedExclusion `json:"exclusions,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

type PolicyAddon struct {
	ID          string           `json:"id"`
	AddonID     string           `json:"addon_id"`
	Name        string           `json:"name"`
	PricingType AddonPricingType `json:"pricing_type"`
	Amount      decimal.Decimal  `json:"amount"`
}

// Policy is the post-conversion aggregate. It re-derives its own premium
// totals from its members and addons, independent of the originating
// application.
type Policy struct {
	ID               string           `json:"id"`
	Number           string           `json:"number"` // e.g. MED-2026-000042
	ApplicationID    string           `json:"application_id"`
	SchemeID         string           `json:"scheme_id,omitempty"`
	PlanID           string           `json:"plan_id"`
	RateCardID       string           `json:"rate_card_id,omitempty"`
	GroupID          string           `json:"group_id,omitempty"`
	GroupSize        int              `json:"group_size,omitempty"`
	BillingFrequency BillingFrequency `json:"billing_frequency"`
	Status           PolicyStatus     `json:"status"`
	EffectiveDate    time.Time        `json:"effective_date"`
	RenewalDate      time.Time        `json:"renewal_date"`
	SuspensionReason string           `json:"suspension_reason,omitempty"`
	CancelReason     string           `json:"cancel_reason,omitempty"`
	CancelledBy      string           `json:"cancelled_by,omitempty"`
	IssuedBy         string           `json:"issued_by,omitempty"`

	Members []Member      `json:"members"`
	Addons  []PolicyAddon `json:"addons,omitempty"`

	MemberCount    int `json:"member_count"`
	PrincipalCount int `json:"principal_count"`
	DependentCount int `json:"dependent_count"`

	Currency       string          `json:"currency,omitempty"`
	BasePremium    decimal.Decimal `json:"base_premium"`
	AddonPremium   decimal.Decimal `json:"addon_premium"`
	LoadingAmount  decimal.Decimal `json:"loading_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalPremium   decimal.Decimal `json:"total_premium"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	GrossPremium   decimal.Decimal `json:"gross_premium"`

	Revision  int64     `json:"revision"`
	IssuedAt  time.Time `json:"issued_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PolicyFilter struct {
	Status PolicyStatus
	PlanID string
}

type PolicyRepo interface {
	Create(ctx context.Context, p Policy) error
	Get(ctx context.Context, id string) (Policy, error)
	GetByNumber(ctx context.Context, number string) (Policy, error)
	GetByApplicationID(ctx context.Context, appID string) (Policy, error)
	Update(ctx context.Context, p Policy) error
	List(ctx context.Context, filter PolicyFilter, limit, offset int) ([]Policy, int64, error)
	NextPolicyNumber(ctx context.Context) (string, error)
	// FindActive feeds the loading-expiry worker.
	FindActive(ctx context.Context, limit int) ([]Policy, error)
}

var (
	ErrPolicyNotFound = fmt.Errorf("%w: policy not found", ErrNotFound)
	ErrPolicyExists   = fmt.Errorf("%w: policy already exists for application", ErrConflict)
)

var policyTransitions = map[PolicyStatus][]PolicyStatus{
	PolicyStatusActive:    {PolicyStatusSuspended, PolicyStatusCancelled},
	PolicyStatusSuspended: {PolicyStatusActive, PolicyStatusCancelled},
}

// CanTransitionTo checks if a lifecycle transition is valid. Cancelled is
// terminal.
func (s PolicyStatus) CanTransitionTo(next PolicyStatus) bool {
	for _, allowed := range policyTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ActiveMembers returns members currently covered.
func (p Policy) ActiveMembers() []Member {
	out := make([]Member, 0, len(p.Members))
	for _, m := range p.Members {
		if m.Status == MemberStatusActive {
			out = append(out, m)
		}
	}
	return out
}

// UpdateMemberCounts re-derives cached counts from active members.
func (p *Policy) UpdateMemberCounts() {
	p.MemberCount, p.PrincipalCount, p.DependentCount = 0, 0, 0
	for _, m := range p.Members {
		if m.Status != MemberStatusActive {
			continue
		}
		p.MemberCount++
		if m.Role == RolePrincipal {
			p.PrincipalCount++
		} else {
			p.DependentCount++
		}
	}
}
