package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ApplicationStatus string

const (
	ApplicationStatusDraft        ApplicationStatus = "draft"
	ApplicationStatusQuoted       ApplicationStatus = "quoted"
	ApplicationStatusSubmitted    ApplicationStatus = "submitted"
	ApplicationStatusUnderwriting ApplicationStatus = "underwriting"
	ApplicationStatusApproved     ApplicationStatus = "approved"
	ApplicationStatusDeclined     ApplicationStatus = "declined"
	ApplicationStatusReferred     ApplicationStatus = "referred"
	ApplicationStatusAccepted     ApplicationStatus = "accepted"
	ApplicationStatusConverted    ApplicationStatus = "converted"
	ApplicationStatusExpired      ApplicationStatus = "expired"
	ApplicationStatusCancelled    ApplicationStatus = "cancelled"
)

// UnderwritingStatus tracks risk assessment at application level and per
// member. Members use pending/approved/declined/terms; the application
// mirrors the overall decision.
type UnderwritingStatus string

const (
	UWPending  UnderwritingStatus = "pending"
	UWInReview UnderwritingStatus = "in_review"
	UWApproved UnderwritingStatus = "approved"
	UWDeclined UnderwritingStatus = "declined"
	UWReferred UnderwritingStatus = "referred"
	UWTerms    UnderwritingStatus = "terms"
)

type MemberRole string

const (
	RolePrincipal MemberRole = "principal"
	RoleDependent MemberRole = "dependent"
)

// ApplicationMember is one person on a pre-issuance application. Premium
// fields are derived, never entered.
type ApplicationMember struct {
	ID                string             `json:"id"`
	FirstName         string             `json:"first_name"`
	LastName          string             `json:"last_name"`
	Role              MemberRole         `json:"role"`
	DateOfBirth       *time.Time         `json:"date_of_birth,omitempty"`
	AgeAtInception    int                `json:"age_at_inception"`
	Gender            string             `json:"gender,omitempty"`
	Region            string             `json:"region,omitempty"`
	Conditions        []string           `json:"conditions,omitempty"` // declared pre-existing conditions
	BasePremium       decimal.Decimal    `json:"base_premium"`
	LoadingAmount     decimal.Decimal    `json:"loading_amount"`
	TotalPremium      decimal.Decimal    `json:"total_premium"`
	UnderwritingState UnderwritingStatus `json:"underwriting_status"`
	AppliedLoadings   []AppliedLoading   `json:"applied_loadings,omitempty"`
	AppliedExclusions []AppliedExclusion `json:"applied_exclusions,omitempty"`
	Active            bool               `json:"active"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// ApplicationAddon is a selected optional cover; Amount is re-derived on
// every recalculation.
type ApplicationAddon struct {
	ID          string           `json:"id"`
	AddonID     string           `json:"addon_id"`
	Name        string           `json:"name"`
	PricingType AddonPricingType `json:"pricing_type"`
	Amount      decimal.Decimal  `json:"amount"`
}

// Application is the aggregate root for the pre-issuance workflow. It
// exclusively owns its members and addons; premium totals are cached
// derivations that must never go stale relative to the active member set.
type Application struct {
	ID               string             `json:"id"`
	SchemeID         string             `json:"scheme_id,omitempty"`
	PlanID           string             `json:"plan_id"`
	RateCardID       string             `json:"rate_card_id,omitempty"`
	GroupID          string             `json:"group_id,omitempty"`
	GroupSize        int                `json:"group_size,omitempty"`
	BillingFrequency BillingFrequency   `json:"billing_frequency"`
	ProposedStart    time.Time          `json:"proposed_start"`
	Status           ApplicationStatus  `json:"status"`
	UWStatus         UnderwritingStatus `json:"underwriting_status"`
	UnderwriterID    string             `json:"underwriter_id,omitempty"`
	DecisionNotes    string             `json:"decision_notes,omitempty"`
	QuoteValidUntil  *time.Time         `json:"quote_valid_until,omitempty"`
	AcceptanceRef    string             `json:"acceptance_ref,omitempty"`
	PolicyID         string             `json:"policy_id,omitempty"` // set on conversion
	CancelReason     string             `json:"cancel_reason,omitempty"`

	Members []ApplicationMember `json:"members"`
	Addons  []ApplicationAddon  `json:"addons,omitempty"`

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

	// Revision guards concurrent read-modify-write cycles; the store
	// rejects an update whose revision does not match the stored one.
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ApplicationRepo interface {
	Create(ctx context.Context, app Application) error
	Get(ctx context.Context, id string) (Application, error)
	// Update persists the whole aggregate, failing with ErrConflict when the
	// stored revision moved on.
	Update(ctx context.Context, app Application) error
	FindByStatus(ctx context.Context, status ApplicationStatus, limit int) ([]Application, error)
	// FindQuoteExpired returns pre-conversion applications whose quote
	// validity window has passed.
	FindQuoteExpired(ctx context.Context, now time.Time, limit int) ([]Application, error)
}

var ErrApplicationNotFound = fmt.Errorf("%w: application not found", ErrNotFound)

var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationStatusDraft:        {ApplicationStatusQuoted, ApplicationStatusExpired, ApplicationStatusCancelled},
	ApplicationStatusQuoted:       {ApplicationStatusSubmitted, ApplicationStatusExpired, ApplicationStatusCancelled},
	ApplicationStatusSubmitted:    {ApplicationStatusUnderwriting, ApplicationStatusApproved, ApplicationStatusDeclined, ApplicationStatusReferred, ApplicationStatusExpired, ApplicationStatusCancelled},
	ApplicationStatusUnderwriting: {ApplicationStatusApproved, ApplicationStatusDeclined, ApplicationStatusReferred, ApplicationStatusExpired, ApplicationStatusCancelled},
	ApplicationStatusReferred:     {ApplicationStatusUnderwriting, ApplicationStatusApproved, ApplicationStatusDeclined, ApplicationStatusExpired, ApplicationStatusCancelled},
	ApplicationStatusApproved:     {ApplicationStatusAccepted, ApplicationStatusExpired, ApplicationStatusCancelled},
	ApplicationStatusAccepted:     {ApplicationStatusConverted, ApplicationStatusExpired, ApplicationStatusCancelled},
}

// CanTransitionTo checks if a status transition is valid.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	for _, allowed := range applicationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

var memberUWTransitions = map[UnderwritingStatus][]UnderwritingStatus{
	UWPending: {UWApproved, UWDeclined, UWTerms},
}

// CanTransitionTo checks the per-member underwriting sub-machine.
func (s UnderwritingStatus) CanTransitionTo(next UnderwritingStatus) bool {
	for _, allowed := range memberUWTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ActiveMembers returns members still counted on the application.
func (a Application) ActiveMembers() []ApplicationMember {
	out := make([]ApplicationMember, 0, len(a.Members))
	for _, m := range a.Members {
		if m.Active {
			out = append(out, m)
		}
	}
	return out
}

// UpdateMemberCounts re-derives the cached counts from active members.
// Called after every member mutation.
func (a *Application) UpdateMemberCounts() {
	a.MemberCount, a.PrincipalCount, a.DependentCount = 0, 0, 0
	for _, m := range a.Members {
		if !m.Active {
			continue
		}
		a.MemberCount++
		if m.Role == RolePrincipal {
			a.PrincipalCount++
		} else {
			a.DependentCount++
		}
	}
}

// IsQuoteExpired reports whether the quote validity window has passed.
func (a Application) IsQuoteExpired(now time.Time) bool {
	return a.QuoteValidUntil != nil && now.After(*a.QuoteValidUntil)
}

// IsTerminal reports whether no further workflow transitions are possible.
func (a Application) IsTerminal() bool {
	switch a.Status {
	case ApplicationStatusConverted, ApplicationStatusDeclined, ApplicationStatusExpired, ApplicationStatusCancelled:
		return true
	}
	return false
}

func (m ApplicationMember) Validate() error {
	if m.FirstName == "" || m.LastName == "" {
		return fmt.Errorf("%w: member name is required", ErrValidation)
	}
	if m.Role != RolePrincipal && m.Role != RoleDependent {
		return fmt.Errorf("%w: member role must be principal or dependent", ErrValidation)
	}
	if m.AgeAtInception < 0 || m.AgeAtInception > 130 {
		return fmt.Errorf("%w: invalid age %d", ErrValidation, m.AgeAtInception)
	}
	return nil
}
