package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/healthbridge/go-medscheme/internal/platform/ids"
)

// waitingPeriodDays is the standard benefit waiting period for newly
// issued members.
const waitingPeriodDays = 30

type NewApplicationInput struct {
	SchemeID         string           `json:"scheme_id,omitempty"`
	PlanID           string           `json:"plan_id"`
	RateCardID       string           `json:"rate_card_id,omitempty"`
	GroupID          string           `json:"group_id,omitempty"`
	GroupSize        int              `json:"group_size,omitempty"`
	BillingFrequency BillingFrequency `json:"billing_frequency"`
	ProposedStart    *time.Time       `json:"proposed_start,omitempty"`
}

type NewMemberInput struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Role        MemberRole `json:"role"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Age         int        `json:"age"`
	Gender      string     `json:"gender,omitempty"`
	Region      string     `json:"region,omitempty"`
	Conditions  []string   `json:"conditions,omitempty"`
}

// TermsInput attaches underwriting terms to one member: the conditions are
// run through the loading engine against the member's base premium.
type TermsInput struct {
	Conditions []string `json:"conditions"`
	Notes      string   `json:"notes,omitempty"`
}

func (in NewApplicationInput) Validate() error {
	if in.PlanID == "" {
		return fmt.Errorf("%w: plan_id is required", ErrValidation)
	}
	if !in.BillingFrequency.Valid() {
		return fmt.Errorf("%w: unknown billing frequency %q", ErrValidation, in.BillingFrequency)
	}
	if in.GroupSize < 0 {
		return fmt.Errorf("%w: group_size must not be negative", ErrValidation)
	}
	return nil
}

// ApplicationService drives the pre-issuance workflow. Every premium-
// affecting mutation recalculates the aggregate inside one transaction; the
// cached totals are never persisted stale.
type ApplicationService interface {
	Create(ctx context.Context, in NewApplicationInput) (Application, error)
	Get(ctx context.Context, id string) (Application, error)

	AddMember(ctx context.Context, appID string, in NewMemberInput) (Application, error)
	RemoveMember(ctx context.Context, appID, memberID string) (Application, error)
	AddAddon(ctx context.Context, appID, addonID string) (Application, error)
	RemoveAddon(ctx context.Context, appID, addonID string) (Application, error)
	Recalculate(ctx context.Context, appID string) (Application, error)

	MarkQuoted(ctx context.Context, appID string) (Application, error)
	Submit(ctx context.Context, appID string) (Application, error)
	StartUnderwriting(ctx context.Context, appID, underwriterID string) (Application, error)
	Approve(ctx context.Context, appID, underwriterID string) (Application, error)
	Decline(ctx context.Context, appID, reason string) (Application, error)
	Refer(ctx context.Context, appID, notes string) (Application, error)
	Accept(ctx context.Context, appID, acceptanceRef string) (Application, error)
	Convert(ctx context.Context, appID, issuedBy string) (Application, Policy, error)
	Cancel(ctx context.Context, appID, reason string) (Application, error)

	ApproveMember(ctx context.Context, appID, memberID string) (Application, error)
	DeclineMember(ctx context.Context, appID, memberID, reason string) (Application, error)
	ApplyMemberTerms(ctx context.Context, appID, memberID string, in TermsInput) (Application, error)

	// ExpireQuotes flips applications past their quote validity window to
	// expired. Called by the expiry worker.
	ExpireQuotes(ctx context.Context, limit int) (int, error)
}

type applicationService struct {
	apps         ApplicationRepo
	policies     PolicyRepo
	loadingRules LoadingRuleRepo
	rater        PremiumService
	tx           TxRunner
	quoteDays    int
	acceptDays   int
	clock        func() time.Time
}

func NewApplicationService(apps ApplicationRepo, policies PolicyRepo, loadingRules LoadingRuleRepo, rater PremiumService, tx TxRunner, quoteDays, acceptDays int) ApplicationService {
	if quoteDays <= 0 {
		quoteDays = 30
	}
	if acceptDays <= 0 {
		acceptDays = 14
	}
	return &applicationService{
		apps:         apps,
		policies:     policies,
		loadingRules: loadingRules,
		rater:        rater,
		tx:           tx,
		quoteDays:    quoteDays,
		acceptDays:   acceptDays,
		clock:        time.Now,
	}
}

func (s *applicationService) Create(ctx context.Context, in NewApplicationInput) (Application, error) {
	if err := in.Validate(); err != nil {
		return Application{}, err
	}

	now := s.clock()
	start := now
	if in.ProposedStart != nil {
		start = *in.ProposedStart
	}
	app := Application{
		ID:               ids.New(),
		SchemeID:         in.SchemeID,
		PlanID:           in.PlanID,
		RateCardID:       in.RateCardID,
		GroupID:          in.GroupID,
		GroupSize:        in.GroupSize,
		BillingFrequency: in.BillingFrequency,
		ProposedStart:    start,
		Status:           ApplicationStatusDraft,
		UWStatus:         UWPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return Application{}, err
	}
	return app, nil
}

func (s *applicationService) Get(ctx context.Context, id string) (Application, error) {
	if id == "" {
		return Application{}, fmt.Errorf("%w: missing application ID", ErrValidation)
	}
	return s.apps.Get(ctx, id)
}

// mutate runs one read-modify-write cycle atomically: load, apply fn,
// optionally re-rate, persist. The repo's revision check plus the enclosing
// transaction keep concurrent mutations from silently overwriting each
// other's recalculated totals.
func (s *applicationService) mutate(ctx context.Context, id string, recalc bool, fn func(app *Application) error) (Application, error) {
	if id == "" {
		return Application{}, fmt.Errorf("%w: missing application ID", ErrValidation)
	}
	var out Application
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		app, err := s.apps.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(&app); err != nil {
			return err
		}
		app.UpdateMemberCounts()
		if recalc {
			if err := s.rater.RateApplication(ctx, &app); err != nil {
				return err
			}
		}
		app.UpdatedAt = s.clock()
		if err := s.apps.Update(ctx, app); err != nil {
			return err
		}
		out = app
		return nil
	})
	if err != nil {
		return Application{}, err
	}
	return out, nil
}

func (s *applicationService) guardMutable(app *Application) error {
	switch app.Status {
	case ApplicationStatusDraft, ApplicationStatusQuoted:
		return nil
	default:
		return fmt.Errorf("%w: members and addons can only change while the application is draft or quoted, not %s",
			ErrInvalidState, app.Status)
	}
}

func (s *applicationService) AddMember(ctx context.Context, appID string, in NewMemberInput) (Application, error) {
	now := s.clock()
	member := ApplicationMember{
		ID:                ids.New(),
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		Role:              in.Role,
		DateOfBirth:       in.DateOfBirth,
		AgeAtInception:    in.Age,
		Gender:            in.Gender,
		Region:            in.Region,
		Conditions:        in.Conditions,
		UnderwritingState: UWPending,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := member.Validate(); err != nil {
		return Application{}, err
	}
	return s.mutate(ctx, appID, true, func(app *Application) error {
		if err := s.guardMutable(app); err != nil {
			return err
		}
		app.Members = append(app.Members, member)
		return nil
	})
}

func (s *applicationService) RemoveMember(ctx context.Context, appID, memberID string) (Application, error) {
	return s.mutate(ctx, appID, true, func(app *Application) error {
		if err := s.guardMutable(app); err != nil {
			return err
		}
		for i := range app.Members {
			if app.Members[i].ID == memberID {
				app.Members = append(app.Members[:i], app.Members[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: member %s not on application", ErrNotFound, memberID)
	})
}

func (s *applicationService) AddAddon(ctx context.Context, appID, addonID string) (Application, error) {
	if addonID == "" {
		return Application{}, fmt.Errorf("%w: missing addon ID", ErrValidation)
	}
	return s.mutate(ctx, appID, true, func(app *Application) error {
		if err := s.guardMutable(app); err != nil {
			return err
		}
		for _, a := range app.Addons {
			if a.AddonID == addonID {
				return fmt.Errorf("%w: addon already selected", ErrConflict)
			}
		}
		app.Addons = append(app.Addons, ApplicationAddon{ID: ids.New(), AddonID: addonID})
		return nil
	})
}

func (s *applicationService) RemoveAddon(ctx context.Context, appID, addonID string) (Application, error) {
	return s.mutate(ctx, appID, true, func(app *Application) error {
		if err := s.guardMutable(app); err != nil {
			return err
		}
		for i := range app.Addons {
			if app.Addons[i].AddonID == addonID {
				app.Addons = append(app.Addons[:i], app.Addons[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: addon %s not on application", ErrNotFound, addonID)
	})
}

func (s *applicationService) Recalculate(ctx context.Context, appID string) (Application, error) {
	return s.mutate(ctx, appID, true, func(app *Application) error {
		if app.IsTerminal() {
			return fmt.Errorf("%w: application is %s", ErrInvalidState, app.Status)
		}
		return nil
	})
}

func (s *applicationService) MarkQuoted(ctx context.Context, appID string) (Application, error) {
	return s.mutate(ctx, appID, true, func(app *Application) error {
		app.UpdateMemberCounts()
		if app.MemberCount == 0 {
			return fmt.Errorf("%w: cannot quote an application without members", ErrValidation)
		}
		if !app.Status.CanTransitionTo(ApplicationStatusQuoted) {
			return fmt.Errorf("%w: cannot quote application in %s status", ErrInvalidState, app.Status)
		}
		until := s.clock().AddDate(0, 0, s.quoteDays)
		app.Status = ApplicationStatusQuoted
		app.QuoteValidUntil = &until
		return nil
	})
}

func (s *applicationService) Submit(ctx context.Context, appID string) (Application, error) {
	return s.mutate(ctx, appID, false, func(app *Application) error {
		if app.Status != ApplicationStatusQuoted {
			return fmt.Errorf("%w: only quoted applications can be submitted, not %s", ErrInvalidState, app.Status)
		}
		if app.MemberCount == 0 {
			return fmt.Errorf("%w: cannot submit an application without members", ErrValidation)
		}
		if app.IsQuoteExpired(s.clock()) {
			return fmt.Errorf("%w: quote has expired", ErrInvalidState)
		}
		app.Status = ApplicationStatusSubmitted
		return nil
	})
}

func (s *applicationService) StartUnderwriting(ctx context.Context, appID, underwriterID string) (Application, error) {
	return s.mutate(ctx, appID, false, func(app *Application) error {
		switch app.Status {
		case ApplicationStatusSubmitted:
			app.Status = ApplicationStatusUnderwriting
		case ApplicationStatusUnderwriting:
			// already in review; reassignment only
		default:
			return fmt.Errorf("%w: underwriting requires a submitted application, not %s", ErrInvalidState, app.Status)
		}
		app.UnderwriterID = underwriterID
		app.UWStatus = UWInReview
		return nil
	})
}

func (s *applicationService) decisionGuard(app *Application) error {
	if app.Status != ApplicationStatusSubmitted && app.Status != ApplicationStatusUnderwriting {
		return fmt.Errorf("%w: underwriting decisions require a submitted or underwriting application, not %s",
			ErrInvalidState, app.Status)
	}
	return nil
}

func (s *applicationService) Approve(ctx context.Context, appID, underwriterID string) (Application, error) {
	return s.mutate(ctx, appID, false, func(app *Application) error {
		if err := s.decisionGuard(app); err != nil {
			return err
		}
		until := s.clock().AddDate(0, 0, s.acceptDays)
		app.Status = ApplicationStatusApproved
		app.UWStatus = UWApproved
		if underwriterID != "" {
			app.UnderwriterID = underwriterID
		}
		app.QuoteValidUntil = &until
		return nil
	})
}

func (s *applicationService) Decline(ctx context.Context, appID, reason string) (Application, error) {
	if strings.TrimSpace(reason) == "" {
		return Application{}, fmt.Errorf("%w: a decline reason is required", ErrValidation)
	}
	return s.mutate(ctx, appID, false, func(app *Application) error {
		if err := s.decisionGuard(app); err != nil {
			return err
		}
		app.Status = ApplicationStatusDeclined
		app.UWStatus = UWDeclined
		app.DecisionNotes = reason
		return nil
	})
}

func (s *applicationService) Refer(ctx context.Context, appID, notes string) (Application, error) {
	if strings.TrimSpace(notes) == "" {
		return Application{}, fmt.Errorf("%w: referral notes are required", ErrValidation)
	}
	return s.mutate(ctx, appID, false, func(app *Application) error {
		if err := s.decisionGuard(app); err != nil {
			return err
		}
		app.Status = ApplicationStatusReferred
		app.UWStatus = UWReferred
		app.DecisionNotes = notes
		return nil
	})
}

func (s *applicationService) Accept(ctx context.Context, appID, acceptanceRef string) (Application, error) {
	if strings.TrimSpace(acceptanceRef) == "" {
		return Application{}, fmt.Errorf("%w: an acceptance reference is required", ErrValidation)
	}
	return s.mutate(ctx, appID, false, func(app *Application) error {
		if app.Status != ApplicationStatusApproved {
			return fmt.Errorf("%w: only approved applications can be accepted, not %s", ErrInvalidState, app.Status)
		}
		if app.IsQuoteExpired(s.clock()) {
			return fmt.Errorf("%w: offer has expired", ErrInvalidState)
		}
		app.Status = ApplicationStatusAccepted
		app.AcceptanceRef = acceptanceRef
		return nil
	})
}

func (s *applicationService) Convert(ctx context.Context, appID, issuedBy string) (Application, Policy, error) {
	if appID == "" {
		return Application{}, Policy{}, fmt.Errorf("%w: missing application ID", ErrValidation)
	}
	var (
		outApp Application
		outPol Policy
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		app, err := s.apps.Get(ctx, appID)
		if err != nil {
			return err
		}
		if app.Status != ApplicationStatusAccepted {
			return fmt.Errorf("%w: only accepted applications can be converted, not %s", ErrInvalidState, app.Status)
		}
		now := s.clock()
		if app.IsQuoteExpired(now) {
			return fmt.Errorf("%w: offer has expired", ErrInvalidState)
		}
		if existing, err := s.policies.GetByApplicationID(ctx, appID); err == nil {
			return fmt.Errorf("%w: already converted to policy %s", ErrConflict, existing.ID)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		number, err := s.policies.NextPolicyNumber(ctx)
		if err != nil {
			return fmt.Errorf("generate policy number: %w", err)
		}

		effective := app.ProposedStart
		if effective.IsZero() || effective.Before(now) {
			effective = now
		}
		policy := snapshotPolicy(app, number, issuedBy, effective, now)

		// Policy totals are derived from its own members and addons, not
		// copied blindly from the application.
		if err := s.rater.RatePolicy(ctx, &policy); err != nil {
			return err
		}
		if err := s.policies.Create(ctx, policy); err != nil {
			return err
		}

		app.Status = ApplicationStatusConverted
		app.PolicyID = policy.ID
		app.UpdatedAt = now
		if err := s.apps.Update(ctx, app); err != nil {
			return err
		}
		outApp, outPol = app, policy
		return nil
	})
	if err != nil {
		return Application{}, Policy{}, err
	}
	return outApp, outPol, nil
}

func snapshotPolicy(app Application, number, issuedBy string, effective, now time.Time) Policy {
	waiting := effective.AddDate(0, 0, waitingPeriodDays)
	members := make([]Member, 0, len(app.Members))
	for _, m := range app.Members {
		if !m.Active {
			continue
		}
		members = append(members, Member{
			ID:               ids.New(),
			FirstName:        m.FirstName,
			LastName:         m.LastName,
			Role:             m.Role,
			Age:              m.AgeAtInception,
			Gender:           m.Gender,
			Region:           m.Region,
			CardNumber:       "CRD-" + ids.New()[:8],
			CardStatus:       CardStatusIssued,
			WaitingPeriodEnd: &waiting,
			Status:           MemberStatusActive,
			BasePremium:      m.BasePremium,
			LoadingAmount:    m.LoadingAmount,
			TotalPremium:     m.TotalPremium,
			Loadings:         m.AppliedLoadings,
			Exclusions:       m.AppliedExclusions,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}
	addons := make([]PolicyAddon, 0, len(app.Addons))
	for _, a := range app.Addons {
		addons = append(addons, PolicyAddon{
			ID:          ids.New(),
			AddonID:     a.AddonID,
			Name:        a.Name,
			PricingType: a.PricingType,
			Amount:      a.Amount,
		})
	}
	return Policy{
		ID:               ids.New(),
		Number:           number,
		ApplicationID:    app.ID,
		SchemeID:         app.SchemeID,
		PlanID:           app.PlanID,
		RateCardID:       app.RateCardID,
		GroupID:          app.GroupID,
		GroupSize:        app.GroupSize,
		BillingFrequency: app.BillingFrequency,
		Status:           PolicyStatusActive,
		EffectiveDate:    effective,
		RenewalDate:      effective.AddDate(1, 0, 0),
		IssuedBy:         issuedBy,
		Members:          members,
		Addons:           addons,
		Currency:         app.Currency,
		IssuedAt:         now,
		UpdatedAt:        now,
	}
}

func (s *applicationService) Cancel(ctx context.Context, appID, reason string) (Application, error) {
	if strings.TrimSpace(reason) == "" {
		return Application{}, fmt.Errorf("%w: a cancellation reason is required", ErrValidation)
	}
	return s.mutate(ctx, appID, false, func(app *Application) error {
		if app.Status == ApplicationStatusConverted {
			return fmt.Errorf("%w: converted applications cannot be cancelled", ErrInvalidState)
		}
		if app.IsTerminal() {
			return fmt.Errorf("%w: application is already %s", ErrInvalidState, app.Status)
		}
		app.Status = ApplicationStatusCancelled
		app.CancelReason = reason
		return nil
	})
}

func (s *applicationService) memberByID(app *Application, memberID string) (*ApplicationMember, error) {
	for i := range app.Members {
		if app.Members[i].ID == memberID {
			return &app.Members[i], nil
		}
	}
	return nil, fmt.Errorf("%w: member %s not on application", ErrNotFound, memberID)
}

func (s *applicationService) ApproveMember(ctx context.Context, appID, memberID string) (Application, error) {
	return s.mutate(ctx, appID, false, func(app *Application) error {
		m, err := s.memberByID(app, memberID)
		if err != nil {
			return err
		}
		if !m.UnderwritingState.CanTransitionTo(UWApproved) {
			return fmt.Errorf("%w: member underwriting is already %s", ErrInvalidState, m.UnderwritingState)
		}
		m.UnderwritingState = UWApproved
		m.UpdatedAt = s.clock()
		return nil
	})
}

func (s *applicationService) DeclineMember(ctx context.Context, appID, memberID, reason string) (Application, error) {
	if strings.TrimSpace(reason) == "" {
		return Application{}, fmt.Errorf("%w: a decline reason is required", ErrValidation)
	}
	return s.mutate(ctx, appID, true, func(app *Application) error {
		m, err := s.memberByID(app, memberID)
		if err != nil {
			return err
		}
		if !m.UnderwritingState.CanTransitionTo(UWDeclined) {
			return fmt.Errorf("%w: member underwriting is already %s", ErrInvalidState, m.UnderwritingState)
		}
		// a declined member drops out of counts and totals
		m.UnderwritingState = UWDeclined
		m.Active = false
		m.UpdatedAt = s.clock()
		return nil
	})
}

func (s *applicationService) ApplyMemberTerms(ctx context.Context, appID, memberID string, in TermsInput) (Application, error) {
	if len(in.Conditions) == 0 {
		return Application{}, fmt.Errorf("%w: terms require at least one condition", ErrValidation)
	}
	rules, err := s.loadingRules.FindActive(ctx)
	if err != nil {
		return Application{}, err
	}
	return s.mutate(ctx, appID, true, func(app *Application) error {
		m, err := s.memberByID(app, memberID)
		if err != nil {
			return err
		}
		if !m.UnderwritingState.CanTransitionTo(UWTerms) {
			return fmt.Errorf("%w: member underwriting is already %s", ErrInvalidState, m.UnderwritingState)
		}
		lr := CalculateLoadings(m.BasePremium, in.Conditions, rules, app.ProposedStart)
		m.UnderwritingState = UWTerms
		m.AppliedLoadings = lr.Loadings
		m.AppliedExclusions = lr.Exclusions
		m.UpdatedAt = s.clock()
		return nil
	})
}

func (s *applicationService) ExpireQuotes(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}
	now := s.clock()
	apps, err := s.apps.FindQuoteExpired(ctx, now, limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, app := range apps {
		if app.IsTerminal() || app.Status == ApplicationStatusConverted {
			continue
		}
		app.Status = ApplicationStatusExpired
		app.UpdatedAt = now
		if err := s.apps.Update(ctx, app); err != nil {
			if errors.Is(err, ErrConflict) {
				continue // raced with a concurrent transition
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}
