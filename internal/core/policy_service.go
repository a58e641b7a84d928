package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/healthbridge/go-medscheme/internal/platform/ids"
)

// PolicyService manages the post-issuance lifecycle. Suspension and
// cancellation cascade to members; reinstatement only wakes members the
// policy itself put to sleep.
type PolicyService interface {
	Get(ctx context.Context, id string) (Policy, error)
	GetByNumber(ctx context.Context, number string) (Policy, error)
	List(ctx context.Context, filter PolicyFilter, limit, offset int) ([]Policy, int64, error)

	Suspend(ctx context.Context, id, reason string) (Policy, error)
	Reinstate(ctx context.Context, id string) (Policy, error)
	Cancel(ctx context.Context, id, reason, cancelledBy string) (Policy, error)

	AddMember(ctx context.Context, policyID string, in NewMemberInput) (Policy, error)
	RemoveMember(ctx context.Context, policyID, memberID, reason string) (Policy, error)
	SuspendMember(ctx context.Context, policyID, memberID, reason string) (Policy, error)
	ReinstateMember(ctx context.Context, policyID, memberID string) (Policy, error)

	// ExpireLoadings retires time-limited loadings past their end date across
	// active policies and re-rates affected ones. Called by the expiry worker.
	ExpireLoadings(ctx context.Context, limit int) (int, error)

	// CreateRenewalApplication opens a new draft application pre-filled from
	// an active policy approaching its renewal date.
	CreateRenewalApplication(ctx context.Context, policyID string) (Application, error)
}

type policyService struct {
	policies PolicyRepo
	apps     ApplicationRepo
	rater    PremiumService
	tx       TxRunner
	clock    func() time.Time
}

func NewPolicyService(policies PolicyRepo, apps ApplicationRepo, rater PremiumService, tx TxRunner) PolicyService {
	return &policyService{policies: policies, apps: apps, rater: rater, tx: tx, clock: time.Now}
}

func (s *policyService) Get(ctx context.Context, id string) (Policy, error) {
	if id == "" {
		return Policy{}, fmt.Errorf("%w: missing policy ID", ErrValidation)
	}
	return s.policies.Get(ctx, id)
}

func (s *policyService) GetByNumber(ctx context.Context, number string) (Policy, error) {
	if number == "" {
		return Policy{}, fmt.Errorf("%w: missing policy number", ErrValidation)
	}
	return s.policies.GetByNumber(ctx, number)
}

func (s *policyService) List(ctx context.Context, filter PolicyFilter, limit, offset int) ([]Policy, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.policies.List(ctx, filter, limit, offset)
}

func (s *policyService) mutate(ctx context.Context, id string, recalc bool, fn func(p *Policy) error) (Policy, error) {
	if id == "" {
		return Policy{}, fmt.Errorf("%w: missing policy ID", ErrValidation)
	}
	var out Policy
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.policies.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(&p); err != nil {
			return err
		}
		p.UpdateMemberCounts()
		if recalc {
			if err := s.rater.RatePolicy(ctx, &p); err != nil {
				return err
			}
		}
		p.UpdatedAt = s.clock()
		if err := s.policies.Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return Policy{}, err
	}
	return out, nil
}

func (s *policyService) Suspend(ctx context.Context, id, reason string) (Policy, error) {
	if strings.TrimSpace(reason) == "" {
		return Policy{}, fmt.Errorf("%w: a suspension reason is required", ErrValidation)
	}
	return s.mutate(ctx, id, false, func(p *Policy) error {
		if !p.Status.CanTransitionTo(PolicyStatusSuspended) {
			return fmt.Errorf("%w: cannot suspend a %s policy", ErrInvalidState, p.Status)
		}
		now := s.clock()
		p.Status = PolicyStatusSuspended
		p.SuspensionReason = reason
		for i := range p.Members {
			if p.Members[i].Status != MemberStatusActive {
				continue
			}
			p.Members[i].Status = MemberStatusSuspended
			p.Members[i].SuspendedByPolicy = true
			p.Members[i].SuspensionReason = reason
			p.Members[i].CardStatus = CardStatusBlocked
			p.Members[i].UpdatedAt = now
		}
		return nil
	})
}

func (s *policyService) Reinstate(ctx context.Context, id string) (Policy, error) {
	return s.mutate(ctx, id, false, func(p *Policy) error {
		if !p.Status.CanTransitionTo(PolicyStatusActive) {
			return fmt.Errorf("%w: cannot reinstate a %s policy", ErrInvalidState, p.Status)
		}
		now := s.clock()
		p.Status = PolicyStatusActive
		p.SuspensionReason = ""
		for i := range p.Members {
			// individually suspended members stay suspended
			if !p.Members[i].SuspendedByPolicy {
				continue
			}
			p.Members[i].Status = MemberStatusActive
			p.Members[i].SuspendedByPolicy = false
			p.Members[i].SuspensionReason = ""
			p.Members[i].CardStatus = CardStatusIssued
			p.Members[i].UpdatedAt = now
		}
		return nil
	})
}

func (s *policyService) Cancel(ctx context.Context, id, reason, cancelledBy string) (Policy, error) {
	if strings.TrimSpace(reason) == "" {
		return Policy{}, fmt.Errorf("%w: a cancellation reason is required", ErrValidation)
	}
	return s.mutate(ctx, id, false, func(p *Policy) error {
		if !p.Status.CanTransitionTo(PolicyStatusCancelled) {
			return fmt.Errorf("%w: cannot cancel a %s policy", ErrInvalidState, p.Status)
		}
		now := s.clock()
		p.Status = PolicyStatusCancelled
		p.CancelReason = reason
		p.CancelledBy = cancelledBy
		for i := range p.Members {
			if p.Members[i].Status == MemberStatusTerminated {
				continue
			}
			p.Members[i].Status = MemberStatusTerminated
			p.Members[i].TerminationReason = "policy cancelled"
			p.Members[i].CardStatus = CardStatusBlocked
			p.Members[i].UpdatedAt = now
		}
		return nil
	})
}

func (s *policyService) AddMember(ctx context.Context, policyID string, in NewMemberInput) (Policy, error) {
	now := s.clock()
	probe := ApplicationMember{
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Role:           in.Role,
		AgeAtInception: in.Age,
	}
	if err := probe.Validate(); err != nil {
		return Policy{}, err
	}
	return s.mutate(ctx, policyID, true, func(p *Policy) error {
		if p.Status != PolicyStatusActive {
			return fmt.Errorf("%w: members can only be added to an active policy", ErrInvalidState)
		}
		waiting := now.AddDate(0, 0, waitingPeriodDays)
		p.Members = append(p.Members, Member{
			ID:               ids.New(),
			FirstName:        in.FirstName,
			LastName:         in.LastName,
			Role:             in.Role,
			Age:              in.Age,
			Gender:           in.Gender,
			Region:           in.Region,
			CardNumber:       "CRD-" + ids.New()[:8],
			CardStatus:       CardStatusIssued,
			WaitingPeriodEnd: &waiting,
			Status:           MemberStatusActive,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		return nil
	})
}

func (s *policyService) memberByID(p *Policy, memberID string) (*Member, error) {
	for i := range p.Members {
		if p.Members[i].ID == memberID {
			return &p.Members[i], nil
		}
	}
	return nil, fmt.Errorf("%w: member %s not on policy", ErrNotFound, memberID)
}

func (s *policyService) RemoveMember(ctx context.Context, policyID, memberID, reason string) (Policy, error) {
	if strings.TrimSpace(reason) == "" {
		return Policy{}, fmt.Errorf("%w: a termination reason is required", ErrValidation)
	}
	return s.mutate(ctx, policyID, true, func(p *Policy) error {
		if p.Status == PolicyStatusCancelled {
			return fmt.Errorf("%w: policy is cancelled", ErrInvalidState)
		}
		m, err := s.memberByID(p, memberID)
		if err != nil {
			return err
		}
		if m.Status == MemberStatusTerminated {
			return fmt.Errorf("%w: member already terminated", ErrInvalidState)
		}
		if m.Role == RolePrincipal && p.PrincipalCount <= 1 {
			return fmt.Errorf("%w: cannot remove the last principal member; cancel the policy instead", ErrValidation)
		}
		m.Status = MemberStatusTerminated
		m.TerminationReason = reason
		m.CardStatus = CardStatusBlocked
		m.UpdatedAt = s.clock()
		return nil
	})
}

func (s *policyService) SuspendMember(ctx context.Context, policyID, memberID, reason string) (Policy, error) {
	if strings.TrimSpace(reason) == "" {
		return Policy{}, fmt.Errorf("%w: a suspension reason is required", ErrValidation)
	}
	return s.mutate(ctx, policyID, true, func(p *Policy) error {
		if p.Status != PolicyStatusActive {
			return fmt.Errorf("%w: member suspensions require an active policy", ErrInvalidState)
		}
		m, err := s.memberByID(p, memberID)
		if err != nil {
			return err
		}
		if m.Status != MemberStatusActive {
			return fmt.Errorf("%w: member is %s", ErrInvalidState, m.Status)
		}
		m.Status = MemberStatusSuspended
		m.SuspendedByPolicy = false
		m.SuspensionReason = reason
		m.CardStatus = CardStatusBlocked
		m.UpdatedAt = s.clock()
		return nil
	})
}

func (s *policyService) ReinstateMember(ctx context.Context, policyID, memberID string) (Policy, error) {
	return s.mutate(ctx, policyID, true, func(p *Policy) error {
		if p.Status != PolicyStatusActive {
			return fmt.Errorf("%w: member reinstatement requires an active policy", ErrInvalidState)
		}
		m, err := s.memberByID(p, memberID)
		if err != nil {
			return err
		}
		if m.Status != MemberStatusSuspended {
			return fmt.Errorf("%w: member is %s", ErrInvalidState, m.Status)
		}
		m.Status = MemberStatusActive
		m.SuspendedByPolicy = false
		m.SuspensionReason = ""
		m.CardStatus = CardStatusIssued
		m.UpdatedAt = s.clock()
		return nil
	})
}

func (s *policyService) ExpireLoadings(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}
	now := s.clock()
	policies, err := s.policies.FindActive(ctx, limit)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, p := range policies {
		changed := false
		for i := range p.Members {
			for j := range p.Members[i].Loadings {
				l := &p.Members[i].Loadings[j]
				if l.Status == LoadingStatusActive && l.Expired(now) {
					l.Status = LoadingStatusExpired
					changed = true
				}
			}
		}
		if !changed {
			continue
		}
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.rater.RatePolicy(ctx, &p); err != nil {
				return err
			}
			p.UpdatedAt = now
			return s.policies.Update(ctx, p)
		})
		if err != nil {
			if errors.Is(err, ErrConflict) {
				continue // raced with a concurrent update; next sweep retries
			}
			return updated, err
		}
		updated++
	}
	return updated, nil
}

func (s *policyService) CreateRenewalApplication(ctx context.Context, policyID string) (Application, error) {
	p, err := s.Get(ctx, policyID)
	if err != nil {
		return Application{}, err
	}
	if p.Status != PolicyStatusActive {
		return Application{}, fmt.Errorf("%w: only active policies can be renewed", ErrInvalidState)
	}

	now := s.clock()
	start := p.RenewalDate
	if start.Before(now) {
		start = now
	}
	app := Application{
		ID:               ids.New(),
		SchemeID:         p.SchemeID,
		PlanID:           p.PlanID,
		GroupID:          p.GroupID,
		GroupSize:        p.GroupSize,
		BillingFrequency: p.BillingFrequency,
		ProposedStart:    start,
		Status:           ApplicationStatusDraft,
		UWStatus:         UWPending,
		Currency:         p.Currency,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, m := range p.ActiveMembers() {
		age := m.Age + 1 // one policy year older at renewal
		app.Members = append(app.Members, ApplicationMember{
			ID:                ids.New(),
			FirstName:         m.FirstName,
			LastName:          m.LastName,
			Role:              m.Role,
			AgeAtInception:    age,
			Gender:            m.Gender,
			Region:            m.Region,
			UnderwritingState: UWPending,
			AppliedLoadings:   activeLoadings(m.Loadings, now),
			AppliedExclusions: m.Exclusions,
			Active:            true,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}
	for _, a := range p.Addons {
		app.Addons = append(app.Addons, ApplicationAddon{
			ID:      ids.New(),
			AddonID: a.AddonID,
		})
	}
	app.UpdateMemberCounts()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.rater.RateApplication(ctx, &app); err != nil {
			return err
		}
		return s.apps.Create(ctx, app)
	})
	if err != nil {
		return Application{}, err
	}
	return app, nil
}

func activeLoadings(loadings []AppliedLoading, now time.Time) []AppliedLoading {
	out := make([]AppliedLoading, 0, len(loadings))
	for _, l := range loadings {
		if l.Status == LoadingStatusActive && !l.Expired(now) {
			out = append(out, l)
		}
	}
	return out
}
