package core

import (
	"context"
	"fmt"
	"time"

	"github.com/healthbridge/go-medscheme/internal/platform/ids"
)

// RateCardService owns the draft → approved → active lifecycle. Entries and
// tiers are frozen once a card leaves draft; amendments go through Clone.
type RateCardService interface {
	CreateDraft(ctx context.Context, rc RateCard) (RateCard, error)
	Get(ctx context.Context, id string) (RateCard, error)
	ListByPlan(ctx context.Context, planID string) ([]RateCard, error)
	UpdateDraft(ctx context.Context, rc RateCard) (RateCard, error)
	Approve(ctx context.Context, id string) (RateCard, error)
	Activate(ctx context.Context, id string) (RateCard, error)
	Clone(ctx context.Context, id string) (RateCard, error)
}

type rateCardService struct {
	cards RateCardRepo
	plans PlanRepo
	clock func() time.Time
}

func NewRateCardService(cards RateCardRepo, plans PlanRepo) RateCardService {
	return &rateCardService{cards: cards, plans: plans, clock: time.Now}
}

func (s *rateCardService) CreateDraft(ctx context.Context, rc RateCard) (RateCard, error) {
	if err := rc.Validate(); err != nil {
		return RateCard{}, err
	}
	if _, err := s.plans.Get(ctx, rc.PlanID); err != nil {
		return RateCard{}, err
	}

	now := s.clock()
	rc.ID = ids.New()
	rc.Status = RateCardStatusDraft
	rc.IsActive = false
	if rc.Version == "" {
		rc.Version = "v1"
	}
	if rc.ValidFrom.IsZero() {
		rc.ValidFrom = now
	}
	rc.CreatedAt = now
	rc.UpdatedAt = now

	if err := s.cards.Create(ctx, rc); err != nil {
		return RateCard{}, err
	}
	return rc, nil
}

func (s *rateCardService) Get(ctx context.Context, id string) (RateCard, error) {
	if id == "" {
		return RateCard{}, fmt.Errorf("%w: missing rate card ID", ErrValidation)
	}
	return s.cards.Get(ctx, id)
}

func (s *rateCardService) ListByPlan(ctx context.Context, planID string) ([]RateCard, error) {
	if planID == "" {
		return nil, fmt.Errorf("%w: missing plan ID", ErrValidation)
	}
	return s.cards.ListByPlan(ctx, planID)
}

func (s *rateCardService) UpdateDraft(ctx context.Context, rc RateCard) (RateCard, error) {
	existing, err := s.cards.Get(ctx, rc.ID)
	if err != nil {
		return RateCard{}, err
	}
	if existing.Status != RateCardStatusDraft {
		return RateCard{}, fmt.Errorf("%w: rate card %s is %s; clone to amend",
			ErrInvalidState, existing.ID, existing.Status)
	}
	if err := rc.Validate(); err != nil {
		return RateCard{}, err
	}

	existing.Currency = rc.Currency
	existing.ValidFrom = rc.ValidFrom
	existing.ValidUntil = rc.ValidUntil
	existing.Entries = rc.Entries
	existing.Tiers = rc.Tiers
	existing.UpdatedAt = s.clock()

	if err := s.cards.Update(ctx, existing); err != nil {
		return RateCard{}, err
	}
	return existing, nil
}

func (s *rateCardService) Approve(ctx context.Context, id string) (RateCard, error) {
	rc, err := s.cards.Get(ctx, id)
	if err != nil {
		return RateCard{}, err
	}
	if rc.Status != RateCardStatusDraft {
		return RateCard{}, fmt.Errorf("%w: only draft rate cards can be approved", ErrInvalidState)
	}
	if err := rc.Validate(); err != nil {
		return RateCard{}, err
	}
	rc.Status = RateCardStatusApproved
	rc.UpdatedAt = s.clock()
	if err := s.cards.Update(ctx, rc); err != nil {
		return RateCard{}, err
	}
	return rc, nil
}

func (s *rateCardService) Activate(ctx context.Context, id string) (RateCard, error) {
	rc, err := s.cards.Get(ctx, id)
	if err != nil {
		return RateCard{}, err
	}
	if rc.Status != RateCardStatusApproved {
		return RateCard{}, fmt.Errorf("%w: only approved rate cards can be activated", ErrInvalidState)
	}
	now := s.clock()
	if err := s.cards.Activate(ctx, rc.PlanID, rc.ID, now); err != nil {
		return RateCard{}, err
	}
	rc.Status = RateCardStatusActive
	rc.IsActive = true
	rc.UpdatedAt = now
	return rc, nil
}

func (s *rateCardService) Clone(ctx context.Context, id string) (RateCard, error) {
	rc, err := s.cards.Get(ctx, id)
	if err != nil {
		return RateCard{}, err
	}
	next := rc.Clone(s.clock())
	next.ID = ids.New()
	if err := s.cards.Create(ctx, next); err != nil {
		return RateCard{}, err
	}
	return next, nil
}
