package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type LoadingService interface {
	// CalculateLoadings maps declared conditions to active rules and
	// computes the additive loading on the premium baseline. coverStart
	// anchors time-limited end dates; nil means today.
	CalculateLoadings(ctx context.Context, premium decimal.Decimal, conditions []string, coverStart *time.Time) (LoadingResult, error)
}

type loadingService struct {
	rules LoadingRuleRepo
	clock func() time.Time
}

func NewLoadingService(rules LoadingRuleRepo) LoadingService {
	return &loadingService{rules: rules, clock: time.Now}
}

func (s *loadingService) CalculateLoadings(ctx context.Context, premium decimal.Decimal, conditions []string, coverStart *time.Time) (LoadingResult, error) {
	start := s.clock()
	if coverStart != nil {
		start = *coverStart
	}
	rules, err := s.rules.FindActive(ctx)
	if err != nil {
		return LoadingResult{}, err
	}
	return CalculateLoadings(premium, conditions, rules, start), nil
}
