package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PromoResult is the outcome of a redemption attempt. Expected failures
// (invalid, expired, exhausted, ineligible) come back as Success=false with
// a reason, never as an error.
type PromoResult struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message,omitempty"`
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalPremium   decimal.Decimal `json:"final_premium"`
}

type DiscountService interface {
	// CalculateDiscounts evaluates automatic rules in scope against the
	// context and applies stacking policy to the given premium.
	CalculateDiscounts(ctx context.Context, premium decimal.Decimal, dctx DiscountContext) (DiscountResult, error)

	// ApplyPromoCode validates and redeems a code atop the current premium.
	// The usage increment is atomic with the application so a single-use
	// code cannot be redeemed twice under concurrent requests.
	ApplyPromoCode(ctx context.Context, code string, premium decimal.Decimal, dctx DiscountContext) (PromoResult, error)
}

type discountService struct {
	rules  DiscountRuleRepo
	promos PromoCodeRepo
	tx     TxRunner
	clock  func() time.Time
}

func NewDiscountService(rules DiscountRuleRepo, promos PromoCodeRepo, tx TxRunner) DiscountService {
	return &discountService{rules: rules, promos: promos, tx: tx, clock: time.Now}
}

func (s *discountService) CalculateDiscounts(ctx context.Context, premium decimal.Decimal, dctx DiscountContext) (DiscountResult, error) {
	now := s.clock()
	rules, err := s.rules.FindAutomatic(ctx, dctx.SchemeID, dctx.PlanID, now)
	if err != nil {
		return DiscountResult{}, err
	}
	return CalculateDiscounts(premium, rules, dctx, now), nil
}

func (s *discountService) ApplyPromoCode(ctx context.Context, code string, premium decimal.Decimal, dctx DiscountContext) (PromoResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	fail := func(msg string) PromoResult {
		return PromoResult{Success: false, Message: msg, Code: code, FinalPremium: premium}
	}
	if code == "" {
		return fail("promo code is required"), nil
	}

	now := s.clock()
	var result PromoResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		promo, err := s.promos.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				result = fail("invalid promo code")
				return nil
			}
			return err
		}
		if ok, reason := promo.Usable(now); !ok {
			result = fail(reason)
			return nil
		}
		if ok, reason := promo.EligibleFor(dctx.SchemeID, dctx.PlanID, dctx.GroupID); !ok {
			result = fail(reason)
			return nil
		}

		rule, err := s.rules.Get(ctx, promo.DiscountRuleID)
		if err != nil {
			return err
		}
		if !rule.CanBeUsed(now) {
			result = fail("promo code is not currently available")
			return nil
		}

		var delta decimal.Decimal
		switch rule.ValueType {
		case ValuePercentage:
			delta = PercentOf(premium, rule.Value)
		case ValueFixed:
			delta = Round2(rule.Value)
		}
		if rule.MaxDiscountAmount != nil && delta.GreaterThan(*rule.MaxDiscountAmount) {
			delta = Round2(*rule.MaxDiscountAmount)
		}
		if delta.GreaterThan(premium) {
			delta = premium
		}

		// Conditional increment is the double-spend guard: it fails once
		// current_uses reaches max_uses regardless of what we read above.
		if err := s.promos.ConsumeUse(ctx, promo.ID); err != nil {
			if errors.Is(err, ErrValidation) {
				result = fail("promo code usage limit reached")
				return nil
			}
			return err
		}
		if err := s.rules.IncrementUsage(ctx, rule.ID); err != nil {
			return err
		}

		result = PromoResult{
			Success:        true,
			Code:           code,
			DiscountAmount: delta,
			FinalPremium:   Round2(premium.Sub(delta)),
		}
		return nil
	})
	if err != nil {
		return PromoResult{}, err
	}
	return result, nil
}
