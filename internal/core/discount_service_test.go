package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDiscountService(t *testing.T, rules *memDiscountRuleRepo, promos *memPromoCodeRepo) *discountService {
	t.Helper()
	svc := NewDiscountService(rules, promos, NopTx{}).(*discountService)
	svc.clock = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func welcomePromoFixture() (*memDiscountRuleRepo, *memPromoCodeRepo) {
	rule := DiscountRule{
		ID: "dr-welcome", Name: "Welcome Promo",
		AdjustmentType: AdjustmentDiscount, ValueType: ValueFixed, Value: dec2("150.00"),
		ApplicationMethod: MethodPromoCode, Active: true,
	}
	promo := PromoCode{
		ID: "promo-1", Code: "WELCOME26", DiscountRuleID: "dr-welcome",
		MaxUses: intPtr(1), Active: true,
	}
	return newMemDiscountRuleRepo(rule), newMemPromoCodeRepo(promo)
}

func TestDiscountServiceCalculateDiscounts(t *testing.T) {
	annual := pctRule("dr-annual", "5", 90, true)
	annual.TriggerRules = []TriggerRule{{Field: "billing_frequency", Kind: TriggerEquals, Value: "annual"}}
	rules := newMemDiscountRuleRepo(annual)
	svc := newTestDiscountService(t, rules, newMemPromoCodeRepo())

	res, err := svc.CalculateDiscounts(context.Background(), dec2("1000.00"), DiscountContext{
		BillingFrequency: FrequencyAnnual,
	})
	require.NoError(t, err)
	require.Len(t, res.Discounts, 1)
	assert.True(t, res.FinalPremium.Equal(dec2("950.00")))

	res, err = svc.CalculateDiscounts(context.Background(), dec2("1000.00"), DiscountContext{
		BillingFrequency: FrequencyMonthly,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Discounts)
}

func TestApplyPromoCodeRedeems(t *testing.T) {
	rules, promos := welcomePromoFixture()
	svc := newTestDiscountService(t, rules, promos)

	res, err := svc.ApplyPromoCode(context.Background(), " welcome26 ", dec2("1000.00"), DiscountContext{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "WELCOME26", res.Code, "normalized to upper case")
	assert.True(t, res.DiscountAmount.Equal(dec2("150.00")))
	assert.True(t, res.FinalPremium.Equal(dec2("850.00")))

	promo, err := promos.GetByCode(context.Background(), "WELCOME26")
	require.NoError(t, err)
	assert.Equal(t, 1, promo.CurrentUses)

	rule, err := rules.Get(context.Background(), "dr-welcome")
	require.NoError(t, err)
	assert.Equal(t, 1, rule.UsageCount)
}

func TestApplyPromoCodeSingleUse(t *testing.T) {
	rules, promos := welcomePromoFixture()
	svc := newTestDiscountService(t, rules, promos)
	ctx := context.Background()

	first, err := svc.ApplyPromoCode(ctx, "WELCOME26", dec2("1000.00"), DiscountContext{})
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := svc.ApplyPromoCode(ctx, "WELCOME26", dec2("1000.00"), DiscountContext{})
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Contains(t, second.Message, "usage limit")
	assert.True(t, second.FinalPremium.Equal(dec2("1000.00")), "premium unchanged on failure")
}

func TestApplyPromoCodeExpectedFailures(t *testing.T) {
	rules, promos := welcomePromoFixture()
	svc := newTestDiscountService(t, rules, promos)
	ctx := context.Background()

	t.Run("empty code", func(t *testing.T) {
		res, err := svc.ApplyPromoCode(ctx, "  ", dec2("1000.00"), DiscountContext{})
		require.NoError(t, err)
		assert.False(t, res.Success)
	})

	t.Run("unknown code", func(t *testing.T) {
		res, err := svc.ApplyPromoCode(ctx, "NOPE", dec2("1000.00"), DiscountContext{})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "invalid")
	})

	t.Run("inactive backing rule", func(t *testing.T) {
		rule, err := rules.Get(ctx, "dr-welcome")
		require.NoError(t, err)
		rule.Active = false
		require.NoError(t, rules.Upsert(ctx, rule))
		defer func() {
			rule.Active = true
			_ = rules.Upsert(ctx, rule)
		}()

		res, err := svc.ApplyPromoCode(ctx, "WELCOME26", dec2("1000.00"), DiscountContext{})
		require.NoError(t, err)
		assert.False(t, res.Success)
	})

	t.Run("ineligible plan", func(t *testing.T) {
		promo, err := promos.GetByCode(ctx, "WELCOME26")
		require.NoError(t, err)
		promo.EligiblePlanIDs = []string{"plan-essential"}
		require.NoError(t, promos.Upsert(ctx, promo))

		res, err := svc.ApplyPromoCode(ctx, "WELCOME26", dec2("1000.00"), DiscountContext{PlanID: "plan-corporate"})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "plan")
	})
}

func TestApplyPromoCodeCapsAtPremium(t *testing.T) {
	rules, promos := welcomePromoFixture()
	svc := newTestDiscountService(t, rules, promos)

	// fixed 150 against a 90 premium never goes negative
	res, err := svc.ApplyPromoCode(context.Background(), "WELCOME26", dec2("90.00"), DiscountContext{})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.True(t, res.DiscountAmount.Equal(dec2("90.00")))
	assert.True(t, res.FinalPremium.IsZero())
}

func TestApplyPromoCodeMaxDiscountAmount(t *testing.T) {
	rule := DiscountRule{
		ID: "dr-pct", Name: "Percent Promo",
		AdjustmentType: AdjustmentDiscount, ValueType: ValuePercentage, Value: dec2("20"),
		ApplicationMethod: MethodPromoCode, MaxDiscountAmount: decPtr2("100.00"), Active: true,
	}
	promo := PromoCode{ID: "promo-2", Code: "BIGSAVE", DiscountRuleID: "dr-pct", Active: true}
	svc := newTestDiscountService(t, newMemDiscountRuleRepo(rule), newMemPromoCodeRepo(promo))

	res, err := svc.ApplyPromoCode(context.Background(), "BIGSAVE", dec2("1000.00"), DiscountContext{})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.True(t, res.DiscountAmount.Equal(dec2("100.00")), "20%% capped at 100")
	assert.True(t, res.FinalPremium.Equal(dec2("900.00")))
}
