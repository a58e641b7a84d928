package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discountNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func pctRule(id string, value string, priority int, stack bool) DiscountRule {
	return DiscountRule{
		ID: id, Name: id,
		AdjustmentType:    AdjustmentDiscount,
		ValueType:         ValuePercentage,
		Value:             dec2(value),
		ApplicationMethod: MethodAutomatic,
		CanStack:          stack,
		Priority:          priority,
		Active:            true,
	}
}

func TestCalculateDiscountsStacksInPriorityOrder(t *testing.T) {
	fixed := DiscountRule{
		ID: "fixed-50", Name: "fixed-50",
		AdjustmentType: AdjustmentDiscount, ValueType: ValueFixed, Value: dec2("50.00"),
		CanStack: true, Priority: 90, Active: true,
	}
	rules := []DiscountRule{fixed, pctRule("pct-10", "10", 100, true)}

	res := CalculateDiscounts(dec2("1000.00"), rules, DiscountContext{}, discountNow)

	// pct-10 first (higher priority) on 1000 -> 900, then -50 -> 850
	require.Len(t, res.Discounts, 2)
	assert.Equal(t, "pct-10", res.Discounts[0].RuleID)
	assert.True(t, res.Discounts[0].Amount.Equal(dec2("100.00")))
	assert.Equal(t, "fixed-50", res.Discounts[1].RuleID)
	assert.True(t, res.TotalDiscount.Equal(dec2("150.00")))
	assert.True(t, res.FinalPremium.Equal(dec2("850.00")))
}

func TestCalculateDiscountsNonStackable(t *testing.T) {
	t.Run("wins when first", func(t *testing.T) {
		rules := []DiscountRule{
			pctRule("exclusive-12", "12", 120, false),
			pctRule("pct-10", "10", 100, true),
		}
		res := CalculateDiscounts(dec2("1000.00"), rules, DiscountContext{}, discountNow)
		require.Len(t, res.Discounts, 1)
		assert.Equal(t, "exclusive-12", res.Discounts[0].RuleID)
		assert.True(t, res.FinalPremium.Equal(dec2("880.00")))
	})

	t.Run("skipped after a stackable applied", func(t *testing.T) {
		rules := []DiscountRule{
			pctRule("pct-10", "10", 100, true),
			pctRule("exclusive-12", "12", 90, false),
			pctRule("pct-5", "5", 80, true),
		}
		res := CalculateDiscounts(dec2("1000.00"), rules, DiscountContext{}, discountNow)
		require.Len(t, res.Discounts, 2)
		assert.Equal(t, "pct-10", res.Discounts[0].RuleID)
		assert.Equal(t, "pct-5", res.Discounts[1].RuleID)
	})
}

func TestCalculateDiscountsCompoundsOnRunningPremium(t *testing.T) {
	rules := []DiscountRule{
		pctRule("pct-10", "10", 100, true),
		pctRule("pct-5", "5", 90, true),
	}
	res := CalculateDiscounts(dec2("1000.00"), rules, DiscountContext{}, discountNow)
	// 1000 - 100 = 900, then 5% of 900 = 45
	assert.True(t, res.Discounts[1].Amount.Equal(dec2("45.00")))
	assert.True(t, res.FinalPremium.Equal(dec2("855.00")))
}

func TestCalculateDiscountsMaxDiscountAmount(t *testing.T) {
	r := pctRule("capped", "12", 100, true)
	r.MaxDiscountAmount = decPtr2("100.00")
	res := CalculateDiscounts(dec2("10000.00"), []DiscountRule{r}, DiscountContext{}, discountNow)
	require.Len(t, res.Discounts, 1)
	assert.True(t, res.Discounts[0].Amount.Equal(dec2("100.00")))
	assert.True(t, res.FinalPremium.Equal(dec2("9900.00")))
}

func TestCalculateDiscountsTotalCeiling(t *testing.T) {
	family := pctRule("family", "20", 100, true)
	family.MaxTotalDiscountPct = decPtr2("25")
	annual := pctRule("annual", "15", 90, true)

	res := CalculateDiscounts(dec2("1000.00"), []DiscountRule{family, annual}, DiscountContext{}, discountNow)
	// 20% of 1000 = 200; 15% of 800 = 120; cumulative 320 clamps to 25% of original = 250
	assert.True(t, res.TotalDiscount.Equal(dec2("250.00")), "got %s", res.TotalDiscount)
	assert.True(t, res.FinalPremium.Equal(dec2("750.00")))
}

func TestCalculateDiscountsLoadingAdjustment(t *testing.T) {
	loading := DiscountRule{
		ID: "risk-load", Name: "risk-load",
		AdjustmentType: AdjustmentLoading, ValueType: ValuePercentage, Value: dec2("8"),
		CanStack: true, Priority: 100, Active: true,
	}
	res := CalculateDiscounts(dec2("1000.00"), []DiscountRule{loading}, DiscountContext{}, discountNow)
	assert.True(t, res.FinalPremium.Equal(dec2("1080.00")))
	// net movement is negative: the premium went up
	assert.True(t, res.TotalDiscount.Equal(dec2("-80.00")))
}

func TestCalculateDiscountsTriggerFiltering(t *testing.T) {
	family := pctRule("family", "10", 100, true)
	family.TriggerRules = []TriggerRule{{Field: "dependent_count", Kind: TriggerRange, Min: intPtr(3)}}

	res := CalculateDiscounts(dec2("1000.00"), []DiscountRule{family}, DiscountContext{DependentCount: 2}, discountNow)
	assert.Empty(t, res.Discounts)
	assert.True(t, res.FinalPremium.Equal(dec2("1000.00")))

	res = CalculateDiscounts(dec2("1000.00"), []DiscountRule{family}, DiscountContext{DependentCount: 3}, discountNow)
	assert.Len(t, res.Discounts, 1)
}

func TestTriggerRuleMatches(t *testing.T) {
	ctx := DiscountContext{
		BillingFrequency: FrequencyAnnual,
		GroupSize:        55,
		MemberCount:      4,
		DependentCount:   3,
	}

	tests := []struct {
		name string
		rule TriggerRule
		want bool
	}{
		{"equals match", TriggerRule{Field: "billing_frequency", Kind: TriggerEquals, Value: "annual"}, true},
		{"equals case-insensitive", TriggerRule{Field: "billing_frequency", Kind: TriggerEquals, Value: "ANNUAL"}, true},
		{"equals miss", TriggerRule{Field: "billing_frequency", Kind: TriggerEquals, Value: "monthly"}, false},
		{"range min", TriggerRule{Field: "group_size", Kind: TriggerRange, Min: intPtr(50)}, true},
		{"range max exceeded", TriggerRule{Field: "group_size", Kind: TriggerRange, Max: intPtr(50)}, false},
		{"range bounded", TriggerRule{Field: "member_count", Kind: TriggerRange, Min: intPtr(2), Max: intPtr(6)}, true},
		{"range on non-numeric field", TriggerRule{Field: "billing_frequency", Kind: TriggerRange, Min: intPtr(1)}, false},
		{"in set", TriggerRule{Field: "billing_frequency", Kind: TriggerInSet, Values: []string{"annual", "semi_annual"}}, true},
		{"in set miss", TriggerRule{Field: "billing_frequency", Kind: TriggerInSet, Values: []string{"monthly"}}, false},
		{"unknown field", TriggerRule{Field: "postcode", Kind: TriggerEquals, Value: "2000"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Matches(ctx))
		})
	}
}

func TestDiscountRuleCanBeUsed(t *testing.T) {
	r := pctRule("r", "10", 100, true)
	assert.True(t, r.CanBeUsed(discountNow))

	inactive := r
	inactive.Active = false
	assert.False(t, inactive.CanBeUsed(discountNow))

	exhausted := r
	exhausted.UsageLimit = intPtr(5)
	exhausted.UsageCount = 5
	assert.False(t, exhausted.CanBeUsed(discountNow))

	future := r
	from := discountNow.AddDate(0, 1, 0)
	future.EffectiveFrom = &from
	assert.False(t, future.CanBeUsed(discountNow))

	lapsed := r
	to := discountNow.AddDate(0, -1, 0)
	lapsed.EffectiveTo = &to
	assert.False(t, lapsed.CanBeUsed(discountNow))
}
