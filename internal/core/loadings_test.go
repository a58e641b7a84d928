package core

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadingRules() []LoadingRule {
	return []LoadingRule{
		{
			ID: "lr-hypertension", ConditionName: "Hypertension", ICD10Code: "I10",
			RelatedCodes: []string{"I11", "I12"},
			LoadingType:  LoadingPercentage, Value: dec2("15"),
			DurationType: DurationReviewable, Active: true,
		},
		{
			ID: "lr-diabetes", ConditionName: "Type 2 Diabetes", ICD10Code: "E11",
			LoadingType: LoadingPercentage, Value: dec2("25"),
			DurationType: DurationPermanent,
			MinLoading:   decPtr2("50.00"), MaxLoading: decPtr2("800.00"), Active: true,
		},
		{
			ID: "lr-asthma", ConditionName: "Asthma", ICD10Code: "J45",
			LoadingType: LoadingFixed, Value: dec2("75.00"),
			DurationType: DurationTimeLimited, DurationMonths: intPtr(8), Active: true,
		},
		{
			ID: "lr-spinal", ConditionName: "Spinal Surgery", ICD10Code: "M48",
			LoadingType:  LoadingExclusion,
			DurationType: DurationPermanent,
			ExclusionBenefit: "spinal and back procedures", Active: true,
		},
	}
}

func TestMatchLoadingRule(t *testing.T) {
	rules := loadingRules()

	t.Run("exact ICD-10 code", func(t *testing.T) {
		r, ok := MatchLoadingRule(rules, "I10")
		require.True(t, ok)
		assert.Equal(t, "lr-hypertension", r.ID)
	})

	t.Run("related code", func(t *testing.T) {
		r, ok := MatchLoadingRule(rules, "I12")
		require.True(t, ok)
		assert.Equal(t, "lr-hypertension", r.ID)
	})

	t.Run("condition name substring", func(t *testing.T) {
		r, ok := MatchLoadingRule(rules, "diabetes")
		require.True(t, ok)
		assert.Equal(t, "lr-diabetes", r.ID)
	})

	t.Run("declared string containing the rule name", func(t *testing.T) {
		r, ok := MatchLoadingRule(rules, "chronic asthma since childhood")
		require.True(t, ok)
		assert.Equal(t, "lr-asthma", r.ID)
	})

	t.Run("case-insensitive", func(t *testing.T) {
		r, ok := MatchLoadingRule(rules, "e11")
		require.True(t, ok)
		assert.Equal(t, "lr-diabetes", r.ID)
	})

	t.Run("no match", func(t *testing.T) {
		_, ok := MatchLoadingRule(rules, "Z99")
		assert.False(t, ok)
	})

	t.Run("blank condition", func(t *testing.T) {
		_, ok := MatchLoadingRule(rules, "  ")
		assert.False(t, ok)
	})
}

func TestCalculateLoadingsPercentageAndClamps(t *testing.T) {
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	t.Run("percentage of premium", func(t *testing.T) {
		res := CalculateLoadings(dec2("400.00"), []string{"I10"}, loadingRules(), start)
		require.Len(t, res.Loadings, 1)
		assert.True(t, res.Loadings[0].Amount.Equal(dec2("60.00")))
		assert.True(t, res.FinalPremium.Equal(dec2("460.00")))
	})

	t.Run("min clamp lifts small loadings", func(t *testing.T) {
		// 25% of 100 = 25, below the 50 floor
		res := CalculateLoadings(dec2("100.00"), []string{"E11"}, loadingRules(), start)
		require.Len(t, res.Loadings, 1)
		assert.True(t, res.Loadings[0].Amount.Equal(dec2("50.00")))
	})

	t.Run("max clamp caps large loadings", func(t *testing.T) {
		// 25% of 10000 = 2500, above the 800 ceiling
		res := CalculateLoadings(dec2("10000.00"), []string{"E11"}, loadingRules(), start)
		require.Len(t, res.Loadings, 1)
		assert.True(t, res.Loadings[0].Amount.Equal(dec2("800.00")))
	})
}

func TestCalculateLoadingsDurations(t *testing.T) {
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	res := CalculateLoadings(dec2("400.00"), []string{"J45", "I10", "E11"}, loadingRules(), start)
	require.Len(t, res.Loadings, 3)

	byRule := map[string]AppliedLoading{}
	for _, l := range res.Loadings {
		byRule[l.RuleID] = l
	}

	asthma := byRule["lr-asthma"]
	require.NotNil(t, asthma.EndDate)
	assert.Equal(t, start.AddDate(0, 8, 0), *asthma.EndDate)
	assert.Nil(t, asthma.ReviewDate)

	hyp := byRule["lr-hypertension"]
	require.NotNil(t, hyp.ReviewDate)
	assert.Equal(t, start.AddDate(0, 12, 0), *hyp.ReviewDate)
	assert.Nil(t, hyp.EndDate)

	diab := byRule["lr-diabetes"]
	assert.Nil(t, diab.EndDate)
	assert.Nil(t, diab.ReviewDate)
}

func TestCalculateLoadingsExclusion(t *testing.T) {
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	res := CalculateLoadings(dec2("400.00"), []string{"M48"}, loadingRules(), start)

	assert.Empty(t, res.Loadings)
	require.Len(t, res.Exclusions, 1)
	assert.Equal(t, "spinal and back procedures", res.Exclusions[0].ExclusionBenefit)
	assert.True(t, res.TotalLoading.Equal(decimal.Zero))
	assert.True(t, res.FinalPremium.Equal(dec2("400.00")))
}

func TestCalculateLoadingsUnmatchedSurfaced(t *testing.T) {
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	res := CalculateLoadings(dec2("400.00"), []string{"I10", "rare condition XYZ", ""}, loadingRules(), start)

	require.Len(t, res.Loadings, 1)
	assert.Equal(t, []string{"rare condition XYZ"}, res.Unmatched)
}

func TestAppliedLoadingExpired(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 8, 0) // 2025-02-01

	timeLimited := AppliedLoading{DurationType: DurationTimeLimited, EndDate: &end, Status: LoadingStatusActive}
	assert.False(t, timeLimited.Expired(time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)))
	assert.True(t, timeLimited.Expired(time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)))

	permanent := AppliedLoading{DurationType: DurationPermanent, Status: LoadingStatusActive}
	assert.False(t, permanent.Expired(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))

	reviewable := AppliedLoading{DurationType: DurationReviewable, Status: LoadingStatusActive}
	assert.False(t, reviewable.Expired(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestLoadingServiceCalculateLoadings(t *testing.T) {
	repo := newMemLoadingRuleRepo(loadingRules()...)
	svc := NewLoadingService(repo).(*loadingService)
	svc.clock = func() time.Time { return time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC) }

	start := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	res, err := svc.CalculateLoadings(context.Background(), dec2("400.00"), []string{"J45"}, &start)
	require.NoError(t, err)
	require.Len(t, res.Loadings, 1)
	assert.Equal(t, start.AddDate(0, 8, 0), *res.Loadings[0].EndDate, "cover start anchors the end date")

	// nil cover start anchors on today
	res, err = svc.CalculateLoadings(context.Background(), dec2("400.00"), []string{"J45"}, nil)
	require.NoError(t, err)
	require.Len(t, res.Loadings, 1)
	assert.Equal(t, time.Date(2027, 5, 1, 0, 0, 0, 0, time.UTC), *res.Loadings[0].EndDate)
}

func TestSumActiveLoadings(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, -1, 0)
	future := now.AddDate(0, 1, 0)

	loadings := []AppliedLoading{
		{Amount: dec2("60.00"), Status: LoadingStatusActive, DurationType: DurationPermanent},
		{Amount: dec2("75.00"), Status: LoadingStatusActive, DurationType: DurationTimeLimited, EndDate: &future},
		{Amount: dec2("40.00"), Status: LoadingStatusActive, DurationType: DurationTimeLimited, EndDate: &past}, // ran out
		{Amount: dec2("30.00"), Status: LoadingStatusExpired, DurationType: DurationPermanent},                  // retired
	}
	assert.True(t, SumActiveLoadings(loadings, now).Equal(dec2("135.00")))
}
