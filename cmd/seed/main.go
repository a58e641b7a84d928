package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/healthbridge/go-medscheme/internal/core"
	"github.com/healthbridge/go-medscheme/internal/platform/config"
	"github.com/healthbridge/go-medscheme/internal/platform/logging"
	"github.com/healthbridge/go-medscheme/internal/store/mongo"
)

func main() {
	cfg := config.MustLoad()
	log := logging.New(cfg.Env)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.NewClient(cfg)
	if err != nil {
		log.Error("failed to connect to MongoDB", "err", err)
		return
	}
	defer client.Close(ctx)

	db := client.DB
	opTimeout := 5 * time.Second
	plans := mongo.NewPlanRepo(db, opTimeout)
	cards := mongo.NewRateCardRepo(db, opTimeout)
	addons := mongo.NewAddonRepo(db, opTimeout)
	discounts := mongo.NewDiscountRuleRepo(db, opTimeout)
	promos := mongo.NewPromoCodeRepo(db, opTimeout)
	loadings := mongo.NewLoadingRuleRepo(db, opTimeout)

	log.Info("seeding reference data")

	seedPlans(ctx, plans)
	seedRateCards(ctx, cards)
	seedAddons(ctx, addons)
	seedDiscountRules(ctx, discounts)
	seedPromoCodes(ctx, promos)
	seedLoadingRules(ctx, loadings)

	log.Info("done seeding")
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func ip(n int) *int { return &n }

func seedPlans(ctx context.Context, repo *mongo.PlanRepoMongo) {
	plans := []core.Plan{
		{ID: "plan-essential", SchemeID: "scheme-open", Name: "Essential Hospital Plan", Active: true},
		{ID: "plan-comprehensive", SchemeID: "scheme-open", Name: "Comprehensive Care", Active: true},
		{ID: "plan-corporate", SchemeID: "scheme-corporate", Name: "Corporate Group Cover", Active: true},
	}
	for _, p := range plans {
		report(repo.Upsert(ctx, p), "plan "+p.Name)
	}
}

func seedRateCards(ctx context.Context, repo *mongo.RateCardRepoMongo) {
	now := time.Now()
	cards := []core.RateCard{
		{
			ID:        "rc-essential-v1",
			PlanID:    "plan-essential",
			Currency:  "ZAR",
			Version:   "v1",
			Status:    core.RateCardStatusActive,
			IsActive:  true,
			ValidFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Entries: []core.RateCardEntry{
				{MinAge: 0, MaxAge: 17, BasePremium: d("100.00")},
				{MinAge: 18, MaxAge: 64, BasePremium: d("250.00")},
				{MinAge: 65, MaxAge: 120, BasePremium: d("400.00")},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:        "rc-comprehensive-v1",
			PlanID:    "plan-comprehensive",
			Currency:  "ZAR",
			Version:   "v1",
			Status:    core.RateCardStatusActive,
			IsActive:  true,
			ValidFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Entries: []core.RateCardEntry{
				{MinAge: 0, MaxAge: 17, BasePremium: d("180.00")},
				{MinAge: 18, MaxAge: 64, Gender: "female", BasePremium: d("420.00")},
				{MinAge: 18, MaxAge: 64, Gender: "male", BasePremium: d("390.00")},
				{MinAge: 65, MaxAge: 120, BasePremium: d("650.00")},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:        "rc-corporate-v1",
			PlanID:    "plan-corporate",
			Currency:  "ZAR",
			Version:   "v1",
			Status:    core.RateCardStatusActive,
			IsActive:  true,
			ValidFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Tiers: []core.RateCardTier{
				{MinMembers: 2, MaxMembers: 10, TierPremium: d("2200.00")},
				{MinMembers: 11, MaxMembers: 50, TierPremium: d("9500.00")},
				{MinMembers: 51, MaxMembers: 200, TierPremium: d("32000.00"), ExtraMemberPremium: d("140.00")},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	for _, rc := range cards {
		err := repo.Create(ctx, rc)
		if errors.Is(err, core.ErrConflict) {
			err = repo.Update(ctx, rc)
		}
		report(err, "rate card "+rc.ID)
	}
}

func seedAddons(ctx context.Context, repo *mongo.AddonRepoMongo) {
	addonList := []core.Addon{
		{ID: "addon-dental", Code: "DENTAL", Name: "Dental Cover", Active: true},
		{ID: "addon-optical", Code: "OPTICAL", Name: "Optical Cover", Active: true},
		{ID: "addon-intl", Code: "INTL_TRAVEL", Name: "International Travel Cover", Active: true},
		{ID: "addon-chronic", Code: "CHRONIC_PLUS", Name: "Extended Chronic Medication", Active: true},
	}
	for _, a := range addonList {
		report(repo.UpsertAddon(ctx, a), "addon "+a.Code)
	}

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rates := []core.AddonRate{
		{ID: "ar-dental", AddonID: "addon-dental", PricingType: core.AddonPricingPerMember,
			Currency: "ZAR", Amount: d("85.00"), ValidFrom: from, Active: true},
		{ID: "ar-optical", AddonID: "addon-optical", PricingType: core.AddonPricingFixed,
			Currency: "ZAR", Amount: d("60.00"), ValidFrom: from, Active: true},
		{ID: "ar-intl", AddonID: "addon-intl", PricingType: core.AddonPricingPercentage,
			Currency: "ZAR", Percentage: d("5"), PercentageBasis: core.BasisBase, ValidFrom: from, Active: true},
		{ID: "ar-chronic", AddonID: "addon-chronic", PricingType: core.AddonPricingAgeRated,
			Currency: "ZAR", ValidFrom: from, Active: true,
			Entries: []core.AddonRateEntry{
				{MinAge: 0, MaxAge: 40, Premium: d("45.00")},
				{MinAge: 41, MaxAge: 64, Premium: d("95.00")},
				{MinAge: 65, MaxAge: 120, Premium: d("160.00")},
			}},
	}
	for _, r := range rates {
		report(repo.UpsertRate(ctx, r), "addon rate "+r.ID)
	}
}

func seedDiscountRules(ctx context.Context, repo *mongo.DiscountRuleRepoMongo) {
	rules := []core.DiscountRule{
		{
			ID: "dr-family", Name: "Family Discount",
			AdjustmentType: core.AdjustmentDiscount, ValueType: core.ValuePercentage, Value: d("10"),
			ApplicationMethod: core.MethodAutomatic, CanStack: true, Priority: 100,
			TriggerRules: []core.TriggerRule{
				{Field: "dependent_count", Kind: core.TriggerRange, Min: ip(3)},
			},
			MaxTotalDiscountPct: dp("25"), Active: true,
		},
		{
			ID: "dr-annual", Name: "Annual Payment Discount",
			AdjustmentType: core.AdjustmentDiscount, ValueType: core.ValuePercentage, Value: d("5"),
			ApplicationMethod: core.MethodAutomatic, CanStack: true, Priority: 90,
			TriggerRules: []core.TriggerRule{
				{Field: "billing_frequency", Kind: core.TriggerEquals, Value: "annual"},
			},
			Active: true,
		},
		{
			ID: "dr-large-group", Name: "Large Group Discount",
			AdjustmentType: core.AdjustmentDiscount, ValueType: core.ValuePercentage, Value: d("12"),
			ApplicationMethod: core.MethodAutomatic, CanStack: false, Priority: 120,
			TriggerRules: []core.TriggerRule{
				{Field: "group_size", Kind: core.TriggerRange, Min: ip(50)},
			},
			MaxDiscountAmount: dp("10000.00"), Active: true,
		},
		{
			ID: "dr-welcome", Name: "Welcome Promo",
			AdjustmentType: core.AdjustmentDiscount, ValueType: core.ValueFixed, Value: d("150.00"),
			ApplicationMethod: core.MethodPromoCode, CanStack: true, Priority: 50,
			Active: true,
		},
	}
	for _, r := range rules {
		report(repo.Upsert(ctx, r), "discount rule "+r.Name)
	}
}

func seedPromoCodes(ctx context.Context, repo *mongo.PromoCodeRepoMongo) {
	until := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)
	codes := []core.PromoCode{
		{
			ID: "promo-welcome26", Code: "WELCOME26", DiscountRuleID: "dr-welcome",
			ValidUntil: &until, MaxUses: ip(1000), Active: true, CreatedAt: time.Now(),
		},
	}
	for _, p := range codes {
		report(repo.Upsert(ctx, p), "promo code "+p.Code)
	}
}

func seedLoadingRules(ctx context.Context, repo *mongo.LoadingRuleRepoMongo) {
	rules := []core.LoadingRule{
		{
			ID: "lr-hypertension", ConditionName: "Hypertension", ICD10Code: "I10",
			RelatedCodes: []string{"I11", "I12", "I13", "I15"},
			LoadingType:  core.LoadingPercentage, Value: d("15"),
			DurationType: core.DurationReviewable, Active: true,
		},
		{
			ID: "lr-diabetes-2", ConditionName: "Type 2 Diabetes", ICD10Code: "E11",
			RelatedCodes: []string{"E11.9", "E11.65"},
			LoadingType:  core.LoadingPercentage, Value: d("25"),
			DurationType: core.DurationPermanent,
			MinLoading:   dp("50.00"), MaxLoading: dp("800.00"), Active: true,
		},
		{
			ID: "lr-asthma", ConditionName: "Asthma", ICD10Code: "J45",
			LoadingType:  core.LoadingFixed, Value: d("75.00"),
			DurationType: core.DurationTimeLimited, DurationMonths: ip(8), Active: true,
		},
		{
			ID: "lr-back-surgery", ConditionName: "Spinal Surgery", ICD10Code: "M48",
			LoadingType:      core.LoadingExclusion,
			DurationType:     core.DurationPermanent,
			ExclusionBenefit: "spinal and back procedures", Active: true,
		},
	}
	for _, r := range rules {
		report(repo.Upsert(ctx, r), "loading rule "+r.ConditionName)
	}
}

func report(err error, what string) {
	if err != nil {
		fmt.Printf("failed to seed %s: %v\n", what, err)
	} else {
		fmt.Printf("seeded: %s\n", what)
	}
}
