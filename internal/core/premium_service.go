package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PremiumService is the aggregator: it combines rate card resolution, addon
// pricing, loadings and discounts into one breakdown, and re-derives the
// cached totals of applications and policies.
type PremiumService interface {
	// CalculateTotalPremium rates an ad-hoc member set. A missing rate entry
	// yields Success=false with a message, not an error.
	CalculateTotalPremium(ctx context.Context, in QuoteInput) (PremiumBreakdown, error)

	// RateApplication recomputes every derived premium field on the
	// aggregate in place. Idempotent for an unchanged member/addon set.
	RateApplication(ctx context.Context, app *Application) error

	// RatePolicy does the same for an issued policy, independent of the
	// application it originated from.
	RatePolicy(ctx context.Context, p *Policy) error

	Periodize(annual decimal.Decimal, freq BillingFrequency) (decimal.Decimal, error)
}

type premiumService struct {
	cards     RateCardRepo
	addons    AddonRepo
	loadings  LoadingRuleRepo
	discounts DiscountRuleRepo
	taxRate   decimal.Decimal
	clock     func() time.Time
}

func NewPremiumService(cards RateCardRepo, addons AddonRepo, loadings LoadingRuleRepo, discounts DiscountRuleRepo, taxRate decimal.Decimal) PremiumService {
	return &premiumService{
		cards:     cards,
		addons:    addons,
		loadings:  loadings,
		discounts: discounts,
		taxRate:   taxRate,
		clock:     time.Now,
	}
}

func (s *premiumService) resolveCard(ctx context.Context, rateCardID, planID string, on time.Time) (RateCard, error) {
	var (
		rc  RateCard
		err error
	)
	if rateCardID != "" {
		rc, err = s.cards.Get(ctx, rateCardID)
	} else {
		rc, err = s.cards.GetActiveByPlan(ctx, planID)
	}
	if err != nil {
		return RateCard{}, err
	}
	if !rc.EffectiveOn(on) {
		return RateCard{}, fmt.Errorf("%w: rate card %s is not effective on %s",
			ErrValidation, rc.ID, on.Format("2006-01-02"))
	}
	return rc, nil
}

// tailParams carries everything the addon → discount → tax stages need.
type tailParams struct {
	SchemeID, PlanID, GroupID                              string
	Frequency                                              BillingFrequency
	GroupSize, MemberCount, PrincipalCount, DependentCount int
	On, Now                                                time.Time
	Base, Loading                                          decimal.Decimal
	Members                                                []MemberInput
	AddonIDs                                               []string
}

type tailResult struct {
	Addons           []AddonBreakdown
	AddonTotal       decimal.Decimal
	Discount         DiscountResult
	Total, Tax, Gross decimal.Decimal
}

// tail prices addons against the rated base, applies automatic discounts to
// the pre-discount subtotal and finishes with tax. Premium state flows
// through as values; nothing here mutates its inputs.
func (s *premiumService) tail(ctx context.Context, p tailParams) (tailResult, error) {
	var out tailResult
	out.AddonTotal = decimal.Zero
	baseWithLoading := p.Base.Add(p.Loading)

	for _, addonID := range p.AddonIDs {
		addon, err := s.addons.GetAddon(ctx, addonID)
		if err != nil {
			return tailResult{}, err
		}
		rate, err := s.addons.FindActiveRate(ctx, addonID, p.PlanID, p.On)
		if err != nil {
			return tailResult{}, err
		}
		amount, err := PriceAddon(rate, p.Members, p.Base, baseWithLoading)
		if err != nil {
			return tailResult{}, err
		}
		out.Addons = append(out.Addons, AddonBreakdown{
			AddonID:     addonID,
			Name:        addon.Name,
			PricingType: rate.PricingType,
			Amount:      amount,
		})
		out.AddonTotal = out.AddonTotal.Add(amount)
	}
	out.AddonTotal = Round2(out.AddonTotal)

	rules, err := s.discounts.FindAutomatic(ctx, p.SchemeID, p.PlanID, p.On)
	if err != nil {
		return tailResult{}, err
	}
	dctx := DiscountContext{
		SchemeID:         p.SchemeID,
		PlanID:           p.PlanID,
		GroupID:          p.GroupID,
		BillingFrequency: p.Frequency,
		GroupSize:        p.GroupSize,
		MemberCount:      p.MemberCount,
		PrincipalCount:   p.PrincipalCount,
		DependentCount:   p.DependentCount,
	}
	subtotal := Round2(p.Base.Add(out.AddonTotal).Add(p.Loading))
	out.Discount = CalculateDiscounts(subtotal, rules, dctx, p.Now)

	out.Total = out.Discount.FinalPremium
	out.Tax = Round2(out.Total.Mul(s.taxRate))
	out.Gross = Round2(out.Total.Add(out.Tax))
	return out, nil
}

func (s *premiumService) CalculateTotalPremium(ctx context.Context, in QuoteInput) (PremiumBreakdown, error) {
	if err := in.Validate(); err != nil {
		return PremiumBreakdown{}, err
	}

	now := s.clock()
	on := now
	if in.CoverStart != nil {
		on = *in.CoverStart
	}
	freq := in.BillingFrequency
	if freq == "" {
		freq = FrequencyAnnual
	}

	rc, err := s.resolveCard(ctx, in.RateCardID, in.PlanID, on)
	if err != nil {
		return PremiumBreakdown{}, err
	}
	loadingRules, err := s.loadings.FindActive(ctx)
	if err != nil {
		return PremiumBreakdown{}, err
	}

	base := decimal.Zero
	loading := decimal.Zero
	members := make([]MemberPremium, 0, len(in.Members))

	if in.GroupSize > 0 {
		// Corporate tier pricing: base comes from the size band, members
		// carry only their individual loadings.
		_, tierPremium, err := rc.ResolveTier(in.GroupSize)
		if err != nil {
			if errors.Is(err, ErrRateNotFound) {
				return PremiumBreakdown{Success: false, Message: err.Error(), BillingFrequency: freq}, nil
			}
			return PremiumBreakdown{}, err
		}
		base = tierPremium
	}

	for _, m := range in.Members {
		mp := MemberPremium{MemberID: m.MemberID, Age: m.Age, BasePremium: decimal.Zero}
		if in.GroupSize == 0 {
			entry, err := rc.ResolveEntry(m.Age, m.Gender, m.Region)
			if err != nil {
				if errors.Is(err, ErrRateNotFound) {
					return PremiumBreakdown{Success: false, Message: err.Error(), BillingFrequency: freq}, nil
				}
				return PremiumBreakdown{}, err
			}
			mp.BasePremium = Round2(entry.BasePremium)
			base = base.Add(mp.BasePremium)
		}

		lr := CalculateLoadings(mp.BasePremium, m.Conditions, loadingRules, on)
		mp.Loadings = lr.Loadings
		mp.Exclusions = lr.Exclusions
		mp.Unmatched = lr.Unmatched
		mp.LoadingAmount = lr.TotalLoading
		mp.TotalPremium = Round2(mp.BasePremium.Add(mp.LoadingAmount))
		loading = loading.Add(mp.LoadingAmount)
		members = append(members, mp)
	}
	base = Round2(base)
	loading = Round2(loading)

	tr, err := s.tail(ctx, tailParams{
		SchemeID:    in.SchemeID,
		PlanID:      in.PlanID,
		GroupID:     in.GroupID,
		Frequency:   freq,
		GroupSize:   in.GroupSize,
		MemberCount: len(in.Members),
		On:          on,
		Now:         now,
		Base:        base,
		Loading:     loading,
		Members:     in.Members,
		AddonIDs:    in.AddonIDs,
	})
	if err != nil {
		return PremiumBreakdown{}, err
	}

	period, err := Periodize(tr.Gross, freq)
	if err != nil {
		return PremiumBreakdown{}, err
	}

	return PremiumBreakdown{
		Success:          true,
		Currency:         rc.Currency,
		BillingFrequency: freq,
		BasePremium:      base,
		AddonPremium:     tr.AddonTotal,
		LoadingAmount:    loading,
		DiscountAmount:   tr.Discount.TotalDiscount,
		TotalPremium:     tr.Total,
		TaxAmount:        tr.Tax,
		GrossPremium:     tr.Gross,
		PeriodPremium:    period,
		Members:          members,
		Addons:           tr.Addons,
		Discounts:        tr.Discount.Discounts,
	}, nil
}

func (s *premiumService) RateApplication(ctx context.Context, app *Application) error {
	now := s.clock()
	on := app.ProposedStart
	if on.IsZero() {
		on = now
	}

	rc, err := s.resolveCard(ctx, app.RateCardID, app.PlanID, on)
	if err != nil {
		return err
	}
	app.RateCardID = rc.ID
	app.Currency = rc.Currency
	app.UpdateMemberCounts()

	base := decimal.Zero
	loading := decimal.Zero
	groupPricing := app.GroupID != "" && len(rc.Tiers) > 0
	groupSize := app.GroupSize
	if groupSize == 0 {
		groupSize = app.MemberCount
	}

	if groupPricing {
		_, tierPremium, err := rc.ResolveTier(groupSize)
		if err != nil {
			return err
		}
		base = tierPremium
	}

	var memberInputs []MemberInput
	for i := range app.Members {
		m := &app.Members[i]
		if !m.Active {
			continue
		}
		if groupPricing {
			m.BasePremium = decimal.Zero
		} else {
			entry, err := rc.ResolveEntry(m.AgeAtInception, m.Gender, m.Region)
			if err != nil {
				return err
			}
			m.BasePremium = Round2(entry.BasePremium)
			base = base.Add(m.BasePremium)
		}
		m.LoadingAmount = SumActiveLoadings(m.AppliedLoadings, now)
		m.TotalPremium = Round2(m.BasePremium.Add(m.LoadingAmount))
		loading = loading.Add(m.LoadingAmount)
		memberInputs = append(memberInputs, MemberInput{
			MemberID: m.ID,
			Age:      m.AgeAtInception,
			Gender:   m.Gender,
			Region:   m.Region,
		})
	}
	base = Round2(base)
	loading = Round2(loading)

	addonIDs := make([]string, len(app.Addons))
	for i, a := range app.Addons {
		addonIDs[i] = a.AddonID
	}
	tr, err := s.tail(ctx, tailParams{
		SchemeID:       app.SchemeID,
		PlanID:         app.PlanID,
		GroupID:        app.GroupID,
		Frequency:      app.BillingFrequency,
		GroupSize:      groupSizeIfGroup(groupPricing, groupSize),
		MemberCount:    app.MemberCount,
		PrincipalCount: app.PrincipalCount,
		DependentCount: app.DependentCount,
		On:             on,
		Now:            now,
		Base:           base,
		Loading:        loading,
		Members:        memberInputs,
		AddonIDs:       addonIDs,
	})
	if err != nil {
		return err
	}
	for i := range app.Addons {
		app.Addons[i].Name = tr.Addons[i].Name
		app.Addons[i].PricingType = tr.Addons[i].PricingType
		app.Addons[i].Amount = tr.Addons[i].Amount
	}

	app.BasePremium = base
	app.AddonPremium = tr.AddonTotal
	app.LoadingAmount = loading
	app.DiscountAmount = tr.Discount.TotalDiscount
	app.TotalPremium = tr.Total
	app.TaxAmount = tr.Tax
	app.GrossPremium = tr.Gross
	return nil
}

func (s *premiumService) RatePolicy(ctx context.Context, p *Policy) error {
	now := s.clock()
	on := p.EffectiveDate
	if on.IsZero() {
		on = now
	}

	rc, err := s.resolveCard(ctx, p.RateCardID, p.PlanID, on)
	if err != nil {
		return err
	}
	p.RateCardID = rc.ID
	p.Currency = rc.Currency
	p.UpdateMemberCounts()

	base := decimal.Zero
	loading := decimal.Zero
	groupPricing := p.GroupID != "" && len(rc.Tiers) > 0
	groupSize := p.GroupSize
	if groupSize == 0 {
		groupSize = p.MemberCount
	}

	if groupPricing {
		_, tierPremium, err := rc.ResolveTier(groupSize)
		if err != nil {
			return err
		}
		base = tierPremium
	}

	var memberInputs []MemberInput
	for i := range p.Members {
		m := &p.Members[i]
		if m.Status != MemberStatusActive {
			continue
		}
		if groupPricing {
			m.BasePremium = decimal.Zero
		} else {
			entry, err := rc.ResolveEntry(m.Age, m.Gender, m.Region)
			if err != nil {
				return err
			}
			m.BasePremium = Round2(entry.BasePremium)
			base = base.Add(m.BasePremium)
		}
		m.LoadingAmount = SumActiveLoadings(m.Loadings, now)
		m.TotalPremium = Round2(m.BasePremium.Add(m.LoadingAmount))
		loading = loading.Add(m.LoadingAmount)
		memberInputs = append(memberInputs, MemberInput{
			MemberID: m.ID,
			Age:      m.Age,
			Gender:   m.Gender,
			Region:   m.Region,
		})
	}
	base = Round2(base)
	loading = Round2(loading)

	addonIDs := make([]string, len(p.Addons))
	for i, a := range p.Addons {
		addonIDs[i] = a.AddonID
	}
	tr, err := s.tail(ctx, tailParams{
		SchemeID:       p.SchemeID,
		PlanID:         p.PlanID,
		GroupID:        p.GroupID,
		Frequency:      p.BillingFrequency,
		GroupSize:      groupSizeIfGroup(groupPricing, groupSize),
		MemberCount:    p.MemberCount,
		PrincipalCount: p.PrincipalCount,
		DependentCount: p.DependentCount,
		On:             on,
		Now:            now,
		Base:           base,
		Loading:        loading,
		Members:        memberInputs,
		AddonIDs:       addonIDs,
	})
	if err != nil {
		return err
	}
	for i := range p.Addons {
		p.Addons[i].Name = tr.Addons[i].Name
		p.Addons[i].PricingType = tr.Addons[i].PricingType
		p.Addons[i].Amount = tr.Addons[i].Amount
	}

	p.BasePremium = base
	p.AddonPremium = tr.AddonTotal
	p.LoadingAmount = loading
	p.DiscountAmount = tr.Discount.TotalDiscount
	p.TotalPremium = tr.Total
	p.TaxAmount = tr.Tax
	p.GrossPremium = tr.Gross
	return nil
}

func (s *premiumService) Periodize(annual decimal.Decimal, freq BillingFrequency) (decimal.Decimal, error) {
	return Periodize(annual, freq)
}

func groupSizeIfGroup(group bool, size int) int {
	if group {
		return size
	}
	return 0
}
