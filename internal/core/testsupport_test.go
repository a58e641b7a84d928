package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// In-memory repo fakes shared by the service tests. They implement the same
// optimistic-concurrency contract the Mongo repos do.

type memPlanRepo struct {
	mu    sync.Mutex
	plans map[string]Plan
}

func newMemPlanRepo(plans ...Plan) *memPlanRepo {
	r := &memPlanRepo{plans: make(map[string]Plan)}
	for _, p := range plans {
		r.plans[p.ID] = p
	}
	return r
}

func (r *memPlanRepo) Get(_ context.Context, id string) (Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return p, nil
}

func (r *memPlanRepo) List(_ context.Context) ([]Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Plan, 0, len(r.plans))
	for _, p := range r.plans {
		out = append(out, p)
	}
	return out, nil
}

func (r *memPlanRepo) Upsert(_ context.Context, p Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[p.ID] = p
	return nil
}

type memRateCardRepo struct {
	mu    sync.Mutex
	cards map[string]RateCard
}

func newMemRateCardRepo(cards ...RateCard) *memRateCardRepo {
	r := &memRateCardRepo{cards: make(map[string]RateCard)}
	for _, rc := range cards {
		r.cards[rc.ID] = rc
	}
	return r
}

func (r *memRateCardRepo) Create(_ context.Context, rc RateCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cards[rc.ID]; ok {
		return ErrConflict
	}
	r.cards[rc.ID] = rc
	return nil
}

func (r *memRateCardRepo) Get(_ context.Context, id string) (RateCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.cards[id]
	if !ok {
		return RateCard{}, ErrRateCardNotFound
	}
	return rc, nil
}

func (r *memRateCardRepo) GetActiveByPlan(_ context.Context, planID string) (RateCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rc := range r.cards {
		if rc.PlanID == planID && rc.IsActive {
			return rc, nil
		}
	}
	return RateCard{}, ErrRateCardNotFound
}

func (r *memRateCardRepo) Update(_ context.Context, rc RateCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cards[rc.ID]; !ok {
		return ErrRateCardNotFound
	}
	r.cards[rc.ID] = rc
	return nil
}

func (r *memRateCardRepo) Activate(_ context.Context, planID, cardID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.cards[cardID]
	if !ok || target.PlanID != planID {
		return ErrRateCardNotFound
	}
	for id, rc := range r.cards {
		if rc.PlanID == planID && rc.IsActive && id != cardID {
			rc.IsActive = false
			rc.Status = RateCardStatusRetired
			rc.UpdatedAt = now
			r.cards[id] = rc
		}
	}
	target.IsActive = true
	target.Status = RateCardStatusActive
	target.UpdatedAt = now
	r.cards[cardID] = target
	return nil
}

func (r *memRateCardRepo) ListByPlan(_ context.Context, planID string) ([]RateCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RateCard
	for _, rc := range r.cards {
		if rc.PlanID == planID {
			out = append(out, rc)
		}
	}
	return out, nil
}

type memAddonRepo struct {
	mu     sync.Mutex
	addons map[string]Addon
	rates  []AddonRate
}

func newMemAddonRepo() *memAddonRepo {
	return &memAddonRepo{addons: make(map[string]Addon)}
}

func (r *memAddonRepo) GetAddon(_ context.Context, id string) (Addon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.addons[id]
	if !ok {
		return Addon{}, ErrAddonNotFound
	}
	return a, nil
}

func (r *memAddonRepo) ListAddons(_ context.Context) ([]Addon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Addon, 0, len(r.addons))
	for _, a := range r.addons {
		out = append(out, a)
	}
	return out, nil
}

func (r *memAddonRepo) UpsertAddon(_ context.Context, a Addon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addons[a.ID] = a
	return nil
}

func (r *memAddonRepo) FindActiveRate(_ context.Context, addonID, planID string, on time.Time) (AddonRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var global *AddonRate
	for i := range r.rates {
		rate := r.rates[i]
		if rate.AddonID != addonID || !rate.EffectiveOn(on) {
			continue
		}
		if rate.PlanID == planID && planID != "" {
			return rate, nil
		}
		if rate.PlanID == "" && global == nil {
			global = &r.rates[i]
		}
	}
	if global != nil {
		return *global, nil
	}
	return AddonRate{}, ErrAddonRateNotFound
}

func (r *memAddonRepo) UpsertRate(_ context.Context, rate AddonRate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rates {
		if r.rates[i].ID == rate.ID {
			r.rates[i] = rate
			return nil
		}
	}
	r.rates = append(r.rates, rate)
	return nil
}

type memDiscountRuleRepo struct {
	mu    sync.Mutex
	rules map[string]DiscountRule
}

func newMemDiscountRuleRepo(rules ...DiscountRule) *memDiscountRuleRepo {
	r := &memDiscountRuleRepo{rules: make(map[string]DiscountRule)}
	for _, dr := range rules {
		r.rules[dr.ID] = dr
	}
	return r
}

func (r *memDiscountRuleRepo) Get(_ context.Context, id string) (DiscountRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dr, ok := r.rules[id]
	if !ok {
		return DiscountRule{}, ErrDiscountRuleNotFound
	}
	return dr, nil
}

func (r *memDiscountRuleRepo) FindAutomatic(_ context.Context, schemeID, planID string, on time.Time) ([]DiscountRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []DiscountRule
	for _, dr := range r.rules {
		if !dr.Active || dr.ApplicationMethod != MethodAutomatic || !dr.EffectiveOn(on) {
			continue
		}
		if dr.SchemeID != "" && dr.SchemeID != schemeID {
			continue
		}
		if dr.PlanID != "" && dr.PlanID != planID {
			continue
		}
		out = append(out, dr)
	}
	return out, nil
}

func (r *memDiscountRuleRepo) Upsert(_ context.Context, dr DiscountRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[dr.ID] = dr
	return nil
}

func (r *memDiscountRuleRepo) IncrementUsage(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dr, ok := r.rules[id]
	if !ok {
		return ErrDiscountRuleNotFound
	}
	if dr.UsageLimit != nil && dr.UsageCount >= *dr.UsageLimit {
		return fmt.Errorf("%w: discount rule usage limit reached", ErrValidation)
	}
	dr.UsageCount++
	r.rules[id] = dr
	return nil
}

type memPromoCodeRepo struct {
	mu     sync.Mutex
	promos map[string]PromoCode
}

func newMemPromoCodeRepo(promos ...PromoCode) *memPromoCodeRepo {
	r := &memPromoCodeRepo{promos: make(map[string]PromoCode)}
	for _, p := range promos {
		r.promos[p.ID] = p
	}
	return r
}

func (r *memPromoCodeRepo) GetByCode(_ context.Context, code string) (PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.promos {
		if p.Code == code {
			return p, nil
		}
	}
	return PromoCode{}, ErrPromoNotFound
}

func (r *memPromoCodeRepo) Upsert(_ context.Context, p PromoCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.promos[p.ID] = p
	return nil
}

func (r *memPromoCodeRepo) ConsumeUse(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.promos[id]
	if !ok {
		return ErrPromoNotFound
	}
	if p.MaxUses != nil && p.CurrentUses >= *p.MaxUses {
		return ErrPromoExhausted
	}
	p.CurrentUses++
	r.promos[id] = p
	return nil
}

type memLoadingRuleRepo struct {
	mu    sync.Mutex
	rules map[string]LoadingRule
}

func newMemLoadingRuleRepo(rules ...LoadingRule) *memLoadingRuleRepo {
	r := &memLoadingRuleRepo{rules: make(map[string]LoadingRule)}
	for _, lr := range rules {
		r.rules[lr.ID] = lr
	}
	return r
}

func (r *memLoadingRuleRepo) Get(_ context.Context, id string) (LoadingRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lr, ok := r.rules[id]
	if !ok {
		return LoadingRule{}, ErrLoadingRuleNotFound
	}
	return lr, nil
}

func (r *memLoadingRuleRepo) FindActive(_ context.Context) ([]LoadingRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []LoadingRule
	for _, lr := range r.rules {
		if lr.Active {
			out = append(out, lr)
		}
	}
	return out, nil
}

func (r *memLoadingRuleRepo) Upsert(_ context.Context, lr LoadingRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[lr.ID] = lr
	return nil
}

type memApplicationRepo struct {
	mu   sync.Mutex
	apps map[string]Application
}

func newMemApplicationRepo() *memApplicationRepo {
	return &memApplicationRepo{apps: make(map[string]Application)}
}

func (r *memApplicationRepo) Create(_ context.Context, app Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apps[app.ID]; ok {
		return ErrConflict
	}
	app.Revision = 1
	r.apps[app.ID] = app
	return nil
}

func (r *memApplicationRepo) Get(_ context.Context, id string) (Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return Application{}, ErrApplicationNotFound
	}
	return app, nil
}

func (r *memApplicationRepo) Update(_ context.Context, app Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.apps[app.ID]
	if !ok {
		return ErrApplicationNotFound
	}
	if stored.Revision != app.Revision {
		return fmt.Errorf("%w: application %s was modified concurrently", ErrConflict, app.ID)
	}
	app.Revision++
	r.apps[app.ID] = app
	return nil
}

func (r *memApplicationRepo) FindByStatus(_ context.Context, status ApplicationStatus, limit int) ([]Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Application
	for _, app := range r.apps {
		if app.Status == status && len(out) < limit {
			out = append(out, app)
		}
	}
	return out, nil
}

func (r *memApplicationRepo) FindQuoteExpired(_ context.Context, now time.Time, limit int) ([]Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Application
	for _, app := range r.apps {
		switch app.Status {
		case ApplicationStatusQuoted, ApplicationStatusApproved, ApplicationStatusAccepted:
			if app.IsQuoteExpired(now) && len(out) < limit {
				out = append(out, app)
			}
		}
	}
	return out, nil
}

type memPolicyRepo struct {
	mu       sync.Mutex
	policies map[string]Policy
	seq      int64
}

func newMemPolicyRepo() *memPolicyRepo {
	return &memPolicyRepo{policies: make(map[string]Policy)}
}

func (r *memPolicyRepo) Create(_ context.Context, p Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.policies {
		if existing.ApplicationID == p.ApplicationID {
			return ErrPolicyExists
		}
	}
	p.Revision = 1
	r.policies[p.ID] = p
	return nil
}

func (r *memPolicyRepo) Get(_ context.Context, id string) (Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.policies[id]
	if !ok {
		return Policy{}, ErrPolicyNotFound
	}
	return p, nil
}

func (r *memPolicyRepo) GetByNumber(_ context.Context, number string) (Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.policies {
		if p.Number == number {
			return p, nil
		}
	}
	return Policy{}, ErrPolicyNotFound
}

func (r *memPolicyRepo) GetByApplicationID(_ context.Context, appID string) (Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.policies {
		if p.ApplicationID == appID {
			return p, nil
		}
	}
	return Policy{}, ErrPolicyNotFound
}

func (r *memPolicyRepo) Update(_ context.Context, p Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.policies[p.ID]
	if !ok {
		return ErrPolicyNotFound
	}
	if stored.Revision != p.Revision {
		return fmt.Errorf("%w: policy %s was modified concurrently", ErrConflict, p.ID)
	}
	p.Revision++
	r.policies[p.ID] = p
	return nil
}

func (r *memPolicyRepo) List(_ context.Context, filter PolicyFilter, limit, offset int) ([]Policy, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Policy
	for _, p := range r.policies {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.PlanID != "" && p.PlanID != filter.PlanID {
			continue
		}
		out = append(out, p)
	}
	total := int64(len(out))
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *memPolicyRepo) NextPolicyNumber(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return fmt.Sprintf("MED-2026-%06d", r.seq), nil
}

func (r *memPolicyRepo) FindActive(_ context.Context, limit int) ([]Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Policy
	for _, p := range r.policies {
		if p.Status == PolicyStatusActive && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func dec2(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intPtr(n int) *int { return &n }

func decPtr2(s string) *decimal.Decimal {
	d := dec2(s)
	return &d
}

// standardCard is the age-banded test rate card most premium tests share.
func standardCard() RateCard {
	return RateCard{
		ID:        "rc-test",
		PlanID:    "plan-test",
		Currency:  "ZAR",
		Version:   "v1",
		Status:    RateCardStatusActive,
		IsActive:  true,
		ValidFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Entries: []RateCardEntry{
			{MinAge: 0, MaxAge: 17, BasePremium: dec2("100.00")},
			{MinAge: 18, MaxAge: 64, BasePremium: dec2("250.00")},
			{MinAge: 65, MaxAge: 100, BasePremium: dec2("400.00")},
		},
	}
}
