package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplicationStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to ApplicationStatus
		want     bool
	}{
		{ApplicationStatusDraft, ApplicationStatusQuoted, true},
		{ApplicationStatusDraft, ApplicationStatusSubmitted, false},
		{ApplicationStatusQuoted, ApplicationStatusSubmitted, true},
		{ApplicationStatusSubmitted, ApplicationStatusUnderwriting, true},
		{ApplicationStatusSubmitted, ApplicationStatusApproved, true},
		{ApplicationStatusUnderwriting, ApplicationStatusDeclined, true},
		{ApplicationStatusUnderwriting, ApplicationStatusReferred, true},
		{ApplicationStatusReferred, ApplicationStatusUnderwriting, true},
		{ApplicationStatusReferred, ApplicationStatusApproved, true},
		{ApplicationStatusApproved, ApplicationStatusAccepted, true},
		{ApplicationStatusApproved, ApplicationStatusConverted, false},
		{ApplicationStatusAccepted, ApplicationStatusConverted, true},
		{ApplicationStatusConverted, ApplicationStatusCancelled, false},
		{ApplicationStatusDeclined, ApplicationStatusApproved, false},
		{ApplicationStatusExpired, ApplicationStatusQuoted, false},
		{ApplicationStatusQuoted, ApplicationStatusExpired, true},
		{ApplicationStatusDraft, ApplicationStatusCancelled, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestMemberUnderwritingTransitions(t *testing.T) {
	assert.True(t, UWPending.CanTransitionTo(UWApproved))
	assert.True(t, UWPending.CanTransitionTo(UWDeclined))
	assert.True(t, UWPending.CanTransitionTo(UWTerms))
	assert.False(t, UWApproved.CanTransitionTo(UWDeclined))
	assert.False(t, UWTerms.CanTransitionTo(UWApproved))
	assert.False(t, UWDeclined.CanTransitionTo(UWApproved))
}

func TestApplicationUpdateMemberCounts(t *testing.T) {
	app := Application{Members: []ApplicationMember{
		{Role: RolePrincipal, Active: true},
		{Role: RoleDependent, Active: true},
		{Role: RoleDependent, Active: true},
		{Role: RoleDependent, Active: false},
	}}
	app.UpdateMemberCounts()
	assert.Equal(t, 3, app.MemberCount)
	assert.Equal(t, 1, app.PrincipalCount)
	assert.Equal(t, 2, app.DependentCount)
	assert.Len(t, app.ActiveMembers(), 3)
}

func TestApplicationIsQuoteExpired(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	app := Application{}
	assert.False(t, app.IsQuoteExpired(now), "no window means no expiry")

	past := now.AddDate(0, 0, -1)
	app.QuoteValidUntil = &past
	assert.True(t, app.IsQuoteExpired(now))

	future := now.AddDate(0, 0, 1)
	app.QuoteValidUntil = &future
	assert.False(t, app.IsQuoteExpired(now))
}

func TestApplicationMemberValidate(t *testing.T) {
	ok := ApplicationMember{FirstName: "Thandi", LastName: "Nkosi", Role: RolePrincipal, AgeAtInception: 34}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.FirstName = ""
	assert.ErrorIs(t, bad.Validate(), ErrValidation)

	bad = ok
	bad.Role = "spouse"
	assert.ErrorIs(t, bad.Validate(), ErrValidation)

	bad = ok
	bad.AgeAtInception = 131
	assert.ErrorIs(t, bad.Validate(), ErrValidation)
}

// ---- service tests ----

type appFixture struct {
	svc      *applicationService
	apps     *memApplicationRepo
	policies *memPolicyRepo
	loadings *memLoadingRuleRepo
	now      time.Time
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()
	cards := newMemRateCardRepo(standardCard())
	addons := newMemAddonRepo()
	loadings := newMemLoadingRuleRepo()
	for _, r := range loadingRules() {
		require.NoError(t, loadings.Upsert(context.Background(), r))
	}
	discounts := newMemDiscountRuleRepo()
	rater := newTestPremiumService(t, cards, addons, loadings, discounts)

	apps := newMemApplicationRepo()
	policies := newMemPolicyRepo()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc := NewApplicationService(apps, policies, loadings, rater, NopTx{}, 30, 14).(*applicationService)
	svc.clock = func() time.Time { return now }
	return &appFixture{svc: svc, apps: apps, policies: policies, loadings: loadings, now: now}
}

func (f *appFixture) newDraft(t *testing.T) Application {
	t.Helper()
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	app, err := f.svc.Create(context.Background(), NewApplicationInput{
		PlanID:           "plan-test",
		BillingFrequency: FrequencyMonthly,
		ProposedStart:    &start,
	})
	require.NoError(t, err)
	return app
}

func (f *appFixture) withMembers(t *testing.T) Application {
	t.Helper()
	app := f.newDraft(t)
	ctx := context.Background()
	app, err := f.svc.AddMember(ctx, app.ID, NewMemberInput{
		FirstName: "Thandi", LastName: "Nkosi", Role: RolePrincipal, Age: 34,
	})
	require.NoError(t, err)
	app, err = f.svc.AddMember(ctx, app.ID, NewMemberInput{
		FirstName: "Sipho", LastName: "Nkosi", Role: RoleDependent, Age: 6,
	})
	require.NoError(t, err)
	return app
}

func (f *appFixture) toStatus(t *testing.T, appID string, target ApplicationStatus) Application {
	t.Helper()
	ctx := context.Background()
	var (
		app Application
		err error
	)
	steps := []ApplicationStatus{
		ApplicationStatusQuoted, ApplicationStatusSubmitted, ApplicationStatusUnderwriting,
		ApplicationStatusApproved, ApplicationStatusAccepted,
	}
	for _, step := range steps {
		switch step {
		case ApplicationStatusQuoted:
			app, err = f.svc.MarkQuoted(ctx, appID)
		case ApplicationStatusSubmitted:
			app, err = f.svc.Submit(ctx, appID)
		case ApplicationStatusUnderwriting:
			app, err = f.svc.StartUnderwriting(ctx, appID, "uw-1")
		case ApplicationStatusApproved:
			app, err = f.svc.Approve(ctx, appID, "uw-1")
		case ApplicationStatusAccepted:
			app, err = f.svc.Accept(ctx, appID, "SIG-123")
		}
		require.NoError(t, err)
		if step == target {
			return app
		}
	}
	t.Fatalf("unreachable target status %s", target)
	return app
}

func TestApplicationServiceCreateValidates(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, NewApplicationInput{BillingFrequency: FrequencyMonthly})
	assert.ErrorIs(t, err, ErrValidation, "plan required")

	_, err = f.svc.Create(ctx, NewApplicationInput{PlanID: "plan-test", BillingFrequency: "weekly"})
	assert.ErrorIs(t, err, ErrValidation)

	app, err := f.svc.Create(ctx, NewApplicationInput{PlanID: "plan-test", BillingFrequency: FrequencyMonthly})
	require.NoError(t, err)
	assert.Equal(t, ApplicationStatusDraft, app.Status)
	assert.Equal(t, UWPending, app.UWStatus)
}

func TestApplicationServiceAddMemberRecalculates(t *testing.T) {
	f := newAppFixture(t)
	app := f.withMembers(t)

	assert.Equal(t, 2, app.MemberCount)
	assert.True(t, app.BasePremium.Equal(dec2("350.00")))
	assert.True(t, app.GrossPremium.Equal(dec2("402.50")))
	for _, m := range app.Members {
		assert.Equal(t, UWPending, m.UnderwritingState)
		assert.True(t, m.Active)
	}
}

func TestApplicationServiceMemberMutationsLockedAfterSubmit(t *testing.T) {
	f := newAppFixture(t)
	app := f.withMembers(t)
	f.toStatus(t, app.ID, ApplicationStatusSubmitted)

	_, err := f.svc.AddMember(context.Background(), app.ID, NewMemberInput{
		FirstName: "Lerato", LastName: "Nkosi", Role: RoleDependent, Age: 2,
	})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.RemoveMember(context.Background(), app.ID, app.Members[0].ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestApplicationServiceQuoteRequiresMembers(t *testing.T) {
	f := newAppFixture(t)
	app := f.newDraft(t)

	_, err := f.svc.MarkQuoted(context.Background(), app.ID)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestApplicationServiceQuoteSetsValidity(t *testing.T) {
	f := newAppFixture(t)
	app := f.withMembers(t)

	quoted, err := f.svc.MarkQuoted(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, ApplicationStatusQuoted, quoted.Status)
	require.NotNil(t, quoted.QuoteValidUntil)
	assert.Equal(t, f.now.AddDate(0, 0, 30), *quoted.QuoteValidUntil)
}

func TestApplicationServiceSubmitExpiredQuote(t *testing.T) {
	f := newAppFixture(t)
	app := f.withMembers(t)
	f.toStatus(t, app.ID, ApplicationStatusQuoted)

	f.svc.clock = func() time.Time { return f.now.AddDate(0, 0, 31) }
	_, err := f.svc.Submit(context.Background(), app.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestApplicationServiceDecisionGuards(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	app := f.withMembers(t)

	// decisions need a submitted or underwriting application
	_, err := f.svc.Approve(ctx, app.ID, "uw-1")
	assert.ErrorIs(t, err, ErrInvalidState)

	f.toStatus(t, app.ID, ApplicationStatusSubmitted)

	_, err = f.svc.Decline(ctx, app.ID, "   ")
	assert.ErrorIs(t, err, ErrValidation, "decline reason required")

	_, err = f.svc.Refer(ctx, app.ID, "")
	assert.ErrorIs(t, err, ErrValidation, "referral notes required")

	declined, err := f.svc.Decline(ctx, app.ID, "uninsurable risk profile")
	require.NoError(t, err)
	assert.Equal(t, ApplicationStatusDeclined, declined.Status)
	assert.Equal(t, UWDeclined, declined.UWStatus)
	assert.Equal(t, "uninsurable risk profile", declined.DecisionNotes)
}

func TestApplicationServiceApproveSetsOfferWindow(t *testing.T) {
	f := newAppFixture(t)
	app := f.withMembers(t)
	approved := f.toStatus(t, app.ID, ApplicationStatusApproved)

	assert.Equal(t, UWApproved, approved.UWStatus)
	require.NotNil(t, approved.QuoteValidUntil)
	assert.Equal(t, f.now.AddDate(0, 0, 14), *approved.QuoteValidUntil)
}

func TestApplicationServiceAcceptRequiresRefAndFreshOffer(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	app := f.withMembers(t)
	f.toStatus(t, app.ID, ApplicationStatusApproved)

	_, err := f.svc.Accept(ctx, app.ID, " ")
	assert.ErrorIs(t, err, ErrValidation)

	f.svc.clock = func() time.Time { return f.now.AddDate(0, 0, 15) }
	_, err = f.svc.Accept(ctx, app.ID, "SIG-1")
	assert.ErrorIs(t, err, ErrInvalidState, "offer expired")

	f.svc.clock = func() time.Time { return f.now }
	accepted, err := f.svc.Accept(ctx, app.ID, "SIG-1")
	require.NoError(t, err)
	assert.Equal(t, ApplicationStatusAccepted, accepted.Status)
	assert.Equal(t, "SIG-1", accepted.AcceptanceRef)
}

func TestApplicationServiceConvert(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	app := f.withMembers(t)
	f.toStatus(t, app.ID, ApplicationStatusAccepted)

	converted, policy, err := f.svc.Convert(ctx, app.ID, "agent-7")
	require.NoError(t, err)

	assert.Equal(t, ApplicationStatusConverted, converted.Status)
	assert.Equal(t, policy.ID, converted.PolicyID)
	assert.Equal(t, "MED-2026-000001", policy.Number)
	assert.Equal(t, PolicyStatusActive, policy.Status)
	assert.Equal(t, app.ID, policy.ApplicationID)
	assert.Equal(t, "agent-7", policy.IssuedBy)
	require.Len(t, policy.Members, 2)

	effective := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, effective, policy.EffectiveDate)
	assert.Equal(t, effective.AddDate(1, 0, 0), policy.RenewalDate)
	for _, m := range policy.Members {
		assert.Equal(t, MemberStatusActive, m.Status)
		assert.Equal(t, CardStatusIssued, m.CardStatus)
		assert.NotEmpty(t, m.CardNumber)
		require.NotNil(t, m.WaitingPeriodEnd)
		assert.Equal(t, effective.AddDate(0, 0, 30), *m.WaitingPeriodEnd)
	}

	// policy totals are derived, matching the application's rating
	assert.True(t, policy.BasePremium.Equal(dec2("350.00")))
	assert.True(t, policy.GrossPremium.Equal(dec2("402.50")))
}

func TestApplicationServiceConvertGuards(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()

	t.Run("non-accepted", func(t *testing.T) {
		app := f.withMembers(t)
		f.toStatus(t, app.ID, ApplicationStatusApproved)
		_, _, err := f.svc.Convert(ctx, app.ID, "agent-7")
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("double conversion", func(t *testing.T) {
		app := f.withMembers(t)
		f.toStatus(t, app.ID, ApplicationStatusAccepted)
		_, _, err := f.svc.Convert(ctx, app.ID, "agent-7")
		require.NoError(t, err)
		_, _, err = f.svc.Convert(ctx, app.ID, "agent-7")
		assert.ErrorIs(t, err, ErrInvalidState, "status already converted")
	})
}

func TestApplicationServiceCancel(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	app := f.withMembers(t)

	_, err := f.svc.Cancel(ctx, app.ID, "")
	assert.ErrorIs(t, err, ErrValidation)

	cancelled, err := f.svc.Cancel(ctx, app.ID, "applicant withdrew")
	require.NoError(t, err)
	assert.Equal(t, ApplicationStatusCancelled, cancelled.Status)
	assert.Equal(t, "applicant withdrew", cancelled.CancelReason)

	_, err = f.svc.Cancel(ctx, app.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestApplicationServiceMemberDecisions(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	app := f.withMembers(t)
	f.toStatus(t, app.ID, ApplicationStatusUnderwriting)

	principal := app.Members[0].ID
	dependent := app.Members[1].ID

	updated, err := f.svc.ApproveMember(ctx, app.ID, principal)
	require.NoError(t, err)
	assert.Equal(t, UWApproved, updated.Members[0].UnderwritingState)

	// second decision on the same member is rejected
	_, err = f.svc.DeclineMember(ctx, app.ID, principal, "late disclosure")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.DeclineMember(ctx, app.ID, dependent, "")
	assert.ErrorIs(t, err, ErrValidation)

	updated, err = f.svc.DeclineMember(ctx, app.ID, dependent, "undisclosed condition")
	require.NoError(t, err)
	assert.False(t, updated.Members[1].Active, "declined member drops out")
	assert.Equal(t, 1, updated.MemberCount)
	assert.True(t, updated.BasePremium.Equal(dec2("250.00")), "totals re-derived without the declined member")
}

func TestApplicationServiceApplyMemberTerms(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	app := f.withMembers(t)
	f.toStatus(t, app.ID, ApplicationStatusUnderwriting)
	memberID := app.Members[0].ID

	_, err := f.svc.ApplyMemberTerms(ctx, app.ID, memberID, TermsInput{})
	assert.ErrorIs(t, err, ErrValidation, "terms need conditions")

	updated, err := f.svc.ApplyMemberTerms(ctx, app.ID, memberID, TermsInput{Conditions: []string{"I10", "M48"}})
	require.NoError(t, err)

	m := updated.Members[0]
	assert.Equal(t, UWTerms, m.UnderwritingState)
	require.Len(t, m.AppliedLoadings, 1)
	assert.Equal(t, "lr-hypertension", m.AppliedLoadings[0].RuleID)
	// 15% of the member's 250 base
	assert.True(t, m.AppliedLoadings[0].Amount.Equal(dec2("37.50")))
	require.Len(t, m.AppliedExclusions, 1)
	assert.True(t, m.LoadingAmount.Equal(dec2("37.50")))
	assert.True(t, updated.LoadingAmount.Equal(dec2("37.50")))
	assert.True(t, updated.TotalPremium.Equal(dec2("387.50")))
}

func TestApplicationServiceExpireQuotes(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()

	stale := f.withMembers(t)
	f.toStatus(t, stale.ID, ApplicationStatusQuoted)

	fresh := f.withMembers(t)

	// jump past the quote window
	f.svc.clock = func() time.Time { return f.now.AddDate(0, 0, 31) }
	expired, err := f.svc.ExpireQuotes(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, err := f.svc.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, ApplicationStatusExpired, got.Status)

	got, err = f.svc.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, ApplicationStatusDraft, got.Status, "draft without a quote window untouched")
}
