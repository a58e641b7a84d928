package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPromoCodeUsable(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, -1, 0)
	future := now.AddDate(0, 1, 0)

	tests := []struct {
		name  string
		promo PromoCode
		want  bool
	}{
		{"active unbounded", PromoCode{Active: true}, true},
		{"inactive", PromoCode{Active: false}, false},
		{"not yet valid", PromoCode{Active: true, ValidFrom: &future}, false},
		{"expired", PromoCode{Active: true, ValidUntil: &past}, false},
		{"inside window", PromoCode{Active: true, ValidFrom: &past, ValidUntil: &future}, true},
		{"uses remaining", PromoCode{Active: true, MaxUses: intPtr(10), CurrentUses: 9}, true},
		{"exhausted", PromoCode{Active: true, MaxUses: intPtr(10), CurrentUses: 10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := tt.promo.Usable(now)
			assert.Equal(t, tt.want, ok)
			if !tt.want {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestPromoCodeEligibleFor(t *testing.T) {
	open := PromoCode{Active: true}
	ok, _ := open.EligibleFor("scheme-x", "plan-y", "group-z")
	assert.True(t, ok, "empty allow-lists are unrestricted")

	restricted := PromoCode{
		Active:           true,
		EligibleSchemeIDs: []string{"scheme-open"},
		EligiblePlanIDs:  []string{"plan-essential", "plan-comprehensive"},
	}

	ok, _ = restricted.EligibleFor("scheme-open", "plan-essential", "")
	assert.True(t, ok)

	ok, reason := restricted.EligibleFor("scheme-corporate", "plan-essential", "")
	assert.False(t, ok)
	assert.Contains(t, reason, "scheme")

	ok, reason = restricted.EligibleFor("scheme-open", "plan-corporate", "")
	assert.False(t, ok)
	assert.Contains(t, reason, "plan")

	groupOnly := PromoCode{Active: true, EligibleGroupIDs: []string{"group-acme"}}
	ok, _ = groupOnly.EligibleFor("", "", "group-acme")
	assert.True(t, ok)
	ok, _ = groupOnly.EligibleFor("", "", "group-other")
	assert.False(t, ok)
}
