package referral

import (
	"testing"

	"github.com/dukerupert/bramble/internal/model"
)

func TestTierFor(t *testing.T) {
	cfg := model.DefaultReferralSettings()

	cases := []struct {
		credited   int
		wantTier   int
		wantAmount int64
	}{
		{0, 1, 1000},
		{1, 2, 1500},
		{2, 3, 2000},
		{3, 3, 2000},
		{50, 3, 2000},
		{-1, 1, 1000},
	}
	for _, tc := range cases {
		tier, amount := TierFor(tc.credited, cfg)
		if tier != tc.wantTier || amount != tc.wantAmount {
			t.Errorf("TierFor(%d) = (%d, %d), want (%d, %d)", tc.credited, tier, amount, tc.wantTier, tc.wantAmount)
		}
	}
}

func TestTierProgressionTotal(t *testing.T) {
	cfg := model.DefaultReferralSettings()

	// A referrer crediting three referrals in sequence earns the tier 1,
	// tier 2, then tier 3 amounts.
	var total int64
	for credited := 0; credited < 3; credited++ {
		_, amount := TierFor(credited, cfg)
		total += amount
	}
	if total != 4500 {
		t.Errorf("three-referral total = %d, want 4500", total)
	}
}
