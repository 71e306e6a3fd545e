package referral

import "github.com/dukerupert/bramble/internal/model"

// TierFor maps a referrer's count of already-credited referrals to the tier
// and reward for the next one. Only history strictly prior to the referral
// being processed counts, so serialized simultaneous completions can never
// both land on tier 1.
func TierFor(creditedCount int, s model.ReferralSettings) (tier int, amount int64) {
	switch {
	case creditedCount <= 0:
		return 1, s.Tier1Amount
	case creditedCount == 1:
		return 2, s.Tier2Amount
	default:
		return 3, s.Tier3Amount
	}
}
