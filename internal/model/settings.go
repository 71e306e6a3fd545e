package model

import "time"

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReferralSettings is the typed view of the referral program configuration.
// It is loaded fresh at the start of every orchestrator tick and on every
// validation request, never cached, so admin changes take effect immediately
// and tests can inject arbitrary values.
type ReferralSettings struct {
	Enabled bool `json:"enabled"`

	Tier1Amount int64 `json:"tier1_amount"`
	Tier2Amount int64 `json:"tier2_amount"`
	Tier3Amount int64 `json:"tier3_amount"`

	MinimumServicePrice int64 `json:"minimum_service_price"`

	FraudDetectionEnabled bool `json:"fraud_detection_enabled"`
	BlockSameAddress      bool `json:"block_same_address"`
	BlockSamePhoneNumber  bool `json:"block_same_phone_number"`
	BlockSameIPAddress    bool `json:"block_same_ip_address"`
	MaxReferralsPerDay    int  `json:"max_referrals_per_day"`
	MaxReferralsPerWeek   int  `json:"max_referrals_per_week"`

	WelcomeEmailEnabled      bool `json:"welcome_email_enabled"`
	CreditEarnedEmailEnabled bool `json:"credit_earned_email_enabled"`
}

// DefaultReferralSettings mirrors the seed values in the initial migration.
func DefaultReferralSettings() ReferralSettings {
	return ReferralSettings{
		Enabled:                  true,
		Tier1Amount:              1000,
		Tier2Amount:              1500,
		Tier3Amount:              2000,
		MinimumServicePrice:      0,
		FraudDetectionEnabled:    true,
		BlockSameAddress:         true,
		BlockSamePhoneNumber:     true,
		BlockSameIPAddress:       true,
		MaxReferralsPerDay:       10,
		MaxReferralsPerWeek:      25,
		WelcomeEmailEnabled:      true,
		CreditEarnedEmailEnabled: true,
	}
}
