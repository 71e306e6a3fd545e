package store

import (
	"testing"

	"github.com/dukerupert/bramble/internal/database"
	"github.com/dukerupert/bramble/internal/model"
)

func setupSettingsTestDB(t *testing.T) *SettingsStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSettingsStore(db)
}

func TestSettingsGetSet(t *testing.T) {
	s := setupSettingsTestDB(t)

	// Seeded by the migration.
	v, err := s.Get("referral_enabled")
	if err != nil {
		t.Fatalf("get seeded key: %v", err)
	}
	if v != "true" {
		t.Errorf("referral_enabled = %q, want true", v)
	}

	if err := s.Set("referral_enabled", "false"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err = s.Get("referral_enabled")
	if err != nil {
		t.Fatalf("get after set: %v", err)
	}
	if v != "false" {
		t.Errorf("referral_enabled = %q, want false", v)
	}

	if _, err := s.Get("does_not_exist"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestReferralSettingsDefaults(t *testing.T) {
	s := setupSettingsTestDB(t)

	cfg, err := s.GetReferralSettings()
	if err != nil {
		t.Fatalf("get referral settings: %v", err)
	}
	want := model.DefaultReferralSettings()
	if cfg != want {
		t.Errorf("settings = %+v, want defaults %+v", cfg, want)
	}
}

func TestReferralSettingsRoundTrip(t *testing.T) {
	s := setupSettingsTestDB(t)

	cfg := model.ReferralSettings{
		Enabled:                  false,
		Tier1Amount:              500,
		Tier2Amount:              750,
		Tier3Amount:              1250,
		MinimumServicePrice:      2500,
		FraudDetectionEnabled:    false,
		BlockSameAddress:         false,
		BlockSamePhoneNumber:     true,
		BlockSameIPAddress:       false,
		MaxReferralsPerDay:       3,
		MaxReferralsPerWeek:      7,
		WelcomeEmailEnabled:      false,
		CreditEarnedEmailEnabled: true,
	}
	if err := s.UpdateReferralSettings(cfg); err != nil {
		t.Fatalf("update referral settings: %v", err)
	}

	got, err := s.GetReferralSettings()
	if err != nil {
		t.Fatalf("get referral settings: %v", err)
	}
	if got != cfg {
		t.Errorf("round trip = %+v, want %+v", got, cfg)
	}
}
