package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/dukerupert/bramble/internal/model"
)

// referralKeys maps the typed settings fields to their rows. Everything is
// stored as strings in the settings table and parsed on read; unknown or
// missing keys fall back to the defaults in model.DefaultReferralSettings.
var referralKeys = []string{
	"referral_enabled",
	"referral_tier1_amount",
	"referral_tier2_amount",
	"referral_tier3_amount",
	"referral_minimum_service_price",
	"fraud_detection_enabled",
	"fraud_block_same_address",
	"fraud_block_same_phone",
	"fraud_block_same_ip",
	"fraud_max_referrals_per_day",
	"fraud_max_referrals_per_week",
	"welcome_email_enabled",
	"credit_earned_email_enabled",
}

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("setting %q not found", key)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SettingsStore) GetAll() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("get all settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func (s *SettingsStore) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// GetReferralSettings loads the typed referral configuration. Missing rows
// keep their defaults so a partially configured table still behaves sanely.
func (s *SettingsStore) GetReferralSettings() (model.ReferralSettings, error) {
	cfg := model.DefaultReferralSettings()

	raw := make(map[string]string)
	for _, key := range referralKeys {
		var value string
		err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return cfg, fmt.Errorf("get referral setting %q: %w", key, err)
		}
		raw[key] = value
	}

	parseBool(raw, "referral_enabled", &cfg.Enabled)
	parseAmount(raw, "referral_tier1_amount", &cfg.Tier1Amount)
	parseAmount(raw, "referral_tier2_amount", &cfg.Tier2Amount)
	parseAmount(raw, "referral_tier3_amount", &cfg.Tier3Amount)
	parseAmount(raw, "referral_minimum_service_price", &cfg.MinimumServicePrice)
	parseBool(raw, "fraud_detection_enabled", &cfg.FraudDetectionEnabled)
	parseBool(raw, "fraud_block_same_address", &cfg.BlockSameAddress)
	parseBool(raw, "fraud_block_same_phone", &cfg.BlockSamePhoneNumber)
	parseBool(raw, "fraud_block_same_ip", &cfg.BlockSameIPAddress)
	parseInt(raw, "fraud_max_referrals_per_day", &cfg.MaxReferralsPerDay)
	parseInt(raw, "fraud_max_referrals_per_week", &cfg.MaxReferralsPerWeek)
	parseBool(raw, "welcome_email_enabled", &cfg.WelcomeEmailEnabled)
	parseBool(raw, "credit_earned_email_enabled", &cfg.CreditEarnedEmailEnabled)

	return cfg, nil
}

// UpdateReferralSettings persists the typed configuration back to rows.
func (s *SettingsStore) UpdateReferralSettings(cfg model.ReferralSettings) error {
	values := map[string]string{
		"referral_enabled":               strconv.FormatBool(cfg.Enabled),
		"referral_tier1_amount":          strconv.FormatInt(cfg.Tier1Amount, 10),
		"referral_tier2_amount":          strconv.FormatInt(cfg.Tier2Amount, 10),
		"referral_tier3_amount":          strconv.FormatInt(cfg.Tier3Amount, 10),
		"referral_minimum_service_price": strconv.FormatInt(cfg.MinimumServicePrice, 10),
		"fraud_detection_enabled":        strconv.FormatBool(cfg.FraudDetectionEnabled),
		"fraud_block_same_address":       strconv.FormatBool(cfg.BlockSameAddress),
		"fraud_block_same_phone":         strconv.FormatBool(cfg.BlockSamePhoneNumber),
		"fraud_block_same_ip":            strconv.FormatBool(cfg.BlockSameIPAddress),
		"fraud_max_referrals_per_day":    strconv.Itoa(cfg.MaxReferralsPerDay),
		"fraud_max_referrals_per_week":   strconv.Itoa(cfg.MaxReferralsPerWeek),
		"welcome_email_enabled":          strconv.FormatBool(cfg.WelcomeEmailEnabled),
		"credit_earned_email_enabled":    strconv.FormatBool(cfg.CreditEarnedEmailEnabled),
	}

	for key, value := range values {
		if err := s.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

func parseBool(raw map[string]string, key string, dst *bool) {
	if v, ok := raw[key]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func parseInt(raw map[string]string, key string, dst *int) {
	if v, ok := raw[key]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			*dst = n
		}
	}
}

func parseAmount(raw map[string]string, key string, dst *int64) {
	if v, ok := raw[key]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			*dst = n
		}
	}
}
