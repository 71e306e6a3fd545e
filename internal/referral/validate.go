package referral

import (
	"fmt"
	"time"

	"github.com/dukerupert/bramble/internal/fraud"
	"github.com/dukerupert/bramble/internal/model"
	"github.com/dukerupert/bramble/internal/store"
)

// ValidationResult is returned to the booking path. Rejections are business
// outcomes with a customer-facing reason, never errors.
type ValidationResult struct {
	Accepted bool           `json:"accepted"`
	Reason   string         `json:"reason,omitempty"`
	Severity fraud.Severity `json:"severity,omitempty"`
}

// Validator screens a referral code before a referral record may exist. It is
// called synchronously from booking intake, before the booking is persisted.
type Validator struct {
	settings  *store.SettingsStore
	customers *store.CustomerStore
	detector  *fraud.Detector
}

func NewValidator(settings *store.SettingsStore, customers *store.CustomerStore, detector *fraud.Detector) *Validator {
	return &Validator{settings: settings, customers: customers, detector: detector}
}

// Validate checks a candidate referral: program enabled, code exists, no
// self-referral, service total meets the minimum, then the fraud checks.
// On acceptance it returns the referring customer so the caller can link the
// referral record.
func (v *Validator) Validate(code, email, phone, address, ipAddress string, servicePrice int64, now time.Time) (ValidationResult, *model.Customer, error) {
	cfg, err := v.settings.GetReferralSettings()
	if err != nil {
		return ValidationResult{}, nil, fmt.Errorf("load settings: %w", err)
	}

	if !cfg.Enabled {
		return ValidationResult{Reason: "the referral program is not currently active"}, nil, nil
	}

	referrer, err := v.customers.GetByReferralCode(code)
	if err != nil {
		return ValidationResult{}, nil, fmt.Errorf("look up code: %w", err)
	}
	if referrer == nil {
		return ValidationResult{Reason: "referral code not recognized"}, nil, nil
	}

	if fraud.NormalizeEmail(referrer.Email) == fraud.NormalizeEmail(email) {
		return ValidationResult{Reason: "you cannot use your own referral code"}, nil, nil
	}

	if cfg.MinimumServicePrice > 0 && servicePrice < cfg.MinimumServicePrice {
		return ValidationResult{Reason: "the service total is below the referral program minimum"}, nil, nil
	}

	result, err := v.detector.Evaluate(cfg, code, email, phone, address, ipAddress, now)
	if err != nil {
		return ValidationResult{}, nil, fmt.Errorf("fraud evaluation: %w", err)
	}
	if !result.Valid {
		return ValidationResult{Reason: result.Reason, Severity: result.Severity}, nil, nil
	}

	return ValidationResult{Accepted: true}, referrer, nil
}
