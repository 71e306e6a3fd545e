package fraud

import (
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/bramble/internal/model"
)

type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Result is the outcome of evaluating a candidate referral. A rejection is a
// business outcome, not an error: the caller shows Reason to the customer.
type Result struct {
	Valid    bool     `json:"valid"`
	Reason   string   `json:"reason,omitempty"`
	Severity Severity `json:"severity,omitempty"`
}

// History is the read-only view of past code-bearing bookings the detector
// compares candidates against. BookingStore implements it; tests use a fake.
type History interface {
	AddressUsedByOther(normAddress, normEmail string) (bool, error)
	PhoneUsedByOther(normPhone, normEmail string) (bool, error)
	IPUsedByOther(ipAddress, normEmail string) (bool, error)
	CodeUsesSince(code string, since time.Time) (int, error)
}

type Detector struct {
	history History
}

func NewDetector(history History) *Detector {
	return &Detector{history: history}
}

// Evaluate runs the abuse checks in a fixed order and returns the first
// failure: address reuse, phone reuse, IP reuse, daily velocity, weekly
// velocity. All checks are read-only. Short-circuits to valid when fraud
// detection is disabled in settings.
func (d *Detector) Evaluate(s model.ReferralSettings, code, email, phone, address, ipAddress string, now time.Time) (Result, error) {
	if !s.FraudDetectionEnabled {
		return Result{Valid: true}, nil
	}

	normEmail := NormalizeEmail(email)

	if s.BlockSameAddress {
		used, err := d.history.AddressUsedByOther(NormalizeAddress(address), normEmail)
		if err != nil {
			return Result{}, fmt.Errorf("address check: %w", err)
		}
		if used {
			return Result{
				Reason:   "this address has already been used with a referral code",
				Severity: SeverityHigh,
			}, nil
		}
	}

	if s.BlockSamePhoneNumber {
		used, err := d.history.PhoneUsedByOther(NormalizePhone(phone), normEmail)
		if err != nil {
			return Result{}, fmt.Errorf("phone check: %w", err)
		}
		if used {
			return Result{
				Reason:   "this phone number has already been used with a referral code",
				Severity: SeverityHigh,
			}, nil
		}
	}

	if s.BlockSameIPAddress {
		used, err := d.history.IPUsedByOther(ipAddress, normEmail)
		if err != nil {
			return Result{}, fmt.Errorf("ip check: %w", err)
		}
		if used {
			return Result{
				Reason:   "a referral code has already been used from this network",
				Severity: SeverityMedium,
			}, nil
		}
	}

	if s.MaxReferralsPerDay > 0 {
		count, err := d.history.CodeUsesSince(code, now.Add(-24*time.Hour))
		if err != nil {
			return Result{}, fmt.Errorf("daily velocity check: %w", err)
		}
		if count >= s.MaxReferralsPerDay {
			return Result{
				Reason:   "this code has reached its daily usage limit",
				Severity: SeverityMedium,
			}, nil
		}
	}

	if s.MaxReferralsPerWeek > 0 {
		count, err := d.history.CodeUsesSince(code, now.Add(-7*24*time.Hour))
		if err != nil {
			return Result{}, fmt.Errorf("weekly velocity check: %w", err)
		}
		if count >= s.MaxReferralsPerWeek {
			return Result{
				Reason:   "this code has reached its weekly usage limit",
				Severity: SeverityMedium,
			}, nil
		}
	}

	return Result{Valid: true}, nil
}

// NormalizeAddress lowercases and strips everything non-alphanumeric, so
// "123 Main St." and "123 main st" compare equal.
func NormalizeAddress(address string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(address) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone strips to digits only.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeEmail trims whitespace and lowercases.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
