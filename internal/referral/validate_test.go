package referral

import (
	"fmt"
	"testing"

	"github.com/dukerupert/bramble/internal/database"
	"github.com/dukerupert/bramble/internal/fraud"
	"github.com/dukerupert/bramble/internal/model"
	"github.com/dukerupert/bramble/internal/store"
)

type validatorFixture struct {
	customers *store.CustomerStore
	bookings  *store.BookingStore
	settings  *store.SettingsStore
	validator *Validator
}

func setupValidator(t *testing.T) validatorFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := validatorFixture{
		customers: store.NewCustomerStore(db),
		bookings:  store.NewBookingStore(db),
		settings:  store.NewSettingsStore(db),
	}
	f.validator = NewValidator(f.settings, f.customers, fraud.NewDetector(f.bookings))

	referrer, err := f.customers.Create("John Miller", "john@example.com", "555-0100", "9 Oak Ave")
	if err != nil {
		t.Fatalf("create referrer: %v", err)
	}
	if _, err := f.customers.SetReferralCode(referrer.ID, "JOHN1234"); err != nil {
		t.Fatalf("set code: %v", err)
	}
	return f
}

func TestValidateAccepted(t *testing.T) {
	f := setupValidator(t)

	res, referrer, err := f.validator.Validate("JOHN1234", "maria@example.com", "555-0101", "12 Elm St", "203.0.113.9", 9900, orchNow())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !res.Accepted {
		t.Fatalf("rejected: %+v", res)
	}
	if referrer == nil || referrer.Email != "john@example.com" {
		t.Fatalf("referrer = %+v, want john", referrer)
	}
}

func TestValidateUnknownCode(t *testing.T) {
	f := setupValidator(t)

	res, referrer, err := f.validator.Validate("NOPE9999", "maria@example.com", "", "", "", 9900, orchNow())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Accepted || referrer != nil {
		t.Errorf("unknown code accepted: %+v", res)
	}
}

func TestValidateSelfReferral(t *testing.T) {
	f := setupValidator(t)

	// Case and whitespace in the email must not evade the check.
	res, _, err := f.validator.Validate("JOHN1234", " John@Example.com ", "", "", "", 9900, orchNow())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Accepted {
		t.Error("self-referral accepted")
	}
}

func TestValidateProgramDisabled(t *testing.T) {
	f := setupValidator(t)

	cfg := model.DefaultReferralSettings()
	cfg.Enabled = false
	if err := f.settings.UpdateReferralSettings(cfg); err != nil {
		t.Fatalf("disable program: %v", err)
	}

	res, _, err := f.validator.Validate("JOHN1234", "maria@example.com", "", "", "", 9900, orchNow())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Accepted {
		t.Error("disabled program accepted a referral")
	}
}

func TestValidateMinimumServicePrice(t *testing.T) {
	f := setupValidator(t)

	cfg := model.DefaultReferralSettings()
	cfg.MinimumServicePrice = 5000
	if err := f.settings.UpdateReferralSettings(cfg); err != nil {
		t.Fatalf("set minimum: %v", err)
	}

	res, _, err := f.validator.Validate("JOHN1234", "maria@example.com", "", "", "", 4999, orchNow())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Accepted {
		t.Error("below-minimum booking accepted")
	}

	res, _, err = f.validator.Validate("JOHN1234", "maria@example.com", "", "", "", 5000, orchNow())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !res.Accepted {
		t.Errorf("at-minimum booking rejected: %+v", res)
	}
}

func TestValidateAddressReuse(t *testing.T) {
	f := setupValidator(t)

	// An earlier code-bearing booking from the same address under a
	// different customer.
	prior, err := f.customers.Create("Dan Wu", "dan@example.com", "", "")
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	code := "JOHN1234"
	if _, err := f.bookings.Create(prior.ID, "dan@example.com", "555-0199", "12 Elm Street", "198.51.100.7", &code, 9900); err != nil {
		t.Fatalf("create booking: %v", err)
	}

	res, _, err := f.validator.Validate("JOHN1234", "maria@example.com", "555-0101", "12 elm street", "203.0.113.9", 9900, orchNow())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Accepted {
		t.Fatal("reused address accepted")
	}
	if res.Severity != fraud.SeverityHigh {
		t.Errorf("severity = %q, want high", res.Severity)
	}
}

func TestValidateDailyVelocity(t *testing.T) {
	f := setupValidator(t)

	// Ten uses of the code today; the eleventh attempt must be rejected.
	for i := 0; i < 10; i++ {
		email := fmt.Sprintf("customer%d@example.com", i)
		c, err := f.customers.Create("Customer", email, "", "")
		if err != nil {
			t.Fatalf("create customer: %v", err)
		}
		code := "JOHN1234"
		if _, err := f.bookings.Create(c.ID, email, "", "", "", &code, 9900); err != nil {
			t.Fatalf("create booking: %v", err)
		}
	}

	res, _, err := f.validator.Validate("JOHN1234", "maria@example.com", "555-0101", "12 Elm St", "203.0.113.9", 9900, orchNow())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Accepted {
		t.Error("over-velocity referral accepted")
	}
}
