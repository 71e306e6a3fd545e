package store

import (
	"testing"

	"github.com/dukerupert/bramble/internal/database"
	"github.com/dukerupert/bramble/internal/model"
)

type referralTestStores struct {
	customers *CustomerStore
	bookings  *BookingStore
	referrals *ReferralStore
	credits   *CreditStore
}

func setupReferralTestDB(t *testing.T) referralTestStores {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return referralTestStores{
		customers: NewCustomerStore(db),
		bookings:  NewBookingStore(db),
		referrals: NewReferralStore(db),
		credits:   NewCreditStore(db),
	}
}

// seedReferral creates a referrer with a code plus one referred booking and
// its pending referral.
func seedReferral(t *testing.T, ts referralTestStores) (referrerID int64, r *model.Referral) {
	t.Helper()
	referrer, err := ts.customers.Create("John Miller", "john@example.com", "", "")
	if err != nil {
		t.Fatalf("create referrer: %v", err)
	}
	if _, err := ts.customers.SetReferralCode(referrer.ID, "JOHN1234"); err != nil {
		t.Fatalf("set code: %v", err)
	}

	referred, err := ts.customers.Create("Maria Santos", "maria@example.com", "", "")
	if err != nil {
		t.Fatalf("create referred: %v", err)
	}
	b, err := ts.bookings.Create(referred.ID, "maria@example.com", "", "", "", strPtr("JOHN1234"), 9900)
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	r, err = ts.referrals.Create(referrer.ID, b.ID, "JOHN1234")
	if err != nil {
		t.Fatalf("create referral: %v", err)
	}
	return referrer.ID, r
}

func TestReferralCreateAndGet(t *testing.T) {
	ts := setupReferralTestDB(t)
	referrerID, r := seedReferral(t, ts)

	if r.Status != model.ReferralPending {
		t.Errorf("status = %q, want pending", r.Status)
	}
	if r.ReferrerID != referrerID {
		t.Errorf("referrer_id = %d, want %d", r.ReferrerID, referrerID)
	}
	if r.CreditedAt != nil {
		t.Error("new referral should not have credited_at")
	}

	byBooking, err := ts.referrals.GetByBookingID(r.ReferredBookingID)
	if err != nil {
		t.Fatalf("get by booking: %v", err)
	}
	if byBooking == nil || byBooking.ID != r.ID {
		t.Fatalf("get by booking = %+v, want id %d", byBooking, r.ID)
	}

	missing, err := ts.referrals.GetByBookingID(9999)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown booking, got %+v", missing)
	}
}

func TestReferralClaimCompleted(t *testing.T) {
	ts := setupReferralTestDB(t)
	_, r := seedReferral(t, ts)

	claimed, err := ts.referrals.ClaimCompleted(r.ID)
	if err != nil {
		t.Fatalf("claim completed: %v", err)
	}
	if !claimed {
		t.Fatal("expected pending referral to claim")
	}

	// Already completed: the guarded update affects no rows.
	claimed, err = ts.referrals.ClaimCompleted(r.ID)
	if err != nil {
		t.Fatalf("claim completed again: %v", err)
	}
	if claimed {
		t.Error("second claim should report false")
	}

	got, err := ts.referrals.GetByID(r.ID)
	if err != nil {
		t.Fatalf("get referral: %v", err)
	}
	if got.Status != model.ReferralCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
}

func TestReferralCreditExactlyOnce(t *testing.T) {
	ts := setupReferralTestDB(t)
	referrerID, r := seedReferral(t, ts)

	if _, err := ts.referrals.ClaimCompleted(r.ID); err != nil {
		t.Fatalf("claim completed: %v", err)
	}

	credited, err := ts.referrals.CreditReferral(r.ID, referrerID, 1, 1000, testNow())
	if err != nil {
		t.Fatalf("credit referral: %v", err)
	}
	if !credited {
		t.Fatal("expected first credit to claim")
	}

	// Second execution of the same step must not touch the ledger.
	credited, err = ts.referrals.CreditReferral(r.ID, referrerID, 1, 1000, testNow())
	if err != nil {
		t.Fatalf("credit referral again: %v", err)
	}
	if credited {
		t.Error("second credit should report false")
	}

	got, err := ts.referrals.GetByID(r.ID)
	if err != nil {
		t.Fatalf("get referral: %v", err)
	}
	if got.Status != model.ReferralCredited {
		t.Errorf("status = %q, want credited", got.Status)
	}
	if got.Tier != 1 || got.CreditAmount != 1000 {
		t.Errorf("tier = %d amount = %d, want 1/1000", got.Tier, got.CreditAmount)
	}
	if got.CreditedAt == nil {
		t.Error("expected credited_at to be set")
	}

	account, err := ts.credits.GetByCustomer(referrerID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account == nil {
		t.Fatal("expected account to be created")
	}
	if account.AvailableBalance != 1000 || account.TotalEarned != 1000 {
		t.Errorf("balance after double credit attempt: %+v", account)
	}

	txns, err := ts.credits.ListTransactions(referrerID)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txns))
	}
	if txns[0].Kind != model.TxnCredit || txns[0].Amount != 1000 {
		t.Errorf("transaction = %+v", txns[0])
	}

	count, err := ts.referrals.CountCreditedByReferrer(referrerID)
	if err != nil {
		t.Fatalf("count credited: %v", err)
	}
	if count != 1 {
		t.Errorf("credited count = %d, want 1", count)
	}
}

func TestReferralCreditRequiresCompleted(t *testing.T) {
	ts := setupReferralTestDB(t)
	referrerID, r := seedReferral(t, ts)

	// Still pending: crediting must not claim.
	credited, err := ts.referrals.CreditReferral(r.ID, referrerID, 1, 1000, testNow())
	if err != nil {
		t.Fatalf("credit referral: %v", err)
	}
	if credited {
		t.Error("pending referral should not credit")
	}
	account, err := ts.credits.GetByCustomer(referrerID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account != nil {
		t.Errorf("no ledger account should exist, got %+v", account)
	}
}

func TestReferralStats(t *testing.T) {
	ts := setupReferralTestDB(t)
	referrerID, r := seedReferral(t, ts)

	// A second referral whose booking gets cancelled.
	other, err := ts.customers.Create("Dan Wu", "dan@example.com", "", "")
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	b2, err := ts.bookings.Create(other.ID, "dan@example.com", "", "", "", strPtr("JOHN1234"), 5000)
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if _, err := ts.referrals.Create(referrerID, b2.ID, "JOHN1234"); err != nil {
		t.Fatalf("create referral: %v", err)
	}
	if _, err := ts.bookings.MarkCancelled(b2.ID); err != nil {
		t.Fatalf("cancel booking: %v", err)
	}

	if _, err := ts.referrals.ClaimCompleted(r.ID); err != nil {
		t.Fatalf("claim completed: %v", err)
	}
	if _, err := ts.referrals.CreditReferral(r.ID, referrerID, 1, 1000, testNow()); err != nil {
		t.Fatalf("credit referral: %v", err)
	}

	st, err := ts.referrals.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 2 || st.Credited != 1 || st.Pending != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.StalePending != 1 {
		t.Errorf("stale_pending = %d, want 1", st.StalePending)
	}
	if st.ConversionRate != 0.5 {
		t.Errorf("conversion_rate = %f, want 0.5", st.ConversionRate)
	}
	if st.TotalCredited != 1000 {
		t.Errorf("total_credited = %d, want 1000", st.TotalCredited)
	}

	board, err := ts.referrals.Leaderboard(10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 1 {
		t.Fatalf("leaderboard rows = %d, want 1", len(board))
	}
	if board[0].CustomerID != referrerID || board[0].Credited != 1 || board[0].TotalEarned != 1000 {
		t.Errorf("leaderboard entry = %+v", board[0])
	}
}
