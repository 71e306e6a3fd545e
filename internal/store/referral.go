package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/bramble/internal/model"
	"github.com/google/uuid"
)

type ReferralStore struct {
	db *sql.DB
}

func NewReferralStore(db *sql.DB) *ReferralStore {
	return &ReferralStore{db: db}
}

func scanReferral(scanner interface{ Scan(...any) error }) (*model.Referral, error) {
	var r model.Referral
	var creditedAt sql.NullTime

	err := scanner.Scan(
		&r.ID, &r.ReferrerID, &r.ReferredBookingID, &r.Code, &r.Status,
		&r.Tier, &r.CreditAmount, &r.CreatedAt, &creditedAt,
	)
	if err != nil {
		return nil, err
	}

	if creditedAt.Valid {
		r.CreditedAt = &creditedAt.Time
	}
	return &r, nil
}

const referralCols = `id, referrer_id, referred_booking_id, code, status, tier, credit_amount, created_at, credited_at`

// Create inserts a pending referral. The UNIQUE constraint on
// referred_booking_id enforces at most one referral per booking.
func (s *ReferralStore) Create(referrerID, bookingID int64, code string) (*model.Referral, error) {
	result, err := s.db.Exec(
		`INSERT INTO referrals (referrer_id, referred_booking_id, code) VALUES (?, ?, ?)`,
		referrerID, bookingID, code,
	)
	if err != nil {
		return nil, fmt.Errorf("insert referral: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ReferralStore) GetByID(id int64) (*model.Referral, error) {
	row := s.db.QueryRow(`SELECT `+referralCols+` FROM referrals WHERE id = ?`, id)
	r, err := scanReferral(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get referral: %w", err)
	}
	return r, nil
}

func (s *ReferralStore) GetByBookingID(bookingID int64) (*model.Referral, error) {
	row := s.db.QueryRow(`SELECT `+referralCols+` FROM referrals WHERE referred_booking_id = ?`, bookingID)
	r, err := scanReferral(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get referral by booking: %w", err)
	}
	return r, nil
}

func (s *ReferralStore) List() ([]model.Referral, error) {
	rows, err := s.db.Query(`SELECT ` + referralCols + ` FROM referrals ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	defer rows.Close()

	var referrals []model.Referral
	for rows.Next() {
		r, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("scan referral: %w", err)
		}
		referrals = append(referrals, *r)
	}
	return referrals, rows.Err()
}

// ClaimCompleted advances a pending referral to completed. The update is
// guarded by the expected current status; zero rows affected means another
// execution already advanced it.
func (s *ReferralStore) ClaimCompleted(id int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE referrals SET status = ? WHERE id = ? AND status = ?`,
		model.ReferralCompleted, id, model.ReferralPending,
	)
	if err != nil {
		return false, fmt.Errorf("claim referral completed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// CreditReferral advances a completed referral to credited and applies the
// reward to the referrer's ledger account, all in one transaction. The
// guarded update is the claim: if zero rows are affected another execution
// already credited this referral and nothing else happens (no ledger write,
// and the caller must not send the notification). The account row is created
// lazily; the uniqueness constraint on customer_id makes that race-safe.
func (s *ReferralStore) CreditReferral(id, referrerID int64, tier int, amount int64, now time.Time) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin credit: %w", err)
	}
	defer tx.Rollback()

	now = now.UTC()

	result, err := tx.Exec(
		`UPDATE referrals SET status = ?, tier = ?, credit_amount = ?, credited_at = ? WHERE id = ? AND status = ?`,
		model.ReferralCredited, tier, amount, now, id, model.ReferralCompleted,
	)
	if err != nil {
		return false, fmt.Errorf("claim referral credited: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.Exec(
		`INSERT INTO credit_accounts (customer_id) VALUES (?) ON CONFLICT(customer_id) DO NOTHING`,
		referrerID,
	); err != nil {
		return false, fmt.Errorf("ensure credit account: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE credit_accounts SET total_earned = total_earned + ?, available_balance = available_balance + ?, updated_at = ? WHERE customer_id = ?`,
		amount, amount, now, referrerID,
	); err != nil {
		return false, fmt.Errorf("add referral credit: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO credit_transactions (id, customer_id, kind, amount, note) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), referrerID, model.TxnCredit, amount,
		fmt.Sprintf("referral %d credited (tier %d)", id, tier),
	); err != nil {
		return false, fmt.Errorf("record credit transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit credit: %w", err)
	}
	return true, nil
}

// CountCreditedByReferrer counts a referrer's already-credited referrals.
// The tier of the referral being processed is determined by history strictly
// prior to itself, so this must be read before CreditReferral claims the row.
func (s *ReferralStore) CountCreditedByReferrer(referrerID int64) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM referrals WHERE referrer_id = ? AND status = ?`,
		referrerID, model.ReferralCredited,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count credited referrals: %w", err)
	}
	return count, nil
}

// Stats summarizes the program for admin reporting.
type ReferralStats struct {
	Total          int     `json:"total"`
	Pending        int     `json:"pending"`
	Completed      int     `json:"completed"`
	Credited       int     `json:"credited"`
	StalePending   int     `json:"stale_pending"`
	ConversionRate float64 `json:"conversion_rate"`
	TotalCredited  int64   `json:"total_credited_amount"`
}

func (s *ReferralStore) Stats() (*ReferralStats, error) {
	var st ReferralStats
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'credited' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'credited' THEN credit_amount ELSE 0 END), 0)
		FROM referrals`).Scan(&st.Total, &st.Pending, &st.Completed, &st.Credited, &st.TotalCredited)
	if err != nil {
		return nil, fmt.Errorf("referral stats: %w", err)
	}

	// Pending referrals whose booking was cancelled: there is no terminal
	// failure state for these, so they are surfaced here for manual review.
	err = s.db.QueryRow(`
		SELECT COUNT(*) FROM referrals r
		JOIN bookings b ON b.id = r.referred_booking_id
		WHERE r.status = 'pending' AND b.status = 'cancelled'`).Scan(&st.StalePending)
	if err != nil {
		return nil, fmt.Errorf("stale pending count: %w", err)
	}

	if st.Total > 0 {
		st.ConversionRate = float64(st.Credited) / float64(st.Total)
	}
	return &st, nil
}

// LeaderboardEntry is one row of the top-referrer leaderboard.
type LeaderboardEntry struct {
	CustomerID   int64  `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Credited     int    `json:"credited_referrals"`
	TotalEarned  int64  `json:"total_earned"`
}

// Leaderboard returns the top referrers by credited referral count.
func (s *ReferralStore) Leaderboard(limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT c.id, c.name, COUNT(*), COALESCE(SUM(r.credit_amount), 0)
		FROM referrals r
		JOIN customers c ON c.id = r.referrer_id
		WHERE r.status = 'credited'
		GROUP BY c.id, c.name
		ORDER BY COUNT(*) DESC, c.name ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.CustomerID, &e.CustomerName, &e.Credited, &e.TotalEarned); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
