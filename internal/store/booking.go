package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/bramble/internal/fraud"
	"github.com/dukerupert/bramble/internal/model"
)

type BookingStore struct {
	db *sql.DB
}

func NewBookingStore(db *sql.DB) *BookingStore {
	return &BookingStore{db: db}
}

func scanBooking(scanner interface{ Scan(...any) error }) (*model.Booking, error) {
	var b model.Booking
	var code sql.NullString
	var completedAt sql.NullTime

	err := scanner.Scan(
		&b.ID, &b.CustomerID, &b.Email, &b.Phone, &b.Address, &b.IPAddress,
		&code, &b.Status, &b.ServicePrice, &b.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if code.Valid {
		b.ReferralCode = &code.String
	}
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}
	return &b, nil
}

const bookingCols = `id, customer_id, email, phone, address, ip_address, referral_code, status, service_price, created_at, completed_at`

// Create inserts a booking. Contact fields are stored both as given and in
// normalized form so fraud checks reduce to indexed equality lookups.
func (s *BookingStore) Create(customerID int64, email, phone, address, ipAddress string, referralCode *string, servicePrice int64) (*model.Booking, error) {
	var code sql.NullString
	if referralCode != nil {
		code = sql.NullString{String: *referralCode, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO bookings (customer_id, email, phone, address, ip_address, norm_email, norm_phone, norm_address, referral_code, service_price)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		customerID, email, phone, address, ipAddress,
		fraud.NormalizeEmail(email), fraud.NormalizePhone(phone), fraud.NormalizeAddress(address),
		code, servicePrice,
	)
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *BookingStore) GetByID(id int64) (*model.Booking, error) {
	row := s.db.QueryRow(`SELECT `+bookingCols+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// MarkCompleted transitions a scheduled booking to completed. Returns false
// if the booking was not in scheduled state.
func (s *BookingStore) MarkCompleted(id int64, now time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE bookings SET status = ?, completed_at = ? WHERE id = ? AND status = ?`,
		model.BookingCompleted, now.UTC(), id, model.BookingScheduled,
	)
	if err != nil {
		return false, fmt.Errorf("mark booking completed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// MarkCancelled transitions a scheduled booking to cancelled. Any referral
// linked to it stays pending; the stats endpoint surfaces those separately.
func (s *BookingStore) MarkCancelled(id int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE bookings SET status = ? WHERE id = ? AND status = ?`,
		model.BookingCancelled, id, model.BookingScheduled,
	)
	if err != nil {
		return false, fmt.Errorf("mark booking cancelled: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListCompletedWithCode returns completed bookings that carried a referral
// code. The orchestrator scans these every tick; conditional claims on the
// referral rows make the repeated observation safe.
func (s *BookingStore) ListCompletedWithCode() ([]model.Booking, error) {
	rows, err := s.db.Query(
		`SELECT ` + bookingCols + ` FROM bookings WHERE status = 'completed' AND referral_code IS NOT NULL ORDER BY completed_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list completed bookings: %w", err)
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// --- Fraud history queries (fraud.History) ---
// All comparisons run against bookings that used any referral code, on the
// normalized columns written at intake.

func (s *BookingStore) AddressUsedByOther(normAddress, normEmail string) (bool, error) {
	if normAddress == "" {
		return false, nil
	}
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM bookings WHERE referral_code IS NOT NULL AND norm_address = ? AND norm_email != ? LIMIT 1`,
		normAddress, normEmail,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check address reuse: %w", err)
	}
	return true, nil
}

func (s *BookingStore) PhoneUsedByOther(normPhone, normEmail string) (bool, error) {
	if normPhone == "" {
		return false, nil
	}
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM bookings WHERE referral_code IS NOT NULL AND norm_phone = ? AND norm_email != ? LIMIT 1`,
		normPhone, normEmail,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check phone reuse: %w", err)
	}
	return true, nil
}

func (s *BookingStore) IPUsedByOther(ipAddress, normEmail string) (bool, error) {
	if ipAddress == "" {
		return false, nil
	}
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM bookings WHERE referral_code IS NOT NULL AND ip_address = ? AND norm_email != ? LIMIT 1`,
		ipAddress, normEmail,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check ip reuse: %w", err)
	}
	return true, nil
}

func (s *BookingStore) CodeUsesSince(code string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM bookings WHERE referral_code = ? AND created_at >= ?`,
		code, since.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count code uses: %w", err)
	}
	return count, nil
}
