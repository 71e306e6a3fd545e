package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/bramble/internal/model"
)

type CustomerStore struct {
	db *sql.DB
}

func NewCustomerStore(db *sql.DB) *CustomerStore {
	return &CustomerStore{db: db}
}

func scanCustomer(scanner interface{ Scan(...any) error }) (*model.Customer, error) {
	var c model.Customer
	var code sql.NullString

	err := scanner.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &code, &c.TotalBookings, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	if code.Valid {
		c.ReferralCode = &code.String
	}
	return &c, nil
}

const customerCols = `id, name, email, phone, address, referral_code, total_bookings, created_at`

func (s *CustomerStore) Create(name, email, phone, address string) (*model.Customer, error) {
	result, err := s.db.Exec(
		`INSERT INTO customers (name, email, phone, address) VALUES (?, ?, ?, ?)`,
		name, email, phone, address,
	)
	if err != nil {
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *CustomerStore) GetByID(id int64) (*model.Customer, error) {
	row := s.db.QueryRow(`SELECT `+customerCols+` FROM customers WHERE id = ?`, id)
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (s *CustomerStore) GetByEmail(email string) (*model.Customer, error) {
	row := s.db.QueryRow(`SELECT `+customerCols+` FROM customers WHERE email = ?`, email)
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer by email: %w", err)
	}
	return c, nil
}

// GetByReferralCode looks up the customer who owns a referral code.
func (s *CustomerStore) GetByReferralCode(code string) (*model.Customer, error) {
	row := s.db.QueryRow(`SELECT `+customerCols+` FROM customers WHERE referral_code = ?`, code)
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer by code: %w", err)
	}
	return c, nil
}

// CodeExists reports whether a referral code is already assigned to any
// customer. Used by the code generator's uniqueness retry loop, which must
// re-query on every attempt because codes can be issued concurrently.
func (s *CustomerStore) CodeExists(code string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM customers WHERE referral_code = ?`, code).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check code exists: %w", err)
	}
	return true, nil
}

// SetReferralCode assigns a code to a customer that does not yet have one.
// Returns false if the customer already holds a code, so a concurrent issuer
// loses cleanly instead of overwriting.
func (s *CustomerStore) SetReferralCode(id int64, code string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE customers SET referral_code = ? WHERE id = ? AND referral_code IS NULL`,
		code, id,
	)
	if err != nil {
		return false, fmt.Errorf("set referral code: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// IncrementBookings bumps the customer's completed-booking count.
func (s *CustomerStore) IncrementBookings(id int64) error {
	_, err := s.db.Exec(
		`UPDATE customers SET total_bookings = total_bookings + 1 WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("increment bookings: %w", err)
	}
	return nil
}

// ListEligibleForCode returns customers who qualify for a referral code but
// have not been issued one: at least one completed booking on record.
func (s *CustomerStore) ListEligibleForCode() ([]model.Customer, error) {
	rows, err := s.db.Query(`
		SELECT ` + customerCols + ` FROM customers c
		WHERE c.referral_code IS NULL
		  AND c.total_bookings > 0
		  AND EXISTS (SELECT 1 FROM bookings b WHERE b.customer_id = c.id AND b.status = 'completed')
		ORDER BY c.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list eligible customers: %w", err)
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}
