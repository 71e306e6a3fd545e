package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/bramble/internal/model"
	"github.com/google/uuid"
)

var (
	// ErrInvalidAmount is returned for zero or negative mutation amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrInsufficientBalance is returned when a debit exceeds the available
	// balance, or an adjustment would break the ledger invariant.
	ErrInsufficientBalance = errors.New("insufficient credit balance")
)

// CreditStore owns the per-customer credit ledger. All mutations are single
// guarded UPDATEs against the persisted balance, so concurrent callers cannot
// lose updates, and every mutation records an audit transaction.
type CreditStore struct {
	db *sql.DB
}

func NewCreditStore(db *sql.DB) *CreditStore {
	return &CreditStore{db: db}
}

func scanAccount(scanner interface{ Scan(...any) error }) (*model.CreditAccount, error) {
	var a model.CreditAccount
	err := scanner.Scan(&a.ID, &a.CustomerID, &a.TotalEarned, &a.TotalUsed, &a.AvailableBalance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const accountCols = `id, customer_id, total_earned, total_used, available_balance, created_at, updated_at`

// GetOrCreate returns the customer's account, creating a zeroed one if none
// exists. The uniqueness constraint on customer_id makes concurrent creation
// safe without application-level locking.
func (s *CreditStore) GetOrCreate(customerID int64) (*model.CreditAccount, error) {
	_, err := s.db.Exec(
		`INSERT INTO credit_accounts (customer_id) VALUES (?) ON CONFLICT(customer_id) DO NOTHING`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure credit account: %w", err)
	}
	return s.GetByCustomer(customerID)
}

func (s *CreditStore) GetByCustomer(customerID int64) (*model.CreditAccount, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM credit_accounts WHERE customer_id = ?`, customerID)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credit account: %w", err)
	}
	return a, nil
}

// AddCredit increments total_earned and available_balance by amount.
func (s *CreditStore) AddCredit(customerID, amount int64, note string) (*model.CreditAccount, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin add credit: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO credit_accounts (customer_id) VALUES (?) ON CONFLICT(customer_id) DO NOTHING`,
		customerID,
	); err != nil {
		return nil, fmt.Errorf("ensure credit account: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE credit_accounts SET total_earned = total_earned + ?, available_balance = available_balance + ?, updated_at = ? WHERE customer_id = ?`,
		amount, amount, time.Now().UTC(), customerID,
	); err != nil {
		return nil, fmt.Errorf("add credit: %w", err)
	}

	if err := insertTransaction(tx, customerID, model.TxnCredit, amount, note); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit add credit: %w", err)
	}
	return s.GetByCustomer(customerID)
}

// UseCredit spends amount from the available balance. The balance guard lives
// in the UPDATE's WHERE clause; zero rows affected means the balance was
// insufficient (or no account exists, which is the same thing).
func (s *CreditStore) UseCredit(customerID, amount int64, note string) (*model.CreditAccount, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin use credit: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE credit_accounts SET total_used = total_used + ?, available_balance = available_balance - ?, updated_at = ? WHERE customer_id = ? AND available_balance >= ?`,
		amount, amount, time.Now().UTC(), customerID, amount,
	)
	if err != nil {
		return nil, fmt.Errorf("use credit: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrInsufficientBalance
	}

	if err := insertTransaction(tx, customerID, model.TxnDebit, -amount, note); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit use credit: %w", err)
	}
	return s.GetByCustomer(customerID)
}

// Adjust applies a signed administrative correction to total_earned. Positive
// amounts add headroom like AddCredit; negative amounts are guarded so they
// can never drive total_used above total_earned or the balance below zero.
func (s *CreditStore) Adjust(customerID, amount int64, note string) (*model.CreditAccount, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin adjust: %w", err)
	}
	defer tx.Rollback()

	if amount > 0 {
		if _, err := tx.Exec(
			`INSERT INTO credit_accounts (customer_id) VALUES (?) ON CONFLICT(customer_id) DO NOTHING`,
			customerID,
		); err != nil {
			return nil, fmt.Errorf("ensure credit account: %w", err)
		}
		if _, err := tx.Exec(
			`UPDATE credit_accounts SET total_earned = total_earned + ?, available_balance = available_balance + ?, updated_at = ? WHERE customer_id = ?`,
			amount, amount, time.Now().UTC(), customerID,
		); err != nil {
			return nil, fmt.Errorf("adjust credit up: %w", err)
		}
	} else {
		down := -amount
		result, err := tx.Exec(
			`UPDATE credit_accounts SET total_earned = total_earned - ?, available_balance = available_balance - ?, updated_at = ? WHERE customer_id = ? AND available_balance >= ? AND total_earned - ? >= total_used`,
			down, down, time.Now().UTC(), customerID, down, down,
		)
		if err != nil {
			return nil, fmt.Errorf("adjust credit down: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return nil, ErrInsufficientBalance
		}
	}

	if err := insertTransaction(tx, customerID, model.TxnAdjustment, amount, note); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit adjust: %w", err)
	}
	return s.GetByCustomer(customerID)
}

func insertTransaction(tx *sql.Tx, customerID int64, kind model.TransactionKind, amount int64, note string) error {
	_, err := tx.Exec(
		`INSERT INTO credit_transactions (id, customer_id, kind, amount, note) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), customerID, kind, amount, note,
	)
	if err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.CreditTransaction, error) {
	var t model.CreditTransaction
	err := scanner.Scan(&t.ID, &t.CustomerID, &t.Kind, &t.Amount, &t.Note, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTransactions returns a customer's ledger history, newest first.
func (s *CreditStore) ListTransactions(customerID int64) ([]model.CreditTransaction, error) {
	rows, err := s.db.Query(
		`SELECT id, customer_id, kind, amount, note, created_at FROM credit_transactions WHERE customer_id = ? ORDER BY created_at DESC, id DESC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.CreditTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}
