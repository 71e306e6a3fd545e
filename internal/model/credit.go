package model

import "time"

// CreditAccount is a customer's store-credit balance. All amounts are integer
// cents. Invariant: AvailableBalance == TotalEarned - TotalUsed, and
// TotalUsed <= TotalEarned.
type CreditAccount struct {
	ID               int64     `json:"id"`
	CustomerID       int64     `json:"customer_id"`
	TotalEarned      int64     `json:"total_earned"`
	TotalUsed        int64     `json:"total_used"`
	AvailableBalance int64     `json:"available_balance"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type TransactionKind string

const (
	TxnCredit     TransactionKind = "credit"
	TxnDebit      TransactionKind = "debit"
	TxnAdjustment TransactionKind = "adjustment"
)

// CreditTransaction is one audit row per ledger mutation. Amount carries the
// sign: positive for credits, negative for debits and downward adjustments.
type CreditTransaction struct {
	ID         string          `json:"id"`
	CustomerID int64           `json:"customer_id"`
	Kind       TransactionKind `json:"kind"`
	Amount     int64           `json:"amount"`
	Note       string          `json:"note"`
	CreatedAt  time.Time       `json:"created_at"`
}
