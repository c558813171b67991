package models

import (
	"database/sql"
	"time"
)

// DateLayout is the storage format for date-only fields (transaction dates,
// due dates, recurrence dates). The engines work at day granularity.
const DateLayout = "2006-01-02"

// Transaction types shared by transactions and recurring series.
const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

// IsValidTransactionType reports whether t is one of the two supported types.
func IsValidTransactionType(t string) bool {
	return t == TypeIncome || t == TypeExpense
}

// NullTime is an alias for sql.NullTime for better JSON handling.
type NullTime sql.NullTime

func (nt NullTime) MarshalJSON() ([]byte, error) {
	if !nt.Valid {
		return []byte("null"), nil
	}
	return nt.Time.MarshalJSON()
}

// BankAccount is a user-owned account that transactions are recorded against.
type BankAccount struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Balance   float64   `json:"balance"`
	Currency  string    `json:"currency"` // label only, no conversion is performed
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Category labels transactions as a kind of income or expense.
type Category struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"` // "income" or "expense"
	CreatedAt time.Time `json:"created_at"`
}

// Transaction is a concrete income/expense record. The debt and recurring
// engines only ever insert transactions; they never mutate existing ones.
type Transaction struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	BankAccountID   int64     `json:"bank_account_id"`
	CategoryID      *int64    `json:"category_id,omitempty"`
	Type            string    `json:"type"`
	Value           float64   `json:"value"`
	Description     string    `json:"description"`
	TransactionDate string    `json:"transaction_date"` // YYYY-MM-DD
	CreatedAt       time.Time `json:"created_at"`
}

// SavingsGoal tracks progress toward a saving target. Contributions insert an
// expense transaction and raise current_amount, mirroring the debt payment
// write pair.
type SavingsGoal struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	Name          string    `json:"name"`
	TargetAmount  float64   `json:"target_amount"`
	CurrentAmount float64   `json:"current_amount"`
	TargetDate    string    `json:"target_date,omitempty"` // YYYY-MM-DD, empty when open-ended
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Investment is a position held by the user. Quantity and average price are
// maintained by the import flow; no market price feed updates them.
type Investment struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	AssetName    string    `json:"asset_name"`
	AssetType    string    `json:"asset_type"`
	Quantity     float64   `json:"quantity"`
	AveragePrice float64   `json:"average_price"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
