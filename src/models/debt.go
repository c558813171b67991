package models

import "time"

// Debt is an outstanding amount owed by the user.
//
// CurrentAmount holds principal plus any interest already folded in at the
// last recalculation point; it is only ever changed by a payment. Interest
// accrued since then is derived on read by the debt service, never written
// back on its own.
type Debt struct {
	ID             int64   `json:"id"`
	UserID         int64   `json:"user_id"`
	Name           string  `json:"name"`
	OriginalAmount float64 `json:"original_amount"`
	CurrentAmount  float64 `json:"current_amount"`

	// MonthlyInterestRate is a percentage per 30-day period. Zero (or
	// negative) means no accrual policy applies.
	MonthlyInterestRate float64 `json:"monthly_interest_rate"`

	// DueDate (YYYY-MM-DD) is the default accrual base date. Empty means
	// interest never starts accruing.
	DueDate string `json:"due_date,omitempty"`

	// LastPaymentDate is stamped on every payment and, once set, replaces
	// DueDate as the accrual base date.
	LastPaymentDate NullTime `json:"last_payment_date"`

	Creditor    string    `json:"creditor,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsSettled reports whether the stored balance has been paid down to zero.
// The caller must treat settled debts as accepting no further payments.
func (d *Debt) IsSettled() bool {
	return d.CurrentAmount <= 0
}

// AccrualBaseDate returns the date interest compounds from: the last payment
// date when one exists, otherwise the due date. ok is false when the debt has
// neither, i.e. no accrual policy applies.
func (d *Debt) AccrualBaseDate() (time.Time, bool) {
	if d.LastPaymentDate.Valid {
		return d.LastPaymentDate.Time, true
	}
	if d.DueDate == "" {
		return time.Time{}, false
	}
	due, err := time.Parse(DateLayout, d.DueDate)
	if err != nil {
		return time.Time{}, false
	}
	return due, true
}
