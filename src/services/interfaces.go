package services

import (
	"errors"
	"time"

	"github.com/douglassdm/pulsefinance/backend/src/models"
)

// Validation rejections. These are returned before any write happens, so a
// rejected operation has no partial effect.
var (
	ErrInvalidPaymentAmount = errors.New("payment amount must be greater than zero")
	ErrPaymentExceedsDebt   = errors.New("payment amount exceeds the currently owed amount")
	ErrNoBankAccount        = errors.New("a bank account is required")
	ErrInvalidValue         = errors.New("value must be greater than zero")
	ErrInvalidFrequency     = errors.New("invalid recurrence frequency")
	ErrInvalidType          = errors.New("transaction type must be income or expense")
	ErrInvalidDate          = errors.New("invalid date")
	ErrSeriesInactive       = errors.New("recurring series is inactive")
)

// DebtService computes interest accrual and applies payments.
//
// ComputeCurrentAmount and ComputeProgress are pure; ApplyPayment performs
// writes. When a debt has no interest rate or no due date, the computed
// amount deliberately equals the stored amount: "no accrual" is a valid
// policy outcome, not a failure.
type DebtService interface {
	ComputeCurrentAmount(debt *models.Debt, now time.Time) float64
	ComputeProgress(debt *models.Debt, now time.Time) float64
	ApplyPayment(debt *models.Debt, amount float64, bankAccountID int64, now time.Time) (*models.Transaction, error)
}

// RecurringUpdate carries the replacement values for an edit of a recurring
// series. All fields replace the stored values directly; the service derives
// the new next-occurrence date from them.
type RecurringUpdate struct {
	BankAccountID int64
	CategoryID    *int64
	Type          string
	Value         float64
	Description   string
	Frequency     models.Frequency
	StartDate     string
	EndDate       string
}

// RecurringService manages recurring-transaction series: creation (with an
// automatic first occurrence when due), manual execution, edits, and the
// pause/reactivate lifecycle. Firing a series inserts a materialized
// transaction and strictly advances its schedule.
type RecurringService interface {
	Create(series *models.RecurringTransaction, today time.Time) (*models.Transaction, error)
	ExecuteNow(series *models.RecurringTransaction, today time.Time) (*models.Transaction, error)
	Update(series *models.RecurringTransaction, upd RecurringUpdate, today time.Time) error
	Pause(series *models.RecurringTransaction, today time.Time) error
	Reactivate(series *models.RecurringTransaction, today time.Time) error
}

// SummarySnapshot is the dashboard aggregate for one user.
type SummarySnapshot struct {
	TotalBalance       float64            `json:"total_balance"`
	MonthIncome        float64            `json:"month_income"`
	MonthExpenses      float64            `json:"month_expenses"`
	ExpensesByCategory map[string]float64 `json:"expenses_by_category"`
	OpenDebtTotal      float64            `json:"open_debt_total"` // includes accrued interest
	ActiveRecurring    int                `json:"active_recurring"`
	GoalsTargetTotal   float64            `json:"goals_target_total"`
	GoalsSavedTotal    float64            `json:"goals_saved_total"`
	GeneratedAt        time.Time          `json:"generated_at"`
}

// SummaryService derives the dashboard snapshot from freshly fetched rows and
// caches it briefly per user.
type SummaryService interface {
	GetSummary(userID int64, now time.Time) (*SummarySnapshot, error)
	InvalidateUserCache(userID int64)
}
