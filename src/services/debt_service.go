package services

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/douglassdm/pulsefinance/backend/src/logger"
	"github.com/douglassdm/pulsefinance/backend/src/models"
	"github.com/shopspring/decimal"
)

// Interest compounds per 30-day period, not per calendar month. This is the
// historical convention; changing it would silently alter the accrued figure
// of every existing debt.
const daysPerInterestMonth = 30.0

type debtServiceImpl struct {
	db *sql.DB

	// When false, a payment is two independent writes and a failed debt
	// update after a successful transaction insert is surfaced but not
	// compensated.
	atomicPayments bool
}

// NewDebtService creates a new instance of DebtService.
func NewDebtService(db *sql.DB, atomicPayments bool) DebtService {
	return &debtServiceImpl{db: db, atomicPayments: atomicPayments}
}

// ComputeCurrentAmount returns the amount currently owed, with compound
// interest applied from the accrual base date (last payment date if any, else
// due date) up to now. Pure: the debt record is not modified.
func (s *debtServiceImpl) ComputeCurrentAmount(debt *models.Debt, now time.Time) float64 {
	if debt.MonthlyInterestRate <= 0 || debt.DueDate == "" {
		return debt.CurrentAmount
	}
	if debt.IsSettled() {
		return debt.CurrentAmount
	}

	base, ok := debt.AccrualBaseDate()
	if !ok {
		return debt.CurrentAmount
	}

	// Interest only starts once the due date has passed. After a first
	// payment the base date is the payment timestamp and accrual continues
	// from there.
	if !now.After(base) && !debt.LastPaymentDate.Valid {
		return debt.CurrentAmount
	}

	elapsedDays := math.Floor(now.Sub(base).Hours() / 24)
	if elapsedDays < 1 {
		return debt.CurrentAmount
	}

	// Fractional months feed directly into compounding; elapsed time is not
	// capped to whole months.
	monthsElapsed := elapsedDays / daysPerInterestMonth
	factor := math.Pow(1+debt.MonthlyInterestRate/100, monthsElapsed)

	result := decimal.NewFromFloat(debt.CurrentAmount).
		Mul(decimal.NewFromFloat(factor)).
		Round(2)
	return result.InexactFloat64()
}

// ComputeProgress returns the payment progress percentage in [0, 100].
// Progress is measured against the stored current amount, so interest that
// has accrued into the balance does not count as "paid".
func (s *debtServiceImpl) ComputeProgress(debt *models.Debt, now time.Time) float64 {
	actualPaid := debt.OriginalAmount - debt.CurrentAmount
	if actualPaid < 0 {
		actualPaid = 0
	}

	totalWithInterest := s.ComputeCurrentAmount(debt, now) + actualPaid
	if totalWithInterest <= 0 {
		return 0
	}

	percentage := actualPaid / totalWithInterest * 100
	if percentage < 0 {
		return 0
	}
	if percentage > 100 {
		return 100
	}
	return percentage
}

// ApplyPayment records a payment against the debt: it inserts an expense
// transaction for the cash movement and reduces the debt balance to the
// interest-accrued amount minus the payment, stamping the payment timestamp.
//
// Validation failures are rejected before any write. In non-atomic mode a
// failed debt update after a successful insert leaves the expense recorded
// against an un-reduced balance; the error is surfaced, never compensated.
func (s *debtServiceImpl) ApplyPayment(debt *models.Debt, amount float64, bankAccountID int64, now time.Time) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidPaymentAmount
	}
	if bankAccountID == 0 {
		return nil, ErrNoBankAccount
	}

	owed := s.ComputeCurrentAmount(debt, now)
	if amount > owed {
		return nil, ErrPaymentExceedsDebt
	}

	newAmount := decimal.NewFromFloat(owed).
		Sub(decimal.NewFromFloat(amount)).
		Round(2).
		InexactFloat64()

	tx := &models.Transaction{
		UserID:          debt.UserID,
		BankAccountID:   bankAccountID,
		Type:            models.TypeExpense,
		Value:           amount,
		Description:     fmt.Sprintf("Debt payment: %s", debt.Name),
		TransactionDate: now.Format(models.DateLayout),
		CreatedAt:       now,
	}

	if s.atomicPayments {
		if err := s.applyPaymentAtomic(debt, tx, newAmount, now); err != nil {
			return nil, err
		}
	} else {
		if err := s.applyPaymentSequential(debt, tx, newAmount, now); err != nil {
			return nil, err
		}
	}

	debt.CurrentAmount = newAmount
	debt.LastPaymentDate = models.NullTime{Time: now, Valid: true}
	debt.UpdatedAt = now

	logger.L.Info("Debt payment applied",
		"debtID", debt.ID, "userID", debt.UserID, "amount", amount, "newAmount", newAmount)
	return tx, nil
}

// applyPaymentSequential performs the historical two independent writes.
func (s *debtServiceImpl) applyPaymentSequential(debt *models.Debt, tx *models.Transaction, newAmount float64, now time.Time) error {
	if err := insertTransaction(s.db, tx); err != nil {
		logger.L.Error("Failed to insert payment transaction", "debtID", debt.ID, "error", err)
		return fmt.Errorf("inserting payment transaction: %w", err)
	}
	if err := updateDebtAfterPayment(s.db, debt.ID, newAmount, now); err != nil {
		// The expense is already recorded; the balance was not reduced.
		// There is no compensating write for this state.
		logger.L.Error("Debt update failed after payment transaction was inserted",
			"debtID", debt.ID, "transactionID", tx.ID, "error", err)
		return fmt.Errorf("updating debt after payment (expense transaction %d already recorded): %w", tx.ID, err)
	}
	return nil
}

// applyPaymentAtomic wraps both writes in a single database transaction.
func (s *debtServiceImpl) applyPaymentAtomic(debt *models.Debt, tx *models.Transaction, newAmount float64, now time.Time) error {
	dbTx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning payment transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := dbTx.Rollback(); rbErr != nil {
				logger.L.Error("Error rolling back payment transaction", "debtID", debt.ID, "rollbackError", rbErr)
			}
		}
	}()

	if err := insertTransaction(dbTx, tx); err != nil {
		return fmt.Errorf("inserting payment transaction: %w", err)
	}
	if err := updateDebtAfterPayment(dbTx, debt.ID, newAmount, now); err != nil {
		return fmt.Errorf("updating debt after payment: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing payment: %w", err)
	}
	committed = true
	return nil
}

// execer lets the write helpers run against either *sql.DB or *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertTransaction(db execer, tx *models.Transaction) error {
	var categoryID any
	if tx.CategoryID != nil {
		categoryID = *tx.CategoryID
	}
	res, err := db.Exec(`
		INSERT INTO transactions (user_id, bank_account_id, category_id, type, value, description, transaction_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.UserID, tx.BankAccountID, categoryID, tx.Type, tx.Value, tx.Description, tx.TransactionDate, tx.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	tx.ID = id
	return nil
}

func updateDebtAfterPayment(db execer, debtID int64, newAmount float64, now time.Time) error {
	_, err := db.Exec(`
		UPDATE debts SET current_amount = ?, last_payment_date = ?, updated_at = ? WHERE id = ?`,
		newAmount, now, now, debtID,
	)
	return err
}
