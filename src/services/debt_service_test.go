package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/douglassdm/pulsefinance/backend/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func newDebt(current float64, rate float64, dueDate string) *models.Debt {
	return &models.Debt{
		ID:                  1,
		UserID:              1,
		Name:                "Car loan",
		OriginalAmount:      current,
		CurrentAmount:       current,
		MonthlyInterestRate: rate,
		DueDate:             dueDate,
	}
}

// A fixed clock keeps the elapsed-day arithmetic deterministic.
var testNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func TestComputeCurrentAmount(t *testing.T) {
	svc := NewDebtService(nil, false)

	t.Run("no interest rate returns stored amount", func(t *testing.T) {
		debt := newDebt(1000, 0, "2024-05-01")
		assert.Equal(t, 1000.0, svc.ComputeCurrentAmount(debt, testNow))
	})

	t.Run("no due date returns stored amount", func(t *testing.T) {
		debt := newDebt(1000, 10, "")
		assert.Equal(t, 1000.0, svc.ComputeCurrentAmount(debt, testNow))
	})

	t.Run("before due date returns stored amount", func(t *testing.T) {
		debt := newDebt(1000, 10, "2024-12-01")
		assert.Equal(t, 1000.0, svc.ComputeCurrentAmount(debt, testNow))
	})

	t.Run("settled debt accrues nothing", func(t *testing.T) {
		debt := newDebt(1000, 10, "2024-05-01")
		debt.CurrentAmount = 0
		assert.Equal(t, 0.0, svc.ComputeCurrentAmount(debt, testNow))
	})

	t.Run("less than one day past due returns stored amount", func(t *testing.T) {
		debt := newDebt(1000, 10, "2024-06-30")
		assert.Equal(t, 1000.0, svc.ComputeCurrentAmount(debt, testNow))
	})

	t.Run("two 30-day periods compound", func(t *testing.T) {
		// 2024-05-01 to 2024-06-30 is exactly 60 days.
		debt := newDebt(1000, 10, "2024-05-01")
		assert.InDelta(t, 1210.00, svc.ComputeCurrentAmount(debt, testNow), 0.01)
	})

	t.Run("fractional months compound fractionally", func(t *testing.T) {
		// 45 days elapsed: 1000 * 1.1^1.5.
		debt := newDebt(1000, 10, "2024-05-16")
		assert.InDelta(t, 1153.69, svc.ComputeCurrentAmount(debt, testNow), 0.01)
	})

	t.Run("accrual rebases onto the last payment date", func(t *testing.T) {
		debt := newDebt(1000, 10, "2024-01-01")
		debt.CurrentAmount = 900
		debt.LastPaymentDate = models.NullTime{Time: testNow.AddDate(0, 0, -30), Valid: true}
		assert.InDelta(t, 990.00, svc.ComputeCurrentAmount(debt, testNow), 0.01)
	})

	t.Run("pure and repeatable", func(t *testing.T) {
		debt := newDebt(1000, 10, "2024-05-01")
		first := svc.ComputeCurrentAmount(debt, testNow)
		second := svc.ComputeCurrentAmount(debt, testNow)
		assert.Equal(t, first, second)
		assert.Equal(t, 1000.0, debt.CurrentAmount, "stored amount must not change on read")
	})
}

func TestComputeProgress(t *testing.T) {
	svc := NewDebtService(nil, false)

	t.Run("nothing paid is zero", func(t *testing.T) {
		debt := newDebt(1000, 0, "")
		assert.Equal(t, 0.0, svc.ComputeProgress(debt, testNow))
	})

	t.Run("half paid without interest is fifty percent", func(t *testing.T) {
		debt := newDebt(1000, 0, "")
		debt.CurrentAmount = 500
		assert.InDelta(t, 50.0, svc.ComputeProgress(debt, testNow), 0.01)
	})

	t.Run("fully paid is one hundred percent", func(t *testing.T) {
		debt := newDebt(1000, 0, "")
		debt.CurrentAmount = 0
		assert.Equal(t, 100.0, svc.ComputeProgress(debt, testNow))
	})

	t.Run("balance above original clamps to zero", func(t *testing.T) {
		// Interest already folded into the stored balance by past payments.
		debt := newDebt(1000, 0, "")
		debt.CurrentAmount = 1200
		assert.Equal(t, 0.0, svc.ComputeProgress(debt, testNow))
	})

	t.Run("accrued interest does not count as paid", func(t *testing.T) {
		debt := newDebt(1000, 10, "2024-05-01")
		debt.CurrentAmount = 800
		// paid 200, owed now 800 * 1.1^2 = 968 -> 200 / 1168.
		assert.InDelta(t, 17.12, svc.ComputeProgress(debt, testNow), 0.01)
	})
}

type DebtPaymentSuite struct {
	suite.Suite
	db     *sql.DB
	atomic bool
	svc    DebtService
}

func (s *DebtPaymentSuite) SetupTest() {
	s.db = newTestDB(s.T())
	s.svc = NewDebtService(s.db, s.atomic)
}

func (s *DebtPaymentSuite) seedDebt(debt *models.Debt) {
	res, err := s.db.Exec(`
		INSERT INTO debts (user_id, name, original_amount, current_amount, monthly_interest_rate, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		debt.UserID, debt.Name, debt.OriginalAmount, debt.CurrentAmount,
		debt.MonthlyInterestRate, debt.DueDate, testNow, testNow)
	s.Require().NoError(err)
	debt.ID, err = res.LastInsertId()
	s.Require().NoError(err)
}

func (s *DebtPaymentSuite) TestPartialPayment() {
	debt := newDebt(500, 0, "")
	s.seedDebt(debt)

	tx, err := s.svc.ApplyPayment(debt, 200, 7, testNow)
	s.Require().NoError(err)
	s.Require().NotNil(tx)

	s.Equal(models.TypeExpense, tx.Type)
	s.Equal(200.0, tx.Value)
	s.Equal(int64(7), tx.BankAccountID)
	s.Equal("Debt payment: Car loan", tx.Description)
	s.Equal(testNow.Format(models.DateLayout), tx.TransactionDate)
	s.NotZero(tx.ID)

	s.InDelta(300.0, debt.CurrentAmount, 0.001)
	s.True(debt.LastPaymentDate.Valid)

	var stored float64
	var lastPayment sql.NullTime
	err = s.db.QueryRow("SELECT current_amount, last_payment_date FROM debts WHERE id = ?", debt.ID).
		Scan(&stored, &lastPayment)
	s.Require().NoError(err)
	s.InDelta(300.0, stored, 0.001)
	s.True(lastPayment.Valid)
	s.Equal(1, countRows(s.T(), s.db, "transactions"))
}

func (s *DebtPaymentSuite) TestFullPaymentSettlesAccruedAmount() {
	// 60 days past due at 10% per 30 days: owed is 1210.00.
	debt := newDebt(1000, 10, "2024-05-01")
	s.seedDebt(debt)

	_, err := s.svc.ApplyPayment(debt, 1210.00, 7, testNow)
	s.Require().NoError(err)

	s.InDelta(0.0, debt.CurrentAmount, 0.001)
	s.True(debt.IsSettled())
}

func (s *DebtPaymentSuite) TestRejectsNonPositiveAmount() {
	debt := newDebt(500, 0, "")
	s.seedDebt(debt)

	for _, amount := range []float64{0, -50} {
		tx, err := s.svc.ApplyPayment(debt, amount, 7, testNow)
		s.ErrorIs(err, ErrInvalidPaymentAmount)
		s.Nil(tx)
	}
	s.Equal(0, countRows(s.T(), s.db, "transactions"))
	s.InDelta(500.0, debt.CurrentAmount, 0.001)
}

func (s *DebtPaymentSuite) TestRejectsPaymentAboveOwed() {
	debt := newDebt(500, 0, "")
	s.seedDebt(debt)

	tx, err := s.svc.ApplyPayment(debt, 500.01, 7, testNow)
	s.ErrorIs(err, ErrPaymentExceedsDebt)
	s.Nil(tx)
	s.Equal(0, countRows(s.T(), s.db, "transactions"))
}

func (s *DebtPaymentSuite) TestOverpaymentLimitUsesAccruedAmount() {
	// Stored 1000 but owed 1210 with interest, so 1100 is a valid payment.
	debt := newDebt(1000, 10, "2024-05-01")
	s.seedDebt(debt)

	_, err := s.svc.ApplyPayment(debt, 1100, 7, testNow)
	s.Require().NoError(err)
	s.InDelta(110.00, debt.CurrentAmount, 0.01)
}

func (s *DebtPaymentSuite) TestRejectsMissingBankAccount() {
	debt := newDebt(500, 0, "")
	s.seedDebt(debt)

	tx, err := s.svc.ApplyPayment(debt, 100, 0, testNow)
	s.ErrorIs(err, ErrNoBankAccount)
	s.Nil(tx)
	s.Equal(0, countRows(s.T(), s.db, "transactions"))
}

func (s *DebtPaymentSuite) TestSecondPaymentCompoundsFromFirst() {
	debt := newDebt(1000, 10, "2024-05-01")
	s.seedDebt(debt)

	_, err := s.svc.ApplyPayment(debt, 210, 7, testNow)
	s.Require().NoError(err)
	s.InDelta(1000.00, debt.CurrentAmount, 0.01)

	// 30 days later another 10% has accrued on the reduced balance.
	later := testNow.AddDate(0, 0, 30)
	_, err = s.svc.ApplyPayment(debt, 100, 7, later)
	s.Require().NoError(err)
	s.InDelta(1000.00, debt.CurrentAmount, 0.01)
	s.Equal(2, countRows(s.T(), s.db, "transactions"))
}

func TestDebtPaymentSequential(t *testing.T) {
	suite.Run(t, &DebtPaymentSuite{atomic: false})
}

func TestDebtPaymentAtomic(t *testing.T) {
	suite.Run(t, &DebtPaymentSuite{atomic: true})
}

func TestAccrualBaseDate(t *testing.T) {
	debt := newDebt(1000, 10, "2024-05-01")

	base, ok := debt.AccrualBaseDate()
	require.True(t, ok)
	assert.Equal(t, "2024-05-01", base.Format(models.DateLayout))

	paidAt := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	debt.LastPaymentDate = models.NullTime{Time: paidAt, Valid: true}
	base, ok = debt.AccrualBaseDate()
	require.True(t, ok)
	assert.Equal(t, paidAt, base)

	debt.LastPaymentDate = models.NullTime{}
	debt.DueDate = ""
	_, ok = debt.AccrualBaseDate()
	assert.False(t, ok)
}
