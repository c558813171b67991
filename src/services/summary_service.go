package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/douglassdm/pulsefinance/backend/src/logger"
	"github.com/douglassdm/pulsefinance/backend/src/models"
	"github.com/patrickmn/go-cache"
)

// Cache settings for dashboard summaries.
const (
	DefaultCacheExpiration = 5 * time.Minute
	CacheCleanupInterval   = 10 * time.Minute
)

type summaryServiceImpl struct {
	db          *sql.DB
	debtService DebtService
	cache       *cache.Cache
	cacheTTL    time.Duration
}

// NewSummaryService creates a new instance of SummaryService.
func NewSummaryService(db *sql.DB, debtService DebtService, summaryCache *cache.Cache, ttl time.Duration) SummaryService {
	return &summaryServiceImpl{
		db:          db,
		debtService: debtService,
		cache:       summaryCache,
		cacheTTL:    ttl,
	}
}

func summaryCacheKey(userID int64) string {
	return fmt.Sprintf("summary:%d", userID)
}

// GetSummary returns the dashboard snapshot for the user, served from cache
// when fresh. Every figure is re-derived from current rows on a cache miss;
// there is no incremental state.
func (s *summaryServiceImpl) GetSummary(userID int64, now time.Time) (*SummarySnapshot, error) {
	if cached, found := s.cache.Get(summaryCacheKey(userID)); found {
		if snapshot, ok := cached.(*SummarySnapshot); ok {
			return snapshot, nil
		}
	}

	snapshot := &SummarySnapshot{
		ExpensesByCategory: make(map[string]float64),
		GeneratedAt:        now,
	}

	err := s.db.QueryRow(
		"SELECT COALESCE(SUM(balance), 0) FROM bank_accounts WHERE user_id = ?", userID,
	).Scan(&snapshot.TotalBalance)
	if err != nil {
		return nil, fmt.Errorf("summing account balances: %w", err)
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Format(models.DateLayout)
	err = s.db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN type = 'income' THEN value ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN value ELSE 0 END), 0)
		FROM transactions
		WHERE user_id = ? AND transaction_date >= ?`, userID, monthStart,
	).Scan(&snapshot.MonthIncome, &snapshot.MonthExpenses)
	if err != nil {
		return nil, fmt.Errorf("summing month transactions: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT c.name, COALESCE(SUM(t.value), 0) AS total
		FROM transactions t
		JOIN categories c ON t.category_id = c.id
		WHERE t.user_id = ? AND t.type = 'expense' AND t.transaction_date >= ?
		GROUP BY c.name
		ORDER BY total DESC`, userID, monthStart)
	if err != nil {
		return nil, fmt.Errorf("querying expenses by category: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var total float64
		if err := rows.Scan(&name, &total); err != nil {
			return nil, fmt.Errorf("scanning category expense row: %w", err)
		}
		snapshot.ExpensesByCategory[name] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating category expense rows: %w", err)
	}

	openDebtTotal, err := s.sumOpenDebts(userID, now)
	if err != nil {
		return nil, err
	}
	snapshot.OpenDebtTotal = openDebtTotal

	today := now.Format(models.DateLayout)
	err = s.db.QueryRow(`
		SELECT COUNT(*) FROM recurring_transactions
		WHERE user_id = ? AND (end_date IS NULL OR end_date >= ?)`, userID, today,
	).Scan(&snapshot.ActiveRecurring)
	if err != nil {
		return nil, fmt.Errorf("counting active recurring series: %w", err)
	}

	err = s.db.QueryRow(
		"SELECT COALESCE(SUM(target_amount), 0), COALESCE(SUM(current_amount), 0) FROM savings_goals WHERE user_id = ?",
		userID,
	).Scan(&snapshot.GoalsTargetTotal, &snapshot.GoalsSavedTotal)
	if err != nil {
		return nil, fmt.Errorf("summing savings goals: %w", err)
	}

	s.cache.Set(summaryCacheKey(userID), snapshot, s.cacheTTL)
	logger.L.Debug("Dashboard summary computed", "userID", userID)
	return snapshot, nil
}

// sumOpenDebts totals what is currently owed across open debts, interest
// included, by running each row through the debt engine.
func (s *summaryServiceImpl) sumOpenDebts(userID int64, now time.Time) (float64, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, name, original_amount, current_amount,
		       COALESCE(monthly_interest_rate, 0), COALESCE(due_date, ''), last_payment_date
		FROM debts
		WHERE user_id = ? AND current_amount > 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("querying open debts: %w", err)
	}
	defer rows.Close()

	var total float64
	for rows.Next() {
		var debt models.Debt
		var lastPayment sql.NullTime
		if err := rows.Scan(&debt.ID, &debt.UserID, &debt.Name, &debt.OriginalAmount, &debt.CurrentAmount,
			&debt.MonthlyInterestRate, &debt.DueDate, &lastPayment); err != nil {
			return 0, fmt.Errorf("scanning debt row: %w", err)
		}
		debt.LastPaymentDate = models.NullTime(lastPayment)
		total += s.debtService.ComputeCurrentAmount(&debt, now)
	}
	return total, rows.Err()
}

// InvalidateUserCache drops the cached summary after any write by the user.
func (s *summaryServiceImpl) InvalidateUserCache(userID int64) {
	s.cache.Delete(summaryCacheKey(userID))
}
