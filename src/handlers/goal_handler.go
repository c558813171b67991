package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/douglassdm/pulsefinance/backend/src/config"
	"github.com/douglassdm/pulsefinance/backend/src/database"
	"github.com/douglassdm/pulsefinance/backend/src/logger"
	"github.com/douglassdm/pulsefinance/backend/src/models"
	"github.com/douglassdm/pulsefinance/backend/src/security/validation"
	"github.com/douglassdm/pulsefinance/backend/src/services"
	"github.com/shopspring/decimal"
)

type GoalHandler struct {
	summaryService services.SummaryService
}

func NewGoalHandler(summaryService services.SummaryService) *GoalHandler {
	return &GoalHandler{summaryService: summaryService}
}

// GoalView is a goal row plus its derived progress percentage.
type GoalView struct {
	models.SavingsGoal
	ProgressPercentage float64 `json:"progress_percentage"`
}

func goalView(g *models.SavingsGoal) GoalView {
	pct := 0.0
	if g.TargetAmount > 0 {
		pct = g.CurrentAmount / g.TargetAmount * 100
		if pct > 100 {
			pct = 100
		}
	}
	return GoalView{SavingsGoal: *g, ProgressPercentage: pct}
}

const goalColumns = `id, user_id, name, target_amount, current_amount, target_date, created_at, updated_at`

func scanGoal(scanner interface{ Scan(dest ...any) error }) (*models.SavingsGoal, error) {
	var g models.SavingsGoal
	var targetDate sql.NullString
	err := scanner.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.CurrentAmount,
		&targetDate, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.TargetDate = targetDate.String
	return &g, nil
}

func getOwnedGoal(userID, goalID int64) (*models.SavingsGoal, error) {
	row := database.DB.QueryRow(
		"SELECT "+goalColumns+" FROM savings_goals WHERE id = ? AND user_id = ?", goalID, userID)
	return scanGoal(row)
}

func (h *GoalHandler) HandleListGoals(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	rows, err := database.DB.Query(
		"SELECT "+goalColumns+" FROM savings_goals WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		logger.L.Error("Failed to query savings goals", "userID", userID, "error", err)
		sendJSONError(w, "Failed to list goals", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	goals := make([]GoalView, 0)
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			logger.L.Error("Failed to scan savings goal row", "userID", userID, "error", err)
			sendJSONError(w, "Failed to list goals", http.StatusInternalServerError)
			return
		}
		goals = append(goals, goalView(goal))
	}
	if err := rows.Err(); err != nil {
		sendJSONError(w, "Failed to list goals", http.StatusInternalServerError)
		return
	}

	sendJSON(w, goals, http.StatusOK)
}

type goalRequest struct {
	Name         string  `json:"name"`
	TargetAmount float64 `json:"target_amount"`
	TargetDate   string  `json:"target_date"`
}

func (req *goalRequest) sanitizeAndValidate() error {
	req.Name = validation.SanitizeText(req.Name)
	if err := validation.ValidateName(req.Name, "goal name"); err != nil {
		return err
	}
	if err := validation.ValidateMonetaryValue(req.TargetAmount, "target_amount", false); err != nil {
		return err
	}
	if _, err := validation.ValidateDateString(req.TargetDate, "target_date", true); err != nil {
		return err
	}
	return nil
}

func (h *GoalHandler) HandleCreateGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.sanitizeAndValidate(); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	now := time.Now()
	res, err := database.DB.Exec(`
		INSERT INTO savings_goals (user_id, name, target_amount, current_amount, target_date, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?, ?)`,
		userID, req.Name, req.TargetAmount, nullableString(req.TargetDate), now, now)
	if err != nil {
		logger.L.Error("Failed to create savings goal", "userID", userID, "error", err)
		sendJSONError(w, "Failed to create goal", http.StatusInternalServerError)
		return
	}
	id, _ := res.LastInsertId()

	h.summaryService.InvalidateUserCache(userID)
	goal := &models.SavingsGoal{
		ID: id, UserID: userID, Name: req.Name, TargetAmount: req.TargetAmount,
		TargetDate: req.TargetDate, CreatedAt: now, UpdatedAt: now,
	}
	sendJSON(w, goalView(goal), http.StatusCreated)
}

func (h *GoalHandler) HandleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, "Invalid goal id", http.StatusBadRequest)
		return
	}

	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.sanitizeAndValidate(); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec(`
		UPDATE savings_goals SET name = ?, target_amount = ?, target_date = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		req.Name, req.TargetAmount, nullableString(req.TargetDate), time.Now(), id, userID)
	if err != nil {
		logger.L.Error("Failed to update savings goal", "userID", userID, "goalID", id, "error", err)
		sendJSONError(w, "Failed to update goal", http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		sendJSONError(w, "Goal not found", http.StatusNotFound)
		return
	}

	h.summaryService.InvalidateUserCache(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *GoalHandler) HandleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, "Invalid goal id", http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec("DELETE FROM savings_goals WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		logger.L.Error("Failed to delete savings goal", "userID", userID, "goalID", id, "error", err)
		sendJSONError(w, "Failed to delete goal", http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		sendJSONError(w, "Goal not found", http.StatusNotFound)
		return
	}

	h.summaryService.InvalidateUserCache(userID)
	w.WriteHeader(http.StatusNoContent)
}

type contributeRequest struct {
	Amount        float64 `json:"amount"`
	BankAccountID int64   `json:"bank_account_id"`
}

// HandleContributeToGoal records money set aside for a goal: one expense
// transaction plus an increase of the goal's current amount. The same write
// pair as a debt payment, in the same order.
func (h *GoalHandler) HandleContributeToGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, "Invalid goal id", http.StatusBadRequest)
		return
	}

	var req contributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateMonetaryValue(req.Amount, "amount", false); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	goal, err := getOwnedGoal(userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Goal not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to load savings goal", "userID", userID, "goalID", id, "error", err)
		sendJSONError(w, "Failed to contribute to goal", http.StatusInternalServerError)
		return
	}
	if _, err := getOwnedAccount(userID, req.BankAccountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Bank account not found", http.StatusBadRequest)
			return
		}
		logger.L.Error("Failed to verify bank account for contribution", "userID", userID, "error", err)
		sendJSONError(w, "Failed to contribute to goal", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	newAmount := decimal.NewFromFloat(goal.CurrentAmount).
		Add(decimal.NewFromFloat(req.Amount)).Round(2).InexactFloat64()
	tx := &models.Transaction{
		UserID:          userID,
		BankAccountID:   req.BankAccountID,
		Type:            models.TypeExpense,
		Value:           req.Amount,
		Description:     "Goal contribution: " + goal.Name,
		TransactionDate: now.Format(models.DateLayout),
		CreatedAt:       now,
	}
	// Same paired write as a debt payment, under the same atomicity setting.
	if config.Cfg.AtomicDebtPayments {
		err = h.contributeAtomic(tx, newAmount, id, userID, now)
	} else {
		err = h.contributeSequential(tx, newAmount, id, userID, now)
	}
	if err != nil {
		logger.L.Error("Failed to record goal contribution", "userID", userID, "goalID", id, "error", err)
		sendJSONError(w, "Failed to contribute to goal", http.StatusInternalServerError)
		return
	}

	goal.CurrentAmount = newAmount
	goal.UpdatedAt = now
	h.summaryService.InvalidateUserCache(userID)
	sendJSON(w, map[string]any{
		"goal":        goalView(goal),
		"transaction": tx,
	}, http.StatusOK)
}

const insertContributionSQL = `
	INSERT INTO transactions (user_id, bank_account_id, category_id, type, value, description, transaction_date, created_at)
	VALUES (?, ?, NULL, ?, ?, ?, ?, ?)`

const updateGoalAmountSQL = `
	UPDATE savings_goals SET current_amount = ?, updated_at = ? WHERE id = ? AND user_id = ?`

// contributeSequential performs the two writes independently. A failed goal
// update after a recorded transaction is surfaced, not compensated.
func (h *GoalHandler) contributeSequential(tx *models.Transaction, newAmount float64, goalID, userID int64, now time.Time) error {
	res, err := database.DB.Exec(insertContributionSQL,
		tx.UserID, tx.BankAccountID, tx.Type, tx.Value, tx.Description, tx.TransactionDate, tx.CreatedAt)
	if err != nil {
		return err
	}
	tx.ID, _ = res.LastInsertId()
	if _, err := database.DB.Exec(updateGoalAmountSQL, newAmount, now, goalID, userID); err != nil {
		logger.L.Error("Goal update failed after contribution was recorded",
			"goalID", goalID, "transactionID", tx.ID, "error", err)
		return err
	}
	return nil
}

func (h *GoalHandler) contributeAtomic(tx *models.Transaction, newAmount float64, goalID, userID int64, now time.Time) error {
	dbTx, err := database.DB.Begin()
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	res, err := dbTx.Exec(insertContributionSQL,
		tx.UserID, tx.BankAccountID, tx.Type, tx.Value, tx.Description, tx.TransactionDate, tx.CreatedAt)
	if err != nil {
		return err
	}
	tx.ID, _ = res.LastInsertId()
	if _, err := dbTx.Exec(updateGoalAmountSQL, newAmount, now, goalID, userID); err != nil {
		return err
	}
	return dbTx.Commit()
}
