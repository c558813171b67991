package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/douglassdm/pulsefinance/backend/src/database"
	"github.com/douglassdm/pulsefinance/backend/src/logger"
	"github.com/douglassdm/pulsefinance/backend/src/models"
	"github.com/douglassdm/pulsefinance/backend/src/security/validation"
	"github.com/douglassdm/pulsefinance/backend/src/services"
)

type DebtHandler struct {
	debtService    services.DebtService
	summaryService services.SummaryService
}

func NewDebtHandler(debtService services.DebtService, summaryService services.SummaryService) *DebtHandler {
	return &DebtHandler{debtService: debtService, summaryService: summaryService}
}

// DebtView is a debt row plus the figures derived on every read: the amount
// currently owed with interest, and payment progress.
type DebtView struct {
	models.Debt
	AmountOwed         float64 `json:"amount_owed"`
	ProgressPercentage float64 `json:"progress_percentage"`
	Settled            bool    `json:"settled"`
}

func (h *DebtHandler) view(debt *models.Debt, now time.Time) DebtView {
	return DebtView{
		Debt:               *debt,
		AmountOwed:         h.debtService.ComputeCurrentAmount(debt, now),
		ProgressPercentage: h.debtService.ComputeProgress(debt, now),
		Settled:            debt.IsSettled(),
	}
}

func scanDebt(scanner interface{ Scan(dest ...any) error }) (*models.Debt, error) {
	var d models.Debt
	var rate sql.NullFloat64
	var dueDate, creditor, description sql.NullString
	var lastPayment sql.NullTime
	err := scanner.Scan(&d.ID, &d.UserID, &d.Name, &d.OriginalAmount, &d.CurrentAmount,
		&rate, &dueDate, &lastPayment, &creditor, &description, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.MonthlyInterestRate = rate.Float64
	d.DueDate = dueDate.String
	d.LastPaymentDate = models.NullTime(lastPayment)
	d.Creditor = creditor.String
	d.Description = description.String
	return &d, nil
}

const debtColumns = `id, user_id, name, original_amount, current_amount,
	monthly_interest_rate, due_date, last_payment_date, creditor, description, created_at, updated_at`

func getOwnedDebt(userID, debtID int64) (*models.Debt, error) {
	row := database.DB.QueryRow(
		"SELECT "+debtColumns+" FROM debts WHERE id = ? AND user_id = ?", debtID, userID)
	return scanDebt(row)
}

func (h *DebtHandler) HandleListDebts(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	rows, err := database.DB.Query(
		"SELECT "+debtColumns+" FROM debts WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		logger.L.Error("Failed to query debts", "userID", userID, "error", err)
		sendJSONError(w, "Failed to list debts", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	now := time.Now()
	debts := make([]DebtView, 0)
	for rows.Next() {
		debt, err := scanDebt(rows)
		if err != nil {
			logger.L.Error("Failed to scan debt row", "userID", userID, "error", err)
			sendJSONError(w, "Failed to list debts", http.StatusInternalServerError)
			return
		}
		debts = append(debts, h.view(debt, now))
	}
	if err := rows.Err(); err != nil {
		sendJSONError(w, "Failed to list debts", http.StatusInternalServerError)
		return
	}

	sendJSON(w, debts, http.StatusOK)
}

func (h *DebtHandler) HandleGetDebt(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, "Invalid debt id", http.StatusBadRequest)
		return
	}

	debt, err := getOwnedDebt(userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Debt not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to load debt", "userID", userID, "debtID", id, "error", err)
		sendJSONError(w, "Failed to load debt", http.StatusInternalServerError)
		return
	}

	sendJSON(w, h.view(debt, time.Now()), http.StatusOK)
}

type debtRequest struct {
	Name                string  `json:"name"`
	OriginalAmount      float64 `json:"original_amount"`
	MonthlyInterestRate float64 `json:"monthly_interest_rate"`
	DueDate             string  `json:"due_date"`
	Creditor            string  `json:"creditor"`
	Description         string  `json:"description"`
}

func (req *debtRequest) sanitizeAndValidate() error {
	req.Name = validation.SanitizeText(req.Name)
	req.Creditor = validation.SanitizeText(req.Creditor)
	req.Description = validation.SanitizeText(req.Description)

	if err := validation.ValidateName(req.Name, "debt name"); err != nil {
		return err
	}
	if err := validation.ValidateStringMaxLength(req.Description, validation.MaxDescriptionLength, "description"); err != nil {
		return err
	}
	if req.MonthlyInterestRate < 0 {
		return errors.New("monthly interest rate cannot be negative")
	}
	if _, err := validation.ValidateDateString(req.DueDate, "due_date", true); err != nil {
		return err
	}
	return nil
}

func (h *DebtHandler) HandleCreateDebt(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req debtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.sanitizeAndValidate(); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateMonetaryValue(req.OriginalAmount, "original_amount", false); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// A debt starts with its full original amount outstanding.
	now := time.Now()
	res, err := database.DB.Exec(`
		INSERT INTO debts (user_id, name, original_amount, current_amount, monthly_interest_rate,
			due_date, creditor, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, req.Name, req.OriginalAmount, req.OriginalAmount, req.MonthlyInterestRate,
		nullableString(req.DueDate), nullableString(req.Creditor), nullableString(req.Description), now, now)
	if err != nil {
		logger.L.Error("Failed to create debt", "userID", userID, "error", err)
		sendJSONError(w, "Failed to create debt", http.StatusInternalServerError)
		return
	}
	id, _ := res.LastInsertId()

	h.summaryService.InvalidateUserCache(userID)
	debt := &models.Debt{
		ID: id, UserID: userID, Name: req.Name,
		OriginalAmount: req.OriginalAmount, CurrentAmount: req.OriginalAmount,
		MonthlyInterestRate: req.MonthlyInterestRate, DueDate: req.DueDate,
		Creditor: req.Creditor, Description: req.Description,
		CreatedAt: now, UpdatedAt: now,
	}
	sendJSON(w, h.view(debt, now), http.StatusCreated)
}

// HandleUpdateDebt edits descriptive fields, the interest rate, and the due
// date. It never touches current_amount; only payments do.
func (h *DebtHandler) HandleUpdateDebt(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, "Invalid debt id", http.StatusBadRequest)
		return
	}

	var req debtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.sanitizeAndValidate(); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec(`
		UPDATE debts SET name = ?, monthly_interest_rate = ?, due_date = ?, creditor = ?, description = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		req.Name, req.MonthlyInterestRate, nullableString(req.DueDate),
		nullableString(req.Creditor), nullableString(req.Description), time.Now(), id, userID)
	if err != nil {
		logger.L.Error("Failed to update debt", "userID", userID, "debtID", id, "error", err)
		sendJSONError(w, "Failed to update debt", http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		sendJSONError(w, "Debt not found", http.StatusNotFound)
		return
	}

	h.summaryService.InvalidateUserCache(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *DebtHandler) HandleDeleteDebt(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, "Invalid debt id", http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec("DELETE FROM debts WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		logger.L.Error("Failed to delete debt", "userID", userID, "debtID", id, "error", err)
		sendJSONError(w, "Failed to delete debt", http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		sendJSONError(w, "Debt not found", http.StatusNotFound)
		return
	}

	h.summaryService.InvalidateUserCache(userID)
	w.WriteHeader(http.StatusNoContent)
}

type payDebtRequest struct {
	Amount        float64 `json:"amount"`
	BankAccountID int64   `json:"bank_account_id"`
}

// HandlePayDebt applies a partial or total payment: one expense transaction
// recording the cash movement, one debt update reducing the balance.
func (h *DebtHandler) HandlePayDebt(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, "Invalid debt id", http.StatusBadRequest)
		return
	}

	var req payDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	debt, err := getOwnedDebt(userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Debt not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to load debt for payment", "userID", userID, "debtID", id, "error", err)
		sendJSONError(w, "Failed to apply payment", http.StatusInternalServerError)
		return
	}
	if debt.IsSettled() {
		sendJSONError(w, "Debt is already settled", http.StatusBadRequest)
		return
	}

	if _, err := getOwnedAccount(userID, req.BankAccountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Bank account not found", http.StatusBadRequest)
			return
		}
		logger.L.Error("Failed to verify bank account for payment", "userID", userID, "error", err)
		sendJSONError(w, "Failed to apply payment", http.StatusInternalServerError)
		return
	}

	tx, err := h.debtService.ApplyPayment(debt, req.Amount, req.BankAccountID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPaymentAmount),
			errors.Is(err, services.ErrPaymentExceedsDebt),
			errors.Is(err, services.ErrNoBankAccount):
			sendJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			logger.FromContext(r.Context()).Error("Debt payment failed", "debtID", id, "error", err)
			sendJSONError(w, "Failed to apply payment", http.StatusInternalServerError)
		}
		return
	}

	h.summaryService.InvalidateUserCache(userID)
	sendJSON(w, map[string]any{
		"debt":        h.view(debt, time.Now()),
		"transaction": tx,
	}, http.StatusOK)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
