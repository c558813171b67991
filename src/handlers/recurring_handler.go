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

type RecurringHandler struct {
	recurringService services.RecurringService
	summaryService   services.SummaryService
}

func NewRecurringHandler(recurringService services.RecurringService, summaryService services.SummaryService) *RecurringHandler {
	return &RecurringHandler{recurringService: recurringService, summaryService: summaryService}
}

// RecurringView is a series row plus its derived schedule state.
type RecurringView struct {
	models.RecurringTransaction
	Active      bool `json:"active"`
	DaysOverdue int  `json:"days_overdue"`
}

func recurringView(series *models.RecurringTransaction, now time.Time) RecurringView {
	return RecurringView{
		RecurringTransaction: *series,
		Active:               series.IsActive(now),
		DaysOverdue:          series.DaysOverdue(now),
	}
}

const recurringColumns = `id, user_id, bank_account_id, category_id, type, value, description,
	frequency, start_date, end_date, next_occurrence_date, created_at, updated_at`

func scanRecurring(scanner interface{ Scan(dest ...any) error }) (*models.RecurringTransaction, error) {
	var rt models.RecurringTransaction
	var categoryID sql.NullInt64
	var endDate sql.NullString
	err := scanner.Scan(&rt.ID, &rt.UserID, &rt.BankAccountID, &categoryID, &rt.Type, &rt.Value,
		&rt.Description, &rt.Frequency, &rt.StartDate, &endDate, &rt.NextOccurrenceDate,
		&rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		rt.CategoryID = &categoryID.Int64
	}
	rt.EndDate = endDate.String
	return &rt, nil
}

func getOwnedSeries(userID, seriesID int64) (*models.RecurringTransaction, error) {
	row := database.DB.QueryRow(
		"SELECT "+recurringColumns+" FROM recurring_transactions WHERE id = ? AND user_id = ?",
		seriesID, userID)
	return scanRecurring(row)
}

func (h *RecurringHandler) HandleListRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	rows, err := database.DB.Query(
		"SELECT "+recurringColumns+" FROM recurring_transactions WHERE user_id = ? ORDER BY next_occurrence_date, id",
		userID)
	if err != nil {
		logger.L.Error("Failed to query recurring transactions", "userID", userID, "error", err)
		sendJSONError(w, "Failed to list recurring transactions", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	now := time.Now()
	series := make([]RecurringView, 0)
	for rows.Next() {
		rt, err := scanRecurring(rows)
		if err != nil {
			logger.L.Error("Failed to scan recurring row", "userID", userID, "error", err)
			sendJSONError(w, "Failed to list recurring transactions", http.StatusInternalServerError)
			return
		}
		series = append(series, recurringView(rt, now))
	}
	if err := rows.Err(); err != nil {
		sendJSONError(w, "Failed to list recurring transactions", http.StatusInternalServerError)
		return
	}

	sendJSON(w, series, http.StatusOK)
}

type recurringRequest struct {
	BankAccountID int64   `json:"bank_account_id"`
	CategoryID    *int64  `json:"category_id"`
	Type          string  `json:"type"`
	Value         float64 `json:"value"`
	Description   string  `json:"description"`
	Frequency     string  `json:"frequency"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
}

func (req *recurringRequest) sanitizeAndValidate() error {
	req.Description = validation.SanitizeText(req.Description)
	if err := validation.ValidateStringMaxLength(req.Description, validation.MaxDescriptionLength, "description"); err != nil {
		return err
	}
	if err := validation.ValidateTransactionType(req.Type); err != nil {
		return err
	}
	if err := validation.ValidateFrequency(req.Frequency); err != nil {
		return err
	}
	if err := validation.ValidateMonetaryValue(req.Value, "value", false); err != nil {
		return err
	}
	if _, err := validation.ValidateDateString(req.StartDate, "start_date", false); err != nil {
		return err
	}
	if _, err := validation.ValidateDateString(req.EndDate, "end_date", true); err != nil {
		return err
	}
	return nil
}

func (h *RecurringHandler) HandleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req recurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.sanitizeAndValidate(); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := getOwnedAccount(userID, req.BankAccountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Bank account not found", http.StatusBadRequest)
			return
		}
		logger.L.Error("Failed to verify bank account for recurring series", "userID", userID, "error", err)
		sendJSONError(w, "Failed to create recurring transaction", http.StatusInternalServerError)
		return
	}

	series := &models.RecurringTransaction{
		UserID:        userID,
		BankAccountID: req.BankAccountID,
		CategoryID:    req.CategoryID,
		Type:          req.Type,
		Value:         req.Value,
		Description:   req.Description,
		Frequency:     models.Frequency(req.Frequency),
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
	}

	now := time.Now()
	firstTx, err := h.recurringService.Create(series, now)
	if err != nil {
		h.sendServiceError(w, r, err, "Failed to create recurring transaction")
		return
	}

	h.summaryService.InvalidateUserCache(userID)
	sendJSON(w, map[string]any{
		"recurring_transaction": recurringView(series, now),
		"first_occurrence":      firstTx,
	}, http.StatusCreated)
}

func (h *RecurringHandler) HandleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	userID, series, ok := h.loadSeries(w, r)
	if !ok {
		return
	}

	var req recurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.sanitizeAndValidate(); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := getOwnedAccount(userID, req.BankAccountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Bank account not found", http.StatusBadRequest)
			return
		}
		logger.L.Error("Failed to verify bank account for recurring update", "userID", userID, "error", err)
		sendJSONError(w, "Failed to update recurring transaction", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	err := h.recurringService.Update(series, services.RecurringUpdate{
		BankAccountID: req.BankAccountID,
		CategoryID:    req.CategoryID,
		Type:          req.Type,
		Value:         req.Value,
		Description:   req.Description,
		Frequency:     models.Frequency(req.Frequency),
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
	}, now)
	if err != nil {
		h.sendServiceError(w, r, err, "Failed to update recurring transaction")
		return
	}

	h.summaryService.InvalidateUserCache(userID)
	sendJSON(w, recurringView(series, now), http.StatusOK)
}

func (h *RecurringHandler) HandleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, "Invalid recurring transaction id", http.StatusBadRequest)
		return
	}

	// Materialized transactions are history; deleting the series never
	// touches them.
	res, err := database.DB.Exec("DELETE FROM recurring_transactions WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		logger.L.Error("Failed to delete recurring series", "userID", userID, "seriesID", id, "error", err)
		sendJSONError(w, "Failed to delete recurring transaction", http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		sendJSONError(w, "Recurring transaction not found", http.StatusNotFound)
		return
	}

	h.summaryService.InvalidateUserCache(userID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleExecuteRecurring fires an active series immediately, outside its
// schedule.
func (h *RecurringHandler) HandleExecuteRecurring(w http.ResponseWriter, r *http.Request) {
	userID, series, ok := h.loadSeries(w, r)
	if !ok {
		return
	}

	now := time.Now()
	tx, err := h.recurringService.ExecuteNow(series, now)
	if err != nil {
		h.sendServiceError(w, r, err, "Failed to execute recurring transaction")
		return
	}

	h.summaryService.InvalidateUserCache(userID)
	sendJSON(w, map[string]any{
		"recurring_transaction": recurringView(series, now),
		"transaction":           tx,
	}, http.StatusOK)
}

func (h *RecurringHandler) HandlePauseRecurring(w http.ResponseWriter, r *http.Request) {
	userID, series, ok := h.loadSeries(w, r)
	if !ok {
		return
	}

	now := time.Now()
	if err := h.recurringService.Pause(series, now); err != nil {
		h.sendServiceError(w, r, err, "Failed to pause recurring transaction")
		return
	}

	h.summaryService.InvalidateUserCache(userID)
	sendJSON(w, recurringView(series, now), http.StatusOK)
}

func (h *RecurringHandler) HandleReactivateRecurring(w http.ResponseWriter, r *http.Request) {
	userID, series, ok := h.loadSeries(w, r)
	if !ok {
		return
	}

	now := time.Now()
	if err := h.recurringService.Reactivate(series, now); err != nil {
		h.sendServiceError(w, r, err, "Failed to reactivate recurring transaction")
		return
	}

	h.summaryService.InvalidateUserCache(userID)
	sendJSON(w, recurringView(series, now), http.StatusOK)
}

// loadSeries resolves the authenticated user and the owned series from the
// request, writing the error response itself when either fails.
func (h *RecurringHandler) loadSeries(w http.ResponseWriter, r *http.Request) (int64, *models.RecurringTransaction, bool) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return 0, nil, false
	}
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, "Invalid recurring transaction id", http.StatusBadRequest)
		return 0, nil, false
	}

	series, err := getOwnedSeries(userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Recurring transaction not found", http.StatusNotFound)
			return 0, nil, false
		}
		logger.L.Error("Failed to load recurring series", "userID", userID, "seriesID", id, "error", err)
		sendJSONError(w, "Failed to load recurring transaction", http.StatusInternalServerError)
		return 0, nil, false
	}
	return userID, series, true
}

func (h *RecurringHandler) sendServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrInvalidValue),
		errors.Is(err, services.ErrInvalidType),
		errors.Is(err, services.ErrInvalidFrequency),
		errors.Is(err, services.ErrInvalidDate),
		errors.Is(err, services.ErrNoBankAccount),
		errors.Is(err, services.ErrSeriesInactive):
		sendJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		logger.FromContext(r.Context()).Error(fallback, "error", err)
		sendJSONError(w, fallback, http.StatusInternalServerError)
	}
}
