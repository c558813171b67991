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

type TransactionHandler struct {
	summaryService services.SummaryService
}

func NewTransactionHandler(summaryService services.SummaryService) *TransactionHandler {
	return &TransactionHandler{summaryService: summaryService}
}

// HandleListTransactions supports optional type, category_id, from and to
// (YYYY-MM-DD) filters.
func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	query := `
		SELECT id, user_id, bank_account_id, category_id, type, value, description, transaction_date, created_at
		FROM transactions WHERE user_id = ?`
	args := []any{userID}

	if t := r.URL.Query().Get("type"); t != "" {
		if err := validation.ValidateTransactionType(t); err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		query += " AND type = ?"
		args = append(args, t)
	}
	if c := r.URL.Query().Get("category_id"); c != "" {
		query += " AND category_id = ?"
		args = append(args, c)
	}
	if from := r.URL.Query().Get("from"); from != "" {
		if _, err := validation.ValidateDateString(from, "from", false); err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		query += " AND transaction_date >= ?"
		args = append(args, from)
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if _, err := validation.ValidateDateString(to, "to", false); err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		query += " AND transaction_date <= ?"
		args = append(args, to)
	}
	query += " ORDER BY transaction_date DESC, id DESC"

	rows, err := database.DB.Query(query, args...)
	if err != nil {
		logger.L.Error("Failed to query transactions", "userID", userID, "error", err)
		sendJSONError(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	transactions := make([]models.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			logger.L.Error("Failed to scan transaction row", "userID", userID, "error", err)
			sendJSONError(w, "Failed to list transactions", http.StatusInternalServerError)
			return
		}
		transactions = append(transactions, *tx)
	}
	if err := rows.Err(); err != nil {
		sendJSONError(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}

	sendJSON(w, transactions, http.StatusOK)
}

func scanTransaction(rows *sql.Rows) (*models.Transaction, error) {
	var tx models.Transaction
	var categoryID sql.NullInt64
	err := rows.Scan(&tx.ID, &tx.UserID, &tx.BankAccountID, &categoryID, &tx.Type,
		&tx.Value, &tx.Description, &tx.TransactionDate, &tx.CreatedAt)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		tx.CategoryID = &categoryID.Int64
	}
	return &tx, nil
}

type transactionRequest struct {
	BankAccountID   int64   `json:"bank_account_id"`
	CategoryID      *int64  `json:"category_id"`
	Type            string  `json:"type"`
	Value           float64 `json:"value"`
	Description     string  `json:"description"`
	TransactionDate string  `json:"transaction_date"`
}

func (h *TransactionHandler) HandleAddTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Description = validation.SanitizeText(req.Description)
	if err := validation.ValidateTransactionType(req.Type); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateMonetaryValue(req.Value, "value", false); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := validation.ValidateDateString(req.TransactionDate, "transaction_date", false); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := getOwnedAccount(userID, req.BankAccountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Bank account not found", http.StatusBadRequest)
			return
		}
		logger.L.Error("Failed to verify bank account", "userID", userID, "error", err)
		sendJSONError(w, "Failed to add transaction", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	var categoryID any
	if req.CategoryID != nil {
		categoryID = *req.CategoryID
	}
	res, err := database.DB.Exec(`
		INSERT INTO transactions (user_id, bank_account_id, category_id, type, value, description, transaction_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, req.BankAccountID, categoryID, req.Type, req.Value, req.Description, req.TransactionDate, now)
	if err != nil {
		logger.L.Error("Failed to insert transaction", "userID", userID, "error", err)
		sendJSONError(w, "Failed to add transaction", http.StatusInternalServerError)
		return
	}
	id, _ := res.LastInsertId()

	h.summaryService.InvalidateUserCache(userID)
	sendJSON(w, models.Transaction{
		ID: id, UserID: userID, BankAccountID: req.BankAccountID, CategoryID: req.CategoryID,
		Type: req.Type, Value: req.Value, Description: req.Description,
		TransactionDate: req.TransactionDate, CreatedAt: now,
	}, http.StatusCreated)
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, "Invalid transaction id", http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec("DELETE FROM transactions WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		logger.L.Error("Failed to delete transaction", "userID", userID, "transactionID", id, "error", err)
		sendJSONError(w, "Failed to delete transaction", http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		sendJSONError(w, "Transaction not found", http.StatusNotFound)
		return
	}

	h.summaryService.InvalidateUserCache(userID)
	w.WriteHeader(http.StatusNoContent)
}
