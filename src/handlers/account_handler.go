package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/douglassdm/pulsefinance/backend/src/database"
	"github.com/douglassdm/pulsefinance/backend/src/logger"
	"github.com/douglassdm/pulsefinance/backend/src/models"
	"github.com/douglassdm/pulsefinance/backend/src/security/validation"
	"github.com/douglassdm/pulsefinance/backend/src/services"
	"github.com/go-chi/chi/v5"
)

type AccountHandler struct {
	summaryService services.SummaryService
}

func NewAccountHandler(summaryService services.SummaryService) *AccountHandler {
	return &AccountHandler{summaryService: summaryService}
}

// pathID extracts a numeric {id} URL parameter.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

type accountRequest struct {
	Name     string  `json:"name"`
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}

func (req *accountRequest) validate() error {
	if err := validation.ValidateName(req.Name, "account name"); err != nil {
		return err
	}
	if err := validation.ValidateCurrencyCode(req.Currency); err != nil {
		return err
	}
	return nil
}

func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	rows, err := database.DB.Query(`
		SELECT id, user_id, name, balance, currency, created_at, updated_at
		FROM bank_accounts WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		logger.L.Error("Failed to query bank accounts", "userID", userID, "error", err)
		sendJSONError(w, "Failed to list accounts", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	accounts := make([]models.BankAccount, 0)
	for rows.Next() {
		var a models.BankAccount
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Balance, &a.Currency, &a.CreatedAt, &a.UpdatedAt); err != nil {
			logger.L.Error("Failed to scan bank account row", "userID", userID, "error", err)
			sendJSONError(w, "Failed to list accounts", http.StatusInternalServerError)
			return
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		sendJSONError(w, "Failed to list accounts", http.StatusInternalServerError)
		return
	}

	sendJSON(w, accounts, http.StatusOK)
}

func (h *AccountHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = validation.SanitizeText(req.Name)
	if err := req.validate(); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Currency == "" {
		req.Currency = "EUR"
	}

	now := time.Now()
	res, err := database.DB.Exec(`
		INSERT INTO bank_accounts (user_id, name, balance, currency, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID, req.Name, req.Balance, req.Currency, now, now)
	if err != nil {
		logger.L.Error("Failed to create bank account", "userID", userID, "error", err)
		sendJSONError(w, "Failed to create account", http.StatusInternalServerError)
		return
	}
	id, _ := res.LastInsertId()

	h.summaryService.InvalidateUserCache(userID)
	sendJSON(w, models.BankAccount{
		ID: id, UserID: userID, Name: req.Name, Balance: req.Balance,
		Currency: req.Currency, CreatedAt: now, UpdatedAt: now,
	}, http.StatusCreated)
}

func (h *AccountHandler) HandleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, "Invalid account id", http.StatusBadRequest)
		return
	}

	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = validation.SanitizeText(req.Name)
	if err := req.validate(); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec(`
		UPDATE bank_accounts SET name = ?, balance = ?, currency = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		req.Name, req.Balance, req.Currency, time.Now(), id, userID)
	if err != nil {
		logger.L.Error("Failed to update bank account", "userID", userID, "accountID", id, "error", err)
		sendJSONError(w, "Failed to update account", http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		sendJSONError(w, "Account not found", http.StatusNotFound)
		return
	}

	h.summaryService.InvalidateUserCache(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, "Invalid account id", http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec("DELETE FROM bank_accounts WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		logger.L.Error("Failed to delete bank account", "userID", userID, "accountID", id, "error", err)
		sendJSONError(w, "Failed to delete account", http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		sendJSONError(w, "Account not found", http.StatusNotFound)
		return
	}

	h.summaryService.InvalidateUserCache(userID)
	w.WriteHeader(http.StatusNoContent)
}

// getOwnedAccount checks that the referenced bank account belongs to the
// user. Engines take the account on trust; the ownership check lives here at
// the HTTP boundary.
func getOwnedAccount(userID, accountID int64) (*models.BankAccount, error) {
	row := database.DB.QueryRow(`
		SELECT id, user_id, name, balance, currency, created_at, updated_at
		FROM bank_accounts WHERE id = ? AND user_id = ?`, accountID, userID)

	var a models.BankAccount
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Balance, &a.Currency, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return &a, nil
}
