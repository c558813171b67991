package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/douglassdm/pulsefinance/backend/src/database"
	"github.com/douglassdm/pulsefinance/backend/src/logger"
	"github.com/douglassdm/pulsefinance/backend/src/models"
	"github.com/douglassdm/pulsefinance/backend/src/parsers"
	"github.com/douglassdm/pulsefinance/backend/src/processors"
	"github.com/douglassdm/pulsefinance/backend/src/security/validation"
	"github.com/douglassdm/pulsefinance/backend/src/services"
	"github.com/shopspring/decimal"
)

const maxImportUploadBytes = 5 << 20

type InvestmentHandler struct {
	summaryService services.SummaryService
}

func NewInvestmentHandler(summaryService services.SummaryService) *InvestmentHandler {
	return &InvestmentHandler{summaryService: summaryService}
}

const investmentColumns = `id, user_id, asset_name, asset_type, quantity, average_price, currency, created_at, updated_at`

func scanInvestment(scanner interface{ Scan(dest ...any) error }) (*models.Investment, error) {
	var inv models.Investment
	err := scanner.Scan(&inv.ID, &inv.UserID, &inv.AssetName, &inv.AssetType,
		&inv.Quantity, &inv.AveragePrice, &inv.Currency, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (h *InvestmentHandler) HandleListInvestments(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	rows, err := database.DB.Query(
		"SELECT "+investmentColumns+" FROM investments WHERE user_id = ? ORDER BY asset_name", userID)
	if err != nil {
		logger.L.Error("Failed to query investments", "userID", userID, "error", err)
		sendJSONError(w, "Failed to list investments", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	investments := make([]models.Investment, 0)
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			logger.L.Error("Failed to scan investment row", "userID", userID, "error", err)
			sendJSONError(w, "Failed to list investments", http.StatusInternalServerError)
			return
		}
		investments = append(investments, *inv)
	}
	if err := rows.Err(); err != nil {
		sendJSONError(w, "Failed to list investments", http.StatusInternalServerError)
		return
	}

	sendJSON(w, investments, http.StatusOK)
}

type investmentRequest struct {
	AssetName    string  `json:"asset_name"`
	AssetType    string  `json:"asset_type"`
	Quantity     float64 `json:"quantity"`
	AveragePrice float64 `json:"average_price"`
	Currency     string  `json:"currency"`
}

func (req *investmentRequest) sanitizeAndValidate() error {
	req.AssetName = processors.NormalizeAssetName(validation.SanitizeText(req.AssetName))
	req.AssetType = strings.ToLower(validation.SanitizeText(req.AssetType))
	if err := validation.ValidateName(req.AssetName, "asset name"); err != nil {
		return err
	}
	if req.AssetType == "" {
		req.AssetType = "stock"
	}
	if req.Quantity < 0 {
		return errors.New("quantity cannot be negative")
	}
	if err := validation.ValidateMonetaryValue(req.AveragePrice, "average_price", true); err != nil {
		return err
	}
	if err := validation.ValidateCurrencyCode(req.Currency); err != nil {
		return err
	}
	return nil
}

func (h *InvestmentHandler) HandleCreateInvestment(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req investmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.sanitizeAndValidate(); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Currency == "" {
		req.Currency = "EUR"
	}

	now := time.Now()
	res, err := database.DB.Exec(`
		INSERT INTO investments (user_id, asset_name, asset_type, quantity, average_price, currency, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, req.AssetName, req.AssetType, req.Quantity, req.AveragePrice, req.Currency, now, now)
	if err != nil {
		logger.L.Error("Failed to create investment", "userID", userID, "error", err)
		sendJSONError(w, "Failed to create investment", http.StatusInternalServerError)
		return
	}
	id, _ := res.LastInsertId()

	h.summaryService.InvalidateUserCache(userID)
	sendJSON(w, models.Investment{
		ID: id, UserID: userID, AssetName: req.AssetName, AssetType: req.AssetType,
		Quantity: req.Quantity, AveragePrice: req.AveragePrice, Currency: req.Currency,
		CreatedAt: now, UpdatedAt: now,
	}, http.StatusCreated)
}

func (h *InvestmentHandler) HandleUpdateInvestment(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, "Invalid investment id", http.StatusBadRequest)
		return
	}

	var req investmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.sanitizeAndValidate(); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec(`
		UPDATE investments SET asset_name = ?, asset_type = ?, quantity = ?, average_price = ?, currency = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		req.AssetName, req.AssetType, req.Quantity, req.AveragePrice, req.Currency, time.Now(), id, userID)
	if err != nil {
		logger.L.Error("Failed to update investment", "userID", userID, "investmentID", id, "error", err)
		sendJSONError(w, "Failed to update investment", http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		sendJSONError(w, "Investment not found", http.StatusNotFound)
		return
	}

	h.summaryService.InvalidateUserCache(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *InvestmentHandler) HandleDeleteInvestment(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, "Invalid investment id", http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec("DELETE FROM investments WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		logger.L.Error("Failed to delete investment", "userID", userID, "investmentID", id, "error", err)
		sendJSONError(w, "Failed to delete investment", http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		sendJSONError(w, "Investment not found", http.StatusNotFound)
		return
	}

	h.summaryService.InvalidateUserCache(userID)
	w.WriteHeader(http.StatusNoContent)
}

type skippedImportRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type importResult struct {
	Imported []processors.NormalizedInvestmentTransaction `json:"imported"`
	Skipped  []skippedImportRow                           `json:"skipped"`
}

// HandleImportInvestments ingests a broker export, either a multipart CSV
// upload (form field "file") or a JSON array of rows. Each row is classified
// into buy/sell/dividend; buys and sells move the matching position,
// dividends are acknowledged but change no position. Rows no rule matches are
// reported back, never stored.
func (h *InvestmentHandler) HandleImportInvestments(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	rows, err := readImportRows(r)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(rows) == 0 {
		sendJSONError(w, "No rows to import", http.StatusBadRequest)
		return
	}

	result := importResult{
		Imported: make([]processors.NormalizedInvestmentTransaction, 0),
		Skipped:  make([]skippedImportRow, 0),
	}
	for i, row := range rows {
		normalized, err := processors.Classify(row)
		if err != nil {
			result.Skipped = append(result.Skipped, skippedImportRow{Row: i + 1, Reason: err.Error()})
			continue
		}
		if err := h.applyImportRow(userID, normalized); err != nil {
			logger.L.Error("Failed to apply import row", "userID", userID, "row", i+1, "error", err)
			sendJSONError(w, "Failed to import investments", http.StatusInternalServerError)
			return
		}
		result.Imported = append(result.Imported, normalized)
	}

	h.summaryService.InvalidateUserCache(userID)
	logger.FromContext(r.Context()).Info("Investment import finished",
		"imported", len(result.Imported), "skipped", len(result.Skipped))
	sendJSON(w, result, http.StatusOK)
}

func readImportRows(r *http.Request) ([]processors.RawImportRow, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImportUploadBytes); err != nil {
			return nil, errors.New("invalid multipart upload")
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("missing file upload field")
		}
		defer file.Close()
		rows, err := parsers.ParseInvestmentCSV(file)
		if err != nil {
			return nil, errors.New("could not parse CSV file")
		}
		return rows, nil
	}

	var rows []processors.RawImportRow
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		return nil, errors.New("invalid request body")
	}
	return rows, nil
}

// applyImportRow folds one classified transaction into the user's positions.
// Buys add quantity at a weighted average price; sells reduce quantity, never
// below zero, leaving the average price as is.
func (h *InvestmentHandler) applyImportRow(userID int64, tx processors.NormalizedInvestmentTransaction) error {
	if tx.Kind == processors.InvestmentDividend {
		return nil
	}

	row := database.DB.QueryRow(
		"SELECT "+investmentColumns+" FROM investments WHERE user_id = ? AND asset_name = ?",
		userID, tx.AssetName)
	position, err := scanInvestment(row)
	now := time.Now()

	if errors.Is(err, sql.ErrNoRows) {
		if tx.Kind == processors.InvestmentSell {
			// Selling an unknown position records nothing to reduce.
			return nil
		}
		_, err := database.DB.Exec(`
			INSERT INTO investments (user_id, asset_name, asset_type, quantity, average_price, currency, created_at, updated_at)
			VALUES (?, ?, 'stock', ?, ?, ?, ?, ?)`,
			userID, tx.AssetName, tx.Quantity, tx.Price, tx.Currency, now, now)
		return err
	}
	if err != nil {
		return err
	}

	quantity := position.Quantity
	averagePrice := position.AveragePrice
	switch tx.Kind {
	case processors.InvestmentBuy:
		newQuantity := quantity + tx.Quantity
		cost := decimal.NewFromFloat(averagePrice).Mul(decimal.NewFromFloat(quantity)).
			Add(decimal.NewFromFloat(tx.Price).Mul(decimal.NewFromFloat(tx.Quantity)))
		averagePrice = cost.Div(decimal.NewFromFloat(newQuantity)).Round(4).InexactFloat64()
		quantity = newQuantity
	case processors.InvestmentSell:
		quantity -= tx.Quantity
		if quantity < 0 {
			quantity = 0
		}
	}

	_, err = database.DB.Exec(`
		UPDATE investments SET quantity = ?, average_price = ?, updated_at = ? WHERE id = ?`,
		quantity, averagePrice, now, position.ID)
	return err
}
