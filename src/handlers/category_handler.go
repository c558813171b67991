package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/douglassdm/pulsefinance/backend/src/database"
	"github.com/douglassdm/pulsefinance/backend/src/logger"
	"github.com/douglassdm/pulsefinance/backend/src/models"
	"github.com/douglassdm/pulsefinance/backend/src/security/validation"
	"github.com/douglassdm/pulsefinance/backend/src/services"
)

type CategoryHandler struct {
	summaryService services.SummaryService
}

func NewCategoryHandler(summaryService services.SummaryService) *CategoryHandler {
	return &CategoryHandler{summaryService: summaryService}
}

func (h *CategoryHandler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	query := `SELECT id, user_id, name, type, created_at FROM categories WHERE user_id = ?`
	args := []any{userID}
	if t := r.URL.Query().Get("type"); t != "" {
		if err := validation.ValidateTransactionType(t); err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		query += " AND type = ?"
		args = append(args, t)
	}
	query += " ORDER BY name"

	rows, err := database.DB.Query(query, args...)
	if err != nil {
		logger.L.Error("Failed to query categories", "userID", userID, "error", err)
		sendJSONError(w, "Failed to list categories", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	categories := make([]models.Category, 0)
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.CreatedAt); err != nil {
			logger.L.Error("Failed to scan category row", "userID", userID, "error", err)
			sendJSONError(w, "Failed to list categories", http.StatusInternalServerError)
			return
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		sendJSONError(w, "Failed to list categories", http.StatusInternalServerError)
		return
	}

	sendJSON(w, categories, http.StatusOK)
}

type categoryRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (h *CategoryHandler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = validation.SanitizeText(req.Name)
	if err := validation.ValidateName(req.Name, "category name"); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateTransactionType(req.Type); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	now := time.Now()
	res, err := database.DB.Exec(`
		INSERT INTO categories (user_id, name, type, created_at) VALUES (?, ?, ?, ?)`,
		userID, req.Name, req.Type, now)
	if err != nil {
		logger.L.Error("Failed to create category", "userID", userID, "error", err)
		sendJSONError(w, "Failed to create category", http.StatusInternalServerError)
		return
	}
	id, _ := res.LastInsertId()

	h.summaryService.InvalidateUserCache(userID)
	sendJSON(w, models.Category{ID: id, UserID: userID, Name: req.Name, Type: req.Type, CreatedAt: now}, http.StatusCreated)
}

func (h *CategoryHandler) HandleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, "Invalid category id", http.StatusBadRequest)
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = validation.SanitizeText(req.Name)
	if err := validation.ValidateName(req.Name, "category name"); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateTransactionType(req.Type); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec(`
		UPDATE categories SET name = ?, type = ? WHERE id = ? AND user_id = ?`,
		req.Name, req.Type, id, userID)
	if err != nil {
		logger.L.Error("Failed to update category", "userID", userID, "categoryID", id, "error", err)
		sendJSONError(w, "Failed to update category", http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		sendJSONError(w, "Category not found", http.StatusNotFound)
		return
	}

	h.summaryService.InvalidateUserCache(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *CategoryHandler) HandleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, "Invalid category id", http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec("DELETE FROM categories WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		logger.L.Error("Failed to delete category", "userID", userID, "categoryID", id, "error", err)
		sendJSONError(w, "Failed to delete category", http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		sendJSONError(w, "Category not found", http.StatusNotFound)
		return
	}

	h.summaryService.InvalidateUserCache(userID)
	w.WriteHeader(http.StatusNoContent)
}
