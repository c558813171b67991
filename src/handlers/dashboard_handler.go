package handlers

import (
	"net/http"
	"time"

	"github.com/douglassdm/pulsefinance/backend/src/logger"
	"github.com/douglassdm/pulsefinance/backend/src/services"
)

type DashboardHandler struct {
	summaryService services.SummaryService
}

func NewDashboardHandler(summaryService services.SummaryService) *DashboardHandler {
	return &DashboardHandler{summaryService: summaryService}
}

func (h *DashboardHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	summary, err := h.summaryService.GetSummary(userID, time.Now())
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to build dashboard summary", "error", err)
		sendJSONError(w, "Failed to load summary", http.StatusInternalServerError)
		return
	}

	sendJSON(w, summary, http.StatusOK)
}
