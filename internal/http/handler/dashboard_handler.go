package handler

import (
	"net/http"

	"github.com/brasmat/proposal-api/internal/service"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	dashboardService *service.DashboardService
	logger           *zap.Logger
}

func NewDashboardHandler(dashboardService *service.DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		logger:           logger,
	}
}

// @Summary Proposal dashboard
// @Description Figures over the proposals visible to the caller.
// @Description
// @Description - `countsByStatus`: proposals per persisted status
// @Description - `acceptedValue`: sum of totalValue of accepted proposals
// @Description - `pendingApprovals`: approval requests awaiting a decision
// @Description - `acceptanceRatePercent`: accepted / (accepted + rejected), 0-100
// @Description - `expiringSoon`: open proposals whose validity ends within `days` (default 7), soonest first
// @Tags Dashboard
// @Produce json
// @Param days query int false "Expiring window in days (1-90)" default(7)
// @Success 200 {object} domain.ProposalDashboardDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /dashboard/proposals [get]
func (h *DashboardHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	days := parseIntQuery(r, "days", 0)
	if days < 0 || days > 90 {
		respondWithError(w, http.StatusBadRequest, "Invalid days: must be between 1 and 90")
		return
	}

	metrics, err := h.dashboardService.GetMetrics(r.Context(), days)
	if err != nil {
		respondServiceError(w, h.logger, err, "get dashboard metrics")
		return
	}
	respondJSON(w, http.StatusOK, metrics)
}

// @Summary Global search
// @Tags Search
// @Produce json
// @Param q query string true "Search query"
// @Success 200 {object} domain.SearchResultsDTO
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /search [get]
func (h *DashboardHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondWithError(w, http.StatusBadRequest, "Missing search query")
		return
	}

	result, err := h.dashboardService.Search(r.Context(), query)
	if err != nil {
		respondServiceError(w, h.logger, err, "search")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
