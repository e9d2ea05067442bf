package handler

import (
	"net/http"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/service"
	"go.uber.org/zap"
)

// DiscountRuleHandler exposes the per-role discount ceilings
type DiscountRuleHandler struct {
	ruleService *service.DiscountRuleService
	logger      *zap.Logger
}

func NewDiscountRuleHandler(ruleService *service.DiscountRuleService, logger *zap.Logger) *DiscountRuleHandler {
	return &DiscountRuleHandler{
		ruleService: ruleService,
		logger:      logger,
	}
}

// List godoc
// @Summary List discount rules
// @Tags Discount Rules
// @Produce json
// @Success 200 {array} domain.DiscountRuleDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /discount-rules [get]
func (h *DiscountRuleHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.ruleService.List(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "list discount rules")
		return
	}
	respondJSON(w, http.StatusOK, rules)
}

// Check godoc
// @Summary Check a discount against the caller's rule
// @Description Without a rule for the caller's role only 0% is allowed.
// @Tags Discount Rules
// @Accept json
// @Produce json
// @Param request body domain.CheckDiscountRequest true "Discount"
// @Success 200 {object} domain.DiscountDecisionDTO
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Router /discount-rules/check [post]
func (h *DiscountRuleHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckDiscountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	decision, err := h.ruleService.CheckForCaller(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "check discount")
		return
	}
	respondJSON(w, http.StatusOK, decision)
}

// Update godoc
// @Summary Update discount rule
// @Tags Discount Rules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID" format(uuid)
// @Param request body domain.UpdateDiscountRuleRequest true "Changes"
// @Success 200 {object} domain.DiscountRuleDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /discount-rules/{id} [patch]
func (h *DiscountRuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "discount rule")
	if !ok {
		return
	}

	var req domain.UpdateDiscountRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rule, err := h.ruleService.UpdateRule(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update discount rule")
		return
	}
	respondJSON(w, http.StatusOK, rule)
}
