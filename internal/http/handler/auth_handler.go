package handler

import (
	"net/http"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/service"
	"go.uber.org/zap"
)

// AuthHandler handles sign in, sign out and the inactivity countdown
type AuthHandler struct {
	authService *service.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Login godoc
// @Summary Sign in
// @Description Exchanges email and password with the identity provider. The call is bounded by the login timeout (504 when exceeded).
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body domain.LoginRequest true "Credentials"
// @Success 200 {object} domain.LoginResponse
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Failure 502 {object} domain.APIError
// @Failure 504 {object} domain.APIError
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.authService.Login(r.Context(), r, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "sign in")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Logout godoc
// @Summary Sign out
// @Tags Auth
// @Success 204 "No Content"
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), r); err != nil {
		respondServiceError(w, h.logger, err, "sign out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me godoc
// @Summary Get current authenticated user
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.AuthUserDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	me, err := h.authService.Me(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "get current user")
		return
	}
	respondJSON(w, http.StatusOK, me)
}

// SessionStatus godoc
// @Summary Inactivity countdown
// @Description Remaining time before the session ends from inactivity. Polling does not count as activity.
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.SessionStatusDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Router /auth/session [get]
func (h *AuthHandler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	dto, err := h.authService.SessionStatus(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "get session status")
		return
	}
	respondJSON(w, http.StatusOK, dto)
}

// Activity godoc
// @Summary Report user activity
// @Description Resets the countdown. Accepted kinds: pointerdown, keydown, scroll, touchstart.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body domain.SessionActivityRequest true "Activity"
// @Success 200 {object} domain.SessionStatusDTO
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Router /auth/session/activity [post]
func (h *AuthHandler) Activity(w http.ResponseWriter, r *http.Request) {
	var req domain.SessionActivityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dto, err := h.authService.Activity(r.Context(), req.Kind)
	if err != nil {
		respondServiceError(w, h.logger, err, "record activity")
		return
	}
	respondJSON(w, http.StatusOK, dto)
}

// Extend godoc
// @Summary Keep the session alive
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.SessionStatusDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Router /auth/session/extend [post]
func (h *AuthHandler) Extend(w http.ResponseWriter, r *http.Request) {
	dto, err := h.authService.Extend(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "extend session")
		return
	}
	respondJSON(w, http.StatusOK, dto)
}

// CheckPassword godoc
// @Summary Check a password against the policy
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body domain.UpdatePasswordCheckRequest true "Candidate password"
// @Success 200 {object} domain.PasswordCheckDTO
// @Failure 400 {object} domain.APIError
// @Router /auth/password/check [post]
func (h *AuthHandler) CheckPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdatePasswordCheckRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dto, err := h.authService.CheckPassword(&req)
	if err != nil {
		respondServiceError(w, h.logger, err, "check password")
		return
	}
	respondJSON(w, http.StatusOK, dto)
}
