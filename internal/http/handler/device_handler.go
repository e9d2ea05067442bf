package handler

import (
	"net/http"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/service"
	"go.uber.org/zap"
)

// DeviceHandler computes and compares device fingerprints. Fingerprints are informational
// and never used to authenticate.
type DeviceHandler struct {
	deviceService *service.DeviceService
	logger        *zap.Logger
}

func NewDeviceHandler(deviceService *service.DeviceService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
		logger:        logger,
	}
}

// Fingerprint godoc
// @Summary Compute the device fingerprint
// @Description Saved for the caller only when save is true.
// @Tags Devices
// @Accept json
// @Produce json
// @Param request body domain.DeviceSignalsRequest true "Browser signals"
// @Success 200 {object} domain.FingerprintDTO
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Router /devices/fingerprint [post]
func (h *DeviceHandler) Fingerprint(w http.ResponseWriter, r *http.Request) {
	var req domain.DeviceSignalsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dto, err := h.deviceService.Fingerprint(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "compute fingerprint")
		return
	}
	respondJSON(w, http.StatusOK, dto)
}

// Check godoc
// @Summary Compare with the saved fingerprint
// @Tags Devices
// @Accept json
// @Produce json
// @Param request body domain.DeviceSignalsRequest true "Browser signals"
// @Success 200 {object} domain.DeviceCheckDTO
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Router /devices/check [post]
func (h *DeviceHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req domain.DeviceSignalsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dto, err := h.deviceService.Check(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "check device")
		return
	}
	respondJSON(w, http.StatusOK, dto)
}

// Forget godoc
// @Summary Forget the saved fingerprint
// @Tags Devices
// @Success 204 "No Content"
// @Security BearerAuth
// @Router /devices [delete]
func (h *DeviceHandler) Forget(w http.ResponseWriter, r *http.Request) {
	if err := h.deviceService.Forget(r.Context()); err != nil {
		respondServiceError(w, h.logger, err, "forget device")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
