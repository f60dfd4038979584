package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/notifyhub/pushsched/internal/discovery"
	"github.com/notifyhub/pushsched/internal/domain"
)

// DeviceHandler handles the device-registration hook that triggers timezone
// discovery.
type DeviceHandler struct {
	discovery *discovery.Discovery
	logger    *zap.Logger
}

func NewDeviceHandler(d *discovery.Discovery, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{discovery: d, logger: logger}
}

// RegisterToken handles POST /api/v1/fcm-token
//
// @Summary  Register a device push token and trigger timezone discovery
// @Tags     devices
// @Accept   json
// @Produce  json
// @Param    X-User-ID   header    string                          true  "Authenticated user ID"
// @Param    timezone    header    string                          true  "IANA timezone name"
// @Param    body        body      domain.RegisterDeviceRequest   true  "Device token payload"
// @Success  200         {object}  envelope
// @Failure  422         {object}  envelope
// @Router   /api/v1/fcm-token [post]
func (h *DeviceHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		respondErrorMsg(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}
	timezone := r.Header.Get("timezone")

	var req domain.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorMsg(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondErrorMsg(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	token := domain.DeviceToken{Token: req.Token, Platform: req.Platform}
	if err := h.discovery.OnDeviceRegistered(r.Context(), userID, timezone, token); err != nil {
		h.logger.Warn("device registration failed", zap.String("user_id", userID), zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, Message: "device registered"})
}
