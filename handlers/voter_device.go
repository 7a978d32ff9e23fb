// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/wevote/wevote-server/auth"
	"github.com/wevote/wevote-server/middleware"
	"github.com/wevote/wevote-server/models"
)

type DeviceHandler struct {
	base
}

func NewDeviceHandler(d Deps) *DeviceHandler {
	return &DeviceHandler{base{d}}
}

// DeviceIDGenerate handles /apis/v1/deviceIdGenerate/
// Mints a voter_device_id. Nothing is stored until voterCreate links it.
func (h *DeviceHandler) DeviceIDGenerate(w http.ResponseWriter, r *http.Request) {
	voterDeviceID, err := auth.GenerateVoterDeviceID()
	if err != nil {
		slog.Error("failed to generate voter_device_id", "error", err)
		middleware.APIResponse(w, models.DeviceIDGenerateResponse{
			Base: models.Base{Success: false, Status: "DEVICE_ID_GENERATE_FAILED"},
		})
		return
	}

	middleware.APIResponse(w, models.DeviceIDGenerateResponse{
		Base:          models.Base{Success: true, Status: "DEVICE_ID_GENERATE_VALUE_DOES_NOT_EXIST"},
		VoterDeviceID: voterDeviceID,
	})
}
