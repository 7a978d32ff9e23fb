// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/wevote/wevote-server/middleware"
	"github.com/wevote/wevote-server/models"
)

type AddressHandler struct {
	base
}

func NewAddressHandler(d Deps) *AddressHandler {
	return &AddressHandler{base{d}}
}

var (
	zipPattern   = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\s*$`)
	statePattern = regexp.MustCompile(`\b([A-Za-z]{2})\s*$`)
)

// parseAddress pulls line1, city, state and zip out of free text such as
// "123 Main St, Oakland, CA 94612". Anything it can't place is left empty.
func parseAddress(text string) models.VoterAddress {
	a := models.VoterAddress{TextForMapSearch: text}

	rest := strings.TrimSpace(text)
	if m := zipPattern.FindStringSubmatchIndex(rest); m != nil {
		a.NormalizedZip = rest[m[2]:m[3]]
		rest = strings.TrimSpace(rest[:m[0]])
	}

	parts := strings.Split(rest, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if last := parts[len(parts)-1]; len(parts) > 1 || a.NormalizedZip != "" {
		if m := statePattern.FindStringSubmatchIndex(last); m != nil {
			a.NormalizedState = strings.ToUpper(last[m[2]:m[3]])
			parts[len(parts)-1] = strings.TrimSpace(last[:m[0]])
			if parts[len(parts)-1] == "" {
				parts = parts[:len(parts)-1]
			}
		}
	}

	switch len(parts) {
	case 0:
	case 1:
		if a.NormalizedState != "" {
			a.NormalizedCity = parts[0]
		} else {
			a.NormalizedLine1 = parts[0]
		}
	default:
		a.NormalizedLine1 = strings.Join(parts[:len(parts)-1], ", ")
		a.NormalizedCity = parts[len(parts)-1]
	}
	return a
}

// Save handles /apis/v1/voterAddressSave/
func (h *AddressHandler) Save(w http.ResponseWriter, r *http.Request) {
	voterDeviceID, voter, status, ok := h.requireVoter(r, statusVoterNotFoundFromDevice)
	resp := models.VoterAddressResponse{VoterDeviceID: voterDeviceID}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}

	name := "text_for_map_search"
	if !paramPresent(r, name) {
		name = "address"
	}
	if !paramPresent(r, name) {
		resp.Status = "MISSING_POST_VARIABLE-ADDRESS"
		middleware.APIResponse(w, resp)
		return
	}
	text := paramString(r, name)

	address := parseAddress(text)
	address.AddressType = models.AddressTypeBallot
	address.VoterEnteredAddress = text != ""
	address.GoogleCivicElectionID = paramInt64(r, "google_civic_election_id")

	ctx := r.Context()
	if err := saveVoterAddress(ctx, h.DB, voter.ID, address); err != nil {
		slog.Error("failed to save voter address", "error", err, "voter_id", voter.ID)
		resp.Status = "VOTER_ADDRESS_NOT_SAVED"
		middleware.APIResponse(w, resp)
		return
	}

	if address.NormalizedState != "" {
		_, err := h.DB.ExecContext(ctx, `
			UPDATE voter_device_link SET state_code = $1 WHERE voter_device_id = $2
		`, address.NormalizedState, voterDeviceID)
		if err != nil {
			slog.Warn("failed to update device state code", "error", err)
		}
	}

	resp.Base = models.Base{Success: true, Status: "VOTER_ADDRESS_SAVED"}
	if text == "" {
		resp.Status = "VOTER_ADDRESS_EMPTY_SAVED"
	}
	resp.AddressFound = text != ""
	resp.Address = text
	resp.VoterAddress = address
	middleware.APIResponse(w, resp)
}

// Retrieve handles /apis/v1/voterAddressRetrieve/
func (h *AddressHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	voterDeviceID, voter, status, ok := h.requireVoter(r, statusVoterNotFoundFromVoterDevice)
	resp := models.VoterAddressResponse{VoterDeviceID: voterDeviceID}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}

	address, err := getVoterAddress(r.Context(), h.DB, voter.ID, models.AddressTypeBallot)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Error("failed to retrieve voter address", "error", err)
		}
		resp.Status = "VOTER_ADDRESS_NOT_RETRIEVED"
		middleware.APIResponse(w, resp)
		return
	}

	resp.Base = models.Base{Success: true, Status: "VOTER_ADDRESS_FOUND"}
	resp.AddressFound = address.TextForMapSearch != ""
	resp.Address = address.TextForMapSearch
	resp.VoterAddress = address
	middleware.APIResponse(w, resp)
}
