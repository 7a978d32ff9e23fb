// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wevote/wevote-server/auth"
	"github.com/wevote/wevote-server/db"
	"github.com/wevote/wevote-server/middleware"
	"github.com/wevote/wevote-server/models"
)

type VoterHandler struct {
	base
}

func NewVoterHandler(d Deps) *VoterHandler {
	return &VoterHandler{base{d}}
}

// Create handles /apis/v1/voterCreate/
// Idempotent: a device that already has a voter gets it back.
func (h *VoterHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	voterDeviceID := middleware.VoterDeviceID(r)
	resp := models.VoterCreateResponse{VoterDeviceID: voterDeviceID}

	if !auth.IsVoterDeviceIDValid(voterDeviceID) {
		resp.Status = statusDeviceIDMissing
		middleware.APIResponse(w, resp)
		return
	}

	existing := func() bool {
		link, err := getDeviceLink(ctx, h.DB, voterDeviceID)
		if err != nil {
			return false
		}
		voter, err := getVoterByID(ctx, h.DB, link.VoterID)
		if err != nil {
			return false
		}
		resp.Base = models.Base{Success: true, Status: "VOTER_ALREADY_EXISTS"}
		resp.VoterID = voter.ID
		resp.VoterWeVoteID = voter.WeVoteID
		return true
	}
	if existing() {
		middleware.APIResponse(w, resp)
		return
	}

	var voter models.Voter
	err := db.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		var err error
		voter, err = createVoter(ctx, tx, h.Config.SiteUniqueIDPrefix)
		if err != nil {
			return err
		}
		return createDeviceLink(ctx, tx, voterDeviceID, voter.ID)
	})
	if err != nil {
		// Another request for the same device may have won the race
		if existing() {
			middleware.APIResponse(w, resp)
			return
		}
		slog.Error("failed to create voter", "error", err)
		resp.Status = "VOTER_NOT_CREATED"
		middleware.APIResponse(w, resp)
		return
	}

	slog.Info("voter created", "voter_we_vote_id", voter.WeVoteID)

	resp.Base = models.Base{Success: true, Status: "VOTER_CREATED"}
	resp.VoterID = voter.ID
	resp.VoterWeVoteID = voter.WeVoteID
	middleware.APIResponse(w, resp)
}

// Retrieve handles /apis/v1/voterRetrieve/
func (h *VoterHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	voterDeviceID := middleware.VoterDeviceID(r)
	resp := models.VoterRetrieveResponse{VoterDeviceID: voterDeviceID}

	if !auth.IsVoterDeviceIDValid(voterDeviceID) {
		resp.Status = statusDeviceIDMissing
		middleware.APIResponse(w, resp)
		return
	}

	voter, err := h.voterForDevice(ctx, voterDeviceID)
	if errors.Is(err, sql.ErrNoRows) {
		resp.Status = statusVoterNotFoundFromDevice
		middleware.APIResponse(w, resp)
		return
	}
	if err != nil {
		slog.Error("failed to retrieve voter", "error", err)
		resp.Status = "VOTER_ID_COULD_NOT_BE_RETRIEVED"
		middleware.APIResponse(w, resp)
		return
	}

	address, err := getVoterAddress(ctx, h.DB, voter.ID, models.AddressTypeBallot)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		slog.Warn("failed to load ballot address", "error", err, "voter_id", voter.ID)
	}

	resp.Base = models.Base{Success: true, Status: "VOTER_FOUND"}
	resp.VoterFound = true
	resp.WeVoteID = voter.WeVoteID
	resp.FirstName = voter.FirstName
	resp.MiddleName = voter.MiddleName
	resp.LastName = voter.LastName
	resp.FullName = voter.FullName()
	resp.Email = voter.Email
	resp.HasValidEmail = voter.Email != ""
	resp.HasEmailWithVerifiedOwner = voter.EmailOwnershipIsVerified
	resp.HasVerifiedSMS = voter.SMSOwnershipIsVerified
	resp.IsSignedIn = voter.IsSignedIn()
	resp.SignedInWithEmail = voter.EmailOwnershipIsVerified
	resp.SignedInWithSMSPhoneNumber = voter.SMSOwnershipIsVerified
	resp.HasDataToPreserve = voter.DataToPreserve
	resp.InterfaceStatusFlags = voter.InterfaceStatusFlags
	resp.NotificationSettingsFlags = voter.NotificationSettingsFlags
	resp.TextForMapSearch = address.TextForMapSearch
	resp.VoterPhotoURLLarge = voter.ProfileImageURL
	resp.DateJoined = voter.DateJoined
	middleware.APIResponse(w, resp)
}

// Count handles /apis/v1/voterCount/
func (h *VoterHandler) Count(w http.ResponseWriter, r *http.Request) {
	var count int64
	err := h.DB.QueryRowContext(r.Context(), `SELECT COUNT(*) FROM voter WHERE is_active = $1`, true).Scan(&count)
	if err != nil {
		slog.Error("failed to count voters", "error", err)
		middleware.APIResponse(w, models.VoterCountResponse{
			Base: models.Base{Success: false, Status: "VOTER_COUNT_DB_ERROR"},
		})
		return
	}

	middleware.APIResponse(w, models.VoterCountResponse{
		Base:       models.Base{Success: true, Status: "VOTER_COUNT_RETRIEVED"},
		VoterCount: count,
	})
}

// SignOut handles /apis/v1/voterSignOut/
// Deletes this device's link, or every link of the voter when
// sign_out_all_devices is set.
func (h *VoterHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	voterDeviceID := middleware.VoterDeviceID(r)
	resp := models.VoterSignOutResponse{VoterDeviceID: voterDeviceID}

	if voterDeviceID == "" {
		resp.Status = "VOTER_SIGN_OUT_VOTER_DEVICE_ID_DOES_NOT_EXIST"
		middleware.APIResponse(w, resp)
		return
	}

	all := paramBool(r, "sign_out_all_devices")
	okStatus, missingStatus := "DELETE_VOTER_DEVICE_LINK_SUCCESSFUL", "DELETE_VOTER_DEVICE_LINK-MISSING_VARIABLES"
	if all {
		okStatus, missingStatus = "DELETE_ALL_VOTER_DEVICE_LINKS_SUCCESSFUL", "DELETE_ALL_VOTER_DEVICE_LINKS-MISSING_VARIABLES"
	}

	link, err := getDeviceLink(ctx, h.DB, voterDeviceID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Error("failed to load device link", "error", err)
		}
		resp.Status = missingStatus
		middleware.APIResponse(w, resp)
		return
	}

	evicted := []string{voterDeviceID}
	if all {
		evicted, err = deviceIDsForVoter(ctx, h.DB, link.VoterID)
		if err == nil {
			_, err = h.DB.ExecContext(ctx, `DELETE FROM voter_device_link WHERE voter_id = $1`, link.VoterID)
		}
	} else {
		_, err = h.DB.ExecContext(ctx, `DELETE FROM voter_device_link WHERE voter_device_id = $1`, voterDeviceID)
	}
	if err != nil {
		slog.Error("failed to delete device links", "error", err, "all", all)
		resp.Status = missingStatus
		middleware.APIResponse(w, resp)
		return
	}
	h.evict(ctx, evicted...)

	slog.Info("voter signed out", "voter_id", link.VoterID, "devices", len(evicted))

	resp.Base = models.Base{Success: true, Status: okStatus}
	middleware.APIResponse(w, resp)
}

// Update handles /apis/v1/voterUpdate/
// Only fields the client marks as changed are written.
func (h *VoterHandler) Update(w http.ResponseWriter, r *http.Request) {
	voterDeviceID, voter, status, ok := h.requireVoter(r, "MISSING_VOTER_ID")
	resp := models.VoterUpdateResponse{VoterDeviceID: voterDeviceID}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}

	before := voter
	applyNameChanges(r, &voter)

	if v, ok := paramFlag(r, "interface_status_flags"); ok {
		voter.InterfaceStatusFlags = v
	}
	if v, ok := paramFlag(r, "flag_integer_to_set"); ok {
		voter.InterfaceStatusFlags |= v
	}
	if v, ok := paramFlag(r, "flag_integer_to_unset"); ok {
		voter.InterfaceStatusFlags &^= v
	}
	if v, ok := paramFlag(r, "notification_settings_flags"); ok {
		voter.NotificationSettingsFlags = v
	}
	if v, ok := paramFlag(r, "notification_flag_integer_to_set"); ok {
		voter.NotificationSettingsFlags |= v
	}
	if v, ok := paramFlag(r, "notification_flag_integer_to_unset"); ok {
		voter.NotificationSettingsFlags &^= v
	}

	resp.Base = models.Base{Success: true, Status: "NO_VOTER_FIELDS_CHANGED"}
	if voter != before {
		if err := saveVoter(r.Context(), h.DB, voter); err != nil {
			slog.Error("failed to update voter", "error", err)
			resp.Base = models.Base{Success: false, Status: "VOTER_UPDATE_DB_ERROR"}
			middleware.APIResponse(w, resp)
			return
		}
		resp.Status = "UPDATED_VOTER"
		resp.VoterUpdated = true
	}

	resp.FirstName = voter.FirstName
	resp.MiddleName = voter.MiddleName
	resp.LastName = voter.LastName
	resp.InterfaceStatusFlags = voter.InterfaceStatusFlags
	resp.NotificationSettingsFlags = voter.NotificationSettingsFlags
	middleware.APIResponse(w, resp)
}

// applyNameChanges copies posted name fields onto v. full_name is split
// into first name and the rest.
func applyNameChanges(r *http.Request, v *models.Voter) {
	if paramBool(r, "name_save_only_if_no_existing_names") &&
		(v.FirstName != "" || v.LastName != "") {
		return
	}

	if s, ok := paramChanged(r, "first_name"); ok {
		v.FirstName = s
	}
	if s, ok := paramChanged(r, "middle_name"); ok {
		v.MiddleName = s
	}
	if s, ok := paramChanged(r, "last_name"); ok {
		v.LastName = s
	}
	if s, ok := paramChanged(r, "full_name"); ok && s != "" {
		first, last, _ := strings.Cut(strings.Join(strings.Fields(s), " "), " ")
		v.FirstName, v.LastName = first, last
	}
}
