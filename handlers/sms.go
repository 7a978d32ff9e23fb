// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/wevote/wevote-server/auth"
	"github.com/wevote/wevote-server/middleware"
	"github.com/wevote/wevote-server/models"
	"github.com/wevote/wevote-server/outbound"
)

type SMSHandler struct {
	base
}

func NewSMSHandler(d Deps) *SMSHandler {
	return &SMSHandler{base{d}}
}

// Save handles /apis/v1/voterSMSPhoneNumberSave/
// Phone numbers can only be proven by sign-in code, so there is no
// verification link.
func (h *SMSHandler) Save(w http.ResponseWriter, r *http.Request) {
	voterDeviceID, voter, status, ok := h.requireVoter(r, statusVoterNotFoundFromVoterDevice)
	resp := models.VoterSMSPhoneNumberSaveResponse{
		VoterDeviceID:      voterDeviceID,
		SMSPhoneNumberList: []models.SMSPhoneNumber{},
	}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}

	raw := paramString(r, "sms_phone_number")
	weVoteID := paramString(r, "sms_phone_number_we_vote_id")
	resp.SMSPhoneNumber = raw

	var number string
	if weVoteID == "" {
		if raw == "" {
			resp.Status = "VOTER_SMS_PHONE_NUMBER_SAVE_MISSING_SMS_PHONE_NUMBER"
			middleware.APIResponse(w, resp)
			return
		}
		var err error
		number, err = auth.NormalizeSMSPhoneNumber(raw)
		if err != nil {
			resp.Status = "SMS_PHONE_NUMBER_NOT_VALID"
			resp.SMSPhoneNumberNotValid = true
			middleware.APIResponse(w, resp)
			return
		}
	}

	res := h.saveIdentity(r.Context(), smsKind, voter, voterDeviceID, identitySaveRequest{
		Value:       number,
		WeVoteID:    weVoteID,
		Delete:      paramBool(r, "delete_sms"),
		MakePrimary: paramBool(r, "make_primary_sms_phone_number"),
		SendCode:    paramBool(r, "send_sign_in_code_sms"),
		sendCode: func(ctx context.Context, to, code string) error {
			return h.SMS.SendSMS(ctx, outbound.SignInCodeSMS(to, code))
		},
	})

	resp.Base = models.Base{Success: res.Success, Status: res.Status}
	if res.Entry.Value != "" {
		resp.SMSPhoneNumber = res.Entry.Value
	}
	resp.SMSPhoneNumberWeVoteID = res.Entry.WeVoteID
	resp.SMSPhoneNumberCreated = res.Created
	resp.SMSPhoneNumberDeleted = res.Deleted
	resp.SMSPhoneNumberAlreadyOwnedByOtherVoter = res.OwnedByOther
	resp.SMSPhoneNumberAlreadyOwnedByThisVoter = res.OwnedByThis
	resp.MakePrimarySMSPhoneNumber = res.MadePrimary
	resp.SignInCodeSMSSent = res.CodeSent
	resp.SecretCodeSystemLockedForThisVoterDeviceID = res.Locked
	resp.SMSPhoneNumberList = smsList(res.Voter, res.Entries)
	middleware.APIResponse(w, resp)
}

// Retrieve handles /apis/v1/voterSMSPhoneNumberRetrieve/
func (h *SMSHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	voterDeviceID, voter, status, ok := h.requireVoter(r, statusVoterNotFoundFromVoterDevice)
	resp := models.VoterSMSPhoneNumberRetrieveResponse{
		VoterDeviceID:      voterDeviceID,
		SMSPhoneNumberList: []models.SMSPhoneNumber{},
	}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}

	entries, err := smsKind.list(r.Context(), h.DB, voter.WeVoteID)
	if err != nil {
		slog.Error("failed to retrieve sms phone numbers", "error", err)
		resp.Status = "SMS_PHONE_NUMBER_LIST_DB_ERROR"
		middleware.APIResponse(w, resp)
		return
	}

	resp.Base = models.Base{Success: true, Status: "SMS_PHONE_NUMBER_LIST_RETRIEVED"}
	if len(entries) == 0 {
		resp.Status = "NO_SMS_PHONE_NUMBER_LIST_RETRIEVED"
	}
	resp.SMSPhoneNumberList = smsList(voter, entries)
	middleware.APIResponse(w, resp)
}
