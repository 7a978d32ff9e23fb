// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wevote/wevote-server/auth"
	"github.com/wevote/wevote-server/db"
	"github.com/wevote/wevote-server/middleware"
	"github.com/wevote/wevote-server/models"
	"github.com/wevote/wevote-server/outbound"
)

type EmailHandler struct {
	base
}

func NewEmailHandler(d Deps) *EmailHandler {
	return &EmailHandler{base{d}}
}

// Save handles /apis/v1/voterEmailAddressSave/
func (h *EmailHandler) Save(w http.ResponseWriter, r *http.Request) {
	voterDeviceID, voter, status, ok := h.requireVoter(r, statusVoterNotFoundFromVoterDevice)
	resp := models.VoterEmailAddressSaveResponse{
		VoterDeviceID:    voterDeviceID,
		EmailAddressList: []models.EmailAddress{},
	}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}

	text := auth.NormalizeEmail(paramString(r, "text_for_email_address"))
	weVoteID := paramString(r, "email_we_vote_id")
	resp.TextForEmailAddress = text

	if weVoteID == "" {
		if text == "" {
			resp.Status = "VOTER_EMAIL_ADDRESS_SAVE_MISSING_EMAIL"
			middleware.APIResponse(w, resp)
			return
		}
		if err := auth.ValidateEmail(text); err != nil {
			resp.Status = "EMAIL_ADDRESS_NOT_VALID"
			resp.EmailAddressNotValid = true
			middleware.APIResponse(w, resp)
			return
		}
	}

	res := h.saveIdentity(r.Context(), emailKind, voter, voterDeviceID, identitySaveRequest{
		Value:            text,
		WeVoteID:         weVoteID,
		Delete:           paramBool(r, "delete_email"),
		MakePrimary:      paramBool(r, "make_primary_email"),
		SendCode:         paramBool(r, "send_sign_in_code_email"),
		SendVerification: paramBool(r, "send_link_to_sign_in") || paramBool(r, "resend_verification_email"),
		sendCode: func(ctx context.Context, to, code string) error {
			return h.Email.SendEmail(ctx, outbound.SignInCodeEmail(to, code))
		},
		sendVerification: func(ctx context.Context, to, secretKey string) error {
			return h.Email.SendEmail(ctx, outbound.VerificationEmail(to, h.Config.WebAppRootURL, secretKey))
		},
	})

	resp.Base = models.Base{Success: res.Success, Status: res.Status}
	resp.EmailAddressWeVoteID = res.Entry.WeVoteID
	resp.EmailAddressSavedWeVoteID = res.Entry.WeVoteID
	if resp.TextForEmailAddress == "" {
		resp.TextForEmailAddress = res.Entry.Value
	}
	resp.EmailAddressCreated = res.Created
	resp.EmailAddressDeleted = res.Deleted
	resp.EmailAddressAlreadyOwnedByOtherVoter = res.OwnedByOther
	resp.EmailAddressAlreadyOwnedByThisVoter = res.OwnedByThis
	resp.MakePrimaryEmail = res.MadePrimary
	resp.VerificationEmailSent = res.VerificationSent
	resp.SignInCodeEmailSent = res.CodeSent
	resp.SecretCodeSystemLockedForThisVoterDeviceID = res.Locked
	resp.EmailAddressList = emailList(res.Voter, res.Entries)
	middleware.APIResponse(w, resp)
}

// Retrieve handles /apis/v1/voterEmailAddressRetrieve/
func (h *EmailHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	voterDeviceID, voter, status, ok := h.requireVoter(r, statusVoterNotFoundFromVoterDevice)
	resp := models.VoterEmailAddressRetrieveResponse{
		VoterDeviceID:    voterDeviceID,
		EmailAddressList: []models.EmailAddress{},
	}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}

	entries, err := emailKind.list(r.Context(), h.DB, voter.WeVoteID)
	if err != nil {
		slog.Error("failed to retrieve email addresses", "error", err)
		resp.Status = "EMAIL_ADDRESS_LIST_DB_ERROR"
		middleware.APIResponse(w, resp)
		return
	}

	resp.Base = models.Base{Success: true, Status: "EMAIL_ADDRESS_LIST_RETRIEVED"}
	if len(entries) == 0 {
		resp.Status = "NO_EMAIL_ADDRESS_LIST_RETRIEVED"
	}
	resp.EmailAddressList = emailList(voter, entries)
	middleware.APIResponse(w, resp)
}

// Verify handles /apis/v1/voterEmailAddressVerify/
// The secret key comes from the link in the verification email.
func (h *EmailHandler) Verify(w http.ResponseWriter, r *http.Request) {
	voterDeviceID, voter, status, ok := h.requireVoter(r, statusVoterNotFoundFromVoterDevice)
	resp := models.VoterEmailAddressVerifyResponse{VoterDeviceID: voterDeviceID}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}

	secretKey := paramString(r, "email_secret_key")
	if secretKey == "" {
		resp.Status = "VOTER_EMAIL_ADDRESS_VERIFY_MISSING_SECRET_KEY"
		middleware.APIResponse(w, resp)
		return
	}

	err := db.WithTx(r.Context(), h.DB, func(tx *sql.Tx) error {
		res, err := verifyBySecretKey(r.Context(), tx, emailKind, secretKey)
		if err != nil {
			return err
		}
		resp.Base = models.Base{Success: res.success, Status: res.status}
		resp.EmailAddressFound = res.found
		resp.EmailOwnershipIsVerified = res.entry.Verified
		resp.EmailSecretKeyBelongsToThisVoter = res.found && res.entry.VoterWeVoteID == voter.WeVoteID
		return nil
	})
	if err != nil {
		slog.Error("failed to verify email address", "error", err)
		resp.Base = models.Base{Success: false, Status: "VOTER_EMAIL_ADDRESS_VERIFY_DB_ERROR"}
	}
	middleware.APIResponse(w, resp)
}

// SignIn handles /apis/v1/voterEmailAddressSignIn/
// A device that opens a sign-in link becomes the owner of that email,
// merging its current voter into the owner when the client confirms.
func (h *EmailHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	voterDeviceID, voter, status, ok := h.requireVoter(r, statusVoterNotFoundFromVoterDevice)
	resp := models.VoterEmailAddressSignInResponse{VoterDeviceID: voterDeviceID}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}

	secretKey := paramString(r, "email_secret_key")
	if secretKey == "" {
		resp.Status = "VOTER_EMAIL_ADDRESS_SIGN_IN_MISSING_SECRET_KEY"
		middleware.APIResponse(w, resp)
		return
	}
	resp.YesPleaseMergeAccounts = paramBool(r, "yes_please_merge_accounts")
	resp.EmailSignInAttempted = true

	ctx := r.Context()
	var moved []string
	err := db.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		res, err := verifyBySecretKey(ctx, tx, emailKind, secretKey)
		if err != nil {
			return err
		}
		resp.EmailAddressFound = res.found
		if !res.found {
			resp.Base = models.Base{Success: false, Status: res.status}
			return nil
		}

		statuses := []string{res.status}
		resp.EmailOwnershipIsVerified = true
		resp.VoterWeVoteIDFromSecretKey = res.ownerWeVoteID
		resp.EmailSecretKeyBelongsToThisVoter = res.ownerWeVoteID == voter.WeVoteID

		if resp.YesPleaseMergeAccounts && !resp.EmailSecretKeyBelongsToThisVoter {
			owner, err := getVoterByWeVoteID(ctx, tx, res.ownerWeVoteID)
			if err != nil {
				return err
			}
			resp.VoterMergeTwoAccountsAttempted = true
			moved, err = mergeVoters(ctx, tx, voter.ID, owner.ID)
			if err != nil {
				return err
			}
			statuses = append(statuses, "VOTERS_MERGED")
		}
		resp.Base = models.Base{Success: true, Status: strings.Join(statuses, " ")}
		return nil
	})
	if err != nil {
		slog.Error("email sign-in failed", "error", err)
		resp.Base = models.Base{Success: false, Status: "VOTER_EMAIL_ADDRESS_SIGN_IN_DB_ERROR"}
		moved = nil
	}
	h.evict(ctx, moved...)
	middleware.APIResponse(w, resp)
}

type keyVerification struct {
	found   bool
	success bool
	status  string
	entry   identity
	// ownerWeVoteID is the voter that holds the verified address afterwards
	ownerWeVoteID string
}

// verifyBySecretKey marks the entry holding secretKey as verified unless
// another voter already verified the same value
func verifyBySecretKey(ctx context.Context, q db.Queryer, k identityKind, secretKey string) (keyVerification, error) {
	var res keyVerification
	prefix := k.statusPrefix()

	entry, err := k.bySecretKey(ctx, q, secretKey)
	if errors.Is(err, sql.ErrNoRows) {
		res.status = prefix + "_NOT_FOUND_FROM_SECRET_KEY"
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.found = true
	res.entry = entry
	res.ownerWeVoteID = entry.VoterWeVoteID

	owner, err := k.verifiedOwner(ctx, q, entry.Value)
	if err == nil && owner.VoterWeVoteID != entry.VoterWeVoteID {
		res.status = strings.ToUpper(k.name) + "_ALREADY_VERIFIED_BY_ANOTHER_VOTER"
		res.ownerWeVoteID = owner.VoterWeVoteID
		return res, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return res, err
	}

	res.success = true
	if entry.Verified {
		res.status = prefix + "_ALREADY_VERIFIED"
		return res, nil
	}

	entry.Verified = true
	if err := k.save(ctx, q, entry); err != nil {
		return res, err
	}
	res.entry = entry

	v, err := getVoterByWeVoteID(ctx, q, entry.VoterWeVoteID)
	if err != nil {
		return res, err
	}
	if *k.primaryID(&v) == "" || !voterIdentityVerified(k, v) {
		k.makePrimary(&v, entry)
		if err := saveVoter(ctx, q, v); err != nil {
			return res, err
		}
	}
	res.status = prefix + "_VERIFIED"
	return res, nil
}

func voterIdentityVerified(k identityKind, v models.Voter) bool {
	if k.name == "sms" {
		return v.SMSOwnershipIsVerified
	}
	return v.EmailOwnershipIsVerified
}
