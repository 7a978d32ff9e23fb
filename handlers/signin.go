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

	"github.com/wevote/wevote-server/db"
	"github.com/wevote/wevote-server/middleware"
	"github.com/wevote/wevote-server/models"
)

type SignInHandler struct {
	base
}

func NewSignInHandler(d Deps) *SignInHandler {
	return &SignInHandler{base{d}}
}

// VerifySecretCode handles /apis/v1/voterVerifySecretCode/
// Failed attempts are committed even though the code is rejected, so the
// counters survive across requests. Counters only move in SQL.
func (h *SignInHandler) VerifySecretCode(w http.ResponseWriter, r *http.Request) {
	voterDeviceID, voter, status, ok := h.requireVoter(r, statusVoterNotFoundFromVoterDevice)
	resp := models.VoterVerifySecretCodeResponse{VoterDeviceID: voterDeviceID}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}

	code := paramString(r, "secret_code")
	k := emailKind
	if paramBool(r, "code_sent_to_sms_phone_number") {
		k = smsKind
	}

	ctx := r.Context()
	var moved []string
	err := db.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		if err := touchDeviceLink(ctx, tx, voterDeviceID); err != nil {
			return err
		}
		link, err := getDeviceLink(ctx, tx, voterDeviceID)
		if err != nil {
			return err
		}

		check := checkSecretCode(&link, code, now())
		if !check.Verified {
			link.SecretCodeFailedTriesForThisCode, link.SecretCodeFailedTriesAllTime, err = recordFailedSecretCodeTry(ctx, tx, voterDeviceID)
			if err != nil {
				return err
			}
			check.applyCounters(&link)
		}
		resp.IncorrectSecretCodeEntered = check.Incorrect
		resp.NumberOfTriesRemainingForThisCode = check.TriesRemaining
		resp.SecretCodeSystemLockedForThisVoterDeviceID = check.Locked
		resp.VoterMustRequestNewCode = check.MustRequestNew
		resp.SecretCodeVerified = check.Verified
		resp.Base = models.Base{Success: check.Verified, Status: check.Status}

		if !check.Verified {
			return nil
		}
		secretKey := check.SecretKeyForEmail
		if k.name == smsKind.name {
			secretKey = check.SecretKeyForSMS
		}
		statuses, ids, err := h.signInWithSecretKey(ctx, tx, k, voter, secretKey)
		if err != nil {
			return err
		}
		moved = ids
		resp.Status = strings.Join(append([]string{check.Status}, statuses...), " ")
		return clearSecretCode(ctx, tx, voterDeviceID)
	})
	if err != nil {
		slog.Error("secret code verification failed", "error", err)
		resp = models.VoterVerifySecretCodeResponse{VoterDeviceID: voterDeviceID}
		resp.Status = "VOTER_VERIFY_SECRET_CODE_DB_ERROR"
		moved = nil
	}
	h.evict(ctx, moved...)
	middleware.APIResponse(w, resp)
}

// signInWithSecretKey attaches the identity behind secretKey to voter. When
// another voter already verified the same value, voter is merged into that
// owner instead.
func (h *SignInHandler) signInWithSecretKey(ctx context.Context, q db.Queryer, k identityKind, voter models.Voter, secretKey string) ([]string, []string, error) {
	prefix := k.statusPrefix()
	if secretKey == "" {
		return []string{prefix + "_SECRET_KEY_MISSING"}, nil, nil
	}

	entry, err := k.bySecretKey(ctx, q, secretKey)
	if errors.Is(err, sql.ErrNoRows) {
		return []string{prefix + "_NOT_FOUND_FROM_SECRET_KEY"}, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	owner, err := k.verifiedOwner(ctx, q, entry.Value)
	if err == nil && owner.VoterWeVoteID != voter.WeVoteID {
		ownerVoter, err := getVoterByWeVoteID(ctx, q, owner.VoterWeVoteID)
		if err != nil {
			return nil, nil, err
		}
		moved, err := mergeVoters(ctx, q, voter.ID, ownerVoter.ID)
		if err != nil {
			return nil, nil, err
		}
		// The unverified duplicate on the old voter is gone after the merge
		owner.SecretKey = ""
		if err := k.save(ctx, q, owner); err != nil {
			return nil, nil, err
		}
		slog.Info("voter merged after sign-in", "from", voter.WeVoteID, "to", ownerVoter.WeVoteID)
		return []string{"VOTERS_MERGED"}, moved, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, err
	}

	entry.Verified = true
	entry.SecretKey = ""
	entry.VoterWeVoteID = voter.WeVoteID
	if err := k.save(ctx, q, entry); err != nil {
		return nil, nil, err
	}

	current, err := getVoterByID(ctx, q, voter.ID)
	if err != nil {
		return nil, nil, err
	}
	k.makePrimary(&current, entry)
	if err := saveVoter(ctx, q, current); err != nil {
		return nil, nil, err
	}
	return []string{prefix + "_VERIFIED"}, nil, nil
}

// MergeTwoAccounts handles /apis/v1/voterMergeTwoAccounts/
func (h *SignInHandler) MergeTwoAccounts(w http.ResponseWriter, r *http.Request) {
	voterDeviceID, voter, status, ok := h.requireVoter(r, statusVoterNotFoundFromVoterDevice)
	resp := models.VoterMergeTwoAccountsResponse{VoterDeviceID: voterDeviceID}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}
	resp.CurrentVoterWeVoteID = voter.WeVoteID

	k, secretKey := emailKind, paramString(r, "email_secret_key")
	if secretKey == "" {
		k, secretKey = smsKind, paramString(r, "sms_secret_key")
	}
	if secretKey == "" {
		resp.Status = "VOTER_MERGE_TWO_ACCOUNTS_SECRET_KEY_MISSING"
		middleware.APIResponse(w, resp)
		return
	}

	ctx := r.Context()
	var moved []string
	err := db.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		entry, err := k.bySecretKey(ctx, tx, secretKey)
		if errors.Is(err, sql.ErrNoRows) {
			resp.Status = k.statusPrefix() + "_NOT_FOUND_FROM_SECRET_KEY"
			return nil
		}
		if err != nil {
			return err
		}

		ownerWeVoteID := ""
		if entry.Verified {
			ownerWeVoteID = entry.VoterWeVoteID
		} else if owner, err := k.verifiedOwner(ctx, tx, entry.Value); err == nil {
			ownerWeVoteID = owner.VoterWeVoteID
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if ownerWeVoteID == "" {
			resp.Status = "VERIFIED_OWNER_NOT_FOUND"
			return nil
		}

		if ownerWeVoteID == voter.WeVoteID {
			resp.Base = models.Base{Success: true, Status: "CURRENT_VOTER_AND_OWNER_ARE_THE_SAME"}
			resp.MergedIntoWeVoteID = voter.WeVoteID
			return nil
		}

		owner, err := getVoterByWeVoteID(ctx, tx, ownerWeVoteID)
		if err != nil {
			return err
		}
		moved, err = mergeVoters(ctx, tx, voter.ID, owner.ID)
		if err != nil {
			return err
		}
		resp.Base = models.Base{Success: true, Status: "VOTERS_MERGED"}
		resp.MergedIntoWeVoteID = owner.WeVoteID
		return nil
	})
	if err != nil {
		slog.Error("voter merge failed", "error", err)
		resp.Base = models.Base{Success: false, Status: "VOTER_MERGE_TWO_ACCOUNTS_DB_ERROR"}
		moved = nil
	}
	h.evict(ctx, moved...)
	middleware.APIResponse(w, resp)
}

// SplitIntoTwoAccounts handles /apis/v1/voterSplitIntoTwoAccounts/
func (h *SignInHandler) SplitIntoTwoAccounts(w http.ResponseWriter, r *http.Request) {
	voterDeviceID, voter, status, ok := h.requireVoter(r, statusVoterNotFoundFromVoterDevice)
	resp := models.VoterSplitIntoTwoAccountsResponse{VoterDeviceID: voterDeviceID}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}

	if !paramBool(r, "split_off_sign_in_identities") {
		resp.Status = "SPLIT_NOT_CONFIRMED"
		middleware.APIResponse(w, resp)
		return
	}

	ctx := r.Context()
	err := db.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		verified := false
		for _, k := range []identityKind{emailKind, smsKind} {
			entries, err := k.list(ctx, tx, voter.WeVoteID)
			if err != nil {
				return err
			}
			for _, e := range entries {
				verified = verified || e.Verified
			}
		}
		if !verified {
			resp.Status = "NO_SIGN_IN_IDENTITIES_TO_SPLIT"
			return nil
		}

		current, split, err := splitVoter(ctx, tx, h.Config.SiteUniqueIDPrefix, voter.ID)
		if err != nil {
			return err
		}
		resp.Base = models.Base{Success: true, Status: "VOTER_SPLIT_INTO_TWO_ACCOUNTS"}
		resp.SplitFromVoterWeVoteID = current.WeVoteID
		resp.SplitToVoterWeVoteID = split.WeVoteID
		return nil
	})
	if err != nil {
		slog.Error("voter split failed", "error", err)
		resp.Base = models.Base{Success: false, Status: "VOTER_SPLIT_INTO_TWO_ACCOUNTS_DB_ERROR"}
	}
	middleware.APIResponse(w, resp)
}
