// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/wevote/wevote-server/auth"
	"github.com/wevote/wevote-server/db"
	"github.com/wevote/wevote-server/models"
)

// identitySaveRequest is what voterEmailAddressSave and
// voterSMSPhoneNumberSave have in common once parameters are parsed
type identitySaveRequest struct {
	Value            string // normalized
	WeVoteID         string
	Delete           bool
	MakePrimary      bool
	SendCode         bool
	SendVerification bool

	sendCode         func(ctx context.Context, to, code string) error
	sendVerification func(ctx context.Context, to, secretKey string) error
}

type identitySaveResult struct {
	Success          bool
	Status           string
	Entry            identity
	Voter            models.Voter
	Entries          []identity
	Created          bool
	Deleted          bool
	OwnedByOther     bool
	OwnedByThis      bool
	MadePrimary      bool
	VerificationSent bool
	CodeSent         bool
	Locked           bool
}

// statusPrefix is EMAIL_ADDRESS or SMS_PHONE_NUMBER
func (k identityKind) statusPrefix() string {
	if k.name == "sms" {
		return "SMS_PHONE_NUMBER"
	}
	return "EMAIL_ADDRESS"
}

// saveIdentity runs the create/reuse/delete/make-primary/send flow for one
// email address or phone number of voter
func (b *base) saveIdentity(ctx context.Context, k identityKind, voter models.Voter, voterDeviceID string, req identitySaveRequest) identitySaveResult {
	res := identitySaveResult{Voter: voter}
	prefix := k.statusPrefix()
	var status []string

	finish := func(success bool, s ...string) identitySaveResult {
		res.Success = success
		res.Status = strings.Join(append(status, s...), " ")
		entries, err := k.list(ctx, b.DB, res.Voter.WeVoteID)
		if err != nil {
			slog.Error("failed to list identities", "error", err, "table", k.table)
		}
		res.Entries = entries
		return res
	}

	var entry identity
	var err error
	if req.WeVoteID != "" {
		entry, err = k.byWeVoteID(ctx, b.DB, req.WeVoteID)
		if err == nil && entry.VoterWeVoteID != voter.WeVoteID {
			err = sql.ErrNoRows
		}
	} else {
		entry, err = k.forVoter(ctx, b.DB, voter.WeVoteID, req.Value)
	}
	found := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		slog.Error("failed to look up identity", "error", err, "table", k.table)
		return finish(false, prefix+"_RETRIEVE_DB_ERROR")
	}
	if found {
		res.OwnedByThis = true
		status = append(status, prefix+"_ALREADY_OWNED_BY_THIS_VOTER")
	}

	value := req.Value
	if found {
		value = entry.Value
	}
	if value == "" {
		return finish(false, prefix+"_MISSING")
	}

	if owner, err := k.verifiedOwner(ctx, b.DB, value); err == nil && owner.VoterWeVoteID != voter.WeVoteID {
		res.OwnedByOther = true
		status = append(status, prefix+"_ALREADY_OWNED_BY_OTHER_VOTER")
	}

	if req.Delete {
		if !found {
			return finish(false, prefix+"_NOT_FOUND_TO_DELETE")
		}
		entry.Deleted = true
		if err := k.save(ctx, b.DB, entry); err != nil {
			slog.Error("failed to delete identity", "error", err, "table", k.table)
			return finish(false, prefix+"_DELETE_DB_ERROR")
		}
		if k.isPrimary(res.Voter, entry) {
			k.clearPrimary(&res.Voter)
			if err := saveVoter(ctx, b.DB, res.Voter); err != nil {
				slog.Error("failed to clear primary identity", "error", err)
			}
		}
		res.Deleted = true
		res.Entry = entry
		return finish(true, prefix+"_DELETED")
	}

	if !found {
		entry, err = k.create(ctx, b.DB, b.Config.SiteUniqueIDPrefix, voter.WeVoteID, value)
		if err != nil {
			slog.Error("failed to create identity", "error", err, "table", k.table)
			return finish(false, prefix+"_NOT_CREATED")
		}
		res.Created = true
		status = append(status, prefix+"_CREATED")
	} else if entry.SecretKey == "" {
		entry.SecretKey = auth.GenerateSecretKey()
		if err := k.save(ctx, b.DB, entry); err != nil {
			slog.Error("failed to store secret key", "error", err, "table", k.table)
		}
	}
	res.Entry = entry

	if req.MakePrimary {
		if entry.Verified {
			k.makePrimary(&res.Voter, entry)
			if err := saveVoter(ctx, b.DB, res.Voter); err != nil {
				slog.Error("failed to make identity primary", "error", err)
				return finish(false, prefix+"_MAKE_PRIMARY_DB_ERROR")
			}
			res.MadePrimary = true
			status = append(status, "MADE_PRIMARY")
		} else {
			status = append(status, prefix+"_NOT_VERIFIED-CANNOT_MAKE_PRIMARY")
		}
	}

	switch {
	case req.SendCode:
		sent, locked := b.sendSignInCode(ctx, k, voterDeviceID, entry, req.sendCode)
		if locked {
			res.Locked = true
			return finish(false, "SECRET_CODE_SYSTEM_LOCKED")
		}
		res.CodeSent = sent
		if !sent {
			return finish(false, "SIGN_IN_CODE_NOT_SENT")
		}
		status = append(status, "SIGN_IN_CODE_SENT")
	case (req.SendVerification || res.Created) && !entry.Verified && req.sendVerification != nil:
		if err := req.sendVerification(ctx, entry.Value, entry.SecretKey); err != nil {
			slog.Error("failed to send verification", "error", err, "table", k.table)
		} else {
			res.VerificationSent = true
			status = append(status, "VERIFICATION_SENT")
		}
	}

	return finish(true, prefix+"_SAVED")
}

// sendSignInCode issues a code on the device link, ties the link to
// entry's secret key and delivers the code once the link is committed
func (b *base) sendSignInCode(ctx context.Context, k identityKind, voterDeviceID string, entry identity,
	send func(ctx context.Context, to, code string) error) (sent, locked bool) {
	var code string
	err := db.WithTx(ctx, b.DB, func(tx *sql.Tx) error {
		if err := touchDeviceLink(ctx, tx, voterDeviceID); err != nil {
			return err
		}
		link, err := getDeviceLink(ctx, tx, voterDeviceID)
		if err != nil {
			return err
		}
		var fresh bool
		code, fresh, err = issueSecretCode(&link, now())
		if err != nil {
			return err
		}
		return storeSecretCode(ctx, tx, voterDeviceID, link, fresh, k.linkKeyColumn, entry.SecretKey)
	})
	if errors.Is(err, errSecretCodeLocked) {
		return false, true
	}
	if err != nil {
		slog.Error("failed to issue sign-in code", "error", err, "table", k.table)
		return false, false
	}

	if err := send(ctx, entry.Value, code); err != nil {
		slog.Error("failed to send sign-in code", "error", err, "table", k.table)
		return false, false
	}
	return true, false
}
