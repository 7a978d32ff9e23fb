// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"fmt"

	"github.com/wevote/wevote-server/auth"
	"github.com/wevote/wevote-server/db"
	"github.com/wevote/wevote-server/models"
)

// identityKind describes one sign-in identity table. Email addresses and
// SMS phone numbers share the same lifecycle and differ only in column
// names and in which voter fields mirror the primary entry.
type identityKind struct {
	name           string // we_vote_id infix and status prefix
	table          string
	valueColumn    string
	verifiedColumn string
	linkKeyColumn  string // voter_device_link column holding the pending secret key

	primaryID    func(v *models.Voter) *string
	applyPrimary func(v *models.Voter, value string, verified bool)
}

var emailKind = identityKind{
	name:           "email",
	table:          "email_address",
	valueColumn:    "normalized_email_address",
	verifiedColumn: "email_ownership_is_verified",
	linkKeyColumn:  "email_secret_key",
	primaryID:      func(v *models.Voter) *string { return &v.PrimaryEmailWeVoteID },
	applyPrimary: func(v *models.Voter, value string, verified bool) {
		v.Email, v.EmailOwnershipIsVerified = value, verified
	},
}

var smsKind = identityKind{
	name:           "sms",
	table:          "sms_phone_number",
	valueColumn:    "normalized_sms_phone_number",
	verifiedColumn: "sms_ownership_is_verified",
	linkKeyColumn:  "sms_secret_key",
	primaryID:      func(v *models.Voter) *string { return &v.PrimarySMSWeVoteID },
	applyPrimary: func(v *models.Voter, value string, verified bool) {
		v.NormalizedSMSPhoneNumber, v.SMSOwnershipIsVerified = value, verified
	},
}

// identity is a row of email_address or sms_phone_number
type identity struct {
	ID            int64
	WeVoteID      string
	VoterWeVoteID string
	Value         string
	Verified      bool
	SecretKey     string
	Deleted       bool
}

func (k identityKind) columns() string {
	return fmt.Sprintf("id, we_vote_id, voter_we_vote_id, %s, %s, COALESCE(secret_key, ''), deleted",
		k.valueColumn, k.verifiedColumn)
}

func scanIdentity(row rowScanner) (identity, error) {
	var i identity
	err := row.Scan(&i.ID, &i.WeVoteID, &i.VoterWeVoteID, &i.Value, &i.Verified, &i.SecretKey, &i.Deleted)
	return i, err
}

// queryIdentity returns the first live row matching where
func (k identityKind) queryIdentity(ctx context.Context, q db.Queryer, where string, args ...any) (identity, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE deleted = FALSE AND %s ORDER BY %s DESC, id LIMIT 1",
		k.columns(), k.table, where, k.verifiedColumn)
	return scanIdentity(q.QueryRowContext(ctx, query, args...))
}

// list returns the voter's live entries, oldest first
func (k identityKind) list(ctx context.Context, q db.Queryer, voterWeVoteID string) ([]identity, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE voter_we_vote_id = $1 AND deleted = FALSE ORDER BY id",
		k.columns(), k.table)
	rows, err := q.QueryContext(ctx, query, voterWeVoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", k.table, err)
	}
	return collectRows(rows, scanIdentity)
}

func (k identityKind) forVoter(ctx context.Context, q db.Queryer, voterWeVoteID, value string) (identity, error) {
	return k.queryIdentity(ctx, q, fmt.Sprintf("voter_we_vote_id = $1 AND %s = $2", k.valueColumn), voterWeVoteID, value)
}

// verifiedOwner finds the verified entry for value, whoever owns it
func (k identityKind) verifiedOwner(ctx context.Context, q db.Queryer, value string) (identity, error) {
	return k.queryIdentity(ctx, q, fmt.Sprintf("%s = $1 AND %s = TRUE", k.valueColumn, k.verifiedColumn), value)
}

func (k identityKind) byWeVoteID(ctx context.Context, q db.Queryer, weVoteID string) (identity, error) {
	return k.queryIdentity(ctx, q, "we_vote_id = $1", weVoteID)
}

func (k identityKind) bySecretKey(ctx context.Context, q db.Queryer, secretKey string) (identity, error) {
	return k.queryIdentity(ctx, q, "secret_key = $1", secretKey)
}

func (k identityKind) create(ctx context.Context, q db.Queryer, sitePrefix, voterWeVoteID, value string) (identity, error) {
	n, err := db.NextSequenceValue(ctx, q, k.table)
	if err != nil {
		return identity{}, err
	}
	i := identity{
		ID:            n,
		WeVoteID:      auth.WeVoteID(sitePrefix, k.name, n),
		VoterWeVoteID: voterWeVoteID,
		Value:         value,
		SecretKey:     auth.GenerateSecretKey(),
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, we_vote_id, voter_we_vote_id, %s, %s, secret_key, deleted, date_last_changed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, k.table, k.valueColumn, k.verifiedColumn)
	_, err = q.ExecContext(ctx, query, i.ID, i.WeVoteID, i.VoterWeVoteID, i.Value, i.Verified, i.SecretKey, i.Deleted, now())
	if err != nil {
		return identity{}, fmt.Errorf("failed to insert %s: %w", k.table, err)
	}
	return i, nil
}

func (k identityKind) save(ctx context.Context, q db.Queryer, i identity) error {
	query := fmt.Sprintf(`UPDATE %s SET voter_we_vote_id = $1, %s = $2, secret_key = $3, deleted = $4, date_last_changed = $5
		WHERE id = $6`, k.table, k.verifiedColumn)
	_, err := q.ExecContext(ctx, query, i.VoterWeVoteID, i.Verified, nullString(i.SecretKey), i.Deleted, now(), i.ID)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", k.table, err)
	}
	return nil
}

// makePrimary copies a verified entry onto the voter row
func (k identityKind) makePrimary(v *models.Voter, i identity) {
	*k.primaryID(v) = i.WeVoteID
	k.applyPrimary(v, i.Value, i.Verified)
}

func (k identityKind) clearPrimary(v *models.Voter) {
	*k.primaryID(v) = ""
	k.applyPrimary(v, "", false)
}

func (k identityKind) isPrimary(v models.Voter, i identity) bool {
	return i.WeVoteID != "" && *k.primaryID(&v) == i.WeVoteID
}

func emailList(v models.Voter, entries []identity) []models.EmailAddress {
	out := make([]models.EmailAddress, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.EmailAddress{
			WeVoteID:                 e.WeVoteID,
			VoterWeVoteID:            e.VoterWeVoteID,
			NormalizedEmailAddress:   e.Value,
			EmailOwnershipIsVerified: e.Verified,
			PrimaryEmailAddress:      emailKind.isPrimary(v, e),
		})
	}
	return out
}

func smsList(v models.Voter, entries []identity) []models.SMSPhoneNumber {
	out := make([]models.SMSPhoneNumber, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.SMSPhoneNumber{
			WeVoteID:                 e.WeVoteID,
			VoterWeVoteID:            e.VoterWeVoteID,
			NormalizedSMSPhoneNumber: e.Value,
			SMSOwnershipIsVerified:   e.Verified,
			PrimarySMSPhoneNumber:    smsKind.isPrimary(v, e),
		})
	}
	return out
}
