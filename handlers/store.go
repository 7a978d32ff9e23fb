// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wevote/wevote-server/auth"
	"github.com/wevote/wevote-server/db"
	"github.com/wevote/wevote-server/models"
)

// Placeholders are numbered in order of first appearance in every query;
// the SQLite driver binds them positionally.

type rowScanner interface {
	Scan(dest ...any) error
}

// collectRows scans every row and closes rows. Iteration errors reported
// by rows.Err are returned like scan errors.
func collectRows[T any](rows *sql.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanStar(row rowScanner) (models.StarStatus, error) {
	s := models.StarStatus{IsStarred: true}
	err := row.Scan(&s.KindOfBallotItem, &s.BallotItemWeVoteID)
	return s, err
}

func now() time.Time {
	return time.Now().UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Voters

const voterColumns = `id, we_vote_id, first_name, middle_name, last_name,
	email, primary_email_we_vote_id, email_ownership_is_verified,
	normalized_sms_phone_number, primary_sms_we_vote_id, sms_ownership_is_verified,
	data_to_preserve, is_active, interface_status_flags, notification_settings_flags,
	profile_image_url, date_joined, date_last_changed`

func scanVoter(row rowScanner) (models.Voter, error) {
	var v models.Voter
	var email, primaryEmail, sms, primarySMS sql.NullString
	err := row.Scan(
		&v.ID, &v.WeVoteID, &v.FirstName, &v.MiddleName, &v.LastName,
		&email, &primaryEmail, &v.EmailOwnershipIsVerified,
		&sms, &primarySMS, &v.SMSOwnershipIsVerified,
		&v.DataToPreserve, &v.IsActive, &v.InterfaceStatusFlags, &v.NotificationSettingsFlags,
		&v.ProfileImageURL, &v.DateJoined, &v.DateLastChanged,
	)
	if err != nil {
		return models.Voter{}, err
	}
	v.Email = email.String
	v.PrimaryEmailWeVoteID = primaryEmail.String
	v.NormalizedSMSPhoneNumber = sms.String
	v.PrimarySMSWeVoteID = primarySMS.String
	return v, nil
}

func getVoterByID(ctx context.Context, q db.Queryer, id int64) (models.Voter, error) {
	return scanVoter(q.QueryRowContext(ctx, `SELECT `+voterColumns+` FROM voter WHERE id = $1`, id))
}

func getVoterByWeVoteID(ctx context.Context, q db.Queryer, weVoteID string) (models.Voter, error) {
	return scanVoter(q.QueryRowContext(ctx, `SELECT `+voterColumns+` FROM voter WHERE we_vote_id = $1`, weVoteID))
}

// createVoter mints the next voter id and we_vote_id and inserts the row
func createVoter(ctx context.Context, q db.Queryer, sitePrefix string) (models.Voter, error) {
	n, err := db.NextSequenceValue(ctx, q, "voter")
	if err != nil {
		return models.Voter{}, err
	}

	t := now()
	v := models.Voter{
		ID:                        n,
		WeVoteID:                  auth.WeVoteID(sitePrefix, "voter", n),
		IsActive:                  true,
		NotificationSettingsFlags: models.NotificationSettingsFlagsDefault,
		DateJoined:                t,
		DateLastChanged:           t,
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO voter (id, we_vote_id, is_active, notification_settings_flags, date_joined, date_last_changed)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, v.ID, v.WeVoteID, v.IsActive, v.NotificationSettingsFlags, v.DateJoined, v.DateLastChanged)
	if err != nil {
		return models.Voter{}, fmt.Errorf("failed to insert voter: %w", err)
	}
	return v, nil
}

// saveVoter writes back every mutable voter column
func saveVoter(ctx context.Context, q db.Queryer, v models.Voter) error {
	_, err := q.ExecContext(ctx, `
		UPDATE voter SET
			first_name = $1, middle_name = $2, last_name = $3,
			email = $4, primary_email_we_vote_id = $5, email_ownership_is_verified = $6,
			normalized_sms_phone_number = $7, primary_sms_we_vote_id = $8, sms_ownership_is_verified = $9,
			data_to_preserve = $10, is_active = $11,
			interface_status_flags = $12, notification_settings_flags = $13,
			profile_image_url = $14, date_last_changed = $15
		WHERE id = $16
	`,
		v.FirstName, v.MiddleName, v.LastName,
		nullString(v.Email), nullString(v.PrimaryEmailWeVoteID), v.EmailOwnershipIsVerified,
		nullString(v.NormalizedSMSPhoneNumber), nullString(v.PrimarySMSWeVoteID), v.SMSOwnershipIsVerified,
		v.DataToPreserve, v.IsActive,
		v.InterfaceStatusFlags, v.NotificationSettingsFlags,
		v.ProfileImageURL, now(), v.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update voter %d: %w", v.ID, err)
	}
	return nil
}

// setInterfaceStatusFlags ORs flags into the stored value without
// touching any other column
func setInterfaceStatusFlags(ctx context.Context, q db.Queryer, voterID int64, flags int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE voter SET interface_status_flags = interface_status_flags | $1, date_last_changed = $2
		WHERE id = $3
	`, flags, now(), voterID)
	if err != nil {
		return fmt.Errorf("failed to set interface flags for voter %d: %w", voterID, err)
	}
	return nil
}

// Device links

const deviceLinkColumns = `id, voter_device_id, voter_id, state_code, secret_code,
	date_secret_code_generated, secret_code_failed_tries_for_this_code,
	secret_code_failed_tries_all_time, email_secret_key, sms_secret_key, date_last_changed`

func getDeviceLink(ctx context.Context, q db.Queryer, voterDeviceID string) (models.VoterDeviceLink, error) {
	var l models.VoterDeviceLink
	var code, emailKey, smsKey sql.NullString
	var generated sql.NullTime
	err := q.QueryRowContext(ctx, `SELECT `+deviceLinkColumns+` FROM voter_device_link WHERE voter_device_id = $1`, voterDeviceID).Scan(
		&l.ID, &l.VoterDeviceID, &l.VoterID, &l.StateCode, &code,
		&generated, &l.SecretCodeFailedTriesForThisCode,
		&l.SecretCodeFailedTriesAllTime, &emailKey, &smsKey, &l.DateLastChanged,
	)
	if err != nil {
		return models.VoterDeviceLink{}, err
	}
	l.SecretCode = code.String
	l.EmailSecretKey = emailKey.String
	l.SMSSecretKey = smsKey.String
	if generated.Valid {
		t := generated.Time
		l.DateSecretCodeGenerated = &t
	}
	return l, nil
}

func createDeviceLink(ctx context.Context, q db.Queryer, voterDeviceID string, voterID int64) error {
	id, err := db.NextSequenceValue(ctx, q, "voter_device_link")
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO voter_device_link (id, voter_device_id, voter_id, date_last_changed)
		VALUES ($1, $2, $3, $4)
	`, id, voterDeviceID, voterID, now())
	if err != nil {
		return fmt.Errorf("failed to insert voter_device_link: %w", err)
	}
	return nil
}

// touchDeviceLink marks the link as used now. Run first in a transaction,
// it also takes the row lock so concurrent requests for the same device
// serialize.
func touchDeviceLink(ctx context.Context, q db.Queryer, voterDeviceID string) error {
	res, err := q.ExecContext(ctx, `UPDATE voter_device_link SET date_last_changed = $1 WHERE voter_device_id = $2`, now(), voterDeviceID)
	if err != nil {
		return fmt.Errorf("failed to touch voter_device_link: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// recordFailedSecretCodeTry bumps both failure counters in place and
// returns their new values
func recordFailedSecretCodeTry(ctx context.Context, q db.Queryer, voterDeviceID string) (forThisCode, allTime int, err error) {
	err = q.QueryRowContext(ctx, `
		UPDATE voter_device_link SET
			secret_code_failed_tries_for_this_code = secret_code_failed_tries_for_this_code + 1,
			secret_code_failed_tries_all_time = secret_code_failed_tries_all_time + 1
		WHERE voter_device_id = $1
		RETURNING secret_code_failed_tries_for_this_code, secret_code_failed_tries_all_time
	`, voterDeviceID).Scan(&forThisCode, &allTime)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to record secret code try: %w", err)
	}
	return forThisCode, allTime, nil
}

// clearSecretCode drops the code, both secret keys and both counters after
// a successful verification
func clearSecretCode(ctx context.Context, q db.Queryer, voterDeviceID string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE voter_device_link SET
			secret_code = NULL, date_secret_code_generated = NULL,
			secret_code_failed_tries_for_this_code = 0, secret_code_failed_tries_all_time = 0,
			email_secret_key = NULL, sms_secret_key = NULL
		WHERE voter_device_id = $1
	`, voterDeviceID)
	if err != nil {
		return fmt.Errorf("failed to clear secret code: %w", err)
	}
	return nil
}

// storeSecretCode records an issued code and the secret key it unlocks.
// The per-code counter restarts only for a freshly generated code; the
// all-time counter is never written here.
func storeSecretCode(ctx context.Context, q db.Queryer, voterDeviceID string, l models.VoterDeviceLink, fresh bool, keyColumn, secretKey string) error {
	var generated sql.NullTime
	if l.DateSecretCodeGenerated != nil {
		generated = sql.NullTime{Time: *l.DateSecretCodeGenerated, Valid: true}
	}
	query := `UPDATE voter_device_link SET secret_code = $1, date_secret_code_generated = $2, ` +
		keyColumn + ` = $3 WHERE voter_device_id = $4`
	if fresh {
		query = `UPDATE voter_device_link SET secret_code = $1, date_secret_code_generated = $2, ` +
			keyColumn + ` = $3, secret_code_failed_tries_for_this_code = 0 WHERE voter_device_id = $4`
	}
	if _, err := q.ExecContext(ctx, query, nullString(l.SecretCode), generated, nullString(secretKey), voterDeviceID); err != nil {
		return fmt.Errorf("failed to store secret code: %w", err)
	}
	return nil
}

func deviceIDsForVoter(ctx context.Context, q db.Queryer, voterID int64) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT voter_device_id FROM voter_device_link WHERE voter_id = $1`, voterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list device links: %w", err)
	}
	return collectRows(rows, scanString)
}

func scanString(row rowScanner) (string, error) {
	var s string
	err := row.Scan(&s)
	return s, err
}

// Addresses

func getVoterAddress(ctx context.Context, q db.Queryer, voterID int64, addressType string) (models.VoterAddress, error) {
	a := models.VoterAddress{AddressType: addressType}
	err := q.QueryRowContext(ctx, `
		SELECT text_for_map_search, normalized_line1, normalized_city, normalized_state,
			normalized_zip, voter_entered_address, google_civic_election_id
		FROM voter_address WHERE voter_id = $1 AND address_type = $2
	`, voterID, addressType).Scan(
		&a.TextForMapSearch, &a.NormalizedLine1, &a.NormalizedCity, &a.NormalizedState,
		&a.NormalizedZip, &a.VoterEnteredAddress, &a.GoogleCivicElectionID,
	)
	return a, err
}

func saveVoterAddress(ctx context.Context, q db.Queryer, voterID int64, a models.VoterAddress) error {
	id, err := db.NextSequenceValue(ctx, q, "voter_address")
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO voter_address (id, voter_id, address_type, text_for_map_search,
			normalized_line1, normalized_city, normalized_state, normalized_zip,
			voter_entered_address, google_civic_election_id, date_last_changed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (voter_id, address_type) DO UPDATE SET
			text_for_map_search = EXCLUDED.text_for_map_search,
			normalized_line1 = EXCLUDED.normalized_line1,
			normalized_city = EXCLUDED.normalized_city,
			normalized_state = EXCLUDED.normalized_state,
			normalized_zip = EXCLUDED.normalized_zip,
			voter_entered_address = EXCLUDED.voter_entered_address,
			google_civic_election_id = EXCLUDED.google_civic_election_id,
			date_last_changed = EXCLUDED.date_last_changed
	`, id, voterID, a.AddressType, a.TextForMapSearch,
		a.NormalizedLine1, a.NormalizedCity, a.NormalizedState, a.NormalizedZip,
		a.VoterEnteredAddress, a.GoogleCivicElectionID, now())
	if err != nil {
		return fmt.Errorf("failed to save voter_address: %w", err)
	}
	return nil
}

// Organizations

const organizationColumns = `id, we_vote_id, organization_name, organization_website,
	organization_twitter_handle, organization_email, organization_type`

func scanOrganization(row rowScanner) (models.Organization, error) {
	var o models.Organization
	err := row.Scan(&o.ID, &o.WeVoteID, &o.Name, &o.Website, &o.TwitterHandle, &o.Email, &o.Type)
	return o, err
}

// getOrganization looks up by id when set, otherwise by we_vote_id
func getOrganization(ctx context.Context, q db.Queryer, id int64, weVoteID string) (models.Organization, error) {
	if id > 0 {
		return scanOrganization(q.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organization WHERE id = $1`, id))
	}
	return scanOrganization(q.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organization WHERE we_vote_id = $1`, weVoteID))
}
