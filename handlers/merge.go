// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"fmt"

	"github.com/wevote/wevote-server/db"
	"github.com/wevote/wevote-server/models"
)

type mergeStep struct {
	query string
	args  []any
}

// mergeVoters folds voter fromID into voter toID and deactivates fromID.
// Run it inside a transaction. Returns the device ids that now point at
// toID so the caller can evict them from the cache.
func mergeVoters(ctx context.Context, q db.Queryer, fromID, toID int64) ([]string, error) {
	from, err := getVoterByID(ctx, q, fromID)
	if err != nil {
		return nil, fmt.Errorf("merge: load from voter: %w", err)
	}
	to, err := getVoterByID(ctx, q, toID)
	if err != nil {
		return nil, fmt.Errorf("merge: load to voter: %w", err)
	}

	// Rows keyed by voter id; duplicates on the target win
	steps := []mergeStep{
		{`DELETE FROM follow_organization WHERE voter_id = $1
			AND organization_id IN (SELECT organization_id FROM follow_organization WHERE voter_id = $2)`,
			[]any{from.ID, to.ID}},
		{`UPDATE follow_organization SET voter_id = $1 WHERE voter_id = $2`, []any{to.ID, from.ID}},
		{`DELETE FROM star_item WHERE voter_id = $1
			AND EXISTS (SELECT 1 FROM star_item s WHERE s.voter_id = $2
				AND s.kind_of_ballot_item = star_item.kind_of_ballot_item
				AND s.ballot_item_we_vote_id = star_item.ballot_item_we_vote_id)`,
			[]any{from.ID, to.ID}},
		{`UPDATE star_item SET voter_id = $1 WHERE voter_id = $2`, []any{to.ID, from.ID}},
		{`DELETE FROM voter_address WHERE voter_id = $1
			AND address_type IN (SELECT address_type FROM voter_address WHERE voter_id = $2)`,
			[]any{from.ID, to.ID}},
		{`UPDATE voter_address SET voter_id = $1 WHERE voter_id = $2`, []any{to.ID, from.ID}},
		{`UPDATE analytics_action SET voter_we_vote_id = $1 WHERE voter_we_vote_id = $2`, []any{to.WeVoteID, from.WeVoteID}},
	}

	for _, k := range []identityKind{emailKind, smsKind} {
		steps = append(steps,
			mergeStep{fmt.Sprintf(`DELETE FROM %[1]s WHERE voter_we_vote_id = $1 AND %[2]s IN
				(SELECT %[2]s FROM %[1]s WHERE voter_we_vote_id = $2 AND %[3]s = TRUE AND deleted = FALSE)`,
				k.table, k.valueColumn, k.verifiedColumn), []any{from.WeVoteID, to.WeVoteID}},
			mergeStep{fmt.Sprintf(`DELETE FROM %[1]s WHERE voter_we_vote_id = $1 AND %[3]s = FALSE AND %[2]s IN
				(SELECT %[2]s FROM %[1]s WHERE voter_we_vote_id = $2)`,
				k.table, k.valueColumn, k.verifiedColumn), []any{to.WeVoteID, from.WeVoteID}},
			mergeStep{fmt.Sprintf(`UPDATE %s SET voter_we_vote_id = $1 WHERE voter_we_vote_id = $2`, k.table),
				[]any{to.WeVoteID, from.WeVoteID}},
		)
	}

	for _, s := range steps {
		if _, err := q.ExecContext(ctx, s.query, s.args...); err != nil {
			return nil, fmt.Errorf("merge %s into %s: %w", from.WeVoteID, to.WeVoteID, err)
		}
	}

	moved, err := deviceIDsForVoter(ctx, q, from.ID)
	if err != nil {
		return nil, err
	}
	_, err = q.ExecContext(ctx, `UPDATE voter_device_link SET voter_id = $1 WHERE voter_id = $2`, to.ID, from.ID)
	if err != nil {
		return nil, fmt.Errorf("merge: repoint device links: %w", err)
	}

	to.InterfaceStatusFlags |= from.InterfaceStatusFlags
	to.DataToPreserve = to.DataToPreserve || from.DataToPreserve
	if to.FirstName == "" && to.LastName == "" {
		to.FirstName, to.MiddleName, to.LastName = from.FirstName, from.MiddleName, from.LastName
	}
	if to.ProfileImageURL == "" {
		to.ProfileImageURL = from.ProfileImageURL
	}
	for _, k := range []identityKind{emailKind, smsKind} {
		if *k.primaryID(&to) != "" || *k.primaryID(&from) == "" {
			continue
		}
		entry, err := k.byWeVoteID(ctx, q, *k.primaryID(&from))
		if err == nil && entry.VoterWeVoteID == to.WeVoteID {
			k.makePrimary(&to, entry)
		}
	}
	if err := saveVoter(ctx, q, to); err != nil {
		return nil, err
	}

	emailKind.clearPrimary(&from)
	smsKind.clearPrimary(&from)
	from.DataToPreserve = false
	from.IsActive = false
	if err := saveVoter(ctx, q, from); err != nil {
		return nil, err
	}

	return moved, nil
}

// splitVoter moves the voter's verified sign-in identities to a brand new
// voter. The device stays with the original, now anonymous, voter.
func splitVoter(ctx context.Context, q db.Queryer, sitePrefix string, voterID int64) (models.Voter, models.Voter, error) {
	current, err := getVoterByID(ctx, q, voterID)
	if err != nil {
		return models.Voter{}, models.Voter{}, err
	}
	split, err := createVoter(ctx, q, sitePrefix)
	if err != nil {
		return models.Voter{}, models.Voter{}, err
	}

	for _, k := range []identityKind{emailKind, smsKind} {
		query := fmt.Sprintf(`UPDATE %s SET voter_we_vote_id = $1 WHERE voter_we_vote_id = $2 AND %s = TRUE`,
			k.table, k.verifiedColumn)
		if _, err := q.ExecContext(ctx, query, split.WeVoteID, current.WeVoteID); err != nil {
			return models.Voter{}, models.Voter{}, fmt.Errorf("split: move %s: %w", k.table, err)
		}

		if id := *k.primaryID(&current); id != "" {
			entry, err := k.byWeVoteID(ctx, q, id)
			if err == nil && entry.VoterWeVoteID == split.WeVoteID {
				k.makePrimary(&split, entry)
			}
		}
		k.clearPrimary(&current)
	}
	split.FirstName, split.MiddleName, split.LastName = current.FirstName, current.MiddleName, current.LastName

	if err := saveVoter(ctx, q, split); err != nil {
		return models.Voter{}, models.Voter{}, err
	}
	if err := saveVoter(ctx, q, current); err != nil {
		return models.Voter{}, models.Voter{}, err
	}
	return current, split, nil
}
