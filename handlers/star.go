// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wevote/wevote-server/db"
	"github.com/wevote/wevote-server/middleware"
	"github.com/wevote/wevote-server/models"
)

type StarHandler struct {
	base
}

func NewStarHandler(d Deps) *StarHandler {
	return &StarHandler{base{d}}
}

// ballotItem reads kind_of_ballot_item and ballot_item_we_vote_id, falling
// back to the kind-specific id parameters the older clients send
func ballotItem(r *http.Request) (kind, weVoteID string, ok bool) {
	kind = strings.ToUpper(paramString(r, "kind_of_ballot_item"))
	weVoteID = paramString(r, "ballot_item_we_vote_id")

	fallbacks := []struct{ kind, param string }{
		{models.KindCandidate, "candidate_we_vote_id"},
		{models.KindMeasure, "measure_we_vote_id"},
		{models.KindOffice, "office_we_vote_id"},
	}
	if weVoteID == "" {
		for _, f := range fallbacks {
			if v := paramString(r, f.param); v != "" {
				if kind == "" {
					kind = f.kind
				}
				weVoteID = v
				break
			}
		}
	}

	switch kind {
	case models.KindCandidate, models.KindMeasure, models.KindOffice:
		return kind, weVoteID, weVoteID != ""
	}
	return kind, weVoteID, false
}

// OnSave handles /apis/v1/voterStarOnSave/
func (h *StarHandler) OnSave(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, models.StarStatusStarred)
}

// OffSave handles /apis/v1/voterStarOffSave/
func (h *StarHandler) OffSave(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, models.StarStatusNotStarred)
}

func (h *StarHandler) save(w http.ResponseWriter, r *http.Request, starStatus string) {
	voterDeviceID, voter, status, ok := h.requireVoter(r, statusVoterIDMissing)
	resp := models.StarResponse{VoterDeviceID: voterDeviceID}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}

	kind, weVoteID, ok := ballotItem(r)
	resp.KindOfBallotItem = kind
	resp.BallotItemWeVoteID = weVoteID
	if !ok {
		resp.Status = "VALID_BALLOT_ITEM_ID_MISSING"
		middleware.APIResponse(w, resp)
		return
	}

	prefix := "STAR_ON_"
	suffix := "ITEM_STARRED"
	if starStatus == models.StarStatusNotStarred {
		prefix, suffix = "STAR_OFF_", "ITEM_NOT_STARRED"
	}

	ctx := r.Context()
	var existing string
	err := h.DB.QueryRowContext(ctx, `
		SELECT star_status FROM star_item
		WHERE voter_id = $1 AND kind_of_ballot_item = $2 AND ballot_item_we_vote_id = $3
	`, voter.ID, kind, weVoteID).Scan(&existing)
	op := "UPDATE"
	if errors.Is(err, sql.ErrNoRows) {
		op = "CREATE"
		err = nil
	}

	if err == nil {
		var id int64
		id, err = db.NextSequenceValue(ctx, h.DB, "star_item")
		if err == nil {
			_, err = h.DB.ExecContext(ctx, `
				INSERT INTO star_item (id, voter_id, kind_of_ballot_item, ballot_item_we_vote_id,
					star_status, date_last_changed)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (voter_id, kind_of_ballot_item, ballot_item_we_vote_id) DO UPDATE SET
					star_status = EXCLUDED.star_status,
					date_last_changed = EXCLUDED.date_last_changed
			`, id, voter.ID, kind, weVoteID, starStatus, now())
		}
	}
	if err != nil {
		slog.Error("failed to save star", "error", err)
		resp.Status = prefix + kind + " STAR_NOT_SAVED"
		middleware.APIResponse(w, resp)
		return
	}

	resp.Base = models.Base{Success: true, Status: prefix + kind + " " + op + " " + suffix}
	resp.IsStarred = starStatus == models.StarStatusStarred
	middleware.APIResponse(w, resp)
}

// StatusRetrieve handles /apis/v1/voterStarStatusRetrieve/
func (h *StarHandler) StatusRetrieve(w http.ResponseWriter, r *http.Request) {
	voterDeviceID, voter, status, ok := h.requireVoter(r, statusVoterIDMissing)
	resp := models.StarResponse{VoterDeviceID: voterDeviceID}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}

	kind, weVoteID, ok := ballotItem(r)
	resp.KindOfBallotItem = kind
	resp.BallotItemWeVoteID = weVoteID
	if !ok {
		resp.Status = "VALID_BALLOT_ITEM_ID_MISSING"
		middleware.APIResponse(w, resp)
		return
	}

	var starStatus string
	err := h.DB.QueryRowContext(r.Context(), `
		SELECT star_status FROM star_item
		WHERE voter_id = $1 AND kind_of_ballot_item = $2 AND ballot_item_we_vote_id = $3
	`, voter.ID, kind, weVoteID).Scan(&starStatus)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		slog.Error("failed to retrieve star", "error", err)
		resp.Status = "STAR_STATUS_DB_ERROR"
		middleware.APIResponse(w, resp)
		return
	}

	resp.Base = models.Base{Success: true, Status: "STAR_STATUS_RETRIEVED"}
	resp.IsStarred = starStatus == models.StarStatusStarred
	middleware.APIResponse(w, resp)
}

// AllStatusRetrieve handles /apis/v1/voterAllStarsStatusRetrieve/
// Lists starred items only.
func (h *StarHandler) AllStatusRetrieve(w http.ResponseWriter, r *http.Request) {
	voterDeviceID, voter, status, ok := h.requireVoter(r, statusVoterIDMissing)
	resp := models.AllStarsStatusRetrieveResponse{
		VoterDeviceID: voterDeviceID,
		StarList:      []models.StarStatus{},
	}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}

	rows, err := h.DB.QueryContext(r.Context(), `
		SELECT kind_of_ballot_item, ballot_item_we_vote_id FROM star_item
		WHERE voter_id = $1 AND star_status = $2
		ORDER BY id
	`, voter.ID, models.StarStatusStarred)
	if err != nil {
		slog.Error("failed to query stars", "error", err)
		resp.Status = "ALL_STARS_STATUS_DB_ERROR"
		middleware.APIResponse(w, resp)
		return
	}
	stars, err := collectRows(rows, scanStar)
	if err != nil {
		slog.Error("failed to read stars", "error", err)
		resp.Status = "ALL_STARS_STATUS_DB_ERROR"
		middleware.APIResponse(w, resp)
		return
	}
	resp.StarList = append(resp.StarList, stars...)

	resp.Base = models.Base{Success: true, Status: "ALL_STARS_STATUS_RETRIEVED"}
	middleware.APIResponse(w, resp)
}
