// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/wevote/wevote-server/auth"
	"github.com/wevote/wevote-server/db"
	"github.com/wevote/wevote-server/middleware"
	"github.com/wevote/wevote-server/models"
)

var botMarkers = []string{"bot", "crawler", "spider", "slurp", "facebookexternalhit", "headless"}

func isBot(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, m := range botMarkers {
		if strings.Contains(ua, m) {
			return true
		}
	}
	return false
}

// recordAction stamps action with request details, stores it and hands it
// to the publisher. Publish failures are counted and logged only.
func (b *base) recordAction(r *http.Request, action models.AnalyticsAction) (models.AnalyticsAction, error) {
	ctx := r.Context()
	t := now()
	action.ExactTime = t
	action.DateAsInteger = t.Year()*10000 + int(t.Month())*100 + t.Day()
	action.UserAgent = r.UserAgent()
	action.IsBot = isBot(action.UserAgent)
	action.IPHash = auth.HashIP(middleware.GetClientIP(r, b.Config.TrustProxyHeaders), b.Config.IPHashSalt)

	id, err := db.NextSequenceValue(ctx, b.DB, "analytics_action")
	if err != nil {
		return action, err
	}
	_, err = b.DB.ExecContext(ctx, `
		INSERT INTO analytics_action (id, action_constant, voter_we_vote_id, google_civic_election_id,
			organization_we_vote_id, ballot_item_we_vote_id, date_as_integer, ip_hash, user_agent,
			is_bot, exact_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, id, action.ActionConstant, action.VoterWeVoteID, action.GoogleCivicElectionID,
		action.OrganizationWeVoteID, action.BallotItemWeVoteID, action.DateAsInteger, action.IPHash,
		action.UserAgent, action.IsBot, action.ExactTime)
	if err != nil {
		return action, fmt.Errorf("failed to insert analytics_action: %w", err)
	}

	if b.Analytics != nil {
		if err := b.Analytics.Publish(ctx, action); err != nil {
			slog.Warn("failed to publish analytics action", "error", err, "action_constant", action.ActionConstant)
			if b.Metrics != nil {
				b.Metrics.AnalyticsErrors.Inc()
			}
		}
	}
	return action, nil
}

type AnalyticsHandler struct {
	base
}

func NewAnalyticsHandler(d Deps) *AnalyticsHandler {
	return &AnalyticsHandler{base{d}}
}

// Save handles /apis/v1/saveAnalyticsAction/
func (h *AnalyticsHandler) Save(w http.ResponseWriter, r *http.Request) {
	voterDeviceID, voter, status, ok := h.requireVoter(r, statusVoterIDMissing)
	resp := models.SaveAnalyticsActionResponse{
		VoterDeviceID:         voterDeviceID,
		GoogleCivicElectionID: paramInt64(r, "google_civic_election_id"),
	}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}

	actionConstant, err := strconv.Atoi(paramString(r, "action_constant"))
	if err != nil || actionConstant <= 0 {
		resp.Status = "MISSING_ACTION_CONSTANT"
		middleware.APIResponse(w, resp)
		return
	}
	resp.ActionConstant = actionConstant
	resp.IsSignedIn = voter.IsSignedIn()

	action, err := h.recordAction(r, models.AnalyticsAction{
		ActionConstant:        actionConstant,
		VoterWeVoteID:         voter.WeVoteID,
		GoogleCivicElectionID: resp.GoogleCivicElectionID,
		OrganizationWeVoteID:  paramString(r, "organization_we_vote_id"),
		BallotItemWeVoteID:    paramString(r, "ballot_item_we_vote_id"),
	})
	if err != nil {
		slog.Error("failed to save analytics action", "error", err)
		resp.Status = "ANALYTICS_ACTION_NOT_SAVED"
		middleware.APIResponse(w, resp)
		return
	}

	resp.Base = models.Base{Success: true, Status: "ANALYTICS_ACTION_SAVED"}
	resp.DateAsInteger = action.DateAsInteger
	middleware.APIResponse(w, resp)
}
