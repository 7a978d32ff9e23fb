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

// followsForBallotIntro is how many followed organizations complete the
// ballot intro step
const followsForBallotIntro = 5

type OrganizationHandler struct {
	base
}

func NewOrganizationHandler(d Deps) *OrganizationHandler {
	return &OrganizationHandler{base{d}}
}

// Save handles /apis/v1/organizationSave/
// Creates an organization, or updates one named by id or we_vote_id.
func (h *OrganizationHandler) Save(w http.ResponseWriter, r *http.Request) {
	_, _, status, ok := h.requireVoter(r, statusVoterIDMissing)
	resp := models.OrganizationSaveResponse{}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}

	ctx := r.Context()
	id := paramInt64(r, "organization_id")
	weVoteID := paramString(r, "organization_we_vote_id")
	twitter := strings.TrimPrefix(paramString(r, "organization_twitter_handle"), "@")

	if id == 0 && weVoteID == "" {
		org := models.Organization{
			Name:          paramString(r, "organization_name"),
			Website:       paramString(r, "organization_website"),
			TwitterHandle: twitter,
			Email:         auth.NormalizeEmail(paramString(r, "organization_email")),
			Type:          paramString(r, "organization_type"),
		}
		if org.Name == "" && org.Website == "" && org.TwitterHandle == "" {
			resp.Status = "NEW_ORGANIZATION_REQUIRED_VARIABLES_MISSING"
			middleware.APIResponse(w, resp)
			return
		}
		if org.Name == "" {
			org.Name = firstNonEmpty(org.TwitterHandle, org.Website)
		}
		if org.Type == "" {
			org.Type = "U"
		}

		n, err := db.NextSequenceValue(ctx, h.DB, "organization")
		if err == nil {
			org.ID = n
			org.WeVoteID = auth.WeVoteID(h.Config.SiteUniqueIDPrefix, "org", n)
			_, err = h.DB.ExecContext(ctx, `
				INSERT INTO organization (id, we_vote_id, organization_name, organization_website,
					organization_twitter_handle, organization_email, organization_type, date_last_changed)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, org.ID, org.WeVoteID, org.Name, org.Website, org.TwitterHandle, org.Email, org.Type, now())
		}
		if err != nil {
			slog.Error("failed to create organization", "error", err)
			resp.Status = "ORGANIZATION_NOT_CREATED"
			middleware.APIResponse(w, resp)
			return
		}

		slog.Info("organization created", "organization_we_vote_id", org.WeVoteID)
		resp.Base = models.Base{Success: true, Status: "ORGANIZATION_CREATED"}
		resp.NewOrganizationCreated = true
		resp.Organization = org
		middleware.APIResponse(w, resp)
		return
	}

	org, err := getOrganization(ctx, h.DB, id, weVoteID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Error("failed to load organization", "error", err)
		}
		resp.Status = "ORGANIZATION_NOT_FOUND"
		middleware.APIResponse(w, resp)
		return
	}

	if s, ok := paramChanged(r, "organization_name"); ok && s != "" {
		org.Name = s
	}
	if s, ok := paramChanged(r, "organization_website"); ok {
		org.Website = s
	}
	if _, ok := paramChanged(r, "organization_twitter_handle"); ok {
		org.TwitterHandle = twitter
	}
	if s, ok := paramChanged(r, "organization_email"); ok {
		org.Email = auth.NormalizeEmail(s)
	}
	if s, ok := paramChanged(r, "organization_type"); ok && s != "" {
		org.Type = s
	}

	_, err = h.DB.ExecContext(ctx, `
		UPDATE organization SET organization_name = $1, organization_website = $2,
			organization_twitter_handle = $3, organization_email = $4, organization_type = $5,
			date_last_changed = $6
		WHERE id = $7
	`, org.Name, org.Website, org.TwitterHandle, org.Email, org.Type, now(), org.ID)
	if err != nil {
		slog.Error("failed to update organization", "error", err)
		resp.Status = "ORGANIZATION_NOT_UPDATED"
		middleware.APIResponse(w, resp)
		return
	}

	resp.Base = models.Base{Success: true, Status: "ORGANIZATION_UPDATED"}
	resp.Organization = org
	middleware.APIResponse(w, resp)
}

// Retrieve handles /apis/v1/organizationRetrieve/
func (h *OrganizationHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	id := paramInt64(r, "organization_id")
	weVoteID := paramString(r, "organization_we_vote_id")
	resp := models.OrganizationRetrieveResponse{}

	if id == 0 && weVoteID == "" {
		resp.Status = "ORGANIZATION_RETRIEVE_BOTH_IDS_MISSING"
		middleware.APIResponse(w, resp)
		return
	}

	suffix := "WITH_ID"
	if id == 0 {
		suffix = "WITH_WE_VOTE_ID"
	}

	org, err := getOrganization(r.Context(), h.DB, id, weVoteID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Error("failed to retrieve organization", "error", err)
		}
		resp.Status = "ORGANIZATION_NOT_FOUND_" + suffix
		middleware.APIResponse(w, resp)
		return
	}

	resp.Base = models.Base{Success: true, Status: "ORGANIZATION_FOUND_" + suffix}
	resp.Organization = org
	middleware.APIResponse(w, resp)
}

// Count handles /apis/v1/organizationCount/
func (h *OrganizationHandler) Count(w http.ResponseWriter, r *http.Request) {
	var count int64
	if err := h.DB.QueryRowContext(r.Context(), `SELECT COUNT(*) FROM organization`).Scan(&count); err != nil {
		slog.Error("failed to count organizations", "error", err)
		middleware.APIResponse(w, models.OrganizationCountResponse{
			Base: models.Base{Success: false, Status: "ORGANIZATION_COUNT_DB_ERROR"},
		})
		return
	}

	middleware.APIResponse(w, models.OrganizationCountResponse{
		Base:              models.Base{Success: true, Status: "ORGANIZATION_COUNT_RETRIEVED"},
		OrganizationCount: count,
	})
}

// Follow handles /apis/v1/organizationFollow/
func (h *OrganizationHandler) Follow(w http.ResponseWriter, r *http.Request) {
	h.setFollowingStatus(w, r, models.FollowingStatusFollowing, models.ActionOrganizationFollow)
}

// StopFollowing handles /apis/v1/organizationStopFollowing/
func (h *OrganizationHandler) StopFollowing(w http.ResponseWriter, r *http.Request) {
	h.setFollowingStatus(w, r, models.FollowingStatusStopFollowing, models.ActionOrganizationStopFollowing)
}

// FollowIgnore handles /apis/v1/organizationFollowIgnore/
func (h *OrganizationHandler) FollowIgnore(w http.ResponseWriter, r *http.Request) {
	h.setFollowingStatus(w, r, models.FollowingStatusFollowIgnore, models.ActionOrganizationFollowIgnore)
}

func (h *OrganizationHandler) setFollowingStatus(w http.ResponseWriter, r *http.Request, followingStatus string, action int) {
	voterDeviceID, voter, status, ok := h.requireVoter(r, statusVoterIDMissing)
	resp := models.OrganizationFollowResponse{
		VoterDeviceID:        voterDeviceID,
		OrganizationID:       paramInt64(r, "organization_id"),
		OrganizationWeVoteID: paramString(r, "organization_we_vote_id"),
		FollowingStatus:      followingStatus,
	}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}
	if resp.OrganizationID == 0 && resp.OrganizationWeVoteID == "" {
		resp.Status = "VALID_ORGANIZATION_ID_MISSING"
		middleware.APIResponse(w, resp)
		return
	}

	ctx := r.Context()
	org, err := getOrganization(ctx, h.DB, resp.OrganizationID, resp.OrganizationWeVoteID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Error("failed to load organization", "error", err)
		}
		resp.Status = "ORGANIZATION_NOT_FOUND_ON_CREATE " + followingStatus
		middleware.APIResponse(w, resp)
		return
	}
	resp.OrganizationID = org.ID
	resp.OrganizationWeVoteID = org.WeVoteID

	id, err := db.NextSequenceValue(ctx, h.DB, "follow_organization")
	if err == nil {
		_, err = h.DB.ExecContext(ctx, `
			INSERT INTO follow_organization (id, voter_id, organization_id, organization_we_vote_id,
				following_status, date_last_changed)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (voter_id, organization_id) DO UPDATE SET
				following_status = EXCLUDED.following_status,
				date_last_changed = EXCLUDED.date_last_changed
		`, id, voter.ID, org.ID, org.WeVoteID, followingStatus, now())
	}
	if err != nil {
		slog.Error("failed to save follow status", "error", err)
		resp.Status = "FOLLOW_ORGANIZATION_NOT_SAVED " + followingStatus
		middleware.APIResponse(w, resp)
		return
	}

	if followingStatus == models.FollowingStatusFollowing {
		h.markBallotIntroOrganizations(r, voter)
	}
	_, err = h.recordAction(r, models.AnalyticsAction{
		ActionConstant:       action,
		VoterWeVoteID:        voter.WeVoteID,
		OrganizationWeVoteID: org.WeVoteID,
	})
	if err != nil {
		slog.Warn("failed to record follow action", "error", err)
	}

	resp.Base = models.Base{Success: true, Status: followingStatus}
	middleware.APIResponse(w, resp)
}

// markBallotIntroOrganizations sets the interface flag once the voter
// follows enough organizations
func (h *OrganizationHandler) markBallotIntroOrganizations(r *http.Request, voter models.Voter) {
	if voter.InterfaceStatusFlags&models.BallotIntroOrganizationsCompleted != 0 {
		return
	}
	var following int
	err := h.DB.QueryRowContext(r.Context(), `
		SELECT COUNT(*) FROM follow_organization WHERE voter_id = $1 AND following_status = $2
	`, voter.ID, models.FollowingStatusFollowing).Scan(&following)
	if err != nil || following < followsForBallotIntro {
		return
	}
	if err := setInterfaceStatusFlags(r.Context(), h.DB, voter.ID, models.BallotIntroOrganizationsCompleted); err != nil {
		slog.Warn("failed to set ballot intro flag", "error", err)
	}
}

// FollowedRetrieve handles /apis/v1/organizationsFollowedRetrieve/
func (h *OrganizationHandler) FollowedRetrieve(w http.ResponseWriter, r *http.Request) {
	voterDeviceID, voter, status, ok := h.requireVoter(r, statusVoterIDMissing)
	resp := models.OrganizationsFollowedRetrieveResponse{
		VoterDeviceID:    voterDeviceID,
		OrganizationList: []models.Organization{},
	}
	if !ok {
		resp.Status = status
		middleware.APIResponse(w, resp)
		return
	}

	rows, err := h.DB.QueryContext(r.Context(), `
		SELECT o.id, o.we_vote_id, o.organization_name, o.organization_website,
			o.organization_twitter_handle, o.organization_email, o.organization_type
		FROM follow_organization f
		JOIN organization o ON o.id = f.organization_id
		WHERE f.voter_id = $1 AND f.following_status = $2
		ORDER BY o.organization_name
	`, voter.ID, models.FollowingStatusFollowing)
	if err != nil {
		slog.Error("failed to query followed organizations", "error", err)
		resp.Status = "ORGANIZATIONS_FOLLOWED_DB_ERROR"
		middleware.APIResponse(w, resp)
		return
	}
	orgs, err := collectRows(rows, scanOrganization)
	if err != nil {
		slog.Error("failed to read followed organizations", "error", err)
		resp.Status = "ORGANIZATIONS_FOLLOWED_DB_ERROR"
		middleware.APIResponse(w, resp)
		return
	}
	resp.OrganizationList = append(resp.OrganizationList, orgs...)

	resp.Base = models.Base{Success: true, Status: "ORGANIZATIONS_FOLLOWED_RETRIEVED"}
	if len(resp.OrganizationList) == 0 {
		resp.Status = "NO_ORGANIZATIONS_FOLLOWED"
	}
	middleware.APIResponse(w, resp)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
