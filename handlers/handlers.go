// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/wevote/wevote-server/analytics"
	"github.com/wevote/wevote-server/auth"
	"github.com/wevote/wevote-server/cache"
	"github.com/wevote/wevote-server/cliparse"
	"github.com/wevote/wevote-server/metrics"
	"github.com/wevote/wevote-server/middleware"
	"github.com/wevote/wevote-server/models"
	"github.com/wevote/wevote-server/outbound"
)

// Statuses shared by most endpoints
const (
	statusDeviceIDMissing              = "VALID_VOTER_DEVICE_ID_MISSING"
	statusVoterNotFoundFromDevice      = "VOTER_NOT_FOUND_FROM_DEVICE_ID"
	statusVoterNotFoundFromVoterDevice = "VOTER_NOT_FOUND_FROM_VOTER_DEVICE_ID"
	statusVoterIDMissing               = "VALID_VOTER_ID_MISSING"
)

// Deps carries everything handlers need. Cache, senders and publisher
// are interfaces so tests can substitute in-memory versions.
type Deps struct {
	DB        *sql.DB
	Config    cliparse.Config
	Cache     cache.DeviceLinks
	Email     outbound.EmailSender
	SMS       outbound.SMSSender
	Analytics analytics.Publisher
	Metrics   *metrics.APIMetrics
}

// base is embedded in every handler for the shared voter lookups
type base struct {
	Deps
}

// voterIDForDevice resolves a device id through the cache, falling back to
// voter_device_link. A table read also touches the link, which keeps
// devices in use out of purge-device-links. cached reports a cache hit.
// Returns sql.ErrNoRows when the device is not linked.
func (b *base) voterIDForDevice(ctx context.Context, voterDeviceID string) (voterID int64, cached bool, err error) {
	if b.Cache != nil {
		voterID, ok, err := b.Cache.Get(ctx, voterDeviceID)
		if err != nil {
			slog.Warn("device link cache read failed", "error", err)
		} else if ok {
			return voterID, true, nil
		}
	}

	link, err := getDeviceLink(ctx, b.DB, voterDeviceID)
	if err != nil {
		return 0, false, err
	}
	if err := touchDeviceLink(ctx, b.DB, voterDeviceID); err != nil {
		slog.Warn("failed to touch device link", "error", err)
	}

	if b.Cache != nil {
		if err := b.Cache.Set(ctx, voterDeviceID, link.VoterID); err != nil {
			slog.Warn("device link cache write failed", "error", err)
		}
	}
	return link.VoterID, false, nil
}

// voterForDevice loads the voter a device is signed in as. A cached link
// that points at a merged-away voter is dropped and resolved again from
// voter_device_link.
func (b *base) voterForDevice(ctx context.Context, voterDeviceID string) (models.Voter, error) {
	voterID, cached, err := b.voterIDForDevice(ctx, voterDeviceID)
	if err != nil {
		return models.Voter{}, err
	}
	voter, err := getVoterByID(ctx, b.DB, voterID)
	if !cached || (err == nil && voter.IsActive) || (err != nil && !errors.Is(err, sql.ErrNoRows)) {
		return voter, err
	}

	slog.Debug("stale device link cache entry", "voter_id", voterID)
	b.evict(ctx, voterDeviceID)
	if voterID, _, err = b.voterIDForDevice(ctx, voterDeviceID); err != nil {
		return models.Voter{}, err
	}
	return getVoterByID(ctx, b.DB, voterID)
}

// evict drops device links from the cache after sign-out or merge
func (b *base) evict(ctx context.Context, voterDeviceIDs ...string) {
	if b.Cache == nil || len(voterDeviceIDs) == 0 {
		return
	}
	if err := b.Cache.Delete(ctx, voterDeviceIDs...); err != nil {
		slog.Warn("device link cache eviction failed", "error", err, "count", len(voterDeviceIDs))
	}
}

// requireVoter resolves the request's voter. On failure it returns the
// status to answer with; notFoundStatus lets endpoints keep their
// documented wording.
func (b *base) requireVoter(r *http.Request, notFoundStatus string) (string, models.Voter, string, bool) {
	voterDeviceID := middleware.VoterDeviceID(r)
	if !auth.IsVoterDeviceIDValid(voterDeviceID) {
		return voterDeviceID, models.Voter{}, statusDeviceIDMissing, false
	}

	voter, err := b.voterForDevice(r.Context(), voterDeviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return voterDeviceID, models.Voter{}, notFoundStatus, false
	}
	if err != nil {
		slog.Error("failed to load voter for device", "error", err)
		return voterDeviceID, models.Voter{}, notFoundStatus, false
	}
	return voterDeviceID, voter, "", true
}

// Request parameters arrive as query values or form posts

func paramString(r *http.Request, name string) string {
	return strings.TrimSpace(r.FormValue(name))
}

// paramPresent reports whether the client sent name at all, even empty
func paramPresent(r *http.Request, name string) bool {
	_ = r.ParseForm()
	_, ok := r.Form[name]
	return ok
}

// paramBool treats "true", "1", "yes" and "on" (any case) as true
func paramBool(r *http.Request, name string) bool {
	switch strings.ToLower(paramString(r, name)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// paramInt64 returns 0 when the value is missing or not a number
func paramInt64(r *http.Request, name string) int64 {
	n, err := strconv.ParseInt(paramString(r, name), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// paramFlag returns the integer value and whether one was sent
func paramFlag(r *http.Request, name string) (int64, bool) {
	s := paramString(r, name)
	if s == "" || strings.EqualFold(s, "false") {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// paramChanged returns a string value and whether the client asked for it
// to change. Posting name_changed=true wins; otherwise a present value
// other than "False" counts as a change.
func paramChanged(r *http.Request, name string) (string, bool) {
	if paramPresent(r, name+"_changed") {
		if !paramBool(r, name+"_changed") {
			return "", false
		}
		return paramString(r, name), true
	}
	if !paramPresent(r, name) {
		return "", false
	}
	v := paramString(r, name)
	if strings.EqualFold(v, "false") {
		return "", false
	}
	return v, true
}
