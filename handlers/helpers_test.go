// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wevote/wevote-server/analytics"
	"github.com/wevote/wevote-server/cache"
	"github.com/wevote/wevote-server/metrics"
	"github.com/wevote/wevote-server/models"
	"github.com/wevote/wevote-server/outbound"
	"github.com/wevote/wevote-server/testutil"
)

// testEnv bundles Deps with typed handles on the in-memory fakes
type testEnv struct {
	Deps
	sender    *outbound.MemorySender
	publisher *analytics.MemoryPublisher
	lru       *cache.LRU
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	lru, err := cache.NewLRU(128, cache.DefaultTTL)
	require.NoError(t, err)
	sender := &outbound.MemorySender{}
	publisher := &analytics.MemoryPublisher{}

	return &testEnv{
		Deps: Deps{
			DB:        testutil.SetupTestDB(t),
			Config:    testutil.GetTestConfig(),
			Cache:     lru,
			Email:     sender,
			SMS:       sender,
			Analytics: publisher,
			Metrics:   metrics.NewAPIMetrics("wevote"),
		},
		sender:    sender,
		publisher: publisher,
		lru:       lru,
	}
}

// call runs handler with params posted as a form and decodes the response
func call(t *testing.T, handler http.HandlerFunc, voterDeviceID string, params url.Values, out interface{}) {
	t.Helper()
	if params == nil {
		params = url.Values{}
	}
	req := testutil.MakeRequest(http.MethodPost, "/apis/v1/test/", params, voterDeviceID)
	w := httptest.NewRecorder()
	handler(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, out)
}

// newVoter creates a device id and a voter for it
func (e *testEnv) newVoter(t *testing.T) (string, models.VoterCreateResponse) {
	t.Helper()
	voterDeviceID := testutil.NewDeviceID(t)

	var resp models.VoterCreateResponse
	call(t, NewVoterHandler(e.Deps).Create, voterDeviceID, nil, &resp)
	require.True(t, resp.Success, resp.Status)
	return voterDeviceID, resp
}

// voter loads the voter currently linked to voterDeviceID straight from the DB
func (e *testEnv) voter(t *testing.T, voterDeviceID string) models.Voter {
	t.Helper()
	ctx := context.Background()
	link, err := getDeviceLink(ctx, e.DB, voterDeviceID)
	require.NoError(t, err)
	v, err := getVoterByID(ctx, e.DB, link.VoterID)
	require.NoError(t, err)
	return v
}

func (e *testEnv) deviceLink(t *testing.T, voterDeviceID string) models.VoterDeviceLink {
	t.Helper()
	link, err := getDeviceLink(context.Background(), e.DB, voterDeviceID)
	require.NoError(t, err)
	return link
}

// lastCode returns the sign-in code currently issued to the device
func (e *testEnv) lastCode(t *testing.T, voterDeviceID string) string {
	t.Helper()
	return e.deviceLink(t, voterDeviceID).SecretCode
}
