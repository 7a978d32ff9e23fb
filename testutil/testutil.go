// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wevote/wevote-server/auth"
	"github.com/wevote/wevote-server/cliparse"
	"github.com/wevote/wevote-server/db"
	"github.com/wevote/wevote-server/middleware"
)

// TestDBURL is an in-memory SQLite database; each SetupTestDB call gets a
// fresh one because the pool holds a single connection
const TestDBURL = ":memory:"

// SetupTestDB opens an empty database with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(context.Background(), GetTestConfig())
	require.NoError(t, err, "open test database")
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.CreateSchema(conn), "create schema")
	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:               8000,
		DatabaseURL:        TestDBURL,
		DatabaseType:       "sqlite",
		SiteUniqueIDPrefix: "3v",
		IPHashSalt:         "test-ip-salt",
		WebAppRootURL:      "http://localhost:3000",
		AllowedOrigins:     []string{"http://localhost:3000"},
		Logger: cliparse.LoggerSettings{
			LogLevel: cliparse.LogLevelError,
			LogType:  cliparse.LogTypeConsole,
		},
		CacheBackend: cliparse.CacheMemory,
		CacheSize:    128,
	}
}

// NewDeviceID returns a fresh voter_device_id
func NewDeviceID(t *testing.T) string {
	t.Helper()
	id, err := auth.GenerateVoterDeviceID()
	require.NoError(t, err)
	return id
}

// MakeRequest builds a request for an API endpoint. params go in the
// query string for GET and in a form body otherwise. A non-empty
// voterDeviceID is sent in the device id header.
func MakeRequest(method, path string, params url.Values, voterDeviceID string) *http.Request {
	var req *http.Request
	if method == http.MethodGet {
		if len(params) > 0 {
			path += "?" + params.Encode()
		}
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(params.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	if voterDeviceID != "" {
		req.Header.Set(middleware.VoterDeviceIDHeader, voterDeviceID)
	}
	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	require.Equal(t, expected, w.Code, "body: %s", w.Body.String())
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v), "decode JSON response")
}
