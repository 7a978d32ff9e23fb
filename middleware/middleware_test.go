// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/wevote/wevote-server/metrics"
	"github.com/wevote/wevote-server/models"
)

func TestWithLogging_PreservesResponse(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		body       string
	}{
		{"ok", http.StatusOK, `{"success":true}`},
		{"not found", http.StatusNotFound, "not found"},
		{"internal error", http.StatusInternalServerError, "error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			handler := WithLogging(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(tc.statusCode)
				w.Write([]byte(tc.body))
			})

			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest("POST", "/apis/v1/voterUpdate/", nil))

			assert.True(t, called)
			assert.Equal(t, tc.statusCode, w.Code)
			assert.Equal(t, tc.body, w.Body.String())
		})
	}
}

func TestJSONResponse(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		data       interface{}
		expected   string
	}{
		{
			name:       "api response",
			statusCode: http.StatusOK,
			data:       models.VoterCountResponse{Base: models.Base{Success: true, Status: "VOTER_COUNT_RETRIEVED"}, VoterCount: 12},
			expected:   `{"success":true,"status":"VOTER_COUNT_RETRIEVED","voter_count":12}`,
		},
		{
			name:       "plain map",
			statusCode: http.StatusOK,
			data:       map[string]string{"message": "hello"},
			expected:   `{"message":"hello"}`,
		},
		{
			name:       "error payload",
			statusCode: http.StatusBadRequest,
			data:       models.ErrorResponse{Error: "Bad Request", Message: "missing field"},
			expected:   `{"error":"Bad Request","message":"missing field"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			JSONResponse(w, tc.statusCode, tc.data)

			assert.Equal(t, tc.statusCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tc.expected, w.Body.String())
		})
	}
}

func TestAPIResponse_AlwaysOK(t *testing.T) {
	w := httptest.NewRecorder()
	APIResponse(w, models.Base{Success: false, Status: "VOTER_NOT_FOUND_FROM_VOTER_DEVICE_ID"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":false,"status":"VOTER_NOT_FOUND_FROM_VOTER_DEVICE_ID"}`, w.Body.String())
}

func TestErrorResponse(t *testing.T) {
	for _, code := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError} {
		w := httptest.NewRecorder()
		ErrorResponse(w, code, "details")

		assert.Equal(t, code, w.Code)
		var resp models.ErrorResponse
		assert.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, http.StatusText(code), resp.Error)
		assert.Equal(t, "details", resp.Message)
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("handled"))
	})
	handler := CORS([]string{"http://localhost:3000", "https://wevote.us/"})(next)

	t.Run("preflight stops before the handler", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/apis/v1/voterRetrieve/", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), VoterDeviceIDHeader)
		for _, method := range []string{"GET", "POST", "OPTIONS"} {
			assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), method)
		}
	})

	t.Run("request reaches the handler", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/apis/v1/voterRetrieve/", nil)
		req.Header.Set("Origin", "https://wevote.us")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "handled", w.Body.String())
		assert.Equal(t, "https://wevote.us", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", w.Header().Get("Vary"))
	})

	t.Run("foreign origin gets no grant", func(t *testing.T) {
		for _, method := range []string{"GET", "OPTIONS"} {
			req := httptest.NewRequest(method, "/apis/v1/voterRetrieve/", nil)
			req.Header.Set("Origin", "https://evil.example")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"), method)
			assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"), method)
		}
	})

	t.Run("no origin", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/apis/v1/voterRetrieve/", nil))
		assert.Equal(t, "handled", w.Body.String())
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestGetClientIP(t *testing.T) {
	testCases := []struct {
		name       string
		trustProxy bool
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{"forwarded single", true, map[string]string{"X-Forwarded-For": "192.168.1.100"}, "10.0.0.1:12345", "192.168.1.100"},
		{"forwarded chain", true, map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"}, "127.0.0.1:1", "203.0.113.195"},
		{"forwarded before real ip", true, map[string]string{"X-Forwarded-For": "192.168.1.100", "X-Real-IP": "203.0.113.50"}, "10.0.0.1:1", "192.168.1.100"},
		{"real ip", true, map[string]string{"X-Real-IP": "203.0.113.50"}, "10.0.0.1:12345", "203.0.113.50"},
		{"remote addr", true, nil, "192.168.1.50:54321", "192.168.1.50"},
		{"remote addr without port", false, nil, "192.168.1.50", "192.168.1.50"},
		{"ipv6 remote addr", false, nil, "[::1]:12345", "::1"},
		{"ipv6 forwarded", true, map[string]string{"X-Forwarded-For": "2001:db8::1"}, "127.0.0.1:1", "2001:db8::1"},
		{"empty forwarded", true, map[string]string{"X-Forwarded-For": ""}, "10.0.0.5:8080", "10.0.0.5"},
		{"spoofed forwarded ignored", false, map[string]string{"X-Forwarded-For": "1.2.3.4"}, "10.0.0.5:8080", "10.0.0.5"},
		{"spoofed real ip ignored", false, map[string]string{"X-Real-IP": "1.2.3.4"}, "10.0.0.5:8080", "10.0.0.5"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.expected, GetClientIP(req, tc.trustProxy))
		})
	}
}

func TestVoterDeviceID(t *testing.T) {
	const fromHeader, fromQuery, fromCookie = "header-id", "query-id", "cookie-id"

	testCases := []struct {
		name     string
		header   string
		query    string
		cookie   string
		expected string
	}{
		{"header wins", fromHeader, fromQuery, fromCookie, fromHeader},
		{"query before cookie", "", fromQuery, fromCookie, fromQuery},
		{"cookie last", "", "", fromCookie, fromCookie},
		{"nothing", "", "", "", ""},
		{"whitespace trimmed", "  " + fromHeader + " ", "", "", fromHeader},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			target := "/apis/v1/voterRetrieve/"
			if tc.query != "" {
				target += "?voter_device_id=" + url.QueryEscape(tc.query)
			}
			req := httptest.NewRequest("GET", target, nil)
			if tc.header != "" {
				req.Header.Set(VoterDeviceIDHeader, tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "voter_device_id", Value: tc.cookie})
			}

			assert.Equal(t, tc.expected, VoterDeviceID(req))
		})
	}
}

func TestVoterDeviceID_FormPost(t *testing.T) {
	body := strings.NewReader("voter_device_id=posted-id")
	req := httptest.NewRequest("POST", "/apis/v1/voterEmailAddressSave/", body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	assert.Equal(t, "posted-id", VoterDeviceID(req))
}

func TestWithMetrics_RecordsOutcome(t *testing.T) {
	m := metrics.NewAPIMetrics("wevote")
	handler := API(m, "voterRetrieve", func(w http.ResponseWriter, r *http.Request) {
		APIResponse(w, models.VoterRetrieveResponse{Base: models.Base{Success: false, Status: "VALID_VOTER_DEVICE_ID_MISSING"}})
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/apis/v1/voterRetrieve/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.Base
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "VALID_VOTER_DEVICE_ID_MISSING", resp.Status)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Requests.WithLabelValues("voterRetrieve", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Statuses.WithLabelValues("voterRetrieve", "VALID_VOTER_DEVICE_ID_MISSING", "false")))
}

func TestWithMetrics_NonAPIPayload(t *testing.T) {
	m := metrics.NewAPIMetrics("wevote")
	handler := WithMetrics(m, "docs", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Millisecond)
		ErrorResponse(w, http.StatusNotFound, "no such page")
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/apis/v1/docs/nope/", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Requests.WithLabelValues("docs", "404")))
}
