// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/wevote/wevote-server/metrics"
	"github.com/wevote/wevote-server/models"
)

// VoterDeviceIDHeader is checked before the voter_device_id parameter
const VoterDeviceIDHeader = "X-Header-DeviceId"

// WithLogging wraps a handler with request logging
func WithLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Log request
		slog.Info("request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
		)

		// Call the next handler
		next(w, r)

		// Log completion
		duration := time.Since(start)
		slog.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", duration.Milliseconds(),
		)
	}
}

// outcomeRecorder remembers the HTTP code and the API outcome written through it
type outcomeRecorder struct {
	http.ResponseWriter
	code       int
	success    bool
	status     string
	hasOutcome bool
}

func (o *outcomeRecorder) WriteHeader(code int) {
	o.code = code
	o.ResponseWriter.WriteHeader(code)
}

func (o *outcomeRecorder) recordOutcome(success bool, status string) {
	o.success, o.status, o.hasOutcome = success, status, true
}

// WithMetrics records latency, HTTP code and status string for one named API
func WithMetrics(m *metrics.APIMetrics, api string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &outcomeRecorder{ResponseWriter: w, code: http.StatusOK}

		next(rec, r)

		m.Observe(api, rec.code, time.Since(start))
		if rec.hasOutcome {
			m.ObserveStatus(api, rec.status, rec.success)
			slog.Debug("api outcome", "api", api, "success", rec.success, "status", rec.status)
		}
	}
}

// API wraps an endpoint with logging and metrics
func API(m *metrics.APIMetrics, api string, next http.HandlerFunc) http.HandlerFunc {
	return WithLogging(WithMetrics(m, api, next))
}

// JSONResponse writes a JSON response
func JSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	if o, ok := data.(interface{ Outcome() (bool, string) }); ok {
		if rec, ok := w.(interface{ recordOutcome(bool, string) }); ok {
			rec.recordOutcome(o.Outcome())
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// APIResponse writes an API payload. Business outcomes are carried in the
// payload's status field, so the HTTP code is always 200.
func APIResponse(w http.ResponseWriter, data interface{}) {
	JSONResponse(w, http.StatusOK, data)
}

// ErrorResponse writes a JSON error response for transport level failures
func ErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	JSONResponse(w, statusCode, models.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// VoterDeviceID extracts the device id from the header, then the
// voter_device_id query/form value, then the voter_device_id cookie.
func VoterDeviceID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(VoterDeviceIDHeader)); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.FormValue("voter_device_id")); id != "" {
		return id
	}
	if c, err := r.Cookie("voter_device_id"); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// CORS answers cross-origin requests from allowedOrigins only. Other
// origins get no CORS headers, so browsers refuse them the response.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")
			if origin := r.Header.Get("Origin"); allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+VoterDeviceIDHeader)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetClientIP returns the peer address without its port. When trustProxy
// is set, the first X-Forwarded-For hop and then X-Real-IP take priority.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
