// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging and Metrics

Every API route is wrapped with logging and Prometheus metrics:

	mux.HandleFunc("GET /apis/v1/voterRetrieve/", middleware.API(m, "voterRetrieve", h.VoterRetrieve))

WithLogging logs request start (method, path, remote) and completion
(duration_ms). WithMetrics records latency and HTTP code, and when the
handler answers through JSONResponse with a payload embedding
models.Base, the success flag and status string as well.

# CORS Middleware

Enable credentialed cross-origin requests for configured origins:

	server := http.Server{
		Handler: middleware.CORS(cfg.AllowedOrigins)(mux),
	}

Listed origins get methods GET, POST, OPTIONS with headers Content-Type,
Authorization, X-Header-DeviceId. Any other origin gets no CORS headers.

# JSON Helpers

	middleware.APIResponse(w, resp)                          // always 200
	middleware.ErrorResponse(w, http.StatusNotFound, "message") // transport errors only

# Voter Device ID

	id := middleware.VoterDeviceID(r)

Checks the X-Header-DeviceId header, the voter_device_id query or form
value, then the voter_device_id cookie. Validation is left to handlers.

# Client IP Extraction

Get the client IP. Proxy headers (X-Forwarded-For, X-Real-IP) count only
when the deployment trusts them:

	ip := middleware.GetClientIP(r, cfg.TrustProxyHeaders)

Used for IP hashing in analytics.
*/
package middleware
