// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the We Vote API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(deps)

# Endpoints

Every API lives at /apis/v1/<name>/ and accepts GET and POST. Parameters
come from the query string or a form body; the voter_device_id may also be
sent in the X-Header-DeviceId header or a cookie. Responses are JSON with
HTTP 200 and carry the outcome in their success and status fields.

Devices and voters:

	deviceIdGenerate, voterCreate, voterRetrieve, voterCount,
	voterSignOut, voterUpdate, voterAddressSave, voterAddressRetrieve

Sign-in:

	voterEmailAddressSave, voterEmailAddressRetrieve,
	voterEmailAddressVerify, voterEmailAddressSignIn,
	voterSMSPhoneNumberSave, voterSMSPhoneNumberRetrieve,
	voterVerifySecretCode, voterMergeTwoAccounts, voterSplitIntoTwoAccounts

Organizations:

	organizationSave, organizationRetrieve, organizationCount,
	organizationFollow, organizationStopFollowing, organizationFollowIgnore,
	organizationsFollowedRetrieve

Stars and analytics:

	voterStarOnSave, voterStarOffSave, voterStarStatusRetrieve,
	voterAllStarsStatusRetrieve, saveAnalyticsAction

Operational:

	GET /health                - Liveness check
	GET /metrics               - Prometheus metrics
	GET /apis/v1/docs/         - Endpoint documentation index
	GET /apis/v1/docs/{slug}/  - Documentation for one endpoint

# Handler Initialization

Handlers share one handlers.Deps value carrying the database, config,
device link cache, senders, analytics publisher and metrics. Each API is
wrapped with middleware.API, which logs the request and records its
outcome under the API name.
*/
package router
