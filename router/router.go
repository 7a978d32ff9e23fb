// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/wevote/wevote-server/apidocs"
	"github.com/wevote/wevote-server/handlers"
	"github.com/wevote/wevote-server/middleware"
)

// route binds an API name to its handler. The name is the path segment
// under /apis/v1/ and the metrics label.
type route struct {
	api     string
	handler http.HandlerFunc
}

// routes lists every API endpoint in registration order
func routes(d handlers.Deps) []route {
	device := handlers.NewDeviceHandler(d)
	voter := handlers.NewVoterHandler(d)
	address := handlers.NewAddressHandler(d)
	email := handlers.NewEmailHandler(d)
	sms := handlers.NewSMSHandler(d)
	signIn := handlers.NewSignInHandler(d)
	organization := handlers.NewOrganizationHandler(d)
	star := handlers.NewStarHandler(d)
	analytics := handlers.NewAnalyticsHandler(d)

	return []route{
		{"deviceIdGenerate", device.DeviceIDGenerate},

		{"voterCreate", voter.Create},
		{"voterRetrieve", voter.Retrieve},
		{"voterCount", voter.Count},
		{"voterSignOut", voter.SignOut},
		{"voterUpdate", voter.Update},

		{"voterAddressSave", address.Save},
		{"voterAddressRetrieve", address.Retrieve},

		{"voterEmailAddressSave", email.Save},
		{"voterEmailAddressRetrieve", email.Retrieve},
		{"voterEmailAddressVerify", email.Verify},
		{"voterEmailAddressSignIn", email.SignIn},

		{"voterSMSPhoneNumberSave", sms.Save},
		{"voterSMSPhoneNumberRetrieve", sms.Retrieve},

		{"voterVerifySecretCode", signIn.VerifySecretCode},
		{"voterMergeTwoAccounts", signIn.MergeTwoAccounts},
		{"voterSplitIntoTwoAccounts", signIn.SplitIntoTwoAccounts},

		{"organizationSave", organization.Save},
		{"organizationRetrieve", organization.Retrieve},
		{"organizationCount", organization.Count},
		{"organizationFollow", organization.Follow},
		{"organizationStopFollowing", organization.StopFollowing},
		{"organizationFollowIgnore", organization.FollowIgnore},
		{"organizationsFollowedRetrieve", organization.FollowedRetrieve},

		{"voterStarOnSave", star.OnSave},
		{"voterStarOffSave", star.OffSave},
		{"voterStarStatusRetrieve", star.StatusRetrieve},
		{"voterAllStarsStatusRetrieve", star.AllStatusRetrieve},

		{"saveAnalyticsAction", analytics.Save},
	}
}

func NewRouter(d handlers.Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.Handle("GET /metrics", d.Metrics.Handler())

	// Clients send parameters in the query string or a form body, so every
	// API answers both verbs
	for _, rt := range routes(d) {
		h := middleware.API(d.Metrics, rt.api, rt.handler)
		mux.HandleFunc("GET /apis/v1/"+rt.api+"/", h)
		mux.HandleFunc("POST /apis/v1/"+rt.api+"/", h)
	}

	docs := apidocs.NewHandler(apidocs.Default())
	mux.HandleFunc("GET /apis/v1/docs/{$}", middleware.WithLogging(docs.Index))
	mux.HandleFunc("GET /apis/v1/docs/{slug}/", middleware.WithLogging(docs.Detail))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("We Vote API v1"))
	})

	return mux
}
