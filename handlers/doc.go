// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the We Vote API.

# Handler Types

Each handler is a struct embedding the shared Deps (database, config,
device link cache, senders, analytics publisher, metrics):

  - DeviceHandler: voter_device_id generation
  - VoterHandler: Voter create, retrieve, count, update and sign-out
  - AddressHandler: Ballot address save and retrieve
  - EmailHandler: Email identities, verification links and sign-in
  - SMSHandler: SMS phone number identities
  - SignInHandler: Secret code verification, merge and split
  - OrganizationHandler: Organizations and follow state
  - StarHandler: Stars on candidates, offices and measures
  - AnalyticsHandler: Client analytics actions

Handlers are created via constructor functions that accept Deps:

	voterHandler := handlers.NewVoterHandler(deps)

# Responses

Every endpoint answers HTTP 200 with a JSON body carrying success and
status. Business failures set success to false and name the reason in
status; parts of a multi-step outcome are joined with spaces.

# Devices and Voters

A device id is minted by deviceIdGenerate and bound to a voter by
voterCreate. Later requests resolve the voter through the device link
cache, falling back to the voter_device_link table. Sign-out deletes
links and evicts them from the cache.

# Sign-In

Email and SMS entries start unverified. Ownership is proven with a link
carrying a secret key (email) or with a six digit secret code stored on
the device link. Codes expire, allow five tries each, and lock the device
after 25 failures overall. When a verified address already belongs to
another voter, the current voter is merged into that owner: every device
link, identity, follow and star moves, and the merged voter is
deactivated.
*/
package handlers
