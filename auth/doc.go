// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides identifier, token, and code generation utilities.

# Voter Device IDs

A voter_device_id is an 88 character alphanumeric bearer token stored on the
client and linked server-side to a voter record:

	id, err := auth.GenerateVoterDeviceID()
	ok := auth.IsVoterDeviceIDValid(id)

Any id between 71 and 89 characters long is accepted as well formed.

# Secret Codes and Keys

Six digit sign-in codes are sent by email or SMS:

	code, err := auth.GenerateSecretCode()

Secret keys tie an unverified email address or phone number to the device
that asked to verify it:

	key := auth.GenerateSecretKey()

# We Vote IDs

Network-portable identifiers combine the site prefix, the kind of entity,
and a sequence number:

	auth.WeVoteID("3v", "voter", 42) // "wv3vvoter42"

# Normalization

	email := auth.NormalizeEmail(" Someone@Example.COM ")
	phone, err := auth.NormalizeSMSPhoneNumber("(415) 555-0100") // "+14155550100"

ValidateEmail reports ErrInvalidEmailAddress for anything the
go-playground/validator email rule rejects.

# IP Hashing

For privacy-preserving analytics:

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth
