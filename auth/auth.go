// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	// VoterDeviceIDLength is the length of a freshly generated voter_device_id.
	VoterDeviceIDLength = 88

	minValidDeviceIDLength = 70
	maxValidDeviceIDLength = 90

	secretCodeDigits = 6

	base62Chars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var (
	ErrInvalidSMSPhoneNumber = errors.New("invalid sms phone number")
	ErrInvalidEmailAddress   = errors.New("invalid email address")
)

var validate = validator.New()

// GenerateVoterDeviceID creates an 88 character alphanumeric token.
// 62^88 possible values, so collisions are not checked against the database.
func GenerateVoterDeviceID() (string, error) {
	return randomString(VoterDeviceIDLength, base62Chars)
}

// IsVoterDeviceIDValid reports whether id has a plausible voter_device_id length
func IsVoterDeviceIDValid(id string) bool {
	return len(id) > minValidDeviceIDLength && len(id) < maxValidDeviceIDLength
}

// GenerateSecretCode creates a six digit code sent by email or SMS
func GenerateSecretCode() (string, error) {
	return randomString(secretCodeDigits, "0123456789")
}

// GenerateSecretKey creates the key that ties an unverified email or phone
// number to the device that asked for it
func GenerateSecretKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WeVoteID builds a network-portable id such as "wv3vvoter42"
func WeVoteID(sitePrefix, kind string, n int64) string {
	return strings.ToLower("wv" + sitePrefix + kind + strconv.FormatInt(n, 10))
}

// HashIP creates a one-way hash of an IP address for privacy
// Includes salt to prevent rainbow table attacks
func HashIP(ip, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(ip))
	sum := h.Sum(nil)
	// Return first 16 hex chars (64 bits) - enough for deduplication
	return hex.EncodeToString(sum[:8])
}

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail returns ErrInvalidEmailAddress unless email is a single
// well-formed address
func ValidateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return ErrInvalidEmailAddress
	}
	return nil
}

// NormalizeSMSPhoneNumber converts a phone number to E.164.
// Ten digit numbers are assumed to be US numbers.
func NormalizeSMSPhoneNumber(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	var digits strings.Builder
	for _, c := range raw {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	d := digits.String()

	switch {
	case len(d) == 10 && !strings.HasPrefix(raw, "+"):
		return "+1" + d, nil
	case len(d) == 11 && strings.HasPrefix(d, "1") && !strings.HasPrefix(raw, "+"):
		return "+" + d, nil
	case strings.HasPrefix(raw, "+") && len(d) >= 8 && len(d) <= 15:
		return "+" + d, nil
	}
	return "", ErrInvalidSMSPhoneNumber
}

func randomString(n int, alphabet string) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random string: %w", err)
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}
