// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/wevote/wevote-server/auth"
	"github.com/wevote/wevote-server/models"
)

const (
	// MaxTriesPerSecretCode is how many wrong guesses one code survives
	MaxTriesPerSecretCode = 5
	// MaxTriesAllTime locks the device out of code sign-in for good
	MaxTriesAllTime = 25
	// SecretCodeLifetime bounds how long a sent code stays usable
	SecretCodeLifetime = 24 * time.Hour
)

var errSecretCodeLocked = errors.New("secret code system locked for this device")

// codeCheck is the outcome of one verification attempt
type codeCheck struct {
	Status            string
	Verified          bool
	Incorrect         bool
	Locked            bool
	MustRequestNew    bool
	TriesRemaining    int
	SecretKeyForEmail string
	SecretKeyForSMS   string
}

func secretCodeLocked(l *models.VoterDeviceLink) bool {
	return l.SecretCodeFailedTriesAllTime >= MaxTriesAllTime
}

func triesRemaining(l *models.VoterDeviceLink) int {
	return max(0, MaxTriesPerSecretCode-l.SecretCodeFailedTriesForThisCode)
}

// checkSecretCode verifies code against the link and updates the link's
// counters in place. The caller records the outcome with
// recordFailedSecretCodeTry or clearSecretCode, never by writing the
// counters back.
func checkSecretCode(l *models.VoterDeviceLink, code string, at time.Time) codeCheck {
	var c codeCheck

	switch {
	case secretCodeLocked(l):
		c.Status = "SECRET_CODE_SYSTEM_LOCKED-VERIFY_CODE"
	case l.SecretCodeFailedTriesForThisCode >= MaxTriesPerSecretCode:
		c.Status = "THIS_CODE_HAS_EXCEEDED_ALLOWED_TRIES"
	case l.SecretCode == "":
		c.Status = "VOTER_DEVICE_LINK_MISSING_SECRET_CODE"
	case l.DateSecretCodeGenerated == nil || at.Sub(*l.DateSecretCodeGenerated) > SecretCodeLifetime:
		c.Status = "SECRET_CODE_HAS_EXPIRED"
	case subtle.ConstantTimeCompare([]byte(l.SecretCode), []byte(code)) == 1:
		c.Status = "VALID_SECRET_CODE_FOUND"
		c.Verified = true
		c.SecretKeyForEmail = l.EmailSecretKey
		c.SecretKeyForSMS = l.SMSSecretKey
		l.SecretCode = ""
		l.DateSecretCodeGenerated = nil
		l.SecretCodeFailedTriesForThisCode = 0
		l.SecretCodeFailedTriesAllTime = 0
		c.TriesRemaining = MaxTriesPerSecretCode
		return c
	default:
		c.Status = "SECRET_CODE_DOES_NOT_MATCH"
		c.Incorrect = true
	}

	l.SecretCodeFailedTriesForThisCode++
	l.SecretCodeFailedTriesAllTime++
	c.applyCounters(l)
	return c
}

// applyCounters recomputes the lockout fields from the link's counters
func (c *codeCheck) applyCounters(l *models.VoterDeviceLink) {
	c.TriesRemaining = triesRemaining(l)
	c.MustRequestNew = c.TriesRemaining == 0
	c.Locked = secretCodeLocked(l)
}

// issueSecretCode returns the code to send, reusing a live one so repeat
// requests don't invalidate what the voter already received. fresh
// reports whether a new code was generated.
func issueSecretCode(l *models.VoterDeviceLink, at time.Time) (code string, fresh bool, err error) {
	if secretCodeLocked(l) {
		return "", false, errSecretCodeLocked
	}
	if l.SecretCode != "" && l.DateSecretCodeGenerated != nil &&
		at.Sub(*l.DateSecretCodeGenerated) <= SecretCodeLifetime &&
		l.SecretCodeFailedTriesForThisCode < MaxTriesPerSecretCode {
		return l.SecretCode, false, nil
	}

	code, err = auth.GenerateSecretCode()
	if err != nil {
		return "", false, err
	}
	l.SecretCode = code
	l.DateSecretCodeGenerated = &at
	l.SecretCodeFailedTriesForThisCode = 0
	return code, true, nil
}
