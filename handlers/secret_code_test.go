// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wevote/wevote-server/models"
)

func linkWithCode(code string, generated time.Time) models.VoterDeviceLink {
	return models.VoterDeviceLink{
		SecretCode:              code,
		DateSecretCodeGenerated: &generated,
		EmailSecretKey:          "email-key",
		SMSSecretKey:            "sms-key",
	}
}

func TestCheckSecretCode(t *testing.T) {
	at := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

	t.Run("match", func(t *testing.T) {
		l := linkWithCode("123456", at.Add(-time.Hour))
		l.SecretCodeFailedTriesForThisCode = 2
		l.SecretCodeFailedTriesAllTime = 7

		c := checkSecretCode(&l, "123456", at)
		assert.True(t, c.Verified)
		assert.Equal(t, "VALID_SECRET_CODE_FOUND", c.Status)
		assert.Equal(t, "email-key", c.SecretKeyForEmail)
		assert.Equal(t, "sms-key", c.SecretKeyForSMS)
		assert.Equal(t, MaxTriesPerSecretCode, c.TriesRemaining)

		assert.Empty(t, l.SecretCode, "codes are single use")
		assert.Nil(t, l.DateSecretCodeGenerated)
		assert.Zero(t, l.SecretCodeFailedTriesForThisCode)
		assert.Zero(t, l.SecretCodeFailedTriesAllTime)
	})

	t.Run("mismatch counts down", func(t *testing.T) {
		l := linkWithCode("123456", at)

		for i := 1; i <= MaxTriesPerSecretCode; i++ {
			c := checkSecretCode(&l, "000000", at)
			assert.False(t, c.Verified)
			assert.True(t, c.Incorrect)
			assert.Equal(t, "SECRET_CODE_DOES_NOT_MATCH", c.Status)
			assert.Equal(t, MaxTriesPerSecretCode-i, c.TriesRemaining)
			assert.Equal(t, i == MaxTriesPerSecretCode, c.MustRequestNew)
		}

		// The right code no longer helps once the code is used up
		c := checkSecretCode(&l, "123456", at)
		assert.False(t, c.Verified)
		assert.Equal(t, "THIS_CODE_HAS_EXCEEDED_ALLOWED_TRIES", c.Status)
		assert.True(t, c.MustRequestNew)
		assert.Equal(t, MaxTriesPerSecretCode+1, l.SecretCodeFailedTriesAllTime)
	})

	t.Run("expired", func(t *testing.T) {
		l := linkWithCode("123456", at.Add(-SecretCodeLifetime-time.Minute))

		c := checkSecretCode(&l, "123456", at)
		assert.False(t, c.Verified)
		assert.False(t, c.Incorrect)
		assert.Equal(t, "SECRET_CODE_HAS_EXPIRED", c.Status)
		assert.Equal(t, 1, l.SecretCodeFailedTriesForThisCode)
	})

	t.Run("no code issued", func(t *testing.T) {
		var l models.VoterDeviceLink
		c := checkSecretCode(&l, "123456", at)
		assert.False(t, c.Verified)
		assert.Equal(t, "VOTER_DEVICE_LINK_MISSING_SECRET_CODE", c.Status)
	})

	t.Run("locked", func(t *testing.T) {
		l := linkWithCode("123456", at)
		l.SecretCodeFailedTriesAllTime = MaxTriesAllTime - 1

		c := checkSecretCode(&l, "000000", at)
		assert.True(t, c.Locked)

		c = checkSecretCode(&l, "123456", at)
		assert.False(t, c.Verified)
		assert.True(t, c.Locked)
		assert.Equal(t, "SECRET_CODE_SYSTEM_LOCKED-VERIFY_CODE", c.Status)
	})
}

func TestIssueSecretCode(t *testing.T) {
	at := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

	t.Run("new code", func(t *testing.T) {
		var l models.VoterDeviceLink
		code, fresh, err := issueSecretCode(&l, at)
		require.NoError(t, err)
		assert.True(t, fresh)
		assert.Len(t, code, 6)
		assert.Equal(t, code, l.SecretCode)
		require.NotNil(t, l.DateSecretCodeGenerated)
		assert.Equal(t, at, *l.DateSecretCodeGenerated)
	})

	t.Run("live code is reused", func(t *testing.T) {
		l := linkWithCode("654321", at.Add(-time.Hour))
		l.SecretCodeFailedTriesForThisCode = 1

		code, fresh, err := issueSecretCode(&l, at)
		require.NoError(t, err)
		assert.False(t, fresh)
		assert.Equal(t, "654321", code)
		assert.Equal(t, 1, l.SecretCodeFailedTriesForThisCode)
	})

	t.Run("expired code is replaced", func(t *testing.T) {
		l := linkWithCode("654321", at.Add(-SecretCodeLifetime-time.Second))

		_, fresh, err := issueSecretCode(&l, at)
		require.NoError(t, err)
		assert.True(t, fresh)
		assert.Equal(t, at, *l.DateSecretCodeGenerated)
	})

	t.Run("exhausted code is replaced", func(t *testing.T) {
		l := linkWithCode("654321", at)
		l.SecretCodeFailedTriesForThisCode = MaxTriesPerSecretCode
		l.SecretCodeFailedTriesAllTime = MaxTriesPerSecretCode

		_, fresh, err := issueSecretCode(&l, at.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, fresh)
		assert.Zero(t, l.SecretCodeFailedTriesForThisCode)
		assert.Equal(t, MaxTriesPerSecretCode, l.SecretCodeFailedTriesAllTime, "all-time count survives")
		assert.Equal(t, at.Add(time.Minute), *l.DateSecretCodeGenerated)
	})

	t.Run("locked", func(t *testing.T) {
		var l models.VoterDeviceLink
		l.SecretCodeFailedTriesAllTime = MaxTriesAllTime

		_, _, err := issueSecretCode(&l, at)
		assert.ErrorIs(t, err, errSecretCodeLocked)
		assert.Empty(t, l.SecretCode)
	})
}
