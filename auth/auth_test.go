// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	valid := []string{"voter@example.com", "first.last+tag@sub.example.org"}
	for _, email := range valid {
		assert.NoError(t, ValidateEmail(email), email)
	}

	invalid := []string{"", "voter", "voter@", "@example.com", "a b@example.com", "one@example.com,two@example.com"}
	for _, email := range invalid {
		assert.ErrorIs(t, ValidateEmail(email), ErrInvalidEmailAddress, email)
	}
}

func TestGenerateVoterDeviceID(t *testing.T) {
	id, err := GenerateVoterDeviceID()
	require.NoError(t, err)
	assert.Len(t, id, VoterDeviceIDLength)
	for _, c := range id {
		assert.Truef(t, strings.ContainsRune(base62Chars, c), "unexpected char %q", c)
	}
	assert.True(t, IsVoterDeviceIDValid(id))

	other, err := GenerateVoterDeviceID()
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestIsVoterDeviceIDValid(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"empty", "", false},
		{"too short", strings.Repeat("a", 70), false},
		{"shortest accepted", strings.Repeat("a", 71), true},
		{"standard", strings.Repeat("a", 88), true},
		{"longest accepted", strings.Repeat("a", 89), true},
		{"too long", strings.Repeat("a", 90), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsVoterDeviceIDValid(tt.id))
		})
	}
}

func TestGenerateSecretCode(t *testing.T) {
	for i := 0; i < 20; i++ {
		code, err := GenerateSecretCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9')
		}
	}
}

func TestGenerateSecretKey(t *testing.T) {
	k1 := GenerateSecretKey()
	k2 := GenerateSecretKey()
	assert.Len(t, k1, 64)
	assert.NotContains(t, k1, "-")
	assert.NotEqual(t, k1, k2)
}

func TestWeVoteID(t *testing.T) {
	assert.Equal(t, "wv3vvoter42", WeVoteID("3v", "voter", 42))
	assert.Equal(t, "wv3vemail7", WeVoteID("3V", "email", 7))
	assert.Equal(t, "wvorg1", WeVoteID("", "org", 1))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "someone@example.com", NormalizeEmail("  SomeOne@Example.COM "))
}

func TestNormalizeSMSPhoneNumber(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"ten digit us", "(415) 555-0100", "+14155550100", false},
		{"eleven digit us", "1-415-555-0100", "+14155550100", false},
		{"already e164", "+14155550100", "+14155550100", false},
		{"international", "+44 20 7946 0958", "+442079460958", false},
		{"too short", "555-0100", "", true},
		{"letters", "call me", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSMSPhoneNumber(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSMSPhoneNumber)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHashIP(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		salt string
	}{
		{"IPv4", "192.168.1.1", "ip-salt"},
		{"IPv6", "2001:0db8:85a3::8a2e:0370:7334", "ip-salt"},
		{"localhost", "127.0.0.1", "ip-salt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash := HashIP(tt.ip, tt.salt)

			// Should not be empty
			if hash == "" {
				t.Error("HashIP() returned empty string")
			}

			// Should be 16 hex characters (8 bytes * 2)
			if len(hash) != 16 {
				t.Errorf("HashIP() length = %d, want 16", len(hash))
			}

			// Should be valid hex
			for _, c := range hash {
				if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
					t.Errorf("HashIP() contains invalid hex char: %c", c)
				}
			}

			// Should be deterministic
			hash2 := HashIP(tt.ip, tt.salt)
			if hash != hash2 {
				t.Error("HashIP() is not deterministic")
			}
		})
	}

	// Different IPs should produce different hashes
	hash1 := HashIP("192.168.1.1", "salt")
	hash2 := HashIP("192.168.1.2", "salt")
	if hash1 == hash2 {
		t.Error("HashIP() produced same hash for different IPs")
	}

	// Different salts should produce different hashes
	hash3 := HashIP("192.168.1.1", "salt1")
	hash4 := HashIP("192.168.1.1", "salt2")
	if hash3 == hash4 {
		t.Error("HashIP() produced same hash for different salts")
	}
}

// Benchmark tests
func BenchmarkGenerateVoterDeviceID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GenerateVoterDeviceID()
	}
}
