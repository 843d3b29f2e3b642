package security

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_EncryptDecrypt(t *testing.T) {
	m, err := NewManager("super-secret-passphrase")
	require.NoError(t, err)

	t.Run("RoundTrip", func(t *testing.T) {
		token, err := m.Encrypt("4wBqpZM9xaSheZzJSMawUKKwhdpChKbZ5eu5ky4Vigw")
		require.NoError(t, err)
		assert.NotContains(t, token, "4wBqpZM9")

		plain, err := m.Decrypt(token)
		require.NoError(t, err)
		assert.Equal(t, "4wBqpZM9xaSheZzJSMawUKKwhdpChKbZ5eu5ky4Vigw", plain)
	})

	t.Run("NonceIsRandom", func(t *testing.T) {
		a, err := m.Encrypt("same")
		require.NoError(t, err)
		b, err := m.Encrypt("same")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("TamperedToken", func(t *testing.T) {
		token, err := m.Encrypt("payload")
		require.NoError(t, err)
		tampered := []byte(token)
		idx := len(tampered) / 2
		if tampered[idx] == 'A' {
			tampered[idx] = 'B'
		} else {
			tampered[idx] = 'A'
		}

		_, err = m.Decrypt(string(tampered))
		assert.ErrorIs(t, err, ErrDecrypt)
	})

	t.Run("WrongKey", func(t *testing.T) {
		token, err := m.Encrypt("payload")
		require.NoError(t, err)
		other, err := NewManager("another-passphrase")
		require.NoError(t, err)

		_, err = other.Decrypt(token)
		assert.ErrorIs(t, err, ErrDecrypt)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := m.Decrypt("not base64 !!")
		assert.ErrorIs(t, err, ErrDecrypt)
		_, err = m.Decrypt("c2hvcnQ=")
		assert.ErrorIs(t, err, ErrDecrypt)
	})
}

func TestNewManager_KeyDerivation(t *testing.T) {
	_, err := NewManager("")
	assert.ErrorIs(t, err, ErrEmptyKey)

	short, err := NewManager("abc")
	require.NoError(t, err)
	assert.Equal(t, "abc"+strings.Repeat("0", 29), string(short.key[:]))

	long, err := NewManager(strings.Repeat("x", 40))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 32), string(long.key[:]))
}

func TestManager_Signature(t *testing.T) {
	m, err := NewManager("k")
	require.NoError(t, err)

	sig := m.GenerateSignature("user:42")
	assert.Len(t, sig, 64)
	assert.Equal(t, sig, m.GenerateSignature("user:42"))
	assert.True(t, m.VerifySignature("user:42", sig))
	assert.False(t, m.VerifySignature("user:43", sig))
}

func TestValidateSolanaAddress(t *testing.T) {
	testCases := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "USDC mint", addr: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"},
		{name: "wrapped SOL", addr: "So11111111111111111111111111111111111111112"},
		{name: "too short", addr: "abc", wantErr: true},
		{name: "too long", addr: strings.Repeat("1", 45), wantErr: true},
		{name: "invalid base58 characters", addr: "0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSolanaAddress(tc.addr)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAddress)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAdminToken(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		token, err := IssueAdminToken("jwt-secret", 424242, time.Hour)
		require.NoError(t, err)

		id, err := ParseAdminToken("jwt-secret", token)
		require.NoError(t, err)
		assert.Equal(t, int64(424242), id)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		token, err := IssueAdminToken("jwt-secret", 1, time.Hour)
		require.NoError(t, err)

		_, err = ParseAdminToken("other", token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := IssueAdminToken("jwt-secret", 1, -time.Minute)
		require.NoError(t, err)

		_, err = ParseAdminToken("jwt-secret", token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("MissingSecret", func(t *testing.T) {
		_, err := IssueAdminToken("", 1, time.Hour)
		assert.Error(t, err)
		_, err = ParseAdminToken("", "x.y.z")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
