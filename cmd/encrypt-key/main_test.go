package main

import (
	"strings"
	"testing"

	"mex-balancer-bot-go/internal/chain"
	"mex-balancer-bot-go/internal/security"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passphrase = "test-encryption-key"

func TestSealKey_RoundTripsThroughLoadWallet(t *testing.T) {
	// Arrange
	wallet := solana.NewWallet()
	mgr, err := security.NewManager(passphrase)
	require.NoError(t, err)

	// Act
	sealed, err := sealKey(wallet.PrivateKey.String(), passphrase)

	// Assert
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, chain.EncryptedPrefix))
	assert.NotContains(t, sealed, wallet.PrivateKey.String())
	loaded, err := chain.LoadWallet(sealed, mgr)
	require.NoError(t, err)
	assert.Equal(t, wallet.PublicKey(), loaded.PublicKey())
}

func TestSealKey_Errors(t *testing.T) {
	valid := solana.NewWallet().PrivateKey.String()

	testCases := []struct {
		name       string
		key        string
		passphrase string
	}{
		{"NotAKey", "definitely-not-base58!", passphrase},
		{"AlreadySealed", chain.EncryptedPrefix + "abc", passphrase},
		{"NoPassphrase", valid, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := sealKey(tc.key, tc.passphrase)
			assert.Error(t, err)
		})
	}
}

func TestReadKey(t *testing.T) {
	key, err := readKey(strings.NewReader("\n  abc123  \nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", key)

	_, err = readKey(strings.NewReader("\n\n"))
	assert.Error(t, err)
}
