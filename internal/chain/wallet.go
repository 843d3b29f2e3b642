package chain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// EncryptedPrefix marks a wallet key sealed with the security manager.
const EncryptedPrefix = "enc:"

var ErrEmptyWalletKey = errors.New("wallet key is empty")

// Decrypter opens an encrypted wallet key.
type Decrypter interface {
	Decrypt(token string) (string, error)
}

// LoadWallet parses a base58 secret key, a JSON byte array, or an "enc:" sealed key.
func LoadWallet(key string, dec Decrypter) (solana.PrivateKey, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrEmptyWalletKey
	}

	if strings.HasPrefix(key, EncryptedPrefix) {
		if dec == nil {
			return nil, errors.New("wallet key is encrypted but no decrypter is configured")
		}
		plain, err := dec.Decrypt(strings.TrimPrefix(key, EncryptedPrefix))
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt wallet key: %w", err)
		}
		return LoadWallet(plain, nil)
	}

	if strings.HasPrefix(key, "[") {
		var raw []byte
		if err := json.Unmarshal([]byte(key), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse wallet key array: %w", err)
		}
		if len(raw) != 64 {
			return nil, fmt.Errorf("wallet key array has %d bytes, expected 64", len(raw))
		}
		return solana.PrivateKey(raw), nil
	}

	pk, err := solana.PrivateKeyFromBase58(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse wallet key: %w", err)
	}
	return pk, nil
}
