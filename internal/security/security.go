package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24

	// MinAddressLen and MaxAddressLen bound the base58 text of a Solana public key.
	MinAddressLen = 32
	MaxAddressLen = 44
)

var (
	ErrEmptyKey       = errors.New("encryption key is empty")
	ErrDecrypt        = errors.New("unable to decrypt payload")
	ErrInvalidAddress = errors.New("invalid Solana address format")
)

// Manager encrypts secrets at rest and validates user input.
type Manager struct {
	key [keySize]byte
}

// NewManager derives a 32-byte key from the passphrase, truncating or padding with '0'.
func NewManager(passphrase string) (*Manager, error) {
	if passphrase == "" {
		return nil, ErrEmptyKey
	}
	m := &Manager{}
	copy(m.key[:], passphrase)
	for i := len(passphrase); i < keySize; i++ {
		m.key[i] = '0'
	}
	return m, nil
}

// Encrypt seals plaintext with a random nonce and returns URL-safe base64.
func (m *Manager) Encrypt(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &m.key)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt.
func (m *Manager) Decrypt(token string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrDecrypt
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &m.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// GenerateSignature returns the hex HMAC-SHA256 of data under the manager key.
func (m *Manager) GenerateSignature(data string) string {
	h := hmac.New(sha256.New, m.key[:])
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a signature from GenerateSignature in constant time.
func (m *Manager) VerifySignature(data, signature string) bool {
	expected := m.GenerateSignature(data)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ValidateSolanaAddress checks that addr is base58 text of a 32-byte public key.
func ValidateSolanaAddress(addr string) error {
	if len(addr) < MinAddressLen || len(addr) > MaxAddressLen {
		return ErrInvalidAddress
	}
	if _, err := solana.PublicKeyFromBase58(addr); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return nil
}
