// Command encrypt-key seals a wallet private key read from stdin with
// ENCRYPTION_KEY and prints the "enc:" value to put in SOL_MAIN.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"mex-balancer-bot-go/internal/chain"
	"mex-balancer-bot-go/internal/config"
	"mex-balancer-bot-go/internal/security"
)

func main() {
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	key, err := readKey(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read wallet key: %v\n", err)
		os.Exit(1)
	}

	sealed, err := sealKey(key, cfg.Security.EncryptionKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encrypt wallet key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(sealed)
}

// readKey returns the first non-empty line of r.
func readKey(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", errors.New("no key on stdin")
}

// sealKey checks that key parses as a wallet and encrypts it under passphrase.
func sealKey(key, passphrase string) (string, error) {
	if strings.HasPrefix(key, chain.EncryptedPrefix) {
		return "", errors.New("key is already encrypted")
	}
	if _, err := chain.LoadWallet(key, nil); err != nil {
		return "", err
	}
	mgr, err := security.NewManager(passphrase)
	if err != nil {
		return "", err
	}
	sealed, err := mgr.Encrypt(key)
	if err != nil {
		return "", err
	}
	return chain.EncryptedPrefix + sealed, nil
}
