package oracle

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
)

// memguardInitOnce ensures memguard initialization happens only once.
var memguardInitOnce sync.Once

// initMemguard arms memguard's interrupt handler so locked buffers are
// wiped even when the process dies on SIGINT.
func initMemguard() {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
	})
}

// Keyring holds an API key in an encrypted enclave. The plaintext
// exists in locked memory only for the instant a request is signed,
// instead of sitting in a reachable Go string for the process
// lifetime.
type Keyring struct {
	enclave *memguard.Enclave
}

// NewKeyring seals the key into the enclave.
func NewKeyring(key string) *Keyring {
	initMemguard()
	return &Keyring{enclave: memguard.NewEnclave([]byte(key))}
}

// WithKey opens the enclave, hands the plaintext to fn, and destroys
// the locked buffer before returning.
func (k *Keyring) WithKey(fn func(key string) error) error {
	buf, err := k.enclave.Open()
	if err != nil {
		return fmt.Errorf("opening key enclave: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.String())
}

// loadAPIKey resolves an API key from the environment, falling back to
// the container secrets mount.
func loadAPIKey(envVar, secretPath string) (string, error) {
	key := os.Getenv(envVar)
	if key == "" {
		if content, err := os.ReadFile(secretPath); err == nil {
			key = strings.TrimSpace(string(content))
			slog.Info("Read the oracle API key from container secrets", "path", secretPath)
		}
	}
	if key == "" {
		slog.Error("Oracle API key not set and secret not found", "env", envVar, "path", secretPath)
		return "", fmt.Errorf("%s environment variable not set", envVar)
	}
	return key, nil
}
