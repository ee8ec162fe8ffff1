// Package credential stores per-source secrets (API tokens, app
// passwords) in the OS keyring. Secrets never touch the database or the
// config file; sources receive them only inside the config blob built for
// one plugin invocation.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "nexus"

// ErrNotFound is returned when no credential is stored for a source.
var ErrNotFound = errors.New("credential not found")

// Store is the credential access surface used by the orchestrator.
type Store interface {
	// Get retrieves the secret for one source. Returns ErrNotFound when
	// the source has no stored credential.
	Get(sourceID string) (string, error)

	// Set stores or replaces the secret for one source.
	Set(sourceID, secret string) error

	// Delete removes the secret for one source.
	Delete(sourceID string) error
}

// KeyringStore implements Store over the system keyring, falling back to
// an encrypted file backend on platforms without a native service.
type KeyringStore struct{}

// NewKeyringStore returns a Store backed by the OS keyring.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/nexus/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("nexus-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

func (k *KeyringStore) Get(sourceID string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(sourceID)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("source %q: %w", sourceID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential for %q: %w", sourceID, err)
	}

	return string(item.Data), nil
}

func (k *KeyringStore) Set(sourceID, secret string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  sourceID,
		Data: []byte(secret),
	})
	if err != nil {
		return fmt.Errorf("setting credential for %q: %w", sourceID, err)
	}

	return nil
}

func (k *KeyringStore) Delete(sourceID string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(sourceID)
	if err != nil {
		return fmt.Errorf("deleting credential for %q: %w", sourceID, err)
	}

	return nil
}

// MemoryStore is an in-memory Store for tests and for running without a
// keyring service.
type MemoryStore struct {
	secrets map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]string)}
}

func (m *MemoryStore) Get(sourceID string) (string, error) {
	secret, ok := m.secrets[sourceID]
	if !ok {
		return "", fmt.Errorf("source %q: %w", sourceID, ErrNotFound)
	}
	return secret, nil
}

func (m *MemoryStore) Set(sourceID, secret string) error {
	m.secrets[sourceID] = secret
	return nil
}

func (m *MemoryStore) Delete(sourceID string) error {
	delete(m.secrets, sourceID)
	return nil
}
