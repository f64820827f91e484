// Package credential keeps XSOAR API keys in the operating system keyring.
// Keys never touch the servers file or the database.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "xsoar-feeder"

// ErrNotFound is returned when no key is stored for a server.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes API keys by server name.
type Store struct {
	ring keyring.Keyring
}

// Open returns a Store on the first available system backend. fileDir is
// where the encrypted file backend keeps its data when no OS keyring is
// available.
func Open(fileDir string) (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("xsoar-feeder-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

func itemKey(server string) string {
	return "server:" + server
}

// APIKey returns the API key stored for server.
func (s *Store) APIKey(server string) (string, error) {
	item, err := s.ring.Get(itemKey(server))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, server)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", server, err)
	}
	return string(item.Data), nil
}

// SetAPIKey stores the API key for server, replacing any previous one.
func (s *Store) SetAPIKey(server, key string) error {
	if key == "" {
		return errors.New("API key is empty")
	}
	err := s.ring.Set(keyring.Item{
		Key:         itemKey(server),
		Data:        []byte(key),
		Label:       "XSOAR API key (" + server + ")",
		Description: "xsoar-feeder",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", server, err)
	}
	return nil
}

// Delete removes the API key for server. Removing a missing key is not
// an error.
func (s *Store) Delete(server string) error {
	err := s.ring.Remove(itemKey(server))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", server, err)
	}
	return nil
}
