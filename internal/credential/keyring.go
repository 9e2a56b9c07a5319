// Package credential persists the API session between runs: the bearer
// token and the serialized user profile, stored in the system keyring so
// they never land in a plaintext config file.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "triage"

const (
	keyToken = "api-token"
	keyUser  = "api-user"
)

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
		FileDir:                  "~/.config/triage/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("triage-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// StoreToken persists the bearer token.
func StoreToken(token string) error {
	return set(keyToken, token)
}

// LoadToken retrieves the stored bearer token.
func LoadToken() (string, error) {
	return get(keyToken)
}

// StoreUser persists the serialized user profile.
func StoreUser(raw string) error {
	return set(keyUser, raw)
}

// LoadUser retrieves the stored serialized user profile.
func LoadUser() (string, error) {
	return get(keyUser)
}

// Clear removes the token and the user record. Missing entries are not an
// error; logout must be idempotent.
func Clear() error {
	if err := remove(keyToken); err != nil {
		return err
	}
	return remove(keyUser)
}

func get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

func set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

func remove(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	if err := ring.Remove(key); err != nil && err != keyring.ErrKeyNotFound {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
