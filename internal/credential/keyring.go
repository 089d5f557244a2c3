package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/99designs/keyring"

	"github.com/nhle/craftnotify/internal/model"
)

const serviceName = "craftnotify"

// TokenEnv overrides the keyring lookup when set.
const TokenEnv = model.EnvPrefix + "_TOKEN"

// ErrNoToken is returned when no API token is stored for an account.
var ErrNoToken = errors.New("no marketplace token stored")

// Store reads and writes marketplace API tokens.
type Store struct {
	ring keyring.Keyring
}

// Open returns a Store backed by the system keyring.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(model.ConfigDir(), "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("craftnotify-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewStore(ring), nil
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// TokenKey is the keyring key holding the token of account.
func TokenKey(account string) string {
	return "marketplace-token-" + account
}

// Token returns the token stored for account.
func (s *Store) Token(account string) (string, error) {
	item, err := s.ring.Get(TokenKey(account))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("account %q: %w", account, ErrNoToken)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", TokenKey(account), err)
	}
	return string(item.Data), nil
}

// SetToken stores token for account.
func (s *Store) SetToken(account, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token must not be empty")
	}

	err := s.ring.Set(keyring.Item{
		Key:   TokenKey(account),
		Data:  []byte(token),
		Label: "craftnotify marketplace token (" + account + ")",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", TokenKey(account), err)
	}
	return nil
}

// DeleteToken removes the token of account.
func (s *Store) DeleteToken(account string) error {
	if err := s.ring.Remove(TokenKey(account)); err != nil {
		return fmt.Errorf("deleting credential %q: %w", TokenKey(account), err)
	}
	return nil
}

// Resolve returns the token from the environment if set, otherwise from
// the keyring.
func (s *Store) Resolve(account string) (string, error) {
	if token := strings.TrimSpace(os.Getenv(TokenEnv)); token != "" {
		return token, nil
	}
	return s.Token(account)
}
