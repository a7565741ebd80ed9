package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// DefaultUsername labels a credential stored without an account name
const DefaultUsername = "default"

// Account is a stored Instagram session
type Account struct {
	Username     string    `json:"username"`
	SessionID    string    `json:"session_id"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Name identifies the backend in status output
	Name() string

	// Store saves credentials for a given account
	Store(account *Account) error

	// Retrieve gets credentials for a specific username
	Retrieve(username string) (*Account, error)

	// List returns all stored accounts the backend can enumerate
	List() ([]*Account, error)

	// Delete removes credentials for a specific username
	Delete(username string) error
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager over the system keyring (when
// available) and encrypted session files under the config directory. The
// environment is consulted first on lookups.
func NewManager() (*Manager, error) {
	stores := []CredentialStore{NewEnvironmentStore()}

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "sessions"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over explicit backends, consulted
// in order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves credentials in the first backend that accepts them and
// returns that backend's name
func (m *Manager) Store(account *Account) (string, error) {
	if account == nil || account.SessionID == "" {
		return "", errors.New("session ID is required")
	}
	if account.Username == "" {
		account.Username = DefaultUsername
	}
	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return store.Name(), nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return "", ErrStoreUnavailable
}

// Lookup finds the credential for username (DefaultUsername when empty)
// and reports which backend held it
func (m *Manager) Lookup(username string) (*Account, string, error) {
	if username == "" {
		username = DefaultUsername
	}
	for _, store := range m.stores {
		if account, err := store.Retrieve(username); err == nil && account != nil {
			return account, store.Name(), nil
		}
	}

	// Fall back to any enumerable account, newest first
	var (
		newest *Account
		source string
	)
	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if newest == nil || account.LastModified.After(newest.LastModified) {
				newest, source = account, store.Name()
			}
		}
	}
	if newest != nil {
		return newest, source, nil
	}

	return nil, "", ErrCredentialsNotFound
}

// Delete removes the credential for username from every writable backend
func (m *Manager) Delete(username string) error {
	if username == "" {
		username = DefaultUsername
	}

	var (
		deleted bool
		lastErr error
	)
	for _, store := range m.stores {
		err := store.Delete(username)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrCredentialsNotFound), errors.Is(err, ErrStoreUnavailable):
		default:
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	return fmt.Errorf("%w for user: %s", ErrCredentialsNotFound, username)
}

// Credential is a resolved session and where it came from
type Credential struct {
	SessionID string
	Source    string
}

// Present reports whether a session was found
func (c Credential) Present() bool {
	return c.SessionID != ""
}

// ResolveSession picks the session used for stories: the configured value
// (config file or environment, already merged) wins, then the stores.
// A missing session is not an error.
func ResolveSession(configured string, m *Manager) Credential {
	if configured != "" {
		return Credential{SessionID: configured, Source: "config"}
	}
	if m == nil {
		return Credential{}
	}
	account, source, err := m.Lookup("")
	if err != nil {
		return Credential{}
	}
	return Credential{SessionID: account.SessionID, Source: source}
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "igfetch")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "igfetch")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "igfetch")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "igfetch")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// MaskSecret masks all but the first 4 and last 4 characters of a string
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
