package auth

import (
	"os"
	"time"
)

// Environment variables holding a session, in precedence order
var SessionEnvVars = []string{"IGFETCH_SESSION_ID", "INSTAGRAM_SESSION_ID"}

// EnvironmentStore implements CredentialStore using environment variables.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Name implements CredentialStore
func (e *EnvironmentStore) Name() string { return "environment" }

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the session from the environment for any username
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	sessionID := sessionFromEnv()
	if sessionID == "" {
		return nil, ErrCredentialsNotFound
	}

	if username == "" {
		username = DefaultUsername
	}

	return &Account{
		Username:     username,
		SessionID:    sessionID,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if a session variable is set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

func sessionFromEnv() string {
	for _, name := range SessionEnvVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
