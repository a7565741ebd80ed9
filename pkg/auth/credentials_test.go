package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// memoryStore is an in-process CredentialStore with error injection
type memoryStore struct {
	mu         sync.Mutex
	accounts   map[string]*Account
	storeError error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: make(map[string]*Account)}
}

func (m *memoryStore) Name() string { return "memory" }

func (m *memoryStore) Store(account *Account) error {
	if m.storeError != nil {
		return m.storeError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *account
	m.accounts[account.Username] = &c
	return nil
}

func (m *memoryStore) Retrieve(username string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	c := *a
	return &c, nil
}

func (m *memoryStore) List() ([]*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		c := *a
		out = append(out, &c)
	}
	return out, nil
}

func (m *memoryStore) Delete(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, username)
	return nil
}

func clearSessionEnv(t *testing.T) {
	t.Helper()
	for _, name := range SessionEnvVars {
		t.Setenv(name, "")
	}
}

func TestManagerStoreLookupDelete(t *testing.T) {
	clearSessionEnv(t)
	primary := newMemoryStore()
	manager := NewManagerWithStores(NewEnvironmentStore(), primary)

	source, err := manager.Store(&Account{SessionID: "12345%3Aabcdef"})
	require.NoError(t, err)
	assert.Equal(t, "memory", source, "environment store is read-only")

	account, from, err := manager.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, DefaultUsername, account.Username)
	assert.Equal(t, "12345%3Aabcdef", account.SessionID)
	assert.Equal(t, "memory", from)
	assert.False(t, account.LastModified.IsZero())

	require.NoError(t, manager.Delete(""))
	_, _, err = manager.Lookup("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	err = manager.Delete("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestManagerStoreRequiresSession(t *testing.T) {
	manager := NewManagerWithStores(newMemoryStore())
	_, err := manager.Store(&Account{Username: "someone"})
	assert.Error(t, err)
	_, err = manager.Store(nil)
	assert.Error(t, err)
}

func TestManagerStoreFallsThrough(t *testing.T) {
	broken := newMemoryStore()
	broken.storeError = errors.New("keychain locked")
	fallback := newMemoryStore()
	manager := NewManagerWithStores(broken, fallback)

	source, err := manager.Store(&Account{Username: "alice", SessionID: "sess"})
	require.NoError(t, err)
	assert.Equal(t, "memory", source)
	_, err = fallback.Retrieve("alice")
	assert.NoError(t, err)

	fallback.storeError = errors.New("disk full")
	_, err = manager.Store(&Account{Username: "alice", SessionID: "sess"})
	assert.ErrorContains(t, err, "disk full")
}

func TestManagerLookupFallsBackToNewest(t *testing.T) {
	clearSessionEnv(t)
	store := newMemoryStore()
	now := time.Now()
	require.NoError(t, store.Store(&Account{Username: "old", SessionID: "a", LastModified: now.Add(-time.Hour)}))
	require.NoError(t, store.Store(&Account{Username: "new", SessionID: "b", LastModified: now}))

	account, _, err := NewManagerWithStores(store).Lookup("")
	require.NoError(t, err)
	assert.Equal(t, "b", account.SessionID)
}

func TestEnvironmentStore(t *testing.T) {
	clearSessionEnv(t)
	store := NewEnvironmentStore()

	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	list, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, list)

	t.Setenv("INSTAGRAM_SESSION_ID", "legacy")
	account, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "legacy", account.SessionID)

	t.Setenv("IGFETCH_SESSION_ID", "current")
	account, err = store.Retrieve("bob")
	require.NoError(t, err)
	assert.Equal(t, "current", account.SessionID)
	assert.Equal(t, "bob", account.Username)

	assert.ErrorIs(t, store.Store(account), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("bob"), ErrStoreUnavailable)
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(PassphraseEnvVar, "test_passphrase_123")
	dir := filepath.Join(t.TempDir(), "creds", "sessions")

	store, err := NewEncryptedFileStore(dir)
	require.NoError(t, err)

	_, err = store.Retrieve("alice")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	stored := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Store(&Account{Username: "alice", SessionID: "secret-session", LastModified: stored}))
	require.NoError(t, store.Store(&Account{Username: "bob", SessionID: "other"}))

	path := filepath.Join(dir, "alice.session")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-session")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := NewEncryptedFileStore(dir)
	require.NoError(t, err)
	account, err := reopened.Retrieve("alice")
	require.NoError(t, err)
	assert.Equal(t, "secret-session", account.SessionID)
	assert.True(t, stored.Equal(account.LastModified))

	list, err := reopened.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].Username)
	assert.Equal(t, "bob", list[1].Username)

	require.NoError(t, reopened.Delete("alice"))
	assert.NoFileExists(t, path)
	assert.ErrorIs(t, reopened.Delete("alice"), ErrCredentialsNotFound)
}

func TestEncryptedFileStoreRejectsUnsafeNames(t *testing.T) {
	t.Setenv(PassphraseEnvVar, "p")
	store, err := NewEncryptedFileStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../escape", "a/b", "with space"} {
		assert.ErrorIs(t, store.Store(&Account{Username: name, SessionID: "s"}), ErrInvalidCredentials, name)
		_, err := store.Retrieve(name)
		assert.ErrorIs(t, err, ErrInvalidCredentials, name)
	}
	assert.ErrorIs(t, store.Store(&Account{Username: "alice"}), ErrInvalidCredentials)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	dir := t.TempDir()

	t.Setenv(PassphraseEnvVar, "first")
	store, err := NewEncryptedFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Username: "alice", SessionID: "s"}))

	t.Setenv(PassphraseEnvVar, "second")
	other, err := NewEncryptedFileStore(dir)
	require.NoError(t, err)
	_, err = other.Retrieve("alice")
	assert.ErrorContains(t, err, "decrypt")
}

func TestEncryptedFileStoreBindsName(t *testing.T) {
	t.Setenv(PassphraseEnvVar, "p")
	dir := t.TempDir()
	store, err := NewEncryptedFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Username: "alice", SessionID: "s"}))

	require.NoError(t, os.Rename(filepath.Join(dir, "alice.session"), filepath.Join(dir, "mallory.session")))
	_, err = store.Retrieve("mallory")
	assert.ErrorContains(t, err, "decrypt")
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(PassphraseEnvVar, "")

	store, err := NewEncryptedFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Username: "alice", SessionID: "s"}))
	assert.FileExists(t, filepath.Join(dir, ".passphrase"))

	reopened, err := NewEncryptedFileStore(dir)
	require.NoError(t, err)
	account, err := reopened.Retrieve("alice")
	require.NoError(t, err)
	assert.Equal(t, "s", account.SessionID)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	_, err = store.Retrieve("alice")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	require.NoError(t, store.Store(&Account{Username: "alice", SessionID: "kr"}))
	account, err := store.Retrieve("alice")
	require.NoError(t, err)
	assert.Equal(t, "kr", account.SessionID)

	require.NoError(t, store.Delete("alice"))
	assert.ErrorIs(t, store.Delete("alice"), ErrCredentialsNotFound)
	assert.ErrorIs(t, store.Store(&Account{}), ErrInvalidCredentials)
}

func TestResolveSession(t *testing.T) {
	clearSessionEnv(t)
	store := newMemoryStore()
	manager := NewManagerWithStores(NewEnvironmentStore(), store)

	assert.False(t, ResolveSession("", manager).Present())
	assert.False(t, ResolveSession("", nil).Present())

	_, err := manager.Store(&Account{SessionID: "stored"})
	require.NoError(t, err)
	cred := ResolveSession("", manager)
	assert.Equal(t, Credential{SessionID: "stored", Source: "memory"}, cred)

	t.Setenv("IGFETCH_SESSION_ID", "from-env")
	cred = ResolveSession("", manager)
	assert.Equal(t, Credential{SessionID: "from-env", Source: "environment"}, cred)

	cred = ResolveSession("configured", manager)
	assert.Equal(t, Credential{SessionID: "configured", Source: "config"}, cred)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "********", MaskSecret("short"))
	assert.Equal(t, "1234...cdef", MaskSecret("1234567890abcdef"))
}

func TestWriteSessionGuide(t *testing.T) {
	var buf bytes.Buffer
	WriteSessionGuide(&buf)
	assert.Contains(t, buf.String(), "sessionid")
	assert.Contains(t, buf.String(), "igfetch auth login")
}
