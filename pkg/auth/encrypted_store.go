package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// PassphraseEnvVar overrides the generated encryption passphrase
const PassphraseEnvVar = "IGFETCH_PASSPHRASE"

const (
	sessionSuffix     = ".session"
	passphraseFile    = ".passphrase"
	sealedVersion     = 1
	saltSize          = 16
	keySize           = 32
	pbkdf2Iterations  = 100000
	generatedPassSize = 32
)

var sessionNameRe = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// sealedSession is the on-disk form of one session. The session name is
// bound as additional data, so a renamed file no longer decrypts.
type sealedSession struct {
	Version  int       `json:"v"`
	Salt     []byte    `json:"salt"`
	Nonce    []byte    `json:"nonce"`
	Sealed   []byte    `json:"sealed"`
	Modified time.Time `json:"modified"`
}

// EncryptedFileStore keeps each session in its own AES-GCM sealed file
// (<dir>/<name>.session) under a PBKDF2-derived key.
type EncryptedFileStore struct {
	dir        string
	passphrase []byte
	mu         sync.Mutex
}

// NewEncryptedFileStore opens the session directory, creating it and a
// random passphrase on first use unless IGFETCH_PASSPHRASE is set
func NewEncryptedFileStore(dir string) (*EncryptedFileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	passphrase, err := loadPassphrase(dir)
	if err != nil {
		return nil, err
	}
	return &EncryptedFileStore{dir: dir, passphrase: passphrase}, nil
}

// Name implements CredentialStore
func (e *EncryptedFileStore) Name() string { return "encrypted_file" }

// Store seals the account's session under its username
func (e *EncryptedFileStore) Store(account *Account) error {
	if account == nil || account.SessionID == "" || !sessionNameRe.MatchString(account.Username) {
		return ErrInvalidCredentials
	}

	modified := account.LastModified
	if modified.IsZero() {
		modified = time.Now()
	}
	record := sealedSession{
		Version:  sealedVersion,
		Salt:     make([]byte, saltSize),
		Modified: modified.UTC(),
	}
	if _, err := rand.Read(record.Salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := e.cipher(record.Salt)
	if err != nil {
		return err
	}
	record.Nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(record.Nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	record.Sealed = gcm.Seal(nil, record.Nonce, []byte(account.SessionID), []byte(account.Username))

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	path := e.path(account.Username)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Retrieve opens the session stored under username
func (e *EncryptedFileStore) Retrieve(username string) (*Account, error) {
	if !sessionNameRe.MatchString(username) {
		return nil, ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open(username)
}

// List opens every stored session, sorted by name
func (e *EncryptedFileStore) List() ([]*Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(e.dir, "*"+sessionSuffix))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	accounts := make([]*Account, 0, len(paths))
	for _, p := range paths {
		account, err := e.open(strings.TrimSuffix(filepath.Base(p), sessionSuffix))
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// Delete removes the session stored under username
func (e *EncryptedFileStore) Delete(username string) error {
	if !sessionNameRe.MatchString(username) {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.Remove(e.path(username)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (e *EncryptedFileStore) path(username string) string {
	return filepath.Join(e.dir, username+sessionSuffix)
}

// open must be called with mu held
func (e *EncryptedFileStore) open(username string) (*Account, error) {
	data, err := os.ReadFile(e.path(username))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var record sealedSession
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", username, err)
	}
	if record.Version != sealedVersion {
		return nil, fmt.Errorf("session %s: unsupported format version %d", username, record.Version)
	}

	gcm, err := e.cipher(record.Salt)
	if err != nil {
		return nil, err
	}
	if len(record.Nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("session %s: malformed nonce", username)
	}
	sessionID, err := gcm.Open(nil, record.Nonce, record.Sealed, []byte(username))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session %s: %w", username, err)
	}

	return &Account{
		Username:     username,
		SessionID:    string(sessionID),
		LastModified: record.Modified,
	}, nil
}

func (e *EncryptedFileStore) cipher(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(e.passphrase, salt, pbkdf2Iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// loadPassphrase reads IGFETCH_PASSPHRASE, or the .passphrase file in dir,
// generating it on first use
func loadPassphrase(dir string) ([]byte, error) {
	if pass := os.Getenv(PassphraseEnvVar); pass != "" {
		return []byte(pass), nil
	}

	path := filepath.Join(dir, passphraseFile)
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return content, nil
	}

	raw := make([]byte, generatedPassSize)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate passphrase: %w", err)
	}
	pass := []byte(base64.RawURLEncoding.EncodeToString(raw))
	if err := os.WriteFile(path, pass, 0600); err != nil {
		return nil, fmt.Errorf("failed to save passphrase: %w", err)
	}
	return pass, nil
}
