package credentials

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	saltSize  = 16
	nonceSize = 24
)

var errStateCorrupt = errors.New("credentials: state file corrupt")

// persistedState is what survives a restart: the refresh token and the
// remember-me flag under fixed keys.
type persistedState struct {
	RefreshToken string `json:"refresh_token"`
	RememberMe   bool   `json:"remember_me"`
}

// FileStore keeps live credentials in memory and persists remembered
// sessions of DefaultKey to a state file. When a passphrase is configured
// the file is sealed with NaCl secretbox under an Argon2id-derived key.
type FileStore struct {
	*MemoryStore
	path       string
	passphrase []byte
}

// NewFileStore constructs a FileStore writing to path.
func NewFileStore(path, passphrase string) *FileStore {
	return &FileStore{MemoryStore: NewMemoryStore(), path: path, passphrase: []byte(passphrase)}
}

// Load reads persisted state into memory. A missing file is not an error.
func (s *FileStore) Load(ctx context.Context) error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("credentials: read state: %w", err)
	}
	plain, err := s.open(raw)
	if err != nil {
		return err
	}
	var state persistedState
	if err := json.Unmarshal(plain, &state); err != nil {
		return fmt.Errorf("credentials: decode state: %w", err)
	}
	if state.RefreshToken == "" {
		return nil
	}
	return s.MemoryStore.Set(ctx, DefaultKey, Credentials{RefreshToken: state.RefreshToken, RememberMe: state.RememberMe})
}

// Set implements Store.
func (s *FileStore) Set(ctx context.Context, key string, creds Credentials) error {
	if err := s.MemoryStore.Set(ctx, key, creds); err != nil {
		return err
	}
	if key != DefaultKey {
		return nil
	}
	if !creds.RememberMe || creds.RefreshToken == "" {
		return s.remove()
	}
	return s.write(persistedState{RefreshToken: creds.RefreshToken, RememberMe: true})
}

// Clear implements Store.
func (s *FileStore) Clear(ctx context.Context, key string) error {
	if err := s.MemoryStore.Clear(ctx, key); err != nil {
		return err
	}
	if key != DefaultKey {
		return nil
	}
	return s.remove()
}

func (s *FileStore) write(state persistedState) error {
	plain, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("credentials: encode state: %w", err)
	}
	data, err := s.seal(plain)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("credentials: create state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("credentials: write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("credentials: replace state: %w", err)
	}
	return nil
}

func (s *FileStore) remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("credentials: remove state: %w", err)
	}
	return nil
}

func (s *FileStore) seal(plain []byte) ([]byte, error) {
	if len(s.passphrase) == 0 {
		return plain, nil
	}
	header := make([]byte, saltSize+nonceSize)
	if _, err := io.ReadFull(rand.Reader, header); err != nil {
		return nil, fmt.Errorf("credentials: random: %w", err)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], header[saltSize:])
	key := s.deriveKey(header[:saltSize])
	return secretbox.Seal(header, plain, &nonce, &key), nil
}

func (s *FileStore) open(data []byte) ([]byte, error) {
	if len(s.passphrase) == 0 {
		return data, nil
	}
	if len(data) < saltSize+nonceSize+secretbox.Overhead {
		return nil, errStateCorrupt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], data[saltSize:saltSize+nonceSize])
	key := s.deriveKey(data[:saltSize])
	plain, ok := secretbox.Open(nil, data[saltSize+nonceSize:], &nonce, &key)
	if !ok {
		return nil, errStateCorrupt
	}
	return plain, nil
}

func (s *FileStore) deriveKey(salt []byte) [32]byte {
	var key [32]byte
	copy(key[:], argon2.IDKey(s.passphrase, salt, 1, 64*1024, 4, 32))
	return key
}

var _ Store = (*FileStore)(nil)
