package securestore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/crypto/hkdf"
)

const (
	masterKeyFile = ".master.key"
	fileSuffix    = ".sealed"
	hkdfInfo      = "leafmetric-securestore-v1"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// FileStore seals each value with AES-GCM into its own file under dir
type FileStore struct {
	dir  string
	aead cipher.AEAD
}

// NewFileStore opens (creating if needed) an encrypted store in dir.
// The encryption key is derived from secret; with an empty secret a random
// master key is generated once and kept in dir.
func NewFileStore(dir, secret string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}

	ikm := []byte(secret)
	if secret == "" {
		var err error
		ikm, err = loadOrCreateMasterKey(filepath.Join(dir, masterKeyFile))
		if err != nil {
			return nil, err
		}
	}

	key, err := deriveKey(ikm)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return &FileStore{dir: dir, aead: aead}, nil
}

func deriveKey(ikm []byte) ([]byte, error) {
	h := hkdf.New(sha256.New, ikm, nil, []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

func loadOrCreateMasterKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	switch {
	case err == nil && len(key) == 32:
		return key, nil
	case err == nil:
		// An existing key is never overwritten
		return nil, fmt.Errorf("master key %s is corrupt (%d bytes, want 32)", path, len(key))
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to read master key: %w", err)
	}

	key = make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	if err := writeFileAtomic(path, key); err != nil {
		return nil, fmt.Errorf("failed to write master key: %w", err)
	}
	return key, nil
}

func (f *FileStore) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(f.dir, key+fileSuffix), nil
}

func (f *FileStore) Get(ctx context.Context, key string) (string, error) {
	path, err := f.path(key)
	if err != nil {
		return "", err
	}
	sealed, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}

	ns := f.aead.NonceSize()
	if len(sealed) < ns {
		return "", fmt.Errorf("sealed value for %s is truncated", key)
	}
	// The key name is authenticated so files cannot be swapped
	plain, err := f.aead.Open(nil, sealed[:ns], sealed[ns:], []byte(key))
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", key, err)
	}
	return string(plain), nil
}

func (f *FileStore) Set(ctx context.Context, key, value string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	nonce := make([]byte, f.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := f.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	if err := writeFileAtomic(path, sealed); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (f *FileStore) Delete(ctx context.Context, key string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
