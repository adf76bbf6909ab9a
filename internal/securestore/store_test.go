package securestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franckalain/leafmetric/internal/config"
	"github.com/redis/go-redis/v9"
)

// exerciseStore runs the behaviour every backend must share
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store: err = %v, want ErrNotFound", err)
	}
	if err := s.Set(ctx, "token", "abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "token", "def"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, err := s.Get(ctx, "token")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "def" {
		t.Errorf("Get = %q, want %q", got, "def")
	}
	if err := s.Delete(ctx, "token"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "token"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := s.Get(ctx, "token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Delete: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	exerciseStore(t, s)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFileStore(dir, "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := first.Set(ctx, "user", `{"id":1}`); err != nil {
		t.Fatalf("Set: %v", err)
	}

	second, err := NewFileStore(dir, "")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := second.Get(ctx, "user")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got != `{"id":1}` {
		t.Errorf("Get = %q", got)
	}
}

func TestFileStoreKeepsCorruptMasterKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, masterKeyFile)
	if err := os.WriteFile(path, []byte("short"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFileStore(dir, ""); err == nil {
		t.Fatal("expected an error for a truncated master key")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "short" {
		t.Errorf("master key was rewritten: %d bytes", len(data))
	}
}

func TestFileStoreEncryptsAtRest(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "passphrase")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s.Set(context.Background(), "token", "plain-secret-token"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	path := filepath.Join(dir, "token"+fileSuffix)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sealed file: %v", err)
	}
	if strings.Contains(string(raw), "plain-secret-token") {
		t.Error("sealed file contains the plaintext value")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	other, err := NewFileStore(dir, "another passphrase")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := other.Get(context.Background(), "token"); err == nil {
		t.Error("value opened with the wrong secret")
	}
}

func TestFileStoreRejectsPathKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "x")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s.Set(context.Background(), "../escape", "v"); err == nil {
		t.Error("expected invalid key error")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("LEAFMETRIC_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LEAFMETRIC_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	s := NewRedisStore(client, "test-"+t.Name())
	defer s.Close()
	exerciseStore(t, s)
}

func TestOpenSelectsBackend(t *testing.T) {
	var cfg config.Config
	cfg.Storage.Backend = "memory"
	s, err := Open(&cfg)
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("Open memory returned %T", s)
	}

	cfg.Storage.Backend = "file"
	cfg.Storage.Dir = t.TempDir()
	s, err = Open(&cfg)
	if err != nil {
		t.Fatalf("Open file: %v", err)
	}
	if _, ok := s.(*FileStore); !ok {
		t.Errorf("Open file returned %T", s)
	}

	cfg.Storage.Backend = "floppy"
	if _, err := Open(&cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}
