// Package securestore keeps small secrets, such as the session token, on the device.
package securestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/franckalain/leafmetric/internal/config"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Get when the key has no value
var ErrNotFound = errors.New("securestore: key not found")

// Store is a string key/value store for device secrets
type Store interface {
	// Get returns the value for key or ErrNotFound
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error
	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}

// Open creates the store selected by the storage configuration
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case "file":
		return NewFileStore(cfg.Storage.Dir, cfg.Storage.Secret)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		return NewRedisStore(client, "device"), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}
