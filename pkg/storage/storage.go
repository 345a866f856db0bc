// Package storage provides blob storage with Azure Blob Storage and local filesystem providers.
package storage

import (
	"context"
	"io"
	"log/slog"

	"github.com/JaimeStill/lectern/pkg/lifecycle"
)

// System manages blob storage operations and lifecycle coordination.
type System interface {
	// Start registers a startup hook that prepares the backing container or directory.
	Start(lc *lifecycle.Coordinator) error
	// Put streams data to the blob at key and returns the reference to store.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
	// Get returns a stream for the blob at key. The caller must close the reader.
	// Returns ErrNotFound if the blob does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob at key. Returns ErrNotFound if the blob does not exist.
	Delete(ctx context.Context, key string) error
	// Exists reports whether a blob exists at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// New creates a storage system for the configured provider.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	if cfg.Provider == ProviderLocal {
		return newLocal(cfg, logger), nil
	}
	return newAzure(cfg, logger)
}

// ReadAll fetches the blob at key into memory.
func ReadAll(ctx context.Context, s System, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
