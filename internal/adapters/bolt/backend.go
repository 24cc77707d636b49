package bolt

// Package bolt provides the default durable storage backend: a single-file
// bbolt database, the local analog of storage that survives restarts.

import (
	"context"
	"errors"
	"fmt"

	"github.com/leadforge/sessionkit/internal/ports"
	"go.etcd.io/bbolt"
)

var bucketName = []byte("sessionkit")

// Backend is a bbolt-backed key/value store.
type Backend struct {
	db *bbolt.DB
}

var _ ports.Backend = (*Backend)(nil)

// NewBackend wraps an already-open bbolt database.
func NewBackend(db *bbolt.DB) *Backend {
	return &Backend{db: db}
}

// Open opens (creating if needed) the bbolt database at path.
func Open(path string) (*Backend, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	return NewBackend(db), nil
}

// Close closes the underlying database.
func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) Read(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return ports.ErrNotFound
		}
		data := bucket.Get([]byte(key))
		if data == nil {
			return ports.ErrNotFound
		}
		value = make([]byte, len(data))
		copy(value, data)
		return nil
	})
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("bolt read: %w", err)
	}
	return value, nil
}

func (b *Backend) Write(_ context.Context, key string, value []byte) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("bolt write: %w", err)
	}
	return nil
}

func (b *Backend) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("bolt delete: %w", err)
	}
	return nil
}
