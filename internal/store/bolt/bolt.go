package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DefaultBucket holds every coursebots key.
const DefaultBucket = "coursebots"

var errNoBucket = errors.New("bolt: bucket missing")

// Store implements store.Store on a single bbolt bucket.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open opens (or creates) the bbolt file at path and makes sure the bucket exists.
func Open(path string, timeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bolt directory: %w", err)
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt file %s: %w", path, err)
	}

	s := &Store{db: db, bucket: []byte(DefaultBucket)}
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(s.bucket)
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return s, nil
}

func (s *Store) Read(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return errNoBucket
		}
		// values are only valid for the life of the transaction
		if v := b.Get(key); v != nil {
			out = bytes.Clone(v)
			if out == nil {
				out = []byte{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	return out, nil
}

func (s *Store) Write(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return errNoBucket
		}
		return b.Put(key, bytes.Clone(value))
	})
	if err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return nil
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.db.Path() }

func (s *Store) Close() error { return s.db.Close() }

// Ping fails once the database is closed.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(*bolt.Tx) error { return nil })
}
