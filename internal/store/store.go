// Package store defines the flat byte key-value contract every storage
// structure in coursebots is built on.
package store

import (
	"context"
	"errors"
)

// Store is an opaque byte-key -> byte-value store.
//
// Read returns (nil, nil) when the key was never written. Implementations
// must copy the slices they are handed and the slices they return, so
// callers are free to reuse their buffers.
type Store interface {
	Read(ctx context.Context, key []byte) ([]byte, error)
	Write(ctx context.Context, key, value []byte) error
	Close() error
}

// Pinger is implemented by backends that can become unavailable at runtime.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("store: closed")

// Ping reports the health of s. Backends without a Pinger are always healthy.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
