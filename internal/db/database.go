// Package db simulates documents, ordered lists, sorted trees and integer
// counters on top of a flat byte key-value store.
package db

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/coursebots/internal/store"
)

// Database hands out typed views over a single store.Store.
type Database struct {
	kv    store.Store
	locks *keyLocks
}

// New wraps kv. The Database does not own kv and never closes it.
func New(kv store.Store) *Database {
	return &Database{kv: kv, locks: &keyLocks{}}
}

// Document returns the document collection for docType.
func (d *Database) Document(docType string) *Documents {
	return &Documents{db: d, docType: docType}
}

// List returns the named list (listType, name).
func (d *Database) List(listType, name string) *List {
	return &List{db: d, header: key(nsList, listType, name), listType: listType, name: name}
}

// Tree returns the named tree (treeType, name).
func (d *Database) Tree(treeType, name string) *Tree {
	return &Tree{db: d, header: key(nsTree, treeType, name), treeType: treeType, name: name}
}

// Metadata returns the counter table.
func (d *Database) Metadata() *Metadata {
	return &Metadata{db: d}
}

func (d *Database) read(ctx context.Context, k []byte) ([]byte, error) {
	data, err := d.kv.Read(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", k, err)
	}
	return data, nil
}

func (d *Database) write(ctx context.Context, k, v []byte) error {
	if err := d.kv.Write(ctx, k, v); err != nil {
		return fmt.Errorf("failed to write %q: %w", k, err)
	}
	return nil
}

// readJSON decodes the value at k into v. It returns false when k holds
// nothing or a tombstone.
func (d *Database) readJSON(ctx context.Context, k []byte, v any) (bool, error) {
	data, err := d.read(ctx, k)
	if err != nil {
		return false, err
	}
	if !present(data) {
		return false, nil
	}
	if err := decode(data, v); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Database) writeJSON(ctx context.Context, k []byte, v any) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	return d.write(ctx, k, data)
}

func (d *Database) bury(ctx context.Context, k []byte) error {
	return d.write(ctx, k, tombstone)
}
