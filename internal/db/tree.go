package db

import (
	"cmp"
	"context"
	"slices"
	"strconv"
)

// TreeKey orders by Primary, then Secondary.
type TreeKey struct {
	Primary   int64  `json:"p"`
	Secondary string `json:"s"`
}

func (k TreeKey) Compare(o TreeKey) int {
	if c := cmp.Compare(k.Primary, o.Primary); c != 0 {
		return c
	}
	return cmp.Compare(k.Secondary, o.Secondary)
}

// TreeEntry is one key/value pair of a Tree.
type TreeEntry struct {
	Key   TreeKey
	Value string
}

// Tree is a persistent sorted map from TreeKey to string.
//
// The header keeps the sorted key set; each value lives under its own key so
// Search is a single read.
type Tree struct {
	db       *Database
	header   []byte
	treeType string
	name     string
}

type treeHeader struct {
	Keys []TreeKey `json:"keys"`
}

// Insert adds key -> value. It returns false and changes nothing when key is
// already present.
func (t *Tree) Insert(ctx context.Context, k TreeKey, value string) (bool, error) {
	unlock := t.db.locks.lock(t.header)
	defer unlock()

	h, err := t.readHeader(ctx)
	if err != nil {
		return false, err
	}
	i, found := slices.BinarySearchFunc(h.Keys, k, TreeKey.Compare)
	if found {
		return false, nil
	}
	if err := t.db.writeJSON(ctx, t.entryKey(k), value); err != nil {
		return false, err
	}
	h.Keys = slices.Insert(h.Keys, i, k)
	if err := t.db.writeJSON(ctx, t.header, h); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes key. It reports whether key was present.
func (t *Tree) Delete(ctx context.Context, k TreeKey) (bool, error) {
	unlock := t.db.locks.lock(t.header)
	defer unlock()

	h, err := t.readHeader(ctx)
	if err != nil {
		return false, err
	}
	i, found := slices.BinarySearchFunc(h.Keys, k, TreeKey.Compare)
	if !found {
		return false, nil
	}
	if err := t.db.bury(ctx, t.entryKey(k)); err != nil {
		return false, err
	}
	h.Keys = slices.Delete(h.Keys, i, i+1)
	if err := t.db.writeJSON(ctx, t.header, h); err != nil {
		return false, err
	}
	return true, nil
}

// Search returns the value at key, or nil.
func (t *Tree) Search(ctx context.Context, k TreeKey) (*string, error) {
	var v string
	found, err := t.db.readJSON(ctx, t.entryKey(k), &v)
	if err != nil || !found {
		return nil, err
	}
	return &v, nil
}

// Contains reports whether key is present.
func (t *Tree) Contains(ctx context.Context, k TreeKey) (bool, error) {
	v, err := t.Search(ctx, k)
	return v != nil, err
}

// Max returns the entry with the largest key, or nil for an empty tree.
func (t *Tree) Max(ctx context.Context) (*TreeEntry, error) {
	h, err := t.readHeader(ctx)
	if err != nil || len(h.Keys) == 0 {
		return nil, err
	}
	k := h.Keys[len(h.Keys)-1]
	v, err := t.Search(ctx, k)
	if err != nil || v == nil {
		return nil, err
	}
	return &TreeEntry{Key: k, Value: *v}, nil
}

// Entries materialises the tree in ascending key order.
func (t *Tree) Entries(ctx context.Context) ([]TreeEntry, error) {
	unlock := t.db.locks.lock(t.header)
	defer unlock()

	h, err := t.readHeader(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TreeEntry, 0, len(h.Keys))
	for _, k := range h.Keys {
		v, err := t.Search(ctx, k)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out = append(out, TreeEntry{Key: k, Value: *v})
		}
	}
	return out, nil
}

// Len returns the number of entries.
func (t *Tree) Len(ctx context.Context) (int, error) {
	h, err := t.readHeader(ctx)
	return len(h.Keys), err
}

// Clear removes every entry.
func (t *Tree) Clear(ctx context.Context) error {
	unlock := t.db.locks.lock(t.header)
	defer unlock()

	h, err := t.readHeader(ctx)
	if err != nil || len(h.Keys) == 0 {
		return err
	}
	for _, k := range h.Keys {
		if err := t.db.bury(ctx, t.entryKey(k)); err != nil {
			return err
		}
	}
	return t.db.writeJSON(ctx, t.header, treeHeader{Keys: []TreeKey{}})
}

func (t *Tree) readHeader(ctx context.Context) (treeHeader, error) {
	var h treeHeader
	_, err := t.db.readJSON(ctx, t.header, &h)
	return h, err
}

func (t *Tree) entryKey(k TreeKey) []byte {
	return key(nsTreeEntry, t.treeType, t.name, strconv.FormatInt(k.Primary, 10), k.Secondary)
}
