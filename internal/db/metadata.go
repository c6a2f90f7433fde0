package db

import (
	"context"
	"fmt"
	"strconv"
)

// Metadata holds int64 counters addressed by (label, key).
type Metadata struct {
	db *Database
}

// Find returns the counter value and whether it exists.
func (m *Metadata) Find(ctx context.Context, label, k string) (int64, bool, error) {
	data, err := m.db.read(ctx, m.key(label, k))
	if err != nil || !present(data) {
		return 0, false, err
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("counter %s/%s holds %q: %w", label, k, data, err)
	}
	return n, true, nil
}

// Create sets the counter only when it does not exist yet. It reports
// whether the counter was created.
func (m *Metadata) Create(ctx context.Context, label, k string, value int64) (bool, error) {
	ck := m.key(label, k)
	unlock := m.db.locks.lock(ck)
	defer unlock()

	if _, found, err := m.Find(ctx, label, k); err != nil || found {
		return false, err
	}
	return true, m.put(ctx, ck, value)
}

// Update sets the counter to value, creating it if needed.
func (m *Metadata) Update(ctx context.Context, label, k string, value int64) error {
	ck := m.key(label, k)
	unlock := m.db.locks.lock(ck)
	defer unlock()
	return m.put(ctx, ck, value)
}

// UpdateBy adds delta to the counter and returns the new value. An absent
// counter is created holding delta.
func (m *Metadata) UpdateBy(ctx context.Context, label, k string, delta int64) (int64, error) {
	ck := m.key(label, k)
	unlock := m.db.locks.lock(ck)
	defer unlock()

	cur, _, err := m.Find(ctx, label, k)
	if err != nil {
		return 0, err
	}
	next := cur + delta
	return next, m.put(ctx, ck, next)
}

// UpdateIfExists adds delta only to an existing counter. It reports whether
// the counter existed.
func (m *Metadata) UpdateIfExists(ctx context.Context, label, k string, delta int64) (bool, error) {
	ck := m.key(label, k)
	unlock := m.db.locks.lock(ck)
	defer unlock()

	cur, found, err := m.Find(ctx, label, k)
	if err != nil || !found {
		return false, err
	}
	return true, m.put(ctx, ck, cur+delta)
}

// Delete removes the counter. A deleted counter is absent, not zero.
func (m *Metadata) Delete(ctx context.Context, label, k string) (bool, error) {
	ck := m.key(label, k)
	unlock := m.db.locks.lock(ck)
	defer unlock()

	if _, found, err := m.Find(ctx, label, k); err != nil || !found {
		return false, err
	}
	return true, m.db.bury(ctx, ck)
}

func (m *Metadata) put(ctx context.Context, ck []byte, v int64) error {
	return m.db.write(ctx, ck, []byte(strconv.FormatInt(v, 10)))
}

func (m *Metadata) key(label, k string) []byte {
	return key(nsMetadata, label, k)
}
