package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Documents is a collection of records of one type, addressed by id.
type Documents struct {
	db      *Database
	docType string
}

// Record is a snapshot of a document: a bag of named JSON fields.
type Record struct {
	ID     string
	fields map[string]json.RawMessage
}

// Has reports whether field is set to a non-null value.
func (r *Record) Has(field string) bool {
	raw, ok := r.fields[field]
	return ok && string(raw) != "null"
}

// Fields lists the field names present in the snapshot, sorted.
func (r *Record) Fields() []string {
	out := make([]string, 0, len(r.fields))
	for f := range r.fields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Get decodes field into v. A missing field leaves v untouched.
func (r *Record) Get(field string, v any) error {
	raw, ok := r.fields[field]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode field %s: %w", field, err)
	}
	return nil
}

// String returns a string field, or "" when missing or of another type.
func (r *Record) String(field string) string {
	var s string
	_ = r.Get(field, &s)
	return s
}

// StringPtr returns nil when field is missing or null.
func (r *Record) StringPtr(field string) *string {
	if !r.Has(field) {
		return nil
	}
	s := r.String(field)
	return &s
}

// Int64 returns an integer field, or 0.
func (r *Record) Int64(field string) int64 {
	var n int64
	_ = r.Get(field, &n)
	return n
}

// Strings returns a string slice field, or nil.
func (r *Record) Strings(field string) []string {
	var s []string
	_ = r.Get(field, &s)
	return s
}

func (r *Record) project(fields []string) *Record {
	if len(fields) == 0 {
		return r
	}
	out := &Record{ID: r.ID, fields: make(map[string]json.RawMessage, len(fields))}
	for _, f := range fields {
		if raw, ok := r.fields[f]; ok {
			out.fields[f] = raw
		}
	}
	return out
}

// Builder collects field assignments for a create or an update.
type Builder struct {
	docs   *Documents
	id     string
	create bool
	values map[string]json.RawMessage
	err    error
}

// Create starts a new record at id. Exec fails with ErrAlreadyExists if a
// live record is already stored there.
func (d *Documents) Create(id string) *Builder {
	return &Builder{docs: d, id: id, create: true, values: map[string]json.RawMessage{}}
}

// Update starts a partial update of the record at id. Exec fails with
// ErrNotFound when there is nothing to update.
func (d *Documents) Update(id string) *Builder {
	return &Builder{docs: d, id: id, values: map[string]json.RawMessage{}}
}

// Set assigns field. A nil v stores null, which Has reports as unset.
func (b *Builder) Set(field string, v any) *Builder {
	if b.err != nil {
		return b
	}
	raw, err := json.Marshal(v)
	if err != nil {
		b.err = fmt.Errorf("failed to encode field %s: %w", field, err)
		return b
	}
	b.values[field] = raw
	return b
}

// Exec writes the record and returns the full stored snapshot.
func (b *Builder) Exec(ctx context.Context) (*Record, error) {
	if b.err != nil {
		return nil, b.err
	}
	d := b.docs
	k := d.key(b.id)
	unlock := d.db.locks.lock(k)
	defer unlock()

	fields := map[string]json.RawMessage{}
	found, err := d.db.readJSON(ctx, k, &fields)
	if err != nil {
		return nil, err
	}
	switch {
	case b.create && found:
		return nil, fmt.Errorf("%s %q: %w", d.docType, b.id, ErrAlreadyExists)
	case !b.create && !found:
		return nil, fmt.Errorf("%s %q: %w", d.docType, b.id, ErrNotFound)
	case b.create:
		fields = map[string]json.RawMessage{}
	}

	for f, raw := range b.values {
		fields[f] = raw
	}
	if err := d.db.writeJSON(ctx, k, fields); err != nil {
		return nil, err
	}
	return &Record{ID: b.id, fields: fields}, nil
}

// Find returns the record at id restricted to fields (all fields when none
// are given), or nil if no record exists.
func (d *Documents) Find(ctx context.Context, id string, fields ...string) (*Record, error) {
	rec, err := d.load(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.project(fields), nil
}

// Exists reports whether a live record is stored at id.
func (d *Documents) Exists(ctx context.Context, id string) (bool, error) {
	rec, err := d.load(ctx, id)
	return rec != nil, err
}

// Delete tombstones the record at id and returns its last snapshot, or nil
// if there was nothing to delete.
func (d *Documents) Delete(ctx context.Context, id string, fields ...string) (*Record, error) {
	k := d.key(id)
	unlock := d.db.locks.lock(k)
	defer unlock()

	rec, err := d.load(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	if err := d.db.bury(ctx, k); err != nil {
		return nil, err
	}
	return rec.project(fields), nil
}

func (d *Documents) load(ctx context.Context, id string) (*Record, error) {
	fields := map[string]json.RawMessage{}
	found, err := d.db.readJSON(ctx, d.key(id), &fields)
	if err != nil || !found {
		return nil, err
	}
	return &Record{ID: id, fields: fields}, nil
}

func (d *Documents) key(id string) []byte {
	return key(nsDocument, d.docType, id)
}
