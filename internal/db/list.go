package db

import (
	"context"
	"fmt"
)

// List is a persistent, duplicate-free, insertion ordered sequence of strings.
//
// It is stored as a doubly linked list: one header with head, tail and size,
// plus one node per value keyed by the value itself, so Contains and Remove
// never walk the list.
type List struct {
	db       *Database
	header   []byte
	listType string
	name     string
}

type listHeader struct {
	Head *string `json:"head,omitempty"`
	Tail *string `json:"tail,omitempty"`
	Size int     `json:"size"`
}

type listNode struct {
	Prev *string `json:"prev,omitempty"`
	Next *string `json:"next,omitempty"`
}

// Insert appends value unless it is already present. It reports whether the
// list changed.
func (l *List) Insert(ctx context.Context, value string) (bool, error) {
	unlock := l.db.locks.lock(l.header)
	defer unlock()

	if _, found, err := l.node(ctx, value); err != nil || found {
		return false, err
	}
	h, err := l.readHeader(ctx)
	if err != nil {
		return false, err
	}

	n := listNode{Prev: h.Tail}
	if h.Tail != nil {
		tail, _, err := l.node(ctx, *h.Tail)
		if err != nil {
			return false, err
		}
		tail.Next = &value
		if err := l.db.writeJSON(ctx, l.nodeKey(*h.Tail), tail); err != nil {
			return false, err
		}
	} else {
		h.Head = &value
	}
	if err := l.db.writeJSON(ctx, l.nodeKey(value), n); err != nil {
		return false, err
	}
	h.Tail = &value
	h.Size++
	if err := l.db.writeJSON(ctx, l.header, h); err != nil {
		return false, err
	}
	return true, nil
}

// Remove unlinks value. It reports whether value was present.
func (l *List) Remove(ctx context.Context, value string) (bool, error) {
	unlock := l.db.locks.lock(l.header)
	defer unlock()

	n, found, err := l.node(ctx, value)
	if err != nil || !found {
		return false, err
	}
	h, err := l.readHeader(ctx)
	if err != nil {
		return false, err
	}

	if n.Prev != nil {
		if err := l.relink(ctx, *n.Prev, func(p *listNode) { p.Next = n.Next }); err != nil {
			return false, err
		}
	} else {
		h.Head = n.Next
	}
	if n.Next != nil {
		if err := l.relink(ctx, *n.Next, func(p *listNode) { p.Prev = n.Prev }); err != nil {
			return false, err
		}
	} else {
		h.Tail = n.Prev
	}

	if err := l.db.bury(ctx, l.nodeKey(value)); err != nil {
		return false, err
	}
	h.Size--
	if err := l.db.writeJSON(ctx, l.header, h); err != nil {
		return false, err
	}
	return true, nil
}

// Contains reports whether value is in the list.
func (l *List) Contains(ctx context.Context, value string) (bool, error) {
	_, found, err := l.node(ctx, value)
	return found, err
}

// Len returns the number of values.
func (l *List) Len(ctx context.Context) (int, error) {
	h, err := l.readHeader(ctx)
	if err != nil {
		return 0, err
	}
	return h.Size, nil
}

// Values materialises the list in insertion order. A list never written is
// empty.
func (l *List) Values(ctx context.Context) ([]string, error) {
	unlock := l.db.locks.lock(l.header)
	defer unlock()

	h, err := l.readHeader(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, h.Size)
	for cur := h.Head; cur != nil; {
		n, found, err := l.node(ctx, *cur)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("list %s/%s: dangling node %q", l.listType, l.name, *cur)
		}
		out = append(out, *cur)
		cur = n.Next
	}
	return out, nil
}

func (l *List) relink(ctx context.Context, value string, fn func(*listNode)) error {
	n, found, err := l.node(ctx, value)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("list %s/%s: dangling node %q", l.listType, l.name, value)
	}
	fn(&n)
	return l.db.writeJSON(ctx, l.nodeKey(value), n)
}

func (l *List) readHeader(ctx context.Context) (listHeader, error) {
	var h listHeader
	_, err := l.db.readJSON(ctx, l.header, &h)
	return h, err
}

func (l *List) node(ctx context.Context, value string) (listNode, bool, error) {
	var n listNode
	found, err := l.db.readJSON(ctx, l.nodeKey(value), &n)
	return n, found, err
}

func (l *List) nodeKey(value string) []byte {
	return key(nsListNode, l.listType, l.name, value)
}
