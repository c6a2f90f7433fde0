package db

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// keyLocks serialises read-modify-write sequences per store key. Keys hash
// onto a fixed set of mutexes; callers never hold two stripes at once.
type keyLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *keyLocks) lock(k []byte) (unlock func()) {
	h := fnv.New32a()
	_, _ = h.Write(k)
	m := &l.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}
