package syncer

import (
	"sync"

	"github.com/robertof/go-thermo-sync/bucket"
)

// keyedMutex serializes sync episodes per bucket key. Different keys never block each other.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[bucket.Key]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key bucket.Key) {
	k.mu.Lock()

	if k.locks == nil {
		k.locks = make(map[bucket.Key]*refMutex)
	}

	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}

	m.refs += 1
	k.mu.Unlock()

	m.Lock()
}

func (k *keyedMutex) Unlock(key bucket.Key) {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, ok := k.locks[key]
	if !ok {
		panic("syncer: unlock of unlocked bucket key " + key.String())
	}

	m.refs -= 1
	if m.refs == 0 {
		delete(k.locks, key)
	}

	m.Unlock()
}
