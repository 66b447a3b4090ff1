// Package lockmap locks things identified by strings, such as a stream's
// scratch files.
package lockmap

import (
	"context"
	"sync"
)

type entry struct {
	ch   chan struct{}
	refs int
}

// A LockMap is used to lock various things represented by strings.
// Entries are dropped once nobody holds or waits for them.
type LockMap struct {
	mutex sync.Mutex
	m     map[string]*entry
}

// New makes a new LockMap.
func New() *LockMap {
	return &LockMap{
		m: make(map[string]*entry),
	}
}

func (lm *LockMap) acquire(key string) *entry {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	e, found := lm.m[key]
	if !found {
		e = &entry{ch: make(chan struct{}, 1)}
		lm.m[key] = e
	}
	e.refs++
	return e
}

func (lm *LockMap) release(key string, e *entry) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(lm.m, key)
	}
}

// Lock locks the given key and returns a function to unlock it. It waits
// until the key is free or ctx is done, in which case it returns ctx.Err()
// and holds nothing.
func (lm *LockMap) Lock(ctx context.Context, key string) (unlockFn func(), err error) {
	e := lm.acquire(key)

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		lm.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			lm.release(key, e)
		})
	}, nil
}

// Len returns the number of keys currently held or waited for.
func (lm *LockMap) Len() int {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	return len(lm.m)
}
