// Package lock provides keyed mutual exclusion.
//
// Two implementations share the Locker interface: Memory serialises callers
// inside one process; Redis serialises every process that talks to the same
// Redis server.
//
//	release, err := locker.Acquire(ctx, "product:7")
//	if err != nil {
//	    return err
//	}
//	defer release()
package lock

import (
	"context"
	"sync"
)

// Locker hands out exclusive ownership of a key. Acquire blocks until the
// key is free or ctx is done. The returned release func is safe to call
// more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Memory is an in-process Locker. The zero value is ready to use.
type Memory struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewMemory returns an empty in-process locker.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Acquire(ctx context.Context, key string) (func(), error) {
	s := m.ref(key)

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		m.unref(key)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			m.unref(key)
		})
	}, nil
}

func (m *Memory) ref(key string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slots == nil {
		m.slots = make(map[string]*slot)
	}
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	return s
}

// unref drops idle slots so the map does not grow with every product id.
func (m *Memory) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}
