package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store. Fail hooks let callers inject errors per operation.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte

	// Called before every operation; a non-nil return is returned from the operation as-is.
	FailGet  func(key string) error
	FailPut  func(key string) error
	FailList func(prefix string) error

	puts int
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailGet != nil {
		if err := m.FailGet(key); err != nil {
			return nil, err
		}
	}

	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("memory: %q: %w", key, ErrNotFound)
	}

	return append([]byte(nil), data...), nil
}

func (m *Memory) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailPut != nil {
		if err := m.FailPut(key); err != nil {
			return err
		}
	}

	m.objects[key] = append([]byte(nil), data...)
	m.puts += 1

	return nil
}

func (m *Memory) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailList != nil {
		if err := m.FailList(prefix); err != nil {
			return nil, err
		}
	}

	var keys []string

	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	return keys, nil
}

// Puts returns the number of successful Put calls.
func (m *Memory) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.puts
}

// Snapshot returns a copy of key's content and whether it exists, bypassing fail hooks.
func (m *Memory) Snapshot(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]

	return append([]byte(nil), data...), ok
}
