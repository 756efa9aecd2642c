package kv

import (
	"context"
	"iter"
	"sort"
	"strings"
	"sync"
)

// Memory is the in-process Store backend. Every test suite that needs
// a memory store runs on it instead of opening a real Badger
// directory. Values are copied on the way in and out, so neither the
// caller nor the store can mutate the other's bytes.
type Memory struct {
	mu   sync.RWMutex
	rows map[string][]byte
	opts *Options
}

// NewMemory builds an empty in-process store. opts may be nil for
// defaults.
func NewMemory(opts *Options) *Memory {
	return &Memory{rows: make(map[string][]byte), opts: opts}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	k := string(m.opts.encode(key))
	m.mu.RLock()
	v, ok := m.rows[k]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key Key, value []byte) error {
	k := string(m.opts.encode(key))
	v := make([]byte, len(value))
	copy(v, value)
	m.mu.Lock()
	m.rows[k] = v
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	k := string(m.opts.encode(key))
	m.mu.Lock()
	delete(m.rows, k)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	// The prefix must end at a segment boundary: "mem:row" matches
	// "mem:row:*" but never "mem:rowdy". An empty prefix scans all.
	var want string
	if len(prefix) > 0 {
		want = string(m.opts.encode(prefix)) + string(m.opts.sep())
	}

	m.mu.RLock()
	keys := make([]string, 0, len(m.rows))
	for k := range m.rows {
		if want == "" || strings.HasPrefix(k, want) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()
	sort.Strings(keys)

	return func(yield func(Entry, error) bool) {
		for _, k := range keys {
			m.mu.RLock()
			v, ok := m.rows[k]
			var out []byte
			if ok {
				out = make([]byte, len(v))
				copy(out, v)
			}
			m.mu.RUnlock()
			if !ok {
				// Deleted between snapshot and yield; skip.
				continue
			}
			if !yield(Entry{Key: m.opts.decode([]byte(k)), Value: out}, nil) {
				return
			}
		}
	}
}

func (m *Memory) BatchSet(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		v := make([]byte, len(e.Value))
		copy(v, e.Value)
		m.rows[string(m.opts.encode(e.Key))] = v
	}
	return nil
}

func (m *Memory) BatchDelete(_ context.Context, keys []Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.rows, string(m.opts.encode(key)))
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}
