package attachments

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store for tests and replays.
type Memory struct {
	mu      sync.Mutex
	objects map[string]Metadata
	fail    error
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Metadata)}
}

// Put stores an object.
func (m *Memory) Put(path string, md Metadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = md
}

// FailWith makes every subsequent call return err (nil restores).
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Paths returns the stored keys with the given prefix, sorted.
func (m *Memory) Paths(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for p := range m.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (m *Memory) Metadata(ctx context.Context, path string) (Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return Metadata{}, m.fail
	}
	md, ok := m.objects[path]
	if !ok {
		return Metadata{}, ErrNotFound
	}
	return md, nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	delete(m.objects, path)
	return nil
}

func (m *Memory) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	n := 0
	for p := range m.objects {
		if strings.HasPrefix(p, prefix) {
			delete(m.objects, p)
			n++
		}
	}
	return n, nil
}
