package store

import (
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory store for testing.
type Memory struct {
	mu       sync.RWMutex
	data     map[string]Definition
	versions map[string][]VersionEntry
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data:     make(map[string]Definition),
		versions: make(map[string][]VersionEntry),
	}
}

// Get retrieves a definition by name.
func (m *Memory) Get(name string) (*Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.data[name]; ok {
		return &d, nil
	}
	return nil, nil
}

// Put stores a definition. Storing identical source again is a no-op.
func (m *Memory) Put(d Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[d.Name]; ok && old.Source == d.Source && old.Kind == d.Kind {
		return nil
	}
	m.data[d.Name] = d
	hist := m.versions[d.Name]
	m.versions[d.Name] = append(hist, VersionEntry{
		Version: len(hist) + 1,
		Source:  d.Source,
		Ts:      time.Now().UTC().Format(time.DateTime),
	})
	return nil
}

// Delete removes a definition and its history.
func (m *Memory) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, name)
	delete(m.versions, name)
	return nil
}

// List returns all definitions ordered by Seq.
func (m *Memory) List() ([]Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	defs := make([]Definition, 0, len(m.data))
	for _, d := range m.data {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Seq != defs[j].Seq {
			return defs[i].Seq < defs[j].Seq
		}
		return defs[i].Name < defs[j].Name
	})
	return defs, nil
}

// GetHistory returns up to limit versions of name, newest first. A limit of
// 0 returns all of them.
func (m *Memory) GetHistory(name string, limit int) ([]VersionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hist := m.versions[name]
	if len(hist) == 0 {
		return nil, nil
	}
	var entries []VersionEntry
	for i := len(hist) - 1; i >= 0; i-- {
		if limit > 0 && len(entries) == limit {
			break
		}
		entries = append(entries, hist[i])
	}
	return entries, nil
}

// Close is a no-op for memory store.
func (m *Memory) Close() error {
	return nil
}
