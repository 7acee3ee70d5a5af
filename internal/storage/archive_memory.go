package storage

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MemoryArchive keeps payloads in process. Used for tests and the memory backend.
type MemoryArchive struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte // repo -> key -> payload
}

// NewMemoryArchive constructs an in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{data: make(map[string]map[string][]byte)}
}

func (m *MemoryArchive) Store(ctx context.Context, repo, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	repoData, ok := m.data[repo]
	if !ok {
		repoData = make(map[string][]byte)
		m.data[repo] = repoData
	}
	repoData[key] = slices.Clone(data)
	return nil
}

func (m *MemoryArchive) Fetch(ctx context.Context, repo, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.data[repo][key]
	if !ok {
		return nil, &NotFoundError{Resource: "archive", Key: repo + "/" + key}
	}
	return slices.Clone(payload), nil
}

func (m *MemoryArchive) Remove(ctx context.Context, repo, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if repoData, ok := m.data[repo]; ok {
		delete(repoData, key)
		if len(repoData) == 0 {
			delete(m.data, repo)
		}
	}
	return nil
}

func (m *MemoryArchive) Repos(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.data)), nil
}

func (m *MemoryArchive) Close() error { return nil }
