// Package testutil holds test doubles shared across packages.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"qaflow/internal/domain"
)

type memDoc struct {
	content []byte
	version int
}

// MemStore is an in-memory versioned-blob backend with the same CAS
// semantics as the real one: a write must present the version it last
// read, creation requires an empty version, and a stale version fails
// with domain.ErrVersionConflict.
type MemStore struct {
	mu   sync.Mutex
	docs map[string]*memDoc

	// BeforeWrite, when set, runs once before the next write commits,
	// outside the store lock. Tests use it to interleave a competing
	// writer between a read and its write.
	BeforeWrite func(path string)

	// failures maps paths to errors every write to them returns.
	failures map[string]error

	writes int
}

func NewMemStore() *MemStore {
	return &MemStore{
		docs:     make(map[string]*memDoc),
		failures: make(map[string]error),
	}
}

func (m *MemStore) Read(_ context.Context, path string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[path]
	if !ok {
		return nil, "", fmt.Errorf("document %s: %w", path, domain.ErrNotFound)
	}
	content := make([]byte, len(doc.content))
	copy(content, doc.content)
	return content, versionToken(doc.version), nil
}

func (m *MemStore) Write(_ context.Context, path string, content []byte, _ string, expectedVersion string) (string, error) {
	m.mu.Lock()
	hook := m.BeforeWrite
	m.BeforeWrite = nil
	m.mu.Unlock()
	if hook != nil {
		hook(path)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failures[path]; ok {
		return "", err
	}

	doc, exists := m.docs[path]
	switch {
	case !exists && expectedVersion != "":
		return "", fmt.Errorf("document %s: %w", path, domain.ErrVersionConflict)
	case exists && expectedVersion != versionToken(doc.version):
		return "", fmt.Errorf("document %s: %w", path, domain.ErrVersionConflict)
	}

	stored := make([]byte, len(content))
	copy(stored, content)
	if exists {
		doc.content = stored
		doc.version++
	} else {
		doc = &memDoc{content: stored, version: 1}
		m.docs[path] = doc
	}
	m.writes++
	return versionToken(doc.version), nil
}

// Overwrite replaces the document regardless of version, bumping the
// version the way a competing writer would.
func (m *MemStore) Overwrite(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(content))
	copy(stored, content)
	if doc, ok := m.docs[path]; ok {
		doc.content = stored
		doc.version++
	} else {
		m.docs[path] = &memDoc{content: stored, version: 1}
	}
}

// FailWritesWith makes every write to path fail with err.
func (m *MemStore) FailWritesWith(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = err
}

// Writes reports the number of committed writes.
func (m *MemStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func versionToken(v int) string {
	return fmt.Sprintf("v%d", v)
}
