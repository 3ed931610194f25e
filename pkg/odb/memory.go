package odb

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/object"
)

// MemoryStorage is a WritableStorage backed by a map, used by the test
// suite so merge scenarios never touch disk.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[hash.Hash][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[hash.Hash][]byte)}
}

func (m *MemoryStorage) Open(_ context.Context, oid hash.Hash) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[oid]
	if !ok {
		return nil, object.NoSuchObject(oid)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *MemoryStorage) Exists(_ context.Context, oid hash.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[oid]
	return ok, nil
}

func (m *MemoryStorage) Put(_ context.Context, oid hash.Hash, content io.Reader) error {
	b, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[oid] = b
	return nil
}

func (m *MemoryStorage) Close() error { return nil }
