package store

import (
	"context"
	"errors"
	"sync"
)

const backendMemory = "memory"

var errNoDocument = errors.New("no document stored")

// MemoryStore holds the encoded document in memory. Every Read decodes a
// fresh copy.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemoryStore(initial *Document) (*MemoryStore, error) {
	s := &MemoryStore{}
	if initial == nil {
		return s, nil
	}
	data, err := Encode(initial)
	if err != nil {
		return nil, writeError(backendMemory, err)
	}
	s.data = data
	return s, nil
}

func (s *MemoryStore) Read(ctx context.Context) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil {
		return nil, readError(backendMemory, errNoDocument)
	}
	doc, err := Decode(s.data)
	if err != nil {
		return nil, readError(backendMemory, err)
	}
	return doc, nil
}

func (s *MemoryStore) Write(ctx context.Context, doc *Document) error {
	data, err := Encode(doc)
	if err != nil {
		return writeError(backendMemory, err)
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
