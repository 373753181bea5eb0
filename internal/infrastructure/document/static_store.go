package document

import (
	"context"
	"sync"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// StaticStore keeps documents in memory. It backs the memory driver.
type StaticStore struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]routing.Document
}

// NewStaticStore creates a store holding docs
func NewStaticStore(docs ...routing.Document) *StaticStore {
	s := &StaticStore{docs: make(map[uuid.UUID]routing.Document, len(docs))}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

// Put adds or replaces a document
func (s *StaticStore) Put(doc routing.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
}

// GetDocument returns the document or shared.ErrNotFound
func (s *StaticStore) GetDocument(_ context.Context, id uuid.UUID) (*routing.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &doc, nil
}

var _ routing.DocumentStore = (*StaticStore)(nil)
