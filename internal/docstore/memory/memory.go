package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"enjoygifts/backend/internal/docstore"
	"enjoygifts/backend/internal/domain"
)

type docKey struct {
	storeID    string
	collection string
	id         string
}

// Store is the in-memory repository used for dev mode and handler tests.
type Store struct {
	mu     sync.RWMutex
	stores map[string]docstore.StoreRecord
	docs   map[docKey]docstore.Document
	order  []docKey
}

func New() *Store {
	return &Store{
		stores: make(map[string]docstore.StoreRecord),
		docs:   make(map[docKey]docstore.Document),
		order:  make([]docKey, 0, 128),
	}
}

func (s *Store) CreateStore(_ context.Context, rec docstore.StoreRecord) (*docstore.StoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		return nil, docstore.ErrInvalid
	}
	if _, exists := s.stores[rec.ID]; exists {
		return nil, docstore.ErrExists
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.stores[rec.ID] = rec
	created := rec
	return &created, nil
}

func (s *Store) GetStore(_ context.Context, id string) (*docstore.StoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.stores[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	copyRec := rec
	return &copyRec, nil
}

func (s *Store) CreateDocument(_ context.Context, doc docstore.Document) (*docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.StoreID == "" || doc.Collection == "" {
		return nil, docstore.ErrInvalid
	}
	doc.ID = uuid.NewString()
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.Fields = domain.CloneFields(doc.Fields)

	key := docKey{doc.StoreID, doc.Collection, doc.ID}
	s.docs[key] = doc
	s.order = append(s.order, key)

	created := doc
	return &created, nil
}

func (s *Store) GetDocument(_ context.Context, storeID string, collection string, id string) (*docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[docKey{storeID, collection, id}]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	copyDoc := doc
	copyDoc.Fields = domain.CloneFields(doc.Fields)
	return &copyDoc, nil
}

func (s *Store) ListDocuments(_ context.Context, storeID string, collection string) ([]docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]docstore.Document, 0, 32)
	for _, key := range s.order {
		if key.storeID != storeID || key.collection != collection {
			continue
		}
		doc, ok := s.docs[key]
		if !ok {
			continue
		}
		copyDoc := doc
		copyDoc.Fields = domain.CloneFields(doc.Fields)
		docs = append(docs, copyDoc)
	}
	return docs, nil
}

func (s *Store) UpdateDocument(_ context.Context, storeID string, collection string, id string, fields domain.Fields) (*docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := docKey{storeID, collection, id}
	doc, ok := s.docs[key]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	doc.Fields = domain.CloneFields(fields)
	doc.UpdatedAt = time.Now().UTC()
	s.docs[key] = doc

	updated := doc
	updated.Fields = domain.CloneFields(doc.Fields)
	return &updated, nil
}

func (s *Store) DeleteDocument(_ context.Context, storeID string, collection string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := docKey{storeID, collection, id}
	if _, ok := s.docs[key]; !ok {
		return docstore.ErrNotFound
	}
	delete(s.docs, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
