package memory

import (
	"context"
	"sync"

	"enjoygifts/backend/internal/domain"
	"enjoygifts/backend/internal/local"
)

// Store is an in-memory local store. It backs tests and acts as a
// no-persistence fallback when the sqlite store cannot be opened.
type Store struct {
	mu       sync.RWMutex
	docs     map[string]map[string]domain.Document
	order    map[string][]string
	pending  []domain.PendingChange
	nextPend int64
	settings map[string]string
}

func New() *Store {
	return &Store{
		docs:     make(map[string]map[string]domain.Document),
		order:    make(map[string][]string),
		pending:  make([]domain.PendingChange, 0, 16),
		nextPend: 1,
		settings: make(map[string]string),
	}
}

func (s *Store) Put(_ context.Context, collection string, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.docs[collection]
	if !ok {
		byID = make(map[string]domain.Document)
		s.docs[collection] = byID
	}
	if _, exists := byID[doc.LocalID]; !exists {
		s.order[collection] = append(s.order[collection], doc.LocalID)
	}
	doc.Fields = domain.CloneFields(doc.Fields)
	byID[doc.LocalID] = doc
	return nil
}

func (s *Store) Get(_ context.Context, collection string, localID string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[collection][localID]
	if !ok {
		return nil, local.ErrNotFound
	}
	copyDoc := doc
	copyDoc.Fields = domain.CloneFields(doc.Fields)
	return &copyDoc, nil
}

func (s *Store) List(_ context.Context, collection string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.order[collection]
	docs := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		doc, ok := s.docs[collection][id]
		if !ok {
			continue
		}
		copyDoc := doc
		copyDoc.Fields = domain.CloneFields(doc.Fields)
		docs = append(docs, copyDoc)
	}
	return docs, nil
}

func (s *Store) Delete(_ context.Context, collection string, localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.docs[collection]
	if !ok {
		return local.ErrNotFound
	}
	if _, exists := byID[localID]; !exists {
		return local.ErrNotFound
	}
	delete(byID, localID)

	ids := s.order[collection]
	for i, id := range ids {
		if id == localID {
			s.order[collection] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) SetRemoteID(_ context.Context, collection string, localID string, remoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[collection][localID]
	if !ok {
		return local.ErrNotFound
	}
	doc.RemoteID = remoteID
	s.docs[collection][localID] = doc
	return nil
}

func (s *Store) GetByRemoteID(_ context.Context, collection string, remoteID string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if remoteID == "" {
		return nil, local.ErrNotFound
	}
	for _, doc := range s.docs[collection] {
		if doc.RemoteID == remoteID {
			copyDoc := doc
			copyDoc.Fields = domain.CloneFields(doc.Fields)
			return &copyDoc, nil
		}
	}
	return nil, local.ErrNotFound
}

func (s *Store) Enqueue(_ context.Context, change domain.PendingChange) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	change.ID = s.nextPend
	s.nextPend++
	change.Fields = domain.CloneFields(change.Fields)
	s.pending = append(s.pending, change)
	return change.ID, nil
}

func (s *Store) ListPending(_ context.Context) ([]domain.PendingChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PendingChange, len(s.pending))
	copy(out, s.pending)
	return out, nil
}

func (s *Store) DeletePending(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, change := range s.pending {
		if change.ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return nil
		}
	}
	return local.ErrNotFound
}

func (s *Store) DeletePendingByLocalID(_ context.Context, collection string, localID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.pending[:0]
	removed := 0
	for _, change := range s.pending {
		if change.Collection == collection && change.LocalID == localID {
			removed++
			continue
		}
		kept = append(kept, change)
	}
	s.pending = kept
	return removed, nil
}

func (s *Store) CountPending(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending), nil
}

func (s *Store) GetSetting(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.settings[key]
	if !ok {
		return "", local.ErrNotFound
	}
	return val, nil
}

func (s *Store) PutSetting(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *Store) DeleteSetting(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.settings, key)
	return nil
}

func (s *Store) Close() error {
	return nil
}
