package store

import (
	"sync"

	"github.com/freightpilot/greenlight/internal/models"
)

// InMemoryStore is a mutex-guarded inventory store for tests and
// single-process deployments without a database.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[string]models.CargoDoc
}

// NewInMemoryStore creates an empty in-memory inventory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[string]models.CargoDoc)}
}

// GetCargoDoc returns a copy of the user's inventory document.
func (s *InMemoryStore) GetCargoDoc(user string) (models.CargoDoc, error) {
	docID := docIDFromUser(user)

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[docID]
	if !ok {
		return models.CargoDoc{User: user}, nil
	}
	return cloneCargoDoc(doc), nil
}

// ReplaceIDs replaces the user's stored identifiers and metadata wholesale.
func (s *InMemoryStore) ReplaceIDs(user string, ids []string, meta []models.CargoMeta) error {
	docID := docIDFromUser(user)
	doc := cloneCargoDoc(models.CargoDoc{User: user, IDs: ids, IDsMeta: meta})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[docID] = doc
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

func cloneCargoDoc(doc models.CargoDoc) models.CargoDoc {
	out := models.CargoDoc{User: doc.User}
	out.IDs = append([]string(nil), doc.IDs...)
	for _, m := range doc.IDsMeta {
		c := m
		if m.ForDays != nil {
			v := *m.ForDays
			c.ForDays = &v
		}
		out.IDsMeta = append(out.IDsMeta, c)
	}
	return out
}
