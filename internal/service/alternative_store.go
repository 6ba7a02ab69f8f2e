package service

import (
	"sync"
	"time"

	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/scheduler"
)

// storedAlternative keeps an alternative next to the problem it was built from,
// so later edits and exports resolve sessions against the same snapshot.
type storedAlternative struct {
	alt      *models.Alternative
	problem  *scheduler.Problem
	storedAt time.Time
}

// alternativeStore is an in-memory TTL cache of generated and edited alternatives.
type alternativeStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]storedAlternative
}

func newAlternativeStore(ttl time.Duration, now func() time.Time) *alternativeStore {
	if now == nil {
		now = time.Now
	}
	return &alternativeStore{
		ttl:   ttl,
		now:   now,
		items: make(map[string]storedAlternative),
	}
}

func (s *alternativeStore) Save(alt *models.Alternative, problem *scheduler.Problem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, item := range s.items {
		if now.Sub(item.storedAt) > s.ttl {
			delete(s.items, id)
		}
	}
	s.items[alt.ID] = storedAlternative{alt: alt, problem: problem, storedAt: now}
}

func (s *alternativeStore) Get(id string) (storedAlternative, bool) {
	s.mu.RLock()
	item, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return storedAlternative{}, false
	}
	if s.now().Sub(item.storedAt) > s.ttl {
		s.Delete(id)
		return storedAlternative{}, false
	}
	return item, true
}

// Touch extends the lifetime of an alternative still in use by an edit session.
func (s *alternativeStore) Touch(id string) {
	s.mu.Lock()
	if item, ok := s.items[id]; ok {
		item.storedAt = s.now()
		s.items[id] = item
	}
	s.mu.Unlock()
}

func (s *alternativeStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *alternativeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
