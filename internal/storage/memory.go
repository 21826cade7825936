package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/mpr/internal/models"
)

// MemoryStore is an in-memory implementation of the record store with the
// same semantics as PostgresStore, used by tests and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	persons   map[uuid.UUID]models.Person
	locations map[uuid.UUID][]models.Location
	sightings []models.Sighting
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		persons:   make(map[uuid.UUID]models.Person),
		locations: make(map[uuid.UUID][]models.Location),
	}
}

func (s *MemoryStore) CreatePerson(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.persons {
		if existing.NationalID == p.NationalID {
			return ErrDuplicateIdentity
		}
	}

	p.ID = uuid.New()
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.persons[p.ID] = *p
	return nil
}

func (s *MemoryStore) GetPerson(_ context.Context, id uuid.UUID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.persons[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListPersons(_ context.Context, nationalIDFilter string) ([]models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter := strings.ToLower(nationalIDFilter)
	var persons []models.Person
	for _, p := range s.persons {
		if filter != "" && !strings.Contains(strings.ToLower(p.NationalID), filter) {
			continue
		}
		persons = append(persons, p)
	}

	latest := func(p models.Person) time.Time {
		locs := s.locations[p.ID]
		if len(locs) == 0 {
			return time.Time{}
		}
		t := locs[0].DetectedAt
		for _, l := range locs[1:] {
			if l.DetectedAt.After(t) {
				t = l.DetectedAt
			}
		}
		return t
	}
	sort.SliceStable(persons, func(i, j int) bool {
		li, lj := latest(persons[i]), latest(persons[j])
		if !li.Equal(lj) {
			return li.After(lj)
		}
		return persons[i].CreatedAt.After(persons[j].CreatedAt)
	})
	return persons, nil
}

func (s *MemoryStore) UpdatePerson(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.persons[p.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range s.persons {
		if id != p.ID && existing.NationalID == p.NationalID {
			return ErrDuplicateIdentity
		}
	}
	p.UpdatedAt = time.Now()
	s.persons[p.ID] = *p
	return nil
}

func (s *MemoryStore) DeletePerson(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.persons[id]; !ok {
		return ErrNotFound
	}
	delete(s.persons, id)
	delete(s.locations, id)

	kept := s.sightings[:0]
	for _, sg := range s.sightings {
		if sg.PersonID != id {
			kept = append(kept, sg)
		}
	}
	s.sightings = kept
	return nil
}

func (s *MemoryStore) Roster(_ context.Context) ([]models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var persons []models.Person
	for _, p := range s.persons {
		if len(p.Embedding) > 0 {
			persons = append(persons, p)
		}
	}
	sort.Slice(persons, func(i, j int) bool {
		return persons[i].CreatedAt.Before(persons[j].CreatedAt)
	})
	return persons, nil
}

func (s *MemoryStore) CreateLocation(_ context.Context, loc *models.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.persons[loc.PersonID]; !ok {
		return ErrNotFound
	}
	loc.ID = uuid.New()
	if loc.DetectedAt.IsZero() {
		loc.DetectedAt = time.Now()
	}
	s.locations[loc.PersonID] = append(s.locations[loc.PersonID], *loc)
	return nil
}

func (s *MemoryStore) ListLocations(_ context.Context, personID uuid.UUID) ([]models.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	locations := make([]models.Location, len(s.locations[personID]))
	copy(locations, s.locations[personID])
	sort.Slice(locations, func(i, j int) bool {
		return locations[i].DetectedAt.After(locations[j].DetectedAt)
	})
	if len(locations) == 0 {
		return nil, nil
	}
	return locations, nil
}

func (s *MemoryStore) CreateSighting(_ context.Context, sg *models.Sighting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sg.ID = uuid.New()
	sg.CreatedAt = time.Now()
	s.sightings = append(s.sightings, *sg)
	return nil
}

func (s *MemoryStore) ListSightings(_ context.Context, personID *uuid.UUID, limit int) ([]models.Sighting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	var sightings []models.Sighting
	for _, sg := range s.sightings {
		if personID != nil && sg.PersonID != *personID {
			continue
		}
		sightings = append(sightings, sg)
	}
	sort.Slice(sightings, func(i, j int) bool {
		return sightings[i].DetectedAt.After(sightings[j].DetectedAt)
	})
	if len(sightings) > limit {
		sightings = sightings[:limit]
	}
	return sightings, nil
}
