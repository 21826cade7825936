package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/mpr/internal/models"
)

func newPerson(nationalID string) *models.Person {
	return &models.Person{
		FirstName:   "Test",
		LastName:    "Person",
		Email:       "kin@example.com",
		NationalID:  nationalID,
		Gender:      models.GenderOther,
		MissingFrom: time.Now().AddDate(0, -1, 0),
		Status:      models.StatusMissing,
		Approval:    models.ApprovalPending,
	}
}

func TestMemoryStoreDuplicateNationalID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreatePerson(ctx, newPerson("123456789012")))

	err := s.CreatePerson(ctx, newPerson("123456789012"))
	require.ErrorIs(t, err, ErrDuplicateIdentity)

	persons, err := s.ListPersons(ctx, "")
	require.NoError(t, err)
	assert.Len(t, persons, 1)
}

func TestMemoryStoreUpdateDuplicateNationalID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p1 := newPerson("111111111111")
	p2 := newPerson("222222222222")
	require.NoError(t, s.CreatePerson(ctx, p1))
	require.NoError(t, s.CreatePerson(ctx, p2))

	p2.NationalID = "111111111111"
	require.ErrorIs(t, s.UpdatePerson(ctx, p2), ErrDuplicateIdentity)
}

func TestMemoryStoreListFiltersBySubstring(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreatePerson(ctx, newPerson("123456789012")))
	require.NoError(t, s.CreatePerson(ctx, newPerson("999988887777")))

	persons, err := s.ListPersons(ctx, "3456")
	require.NoError(t, err)
	require.Len(t, persons, 1)
	assert.Equal(t, "123456789012", persons[0].NationalID)

	persons, err = s.ListPersons(ctx, "000000")
	require.NoError(t, err)
	assert.Empty(t, persons)
}

func TestMemoryStoreDeleteCascades(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p := newPerson("123456789012")
	require.NoError(t, s.CreatePerson(ctx, p))
	require.NoError(t, s.CreateLocation(ctx, &models.Location{
		PersonID: p.ID, Latitude: 1, Longitude: 2,
	}))
	require.NoError(t, s.CreateSighting(ctx, &models.Sighting{
		PersonID: p.ID, SessionID: uuid.New(), Score: 0.9, DetectedAt: time.Now(),
	}))

	require.NoError(t, s.DeletePerson(ctx, p.ID))

	locations, err := s.ListLocations(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, locations)

	sightings, err := s.ListSightings(ctx, &p.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, sightings)
}

func TestMemoryStoreLocationsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p := newPerson("123456789012")
	require.NoError(t, s.CreatePerson(ctx, p))

	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	require.NoError(t, s.CreateLocation(ctx, &models.Location{
		PersonID: p.ID, Latitude: 1, Longitude: 1, DetectedAt: older,
	}))
	require.NoError(t, s.CreateLocation(ctx, &models.Location{
		PersonID: p.ID, Latitude: 2, Longitude: 2, DetectedAt: newer,
	}))

	locations, err := s.ListLocations(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, locations, 2)
	assert.True(t, locations[0].DetectedAt.After(locations[1].DetectedAt))
}

func TestMemoryStoreRosterOnlyEncodedPersons(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	encoded := newPerson("111111111111")
	encoded.Embedding = []float32{0.1, 0.2}
	require.NoError(t, s.CreatePerson(ctx, encoded))
	require.NoError(t, s.CreatePerson(ctx, newPerson("222222222222")))

	roster, err := s.Roster(ctx)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "111111111111", roster[0].NationalID)
}
