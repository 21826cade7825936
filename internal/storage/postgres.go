package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "embed"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/mpr/internal/config"
	"github.com/your-org/mpr/internal/models"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// --- Persons ---

func (s *PostgresStore) CreatePerson(ctx context.Context, p *models.Person) error {
	p.ID = uuid.New()
	var vec *pgvector.Vector
	if len(p.Embedding) > 0 {
		v := pgvector.NewVector(p.Embedding)
		vec = &v
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO persons (id, first_name, last_name, father_name, date_of_birth, address, email, phone, national_id, gender, photo_key, embedding, missing_from, status, approval)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.FatherName, p.DateOfBirth, p.Address, p.Email, p.Phone,
		p.NationalID, p.Gender, p.PhotoKey, vec, p.MissingFrom, p.Status, p.Approval,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIdentity
		}
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

const personColumns = `id, first_name, last_name, father_name, date_of_birth, address, email, phone, national_id, gender, photo_key, embedding, missing_from, status, approval, created_at, updated_at`

func scanPerson(row pgx.Row) (*models.Person, error) {
	p := &models.Person{}
	var vec *pgvector.Vector
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.FatherName, &p.DateOfBirth,
		&p.Address, &p.Email, &p.Phone, &p.NationalID, &p.Gender, &p.PhotoKey,
		&vec, &p.MissingFrom, &p.Status, &p.Approval, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if vec != nil {
		p.Embedding = vec.Slice()
	}
	return p, nil
}

func (s *PostgresStore) GetPerson(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	p, err := scanPerson(s.pool.QueryRow(ctx,
		`SELECT `+personColumns+` FROM persons WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

// ListPersons returns persons, optionally narrowed by a case-insensitive
// substring match on the national ID. Persons with the most recent location
// sighting come first.
func (s *PostgresStore) ListPersons(ctx context.Context, nationalIDFilter string) ([]models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons`
	var args []interface{}
	if nationalIDFilter != "" {
		query += ` WHERE national_id ILIKE '%' || $1 || '%'`
		args = append(args, nationalIDFilter)
	}
	query += ` ORDER BY (SELECT max(l.detected_at) FROM locations l WHERE l.person_id = persons.id) DESC NULLS LAST, created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var persons []models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, *p)
	}
	return persons, rows.Err()
}

func (s *PostgresStore) UpdatePerson(ctx context.Context, p *models.Person) error {
	var vec *pgvector.Vector
	if len(p.Embedding) > 0 {
		v := pgvector.NewVector(p.Embedding)
		vec = &v
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE persons
		 SET first_name = $2, last_name = $3, father_name = $4, date_of_birth = $5,
		     address = $6, email = $7, phone = $8, national_id = $9, gender = $10,
		     photo_key = $11, embedding = $12, missing_from = $13, status = $14,
		     approval = $15, updated_at = now()
		 WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.FatherName, p.DateOfBirth, p.Address, p.Email,
		p.Phone, p.NationalID, p.Gender, p.PhotoKey, vec, p.MissingFrom, p.Status, p.Approval)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIdentity
		}
		return fmt.Errorf("update person: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePerson removes a person; locations and sightings cascade.
func (s *PostgresStore) DeletePerson(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Roster returns all persons that carry a reference embedding. The capture
// session loads this once at start instead of re-reading per frame.
func (s *PostgresStore) Roster(ctx context.Context) ([]models.Person, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+personColumns+` FROM persons WHERE embedding IS NOT NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	defer rows.Close()

	var persons []models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan roster person: %w", err)
		}
		persons = append(persons, *p)
	}
	return persons, rows.Err()
}

// SearchFaces finds the closest matching persons for a given embedding using
// cosine similarity over pgvector.
func (s *PostgresStore) SearchFaces(ctx context.Context, embedding []float32, threshold float64, limit int) ([]FaceMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.pool.Query(ctx,
		`SELECT id, first_name || ' ' || last_name, 1 - (embedding <=> $1) AS score
		 FROM persons
		 WHERE embedding IS NOT NULL AND 1 - (embedding <=> $1) >= $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		vec, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("search faces: %w", err)
	}
	defer rows.Close()

	var matches []FaceMatch
	for rows.Next() {
		var m FaceMatch
		if err := rows.Scan(&m.PersonID, &m.Name, &m.Score); err != nil {
			return nil, fmt.Errorf("scan face match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

type FaceMatch struct {
	PersonID uuid.UUID `json:"person_id"`
	Name     string    `json:"name"`
	Score    float32   `json:"score"`
}

// --- Locations ---

func (s *PostgresStore) CreateLocation(ctx context.Context, loc *models.Location) error {
	loc.ID = uuid.New()
	if loc.DetectedAt.IsZero() {
		loc.DetectedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO locations (id, person_id, latitude, longitude, detected_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		loc.ID, loc.PersonID, loc.Latitude, loc.Longitude, loc.DetectedAt)
	if err != nil {
		return fmt.Errorf("create location: %w", err)
	}
	return nil
}

// ListLocations returns a person's sighting history, newest first.
func (s *PostgresStore) ListLocations(ctx context.Context, personID uuid.UUID) ([]models.Location, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, person_id, latitude, longitude, detected_at
		 FROM locations WHERE person_id = $1 ORDER BY detected_at DESC`,
		personID)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var locations []models.Location
	for rows.Next() {
		var loc models.Location
		if err := rows.Scan(&loc.ID, &loc.PersonID, &loc.Latitude, &loc.Longitude, &loc.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// --- Sightings ---

func (s *PostgresStore) CreateSighting(ctx context.Context, sg *models.Sighting) error {
	sg.ID = uuid.New()
	sg.CreatedAt = time.Now()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sightings (id, person_id, session_id, score, notified, clip_key, detected_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sg.ID, sg.PersonID, sg.SessionID, sg.Score, sg.Notified, sg.ClipKey, sg.DetectedAt, sg.CreatedAt)
	if err != nil {
		return fmt.Errorf("create sighting: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSightings(ctx context.Context, personID *uuid.UUID, limit int) ([]models.Sighting, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	query := `SELECT id, person_id, session_id, score, notified, clip_key, detected_at, created_at FROM sightings`
	var args []interface{}
	if personID != nil {
		query += ` WHERE person_id = $1`
		args = append(args, *personID)
	}
	query += fmt.Sprintf(` ORDER BY detected_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sightings: %w", err)
	}
	defer rows.Close()

	var sightings []models.Sighting
	for rows.Next() {
		var sg models.Sighting
		if err := rows.Scan(&sg.ID, &sg.PersonID, &sg.SessionID, &sg.Score, &sg.Notified,
			&sg.ClipKey, &sg.DetectedAt, &sg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sighting: %w", err)
		}
		sightings = append(sightings, sg)
	}
	return sightings, rows.Err()
}
