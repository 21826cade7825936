package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/mpr/internal/models"
	"github.com/your-org/mpr/internal/notify"
)

// ErrNotification wraps a failed notification send. The triggering write is
// already persisted and is never rolled back; callers decide how loudly to
// report it.
var ErrNotification = errors.New("notification failed")

// Store is the record-store surface the workflow needs.
type Store interface {
	CreatePerson(ctx context.Context, p *models.Person) error
	GetPerson(ctx context.Context, id uuid.UUID) (*models.Person, error)
	ListPersons(ctx context.Context, nationalIDFilter string) ([]models.Person, error)
	UpdatePerson(ctx context.Context, p *models.Person) error
	DeletePerson(ctx context.Context, id uuid.UUID) error
	ListLocations(ctx context.Context, personID uuid.UUID) ([]models.Location, error)
}

// ObjectStore persists photo bytes addressed by key.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}

// EmbedFunc extracts a reference face encoding from photo bytes. It is nil
// when the vision models are unavailable; persons registered without an
// encoding are skipped by surveillance sessions.
type EmbedFunc func(imageData []byte) ([]float32, error)

// PersonInput carries the submitted registration/update fields. Status and
// Approval are only honored on admin paths.
type PersonInput struct {
	FirstName   string
	LastName    string
	FatherName  string
	DateOfBirth time.Time
	Address     string
	Email       string
	Phone       string
	NationalID  string
	Gender      models.Gender
	MissingFrom time.Time
	Status      models.Status
	Approval    models.Approval
}

// Service implements the registry workflow: registration, listing, updates,
// deletion, and the admin status/approval changes, with their notification
// triggers.
type Service struct {
	store    Store
	objects  ObjectStore
	notifier notify.Notifier
	embed    EmbedFunc
}

func NewService(store Store, objects ObjectStore, notifier notify.Notifier, embed EmbedFunc) *Service {
	return &Service{store: store, objects: objects, notifier: notifier, embed: embed}
}

// Register creates a new person with status Missing and approval Pending,
// stores the reference photo, and sends the case-registered email. A
// duplicate national ID leaves no trace: no row, no photo object.
func (s *Service) Register(ctx context.Context, in PersonInput, photo []byte) (*models.Person, error) {
	p := &models.Person{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		FatherName:  in.FatherName,
		DateOfBirth: in.DateOfBirth,
		Address:     in.Address,
		Email:       in.Email,
		Phone:       in.Phone,
		NationalID:  in.NationalID,
		Gender:      in.Gender,
		MissingFrom: in.MissingFrom,
		Status:      models.StatusMissing,
		Approval:    models.ApprovalPending,
	}

	if s.embed != nil && len(photo) > 0 {
		embedding, err := s.embed(photo)
		if err != nil {
			return nil, fmt.Errorf("encode reference photo: %w", err)
		}
		p.Embedding = embedding
	}
	if len(photo) > 0 {
		p.PhotoKey = "photos/" + uuid.NewString() + ".jpg"
	}

	if err := s.store.CreatePerson(ctx, p); err != nil {
		return nil, err
	}

	if p.PhotoKey != "" {
		if err := s.objects.PutObject(ctx, p.PhotoKey, photo, "image/jpeg"); err != nil {
			slog.Error("store reference photo", "person_id", p.ID, "error", err)
		}
	}

	if err := s.notifier.Send(ctx, notify.KindCaseRegistered, personFields(p, ""), p.Email, nil); err != nil {
		slog.Error("case-registered notification", "person_id", p.ID, "error", err)
		return p, fmt.Errorf("%w: %v", ErrNotification, err)
	}
	return p, nil
}

// List returns persons, optionally filtered by a case-insensitive substring
// match on the national ID.
func (s *Service) List(ctx context.Context, nationalIDFilter string) ([]models.Person, error) {
	return s.store.ListPersons(ctx, nationalIDFilter)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	return s.store.GetPerson(ctx, id)
}

// Update overwrites the person's identity fields. Non-admin callers never
// change status or approval: submitted values are reverted to the stored
// ones before persisting. The photo is replaced only when supplied.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in PersonInput, photo []byte, admin bool) (*models.Person, error) {
	p, err := s.store.GetPerson(ctx, id)
	if err != nil {
		return nil, err
	}

	prevStatus, prevApproval := p.Status, p.Approval

	p.FirstName = in.FirstName
	p.LastName = in.LastName
	p.FatherName = in.FatherName
	p.DateOfBirth = in.DateOfBirth
	p.Address = in.Address
	p.Email = in.Email
	p.Phone = in.Phone
	p.NationalID = in.NationalID
	p.Gender = in.Gender
	p.MissingFrom = in.MissingFrom

	if admin {
		if in.Status != "" {
			p.Status = in.Status
		}
		if in.Approval != "" {
			p.Approval = in.Approval
		}
	} else {
		p.Status = prevStatus
		p.Approval = prevApproval
	}

	oldPhotoKey := ""
	if len(photo) > 0 {
		if s.embed != nil {
			embedding, err := s.embed(photo)
			if err != nil {
				return nil, fmt.Errorf("encode reference photo: %w", err)
			}
			p.Embedding = embedding
		}
		oldPhotoKey = p.PhotoKey
		p.PhotoKey = "photos/" + uuid.NewString() + ".jpg"
	}

	if err := s.store.UpdatePerson(ctx, p); err != nil {
		return nil, err
	}

	if len(photo) > 0 {
		if err := s.objects.PutObject(ctx, p.PhotoKey, photo, "image/jpeg"); err != nil {
			slog.Error("store replacement photo", "person_id", p.ID, "error", err)
		}
		if oldPhotoKey != "" {
			if err := s.objects.DeleteObject(ctx, oldPhotoKey); err != nil {
				slog.Warn("delete old photo", "key", oldPhotoKey, "error", err)
			}
		}
	}

	// An admin save that lands the case on Found closes it, same as the
	// dedicated status endpoint.
	if p.Status == models.StatusFound && prevStatus != models.StatusFound {
		if err := s.notifier.Send(ctx, notify.KindCaseClosed, personFields(p, ""), p.Email, nil); err != nil {
			slog.Error("case-closed notification", "person_id", p.ID, "error", err)
			return p, fmt.Errorf("%w: %v", ErrNotification, err)
		}
	}

	return p, nil
}

// Delete removes the person; their location history cascades away with them.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	p, err := s.store.GetPerson(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeletePerson(ctx, id); err != nil {
		return err
	}
	if p.PhotoKey != "" {
		if err := s.objects.DeleteObject(ctx, p.PhotoKey); err != nil {
			slog.Warn("delete photo", "key", p.PhotoKey, "error", err)
		}
	}
	return nil
}

// SetStatus changes the case status. Reaching this path requires the admin
// key at the API layer. Setting status to Found sends exactly one
// case-closed email to the person's stored address.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status models.Status) (*models.Person, error) {
	p, err := s.store.GetPerson(ctx, id)
	if err != nil {
		return nil, err
	}

	alreadyFound := p.Status == models.StatusFound
	p.Status = status
	if err := s.store.UpdatePerson(ctx, p); err != nil {
		return nil, err
	}

	if status == models.StatusFound && !alreadyFound {
		if err := s.notifier.Send(ctx, notify.KindCaseClosed, personFields(p, ""), p.Email, nil); err != nil {
			slog.Error("case-closed notification", "person_id", p.ID, "error", err)
			return p, fmt.Errorf("%w: %v", ErrNotification, err)
		}
	}
	return p, nil
}

// SetApproval changes the case moderation state. Admin key required at the
// API layer.
func (s *Service) SetApproval(ctx context.Context, id uuid.UUID, approval models.Approval) (*models.Person, error) {
	p, err := s.store.GetPerson(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Approval = approval
	if err := s.store.UpdatePerson(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Locations returns the person's sighting history, newest first.
func (s *Service) Locations(ctx context.Context, personID uuid.UUID) ([]models.Location, error) {
	if _, err := s.store.GetPerson(ctx, personID); err != nil {
		return nil, err
	}
	return s.store.ListLocations(ctx, personID)
}

func personFields(p *models.Person, location string) notify.Fields {
	return notify.Fields{
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		FatherName:  p.FatherName,
		NationalID:  p.NationalID,
		MissingFrom: p.MissingFrom.Format("02-01-2006"),
		Timestamp:   time.Now().Format("02-01-2006 15:04"),
		Location:    location,
	}
}
