package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/your-org/mpr/internal/models"
	"github.com/your-org/mpr/internal/notify"
	"github.com/your-org/mpr/internal/storage"
)

type sentMail struct {
	kind      notify.Kind
	recipient string
	fields    notify.Fields
	attached  bool
}

type fakeNotifier struct {
	sent []sentMail
	fail bool
}

func (f *fakeNotifier) Send(_ context.Context, kind notify.Kind, fields notify.Fields, recipient string, att *notify.Attachment) error {
	if f.fail {
		return errors.New("smtp unreachable")
	}
	f.sent = append(f.sent, sentMail{
		kind:      kind,
		recipient: recipient,
		fields:    fields,
		attached:  att != nil,
	})
	return nil
}

type fakeObjects struct {
	objects map[string][]byte
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) PutObject(_ context.Context, key string, data []byte, _ string) error {
	f.objects[key] = data
	return nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func fixedEmbed(_ []byte) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

type ServiceSuite struct {
	suite.Suite
	store    *storage.MemoryStore
	objects  *fakeObjects
	notifier *fakeNotifier
	svc      *Service
}

func (s *ServiceSuite) SetupTest() {
	s.store = storage.NewMemoryStore()
	s.objects = newFakeObjects()
	s.notifier = &fakeNotifier{}
	s.svc = NewService(s.store, s.objects, s.notifier, fixedEmbed)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func input(nationalID, email string) PersonInput {
	return PersonInput{
		FirstName:   "Asha",
		LastName:    "Verma",
		FatherName:  "Ramesh Verma",
		DateOfBirth: time.Date(1998, 4, 12, 0, 0, 0, 0, time.UTC),
		Address:     "14 Lakeview Road",
		Email:       email,
		Phone:       "+91-9000000001",
		NationalID:  nationalID,
		Gender:      models.GenderFemale,
		MissingFrom: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}
}

func (s *ServiceSuite) TestRegisterCreatesCaseAndNotifies() {
	photo := []byte("jpeg-bytes")
	p, err := s.svc.Register(context.Background(), input("123456789012", "family@example.com"), photo)
	s.Require().NoError(err)

	s.Equal(models.StatusMissing, p.Status)
	s.Equal(models.ApprovalPending, p.Approval)
	s.Equal([]float32{0.1, 0.2, 0.3}, p.Embedding)
	s.NotEmpty(p.PhotoKey)
	s.Equal(photo, s.objects.objects[p.PhotoKey])

	s.Require().Len(s.notifier.sent, 1)
	mail := s.notifier.sent[0]
	s.Equal(notify.KindCaseRegistered, mail.kind)
	s.Equal("family@example.com", mail.recipient)
	s.Equal("123456789012", mail.fields.NationalID)
	s.Equal("05-01-2026", mail.fields.MissingFrom)
	s.False(mail.attached)
}

func (s *ServiceSuite) TestRegisterDuplicateIdentityLeavesNoTrace() {
	_, err := s.svc.Register(context.Background(), input("123456789012", "a@example.com"), []byte("p1"))
	s.Require().NoError(err)

	before := len(s.objects.objects)
	_, err = s.svc.Register(context.Background(), input("123456789012", "b@example.com"), []byte("p2"))
	s.Require().ErrorIs(err, storage.ErrDuplicateIdentity)

	persons, err := s.store.ListPersons(context.Background(), "")
	s.Require().NoError(err)
	s.Len(persons, 1)
	s.Len(s.objects.objects, before, "duplicate registration must not upload a photo")
	s.Len(s.notifier.sent, 1, "duplicate registration must not send an email")
}

func (s *ServiceSuite) TestRegisterNotificationFailureKeepsCase() {
	s.notifier.fail = true

	p, err := s.svc.Register(context.Background(), input("555566667777", "x@example.com"), []byte("p"))
	s.Require().ErrorIs(err, ErrNotification)
	s.Require().NotNil(p)

	stored, err := s.store.GetPerson(context.Background(), p.ID)
	s.Require().NoError(err, "the case must survive a failed confirmation email")
	s.Equal("555566667777", stored.NationalID)
}

func (s *ServiceSuite) TestUpdateNonAdminCannotChangeModeration() {
	p, err := s.svc.Register(context.Background(), input("111122223333", "a@example.com"), nil)
	s.Require().NoError(err)

	in := input("111122223333", "a@example.com")
	in.Status = models.StatusFound
	in.Approval = models.ApprovalApproved
	in.Address = "new address"

	updated, err := s.svc.Update(context.Background(), p.ID, in, nil, false)
	s.Require().NoError(err)

	s.Equal("new address", updated.Address)
	s.Equal(models.StatusMissing, updated.Status, "non-admin status change must be reverted")
	s.Equal(models.ApprovalPending, updated.Approval, "non-admin approval change must be reverted")
}

func (s *ServiceSuite) TestUpdateAdminAppliesModeration() {
	p, err := s.svc.Register(context.Background(), input("111122223333", "a@example.com"), nil)
	s.Require().NoError(err)

	in := input("111122223333", "a@example.com")
	in.Approval = models.ApprovalApproved

	updated, err := s.svc.Update(context.Background(), p.ID, in, nil, true)
	s.Require().NoError(err)
	s.Equal(models.ApprovalApproved, updated.Approval)
}

func (s *ServiceSuite) TestUpdateAdminStatusFoundSendsCaseClosed() {
	p, err := s.svc.Register(context.Background(), input("111122223333", "kin@example.com"), nil)
	s.Require().NoError(err)
	s.Require().Len(s.notifier.sent, 1) // registration mail

	in := input("111122223333", "kin@example.com")
	in.Status = models.StatusFound

	updated, err := s.svc.Update(context.Background(), p.ID, in, nil, true)
	s.Require().NoError(err)
	s.Equal(models.StatusFound, updated.Status)

	s.Require().Len(s.notifier.sent, 2, "an admin save landing on Found closes the case")
	s.Equal(notify.KindCaseClosed, s.notifier.sent[1].kind)
	s.Equal("kin@example.com", s.notifier.sent[1].recipient)

	// Saving the already-Found case again must not mail twice.
	_, err = s.svc.Update(context.Background(), p.ID, in, nil, true)
	s.Require().NoError(err)
	s.Len(s.notifier.sent, 2)
}

func (s *ServiceSuite) TestUpdateNonAdminFoundDoesNotNotify() {
	p, err := s.svc.Register(context.Background(), input("111122223333", "kin@example.com"), nil)
	s.Require().NoError(err)

	in := input("111122223333", "kin@example.com")
	in.Status = models.StatusFound

	updated, err := s.svc.Update(context.Background(), p.ID, in, nil, false)
	s.Require().NoError(err)
	s.Equal(models.StatusMissing, updated.Status)
	s.Len(s.notifier.sent, 1, "a reverted status change must not close the case")
}

func (s *ServiceSuite) TestUpdateReplacesPhoto() {
	p, err := s.svc.Register(context.Background(), input("111122223333", "a@example.com"), []byte("old"))
	s.Require().NoError(err)
	oldKey := p.PhotoKey

	updated, err := s.svc.Update(context.Background(), p.ID, input("111122223333", "a@example.com"), []byte("new"), false)
	s.Require().NoError(err)

	s.NotEqual(oldKey, updated.PhotoKey)
	s.Equal([]byte("new"), s.objects.objects[updated.PhotoKey])
	s.NotContains(s.objects.objects, oldKey)
}

func (s *ServiceSuite) TestSetStatusFoundSendsExactlyOneEmail() {
	p, err := s.svc.Register(context.Background(), input("999988887777", "kin@example.com"), nil)
	s.Require().NoError(err)
	s.Require().Len(s.notifier.sent, 1) // registration mail

	updated, err := s.svc.SetStatus(context.Background(), p.ID, models.StatusFound)
	s.Require().NoError(err)
	s.Equal(models.StatusFound, updated.Status)

	s.Require().Len(s.notifier.sent, 2)
	s.Equal(notify.KindCaseClosed, s.notifier.sent[1].kind)
	s.Equal("kin@example.com", s.notifier.sent[1].recipient)

	// Setting Found again must not mail twice.
	_, err = s.svc.SetStatus(context.Background(), p.ID, models.StatusFound)
	s.Require().NoError(err)
	s.Len(s.notifier.sent, 2)
}

func (s *ServiceSuite) TestDeleteRemovesCaseAndPhoto() {
	p, err := s.svc.Register(context.Background(), input("444455556666", "a@example.com"), []byte("photo"))
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Delete(context.Background(), p.ID))

	_, err = s.store.GetPerson(context.Background(), p.ID)
	s.ErrorIs(err, storage.ErrNotFound)
	s.NotContains(s.objects.objects, p.PhotoKey)
}

func (s *ServiceSuite) TestLocationsUnknownPerson() {
	_, err := s.svc.Locations(context.Background(), uuid.New())
	s.ErrorIs(err, storage.ErrNotFound)
}

func TestPersonFieldsFormatsDates(t *testing.T) {
	p := &models.Person{
		FirstName:   "Asha",
		LastName:    "Verma",
		NationalID:  "123456789012",
		MissingFrom: time.Date(2026, 2, 1, 10, 30, 0, 0, time.UTC),
	}
	fields := personFields(p, "Latitude: 12.900000, Longitude: 77.600000")
	require.Equal(t, "01-02-2026", fields.MissingFrom)
	require.Contains(t, fields.Location, "Latitude: 12.9")
}
