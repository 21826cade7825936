package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/your-org/mpr/internal/geo"
	"github.com/your-org/mpr/internal/models"
	"github.com/your-org/mpr/internal/notify"
	"github.com/your-org/mpr/internal/vision"
)

// fakeSource replays a scripted frame sequence and records release. Frames
// carry an optional delay so a test can place them after the blocking clip
// window.
type timedFrame struct {
	data  []byte
	delay time.Duration
}

type fakeSource struct {
	items   []timedFrame
	block   bool  // keep the stream open until the context ends
	err     error // terminal stream error reported after close
	out     chan []byte
	stopped bool
	mu      sync.Mutex
}

func newFakeSource(items ...timedFrame) *fakeSource {
	return &fakeSource{items: items, out: make(chan []byte)}
}

func frame(data string) timedFrame {
	return timedFrame{data: []byte(data)}
}

func frameAfter(data string, delay time.Duration) timedFrame {
	return timedFrame{data: []byte(data), delay: delay}
}

func (f *fakeSource) Start(ctx context.Context) error {
	go func() {
		defer close(f.out)
		for _, it := range f.items {
			if it.delay > 0 {
				time.Sleep(it.delay)
			}
			select {
			case f.out <- it.data:
			case <-ctx.Done():
				return
			}
		}
		if f.block {
			<-ctx.Done()
		}
	}()
	return nil
}

func (f *fakeSource) Frames() <-chan []byte { return f.out }
func (f *fakeSource) Err() error            { return f.err }
func (f *fakeSource) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeSource) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// fakeFinder maps frame content to canned face encodings.
type fakeFinder struct {
	byFrame map[string][][]float32
}

func (f *fakeFinder) FindFaces(frame []byte) ([]vision.Face, error) {
	var faces []vision.Face
	for _, emb := range f.byFrame[string(frame)] {
		faces = append(faces, vision.Face{Confidence: 0.9, Embedding: emb})
	}
	return faces, nil
}

type fakeRoster struct {
	persons []models.Person
}

func (f *fakeRoster) Roster(context.Context) ([]models.Person, error) {
	return f.persons, nil
}

type fakeLocations struct {
	mu      sync.Mutex
	created []models.Location
}

func (f *fakeLocations) CreateLocation(_ context.Context, loc *models.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, *loc)
	return nil
}

type fakeLocator struct {
	coords geo.Coordinates
	fail   bool
}

func (f *fakeLocator) CurrentLocation(context.Context) (geo.Coordinates, error) {
	if f.fail {
		return geo.Coordinates{}, geo.ErrUnresolved
	}
	return f.coords, nil
}

type sessionMail struct {
	kind      notify.Kind
	recipient string
	fields    notify.Fields
	attached  bool
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []sessionMail
}

func (f *captureNotifier) Send(_ context.Context, kind notify.Kind, fields notify.Fields, recipient string, att *notify.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sessionMail{kind: kind, recipient: recipient, fields: fields, attached: att != nil})
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.SightingEvent
}

func (f *fakePublisher) PublishSighting(_ context.Context, event models.SightingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type fakeClips struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeClips) PutObject(_ context.Context, key string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = data
	return nil
}

type fakeMuxer struct{}

func (fakeMuxer) Mux(_ context.Context, frames [][]byte, _ int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, errors.New("no frames")
	}
	return []byte("avi"), nil
}

var (
	encAlice = []float32{1, 0, 0}
	encBob   = []float32{0, 1, 0}
)

type SessionSuite struct {
	suite.Suite
	roster    *fakeRoster
	locations *fakeLocations
	locator   *fakeLocator
	notifier  *captureNotifier
	publisher *fakePublisher
	clips     *fakeClips
	finder    *fakeFinder
}

func (s *SessionSuite) SetupTest() {
	s.roster = &fakeRoster{persons: []models.Person{
		{
			ID:         uuid.New(),
			FirstName:  "Alice",
			LastName:   "Kumar",
			Email:      "alice.kin@example.com",
			NationalID: "123456789012",
			Embedding:  encAlice,
		},
		{
			ID:         uuid.New(),
			FirstName:  "Bob",
			LastName:   "Singh",
			Email:      "bob.kin@example.com",
			NationalID: "210987654321",
			Embedding:  encBob,
		},
	}}
	s.locations = &fakeLocations{}
	s.locator = &fakeLocator{coords: geo.Coordinates{Latitude: 12.97, Longitude: 77.59}}
	s.notifier = &captureNotifier{}
	s.publisher = &fakePublisher{}
	s.clips = &fakeClips{}
	s.finder = &fakeFinder{byFrame: map[string][][]float32{}}
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) newSession(source FrameSource) *Session {
	deps := SessionDeps{
		Roster:    s.roster,
		Locations: s.locations,
		Finder:    s.finder,
		Locator:   s.locator,
		Notifier:  s.notifier,
		Publisher: s.publisher,
		Clips:     s.clips,
		Muxer:     fakeMuxer{},
	}
	// Sub-second clip window keeps the blocking capture fast in tests.
	sess := NewSession(uuid.New(), source, deps, 5, 1, 0.8)
	sess.clipLen = 50 * time.Millisecond
	return sess
}

func (s *SessionSuite) TestFirstMatchOnlyNotifiesOnce() {
	s.finder.byFrame["frameA"] = [][]float32{encAlice}
	s.finder.byFrame["frameB"] = [][]float32{encBob}

	source := newFakeSource(
		frame("frameA"),
		frame("clip1"), frame("clip2"), // consumed by the blocking clip capture
		frameAfter("frameB", 150*time.Millisecond), // arrives after the clip window
	)
	sess := s.newSession(source)

	s.Require().NoError(sess.Run(context.Background()))

	s.Require().Len(s.notifier.sent, 1, "only the first match of a session gets an email")
	mail := s.notifier.sent[0]
	s.Equal(notify.KindPersonFound, mail.kind)
	s.Equal("alice.kin@example.com", mail.recipient)
	s.True(mail.attached, "the notification must carry the video clip")
	s.Contains(mail.fields.Location, "Latitude: 12.97")

	s.Require().Len(s.publisher.events, 2, "every match is published")
	s.True(s.publisher.events[0].Notified)
	s.False(s.publisher.events[1].Notified)
	s.Equal("Bob Singh", s.publisher.events[1].PersonName)
}

func (s *SessionSuite) TestGeolocationFailureIsSilent() {
	s.locator.fail = true
	s.finder.byFrame["frameA"] = [][]float32{encAlice}

	source := newFakeSource(frame("frameA"), frame("clip1"))
	sess := s.newSession(source)

	s.Require().NoError(sess.Run(context.Background()))

	s.Require().Len(s.notifier.sent, 1, "notification still goes out without a location")
	s.Empty(s.notifier.sent[0].fields.Location)
	s.Empty(s.locations.created, "unresolved geolocation must not store a location")
}

func (s *SessionSuite) TestResolvedLocationIsStored() {
	s.finder.byFrame["frameA"] = [][]float32{encAlice}

	source := newFakeSource(frame("frameA"), frame("clip1"))
	sess := s.newSession(source)

	s.Require().NoError(sess.Run(context.Background()))

	s.Require().Len(s.locations.created, 1)
	loc := s.locations.created[0]
	s.Equal(s.roster.persons[0].ID, loc.PersonID)
	s.InDelta(12.97, loc.Latitude, 0.0001)
	s.InDelta(77.59, loc.Longitude, 0.0001)
}

func (s *SessionSuite) TestClipUploaded() {
	s.finder.byFrame["frameA"] = [][]float32{encAlice}

	source := newFakeSource(frame("frameA"), frame("clip1"))
	sess := s.newSession(source)

	s.Require().NoError(sess.Run(context.Background()))

	s.Require().Len(s.clips.objects, 1)
	s.Require().Len(s.publisher.events, 1)
	s.Contains(s.clips.objects, s.publisher.events[0].ClipKey)
}

func (s *SessionSuite) TestNoMatchBelowThreshold() {
	s.finder.byFrame["frameA"] = [][]float32{{0.5, 0.5, 0.7071}}

	source := newFakeSource(frame("frameA"))
	sess := s.newSession(source)

	s.Require().NoError(sess.Run(context.Background()))
	s.Empty(s.notifier.sent)
	s.Empty(s.publisher.events)
}

func (s *SessionSuite) TestDeviceFailureEndsSessionWithError() {
	source := newFakeSource() // zero frames, stream error pending
	source.err = ErrDeviceUnavailable
	sess := s.newSession(source)

	err := sess.Run(context.Background())
	s.Require().ErrorIs(err, ErrDeviceUnavailable)
	s.True(source.Stopped(), "the device must be released on the failure path")
	s.Equal(StateTerminated, sess.State())
	s.Empty(s.notifier.sent)
}

func (s *SessionSuite) TestCameraReleasedAfterStreamEnds() {
	source := newFakeSource(frame("frameA"))
	sess := s.newSession(source)

	s.Require().NoError(sess.Run(context.Background()))
	s.True(source.Stopped())
	s.Equal(StateTerminated, sess.State())
}

func TestManagerRejectsBusyDevice(t *testing.T) {
	deps := SessionDeps{
		Roster:    &fakeRoster{},
		Locations: &fakeLocations{},
		Finder:    &fakeFinder{byFrame: map[string][][]float32{}},
		Locator:   &fakeLocator{},
		Notifier:  &captureNotifier{},
		Publisher: &fakePublisher{},
		Clips:     &fakeClips{},
		Muxer:     fakeMuxer{},
	}

	m := NewManager(deps, func(string) FrameSource {
		return &fakeSource{block: true, out: make(chan []byte)}
	}, "/dev/video0", 5, 1, 0.8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := uuid.New()
	require.NoError(t, m.Start(ctx, first, ""))

	require.Eventually(t, func() bool { return m.ActiveCount() == 1 },
		time.Second, 10*time.Millisecond)

	err := m.Start(ctx, uuid.New(), "/dev/video0")
	require.Error(t, err, "one session per device")

	require.NoError(t, m.Stop(first))
	require.Equal(t, 0, m.ActiveCount())
}
