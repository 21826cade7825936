package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/mpr/internal/geo"
	"github.com/your-org/mpr/internal/models"
	"github.com/your-org/mpr/internal/notify"
	"github.com/your-org/mpr/internal/observability"
	"github.com/your-org/mpr/internal/vision"
)

// State is the lifecycle of a surveillance session.
type State string

const (
	StateIdle         State = "idle"
	StateStreaming    State = "streaming"
	StateMatchPending State = "match_pending"
	StateTerminated   State = "terminated"
)

// RosterSource loads the registered persons that carry a face encoding. The
// roster is read once at session start; registrations made afterwards are
// picked up by the next session.
type RosterSource interface {
	Roster(ctx context.Context) ([]models.Person, error)
}

// LocationWriter persists a detected location for a person.
type LocationWriter interface {
	CreateLocation(ctx context.Context, loc *models.Location) error
}

// FaceFinder detects and encodes faces in a JPEG frame.
type FaceFinder interface {
	FindFaces(frame []byte) ([]vision.Face, error)
}

// SightingPublisher announces positive matches to the rest of the system.
type SightingPublisher interface {
	PublishSighting(ctx context.Context, event models.SightingEvent) error
}

// ClipStore persists captured video clips addressed by key.
type ClipStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// SessionDeps bundles everything a session needs besides its frame source.
type SessionDeps struct {
	Roster    RosterSource
	Locations LocationWriter
	Finder    FaceFinder
	Locator   geo.Locator
	Notifier  notify.Notifier
	Publisher SightingPublisher
	Clips     ClipStore
	Muxer     ClipMuxer
}

// Session runs one camera surveillance loop: pull frames, detect faces,
// compare against the roster, and on the first match notify the registered
// contact with the detected location and a short video clip. Later matches in
// the same session are published but never emailed; a fresh session starts
// with a clean slate.
type Session struct {
	ID       uuid.UUID
	deps     SessionDeps
	source   FrameSource
	fps      int
	clipLen  time.Duration
	minScore float32

	roster   []models.Person
	notified bool

	mu    sync.RWMutex
	state State
}

func NewSession(id uuid.UUID, source FrameSource, deps SessionDeps, fps, clipSeconds int, matchThreshold float32) *Session {
	return &Session{
		ID:       id,
		deps:     deps,
		source:   source,
		fps:      fps,
		clipLen:  time.Duration(clipSeconds) * time.Second,
		minScore: matchThreshold,
		state:    StateIdle,
	}
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run drives the session until the context is cancelled or the camera stream
// ends. The camera is released on every exit path.
func (s *Session) Run(ctx context.Context) error {
	roster, err := s.deps.Roster.Roster(ctx)
	if err != nil {
		s.setState(StateTerminated)
		return fmt.Errorf("load roster: %w", err)
	}
	s.roster = roster

	if err := s.source.Start(ctx); err != nil {
		s.setState(StateTerminated)
		return err
	}
	defer s.source.Stop()
	defer s.setState(StateTerminated)

	s.setState(StateStreaming)
	observability.SessionsActive.Inc()
	defer observability.SessionsActive.Dec()

	slog.Info("session streaming", "session_id", s.ID, "roster_size", len(s.roster))

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-s.source.Frames():
			if !ok {
				// A device that died mid-stream (or never produced a
				// frame) must not look like a clean session end.
				return s.source.Err()
			}
			s.processFrame(ctx, frame)
		}
	}
}

func (s *Session) processFrame(ctx context.Context, frame []byte) {
	start := time.Now()
	faces, err := s.deps.Finder.FindFaces(frame)
	observability.InferenceDuration.Observe(time.Since(start).Seconds())
	observability.FramesProcessed.Inc()
	if err != nil {
		slog.Warn("find faces", "session_id", s.ID, "error", err)
		return
	}
	observability.FacesDetected.Add(float64(len(faces)))

	for _, face := range faces {
		person, score := s.match(face.Embedding)
		if person == nil {
			continue
		}
		observability.MatchesTotal.Inc()
		s.handleMatch(ctx, person, score)
	}
}

// match compares a face encoding against the roster in stored order and
// returns the first person whose similarity clears the threshold.
func (s *Session) match(embedding []float32) (*models.Person, float32) {
	for i := range s.roster {
		score := vision.Cosine(embedding, s.roster[i].Embedding)
		if score >= s.minScore {
			return &s.roster[i], score
		}
	}
	return nil, 0
}

func (s *Session) handleMatch(ctx context.Context, person *models.Person, score float32) {
	detectedAt := time.Now()
	event := models.SightingEvent{
		SessionID:  s.ID,
		PersonID:   person.ID,
		PersonName: person.FullName(),
		Score:      score,
		Notified:   !s.notified,
		DetectedAt: detectedAt,
	}

	if !s.notified {
		s.setState(StateMatchPending)
		slog.Info("first match of session", "session_id", s.ID,
			"person_id", person.ID, "score", score)

		locationText := s.recordLocation(ctx, person)
		clipKey, clipData := s.captureClip(ctx)
		event.ClipKey = clipKey
		s.sendFoundNotification(ctx, person, locationText, detectedAt, clipData)

		s.notified = true
		s.setState(StateStreaming)
	}

	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishSighting(ctx, event); err != nil {
			slog.Error("publish sighting", "session_id", s.ID, "error", err)
		}
	}
}

// recordLocation resolves the current vantage-point location and stores it.
// An unresolved location is a silent downgrade: nothing is stored and the
// notification goes out without a location line.
func (s *Session) recordLocation(ctx context.Context, person *models.Person) string {
	coords, err := s.deps.Locator.CurrentLocation(ctx)
	if err != nil {
		slog.Warn("geolocation unresolved", "session_id", s.ID, "error", err)
		return ""
	}

	loc := &models.Location{
		PersonID:   person.ID,
		Latitude:   coords.Latitude,
		Longitude:  coords.Longitude,
		DetectedAt: time.Now(),
	}
	if err := s.deps.Locations.CreateLocation(ctx, loc); err != nil {
		slog.Error("store location", "session_id", s.ID, "person_id", person.ID, "error", err)
	}

	return fmt.Sprintf("Latitude: %.6f, Longitude: %.6f", coords.Latitude, coords.Longitude)
}

// captureClip blocks on the live frame flow for the clip duration, muxes the
// collected frames, and uploads the result. Returns the object key and clip
// bytes; the key is "" when the clip could not be produced.
func (s *Session) captureClip(ctx context.Context) (string, []byte) {
	frames := collectClipFrames(ctx, s.source.Frames(), s.clipLen)
	if len(frames) == 0 {
		slog.Warn("no frames collected for clip", "session_id", s.ID)
		return "", nil
	}

	data, err := s.deps.Muxer.Mux(ctx, frames, s.fps)
	if err != nil {
		slog.Error("mux clip", "session_id", s.ID, "error", err)
		return "", nil
	}

	key := fmt.Sprintf("clips/%s-%d.avi", s.ID, time.Now().Unix())
	if err := s.deps.Clips.PutObject(ctx, key, data, "video/x-msvideo"); err != nil {
		slog.Error("upload clip", "session_id", s.ID, "key", key, "error", err)
		return "", data
	}
	return key, data
}

func (s *Session) sendFoundNotification(ctx context.Context, person *models.Person, locationText string, detectedAt time.Time, clip []byte) {
	fields := notify.Fields{
		FirstName:   person.FirstName,
		LastName:    person.LastName,
		FatherName:  person.FatherName,
		NationalID:  person.NationalID,
		MissingFrom: person.MissingFrom.Format("02-01-2006"),
		Timestamp:   detectedAt.Format("02-01-2006 15:04"),
		Location:    locationText,
	}

	var att *notify.Attachment
	if len(clip) > 0 {
		att = &notify.Attachment{
			Filename:    "sighting.avi",
			ContentType: "video/x-msvideo",
			Data:        clip,
		}
	}

	err := s.deps.Notifier.Send(ctx, notify.KindPersonFound, fields, person.Email, att)
	if err != nil {
		observability.NotificationErrors.Inc()
		slog.Error("person-found notification", "session_id", s.ID,
			"person_id", person.ID, "error", err)
		return
	}
	observability.NotificationsSent.WithLabelValues(string(notify.KindPersonFound)).Inc()
}
