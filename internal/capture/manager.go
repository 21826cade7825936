package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/your-org/mpr/internal/models"
)

// SourceFactory opens a frame source for a device. Injected so tests can
// substitute a synthetic camera.
type SourceFactory func(device string) FrameSource

// Manager owns the running surveillance sessions in the watcher process. One
// session per device at a time; a second start on a busy device is rejected.
type Manager struct {
	deps       SessionDeps
	newSource  SourceFactory
	fps        int
	clipLen    int
	minScore   float32
	defaultDev string

	mu       sync.Mutex
	sessions map[uuid.UUID]*runningSession
	devices  map[string]uuid.UUID
}

type runningSession struct {
	session *Session
	device  string
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewManager(deps SessionDeps, newSource SourceFactory, defaultDevice string, fps, clipSeconds int, matchThreshold float32) *Manager {
	return &Manager{
		deps:       deps,
		newSource:  newSource,
		fps:        fps,
		clipLen:    clipSeconds,
		minScore:   matchThreshold,
		defaultDev: defaultDevice,
		sessions:   make(map[uuid.UUID]*runningSession),
		devices:    make(map[string]uuid.UUID),
	}
}

// HandleCommand dispatches a control message from NATS.
func (m *Manager) HandleCommand(ctx context.Context, cmd models.SessionCommand) error {
	switch cmd.Action {
	case "start":
		return m.Start(ctx, cmd.SessionID, cmd.Device)
	case "stop":
		return m.Stop(cmd.SessionID)
	default:
		return fmt.Errorf("unknown session action %q", cmd.Action)
	}
}

// Start launches a session on the given device. An empty device falls back to
// the configured default.
func (m *Manager) Start(ctx context.Context, id uuid.UUID, device string) error {
	if device == "" {
		device = m.defaultDev
	}
	if id == uuid.Nil {
		id = uuid.New()
	}

	m.mu.Lock()
	if existing, busy := m.devices[device]; busy {
		m.mu.Unlock()
		return fmt.Errorf("device %s already in use by session %s", device, existing)
	}

	session := NewSession(id, m.newSource(device), m.deps, m.fps, m.clipLen, m.minScore)
	sessionCtx, cancel := context.WithCancel(ctx)
	rs := &runningSession{
		session: session,
		device:  device,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	m.sessions[id] = rs
	m.devices[device] = id
	m.mu.Unlock()

	slog.Info("starting session", "session_id", id, "device", device)

	go func() {
		defer close(rs.done)
		if err := session.Run(sessionCtx); err != nil {
			slog.Error("session ended with error", "session_id", id, "error", err)
		} else {
			slog.Info("session ended", "session_id", id)
		}
		m.remove(id, device)
	}()

	return nil
}

// Stop terminates a running session.
func (m *Manager) Stop(id uuid.UUID) error {
	m.mu.Lock()
	rs, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}

	rs.cancel()
	<-rs.done
	return nil
}

// StopAll terminates every running session. Used during shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	running := make([]*runningSession, 0, len(m.sessions))
	for _, rs := range m.sessions {
		running = append(running, rs)
	}
	m.mu.Unlock()

	for _, rs := range running {
		rs.cancel()
		<-rs.done
	}
}

// ActiveCount reports how many sessions are currently running.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) remove(id uuid.UUID, device string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	if m.devices[device] == id {
		delete(m.devices, device)
	}
}
