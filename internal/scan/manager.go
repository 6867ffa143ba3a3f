package scan

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldmark/fieldmark/internal/capture"
	"github.com/fieldmark/fieldmark/internal/code"
	"github.com/fieldmark/fieldmark/internal/config"
	"github.com/fieldmark/fieldmark/internal/decode"
	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

// Manager owns scan sessions. It starts their decode loops, serves
// snapshots and cancellation by session ID, and reaps terminated sessions
// after the configured TTL.
type Manager struct {
	capture  *capture.Manager
	decoder  decode.Decoder
	resolver *code.Resolver
	verifier Verifier
	opts     Options
	ttl      time.Duration
	events   *broadcaster

	mu       sync.Mutex
	sessions map[string]*Session

	reapStop chan struct{}
	reapOnce sync.Once
}

// NewManager creates a session manager over the given capture device.
// verifier may be nil when registry verification is disabled.
func NewManager(captureMgr *capture.Manager, decoder decode.Decoder, resolver *code.Resolver, verifier Verifier, cfg *config.ScanConfig) *Manager {
	m := &Manager{
		capture:  captureMgr,
		decoder:  decoder,
		resolver: resolver,
		verifier: verifier,
		opts: Options{
			FrameRate:     cfg.FrameRate,
			Verify:        cfg.VerifyCodes,
			StopOnUnknown: cfg.StopOnUnknown,
		},
		ttl:      time.Duration(cfg.SessionTTL) * time.Second,
		events:   newBroadcaster(),
		sessions: make(map[string]*Session),
		reapStop: make(chan struct{}),
	}
	go m.reapLoop()
	return m
}

// Start creates a session and launches its decode loop. Device acquisition
// happens inside the loop, so open failures surface as a fatal session
// state rather than an error here.
func (m *Manager) Start(ctx context.Context) *Session {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := newSession(uuid.NewString(), m.decoder, m.resolver, m.verifier, m.opts, m.events)
	s.cancel = cancel

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	go s.run(runCtx, m.capture)
	return s
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmerr.ErrSessionNotFound.WithMessage("scan session %q not found", id)
	}
	return s, nil
}

// Cancel requests cooperative shutdown of the session. Canceling a session
// that already terminated returns ErrSessionClosed.
func (m *Manager) Cancel(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if s.Snapshot().State.Terminal() {
		return fmerr.ErrSessionClosed.WithMessage("scan session %q already terminated", id)
	}
	s.Cancel()
	return nil
}

// Subscribe returns a channel of events for all sessions plus a cancel
// function that must be called when the subscriber goes away.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	return m.events.Subscribe()
}

// Close cancels all live sessions and stops the reaper.
func (m *Manager) Close() error {
	m.reapOnce.Do(func() { close(m.reapStop) })

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Cancel()
		<-s.Done()
	}
	return nil
}

// reapLoop drops terminated sessions once they are older than the TTL.
func (m *Manager) reapLoop() {
	if m.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(m.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-m.reapStop:
			return
		case <-ticker.C:
		}

		cutoff := time.Now().Add(-m.ttl)
		m.mu.Lock()
		for id, s := range m.sessions {
			v := s.Snapshot()
			if v.State.Terminal() && v.FinishedAt.Before(cutoff) {
				delete(m.sessions, id)
			}
		}
		m.mu.Unlock()
	}
}
