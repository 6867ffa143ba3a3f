package scan

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fieldmark/fieldmark/internal/capture"
	"github.com/fieldmark/fieldmark/internal/code"
	"github.com/fieldmark/fieldmark/internal/decode"
	fmerr "github.com/fieldmark/fieldmark/internal/errors"
	"github.com/fieldmark/fieldmark/internal/metrics"
	"github.com/fieldmark/fieldmark/internal/registry"
)

// Result is the single successful read of a session.
type Result struct {
	// Code is the resolved location code.
	Code string `json:"code"`
	// Kind reports whether the code was read directly or extracted from a
	// structured payload.
	Kind string `json:"kind"`
	// Payload is the raw symbol text the code came from.
	Payload string `json:"payload"`
	// LocationID is the bound location, when verification is enabled.
	LocationID string `json:"location_id,omitempty"`
}

// Verifier checks a resolved code against the location registry.
type Verifier interface {
	FindByCode(ctx context.Context, code string) (*registry.LocationRecord, error)
}

// Options tune a session's decode loop.
type Options struct {
	// FrameRate is the loop cadence in ticks per second.
	FrameRate int
	// Verify checks resolved codes against the registry before success.
	Verify bool
	// StopOnUnknown ends the session with a fatal not-found failure when a
	// verified code has no location. When false the loop keeps scanning.
	StopOnUnknown bool
}

// Session is one cooperative decode run. It advances Idle -> Initializing ->
// Scanning and ends in exactly one of Success, Fatal, or Closed. The capture
// handle is released on every exit path, and at most one success is ever
// recorded.
type Session struct {
	ID        string
	StartedAt time.Time

	decoder  decode.Decoder
	resolver *code.Resolver
	verifier Verifier
	opts     Options
	events   *broadcaster

	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	state      State
	result     *Result
	failure    error
	frames     uint64
	finishedAt time.Time
}

func newSession(id string, decoder decode.Decoder, resolver *code.Resolver, verifier Verifier, opts Options, events *broadcaster) *Session {
	if opts.FrameRate <= 0 {
		opts.FrameRate = 30
	}
	return &Session{
		ID:        id,
		StartedAt: time.Now(),
		decoder:   decoder,
		resolver:  resolver,
		verifier:  verifier,
		opts:      opts,
		events:    events,
		state:     StateIdle,
		done:      make(chan struct{}),
	}
}

// View is a point-in-time snapshot of a session.
type View struct {
	ID         string    `json:"id"`
	State      State     `json:"state"`
	Frames     uint64    `json:"frames"`
	Result     *Result   `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Snapshot returns the session's current state.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:        s.ID,
		State:     s.state,
		Frames:    s.frames,
		Result:    s.result,
		StartedAt: s.StartedAt,
	}
	if s.failure != nil {
		v.Error = s.failure.Error()
	}
	if !s.finishedAt.IsZero() {
		v.FinishedAt = s.finishedAt
	}
	return v
}

// Err returns the terminal failure, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Cancel requests cooperative shutdown. The loop observes it at the next
// tick boundary; Cancel never blocks.
func (s *Session) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	s.state = next
	if next.Terminal() {
		s.finishedAt = time.Now()
	}
	frames := s.frames
	s.mu.Unlock()

	s.events.publish(Event{
		SessionID: s.ID,
		Kind:      EventState,
		State:     next,
		Frames:    frames,
		Time:      time.Now(),
	})
}

// latchSuccess records the result if no terminal state was reached yet.
// Returns false when the session already terminated.
func (s *Session) latchSuccess(res *Result) bool {
	s.mu.Lock()
	if s.state.Terminal() || s.result != nil {
		s.mu.Unlock()
		return false
	}
	s.result = res
	s.mu.Unlock()
	return true
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.failure = err
	s.mu.Unlock()

	s.events.publish(Event{
		SessionID: s.ID,
		Kind:      EventFatal,
		Error:     err.Error(),
		Time:      time.Now(),
	})
	s.setState(StateFatal)
	metrics.ScanSessionsTotal.WithLabelValues("fatal").Inc()
}

// run drives the session to a terminal state. The capture manager is the
// only resource owner; every exit path below funnels through the deferred
// handle close.
func (s *Session) run(ctx context.Context, captureMgr *capture.Manager) {
	defer close(s.done)
	defer metrics.ScanSessionsActive.Dec()
	metrics.ScanSessionsActive.Inc()
	start := time.Now()
	defer func() { metrics.ScanDuration.Observe(time.Since(start).Seconds()) }()

	s.setState(StateInitializing)

	handle, err := captureMgr.Acquire(ctx)
	if err != nil {
		s.fail(err)
		return
	}
	defer handle.Close()

	// Light the target when the device can; absence is not an error.
	if err := handle.SetIllumination(true); err != nil && !errors.Is(err, fmerr.ErrIlluminationUnsupported) {
		slog.Warn("enabling illumination", "session", s.ID, "error", err)
	}
	defer handle.SetIllumination(false)

	s.setState(StateScanning)
	slog.Info("scan session started", "session", s.ID, "device", handle.Name())

	interval := time.Second / time.Duration(s.opts.FrameRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.setState(StateClosed)
			metrics.ScanSessionsTotal.WithLabelValues("canceled").Inc()
			slog.Info("scan session canceled", "session", s.ID, "frames", s.Snapshot().Frames)
			return
		case <-ticker.C:
		}

		frame, err := handle.ReadFrame()
		if err != nil {
			s.fail(err)
			return
		}
		if frame == nil {
			continue
		}

		s.mu.Lock()
		s.frames++
		s.mu.Unlock()

		payload, ok := s.decoder.Decode(frame.Image)
		if !ok {
			metrics.FramesProcessedTotal.WithLabelValues("empty").Inc()
			continue
		}

		res := s.resolver.Resolve(payload)
		if res.Kind == code.KindUnrecognized {
			metrics.FramesProcessedTotal.WithLabelValues("invalid").Inc()
			s.publishInvalid(payload, "payload does not contain a location code")
			continue
		}

		result := &Result{
			Code:    res.Code,
			Kind:    res.Kind.String(),
			Payload: payload,
		}

		if s.opts.Verify && s.verifier != nil {
			loc, err := s.verifier.FindByCode(ctx, res.Code)
			if err != nil {
				if errors.Is(err, fmerr.ErrCodeNotFound) {
					if s.opts.StopOnUnknown {
						s.fail(err)
						return
					}
					metrics.FramesProcessedTotal.WithLabelValues("invalid").Inc()
					s.publishInvalid(payload, "code is not bound to a location")
					continue
				}
				s.fail(err)
				return
			}
			result.LocationID = loc.ID
		}

		if !s.latchSuccess(result) {
			return
		}
		metrics.FramesProcessedTotal.WithLabelValues("resolved").Inc()
		metrics.ScanSessionsTotal.WithLabelValues("success").Inc()
		s.events.publish(Event{
			SessionID: s.ID,
			Kind:      EventSuccess,
			Code:      result.Code,
			Payload:   payload,
			Frames:    s.Snapshot().Frames,
			Time:      time.Now(),
		})
		s.setState(StateSuccess)
		slog.Info("scan session resolved", "session", s.ID, "code", result.Code, "frames", s.Snapshot().Frames)
		return
	}
}

func (s *Session) publishInvalid(payload, reason string) {
	s.events.publish(Event{
		SessionID: s.ID,
		Kind:      EventInvalid,
		Payload:   payload,
		Error:     reason,
		Frames:    s.Snapshot().Frames,
		Time:      time.Now(),
	})
}
