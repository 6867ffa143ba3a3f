package scan

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	qrgen "github.com/skip2/go-qrcode"

	"github.com/fieldmark/fieldmark/internal/capture"
	"github.com/fieldmark/fieldmark/internal/code"
	"github.com/fieldmark/fieldmark/internal/config"
	"github.com/fieldmark/fieldmark/internal/decode"
	fmerr "github.com/fieldmark/fieldmark/internal/errors"
	"github.com/fieldmark/fieldmark/internal/registry"
)

func qrFrame(t *testing.T, payload string) image.Image {
	t.Helper()
	qr, err := qrgen.New(payload, qrgen.Medium)
	if err != nil {
		t.Fatalf("generating QR frame: %v", err)
	}
	return qr.Image(256)
}

func testManager(t *testing.T, dev capture.Device, verifier Verifier, cfg *config.ScanConfig) *Manager {
	t.Helper()
	if cfg == nil {
		cfg = &config.ScanConfig{FrameRate: 200, SessionTTL: 60}
	}
	m := NewManager(capture.NewManager(dev), decode.NewQRDecoder(), code.NewResolver([]string{"location"}), verifier, cfg)
	t.Cleanup(func() { m.Close() })
	return m
}

func waitDone(t *testing.T, s *Session) View {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("session %s did not terminate; state %v", s.ID, s.Snapshot().State)
	}
	return s.Snapshot()
}

func TestSessionSuccess(t *testing.T) {
	// Three frames carry the same code; the success latch must fire once
	// and stop the loop on the first resolved frame.
	frames := []image.Image{
		qrFrame(t, "LOC-ab3D9kX7Q2mN"),
		qrFrame(t, "LOC-ab3D9kX7Q2mN"),
		qrFrame(t, "LOC-ab3D9kX7Q2mN"),
	}
	m := testManager(t, capture.NewSimDevice(frames), nil, nil)

	s := m.Start(context.Background())
	v := waitDone(t, s)

	if v.State != StateSuccess {
		t.Fatalf("state = %v, want success (err %v)", v.State, s.Err())
	}
	if v.Result == nil || v.Result.Code != "LOC-ab3D9kX7Q2mN" {
		t.Fatalf("result = %+v, want code LOC-ab3D9kX7Q2mN", v.Result)
	}
	if v.Result.Kind != "direct" {
		t.Errorf("result kind = %q, want direct", v.Result.Kind)
	}
	if v.Frames != 1 {
		t.Errorf("frames processed = %d, want 1 (loop must stop on first success)", v.Frames)
	}
	if v.FinishedAt.IsZero() {
		t.Error("terminal session has no finish time")
	}
}

func TestSessionEmbeddedPayload(t *testing.T) {
	frames := []image.Image{qrFrame(t, "https://app.example/location/LOC-ab3D9kX7Q2mN")}
	m := testManager(t, capture.NewSimDevice(frames), nil, nil)

	v := waitDone(t, m.Start(context.Background()))
	if v.State != StateSuccess || v.Result == nil {
		t.Fatalf("state = %v result = %+v, want embedded success", v.State, v.Result)
	}
	if v.Result.Kind != "embedded" || v.Result.Code != "LOC-ab3D9kX7Q2mN" {
		t.Errorf("result = %+v, want embedded LOC-ab3D9kX7Q2mN", v.Result)
	}
}

func TestSessionKeepsScanningPastInvalidFrames(t *testing.T) {
	// A blank frame and an unrecognized payload are recoverable; the loop
	// continues to the valid frame.
	frames := []image.Image{
		image.NewGray(image.Rect(0, 0, 64, 64)),
		qrFrame(t, "just some text"),
		qrFrame(t, "LOC-ab3D9kX7Q2mN"),
	}
	m := testManager(t, capture.NewSimDevice(frames), nil, nil)

	events, stop := m.Subscribe()
	defer stop()

	v := waitDone(t, m.Start(context.Background()))
	if v.State != StateSuccess {
		t.Fatalf("state = %v, want success (err %v)", v.State, s0err(m, v.ID))
	}
	if v.Frames != 3 {
		t.Errorf("frames processed = %d, want 3", v.Frames)
	}

	var sawInvalid bool
	for {
		select {
		case ev := <-events:
			if ev.Kind == EventInvalid {
				sawInvalid = true
			}
			if ev.Kind == EventSuccess {
				if !sawInvalid {
					t.Error("no invalid event published before success")
				}
				return
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no success event published")
		}
	}
}

func s0err(m *Manager, id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	return s.Err()
}

func TestSessionCancel(t *testing.T) {
	// No frames ever arrive; the loop runs until canceled and must end in
	// the closed state with the device released.
	dev := capture.NewSimDevice(nil)
	m := testManager(t, dev, nil, nil)

	s := m.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	if err := m.Cancel(s.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	v := waitDone(t, s)
	if v.State != StateClosed {
		t.Fatalf("state = %v, want closed", v.State)
	}

	// Canceling a terminated session is an explicit error.
	if err := m.Cancel(s.ID); !errors.Is(err, fmerr.ErrSessionClosed) {
		t.Errorf("Cancel(terminated) error = %v, want ErrSessionClosed", err)
	}

	// The device was released on the cancel path.
	if err := dev.Open(context.Background()); err != nil {
		t.Errorf("device still held after cancel: %v", err)
	}
	dev.Close()
}

func TestSessionFatalOpen(t *testing.T) {
	dev := capture.NewSimDevice(nil)
	dev.FailOpenWith(fmerr.ErrCapturePermission)
	m := testManager(t, dev, nil, nil)

	s := m.Start(context.Background())
	v := waitDone(t, s)

	if v.State != StateFatal {
		t.Fatalf("state = %v, want fatal", v.State)
	}
	if !errors.Is(s.Err(), fmerr.ErrCapturePermission) {
		t.Errorf("session error = %v, want ErrCapturePermission", s.Err())
	}
}

func TestSessionVerification(t *testing.T) {
	store := registry.NewMemoryStore()
	ctx := context.Background()
	if err := store.CreateLocation(ctx, &registry.LocationRecord{ID: "loc-1", Code: "LOC-ab3D9kX7Q2mN"}); err != nil {
		t.Fatalf("seeding registry: %v", err)
	}

	t.Run("bound code resolves with location", func(t *testing.T) {
		cfg := &config.ScanConfig{FrameRate: 200, SessionTTL: 60, VerifyCodes: true}
		m := testManager(t, capture.NewSimDevice([]image.Image{qrFrame(t, "LOC-ab3D9kX7Q2mN")}), store, cfg)

		v := waitDone(t, m.Start(ctx))
		if v.State != StateSuccess || v.Result == nil {
			t.Fatalf("state = %v result = %+v, want verified success", v.State, v.Result)
		}
		if v.Result.LocationID != "loc-1" {
			t.Errorf("location = %q, want loc-1", v.Result.LocationID)
		}
	})

	t.Run("unknown code is fatal when configured", func(t *testing.T) {
		cfg := &config.ScanConfig{FrameRate: 200, SessionTTL: 60, VerifyCodes: true, StopOnUnknown: true}
		m := testManager(t, capture.NewSimDevice([]image.Image{qrFrame(t, "LOC-zzzzzzzzzzzz")}), store, cfg)

		s := m.Start(ctx)
		v := waitDone(t, s)
		if v.State != StateFatal {
			t.Fatalf("state = %v, want fatal", v.State)
		}
		if !errors.Is(s.Err(), fmerr.ErrCodeNotFound) {
			t.Errorf("session error = %v, want ErrCodeNotFound", s.Err())
		}
	})

	t.Run("unknown code is recoverable by default", func(t *testing.T) {
		cfg := &config.ScanConfig{FrameRate: 200, SessionTTL: 60, VerifyCodes: true}
		frames := []image.Image{
			qrFrame(t, "LOC-zzzzzzzzzzzz"),
			qrFrame(t, "LOC-ab3D9kX7Q2mN"),
		}
		m := testManager(t, capture.NewSimDevice(frames), store, cfg)

		v := waitDone(t, m.Start(ctx))
		if v.State != StateSuccess || v.Result == nil || v.Result.LocationID != "loc-1" {
			t.Fatalf("state = %v result = %+v, want success on second frame", v.State, v.Result)
		}
	})
}

func TestManagerGet(t *testing.T) {
	m := testManager(t, capture.NewSimDevice(nil), nil, nil)
	if _, err := m.Get("nope"); !errors.Is(err, fmerr.ErrSessionNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrSessionNotFound", err)
	}

	s := m.Start(context.Background())
	got, err := m.Get(s.ID)
	if err != nil || got.ID != s.ID {
		t.Errorf("Get = (%v, %v), want started session", got, err)
	}
	s.Cancel()
	waitDone(t, s)
}
