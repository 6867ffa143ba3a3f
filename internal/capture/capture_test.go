package capture

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	qrgen "github.com/skip2/go-qrcode"

	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

func testImage() image.Image {
	return image.NewGray(image.Rect(0, 0, 16, 16))
}

func TestManagerExclusiveAccess(t *testing.T) {
	m := NewManager(NewSimDevice(nil))
	ctx := context.Background()

	h1, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if _, err := m.Acquire(ctx); !errors.Is(err, fmerr.ErrCaptureBusy) {
		t.Errorf("second Acquire error = %v, want ErrCaptureBusy", err)
	}

	if err := h1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Close is idempotent; a second close must not release someone else's
	// lease.
	h2, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	if err := h1.Close(); err != nil {
		t.Errorf("repeated Close: %v", err)
	}
	if _, err := m.Acquire(ctx); !errors.Is(err, fmerr.ErrCaptureBusy) {
		t.Errorf("Acquire while held error = %v, want ErrCaptureBusy", err)
	}
	h2.Close()
}

func TestManagerOpenErrorPassthrough(t *testing.T) {
	dev := NewSimDevice(nil)
	dev.FailOpenWith(fmerr.ErrCapturePermission)
	m := NewManager(dev)

	_, err := m.Acquire(context.Background())
	if !errors.Is(err, fmerr.ErrCapturePermission) {
		t.Errorf("Acquire error = %v, want ErrCapturePermission", err)
	}

	// A failed open leaves the manager free for a later attempt.
	dev.FailOpenWith(nil)
	h, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after failed open: %v", err)
	}
	h.Close()
}

func TestSimDeviceFrames(t *testing.T) {
	dev := NewSimDevice([]image.Image{testImage(), nil, testImage()})
	if err := dev.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev.Close()

	f, err := dev.ReadFrame()
	if err != nil || f == nil {
		t.Fatalf("first ReadFrame = (%v, %v), want frame", f, err)
	}
	if f.Seq != 1 {
		t.Errorf("first frame seq = %d, want 1", f.Seq)
	}

	// Scripted gap: no frame ready.
	f, err = dev.ReadFrame()
	if err != nil || f != nil {
		t.Errorf("gap ReadFrame = (%v, %v), want (nil, nil)", f, err)
	}

	f, err = dev.ReadFrame()
	if err != nil || f == nil || f.Seq != 2 {
		t.Errorf("third ReadFrame = (%v, %v), want frame with seq 2", f, err)
	}

	// Script exhausted.
	f, err = dev.ReadFrame()
	if err != nil || f != nil {
		t.Errorf("exhausted ReadFrame = (%v, %v), want (nil, nil)", f, err)
	}
}

func TestSimIllumination(t *testing.T) {
	dev := NewSimDevice(nil)
	if !dev.Capabilities().Illumination {
		t.Fatal("sim device should support illumination")
	}
	if err := dev.SetIllumination(true); err != nil {
		t.Fatalf("SetIllumination: %v", err)
	}
	if !dev.Illuminated() {
		t.Error("illumination not recorded")
	}
}

func TestDirDeviceTypedOpenErrors(t *testing.T) {
	missing := NewDirDevice(filepath.Join(t.TempDir(), "nope"))
	if err := missing.Open(context.Background()); !errors.Is(err, fmerr.ErrCaptureNotFound) {
		t.Errorf("Open(missing dir) error = %v, want ErrCaptureNotFound", err)
	}

	if os.Geteuid() != 0 {
		locked := filepath.Join(t.TempDir(), "locked")
		if err := os.Mkdir(locked, 0o000); err != nil {
			t.Fatalf("creating locked dir: %v", err)
		}
		t.Cleanup(func() { os.Chmod(locked, 0o755) })
		dev := NewDirDevice(locked)
		if err := dev.Open(context.Background()); !errors.Is(err, fmerr.ErrCapturePermission) {
			t.Errorf("Open(locked dir) error = %v, want ErrCapturePermission", err)
		}
	}
}

func TestDirDeviceReadsSpool(t *testing.T) {
	spool := t.TempDir()
	png, err := qrgen.Encode("LOC-ab3D9kX7Q2mN", qrgen.Medium, 128)
	if err != nil {
		t.Fatalf("generating frame fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(spool, "frame-001.png"), png, 0o644); err != nil {
		t.Fatalf("writing frame file: %v", err)
	}

	dev := NewDirDevice(spool)
	if err := dev.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev.Close()

	if !errors.Is(dev.SetIllumination(true), fmerr.ErrIlluminationUnsupported) {
		t.Error("dir device should not support illumination")
	}

	f, err := dev.ReadFrame()
	if err != nil || f == nil {
		t.Fatalf("ReadFrame = (%v, %v), want frame", f, err)
	}
	// Each spool file is consumed once.
	f, err = dev.ReadFrame()
	if err != nil || f != nil {
		t.Errorf("second ReadFrame = (%v, %v), want (nil, nil)", f, err)
	}
}

func TestPushDeviceQueue(t *testing.T) {
	dev := NewPushDevice(2)

	if err := dev.Offer(testImage()); !errors.Is(err, fmerr.ErrSessionNotFound) {
		t.Errorf("Offer before open error = %v, want ErrSessionNotFound", err)
	}

	if err := dev.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev.Close()

	for i := 0; i < 3; i++ {
		if err := dev.Offer(testImage()); err != nil {
			t.Fatalf("Offer: %v", err)
		}
	}

	// Queue limit 2: the oldest frame was dropped, so reads start at seq 2.
	f, err := dev.ReadFrame()
	if err != nil || f == nil {
		t.Fatalf("ReadFrame = (%v, %v), want frame", f, err)
	}
	if f.Seq != 2 {
		t.Errorf("first queued seq = %d, want 2", f.Seq)
	}
	if f, _ := dev.ReadFrame(); f == nil || f.Seq != 3 {
		t.Errorf("second queued frame = %+v, want seq 3", f)
	}
	if f, _ := dev.ReadFrame(); f != nil {
		t.Errorf("drained queue returned frame %+v", f)
	}
}
