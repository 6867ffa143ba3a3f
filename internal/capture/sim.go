package capture

import (
	"context"
	"image"
	"sync"
	"time"

	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

// SimDevice is a scripted capture device for tests and development. It
// replays a fixed sequence of frames and supports illumination.
type SimDevice struct {
	mu      sync.Mutex
	frames  []image.Image
	next    int
	seq     uint64
	open    bool
	lit     bool
	openErr error
}

// NewSimDevice creates a SimDevice that replays the given frames in order.
// A nil frame in the script is delivered as "no frame ready".
func NewSimDevice(frames []image.Image) *SimDevice {
	return &SimDevice{frames: frames}
}

// FailOpenWith makes the next Open call fail with the given error.
func (d *SimDevice) FailOpenWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErr = err
}

func (d *SimDevice) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return d.openErr
	}
	if d.open {
		return fmerr.ErrCaptureBusy.WithMessage("simulated device already open")
	}
	d.open = true
	return nil
}

func (d *SimDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.lit = false
	return nil
}

func (d *SimDevice) ReadFrame() (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, fmerr.ErrCaptureUnknown.WithMessage("read from closed device")
	}
	if d.next >= len(d.frames) {
		return nil, nil
	}
	img := d.frames[d.next]
	d.next++
	if img == nil {
		return nil, nil
	}
	d.seq++
	return &Frame{Image: img, Seq: d.seq, CapturedAt: time.Now()}, nil
}

func (d *SimDevice) Capabilities() Capabilities {
	return Capabilities{Illumination: true}
}

func (d *SimDevice) SetIllumination(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lit = on
	return nil
}

// Illuminated reports the current simulated light state.
func (d *SimDevice) Illuminated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lit
}

func (d *SimDevice) Name() string { return "sim" }
