package capture

import (
	"context"
	"image"
	"sync"
	"time"

	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

// defaultPushQueue bounds the number of frames buffered between the HTTP
// frame endpoint and the decode loop. Beyond this, the oldest frame is
// dropped; a stale frame is worthless to a live scan.
const defaultPushQueue = 8

// PushDevice accepts frames posted over the HTTP API and queues them for
// the decode loop. It is the default device for browser and mobile clients
// that own the physical camera themselves.
type PushDevice struct {
	mu    sync.Mutex
	queue []*Frame
	limit int
	open  bool
	seq   uint64
}

// NewPushDevice creates a PushDevice with the given queue limit. Zero or
// negative means the default.
func NewPushDevice(limit int) *PushDevice {
	if limit <= 0 {
		limit = defaultPushQueue
	}
	return &PushDevice{limit: limit}
}

func (d *PushDevice) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return fmerr.ErrCaptureBusy.WithMessage("push device already open")
	}
	d.open = true
	d.queue = nil
	return nil
}

func (d *PushDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.queue = nil
	return nil
}

// Offer enqueues a pushed frame. Frames offered while no session holds the
// device are rejected; when the queue is full the oldest frame is dropped.
func (d *PushDevice) Offer(img image.Image) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return fmerr.ErrSessionNotFound.WithMessage("no scan session is accepting frames")
	}
	d.seq++
	frame := &Frame{Image: img, Seq: d.seq, CapturedAt: time.Now()}
	if len(d.queue) >= d.limit {
		d.queue = d.queue[1:]
	}
	d.queue = append(d.queue, frame)
	return nil
}

func (d *PushDevice) ReadFrame() (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, fmerr.ErrCaptureUnknown.WithMessage("read from closed device")
	}
	if len(d.queue) == 0 {
		return nil, nil
	}
	frame := d.queue[0]
	d.queue = d.queue[1:]
	return frame, nil
}

func (d *PushDevice) Capabilities() Capabilities {
	return Capabilities{Illumination: false}
}

func (d *PushDevice) SetIllumination(on bool) error {
	return fmerr.ErrIlluminationUnsupported
}

func (d *PushDevice) Name() string { return "push" }
