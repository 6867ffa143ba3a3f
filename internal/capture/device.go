// Package capture manages frame sources for scan sessions. A device hands
// out frames one at a time; the manager arbitrates exclusive access and
// guarantees that a device is always returned to a closed state.
package capture

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/fieldmark/fieldmark/internal/config"
)

// Frame is a single captured image with its capture metadata.
type Frame struct {
	Image      image.Image
	Seq        uint64
	CapturedAt time.Time
}

// Capabilities describes the optional features of a capture device.
type Capabilities struct {
	// Illumination reports whether the device can toggle a light source.
	Illumination bool
}

// Device is a source of frames. Implementations must map open failures to
// the typed capture errors so callers can distinguish a denied permission
// from a missing or busy device.
type Device interface {
	// Open prepares the device for reading. Open on an already-open device
	// returns ErrCaptureBusy.
	Open(ctx context.Context) error

	// Close releases the device. Closing an already-closed device is a
	// no-op.
	Close() error

	// ReadFrame returns the next available frame without blocking. When no
	// frame is ready it returns (nil, nil).
	ReadFrame() (*Frame, error)

	// Capabilities reports the device's optional features.
	Capabilities() Capabilities

	// SetIllumination toggles the device light source, returning
	// ErrIlluminationUnsupported when the device has none.
	SetIllumination(on bool) error

	// Name identifies the device in logs and session records.
	Name() string
}

// NewDevice creates the capture device named by the configuration.
func NewDevice(cfg *config.ScanConfig) (Device, error) {
	switch cfg.Device {
	case "", "push":
		return NewPushDevice(0), nil
	case "dir":
		return NewDirDevice(cfg.SpoolDir), nil
	case "sim":
		return NewSimDevice(nil), nil
	default:
		return nil, fmt.Errorf("unknown capture device %q", cfg.Device)
	}
}
