package capture

import (
	"context"
	"log/slog"
	"sync"

	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

// Manager arbitrates exclusive access to a capture device. One handle may be
// held at a time; a second acquire fails with ErrCaptureBusy until the first
// handle is released.
type Manager struct {
	mu     sync.Mutex
	device Device
	held   bool
}

// NewManager creates a Manager for the given device.
func NewManager(device Device) *Manager {
	return &Manager{device: device}
}

// Acquire opens the device and returns an exclusive handle for it. The
// device's typed open errors pass through unchanged.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held {
		return nil, fmerr.ErrCaptureBusy.WithMessage("capture device %q is held by another session", m.device.Name())
	}
	if err := m.device.Open(ctx); err != nil {
		return nil, err
	}
	m.held = true
	slog.Debug("capture device acquired", "device", m.device.Name())
	return &Handle{manager: m}, nil
}

func (m *Manager) release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held {
		return
	}
	if err := m.device.Close(); err != nil {
		slog.Warn("closing capture device", "device", m.device.Name(), "error", err)
	}
	m.held = false
	slog.Debug("capture device released", "device", m.device.Name())
}

// Handle is an exclusive lease on an open capture device. All reads go
// through the handle; Close returns the device to the manager and is safe to
// call any number of times.
type Handle struct {
	manager *Manager
	once    sync.Once
}

// ReadFrame returns the next available frame without blocking, or (nil, nil)
// when none is ready.
func (h *Handle) ReadFrame() (*Frame, error) {
	return h.manager.device.ReadFrame()
}

// Capabilities reports the underlying device's optional features.
func (h *Handle) Capabilities() Capabilities {
	return h.manager.device.Capabilities()
}

// SetIllumination toggles the device light source. Callers that merely want
// light when available should ignore ErrIlluminationUnsupported.
func (h *Handle) SetIllumination(on bool) error {
	return h.manager.device.SetIllumination(on)
}

// Name identifies the underlying device.
func (h *Handle) Name() string {
	return h.manager.device.Name()
}

// Close releases the device. Only the first call has any effect.
func (h *Handle) Close() error {
	h.once.Do(h.manager.release)
	return nil
}
