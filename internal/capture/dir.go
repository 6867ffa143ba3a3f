package capture

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fieldmark/fieldmark/internal/decode"
	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

// DirDevice reads frames from image files in a spool directory, in lexical
// order. Files dropped into the directory while the device is open are
// picked up on subsequent reads. It has no illumination.
type DirDevice struct {
	mu       sync.Mutex
	spoolDir string
	open     bool
	consumed map[string]bool
	seq      uint64
}

// NewDirDevice creates a DirDevice reading from the given directory.
func NewDirDevice(spoolDir string) *DirDevice {
	return &DirDevice{spoolDir: spoolDir, consumed: make(map[string]bool)}
}

func (d *DirDevice) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return fmerr.ErrCaptureBusy.WithMessage("spool device already open")
	}

	info, err := os.Stat(d.spoolDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmerr.ErrCaptureNotFound.WithMessage("spool directory %q does not exist", d.spoolDir)
		}
		if os.IsPermission(err) {
			return fmerr.ErrCapturePermission.WithMessage("spool directory %q is not accessible", d.spoolDir)
		}
		return fmerr.ErrCaptureUnknown.WithMessage("checking spool directory: %v", err)
	}
	if !info.IsDir() {
		return fmerr.ErrCaptureNotFound.WithMessage("spool path %q is not a directory", d.spoolDir)
	}
	// Probe readability now so the failure surfaces as a typed open error
	// instead of a mid-session read error.
	if _, err := os.ReadDir(d.spoolDir); err != nil {
		if os.IsPermission(err) {
			return fmerr.ErrCapturePermission.WithMessage("spool directory %q is not readable", d.spoolDir)
		}
		return fmerr.ErrCaptureUnknown.WithMessage("reading spool directory: %v", err)
	}

	d.open = true
	return nil
}

func (d *DirDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	return nil
}

func (d *DirDevice) ReadFrame() (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, fmerr.ErrCaptureUnknown.WithMessage("read from closed device")
	}

	entries, err := os.ReadDir(d.spoolDir)
	if err != nil {
		return nil, fmerr.ErrCaptureUnknown.WithMessage("reading spool directory: %v", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || d.consumed[name] || !isFrameFile(name) {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, nil
	}
	sort.Strings(names)
	name := names[0]
	d.consumed[name] = true

	data, err := os.ReadFile(filepath.Join(d.spoolDir, name))
	if err != nil {
		return nil, fmerr.ErrCaptureUnknown.WithMessage("reading frame file %q: %v", name, err)
	}
	img, err := decode.ParseFrame(data)
	if err != nil {
		// Unreadable files are skipped, not fatal. The next tick will
		// move on to the following file.
		return nil, nil
	}
	d.seq++
	return &Frame{Image: img, Seq: d.seq, CapturedAt: time.Now()}, nil
}

func isFrameFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

func (d *DirDevice) Capabilities() Capabilities {
	return Capabilities{Illumination: false}
}

func (d *DirDevice) SetIllumination(on bool) error {
	return fmerr.ErrIlluminationUnsupported
}

func (d *DirDevice) Name() string { return "dir" }
