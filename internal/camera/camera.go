// Package camera arbitrates exclusive access to the capture device.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"
)

var (
	ErrDeviceUnavailable = errors.New("camera not available")
	ErrDeviceBusy        = errors.New("camera already in use")
)

// Frame is one captured image.
type Frame struct {
	Image      image.Image
	Seq        uint64
	CapturedAt time.Time
}

// Device is an open capture device.
type Device interface {
	// Read blocks until the next frame is available.
	Read(ctx context.Context) (image.Image, error)
	Close() error
}

// Opener opens the capture device.
type Opener func(ctx context.Context) (Device, error)

// Manager hands out at most one Handle at a time.
type Manager struct {
	open Opener

	mu     sync.Mutex
	active *Handle
}

// NewManager creates a manager that opens devices with open.
func NewManager(open Opener) *Manager {
	return &Manager{open: open}
}

// Acquire opens the device. It fails with ErrDeviceBusy while another handle is held.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, ErrDeviceBusy
	}

	dev, err := m.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if dev == nil {
		return nil, ErrDeviceUnavailable
	}

	h := &Handle{manager: m, dev: dev}
	m.active = h
	return h, nil
}

// InUse reports whether a handle is currently held.
func (m *Manager) InUse() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

func (m *Manager) release(h *Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == h {
		m.active = nil
	}
}

// Handle is exclusive access to an open device.
type Handle struct {
	manager *Manager
	dev     Device

	mu       sync.Mutex
	seq      uint64
	released bool
	once     sync.Once
	closeErr error
}

// ReadFrame reads the next frame. Any device failure is reported as ErrDeviceUnavailable.
func (h *Handle) ReadFrame(ctx context.Context) (Frame, error) {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return Frame{}, fmt.Errorf("%w: handle released", ErrDeviceUnavailable)
	}
	h.mu.Unlock()

	img, err := h.dev.Read(ctx)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if img == nil || img.Bounds().Empty() {
		return Frame{}, fmt.Errorf("%w: empty frame", ErrDeviceUnavailable)
	}

	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.mu.Unlock()

	return Frame{Image: img, Seq: seq, CapturedAt: time.Now()}, nil
}

// Release closes the device. Calling it more than once is safe.
func (h *Handle) Release() error {
	h.once.Do(func() {
		h.mu.Lock()
		h.released = true
		h.mu.Unlock()

		h.closeErr = h.dev.Close()
		h.manager.release(h)
	})
	return h.closeErr
}
