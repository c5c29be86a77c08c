// Package videosource manages the exclusive live-video resource behind the
// pipeline: acquiring a camera against simple constraints, binding it to a
// sink, and releasing every underlying track exactly once.
package videosource

import (
	"context"
	"image"
	"sync"

	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Typed acquisition failures, surfaced to the caller as user-actionable
// conditions. Anything else coming out of a driver is wrapped in one of
// these two.
var (
	ErrPermissionDenied  = errors.New("camera permission denied")
	ErrDeviceUnavailable = errors.New("camera device unavailable")
)

// ErrCaptureNotReady marks the transient "no frame yet / no dimensions yet"
// condition. Consumers retry next tick; it is never surfaced to a user.
var ErrCaptureNotReady = errors.New("video source is not ready")

// Constraints are the simple hints a caller can give when acquiring a
// camera: a resolution preference and a facing preference.
type Constraints struct {
	Width       int
	Height      int
	FrameRate   float32
	FrontFacing bool
}

// Properties describe the stream a driver actually opened.
type Properties struct {
	Width     int
	Height    int
	FrameRate float32
}

// VideoReader pulls frames off an open track. The release func returns the
// frame's backing buffer to the driver.
type VideoReader interface {
	Read() (image.Image, func(), error)
}

// Driver is one openable video device.
type Driver interface {
	Label() string
	Open(ctx context.Context, c Constraints) (VideoReader, Properties, error)
	Close() error
}

// DriverFinder locates the driver matching the given constraints.
type DriverFinder func(ctx context.Context, c Constraints) (Driver, error)

// Source is the borrowed, non-owning view of a live handle that frame
// consumers hold. Dimensions report zero until the stream is ready.
type Source interface {
	Next(ctx context.Context) (image.Image, func(), error)
	Dimensions() (width, height int)
}

// Sink is a display surface a handle can be bound to.
type Sink interface {
	Attach(src Source)
	Detach()
}

// Manager owns stream acquisition. At most one active handle exists per
// driver label at a time; acquiring a busy device fails with
// ErrDeviceUnavailable.
type Manager struct {
	logger golog.Logger
	finder DriverFinder

	mu     sync.Mutex
	active map[string]*Handle
}

// NewManager returns a manager that locates cameras with the given finder
// (use WebcamFinder for real hardware).
func NewManager(finder DriverFinder, logger golog.Logger) *Manager {
	return &Manager{
		logger: logger,
		finder: finder,
		active: map[string]*Handle{},
	}
}

// Acquire opens the camera matching the constraints and returns the
// exclusive handle to it. Failures are reported as ErrPermissionDenied or
// ErrDeviceUnavailable; there is no implicit retry.
func (m *Manager) Acquire(ctx context.Context, c Constraints) (*Handle, error) {
	driver, err := m.finder(ctx, c)
	if err != nil {
		return nil, err
	}
	label := driver.Label()

	h := &Handle{
		id:     uuid.New(),
		label:  label,
		mgr:    m,
		driver: driver,
	}

	// the busy check and the registration must share one critical
	// section: reserving the label before Open keeps a second acquirer
	// out while the device is still opening
	m.mu.Lock()
	if _, busy := m.active[label]; busy {
		m.mu.Unlock()
		return nil, errors.Wrapf(ErrDeviceUnavailable, "device %q already has an active handle", label)
	}
	m.active[label] = h
	m.mu.Unlock()

	reader, props, err := driver.Open(ctx, c)
	if err != nil {
		m.forget(h)
		return nil, err
	}

	h.mu.Lock()
	h.reader = reader
	h.props = props
	h.mu.Unlock()

	m.logger.Infow("camera acquired", "label", label, "width", props.Width, "height", props.Height)
	return h, nil
}

// forget removes the handle from the active table, but only if it is still
// the registered one; a stale release must not unregister a newer handle.
func (m *Manager) forget(h *Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.active[h.label]; ok && cur == h {
		delete(m.active, h.label)
	}
}

// Handle is the exclusive, revocable reference to one live video stream.
// The acquirer owns it; everyone else borrows it through Source.
type Handle struct {
	id     uuid.UUID
	label  string
	mgr    *Manager
	driver Driver
	reader VideoReader
	props  Properties

	mu       sync.Mutex
	released bool
	sink     Sink
}

// ID identifies the handle for logging and bookkeeping.
func (h *Handle) ID() uuid.UUID { return h.id }

// Label is the underlying device label.
func (h *Handle) Label() string { return h.label }

// Bind attaches the handle to a display sink. Rebinding replaces the
// previous sink.
func (h *Handle) Bind(sink Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	if h.sink != nil {
		h.sink.Detach()
	}
	h.sink = sink
	if sink != nil {
		sink.Attach(h)
	}
}

// Unbind detaches the current sink, if any.
func (h *Handle) Unbind() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sink != nil {
		h.sink.Detach()
		h.sink = nil
	}
}

// Next returns the latest frame. Once the handle is released it reports
// ErrCaptureNotReady so a running loop degrades into its skip branch
// instead of faulting.
func (h *Handle) Next(ctx context.Context) (image.Image, func(), error) {
	h.mu.Lock()
	reader := h.reader
	released := h.released
	h.mu.Unlock()
	if released || reader == nil {
		return nil, nil, ErrCaptureNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	img, release, err := reader.Read()
	if err != nil {
		return nil, nil, errors.Wrap(ErrCaptureNotReady, err.Error())
	}
	return img, release, nil
}

// Dimensions report the opened stream size, or zeros once released.
func (h *Handle) Dimensions() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return 0, 0
	}
	return h.props.Width, h.props.Height
}

// Release stops every underlying track and clears the sink binding. It is
// idempotent: releasing twice, or releasing after a newer handle was
// acquired for the same device, does nothing further.
func (h *Handle) Release() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil
	}
	h.released = true
	sink := h.sink
	h.sink = nil
	driver := h.driver
	reader := h.reader
	h.reader = nil
	h.mu.Unlock()

	if sink != nil {
		sink.Detach()
	}

	var errs error
	if closer, ok := reader.(interface{ Close() error }); ok {
		errs = multierr.Combine(errs, closer.Close())
	}
	if driver != nil {
		errs = multierr.Combine(errs, driver.Close())
	}
	h.mgr.forget(h)
	h.mgr.logger.Infow("camera released", "label", h.label)
	return errs
}
