package videosource

import (
	"context"
	"image"
	"testing"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

type recordingSink struct {
	attached int
	detached int
	src      Source
}

func (s *recordingSink) Attach(src Source) {
	s.attached++
	s.src = src
}

func (s *recordingSink) Detach() {
	s.detached++
	s.src = nil
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(FakeFinder(), golog.NewTestLogger(t))
}

func TestAcquireAndRead(t *testing.T) {
	m := newTestManager(t)
	h, err := m.Acquire(context.Background(), Constraints{Width: 320, Height: 240})
	test.That(t, err, test.ShouldBeNil)
	defer func() { test.That(t, h.Release(), test.ShouldBeNil) }()

	w, hgt := h.Dimensions()
	test.That(t, w, test.ShouldEqual, 320)
	test.That(t, hgt, test.ShouldEqual, 240)

	img, release, err := h.Next(context.Background())
	test.That(t, err, test.ShouldBeNil)
	release()
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 320)
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	h, err := m.Acquire(context.Background(), Constraints{})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, h.Release(), test.ShouldBeNil)
	test.That(t, h.Release(), test.ShouldBeNil)

	// a released handle reports the transient not-ready condition
	_, _, err = h.Next(context.Background())
	test.That(t, errors.Is(err, ErrCaptureNotReady), test.ShouldBeTrue)
	w, hgt := h.Dimensions()
	test.That(t, w, test.ShouldEqual, 0)
	test.That(t, hgt, test.ShouldEqual, 0)
}

func TestStaleReleaseDoesNotStopNewerHandle(t *testing.T) {
	m := newTestManager(t)
	old, err := m.Acquire(context.Background(), Constraints{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, old.Release(), test.ShouldBeNil)

	newer, err := m.Acquire(context.Background(), Constraints{})
	test.That(t, err, test.ShouldBeNil)

	// releasing the old handle again must not unregister or stop the new one
	test.That(t, old.Release(), test.ShouldBeNil)
	_, release, err := newer.Next(context.Background())
	test.That(t, err, test.ShouldBeNil)
	release()
	test.That(t, newer.Release(), test.ShouldBeNil)
}

func TestExclusivityPerDevice(t *testing.T) {
	m := newTestManager(t)
	h, err := m.Acquire(context.Background(), Constraints{})
	test.That(t, err, test.ShouldBeNil)

	_, err = m.Acquire(context.Background(), Constraints{})
	test.That(t, errors.Is(err, ErrDeviceUnavailable), test.ShouldBeTrue)

	// releasing frees the device for the next acquirer
	test.That(t, h.Release(), test.ShouldBeNil)
	h2, err := m.Acquire(context.Background(), Constraints{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h2.Release(), test.ShouldBeNil)
}

func TestBindAndReleaseClearsSink(t *testing.T) {
	m := newTestManager(t)
	h, err := m.Acquire(context.Background(), Constraints{})
	test.That(t, err, test.ShouldBeNil)

	sink := &recordingSink{}
	h.Bind(sink)
	test.That(t, sink.attached, test.ShouldEqual, 1)
	test.That(t, sink.src, test.ShouldNotBeNil)

	test.That(t, h.Release(), test.ShouldBeNil)
	test.That(t, sink.detached, test.ShouldEqual, 1)
	test.That(t, sink.src, test.ShouldBeNil)

	// binding after release is a no-op
	sink2 := &recordingSink{}
	h.Bind(sink2)
	test.That(t, sink2.attached, test.ShouldEqual, 0)
}

type stubReader struct{}

func (stubReader) Read() (image.Image, func(), error) {
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), func() {}, nil
}

// gateDriver blocks inside Open until the test releases it, so a test can
// hold an acquisition mid-open.
type gateDriver struct {
	label   string
	entered chan struct{}
	unblock chan struct{}
}

func (d *gateDriver) Label() string { return d.label }

func (d *gateDriver) Open(ctx context.Context, c Constraints) (VideoReader, Properties, error) {
	d.entered <- struct{}{}
	<-d.unblock
	return stubReader{}, Properties{Width: 8, Height: 8, FrameRate: 30}, nil
}

func (d *gateDriver) Close() error { return nil }

func TestConcurrentAcquireKeepsOneHandle(t *testing.T) {
	entered := make(chan struct{}, 2)
	unblock := make(chan struct{})
	finder := func(ctx context.Context, c Constraints) (Driver, error) {
		return &gateDriver{label: "dev0", entered: entered, unblock: unblock}, nil
	}
	m := NewManager(finder, golog.NewTestLogger(t))

	type outcome struct {
		h   *Handle
		err error
	}
	first := make(chan outcome)
	go func() {
		h, err := m.Acquire(context.Background(), Constraints{})
		first <- outcome{h, err}
	}()
	// the first acquirer is mid-open; the device must already be held
	<-entered

	_, err := m.Acquire(context.Background(), Constraints{})
	test.That(t, errors.Is(err, ErrDeviceUnavailable), test.ShouldBeTrue)

	close(unblock)
	got := <-first
	test.That(t, got.err, test.ShouldBeNil)
	test.That(t, got.h, test.ShouldNotBeNil)

	img, release, err := got.h.Next(context.Background())
	test.That(t, err, test.ShouldBeNil)
	release()
	test.That(t, img, test.ShouldNotBeNil)
	test.That(t, got.h.Release(), test.ShouldBeNil)
}

type failingOpenDriver struct{ label string }

func (d *failingOpenDriver) Label() string { return d.label }

func (d *failingOpenDriver) Open(ctx context.Context, c Constraints) (VideoReader, Properties, error) {
	return nil, Properties{}, errors.Wrap(ErrDeviceUnavailable, "device fell off the bus")
}

func (d *failingOpenDriver) Close() error { return nil }

func TestAcquireOpenFailureFreesDevice(t *testing.T) {
	calls := 0
	finder := func(ctx context.Context, c Constraints) (Driver, error) {
		calls++
		if calls == 1 {
			return &failingOpenDriver{label: "synthetic-0"}, nil
		}
		return NewFakeDriver("synthetic-0", c), nil
	}
	m := NewManager(finder, golog.NewTestLogger(t))

	_, err := m.Acquire(context.Background(), Constraints{})
	test.That(t, err, test.ShouldNotBeNil)

	// the failed open must not leave the device reserved
	h, err := m.Acquire(context.Background(), Constraints{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.Release(), test.ShouldBeNil)
}

func TestTypedFinderErrors(t *testing.T) {
	failing := func(ctx context.Context, c Constraints) (Driver, error) {
		return nil, errors.Wrap(ErrPermissionDenied, "prompt dismissed")
	}
	m := NewManager(failing, golog.NewTestLogger(t))
	_, err := m.Acquire(context.Background(), Constraints{})
	test.That(t, errors.Is(err, ErrPermissionDenied), test.ShouldBeTrue)
}
