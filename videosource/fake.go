package videosource

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/pkg/errors"
)

// FakeFinder returns a DriverFinder over a single synthetic device. It
// exists for tests and demos that need a camera without hardware.
func FakeFinder() DriverFinder {
	return func(ctx context.Context, c Constraints) (Driver, error) {
		return NewFakeDriver("synthetic-0", c), nil
	}
}

// NewFakeDriver builds a synthetic driver producing a deterministic moving
// test pattern at the requested resolution (640x480 when unspecified).
func NewFakeDriver(label string, c Constraints) Driver {
	w, h := c.Width, c.Height
	if w == 0 {
		w = 640
	}
	if h == 0 {
		h = 480
	}
	return &fakeDriver{label: label, width: w, height: h}
}

type fakeDriver struct {
	mu     sync.Mutex
	label  string
	width  int
	height int
	open   bool
}

func (f *fakeDriver) Label() string { return f.label }

func (f *fakeDriver) Open(ctx context.Context, c Constraints) (VideoReader, Properties, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		return nil, Properties{}, errors.Wrapf(ErrDeviceUnavailable, "device %q is in use", f.label)
	}
	f.open = true
	props := Properties{Width: f.width, Height: f.height, FrameRate: 30}
	return &fakeReader{driver: f}, props, nil
}

func (f *fakeDriver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	return nil
}

type fakeReader struct {
	mu     sync.Mutex
	driver *fakeDriver
	frame  int
	closed bool
}

func (r *fakeReader) Read() (image.Image, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, nil, errors.New("reader closed")
	}
	w, h := r.driver.width, r.driver.height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	// gradient background with a vertical bar sweeping left to right
	barX := (r.frame * 4) % w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 64,
				A: 255,
			}
			if x >= barX && x < barX+16 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	r.frame++
	return img, func() {}, nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
