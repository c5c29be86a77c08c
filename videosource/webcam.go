package videosource

import (
	"context"
	"image"
	"os"
	"strings"

	"github.com/edaniels/golog"
	mediadriver "github.com/pion/mediadevices/pkg/driver"
	"github.com/pion/mediadevices/pkg/driver/availability"
	mediadevicescamera "github.com/pion/mediadevices/pkg/driver/camera"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pkg/errors"
)

// WebcamFinder returns a DriverFinder over the host's real video devices.
func WebcamFinder(logger golog.Logger) DriverFinder {
	return func(ctx context.Context, c Constraints) (Driver, error) {
		mediadevicescamera.Initialize()
		drivers := mediadriver.GetManager().Query(mediadriver.FilterVideoRecorder())
		if len(drivers) == 0 {
			return nil, errors.Wrap(ErrDeviceUnavailable, "no video devices found")
		}

		picked := drivers[0]
		if c.FrontFacing {
			for _, d := range drivers {
				if strings.Contains(strings.ToLower(d.Info().Label), "front") {
					picked = d
					break
				}
			}
		}

		if _, err := mediadriver.IsAvailable(picked); errors.Is(err, availability.ErrNoDevice) {
			return nil, errors.Wrap(ErrDeviceUnavailable, picked.Info().Label)
		}

		label := strings.Split(picked.Info().Label, mediadevicescamera.LabelSeparator)[0]
		logger.Debugw("webcam driver selected", "label", label)
		return &webcamDriver{driver: picked, label: label}, nil
	}
}

type webcamDriver struct {
	driver mediadriver.Driver
	label  string
}

func (w *webcamDriver) Label() string { return w.label }

func (w *webcamDriver) Open(ctx context.Context, c Constraints) (VideoReader, Properties, error) {
	if w.driver.Status() == mediadriver.StateRunning {
		return nil, Properties{}, errors.Wrapf(ErrDeviceUnavailable, "device %q is in use", w.label)
	}
	if w.driver.Status() == mediadriver.StateClosed {
		if err := w.driver.Open(); err != nil {
			if os.IsPermission(errors.Cause(err)) {
				return nil, Properties{}, errors.Wrap(ErrPermissionDenied, err.Error())
			}
			return nil, Properties{}, errors.Wrap(ErrDeviceUnavailable, err.Error())
		}
	}

	recorder, ok := w.driver.(mediadriver.VideoRecorder)
	if !ok {
		_ = w.driver.Close()
		return nil, Properties{}, errors.Wrapf(ErrDeviceUnavailable, "device %q cannot record video", w.label)
	}

	media := selectMedia(w.driver.Properties(), c)
	reader, err := recorder.VideoRecord(media)
	if err != nil {
		_ = w.driver.Close()
		return nil, Properties{}, errors.Wrap(ErrDeviceUnavailable, err.Error())
	}
	props := Properties{
		Width:     media.Video.Width,
		Height:    media.Video.Height,
		FrameRate: media.Video.FrameRate,
	}
	return &webcamReader{reader: reader}, props, nil
}

func (w *webcamDriver) Close() error {
	return w.driver.Close()
}

// selectMedia picks the advertised format closest to the requested
// resolution, preferring an exact match.
func selectMedia(advertised []prop.Media, c Constraints) prop.Media {
	want := prop.Media{Video: prop.Video{
		Width:       c.Width,
		Height:      c.Height,
		FrameRate:   c.FrameRate,
		FrameFormat: frame.FormatI420,
	}}
	if want.Video.Width == 0 {
		want.Video.Width = 640
	}
	if want.Video.Height == 0 {
		want.Video.Height = 480
	}
	if want.Video.FrameRate == 0 {
		want.Video.FrameRate = 30
	}

	best := want
	bestDist := -1
	for _, m := range advertised {
		if m.Video.Width == 0 || m.Video.Height == 0 {
			continue
		}
		dw := m.Video.Width - want.Video.Width
		dh := m.Video.Height - want.Video.Height
		dist := dw*dw + dh*dh
		if bestDist < 0 || dist < bestDist {
			bestDist = dist
			best = m
		}
	}
	return best
}

type webcamReader struct {
	reader video.Reader
}

func (r *webcamReader) Read() (image.Image, func(), error) {
	return r.reader.Read()
}
