package mlmodel

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/perception/vision"
)

// The three landmark models (face, pose, hand) share the same shape of
// work: run the interpreter, scale landmarks from input-plane coordinates
// into source-pixel space, optionally smooth in stream mode, and derive a
// bounding box from the landmark extent. Only the decode step differs.

type landmarkDecoder func(d *landmarkDetector, outputs [][]float32, srcW, srcH float64) ([]vision.Detection, error)

type landmarkDetector struct {
	kind     vision.Kind
	bundle   *interpreterBundle
	smoother *landmarkSmoother
	decode   landmarkDecoder
}

func newLandmarkLoader(kind vision.Kind, modelPath string, decode landmarkDecoder) Loader {
	return func(ctx context.Context, delegate Delegate, logger golog.Logger) (Detector, error) {
		bundle, err := newInterpreterBundle(modelPath, delegate)
		if err != nil {
			return nil, err
		}
		return &landmarkDetector{
			kind:     kind,
			bundle:   bundle,
			smoother: newLandmarkSmoother(),
			decode:   decode,
		}, nil
	}
}

func (d *landmarkDetector) Detect(ctx context.Context, img image.Image, now time.Time) ([]vision.Detection, error) {
	outputs, err := d.bundle.invoke(img)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	dets, err := d.decode(d, outputs, float64(bounds.Dx()), float64(bounds.Dy()))
	if err != nil {
		return nil, err
	}
	for i := range dets {
		dets[i].Landmarks = d.smoother.apply(i, dets[i].Landmarks)
		dets[i].Box = boxFromLandmarks(dets[i].Landmarks)
	}
	return dets, nil
}

func (d *landmarkDetector) SetRunningMode(ctx context.Context, mode vision.RunningMode) error {
	d.smoother.setMode(mode)
	return nil
}

func (d *landmarkDetector) Close(ctx context.Context) error {
	return d.bundle.close()
}

// scaleLandmarks converts a flat [x,y,z,...] tensor laid out in input-plane
// pixels into source-pixel landmarks. stride is the number of floats per
// landmark; visIdx, when >= 0, selects the per-landmark visibility slot.
func (d *landmarkDetector) scaleLandmarks(raw []float32, count, stride, visIdx int, srcW, srcH float64) ([]vision.Landmark, error) {
	if len(raw) < count*stride {
		return nil, errors.Errorf("landmark tensor has %d floats, want %d", len(raw), count*stride)
	}
	inW, inH := float64(d.bundle.inputWidth), float64(d.bundle.inputHeight)
	lms := make([]vision.Landmark, count)
	for i := 0; i < count; i++ {
		base := i * stride
		lm := vision.Landmark{
			X: float64(raw[base]) / inW * srcW,
			Y: float64(raw[base+1]) / inH * srcH,
		}
		if stride > 2 {
			lm.Z = float64(raw[base+2])
		}
		if visIdx >= 0 && visIdx < stride {
			lm.Visibility = sigmoid(float64(raw[base+visIdx]))
		} else {
			lm.Visibility = 1
		}
		lms[i] = lm
	}
	return lms, nil
}

func sigmoid(x float64) float64 {
	if x >= 0 && x <= 1 {
		// already a probability
		return x
	}
	return 1.0 / (1.0 + math.Exp(-x))
}
