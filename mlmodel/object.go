package mlmodel

import (
	"context"
	"image"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/perception/vision"
)

const objectScoreThreshold = 0.5

// ObjectConfig points at an SSD-style object detection model.
type ObjectConfig struct {
	ModelPath string
	LabelPath string
}

// NewObjectLoader returns a Loader for the object detector. The model is
// expected to emit four tensors: normalized [ymin,xmin,ymax,xmax] boxes,
// class indices, scores, and a valid-detection count.
func NewObjectLoader(cfg ObjectConfig) Loader {
	return func(ctx context.Context, delegate Delegate, logger golog.Logger) (Detector, error) {
		bundle, err := newInterpreterBundle(cfg.ModelPath, delegate)
		if err != nil {
			return nil, err
		}
		labels, err := loadLabels(cfg.LabelPath)
		if err != nil {
			logger.Debugw("no label file, using raw class indices", "error", err)
			labels = nil
		}
		return &objectDetector{bundle: bundle, labels: labels}, nil
	}
}

type objectDetector struct {
	bundle *interpreterBundle
	labels []string
}

func (d *objectDetector) Detect(ctx context.Context, img image.Image, now time.Time) ([]vision.Detection, error) {
	outputs, err := d.bundle.invoke(img)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	return d.decode(outputs, float64(bounds.Dx()), float64(bounds.Dy()))
}

func (d *objectDetector) decode(outputs [][]float32, w, h float64) ([]vision.Detection, error) {
	if len(outputs) < 4 {
		return nil, errors.Errorf("object model emitted %d tensors, want 4", len(outputs))
	}
	boxes, classes, scores, counts := outputs[0], outputs[1], outputs[2], outputs[3]
	n := len(scores)
	if len(counts) > 0 && int(counts[0]) < n {
		n = int(counts[0])
	}

	var dets []vision.Detection
	for i := 0; i < n; i++ {
		// a malformed model can emit fewer boxes or classes than scores
		if scores[i] < objectScoreThreshold || i*4+3 >= len(boxes) || i >= len(classes) {
			continue
		}
		ymin, xmin := float64(boxes[i*4]), float64(boxes[i*4+1])
		ymax, xmax := float64(boxes[i*4+2]), float64(boxes[i*4+3])
		label := "object"
		if idx := int(classes[i]); idx >= 0 && idx < len(d.labels) {
			label = d.labels[idx]
		}
		dets = append(dets, vision.Detection{
			Kind:       vision.KindObject,
			Box:        image.Rect(int(xmin*w), int(ymin*h), int(xmax*w), int(ymax*h)),
			Categories: []vision.Category{{Label: label, Score: float64(scores[i])}},
		})
	}
	return dets, nil
}

func (d *objectDetector) SetRunningMode(ctx context.Context, mode vision.RunningMode) error {
	// the object model is stateless across frames; both modes behave the same
	return nil
}

func (d *objectDetector) Close(ctx context.Context) error {
	return d.bundle.close()
}
