package mlmodel

import (
	"context"
	"image"
	"time"

	"github.com/edaniels/golog"

	"go.viam.com/perception/vision"
)

// NewSimpleObjectLoader returns a loader for a dependency-free object
// detector useful for local testing: it boxes the bright region of the
// frame. threshold is a luminance cutoff in [0,255]; pixels above it count
// as "object".
func NewSimpleObjectLoader(threshold float64) Loader {
	return func(ctx context.Context, delegate Delegate, logger golog.Logger) (Detector, error) {
		return &simpleObjectDetector{threshold: threshold}, nil
	}
}

type simpleObjectDetector struct {
	threshold float64
}

func (d *simpleObjectDetector) Detect(ctx context.Context, img image.Image, now time.Time) ([]vision.Detection, error) {
	bounds := img.Bounds()
	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X-1, bounds.Min.Y-1
	total := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			lum := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			if lum <= d.threshold {
				continue
			}
			total++
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if total == 0 {
		return nil, nil
	}
	return []vision.Detection{{
		Kind:       vision.KindObject,
		Box:        image.Rect(minX, minY, maxX+1, maxY+1),
		Categories: []vision.Category{{Label: "bright_region", Score: 1.0}},
	}}, nil
}

func (d *simpleObjectDetector) SetRunningMode(ctx context.Context, mode vision.RunningMode) error {
	return nil
}

func (d *simpleObjectDetector) Close(ctx context.Context) error { return nil }
