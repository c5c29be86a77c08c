// Package overlay projects detections from source-pixel space into a
// destination canvas and paints typed annotations (boxes, skeletons,
// landmark points, labels) above the raw video.
//
// Projection and plan building are pure so they can be tested without a
// raster surface; only Render touches a drawing context.
package overlay

import (
	"image"

	"go.viam.com/perception/vision"
)

// Projection holds the independent per-axis scale factors from source-pixel
// space into destination canvas space. The destination canvas is typically
// resized independently of the source's native resolution, so the two axes
// must scale independently.
type Projection struct {
	ScaleX float64
	ScaleY float64
}

// NewProjection computes the projection from source dimensions to
// destination dimensions. Zero source dimensions yield the identity to keep
// a not-yet-ready source from producing NaNs.
func NewProjection(srcWidth, srcHeight, dstWidth, dstHeight int) Projection {
	p := Projection{ScaleX: 1, ScaleY: 1}
	if srcWidth > 0 {
		p.ScaleX = float64(dstWidth) / float64(srcWidth)
	}
	if srcHeight > 0 {
		p.ScaleY = float64(dstHeight) / float64(srcHeight)
	}
	return p
}

// Point projects a single source-pixel coordinate.
func (p Projection) Point(x, y float64) (float64, float64) {
	return x * p.ScaleX, y * p.ScaleY
}

// Rect projects a source-pixel rectangle, returning origin and size in
// destination space: (x·scaleX, y·scaleY, w·scaleX, h·scaleY).
func (p Projection) Rect(r image.Rectangle) (x, y, w, h float64) {
	return float64(r.Min.X) * p.ScaleX,
		float64(r.Min.Y) * p.ScaleY,
		float64(r.Dx()) * p.ScaleX,
		float64(r.Dy()) * p.ScaleY
}

// Landmark projects a landmark's planar position.
func (p Projection) Landmark(lm vision.Landmark) (float64, float64) {
	return p.Point(lm.X, lm.Y)
}

// Options are the independent rendering toggles. They are pure rendering
// configuration with no detection-side effect; disabling one kind must not
// affect the others.
type Options struct {
	ShowObjects    bool
	ShowFaces      bool
	ShowPoses      bool
	ShowHands      bool
	ShowLabels     bool
	ShowConfidence bool
	ShowPoints     bool
	ShowStats      bool
}

// DefaultOptions enables every annotation kind plus labels.
func DefaultOptions() Options {
	return Options{
		ShowObjects: true,
		ShowFaces:   true,
		ShowPoses:   true,
		ShowHands:   true,
		ShowLabels:  true,
		ShowPoints:  true,
		ShowStats:   true,
	}
}

func (o Options) showKind(k vision.Kind) bool {
	switch k {
	case vision.KindObject:
		return o.ShowObjects
	case vision.KindFace:
		return o.ShowFaces
	case vision.KindPose:
		return o.ShowPoses
	case vision.KindHand:
		return o.ShowHands
	default:
		return false
	}
}
