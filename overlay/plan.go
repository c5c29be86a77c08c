package overlay

import (
	"fmt"

	"go.viam.com/perception/vision"
)

// Rect is one projected bounding box to stroke.
type Rect struct {
	Kind       vision.Kind
	X, Y, W, H float64
}

// Line is one projected skeleton edge.
type Line struct {
	Kind           vision.Kind
	X1, Y1, X2, Y2 float64
}

// Point is one projected landmark point.
type Point struct {
	Kind vision.Kind
	X, Y float64
}

// Label is one projected text annotation.
type Label struct {
	Kind vision.Kind
	X, Y float64
	Text string
}

// Plan is the full ordered display list for one frame: everything Render
// will paint, already projected into destination space.
type Plan struct {
	Rects  []Rect
	Lines  []Line
	Points []Point
	Labels []Label
	Stats  *vision.Stats
}

// BuildPlan projects a frame's detections into destination space and lays
// out the annotations each enabled toggle asks for. Draw order follows the
// slice order per kind: objects, then faces, then poses, then hands.
func BuildPlan(res *vision.FrameResult, proj Projection, opts Options, stats *vision.Stats) *Plan {
	plan := &Plan{}
	if res == nil {
		if opts.ShowStats {
			plan.Stats = stats
		}
		return plan
	}
	for _, kind := range vision.Kinds {
		if !opts.showKind(kind) {
			continue
		}
		for _, det := range res.ByKind(kind) {
			plan.addDetection(det, proj, opts)
		}
	}
	if opts.ShowStats {
		plan.Stats = stats
	}
	return plan
}

func (p *Plan) addDetection(det vision.Detection, proj Projection, opts Options) {
	kind := det.Kind
	if !det.Box.Empty() && (kind == vision.KindObject || kind == vision.KindFace) {
		x, y, w, h := proj.Rect(det.Box)
		p.Rects = append(p.Rects, Rect{Kind: kind, X: x, Y: y, W: w, H: h})
	}

	switch kind {
	case vision.KindFace:
		p.addConnections(det, proj, vision.FaceOvalConnections)
	case vision.KindPose:
		p.addConnections(det, proj, vision.PoseConnections)
	case vision.KindHand:
		p.addConnections(det, proj, vision.HandConnections)
	case vision.KindObject:
	}

	if opts.ShowPoints {
		for _, lm := range det.Landmarks {
			x, y := proj.Landmark(lm)
			p.Points = append(p.Points, Point{Kind: kind, X: x, Y: y})
		}
	}

	if opts.ShowLabels {
		p.addLabels(det, proj, opts)
	}
}

func (p *Plan) addConnections(det vision.Detection, proj Projection, conns []vision.Connection) {
	for _, c := range conns {
		if c.A >= len(det.Landmarks) || c.B >= len(det.Landmarks) {
			continue
		}
		x1, y1 := proj.Landmark(det.Landmarks[c.A])
		x2, y2 := proj.Landmark(det.Landmarks[c.B])
		p.Lines = append(p.Lines, Line{Kind: det.Kind, X1: x1, Y1: y1, X2: x2, Y2: y2})
	}
}

func (p *Plan) addLabels(det vision.Detection, proj Projection, opts Options) {
	switch det.Kind {
	case vision.KindObject, vision.KindFace:
		text := det.Label()
		if text == "" {
			return
		}
		if opts.ShowConfidence {
			text = fmt.Sprintf("%s %.2f", text, det.Score())
		}
		x, y, _, _ := proj.Rect(det.Box)
		p.Labels = append(p.Labels, Label{Kind: det.Kind, X: x, Y: y, Text: text})
	case vision.KindPose:
		// label only the anatomically significant indices
		for idx, name := range vision.PoseLabels {
			if idx >= len(det.Landmarks) {
				continue
			}
			x, y := proj.Landmark(det.Landmarks[idx])
			p.Labels = append(p.Labels, Label{Kind: det.Kind, X: x, Y: y, Text: name})
		}
	case vision.KindHand:
		for _, idx := range vision.HandFingertips {
			if idx >= len(det.Landmarks) {
				continue
			}
			x, y := proj.Landmark(det.Landmarks[idx])
			p.Labels = append(p.Labels, Label{Kind: det.Kind, X: x, Y: y, Text: "tip"})
		}
		if det.Handedness != "" && len(det.Landmarks) > vision.HandWrist {
			x, y := proj.Landmark(det.Landmarks[vision.HandWrist])
			text := det.Handedness
			if opts.ShowConfidence && det.Score() > 0 {
				text = fmt.Sprintf("%s %.2f", text, det.Score())
			}
			p.Labels = append(p.Labels, Label{Kind: det.Kind, X: x, Y: y, Text: text})
		}
	}
}
