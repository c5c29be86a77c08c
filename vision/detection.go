// Package vision contains the data model shared by the perception pipeline:
// typed detections for each visual modality, per-frame aggregates, and the
// fixed landmark topologies used to draw skeletons.
package vision

import (
	"image"
	"time"
)

// Kind is the visual modality a detection belongs to.
type Kind int

// The four modalities the pipeline understands.
const (
	KindObject Kind = iota
	KindFace
	KindPose
	KindHand
)

// Kinds lists every modality in a stable order.
var Kinds = []Kind{KindObject, KindFace, KindPose, KindHand}

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindFace:
		return "face"
	case KindPose:
		return "pose"
	case KindHand:
		return "hand"
	default:
		return "unknown"
	}
}

// Landmark is a single tracked point in source-pixel space. Z is depth
// relative to the detection origin when the model provides it. Visibility
// is a [0,1] confidence that the point is actually observable.
type Landmark struct {
	X          float64
	Y          float64
	Z          float64
	Visibility float64
}

// Category is one scored label from a model's output.
type Category struct {
	Label string
	Score float64
}

// Detection is one model hit for a single frame. The bounding box is in
// source-pixel space. Landmarks are empty for plain object detections.
// Handedness is set only for KindHand; Expressions only for KindFace.
type Detection struct {
	Kind        Kind
	Box         image.Rectangle
	Categories  []Category
	Landmarks   []Landmark
	Handedness  string
	Expressions map[string]float64
}

// TopCategory returns the best-scoring category. On equal scores the
// category that appears first in model output order wins; this keeps label
// selection deterministic across runs.
func (d Detection) TopCategory() (Category, bool) {
	if len(d.Categories) == 0 {
		return Category{}, false
	}
	best := d.Categories[0]
	for _, c := range d.Categories[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}

// Label is the top category label, or the handedness for hands.
func (d Detection) Label() string {
	if top, ok := d.TopCategory(); ok {
		return top.Label
	}
	return d.Handedness
}

// Score is the top category score, or 0 when the model emitted none.
func (d Detection) Score() float64 {
	top, _ := d.TopCategory()
	return top.Score
}

// FrameResult aggregates every detection produced for one sampled frame.
// It is ephemeral; the pipeline never retains one beyond the next tick.
type FrameResult struct {
	Timestamp  time.Time
	Detections []Detection
}

// ByKind returns the detections of one modality, in model output order.
func (fr *FrameResult) ByKind(k Kind) []Detection {
	out := []Detection{}
	for _, d := range fr.Detections {
		if d.Kind == k {
			out = append(out, d)
		}
	}
	return out
}

// Count returns how many detections of one modality the frame produced.
func (fr *FrameResult) Count(k Kind) int {
	n := 0
	for _, d := range fr.Detections {
		if d.Kind == k {
			n++
		}
	}
	return n
}

// Stats is the per-frame summary committed (throttled) to observers.
type Stats struct {
	FPS         float64
	ObjectCount int
	FaceCount   int
	PoseCount   int
	HandCount   int
}

// StatsFromResult computes the modality counts for a frame.
func StatsFromResult(fr *FrameResult, fps float64) Stats {
	return Stats{
		FPS:         fps,
		ObjectCount: fr.Count(KindObject),
		FaceCount:   fr.Count(KindFace),
		PoseCount:   fr.Count(KindPose),
		HandCount:   fr.Count(KindHand),
	}
}

// RunningMode selects between one-shot and continuous inference. It changes
// internal model state (caching, smoothing), never the detection shape.
type RunningMode int

// Running modes shared by every model in a set.
const (
	SingleImageMode RunningMode = iota
	StreamMode
)

func (m RunningMode) String() string {
	if m == StreamMode {
		return "stream"
	}
	return "single_image"
}
