package pipeline

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"go.viam.com/perception/vision"
)

// Task selects what a one-shot analysis should look for.
type Task int

// One-shot analysis tasks.
const (
	TaskObjects Task = iota
	TaskFaces
	TaskPoses
	TaskHands
	TaskEverything
)

func (t Task) String() string {
	switch t {
	case TaskObjects:
		return "objects"
	case TaskFaces:
		return "faces"
	case TaskPoses:
		return "poses"
	case TaskHands:
		return "hands"
	case TaskEverything:
		return "everything"
	default:
		return "unknown"
	}
}

func (t Task) kinds() []vision.Kind {
	switch t {
	case TaskObjects:
		return []vision.Kind{vision.KindObject}
	case TaskFaces:
		return []vision.Kind{vision.KindFace}
	case TaskPoses:
		return []vision.Kind{vision.KindPose}
	case TaskHands:
		return []vision.Kind{vision.KindHand}
	default:
		return vision.Kinds
	}
}

// Capability reports one modality's part of an analysis. Unavailable means
// the model behind it never loaded; that is a stated outcome, not an error.
type Capability struct {
	Kind        vision.Kind
	Detections  []vision.Detection
	Unavailable bool
}

// Analysis is the outcome of a one-shot image task.
type Analysis struct {
	Capabilities []Capability
}

// Detections flattens every available capability's hits.
func (a Analysis) Detections() []vision.Detection {
	var out []vision.Detection
	for _, c := range a.Capabilities {
		out = append(out, c.Detections...)
	}
	return out
}

// Analyze runs a one-shot task against a static image, reusing the
// already-loaded models. Kinds whose model is not Ready are reported as
// unavailable rather than failing the call; the returned error covers only
// infrastructure problems (nil image, cancelled context).
func (p *Pipeline) Analyze(ctx context.Context, img image.Image, task Task) (Analysis, error) {
	if img == nil {
		return Analysis{}, errors.New("no image to analyze")
	}
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}

	now := p.clock.Now()
	var out Analysis
	for _, kind := range task.kinds() {
		capability := Capability{Kind: kind}
		dets, err := p.models.DetectKind(ctx, kind, img, now)
		if err != nil {
			p.logger.Debugw("capability unavailable for analysis",
				"task", task.String(), "kind", kind.String(), "error", err)
			capability.Unavailable = true
		} else {
			capability.Detections = dets
		}
		out.Capabilities = append(out.Capabilities, capability)
	}
	return out, nil
}
