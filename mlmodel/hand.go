package mlmodel

import (
	"github.com/pkg/errors"

	"go.viam.com/perception/vision"
)

const handPresenceThreshold = 0.5

// HandConfig points at a hand landmark model.
type HandConfig struct {
	ModelPath string
}

// NewHandLoader returns a Loader for the hand landmarker. The model emits
// 21 landmarks as a flat [x,y,z] tensor in input-plane pixels, a presence
// score, and a handedness score (1 = right hand).
func NewHandLoader(cfg HandConfig) Loader {
	return newLandmarkLoader(vision.KindHand, cfg.ModelPath, decodeHand)
}

func decodeHand(d *landmarkDetector, outputs [][]float32, srcW, srcH float64) ([]vision.Detection, error) {
	if len(outputs) < 3 {
		return nil, errors.Errorf("hand model emitted %d tensors, want at least 3", len(outputs))
	}
	raw, presence, handedness := outputs[0], outputs[1], outputs[2]
	score := 1.0
	if len(presence) > 0 {
		score = sigmoid(float64(presence[0]))
	}
	if score < handPresenceThreshold {
		return nil, nil
	}
	lms, err := d.scaleLandmarks(raw, vision.HandLandmarkCount, 3, -1, srcW, srcH)
	if err != nil {
		return nil, err
	}
	side := "Left"
	if len(handedness) > 0 && sigmoid(float64(handedness[0])) >= 0.5 {
		side = "Right"
	}
	return []vision.Detection{{
		Kind:       vision.KindHand,
		Landmarks:  lms,
		Handedness: side,
		Categories: []vision.Category{{Label: side, Score: score}},
	}}, nil
}
