package mlmodel

import (
	"github.com/pkg/errors"

	"go.viam.com/perception/vision"
)

const posePresenceThreshold = 0.5

// PoseConfig points at a pose landmark model.
type PoseConfig struct {
	ModelPath string
}

// NewPoseLoader returns a Loader for the pose landmarker. The model emits
// 33 landmarks as a flat [x,y,z,visibility,presence] tensor in input-plane
// pixels plus an overall presence score.
func NewPoseLoader(cfg PoseConfig) Loader {
	return newLandmarkLoader(vision.KindPose, cfg.ModelPath, decodePose)
}

func decodePose(d *landmarkDetector, outputs [][]float32, srcW, srcH float64) ([]vision.Detection, error) {
	if len(outputs) < 2 {
		return nil, errors.Errorf("pose model emitted %d tensors, want at least 2", len(outputs))
	}
	raw, presence := outputs[0], outputs[1]
	score := 1.0
	if len(presence) > 0 {
		score = sigmoid(float64(presence[0]))
	}
	if score < posePresenceThreshold {
		return nil, nil
	}
	lms, err := d.scaleLandmarks(raw, vision.PoseLandmarkCount, 5, 3, srcW, srcH)
	if err != nil {
		return nil, err
	}
	return []vision.Detection{{
		Kind:       vision.KindPose,
		Landmarks:  lms,
		Categories: []vision.Category{{Label: "pose", Score: score}},
	}}, nil
}
