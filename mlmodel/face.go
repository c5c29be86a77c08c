package mlmodel

import (
	"github.com/pkg/errors"

	"go.viam.com/perception/vision"
)

const facePresenceThreshold = 0.5

// faceBlendshapeNames maps blendshape tensor slots to expression names for
// models that emit the standard 52-coefficient set.
var faceBlendshapeNames = []string{
	"_neutral", "browDownLeft", "browDownRight", "browInnerUp", "browOuterUpLeft",
	"browOuterUpRight", "cheekPuff", "cheekSquintLeft", "cheekSquintRight",
	"eyeBlinkLeft", "eyeBlinkRight", "eyeLookDownLeft", "eyeLookDownRight",
	"eyeLookInLeft", "eyeLookInRight", "eyeLookOutLeft", "eyeLookOutRight",
	"eyeLookUpLeft", "eyeLookUpRight", "eyeSquintLeft", "eyeSquintRight",
	"eyeWideLeft", "eyeWideRight", "jawForward", "jawLeft", "jawOpen", "jawRight",
	"mouthClose", "mouthDimpleLeft", "mouthDimpleRight", "mouthFrownLeft",
	"mouthFrownRight", "mouthFunnel", "mouthLeft", "mouthLowerDownLeft",
	"mouthLowerDownRight", "mouthPressLeft", "mouthPressRight", "mouthPucker",
	"mouthRight", "mouthRollLower", "mouthRollUpper", "mouthShrugLower",
	"mouthShrugUpper", "mouthSmileLeft", "mouthSmileRight", "mouthStretchLeft",
	"mouthStretchRight", "noseSneerLeft", "noseSneerRight", "mouthUpperUpLeft",
	"mouthUpperUpRight",
}

// FaceConfig points at a face mesh model.
type FaceConfig struct {
	ModelPath string
}

// NewFaceLoader returns a Loader for the face landmarker. The model emits
// the 468-point mesh as a flat [x,y,z] tensor in input-plane pixels plus a
// presence score, and optionally a 52-value blendshape tensor.
func NewFaceLoader(cfg FaceConfig) Loader {
	return newLandmarkLoader(vision.KindFace, cfg.ModelPath, decodeFace)
}

func decodeFace(d *landmarkDetector, outputs [][]float32, srcW, srcH float64) ([]vision.Detection, error) {
	if len(outputs) < 2 {
		return nil, errors.Errorf("face model emitted %d tensors, want at least 2", len(outputs))
	}
	mesh, presence := outputs[0], outputs[1]
	score := 1.0
	if len(presence) > 0 {
		score = sigmoid(float64(presence[0]))
	}
	if score < facePresenceThreshold {
		return nil, nil
	}
	lms, err := d.scaleLandmarks(mesh, vision.FaceLandmarkCount, 3, -1, srcW, srcH)
	if err != nil {
		return nil, err
	}
	det := vision.Detection{
		Kind:       vision.KindFace,
		Landmarks:  lms,
		Categories: []vision.Category{{Label: "face", Score: score}},
	}
	if len(outputs) > 2 && len(outputs[2]) == len(faceBlendshapeNames) {
		det.Expressions = make(map[string]float64, len(faceBlendshapeNames))
		for i, name := range faceBlendshapeNames {
			det.Expressions[name] = float64(outputs[2][i])
		}
	}
	return []vision.Detection{det}, nil
}
