package mlmodel

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/perception/vision"
)

func faceMesh() []float32 {
	return make([]float32, vision.FaceLandmarkCount*3)
}

func faceTestDetector() *landmarkDetector {
	return &landmarkDetector{
		kind:     vision.KindFace,
		bundle:   &interpreterBundle{inputWidth: 192, inputHeight: 192},
		smoother: newLandmarkSmoother(),
	}
}

func TestDecodeFaceEmptyPresenceTensor(t *testing.T) {
	// models without a presence head emit an empty tensor; the face is
	// treated as present rather than panicking on the missing score
	dets, err := decodeFace(faceTestDetector(), [][]float32{faceMesh(), {}}, 640, 480)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 1)
	test.That(t, dets[0].Kind, test.ShouldEqual, vision.KindFace)
	test.That(t, dets[0].Score(), test.ShouldEqual, 1.0)
	test.That(t, dets[0].Landmarks, test.ShouldHaveLength, vision.FaceLandmarkCount)
}

func TestDecodeFaceBelowPresenceThreshold(t *testing.T) {
	dets, err := decodeFace(faceTestDetector(), [][]float32{faceMesh(), {-5}}, 640, 480)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 0)
}

func TestDecodeFaceBlendshapes(t *testing.T) {
	shapes := make([]float32, len(faceBlendshapeNames))
	shapes[25] = 0.8 // jawOpen
	dets, err := decodeFace(faceTestDetector(), [][]float32{faceMesh(), {0.9}, shapes}, 640, 480)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 1)
	test.That(t, dets[0].Expressions["jawOpen"], test.ShouldAlmostEqual, 0.8, 1e-6)
}
