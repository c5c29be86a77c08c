package mlmodel

import (
	"image"
	"testing"

	"go.viam.com/test"

	"go.viam.com/perception/vision"
)

func TestDecodeObjects(t *testing.T) {
	d := &objectDetector{labels: []string{"cup", "plant"}}
	outputs := [][]float32{
		{0.1, 0.1, 0.5, 0.5, 0.2, 0.2, 0.6, 0.6},
		{0, 1},
		{0.9, 0.3}, // second score is below threshold
		{2},
	}
	dets, err := d.decode(outputs, 100, 100)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 1)
	test.That(t, dets[0].Kind, test.ShouldEqual, vision.KindObject)
	test.That(t, dets[0].Label(), test.ShouldEqual, "cup")
	test.That(t, dets[0].Box, test.ShouldResemble, image.Rect(10, 10, 50, 50))
}

func TestDecodeObjectsTruncatedTensors(t *testing.T) {
	d := &objectDetector{labels: []string{"cup", "plant"}}

	// two scores, one class entry: the second detection is skipped, not a panic
	outputs := [][]float32{
		{0.1, 0.1, 0.5, 0.5, 0.2, 0.2, 0.6, 0.6},
		{1},
		{0.9, 0.8},
		{2},
	}
	dets, err := d.decode(outputs, 100, 100)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 1)
	test.That(t, dets[0].Label(), test.ShouldEqual, "plant")

	// truncated box tensor behaves the same way
	outputs = [][]float32{
		{0.1, 0.1, 0.5, 0.5},
		{0, 1},
		{0.9, 0.8},
		{2},
	}
	dets, err = d.decode(outputs, 100, 100)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 1)
	test.That(t, dets[0].Label(), test.ShouldEqual, "cup")
}

func TestDecodeObjectsMissingTensorsIsAnError(t *testing.T) {
	d := &objectDetector{}
	_, err := d.decode([][]float32{{0.1}, {0}, {0.9}}, 100, 100)
	test.That(t, err, test.ShouldNotBeNil)
}
