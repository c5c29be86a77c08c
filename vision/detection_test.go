package vision

import (
	"image"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestTopCategory(t *testing.T) {
	d := Detection{
		Kind: KindObject,
		Categories: []Category{
			{Label: "cup", Score: 0.4},
			{Label: "bottle", Score: 0.9},
			{Label: "glass", Score: 0.2},
		},
	}
	top, ok := d.TopCategory()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, top.Label, test.ShouldEqual, "bottle")
	test.That(t, top.Score, test.ShouldEqual, 0.9)

	// on a tie, output order decides
	d.Categories = []Category{
		{Label: "cat", Score: 0.5},
		{Label: "dog", Score: 0.5},
	}
	top, ok = d.TopCategory()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, top.Label, test.ShouldEqual, "cat")

	empty := Detection{Kind: KindFace}
	_, ok = empty.TopCategory()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, empty.Score(), test.ShouldEqual, 0.0)
}

func TestLabelFallsBackToHandedness(t *testing.T) {
	d := Detection{Kind: KindHand, Handedness: "Left"}
	test.That(t, d.Label(), test.ShouldEqual, "Left")

	d.Categories = []Category{{Label: "open_palm", Score: 0.8}}
	test.That(t, d.Label(), test.ShouldEqual, "open_palm")
}

func TestFrameResultCounts(t *testing.T) {
	fr := &FrameResult{
		Timestamp: time.Unix(10, 0),
		Detections: []Detection{
			{Kind: KindObject, Box: image.Rect(0, 0, 10, 10)},
			{Kind: KindObject, Box: image.Rect(5, 5, 20, 20)},
			{Kind: KindHand},
		},
	}
	test.That(t, fr.Count(KindObject), test.ShouldEqual, 2)
	test.That(t, fr.Count(KindHand), test.ShouldEqual, 1)
	test.That(t, fr.Count(KindFace), test.ShouldEqual, 0)
	test.That(t, fr.ByKind(KindObject), test.ShouldHaveLength, 2)
	test.That(t, fr.ByKind(KindPose), test.ShouldHaveLength, 0)

	st := StatsFromResult(fr, 30.5)
	test.That(t, st.FPS, test.ShouldEqual, 30.5)
	test.That(t, st.ObjectCount, test.ShouldEqual, 2)
	test.That(t, st.HandCount, test.ShouldEqual, 1)
	test.That(t, st.FaceCount, test.ShouldEqual, 0)
	test.That(t, st.PoseCount, test.ShouldEqual, 0)
}

func TestTopologiesAreInBounds(t *testing.T) {
	for _, c := range PoseConnections {
		test.That(t, c.A, test.ShouldBeLessThan, PoseLandmarkCount)
		test.That(t, c.B, test.ShouldBeLessThan, PoseLandmarkCount)
	}
	for _, c := range HandConnections {
		test.That(t, c.A, test.ShouldBeLessThan, HandLandmarkCount)
		test.That(t, c.B, test.ShouldBeLessThan, HandLandmarkCount)
	}
	for idx := range PoseLabels {
		test.That(t, idx, test.ShouldBeLessThan, PoseLandmarkCount)
	}
}
