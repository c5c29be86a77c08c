package mlmodel

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"go.viam.com/perception/vision"
)

func TestSimpleObjectDetectorBoxesBrightRegion(t *testing.T) {
	loader := NewSimpleObjectLoader(200)
	det, err := loader(context.Background(), DelegateCPU, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	img := image.NewRGBA(image.Rect(0, 0, 100, 80))
	for y := 20; y < 40; y++ {
		for x := 50; x < 70; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	dets, err := det.Detect(context.Background(), img, time.Now())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 1)
	test.That(t, dets[0].Kind, test.ShouldEqual, vision.KindObject)
	test.That(t, dets[0].Box, test.ShouldResemble, image.Rect(50, 20, 70, 40))
	test.That(t, dets[0].Label(), test.ShouldEqual, "bright_region")
}

func TestSimpleObjectDetectorEmptyFrame(t *testing.T) {
	loader := NewSimpleObjectLoader(200)
	det, err := loader(context.Background(), DelegateGPU, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	dets, err := det.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10)), time.Now())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 0)
}
