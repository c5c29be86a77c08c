package overlay

import (
	"bytes"
	"image"
	"image/png"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
)

// CaptureComposite draws the overlay above a video frame on a surface of
// the frame's native resolution. The overlay canvas is usually sized for
// display, not for the source, so it is rescaled to match; exports stay
// resolution-faithful to the source.
func CaptureComposite(frame, overlayImg image.Image) (image.Image, error) {
	if frame == nil {
		return nil, errors.New("no video frame to composite")
	}
	bounds := frame.Bounds()
	dc := gg.NewContext(bounds.Dx(), bounds.Dy())
	dc.DrawImage(frame, 0, 0)
	if overlayImg != nil {
		ob := overlayImg.Bounds()
		if ob.Dx() != bounds.Dx() || ob.Dy() != bounds.Dy() {
			overlayImg = imaging.Resize(overlayImg, bounds.Dx(), bounds.Dy(), imaging.Linear)
		}
		dc.DrawImage(overlayImg, 0, 0)
	}
	return dc.Image(), nil
}

// EncodePNG encodes an export image and suggests a timestamped filename.
func EncodePNG(img image.Image, now time.Time) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", errors.Wrap(err, "cannot encode capture")
	}
	name := "capture-" + now.Format("20060102-150405") + ".png"
	return buf.Bytes(), name, nil
}
