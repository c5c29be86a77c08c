package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"go.viam.com/perception/vision"
)

var overlayFont *truetype.Font

func init() {
	var err error
	overlayFont, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Font returns the font used for overlay labels.
func Font() *truetype.Font {
	return overlayFont
}

var kindColors = map[vision.Kind]color.NRGBA{
	vision.KindObject: {R: 0, G: 255, B: 110, A: 255},
	vision.KindFace:   {R: 80, G: 170, B: 255, A: 255},
	vision.KindPose:   {R: 255, G: 120, B: 0, A: 255},
	vision.KindHand:   {R: 255, G: 70, B: 160, A: 255},
}

const (
	boxLineWidth      = 2.0
	skeletonLineWidth = 2.0
	pointRadius       = 2.5
	labelSize         = 13.0
	statsSize         = 15.0
)

// Draw clears the destination context and paints one frame's detections
// onto it, scaled from source dimensions into the context's dimensions.
// It is a pure projection+paint step: stateless, safe to call redundantly.
func Draw(dc *gg.Context, res *vision.FrameResult, srcWidth, srcHeight int, opts Options, stats *vision.Stats) {
	dc.SetRGBA(0, 0, 0, 0)
	dc.Clear()
	proj := NewProjection(srcWidth, srcHeight, dc.Width(), dc.Height())
	Render(dc, BuildPlan(res, proj, opts, stats))
}

// Render paints a prebuilt plan onto the context without clearing it.
// Kinds paint grouped in vision.Kinds order so overlapping annotations
// stack the same way every frame: a later kind always paints above an
// earlier one.
func Render(dc *gg.Context, plan *Plan) {
	for _, kind := range vision.Kinds {
		renderKind(dc, plan, kind)
	}
	if plan.Stats != nil {
		drawStats(dc, *plan.Stats)
	}
}

func renderKind(dc *gg.Context, plan *Plan, kind vision.Kind) {
	dc.SetColor(kindColors[kind])
	for _, r := range plan.Rects {
		if r.Kind != kind {
			continue
		}
		dc.SetLineWidth(boxLineWidth)
		dc.DrawRectangle(r.X, r.Y, r.W, r.H)
		dc.Stroke()
	}
	for _, l := range plan.Lines {
		if l.Kind != kind {
			continue
		}
		dc.SetLineWidth(skeletonLineWidth)
		dc.DrawLine(l.X1, l.Y1, l.X2, l.Y2)
		dc.Stroke()
	}
	for _, pt := range plan.Points {
		if pt.Kind != kind {
			continue
		}
		dc.DrawCircle(pt.X, pt.Y, pointRadius)
		dc.Fill()
	}
	fontSet := false
	for _, lb := range plan.Labels {
		if lb.Kind != kind {
			continue
		}
		if !fontSet {
			dc.SetFontFace(truetype.NewFace(overlayFont, &truetype.Options{Size: labelSize}))
			fontSet = true
		}
		dc.DrawString(lb.Text, lb.X, lb.Y-4)
	}
}

func drawStats(dc *gg.Context, st vision.Stats) {
	dc.SetFontFace(truetype.NewFace(overlayFont, &truetype.Options{Size: statsSize}))
	text := fmt.Sprintf("%.1f fps | obj %d face %d pose %d hand %d",
		st.FPS, st.ObjectCount, st.FaceCount, st.PoseCount, st.HandCount)
	dc.SetColor(color.NRGBA{R: 0, G: 0, B: 0, A: 160})
	w, h := dc.MeasureString(text)
	dc.DrawRectangle(6, 6, w+12, h+10)
	dc.Fill()
	dc.SetColor(color.White)
	dc.DrawString(text, 12, 10+h)
}

// DrawImage renders one frame's detections onto a fresh transparent canvas
// of the given destination size and returns it.
func DrawImage(res *vision.FrameResult, srcWidth, srcHeight, dstWidth, dstHeight int, opts Options, stats *vision.Stats) image.Image {
	dc := gg.NewContext(dstWidth, dstHeight)
	Draw(dc, res, srcWidth, srcHeight, opts, stats)
	return dc.Image()
}
