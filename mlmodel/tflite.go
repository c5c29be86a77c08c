package mlmodel

import (
	"bufio"
	"image"
	"os"
	"runtime"
	"sync"

	tflite "github.com/mattn/go-tflite"
	"github.com/mattn/go-tflite/delegates/xnnpack"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"go.viam.com/perception/vision"
)

// interpreterBundle wraps a tflite model plus the interpreter built for it.
type interpreterBundle struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	inputWidth  int
	inputHeight int

	// inference and mode switches are serialized per model
	mu sync.Mutex
}

// newInterpreterBundle loads a .tflite model and builds an interpreter for
// the requested delegate. The GPU request maps to the XNNPACK accelerated
// path; CPU is a plain interpreter.
func newInterpreterBundle(modelPath string, delegate Delegate) (*interpreterBundle, error) {
	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, errors.Errorf("cannot load model file %q", modelPath)
	}

	options := tflite.NewInterpreterOptions()
	if options == nil {
		model.Delete()
		return nil, errors.New("cannot create interpreter options")
	}
	options.SetNumThread(runtime.NumCPU())
	if delegate == DelegateGPU {
		d := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(runtime.NumCPU())})
		if d == nil {
			options.Delete()
			model.Delete()
			return nil, errors.New("accelerated delegate unavailable")
		}
		options.AddDelegate(d)
	}

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, errors.New("cannot create interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, errors.New("cannot allocate tensors")
	}

	input := interpreter.GetInputTensor(0)
	b := &interpreterBundle{
		model:       model,
		options:     options,
		interpreter: interpreter,
		inputHeight: input.Dim(1),
		inputWidth:  input.Dim(2),
	}
	return b, nil
}

// invoke resizes the frame to the model's input plane, runs inference, and
// returns every output tensor as float32 slices in output order.
func (b *interpreterBundle) invoke(img image.Image) ([][]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	resized := resize.Resize(uint(b.inputWidth), uint(b.inputHeight), img, resize.Bilinear)
	input := b.interpreter.GetInputTensor(0)
	switch input.Type() {
	case tflite.UInt8:
		if status := input.CopyFromBuffer(imageToUint8(resized)); status != tflite.OK {
			return nil, errors.New("cannot copy frame into input tensor")
		}
	case tflite.Float32:
		copy(input.Float32s(), imageToFloat32(resized))
	default:
		return nil, errors.Errorf("unsupported input tensor type %s", input.Type())
	}

	if status := b.interpreter.Invoke(); status != tflite.OK {
		return nil, errors.New("inference failed")
	}

	outputs := make([][]float32, 0, b.interpreter.GetOutputTensorCount())
	for i := 0; i < b.interpreter.GetOutputTensorCount(); i++ {
		t := b.interpreter.GetOutputTensor(i)
		raw := t.Float32s()
		out := make([]float32, len(raw))
		copy(out, raw)
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func (b *interpreterBundle) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.interpreter != nil {
		b.interpreter.Delete()
		b.interpreter = nil
	}
	if b.options != nil {
		b.options.Delete()
		b.options = nil
	}
	if b.model != nil {
		b.model.Delete()
		b.model = nil
	}
	return nil
}

// imageToUint8 flattens an image to row-major RGB bytes.
func imageToUint8(img image.Image) []byte {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]byte, w*h*3)
	idx := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			out[idx] = uint8(r >> 8)
			out[idx+1] = uint8(g >> 8)
			out[idx+2] = uint8(b >> 8)
			idx += 3
		}
	}
	return out
}

// imageToFloat32 flattens an image to row-major RGB floats in [0,1].
func imageToFloat32(img image.Image) []float32 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]float32, w*h*3)
	idx := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			out[idx] = float32(r) / 65535.0
			out[idx+1] = float32(g) / 65535.0
			out[idx+2] = float32(b) / 65535.0
			idx += 3
		}
	}
	return out
}

// loadLabels reads a newline-delimited label file.
func loadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open label file")
	}
	defer func() { _ = f.Close() }()
	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		labels = append(labels, scanner.Text())
	}
	return labels, scanner.Err()
}

// landmarkSmoother carries stream-mode state: in StreamMode consecutive
// frames are blended to damp jitter, in SingleImageMode every frame stands
// alone. This is the only effect of the running mode on output.
type landmarkSmoother struct {
	mu   sync.Mutex
	mode vision.RunningMode
	prev map[int][]vision.Landmark
}

func newLandmarkSmoother() *landmarkSmoother {
	return &landmarkSmoother{prev: map[int][]vision.Landmark{}}
}

func (ls *landmarkSmoother) setMode(mode vision.RunningMode) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.mode = mode
	// cached landmarks from the previous mode must not bleed through
	ls.prev = map[int][]vision.Landmark{}
}

const smoothingFactor = 0.5

// apply blends the landmarks of detection slot i with the previous frame's
// when streaming.
func (ls *landmarkSmoother) apply(i int, lms []vision.Landmark) []vision.Landmark {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.mode != vision.StreamMode {
		return lms
	}
	prev, ok := ls.prev[i]
	if ok && len(prev) == len(lms) {
		for j := range lms {
			lms[j].X = smoothingFactor*lms[j].X + (1-smoothingFactor)*prev[j].X
			lms[j].Y = smoothingFactor*lms[j].Y + (1-smoothingFactor)*prev[j].Y
			lms[j].Z = smoothingFactor*lms[j].Z + (1-smoothingFactor)*prev[j].Z
		}
	}
	saved := make([]vision.Landmark, len(lms))
	copy(saved, lms)
	ls.prev[i] = saved
	return lms
}

func boxFromLandmarks(lms []vision.Landmark) image.Rectangle {
	if len(lms) == 0 {
		return image.Rectangle{}
	}
	minX, minY := lms[0].X, lms[0].Y
	maxX, maxY := lms[0].X, lms[0].Y
	for _, lm := range lms[1:] {
		if lm.X < minX {
			minX = lm.X
		}
		if lm.X > maxX {
			maxX = lm.X
		}
		if lm.Y < minY {
			minY = lm.Y
		}
		if lm.Y > maxY {
			maxY = lm.Y
		}
	}
	return image.Rect(int(minX), int(minY), int(maxX), int(maxY))
}
