// Command streamview runs the perception pipeline against a camera (real
// or synthetic) and serves the annotated stream as MJPEG for quick visual
// inspection.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/edaniels/golog"
	goutils "go.viam.com/utils"

	"go.viam.com/perception/mlmodel"
	"go.viam.com/perception/pipeline"
	"go.viam.com/perception/videosource"
	"go.viam.com/perception/vision"
)

var logger = golog.NewDevelopmentLogger("streamview")

func main() {
	goutils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	flags := flag.NewFlagSet(args[0], flag.ExitOnError)
	addr := flags.String("addr", ":8088", "listen address")
	useWebcam := flags.Bool("webcam", false, "use a real webcam instead of the synthetic source")
	width := flags.Int("width", 640, "requested stream width")
	height := flags.Int("height", 480, "requested stream height")
	objectModel := flags.String("object-model", "", "path to an object detection .tflite model")
	objectLabels := flags.String("object-labels", "", "path to the object label file")
	faceModel := flags.String("face-model", "", "path to a face landmark .tflite model")
	poseModel := flags.String("pose-model", "", "path to a pose landmark .tflite model")
	handModel := flags.String("hand-model", "", "path to a hand landmark .tflite model")
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}

	loaders := mlmodel.Loaders(mlmodel.Config{
		Object: mlmodel.ObjectConfig{ModelPath: *objectModel, LabelPath: *objectLabels},
		Face:   mlmodel.FaceConfig{ModelPath: *faceModel},
		Pose:   mlmodel.PoseConfig{ModelPath: *poseModel},
		Hand:   mlmodel.HandConfig{ModelPath: *handModel},
	})
	if len(loaders) == 0 {
		logger.Info("no model assets given; using the built-in luminance detector")
		loaders = map[vision.Kind]mlmodel.Loader{
			vision.KindObject: mlmodel.NewSimpleObjectLoader(230),
		}
	}

	finder := videosource.FakeFinder()
	if *useWebcam {
		finder = videosource.WebcamFinder(logger)
	}

	p, err := pipeline.New(ctx, pipeline.Config{
		Models:  mlmodel.NewSet(loaders, logger),
		Streams: videosource.NewManager(finder, logger),
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer func() { goutils.UncheckedError(p.Close(context.Background())) }()

	ready, err := p.WaitForModels(ctx)
	if err != nil {
		return err
	}
	if !ready {
		logger.Warn("no model loaded; the stream will show raw frames only")
	}
	for kind, state := range p.ModelStates() {
		logger.Infow("model state", "kind", kind.String(), "state", state.String())
	}

	if err := p.Start(ctx, videosource.Constraints{Width: *width, Height: *height}); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/", &mjpegHandler{pipeline: p})
	server := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	goutils.PanicCapturingGo(func() {
		<-ctx.Done()
		goutils.UncheckedError(server.Close())
	})

	logger.Infow("serving annotated stream", "addr", *addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

type mjpegHandler struct {
	pipeline *pipeline.Pipeline
}

func (h *mjpegHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, _ := w.(http.Flusher)
	ticker := time.NewTicker(66 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		img, err := h.pipeline.CompositeFrame()
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\n\r\n"); err != nil {
			return
		}
		if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 80}); err != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
