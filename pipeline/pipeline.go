// Package pipeline wires the perception core together: the camera handle,
// the model set, the frame loop, the overlay canvas, and the detection
// history. It is the surface other agents and the UI layer talk to.
package pipeline

import (
	"context"
	"image"
	"image/draw"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/perception/frameloop"
	"go.viam.com/perception/history"
	"go.viam.com/perception/mlmodel"
	"go.viam.com/perception/overlay"
	"go.viam.com/perception/videosource"
	"go.viam.com/perception/vision"
)

// notableScore is the confidence a detection needs before it is worth a
// history entry.
const notableScore = 0.6

// Config assembles a Pipeline. Models and Streams are required.
type Config struct {
	Models  *mlmodel.Set
	Streams *videosource.Manager

	// Display size for the overlay canvas; zero means "match the source".
	DisplayWidth  int
	DisplayHeight int

	// OnStats receives throttled stats commits.
	OnStats func(vision.Stats)
	// OnPoseLandmarks receives the latest pose snapshot for auxiliary
	// panels, on the same throttled cadence as stats.
	OnPoseLandmarks func([]vision.Landmark)

	Sync   frameloop.FrameSync
	Clock  clock.Clock
	Logger golog.Logger
}

// Pipeline is the collaborator-facing perception instance. Construct one
// and share it; the model set inside is reused by both the streaming path
// and one-shot analysis.
type Pipeline struct {
	logger  golog.Logger
	models  *mlmodel.Set
	streams *videosource.Manager
	hist    *history.Log
	clock   clock.Clock
	sync    frameloop.FrameSync

	onStats func(vision.Stats)
	onPose  func([]vision.Landmark)

	mu         sync.Mutex
	handle     *videosource.Handle
	sched      *frameloop.Scheduler
	opts       overlay.Options
	dispW      int
	dispH      int
	canvas     *gg.Context
	lastFrame  *image.RGBA
	lastResult *vision.FrameResult
	lastStats  vision.Stats
	lastCounts map[vision.Kind]int
}

// New builds a pipeline and kicks off model loading in the background.
func New(ctx context.Context, cfg Config) (*Pipeline, error) {
	if cfg.Models == nil {
		return nil, errors.New("pipeline needs a model set")
	}
	if cfg.Streams == nil {
		return nil, errors.New("pipeline needs a stream manager")
	}
	if cfg.Logger == nil {
		cfg.Logger = golog.Global()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Sync == nil {
		cfg.Sync = frameloop.NewTickerSync(cfg.Clock, time.Second/60)
	}
	p := &Pipeline{
		logger:     cfg.Logger,
		models:     cfg.Models,
		streams:    cfg.Streams,
		hist:       history.NewLogWithClock(cfg.Clock),
		clock:      cfg.Clock,
		sync:       cfg.Sync,
		onStats:    cfg.OnStats,
		onPose:     cfg.OnPoseLandmarks,
		opts:       overlay.DefaultOptions(),
		dispW:      cfg.DisplayWidth,
		dispH:      cfg.DisplayHeight,
		lastCounts: map[vision.Kind]int{},
	}
	p.models.Initialize(ctx)
	return p, nil
}

// WaitForModels blocks until model loading settles; the result says whether
// any capability is available.
func (p *Pipeline) WaitForModels(ctx context.Context) (bool, error) {
	return p.models.WaitForInitialization(ctx)
}

// ModelStates exposes per-model availability for the UI layer.
func (p *Pipeline) ModelStates() map[vision.Kind]mlmodel.LoadState {
	return p.models.States()
}

// History is the rolling detection log.
func (p *Pipeline) History() *history.Log {
	return p.hist
}

// Start acquires the camera and begins the continuous loop, switching the
// model set into stream mode. Starting while already streaming is an
// error; acquisition failures come back typed for the UI to surface.
func (p *Pipeline) Start(ctx context.Context, c videosource.Constraints) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sched != nil {
		return errors.New("pipeline is already streaming")
	}

	handle, err := p.streams.Acquire(ctx, c)
	if err != nil {
		return err
	}

	sched, err := frameloop.NewScheduler(frameloop.Config{
		Source:  handle,
		Ready:   p.models.Ready,
		OnFrame: p.processFrame,
		OnStats: p.commit,
		Sync:    p.sync,
		Clock:   p.clock,
		Logger:  p.logger,
	})
	if err != nil {
		return multierr.Combine(err, handle.Release())
	}

	if err := p.models.SetRunningMode(ctx, vision.StreamMode); err != nil {
		p.logger.Debugw("stream mode switch incomplete", "error", err)
	}
	if err := sched.Start(ctx); err != nil {
		return multierr.Combine(err, handle.Release())
	}
	p.handle = handle
	p.sched = sched
	return nil
}

// Stop halts the loop and releases the camera. Safe to call when idle.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	sched := p.sched
	handle := p.handle
	p.sched = nil
	p.handle = nil
	p.mu.Unlock()

	if sched == nil {
		return nil
	}
	sched.Stop()
	var errs error
	if handle != nil {
		errs = handle.Release()
	}
	if err := p.models.SetRunningMode(ctx, vision.SingleImageMode); err != nil {
		p.logger.Debugw("single image mode switch incomplete", "error", err)
	}
	return errs
}

// Streaming reports whether the continuous loop is active.
func (p *Pipeline) Streaming() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sched != nil
}

// processFrame is the per-tick body: detect, record notable hits, repaint
// the overlay canvas.
func (p *Pipeline) processFrame(ctx context.Context, img image.Image, now time.Time) *vision.FrameResult {
	res := p.models.Detect(ctx, img, now)

	p.mu.Lock()
	defer p.mu.Unlock()
	// the frame buffer goes back to the source after this tick; keep a copy
	p.retainFrameLocked(img)
	p.lastResult = res
	p.recordNotableLocked(res)
	p.repaintLocked(img, res)
	return res
}

func (p *Pipeline) retainFrameLocked(img image.Image) {
	bounds := img.Bounds()
	if p.lastFrame == nil || p.lastFrame.Bounds() != bounds {
		p.lastFrame = image.NewRGBA(bounds)
	}
	draw.Draw(p.lastFrame, bounds, img, bounds.Min, draw.Src)
}

// recordNotableLocked appends a history entry whenever a modality's count
// grows, i.e. something new entered the frame.
func (p *Pipeline) recordNotableLocked(res *vision.FrameResult) {
	for _, kind := range vision.Kinds {
		count := res.Count(kind)
		if count > p.lastCounts[kind] {
			dets := res.ByKind(kind)
			det := dets[len(dets)-1]
			if score := det.Score(); score >= notableScore {
				p.hist.Record(kind, det.Label(), score)
			}
		}
		p.lastCounts[kind] = count
	}
}

func (p *Pipeline) repaintLocked(img image.Image, res *vision.FrameResult) {
	srcW, srcH := img.Bounds().Dx(), img.Bounds().Dy()
	dispW, dispH := p.dispW, p.dispH
	if dispW == 0 || dispH == 0 {
		dispW, dispH = srcW, srcH
	}
	if p.canvas == nil || p.canvas.Width() != dispW || p.canvas.Height() != dispH {
		p.canvas = gg.NewContext(dispW, dispH)
	}
	stats := p.lastStats
	overlay.Draw(p.canvas, res, srcW, srcH, p.opts, &stats)
}

// commit receives the scheduler's throttled stats and fans them out,
// together with the pose snapshot for auxiliary panels.
func (p *Pipeline) commit(st vision.Stats) {
	p.mu.Lock()
	p.lastStats = st
	var poses []vision.Landmark
	if p.onPose != nil && p.lastResult != nil {
		if ps := p.lastResult.ByKind(vision.KindPose); len(ps) > 0 {
			poses = ps[0].Landmarks
		}
	}
	p.mu.Unlock()

	if p.onStats != nil {
		p.onStats(st)
	}
	if p.onPose != nil {
		p.onPose(poses)
	}
}

// Stats is the last committed snapshot.
func (p *Pipeline) Stats() vision.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastStats
}

// SetOverlayOptions swaps the rendering toggles; takes effect next tick.
func (p *Pipeline) SetOverlayOptions(opts overlay.Options) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts = opts
}

// OverlayOptions returns the current rendering toggles.
func (p *Pipeline) OverlayOptions() overlay.Options {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opts
}

// SetDisplaySize resizes the overlay canvas; takes effect next tick.
func (p *Pipeline) SetDisplaySize(w, h int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dispW, p.dispH = w, h
}

// OverlayImage returns the current overlay canvas, or nil before the first
// painted frame.
func (p *Pipeline) OverlayImage() image.Image {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.canvas == nil {
		return nil
	}
	return p.canvas.Image()
}

// CompositeFrame returns the current frame with the overlay painted on it
// at source resolution, for live display.
func (p *Pipeline) CompositeFrame() (image.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastFrame == nil {
		return nil, errors.Wrap(videosource.ErrCaptureNotReady, "no frame painted yet")
	}
	var ov image.Image
	if p.canvas != nil {
		ov = p.canvas.Image()
	}
	return overlay.CaptureComposite(p.lastFrame, ov)
}

// Capture composites the current frame and overlay at source resolution
// and returns an encoded image blob plus a suggested filename.
func (p *Pipeline) Capture(ctx context.Context) ([]byte, string, error) {
	p.mu.Lock()
	var frame, ov image.Image
	if p.lastFrame != nil {
		frame = p.lastFrame
	}
	if p.canvas != nil {
		ov = p.canvas.Image()
	}
	comp, err := overlay.CaptureComposite(frame, ov)
	p.mu.Unlock()
	if err != nil {
		return nil, "", err
	}
	return overlay.EncodePNG(comp, p.clock.Now())
}

// Close stops streaming and releases the models.
func (p *Pipeline) Close(ctx context.Context) error {
	return multierr.Combine(p.Stop(ctx), p.models.Close(ctx))
}
