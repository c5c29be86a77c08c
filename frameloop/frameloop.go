// Package frameloop drives the per-frame pipeline: a cooperative,
// single-goroutine loop that samples the latest video frame, hands it to a
// detection callback, tracks instantaneous frame rate, and throttles stats
// commits so UI update cost stays decoupled from detection cadence.
package frameloop

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/perception/vision"
	"go.viam.com/perception/videosource"
)

// statsCommitInterval is the minimum spacing between committed stats
// updates. Detection still runs every tick; intermediate stats inside a
// window are computed and discarded (last writer wins). This is a fixed
// contract, not a tunable.
const statsCommitInterval = 150 * time.Millisecond

// fpsLogInterval spaces the periodic smoothed-FPS log line.
const fpsLogInterval = 5 * time.Second

// fpsWindow is how many recent frame intervals feed the smoothed average.
const fpsWindow = 30

// FrameSync abstracts the display refresh signal: Wait returns when the
// next frame should run, or with the context's error on cancellation.
type FrameSync interface {
	Wait(ctx context.Context) error
}

// NewTickerSync returns a FrameSync that approximates a display refresh
// with a fixed-interval ticker on the given clock.
func NewTickerSync(c clock.Clock, interval time.Duration) FrameSync {
	return &tickerSync{clock: c, interval: interval}
}

type tickerSync struct {
	clock    clock.Clock
	interval time.Duration
}

func (t *tickerSync) Wait(ctx context.Context) error {
	timer := t.clock.Timer(t.interval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config wires a Scheduler. Source, OnFrame, and Sync are required.
type Config struct {
	// Source supplies frames; a source with zero dimensions is skipped
	// for the tick and retried on the next one.
	Source videosource.Source
	// Ready gates detection: the loop re-arms without calling OnFrame
	// until it reports true, so a not-yet-loaded model set is not
	// busy-failed every frame. Nil means always ready.
	Ready func() bool
	// OnFrame runs detection (and drawing) for one sampled frame and
	// returns the frame's result, or nil to skip stats for the tick.
	OnFrame func(ctx context.Context, img image.Image, now time.Time) *vision.FrameResult
	// OnStats receives throttled stats commits.
	OnStats func(vision.Stats)
	// Sync is the injected refresh signal driving the loop.
	Sync FrameSync

	Clock  clock.Clock
	Logger golog.Logger
}

// Scheduler owns the frame loop goroutine and its cancellation.
type Scheduler struct {
	cfg   Config
	clock clock.Clock

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc

	lastTick   time.Time
	lastCommit time.Time
	lastFPSLog time.Time
	intervals  []float64

	activeBackgroundWorkers sync.WaitGroup
}

// NewScheduler validates the config and returns a stopped scheduler.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Source == nil {
		return nil, errors.New("frame loop needs a video source")
	}
	if cfg.OnFrame == nil {
		return nil, errors.New("frame loop needs a frame callback")
	}
	if cfg.Sync == nil {
		return nil, errors.New("frame loop needs a frame sync")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = golog.Global()
	}
	return &Scheduler{cfg: cfg, clock: cfg.Clock}, nil
}

// Start begins the loop. Starting an already running scheduler is an
// error; Stop first.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("frame loop already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.lastTick = time.Time{}
	s.lastCommit = time.Time{}
	s.lastFPSLog = s.clock.Now()
	s.intervals = s.intervals[:0]

	s.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(func() {
		for {
			if err := s.cfg.Sync.Wait(loopCtx); err != nil {
				return
			}
			s.tick(loopCtx)
		}
	}, s.activeBackgroundWorkers.Done)
	return nil
}

// Stop cancels the pending tick and waits for the loop goroutine. A tick
// already in progress finishes; stopping twice (or stopping a never
// started scheduler) is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.activeBackgroundWorkers.Wait()
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.clock.Now()
	fps := 0.0
	if !s.lastTick.IsZero() {
		dtMillis := float64(now.Sub(s.lastTick)) / float64(time.Millisecond)
		if dtMillis > 0 {
			fps = 1000.0 / dtMillis
			s.intervals = append(s.intervals, dtMillis)
			if len(s.intervals) > fpsWindow {
				s.intervals = s.intervals[1:]
			}
		}
	}
	s.lastTick = now

	// transient: the source has no dimensions yet (or was released);
	// re-arm silently
	w, h := s.cfg.Source.Dimensions()
	if w == 0 || h == 0 {
		return
	}
	// never detect before the model set has something to offer
	if s.cfg.Ready != nil && !s.cfg.Ready() {
		return
	}

	img, release, err := s.cfg.Source.Next(ctx)
	if err != nil {
		if !errors.Is(err, videosource.ErrCaptureNotReady) && !errors.Is(err, context.Canceled) {
			s.cfg.Logger.Debugw("frame sample failed, skipping tick", "error", err)
		}
		return
	}
	if release != nil {
		defer release()
	}

	res := s.cfg.OnFrame(ctx, img, now)
	if res == nil {
		return
	}

	if s.lastCommit.IsZero() || now.Sub(s.lastCommit) >= statsCommitInterval {
		s.lastCommit = now
		if s.cfg.OnStats != nil {
			s.cfg.OnStats(vision.StatsFromResult(res, fps))
		}
	}
	s.maybeLogFPS(now)
}

func (s *Scheduler) maybeLogFPS(now time.Time) {
	if now.Sub(s.lastFPSLog) < fpsLogInterval || len(s.intervals) == 0 {
		return
	}
	s.lastFPSLog = now
	if mean, err := stats.Mean(s.intervals); err == nil && mean > 0 {
		s.cfg.Logger.Debugw("frame loop rate", "avg_fps", 1000.0/mean, "window", len(s.intervals))
	}
}
