// Package mlmodel manages the set of perception models behind the pipeline:
// one detector per visual modality, loaded concurrently with an
// accelerated-delegate attempt and a CPU retry, sharing a single running
// mode. A model that fails to load never blocks its peers; it simply stops
// contributing detections.
package mlmodel

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/perception/vision"
)

// LoadState tracks a model through its load lifecycle. The only transition
// back from a failure happens inside the internal delegate retry, which is
// invisible to callers.
type LoadState int

// Load states.
const (
	Unloaded LoadState = iota
	Loading
	Ready
	Failed
)

func (s LoadState) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Delegate selects the execution path a model load should attempt.
type Delegate int

// Delegates, tried in order.
const (
	DelegateGPU Delegate = iota
	DelegateCPU
)

func (d Delegate) String() string {
	if d == DelegateCPU {
		return "cpu"
	}
	return "gpu"
}

// A Detector runs one perception model against a frame.
type Detector interface {
	Detect(ctx context.Context, img image.Image, now time.Time) ([]vision.Detection, error)
	SetRunningMode(ctx context.Context, mode vision.RunningMode) error
	Close(ctx context.Context) error
}

// A Loader builds a Detector for one modality with the given delegate.
type Loader func(ctx context.Context, delegate Delegate, logger golog.Logger) (Detector, error)

// ErrModelNotReady is returned by operations that need a loaded model.
var ErrModelNotReady = errors.New("model is not ready")

type modelSlot struct {
	kind     vision.Kind
	loader   Loader
	state    LoadState
	delegate Delegate
	detector Detector
	loadErr  error
}

// Set owns the perception models for one pipeline instance. Construct it
// once and share it between the streaming path and one-shot analysis; it is
// never torn down mid-session.
type Set struct {
	logger golog.Logger

	// mu is the mutual exclusion point between Detect and SetRunningMode.
	mu     sync.RWMutex
	slots  map[vision.Kind]*modelSlot
	mode   vision.RunningMode
	inited bool

	initOnce sync.Once
	initDone chan struct{}

	activeBackgroundWorkers sync.WaitGroup
}

// NewSet builds an orchestrator over the given per-kind loaders. Kinds with
// no loader stay Unloaded and contribute nothing.
func NewSet(loaders map[vision.Kind]Loader, logger golog.Logger) *Set {
	s := &Set{
		logger:   logger,
		slots:    map[vision.Kind]*modelSlot{},
		mode:     vision.SingleImageMode,
		initDone: make(chan struct{}),
	}
	for _, kind := range vision.Kinds {
		slot := &modelSlot{kind: kind}
		if loader, ok := loaders[kind]; ok {
			slot.loader = loader
		}
		s.slots[kind] = slot
	}
	return s
}

// Initialize starts loading every model concurrently and returns
// immediately. Each load tries the GPU delegate first and retries once on
// CPU before marking the model Failed. Safe to call more than once; only
// the first call does anything.
func (s *Set) Initialize(ctx context.Context) {
	s.initOnce.Do(func() {
		var loadWorkers sync.WaitGroup
		s.mu.Lock()
		for _, slot := range s.slots {
			if slot.loader == nil {
				continue
			}
			slot.state = Loading
			loadWorkers.Add(1)
			s.activeBackgroundWorkers.Add(1)
			slot := slot
			goutils.ManagedGo(func() {
				defer loadWorkers.Done()
				s.loadSlot(ctx, slot)
			}, s.activeBackgroundWorkers.Done)
		}
		s.mu.Unlock()

		s.activeBackgroundWorkers.Add(1)
		goutils.ManagedGo(func() {
			loadWorkers.Wait()
			s.mu.Lock()
			s.inited = true
			s.mu.Unlock()
			close(s.initDone)
		}, s.activeBackgroundWorkers.Done)
	})
}

func (s *Set) loadSlot(ctx context.Context, slot *modelSlot) {
	detector, delegate, err := s.tryLoad(ctx, slot)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		slot.state = Failed
		slot.loadErr = err
		s.logger.Warnw("model failed to load", "kind", slot.kind.String(), "error", err)
		return
	}
	slot.state = Ready
	slot.delegate = delegate
	slot.detector = detector
	s.logger.Infow("model loaded", "kind", slot.kind.String(), "delegate", delegate.String())
	if err := detector.SetRunningMode(ctx, s.mode); err != nil {
		s.logger.Debugw("cannot apply running mode to freshly loaded model",
			"kind", slot.kind.String(), "error", err)
	}
}

func (s *Set) tryLoad(ctx context.Context, slot *modelSlot) (Detector, Delegate, error) {
	detector, err := slot.loader(ctx, DelegateGPU, s.logger)
	if err == nil {
		return detector, DelegateGPU, nil
	}
	s.logger.Debugw("gpu delegate unavailable, retrying on cpu",
		"kind", slot.kind.String(), "error", err)
	detector, cpuErr := slot.loader(ctx, DelegateCPU, s.logger)
	if cpuErr != nil {
		return nil, DelegateCPU, multierr.Combine(err, cpuErr)
	}
	return detector, DelegateCPU, nil
}

// WaitForInitialization blocks until every load has settled and reports
// whether at least one model came up Ready. Calling it repeatedly is fine.
func (s *Set) WaitForInitialization(ctx context.Context) (bool, error) {
	select {
	case <-s.initDone:
		return s.Ready(), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Ready reports whether at least one model can detect.
func (s *Set) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, slot := range s.slots {
		if slot.state == Ready {
			return true
		}
	}
	return false
}

// State returns one model's load state.
func (s *Set) State(kind vision.Kind) LoadState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if slot, ok := s.slots[kind]; ok {
		return slot.state
	}
	return Unloaded
}

// States returns every model's load state.
func (s *Set) States() map[vision.Kind]LoadState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[vision.Kind]LoadState, len(s.slots))
	for kind, slot := range s.slots {
		out[kind] = slot.state
	}
	return out
}

// LoadError returns why a model is Failed, or nil.
func (s *Set) LoadError(kind vision.Kind) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if slot, ok := s.slots[kind]; ok {
		return slot.loadErr
	}
	return nil
}

// Detect runs every Ready model against the frame and merges the outputs
// into one FrameResult. Models that are Loading or Failed contribute an
// empty set for their kind, and a model erroring on one frame degrades to
// no detections for that kind rather than failing the frame.
func (s *Set) Detect(ctx context.Context, img image.Image, now time.Time) *vision.FrameResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := &vision.FrameResult{Timestamp: now}
	for _, kind := range vision.Kinds {
		slot := s.slots[kind]
		if slot.state != Ready {
			continue
		}
		dets, err := slot.detector.Detect(ctx, img, now)
		if err != nil {
			s.logger.Debugw("detection failed this frame", "kind", kind.String(), "error", err)
			continue
		}
		res.Detections = append(res.Detections, dets...)
	}
	return res
}

// DetectKind runs a single Ready model against the frame.
func (s *Set) DetectKind(ctx context.Context, kind vision.Kind, img image.Image, now time.Time) ([]vision.Detection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[kind]
	if !ok || slot.state != Ready {
		return nil, errors.Wrap(ErrModelNotReady, kind.String())
	}
	return slot.detector.Detect(ctx, img, now)
}

// SetRunningMode applies the mode to every Ready model. Before
// initialization completes it only records the desired mode (a no-op from
// the caller's perspective, not an error); freshly loaded models pick the
// mode up as part of their load. A model that refuses the switch is logged
// and keeps its previous mode.
func (s *Set) SetRunningMode(ctx context.Context, mode vision.RunningMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	if !s.inited {
		return nil
	}
	var errs error
	for _, kind := range vision.Kinds {
		slot := s.slots[kind]
		if slot.state != Ready {
			continue
		}
		if err := slot.detector.SetRunningMode(ctx, mode); err != nil {
			s.logger.Warnw("running mode switch failed; model keeps previous mode",
				"kind", kind.String(), "mode", mode.String(), "error", err)
			errs = multierr.Combine(errs, err)
		}
	}
	return errs
}

// Mode returns the currently requested running mode.
func (s *Set) Mode() vision.RunningMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Close waits for pending loads and releases every loaded model.
func (s *Set) Close(ctx context.Context) error {
	s.activeBackgroundWorkers.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs error
	for _, slot := range s.slots {
		if slot.detector != nil {
			errs = multierr.Combine(errs, slot.detector.Close(ctx))
			slot.detector = nil
			slot.state = Unloaded
		}
	}
	return errs
}
