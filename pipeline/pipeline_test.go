package pipeline

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/perception/mlmodel"
	"go.viam.com/perception/overlay"
	"go.viam.com/perception/videosource"
	"go.viam.com/perception/vision"
)

type stubDetector struct {
	mu   sync.Mutex
	dets []vision.Detection
	mode vision.RunningMode
}

func (f *stubDetector) Detect(ctx context.Context, img image.Image, now time.Time) ([]vision.Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dets, nil
}

func (f *stubDetector) SetRunningMode(ctx context.Context, mode vision.RunningMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = mode
	return nil
}

func (f *stubDetector) Close(ctx context.Context) error { return nil }

func (f *stubDetector) currentMode() vision.RunningMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

func stubLoader(det mlmodel.Detector) mlmodel.Loader {
	return func(ctx context.Context, delegate mlmodel.Delegate, logger golog.Logger) (mlmodel.Detector, error) {
		return det, nil
	}
}

func brokenLoader() mlmodel.Loader {
	return func(ctx context.Context, delegate mlmodel.Delegate, logger golog.Logger) (mlmodel.Detector, error) {
		return nil, errors.New("asset missing")
	}
}

type manualSync struct {
	grants chan struct{}
	waits  chan struct{}
}

func newManualSync() *manualSync {
	return &manualSync{grants: make(chan struct{}), waits: make(chan struct{})}
}

func (m *manualSync) Wait(ctx context.Context) error {
	select {
	case m.waits <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-m.grants:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *manualSync) step() {
	m.grants <- struct{}{}
	<-m.waits
}

func objectDet() []vision.Detection {
	return []vision.Detection{{
		Kind:       vision.KindObject,
		Box:        image.Rect(10, 10, 60, 60),
		Categories: []vision.Category{{Label: "cup", Score: 0.9}},
	}}
}

func newTestPipeline(t *testing.T, fsync *manualSync, obj *stubDetector) *Pipeline {
	t.Helper()
	logger := golog.NewTestLogger(t)
	set := mlmodel.NewSet(map[vision.Kind]mlmodel.Loader{
		vision.KindObject: stubLoader(obj),
		vision.KindFace:   brokenLoader(),
		vision.KindPose:   brokenLoader(),
		vision.KindHand:   brokenLoader(),
	}, logger)

	p, err := New(context.Background(), Config{
		Models:  set,
		Streams: videosource.NewManager(videosource.FakeFinder(), logger),
		Sync:    fsync,
		Clock:   clock.NewMock(),
		Logger:  logger,
	})
	test.That(t, err, test.ShouldBeNil)
	ready, err := p.WaitForModels(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ready, test.ShouldBeTrue)
	return p
}

func TestAnalyzeSubstitutesUnavailableCapabilities(t *testing.T) {
	obj := &stubDetector{dets: objectDet()}
	p := newTestPipeline(t, newManualSync(), obj)
	defer func() { test.That(t, p.Close(context.Background()), test.ShouldBeNil) }()

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	analysis, err := p.Analyze(context.Background(), img, TaskEverything)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, analysis.Capabilities, test.ShouldHaveLength, 4)
	for _, c := range analysis.Capabilities {
		if c.Kind == vision.KindObject {
			test.That(t, c.Unavailable, test.ShouldBeFalse)
			test.That(t, c.Detections, test.ShouldHaveLength, 1)
		} else {
			test.That(t, c.Unavailable, test.ShouldBeTrue)
			test.That(t, c.Detections, test.ShouldHaveLength, 0)
		}
	}
	test.That(t, analysis.Detections(), test.ShouldHaveLength, 1)

	faceOnly, err := p.Analyze(context.Background(), img, TaskFaces)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, faceOnly.Capabilities, test.ShouldHaveLength, 1)
	test.That(t, faceOnly.Capabilities[0].Unavailable, test.ShouldBeTrue)

	_, err = p.Analyze(context.Background(), nil, TaskObjects)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestStreamingLifecycle(t *testing.T) {
	fsync := newManualSync()
	obj := &stubDetector{dets: objectDet()}
	p := newTestPipeline(t, fsync, obj)
	defer func() { test.That(t, p.Close(context.Background()), test.ShouldBeNil) }()

	test.That(t, p.Streaming(), test.ShouldBeFalse)
	err := p.Start(context.Background(), videosource.Constraints{Width: 320, Height: 240})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Streaming(), test.ShouldBeTrue)
	test.That(t, obj.currentMode(), test.ShouldEqual, vision.StreamMode)

	// starting twice is refused
	err = p.Start(context.Background(), videosource.Constraints{})
	test.That(t, err, test.ShouldNotBeNil)

	<-fsync.waits
	fsync.step()

	// the tick painted an overlay and committed stats
	ov := p.OverlayImage()
	test.That(t, ov, test.ShouldNotBeNil)
	test.That(t, ov.Bounds().Dx(), test.ShouldEqual, 320)
	test.That(t, p.Stats().ObjectCount, test.ShouldEqual, 1)

	// the new object was notable enough to make history
	test.That(t, p.History().Len(), test.ShouldEqual, 1)
	test.That(t, p.History().Entries()[0].Label, test.ShouldEqual, "cup")

	// a second tick with the same object does not duplicate the entry
	fsync.step()
	test.That(t, p.History().Len(), test.ShouldEqual, 1)

	blob, name, err := p.Capture(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(blob), test.ShouldBeGreaterThan, 0)
	test.That(t, name, test.ShouldStartWith, "capture-")

	test.That(t, p.Stop(context.Background()), test.ShouldBeNil)
	test.That(t, p.Streaming(), test.ShouldBeFalse)
	test.That(t, obj.currentMode(), test.ShouldEqual, vision.SingleImageMode)

	// stopping an idle pipeline is a no-op
	test.That(t, p.Stop(context.Background()), test.ShouldBeNil)
}

func TestCaptureWithoutFrameFails(t *testing.T) {
	p := newTestPipeline(t, newManualSync(), &stubDetector{})
	defer func() { test.That(t, p.Close(context.Background()), test.ShouldBeNil) }()

	_, _, err := p.Capture(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestOverlayOptionsRoundTrip(t *testing.T) {
	p := newTestPipeline(t, newManualSync(), &stubDetector{})
	defer func() { test.That(t, p.Close(context.Background()), test.ShouldBeNil) }()

	opts := overlay.DefaultOptions()
	opts.ShowHands = false
	opts.ShowConfidence = true
	p.SetOverlayOptions(opts)
	test.That(t, p.OverlayOptions(), test.ShouldResemble, opts)
}

func TestPoseSnapshotFanOut(t *testing.T) {
	fsync := newManualSync()
	logger := golog.NewTestLogger(t)
	pose := &stubDetector{dets: []vision.Detection{{
		Kind:      vision.KindPose,
		Landmarks: make([]vision.Landmark, vision.PoseLandmarkCount),
	}}}
	set := mlmodel.NewSet(map[vision.Kind]mlmodel.Loader{
		vision.KindPose: stubLoader(pose),
	}, logger)

	var mu sync.Mutex
	var snapshots [][]vision.Landmark
	p, err := New(context.Background(), Config{
		Models:  set,
		Streams: videosource.NewManager(videosource.FakeFinder(), logger),
		Sync:    fsync,
		Clock:   clock.NewMock(),
		Logger:  logger,
		OnPoseLandmarks: func(lms []vision.Landmark) {
			mu.Lock()
			snapshots = append(snapshots, lms)
			mu.Unlock()
		},
	})
	test.That(t, err, test.ShouldBeNil)
	defer func() { test.That(t, p.Close(context.Background()), test.ShouldBeNil) }()
	_, err = p.WaitForModels(context.Background())
	test.That(t, err, test.ShouldBeNil)

	test.That(t, p.Start(context.Background(), videosource.Constraints{}), test.ShouldBeNil)
	<-fsync.waits
	fsync.step()
	test.That(t, p.Stop(context.Background()), test.ShouldBeNil)

	mu.Lock()
	defer mu.Unlock()
	test.That(t, len(snapshots), test.ShouldEqual, 1)
	test.That(t, snapshots[0], test.ShouldHaveLength, vision.PoseLandmarkCount)
}
