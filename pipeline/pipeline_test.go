package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/carevision/carevision-go/config"
	"github.com/carevision/carevision-go/flow"
	"github.com/carevision/carevision-go/mot"
	"github.com/carevision/carevision-go/render"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// fakeSource yields count copies of a blank frame
type fakeSource struct {
	template gocv.Mat
	count    int
	read     int
	closed   bool
}

func newFakeSource(count int) *fakeSource {
	template := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	template.SetTo(gocv.NewScalar(40, 40, 40, 0))
	return &fakeSource{template: template, count: count}
}

func (s *fakeSource) Read(frame *gocv.Mat) bool {
	if s.read >= s.count {
		return false
	}
	s.read++
	s.template.CopyTo(frame)
	return true
}

func (s *fakeSource) Close() error {
	s.closed = true
	return s.template.Close()
}

// fakeDetector reports the same parked car on every frame
type fakeDetector struct {
	err    error
	calls  int
	closed bool
}

func (d *fakeDetector) Detect(gocv.Mat) ([]mot.Detection, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return []mot.Detection{{BBox: mot.NewRect(40, 40, 50, 30), Confidence: 0.9, ClassID: 3}}, nil
}

func (d *fakeDetector) Close() error {
	d.closed = true
	return nil
}

// recordingSink keeps results and stops after limit frames when limit > 0
type recordingSink struct {
	results []FrameResult
	limit   int
}

func (r *recordingSink) Consume(_ gocv.Mat, result FrameResult) error {
	r.results = append(r.results, result)
	if r.limit > 0 && len(r.results) >= r.limit {
		return ErrStop
	}
	return nil
}

func (r *recordingSink) Close() error { return nil }

func newTestSession(t *testing.T, detector *fakeDetector) *Session {
	t.Helper()
	options := mot.DefaultTrackerOptions()
	options.MinHits = 1
	tracker, err := mot.NewFrameTracker(options)
	require.NoError(t, err)
	classifier := mot.NewStationaryClassifier[uuid.UUID](1.0, 2, 30)
	return NewSession("test", detector, tracker, flow.NewCompensator(nil), classifier, render.DefaultStyle())
}

func TestRunProcessesFramesInOrder(t *testing.T) {
	source := newFakeSource(5)
	defer source.Close()
	detector := &fakeDetector{}
	session := newTestSession(t, detector)
	defer session.Close()
	sink := &recordingSink{}

	err := Run(context.Background(), source, session, sink, RunOptions{QueueSize: 2})
	require.NoError(t, err)
	require.Len(t, sink.results, 5)
	require.Equal(t, 5, detector.calls)

	var stoppedFrames []int
	for i, result := range sink.results {
		require.Equal(t, i, result.Frame)
		require.Len(t, result.Objects, 1)
		if len(result.Stopped()) > 0 {
			stoppedFrames = append(stoppedFrames, result.Frame)
		}
	}
	require.Equal(t, []int{2}, stoppedFrames)
	require.Equal(t, mot.NoSpeed, sink.results[0].Objects[0].Speed)
	require.True(t, sink.results[4].Objects[0].Stationary)
	// Identity is stable
	require.Equal(t, sink.results[0].Objects[0].ID, sink.results[4].Objects[0].ID)
}

func TestRunStopsOnSinkRequest(t *testing.T) {
	source := newFakeSource(100)
	defer source.Close()
	session := newTestSession(t, &fakeDetector{})
	defer session.Close()
	sink := &recordingSink{limit: 2}

	err := Run(context.Background(), source, session, sink, RunOptions{QueueSize: 1})
	require.NoError(t, err)
	require.Len(t, sink.results, 2)
}

func TestRunReturnsDetectorError(t *testing.T) {
	source := newFakeSource(3)
	defer source.Close()
	session := newTestSession(t, &fakeDetector{err: errors.New("inference failed")})
	defer session.Close()

	err := Run(context.Background(), source, session, DiscardSink{}, RunOptions{QueueSize: 1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "inference failed")
}

func TestCaptureDropsWhenFull(t *testing.T) {
	source := newFakeSource(5)
	defer source.Close()
	frames := make(chan gocv.Mat, 1)

	require.NoError(t, Capture(context.Background(), source, frames, true))
	received := 0
	for frame := range frames {
		received++
		frame.Close()
	}
	require.Equal(t, 1, received)
	require.Equal(t, 5, source.read)
}

func TestCaptureCancelled(t *testing.T) {
	source := newFakeSource(5)
	defer source.Close()
	frames := make(chan gocv.Mat, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Capture(ctx, source, frames, false)
	require.ErrorIs(t, err, context.Canceled)
	_, open := <-frames
	require.False(t, open)
	require.Equal(t, 0, source.read)
}

func TestMultiSink(t *testing.T) {
	first := &recordingSink{limit: 1}
	second := &recordingSink{}
	sinks := MultiSink{first, second, DiscardSink{}}
	frame := gocv.NewMat()
	defer frame.Close()

	err := sinks.Consume(frame, FrameResult{Frame: 7})
	require.ErrorIs(t, err, ErrStop)
	require.Len(t, second.results, 1)
	require.Equal(t, 7, second.results[0].Frame)
	require.NoError(t, sinks.Close())
}

func TestImageSourceAndSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	source := newFakeSource(1)
	defer source.Close()
	require.NoError(t, ImageSink{Path: path}.Consume(source.template, FrameResult{}))

	image, err := NewImageSource(path)
	require.NoError(t, err)
	defer image.Close()
	frame := gocv.NewMat()
	defer frame.Close()
	require.True(t, image.Read(&frame))
	require.Equal(t, 160, frame.Cols())
	require.False(t, image.Read(&frame))

	_, err = NewImageSource(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
}

func TestNewSessionFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Flow.Method = flow.MethodNone
	session, err := NewSessionFromConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, "camera", session.Name())
	require.NoError(t, session.Close())

	cfg.Model.Path = filepath.Join(t.TempDir(), "missing.onnx")
	_, err = NewSessionFromConfig(cfg)
	require.Error(t, err)
}

func TestIsDevice(t *testing.T) {
	require.True(t, IsDevice("0"))
	require.False(t, IsDevice("rtsp://camera/stream"))
	require.False(t, IsDevice("parking.mp4"))
}
