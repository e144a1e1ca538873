// Package stream classifies detections delivered as JSON lines, one frame per line.
//
// Input line:
//
//	{"camera":{"id":1},"flow":{"dx":0.5,"dy":0},"items":[{"bbox":[x,y,w,h],"conf":0.9,"class":3,"id":"17"}]}
//
// "flow" is optional. When every item carries "id" the identities are taken as is, otherwise
// the camera's own tracker assigns them. The line is echoed back with "items" replaced by
// classified objects and "stopped" listing identities which became stationary on this frame.
package stream

import (
	"bufio"
	"context"
	"io"

	"github.com/carevision/carevision-go/mot"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const maxLineSize = 10 << 20

// Options configures per-camera state
type Options struct {
	Tracker        mot.TrackerOptions
	SpeedThreshold float64
	FramesRequired int
	MaxAge         int
}

// DefaultOptions returns default tracker and classifier settings
func DefaultOptions() Options {
	return Options{
		Tracker:        mot.DefaultTrackerOptions(),
		SpeedThreshold: mot.DefaultSpeedThreshold,
		FramesRequired: mot.DefaultFramesRequired,
		MaxAge:         mot.DefaultMaxAge,
	}
}

type cameraState struct {
	tracker  *mot.FrameTracker
	upstream *mot.StationaryClassifier[string]
	internal *mot.StationaryClassifier[uuid.UUID]
}

// Service keeps state of every camera seen so far. Not safe for concurrent use.
type Service struct {
	options Options
	cameras map[int64]*cameraState
}

// NewService validates tracker options and creates service
func NewService(options Options) (*Service, error) {
	if _, err := mot.NewFrameTracker(options.Tracker); err != nil {
		return nil, err
	}
	return &Service{
		options: options,
		cameras: make(map[int64]*cameraState),
	}, nil
}

// Cameras returns number of cameras with state
func (s *Service) Cameras() int {
	return len(s.cameras)
}

func (s *Service) camera(id int64) (*cameraState, error) {
	if state, ok := s.cameras[id]; ok {
		return state, nil
	}
	tracker, err := mot.NewFrameTracker(s.options.Tracker)
	if err != nil {
		return nil, err
	}
	state := &cameraState{
		tracker:  tracker,
		upstream: mot.NewStationaryClassifier[string](s.options.SpeedThreshold, s.options.FramesRequired, s.options.MaxAge),
		internal: mot.NewStationaryClassifier[uuid.UUID](s.options.SpeedThreshold, s.options.FramesRequired, s.options.MaxAge),
	}
	s.cameras[id] = state
	logrus.WithField("camera", id).Info("New camera")
	return state, nil
}

// inputItem is a parsed element of "items"
type inputItem struct {
	raw       string
	detection mot.Detection
	id        string
	hasID     bool
}

func parseItem(item gjson.Result) (inputItem, error) {
	bbox := item.Get("bbox").Array()
	if len(bbox) != 4 {
		return inputItem{}, errors.Errorf("bbox must have 4 numbers, got %d", len(bbox))
	}
	parsed := inputItem{
		raw: item.Raw,
		detection: mot.Detection{
			BBox:       mot.NewRect(bbox[0].Float(), bbox[1].Float(), bbox[2].Float(), bbox[3].Float()),
			Confidence: 1.0,
			ClassID:    -1,
		},
	}
	if conf := item.Get("conf"); conf.Exists() {
		parsed.detection.Confidence = conf.Float()
	}
	if class := item.Get("class"); class.Exists() {
		parsed.detection.ClassID = int(class.Int())
	}
	if id := item.Get("id"); id.Exists() && id.String() != "" {
		parsed.id = id.String()
		parsed.hasID = true
	}
	return parsed, nil
}

// Process classifies single line and returns annotated line (without trailing newline)
func (s *Service) Process(line []byte) ([]byte, error) {
	if !gjson.ValidBytes(line) {
		return nil, errors.New("invalid JSON")
	}
	root := gjson.ParseBytes(line)
	state, err := s.camera(root.Get("camera.id").Int())
	if err != nil {
		return nil, err
	}
	compensation := mot.Vector{
		DX: root.Get("flow.dx").Float(),
		DY: root.Get("flow.dy").Float(),
	}

	rawItems := root.Get("items").Array()
	items := make([]inputItem, 0, len(rawItems))
	allIDs := len(rawItems) > 0
	for i, raw := range rawItems {
		item, err := parseItem(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "item %d", i)
		}
		allIDs = allIDs && item.hasID
		items = append(items, item)
	}

	// Every line is one frame for both identity spaces
	var out []string
	var stopped []string
	switch {
	case len(items) == 0:
		if _, err := state.tracker.Update(nil); err != nil {
			return nil, err
		}
		state.upstream.NextFrame()
		state.internal.NextFrame()
	case allIDs:
		if _, err := state.tracker.Update(nil); err != nil {
			return nil, err
		}
		state.internal.NextFrame()
		out, stopped, err = classifyUpstream(state, items, compensation)
	default:
		state.upstream.NextFrame()
		out, stopped, err = classifyTracked(state, items, compensation)
	}
	if err != nil {
		return nil, err
	}

	result, err := sjson.SetRawBytes(line, "items", []byte(joinArray(out)))
	if err != nil {
		return nil, errors.Wrap(err, "Can't set items")
	}
	if stopped == nil {
		stopped = []string{}
	}
	result, err = sjson.SetBytes(result, "stopped", stopped)
	if err != nil {
		return nil, errors.Wrap(err, "Can't set stopped")
	}
	return result, nil
}

func classifyUpstream(state *cameraState, items []inputItem, compensation mot.Vector) ([]string, []string, error) {
	objects := make([]mot.TrackedObject[string], len(items))
	for i, item := range items {
		objects[i] = mot.TrackedObject[string]{
			ID:         item.id,
			BBox:       item.detection.BBox,
			ClassID:    item.detection.ClassID,
			Confidence: item.detection.Confidence,
		}
	}
	classified := state.upstream.ClassifyFrame(objects, compensation)
	out := make([]string, len(classified))
	stopped := make([]string, 0)
	for i, object := range classified {
		annotated, err := annotate(items[i].raw, object.Speed, object.Stationary)
		if err != nil {
			return nil, nil, err
		}
		out[i] = annotated
		if object.Stopped {
			stopped = append(stopped, object.ID)
		}
	}
	return out, stopped, nil
}

func classifyTracked(state *cameraState, items []inputItem, compensation mot.Vector) ([]string, []string, error) {
	detections := make([]mot.Detection, len(items))
	for i, item := range items {
		detections[i] = item.detection
	}
	objects, err := state.tracker.Update(detections)
	if err != nil {
		return nil, nil, err
	}
	classified := state.internal.ClassifyFrame(objects, compensation)
	out := make([]string, len(classified))
	stopped := make([]string, 0)
	for i, object := range classified {
		item := "{}"
		for _, field := range []struct {
			path  string
			value interface{}
		}{
			{"id", object.ID.String()},
			{"bbox", []float64{object.BBox.X, object.BBox.Y, object.BBox.Width, object.BBox.Height}},
			{"class", object.ClassID},
			{"conf", object.Confidence},
		} {
			if item, err = sjson.Set(item, field.path, field.value); err != nil {
				return nil, nil, errors.Wrapf(err, "Can't set %s", field.path)
			}
		}
		if out[i], err = annotate(item, object.Speed, object.Stationary); err != nil {
			return nil, nil, err
		}
		if object.Stopped {
			stopped = append(stopped, object.ID.String())
		}
	}
	return out, stopped, nil
}

func annotate(item string, speed float64, stationary bool) (string, error) {
	item, err := sjson.Set(item, "speed", speed)
	if err != nil {
		return "", errors.Wrap(err, "Can't set speed")
	}
	item, err = sjson.Set(item, "stationary", stationary)
	if err != nil {
		return "", errors.Wrap(err, "Can't set stationary")
	}
	return item, nil
}

func joinArray(items []string) string {
	size := 2
	for _, item := range items {
		size += len(item) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, '[')
	for i, item := range items {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, item...)
	}
	buf = append(buf, ']')
	return string(buf)
}

// Run reads lines from r and writes annotated lines to w until r ends or ctx is done.
// Lines which can not be processed are logged and skipped.
func (s *Service) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	writer := bufio.NewWriter(w)
	lineNumber := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNumber++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		out, err := s.Process(line)
		if err != nil {
			logrus.WithField("line", lineNumber).WithError(err).Warn("Skip line")
			continue
		}
		if _, err := writer.Write(out); err != nil {
			return errors.Wrap(err, "Can't write output")
		}
		if err := writer.WriteByte('\n'); err != nil {
			return errors.Wrap(err, "Can't write output")
		}
		if err := writer.Flush(); err != nil {
			return errors.Wrap(err, "Can't flush output")
		}
	}
	return errors.Wrap(scanner.Err(), "Can't read input")
}
