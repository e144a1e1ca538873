package pipeline

import (
	"github.com/carevision/carevision-go/config"
	"github.com/carevision/carevision-go/detect"
	"github.com/carevision/carevision-go/flow"
	"github.com/carevision/carevision-go/mot"
	"github.com/carevision/carevision-go/render"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// FrameResult is outcome of processing one frame
type FrameResult struct {
	// Frame is sequence number of the frame within the session, starting at 0
	Frame        int
	Compensation mot.Vector
	Objects      []mot.Classification[uuid.UUID]
	// Alert is set on the frame the camera motion alert was raised
	Alert bool
	// AlertActive tells whether the camera alert is still raised after this frame
	AlertActive bool
}

// Stopped returns objects which became stationary on this frame
func (result FrameResult) Stopped() []mot.Classification[uuid.UUID] {
	stopped := make([]mot.Classification[uuid.UUID], 0)
	for _, object := range result.Objects {
		if object.Stopped {
			stopped = append(stopped, object)
		}
	}
	return stopped
}

// Session owns the whole per-camera state. It must be used from a single goroutine.
type Session struct {
	name        string
	detector    detect.Detector
	tracker     *mot.FrameTracker
	compensator *flow.Compensator
	classifier  *mot.StationaryClassifier[uuid.UUID]
	style       render.Style
	alert       *MotionAlert
	frame       int
	logger      *logrus.Entry
}

// NewSession assembles session from ready parts. Session takes ownership of detector and compensator.
func NewSession(name string, detector detect.Detector, tracker *mot.FrameTracker, compensator *flow.Compensator, classifier *mot.StationaryClassifier[uuid.UUID], style render.Style) *Session {
	return &Session{
		name:        name,
		detector:    detector,
		tracker:     tracker,
		compensator: compensator,
		classifier:  classifier,
		style:       style,
		alert:       NewMotionAlert(DefaultAlertReset),
		logger:      logrus.WithField("camera", name),
	}
}

// NewSessionFromConfig builds detector, tracker, compensator and classifier described by cfg.
// Without model path the frame-difference detector is used.
func NewSessionFromConfig(cfg *config.Config) (*Session, error) {
	tracker, err := mot.NewFrameTracker(cfg.TrackerOptions())
	if err != nil {
		return nil, errors.Wrap(err, "Can't create tracker")
	}
	estimator, err := flow.NewEstimator(cfg.Flow.Method)
	if err != nil {
		return nil, errors.Wrap(err, "Can't create motion estimator")
	}

	style := render.DefaultStyle()
	var detector detect.Detector
	if cfg.Model.Path != "" {
		yolo, err := detect.NewYOLO(cfg.Model.Path, cfg.YOLOOptions())
		if err != nil {
			return nil, errors.Wrap(err, "Can't create detector")
		}
		detector = yolo
		if cfg.Model.Labels != "" {
			labels, err := detect.LoadLabels(cfg.Model.Labels)
			if err != nil {
				yolo.Close()
				return nil, err
			}
			style.Labels = labels
		}
	} else {
		detector = detect.NewMotion(cfg.MotionOptions())
	}
	session := NewSession(cfg.Name, detector, tracker, flow.NewCompensator(estimator), config.NewClassifier[uuid.UUID](cfg), style)
	session.alert = NewMotionAlert(cfg.Alert.ResetFrames)
	return session, nil
}

// Name returns camera name
func (s *Session) Name() string {
	return s.name
}

// ProcessFrame runs camera-motion compensation, detection, tracking and classification on a BGR frame.
// Failure to estimate camera motion is not fatal: the frame is classified without compensation.
func (s *Session) ProcessFrame(frame gocv.Mat) (FrameResult, error) {
	result := FrameResult{Frame: s.frame}
	s.frame++

	compensation, err := s.compensator.Compensate(frame)
	if err != nil {
		s.logger.WithError(err).Warn("Camera motion is not compensated")
		compensation = mot.Vector{}
	}
	result.Compensation = compensation

	detections, err := s.detector.Detect(frame)
	if err != nil {
		return result, errors.Wrap(err, "Can't detect objects")
	}
	objects, err := s.tracker.Update(detections)
	if err != nil {
		return result, errors.Wrap(err, "Can't track objects")
	}
	result.Objects = s.classifier.ClassifyFrame(objects, compensation)

	for _, object := range result.Objects {
		if !object.Stopped {
			continue
		}
		s.logger.WithFields(logrus.Fields{
			"id":    object.ID.String(),
			"class": object.ClassID,
			"x":     object.BBox.X,
			"y":     object.BBox.Y,
			"frame": result.Frame,
		}).Warn("Vehicle stopped")
	}
	if s.alert.Update(hasMoving(result.Objects)) {
		result.Alert = true
		s.logger.WithField("frame", result.Frame).Warn("Motion detected")
	}
	result.AlertActive = s.alert.Active()
	s.logger.WithFields(logrus.Fields{
		"frame":      result.Frame,
		"detections": len(detections),
		"objects":    len(objects),
		"dx":         compensation.DX,
		"dy":         compensation.DY,
	}).Debug("Frame processed")
	return result, nil
}

// AcknowledgeAlert clears camera motion alert
func (s *Session) AcknowledgeAlert() {
	s.alert.Acknowledge()
}

// Annotate paints result on frame
func (s *Session) Annotate(frame *gocv.Mat, result FrameResult) {
	render.Annotate(frame, result.Objects, s.style)
	render.Header(frame, render.HeaderText(s.name, result.Frame, result.Compensation, result.AlertActive), s.style)
}

func hasMoving(objects []mot.Classification[uuid.UUID]) bool {
	for _, object := range objects {
		if !object.Stationary {
			return true
		}
	}
	return false
}

// Close releases detector and compensator
func (s *Session) Close() error {
	compensatorErr := s.compensator.Close()
	if err := s.detector.Close(); err != nil {
		return errors.Wrap(err, "Can't close detector")
	}
	return compensatorErr
}
