// Package config holds monitor settings loaded from a JSON file.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/carevision/carevision-go/detect"
	"github.com/carevision/carevision-go/flow"
	"github.com/carevision/carevision-go/mot"
	"github.com/pkg/errors"
)

const maxFileSize = 1 * 1024 * 1024

// Config is the root configuration of a monitor process
type Config struct {
	// Source is a device index ("0") or a file path/URL
	Source     string           `json:"source"`
	Name       string           `json:"name"`
	Model      ModelConfig      `json:"model"`
	Motion     MotionConfig     `json:"motion"`
	Tracker    TrackerConfig    `json:"tracker"`
	Stationary StationaryConfig `json:"stationary"`
	Flow       FlowConfig       `json:"flow"`
	Output     OutputConfig     `json:"output"`
	Alert      AlertConfig      `json:"alert"`
	// QueueSize is capacity of the channel between capture and processing
	QueueSize int `json:"queue_size"`
}

// ModelConfig selects ONNX detector. Empty Path means frame-difference detector.
type ModelConfig struct {
	Path          string  `json:"path"`
	Labels        string  `json:"labels"`
	InputSize     int     `json:"input_size"`
	ConfThreshold float64 `json:"conf_threshold"`
	NMSThreshold  float64 `json:"nms_threshold"`
	Classes       []int   `json:"classes"`
}

// MotionConfig tunes frame-difference detector
type MotionConfig struct {
	Threshold float64 `json:"threshold"`
	MinArea   float64 `json:"min_area"`
}

// TrackerConfig tunes multi-object tracker
type TrackerConfig struct {
	Algorithm    string  `json:"algorithm"`
	MaxNoMatch   int     `json:"max_no_match"`
	MinDistance  float64 `json:"min_distance"`
	IoUThreshold float64 `json:"iou_threshold"`
	HighThresh   float64 `json:"high_thresh"`
	LowThresh    float64 `json:"low_thresh"`
	Greedy       bool    `json:"greedy"`
	MinHits      int     `json:"min_hits"`
}

// StationaryConfig tunes stationary classifier
type StationaryConfig struct {
	SpeedThreshold float64 `json:"speed_threshold"`
	FramesRequired int     `json:"frames_required"`
	// MaxAge 0 disables history eviction
	MaxAge int `json:"max_age"`
}

// FlowConfig selects camera-motion estimator: "farneback", "lk" or "none"
type FlowConfig struct {
	Method string `json:"method"`
}

// AlertConfig tunes camera motion alert
type AlertConfig struct {
	// ResetFrames is number of quiet frames which clear the alert. 0 keeps it until acknowledged.
	ResetFrames int `json:"reset_frames"`
}

// OutputConfig selects where annotated frames go
type OutputConfig struct {
	Window bool `json:"window"`
	// MJPEGAddr enables MJPEG stream when not empty, e.g. ":8080"
	MJPEGAddr string `json:"mjpeg_addr"`
	// Image is path of annotated image in single image mode
	Image string `json:"image"`
}

// Default returns configuration the monitor runs with when no file is given
func Default() *Config {
	yolo := detect.DefaultYOLOOptions()
	motion := detect.DefaultMotionOptions()
	tracker := mot.DefaultTrackerOptions()
	return &Config{
		Source: "0",
		Name:   "camera",
		Model: ModelConfig{
			InputSize:     yolo.InputSize,
			ConfThreshold: float64(yolo.ConfThreshold),
			NMSThreshold:  float64(yolo.NMSThreshold),
			Classes:       append([]int(nil), yolo.Classes...),
		},
		Motion: MotionConfig{
			Threshold: float64(motion.Threshold),
			MinArea:   motion.MinArea,
		},
		Tracker: TrackerConfig{
			Algorithm:    tracker.Algorithm,
			MaxNoMatch:   tracker.MaxNoMatch,
			MinDistance:  tracker.MinDistance,
			IoUThreshold: tracker.IoUThreshold,
			HighThresh:   tracker.HighThresh,
			LowThresh:    tracker.LowThresh,
			MinHits:      tracker.MinHits,
		},
		Stationary: StationaryConfig{
			SpeedThreshold: mot.DefaultSpeedThreshold,
			FramesRequired: mot.DefaultFramesRequired,
			MaxAge:         mot.DefaultMaxAge,
		},
		Flow: FlowConfig{
			Method: flow.MethodFarneback,
		},
		Output: OutputConfig{
			Window: true,
		},
		Alert: AlertConfig{
			ResetFrames: 150,
		},
		QueueSize: 8,
	}
}

// Load reads JSON file on top of Default(). Fields omitted from the file keep default values.
// The file must have .json extension and be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, errors.Errorf("config file must have .json extension, got %q", ext)
	}
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat config file")
	}
	if fileInfo.Size() > maxFileSize {
		return nil, errors.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config JSON")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// Validate checks that values are usable
func (c *Config) Validate() error {
	if c.Source == "" {
		return errors.New("source must not be empty")
	}
	if c.QueueSize < 1 {
		return errors.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}
	if c.Model.Path != "" {
		if c.Model.InputSize <= 0 {
			return errors.Errorf("model.input_size must be positive, got %d", c.Model.InputSize)
		}
		if c.Model.ConfThreshold <= 0 || c.Model.ConfThreshold > 1 {
			return errors.Errorf("model.conf_threshold must be in (0, 1], got %f", c.Model.ConfThreshold)
		}
		if c.Model.NMSThreshold <= 0 || c.Model.NMSThreshold > 1 {
			return errors.Errorf("model.nms_threshold must be in (0, 1], got %f", c.Model.NMSThreshold)
		}
		if len(c.Model.Classes) == 0 {
			return errors.New("model.classes must not be empty when a model is configured")
		}
	}
	if c.Motion.Threshold <= 0 || c.Motion.MinArea < 0 {
		return errors.Errorf("bad motion settings: threshold %f, min_area %f", c.Motion.Threshold, c.Motion.MinArea)
	}
	switch c.Tracker.Algorithm {
	case mot.AlgorithmSimple, mot.AlgorithmIoU, mot.AlgorithmByteTrack:
	default:
		return errors.Errorf("unknown tracker.algorithm '%s'", c.Tracker.Algorithm)
	}
	if c.Tracker.MaxNoMatch < 1 {
		return errors.Errorf("tracker.max_no_match must be positive, got %d", c.Tracker.MaxNoMatch)
	}
	if c.Tracker.LowThresh > c.Tracker.HighThresh {
		return errors.Errorf("tracker.low_thresh %f is above tracker.high_thresh %f", c.Tracker.LowThresh, c.Tracker.HighThresh)
	}
	if c.Stationary.SpeedThreshold <= 0 {
		return errors.Errorf("stationary.speed_threshold must be positive, got %f", c.Stationary.SpeedThreshold)
	}
	if c.Stationary.FramesRequired < 1 {
		return errors.Errorf("stationary.frames_required must be positive, got %d", c.Stationary.FramesRequired)
	}
	if c.Stationary.MaxAge < 0 {
		return errors.Errorf("stationary.max_age must be non-negative, got %d", c.Stationary.MaxAge)
	}
	switch c.Flow.Method {
	case flow.MethodFarneback, flow.MethodLK, flow.MethodNone:
	default:
		return errors.Errorf("unknown flow.method '%s'", c.Flow.Method)
	}
	if c.Alert.ResetFrames < 0 {
		return errors.Errorf("alert.reset_frames must be non-negative, got %d", c.Alert.ResetFrames)
	}
	return nil
}

// TrackerOptions converts tracker section
func (c *Config) TrackerOptions() mot.TrackerOptions {
	options := mot.DefaultTrackerOptions()
	options.Algorithm = c.Tracker.Algorithm
	options.MaxNoMatch = c.Tracker.MaxNoMatch
	options.MinDistance = c.Tracker.MinDistance
	options.IoUThreshold = c.Tracker.IoUThreshold
	options.HighThresh = c.Tracker.HighThresh
	options.LowThresh = c.Tracker.LowThresh
	options.MinHits = c.Tracker.MinHits
	if c.Tracker.Greedy {
		options.Matching = mot.MatchingAlgorithmGreedy
	}
	return options
}

// YOLOOptions converts model section
func (c *Config) YOLOOptions() detect.YOLOOptions {
	return detect.YOLOOptions{
		InputSize:     c.Model.InputSize,
		ConfThreshold: float32(c.Model.ConfThreshold),
		NMSThreshold:  float32(c.Model.NMSThreshold),
		Classes:       c.Model.Classes,
	}
}

// MotionOptions converts motion section
func (c *Config) MotionOptions() detect.MotionOptions {
	options := detect.DefaultMotionOptions()
	options.Threshold = float32(c.Motion.Threshold)
	options.MinArea = c.Motion.MinArea
	return options
}

// NewClassifier creates stationary classifier from stationary section
func NewClassifier[K comparable](c *Config) *mot.StationaryClassifier[K] {
	return mot.NewStationaryClassifier[K](c.Stationary.SpeedThreshold, c.Stationary.FramesRequired, c.Stationary.MaxAge)
}
