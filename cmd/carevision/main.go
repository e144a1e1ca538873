// Command carevision watches a camera, video file or image and flags vehicles which stopped.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/carevision/carevision-go/config"
	"github.com/carevision/carevision-go/pipeline"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	configPath = flag.String("config", "", "Path to JSON configuration file")
	mode       = flag.String("mode", "video", "One of: video, webcam, image, probe, all")
	source     = flag.String("source", "", "Video file, stream URL or device index (overrides configuration)")
	modelPath  = flag.String("model", "", "ONNX model path (overrides configuration). Empty model means frame-difference detector")
	labelsPath = flag.String("labels", "", "Class names file, one per line")
	trackerAlg = flag.String("tracker", "", "Tracking algorithm: simple, iou or bytetrack")
	flowMethod = flag.String("flow", "", "Camera motion estimator: farneback, lk or none")
	mjpegAddr  = flag.String("mjpeg", "", "Serve annotated frames as MJPEG stream on this address, e.g. :8080")
	noWindow   = flag.Bool("nowindow", false, "Do not open preview window")
	outImage   = flag.String("out", "annotated.jpg", "Output file in image mode")
	probeCount = flag.Int("probe", 10, "Number of device indices to check in probe mode")
	verbose    = flag.Bool("v", false, "Verbose logging")
)

func main() {
	flag.Parse()
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("carevision failed")
	}
}

func run() error {
	if *mode == "probe" {
		cameras := pipeline.ProbeCameras(*probeCount)
		if len(cameras) == 0 {
			fmt.Println("No cameras found")
			return nil
		}
		for _, index := range cameras {
			fmt.Printf("Camera %d\n", index)
		}
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if *mode == "all" {
		return runAll(cfg)
	}

	var src pipeline.Source
	switch *mode {
	case "video", "webcam":
		if *mode == "webcam" && *source == "" {
			cfg.Source = "0"
		}
		capture, err := pipeline.OpenSource(cfg.Source)
		if err != nil {
			return err
		}
		src = capture
	case "image":
		if cfg.Output.Image == "" {
			cfg.Output.Image = *outImage
		}
		if err := checkImageSource(cfg.Source); err != nil {
			return err
		}
		// A still image is seen once: report objects without waiting for confirmation
		cfg.Tracker.MinHits = 1
		image, err := pipeline.NewImageSource(cfg.Source)
		if err != nil {
			return err
		}
		src = image
	default:
		return errors.Errorf("unknown mode '%s'", *mode)
	}
	defer src.Close()

	session, err := pipeline.NewSessionFromConfig(cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	sink := buildSink(cfg, *mode == "image", session)
	defer sink.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logrus.WithFields(logrus.Fields{
		"source":  cfg.Source,
		"tracker": cfg.Tracker.Algorithm,
		"flow":    cfg.Flow.Method,
		"model":   cfg.Model.Path,
	}).Info("Monitoring started")
	err = pipeline.Run(ctx, src, session, sink, pipeline.RunOptions{
		QueueSize:    cfg.QueueSize,
		DropWhenFull: pipeline.IsDevice(cfg.Source),
	})
	if err != nil {
		return err
	}
	if *mode == "image" {
		logrus.WithField("file", cfg.Output.Image).Info("Annotated image written")
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if *source != "" {
		cfg.Source = *source
	}
	if *modelPath != "" {
		cfg.Model.Path = *modelPath
	}
	if *labelsPath != "" {
		cfg.Model.Labels = *labelsPath
	}
	if *trackerAlg != "" {
		cfg.Tracker.Algorithm = *trackerAlg
	}
	if *flowMethod != "" {
		cfg.Flow.Method = *flowMethod
	}
	if *mjpegAddr != "" {
		cfg.Output.MJPEGAddr = *mjpegAddr
	}
	if *noWindow {
		cfg.Output.Window = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// checkImageSource rejects the camera index inherited from defaults when image mode is given no picture
func checkImageSource(name string) error {
	if name == "" || pipeline.IsDevice(name) {
		return errors.Errorf("image mode needs an image path in -source or configuration, got '%s'", name)
	}
	return nil
}

// runAll monitors every camera found by probing, each in its own goroutine.
// HighGUI windows are not safe to drive from several goroutines, so alerts only go to the log.
func runAll(cfg *config.Config) error {
	cameras := pipeline.ProbeCameras(*probeCount)
	if len(cameras) == 0 {
		return errors.New("no cameras found")
	}
	jobs := make([]pipeline.Job, 0, len(cameras))
	defer func() {
		for _, job := range jobs {
			job.Source.Close()
			job.Session.Close()
		}
	}()
	for _, index := range cameras {
		cameraCfg := *cfg
		cameraCfg.Source = strconv.Itoa(index)
		cameraCfg.Name = fmt.Sprintf("camera %d", index)
		capture, err := pipeline.OpenSource(cameraCfg.Source)
		if err != nil {
			return err
		}
		session, err := pipeline.NewSessionFromConfig(&cameraCfg)
		if err != nil {
			capture.Close()
			return err
		}
		jobs = append(jobs, pipeline.Job{
			Source:  capture,
			Session: session,
			Sink:    pipeline.DiscardSink{},
			Options: pipeline.RunOptions{QueueSize: cfg.QueueSize, DropWhenFull: true},
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logrus.WithField("cameras", cameras).Info("Monitoring all cameras")
	return pipeline.RunAll(ctx, jobs)
}

func buildSink(cfg *config.Config, imageMode bool, session *pipeline.Session) pipeline.Sink {
	sinks := pipeline.MultiSink{}
	if imageMode {
		sinks = append(sinks, pipeline.ImageSink{Path: cfg.Output.Image})
	}
	if cfg.Output.MJPEGAddr != "" {
		sinks = append(sinks, pipeline.NewMJPEGSink(cfg.Output.MJPEGAddr))
	}
	if cfg.Output.Window {
		window := pipeline.NewWindowSink("Care Vision - " + cfg.Name)
		window.OnAcknowledge = session.AcknowledgeAlert
		if imageMode {
			window.Delay = 0
		}
		sinks = append(sinks, window)
	}
	if len(sinks) == 0 {
		return pipeline.DiscardSink{}
	}
	return sinks
}
