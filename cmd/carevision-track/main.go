// Command carevision-track reads detections as JSON lines on stdin and writes stationary verdicts to stdout.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/carevision/carevision-go/mot"
	"github.com/carevision/carevision-go/stream"
	"github.com/sirupsen/logrus"
)

var (
	algorithm      = flag.String("tracker", mot.AlgorithmByteTrack, "Tracking algorithm for items without id: simple, iou or bytetrack")
	maxLost        = flag.Int("maxlost", 30, "Frames a track may be lost before removal")
	iouThreshold   = flag.Float64("ioutr", 0.3, "IoU threshold")
	minHits        = flag.Int("minhits", 3, "Matches before a track is reported")
	speedThreshold = flag.Float64("speed", mot.DefaultSpeedThreshold, "Speed (px/frame) below which object counts as still")
	framesRequired = flag.Int("frames", mot.DefaultFramesRequired, "Still frames before object is stationary")
	maxAge         = flag.Int("maxage", mot.DefaultMaxAge, "Frames an identity may be unseen before its history is dropped. 0 keeps forever")
	verbose        = flag.Bool("v", false, "Verbose logging")
)

func main() {
	flag.Parse()
	// stdout carries results
	logrus.SetOutput(os.Stderr)
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	options := stream.DefaultOptions()
	options.Tracker.Algorithm = *algorithm
	options.Tracker.MaxNoMatch = *maxLost
	options.Tracker.IoUThreshold = *iouThreshold
	options.Tracker.MinHits = *minHits
	options.SpeedThreshold = *speedThreshold
	options.FramesRequired = *framesRequired
	options.MaxAge = *maxAge

	service, err := stream.NewService(options)
	if err != nil {
		logrus.WithError(err).Fatal("Can't create service")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := service.Run(ctx, os.Stdin, os.Stdout); err != nil {
		logrus.WithError(err).Fatal("Stream failed")
	}
}
