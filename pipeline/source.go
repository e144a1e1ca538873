// Package pipeline runs per-camera frame processing: capture, detection, tracking and classification.
package pipeline

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Source delivers frames. *gocv.VideoCapture implements it.
type Source interface {
	// Read fills frame and reports whether a frame was read
	Read(frame *gocv.Mat) bool
	Close() error
}

// OpenSource opens capture device when name is an integer, file or stream URL otherwise
func OpenSource(name string) (*gocv.VideoCapture, error) {
	var device interface{} = name
	if index, err := strconv.Atoi(name); err == nil {
		device = index
	}
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open source '%s'", name)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Errorf("Source '%s' is not opened", name)
	}
	return capture, nil
}

// IsDevice reports whether name is a capture device rather than a file
func IsDevice(name string) bool {
	_, err := strconv.Atoi(name)
	return err == nil
}

// ProbeCameras returns indices among 0..count-1 of devices that open and deliver a frame
func ProbeCameras(count int) []int {
	found := make([]int, 0, count)
	frame := gocv.NewMat()
	defer frame.Close()
	for index := 0; index < count; index++ {
		capture, err := gocv.VideoCaptureDevice(index)
		if err != nil {
			logrus.WithField("index", index).WithError(err).Debug("No camera")
			continue
		}
		if capture.IsOpened() && capture.Read(&frame) && !frame.Empty() {
			found = append(found, index)
		}
		capture.Close()
	}
	return found
}

// ImageSource yields a single still image once
type ImageSource struct {
	image gocv.Mat
	done  bool
}

// NewImageSource reads image file
func NewImageSource(path string) (*ImageSource, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return nil, errors.Errorf("Can't read image '%s'", path)
	}
	return &ImageSource{image: img}, nil
}

// Read implements Source
func (s *ImageSource) Read(frame *gocv.Mat) bool {
	if s.done {
		return false
	}
	s.done = true
	s.image.CopyTo(frame)
	return true
}

// Close implements Source
func (s *ImageSource) Close() error {
	return s.image.Close()
}
