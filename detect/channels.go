package detect

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// toBGR writes 3-channel copy of gray, BGR or BGRA frame into dst
func toBGR(frame gocv.Mat, dst *gocv.Mat) error {
	switch frame.Channels() {
	case 1:
		gocv.CvtColor(frame, dst, gocv.ColorGrayToBGR)
	case 3:
		frame.CopyTo(dst)
	case 4:
		gocv.CvtColor(frame, dst, gocv.ColorBGRAToBGR)
	default:
		return errors.Errorf("unsupported number of channels: %d", frame.Channels())
	}
	return nil
}

// toGray writes single channel copy of gray, BGR or BGRA frame into dst
func toGray(frame gocv.Mat, dst *gocv.Mat) error {
	switch frame.Channels() {
	case 1:
		frame.CopyTo(dst)
	case 3:
		gocv.CvtColor(frame, dst, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(frame, dst, gocv.ColorBGRAToGray)
	default:
		return errors.Errorf("unsupported number of channels: %d", frame.Channels())
	}
	return nil
}
