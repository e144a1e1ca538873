package flow

import (
	"github.com/carevision/carevision-go/mot"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Compensator keeps previous frame of a single camera and reports camera motion for every new frame
type Compensator struct {
	estimator Estimator
	prev      gocv.Mat
	hasPrev   bool
}

// NewCompensator creates compensator. Nil estimator disables compensation: every frame yields zero vector.
func NewCompensator(estimator Estimator) *Compensator {
	return &Compensator{
		estimator: estimator,
		prev:      gocv.NewMat(),
	}
}

// Compensate returns camera displacement between previous and given frame.
// Frame is BGR or grayscale. First frame yields zero vector.
// On error the reference frame is replaced by given frame, so the next call measures against it.
func (c *Compensator) Compensate(frame gocv.Mat) (mot.Vector, error) {
	if c.estimator == nil {
		return mot.Vector{}, nil
	}
	if frame.Empty() {
		return mot.Vector{}, errors.New("empty frame")
	}
	gray := gocv.NewMat()
	switch frame.Channels() {
	case 1:
		frame.CopyTo(&gray)
	case 3:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRAToGray)
	default:
		gray.Close()
		return mot.Vector{}, errors.Errorf("unsupported number of channels: %d", frame.Channels())
	}

	if !c.hasPrev {
		c.swap(gray)
		return mot.Vector{}, nil
	}
	vector, err := c.estimator.Estimate(c.prev, gray)
	c.swap(gray)
	if err != nil {
		logrus.WithError(err).Debug("Camera motion reference reset")
		return mot.Vector{}, errors.Wrap(err, "Can't estimate camera motion")
	}
	return vector, nil
}

// Reset forgets previous frame
func (c *Compensator) Reset() {
	c.prev.Close()
	c.prev = gocv.NewMat()
	c.hasPrev = false
}

// Close releases previous frame
func (c *Compensator) Close() error {
	c.hasPrev = false
	return c.prev.Close()
}

func (c *Compensator) swap(gray gocv.Mat) {
	c.prev.Close()
	c.prev = gray
	c.hasPrev = true
}
