package detect

import (
	"image"

	"github.com/carevision/carevision-go/mot"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// MotionOptions configures frame-difference detector
type MotionOptions struct {
	// Threshold is per-pixel intensity difference counted as change
	Threshold float32
	// MinArea is minimal contour area, px^2
	MinArea float64
	// DilateIterations joins nearby changed pixels
	DilateIterations int
}

// DefaultMotionOptions returns threshold 65, area 1500 and one dilation pass
func DefaultMotionOptions() MotionOptions {
	return MotionOptions{
		Threshold:        65,
		MinArea:          1500,
		DilateIterations: 1,
	}
}

// Motion reports regions which changed since previous frame. It serves cameras without a model:
// detections are class-agnostic (class -1) with confidence 1.
type Motion struct {
	options MotionOptions
	kernel  gocv.Mat
	prev    gocv.Mat
	hasPrev bool
}

// NewMotion creates frame-difference detector
func NewMotion(options MotionOptions) *Motion {
	return &Motion{
		options: options,
		kernel:  gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
		prev:    gocv.NewMat(),
	}
}

// Detect implements Detector. First frame yields no detections.
func (m *Motion) Detect(frame gocv.Mat) ([]mot.Detection, error) {
	if frame.Empty() {
		return nil, errors.New("empty frame")
	}
	gray := gocv.NewMat()
	if err := toGray(frame, &gray); err != nil {
		gray.Close()
		return nil, err
	}
	if !m.hasPrev || m.prev.Rows() != gray.Rows() || m.prev.Cols() != gray.Cols() {
		m.swap(gray)
		return []mot.Detection{}, nil
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(m.prev, gray, &diff)
	m.swap(gray)

	gocv.Threshold(diff, &diff, m.options.Threshold, 255, gocv.ThresholdBinary)
	for i := 0; i < m.options.DilateIterations; i++ {
		gocv.Dilate(diff, &diff, m.kernel)
	}

	contours := gocv.FindContours(diff, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	detections := make([]mot.Detection, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		if gocv.ContourArea(contour) <= m.options.MinArea {
			continue
		}
		detections = append(detections, mot.Detection{
			BBox:       mot.NewRectFrom(gocv.BoundingRect(contour)),
			Confidence: 1.0,
			ClassID:    -1,
		})
	}
	return detections, nil
}

// Close releases buffers
func (m *Motion) Close() error {
	if err := m.prev.Close(); err != nil {
		return err
	}
	return m.kernel.Close()
}

func (m *Motion) swap(gray gocv.Mat) {
	m.prev.Close()
	m.prev = gray
	m.hasPrev = true
}
