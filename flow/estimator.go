// Package flow estimates global camera motion between consecutive frames.
package flow

import (
	"sort"

	"github.com/carevision/carevision-go/mot"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// Estimation methods accepted by NewEstimator
const (
	MethodFarneback = "farneback"
	MethodLK        = "lk"
	MethodNone      = "none"
)

// Estimator returns displacement of the scene between two grayscale frames of equal size.
type Estimator interface {
	Estimate(prev, curr gocv.Mat) (mot.Vector, error)
}

// NewEstimator creates estimator by method name. MethodNone gives nil estimator.
func NewEstimator(method string) (Estimator, error) {
	switch method {
	case MethodFarneback:
		return NewFarneback(), nil
	case MethodLK:
		return NewSparseLK(), nil
	case MethodNone:
		return nil, nil
	default:
		return nil, errors.Errorf("unknown flow method '%s'", method)
	}
}

// Farneback averages dense optical flow over the whole frame
type Farneback struct {
	PyrScale   float64
	Levels     int
	WinSize    int
	Iterations int
	PolyN      int
	PolySigma  float64
	Flags      int
}

// NewFarneback creates dense estimator with parameters of the usual OpenCV sample
func NewFarneback() *Farneback {
	return &Farneback{
		PyrScale:   0.5,
		Levels:     3,
		WinSize:    15,
		Iterations: 3,
		PolyN:      5,
		PolySigma:  1.2,
		Flags:      0,
	}
}

// Estimate implements Estimator
func (f *Farneback) Estimate(prev, curr gocv.Mat) (mot.Vector, error) {
	if err := checkPair(prev, curr); err != nil {
		return mot.Vector{}, err
	}
	flow := gocv.NewMat()
	defer flow.Close()
	gocv.CalcOpticalFlowFarneback(prev, curr, &flow, f.PyrScale, f.Levels, f.WinSize, f.Iterations, f.PolyN, f.PolySigma, f.Flags)
	if flow.Empty() {
		return mot.Vector{}, errors.New("empty flow field")
	}
	mean := flow.Mean()
	return mot.Vector{DX: mean.Val1, DY: mean.Val2}, nil
}

// SparseLK tracks strong corners with pyramidal Lucas-Kanade and takes median displacement.
// Median ignores objects that move on their own as long as they cover a minority of corners.
type SparseLK struct {
	MaxCorners   int
	QualityLevel float64
	MinDistance  float64
}

// NewSparseLK creates sparse estimator: up to 200 corners, quality 0.01, 30 px apart
func NewSparseLK() *SparseLK {
	return &SparseLK{
		MaxCorners:   200,
		QualityLevel: 0.01,
		MinDistance:  30,
	}
}

// Estimate implements Estimator. Returns zero vector when no corner could be tracked.
func (lk *SparseLK) Estimate(prev, curr gocv.Mat) (mot.Vector, error) {
	if err := checkPair(prev, curr); err != nil {
		return mot.Vector{}, err
	}
	prevPts := gocv.NewMat()
	defer prevPts.Close()
	gocv.GoodFeaturesToTrack(prev, &prevPts, lk.MaxCorners, lk.QualityLevel, lk.MinDistance)
	if prevPts.Empty() {
		return mot.Vector{}, nil
	}

	nextPts := gocv.NewMat()
	defer nextPts.Close()
	status := gocv.NewMat()
	defer status.Close()
	trackErr := gocv.NewMat()
	defer trackErr.Close()
	gocv.CalcOpticalFlowPyrLK(prev, curr, prevPts, nextPts, &status, &trackErr)

	dxs := make([]float64, 0, status.Rows())
	dys := make([]float64, 0, status.Rows())
	for i := 0; i < status.Rows(); i++ {
		if status.GetUCharAt(i, 0) != 1 {
			continue
		}
		from := prevPts.GetVecfAt(i, 0)
		to := nextPts.GetVecfAt(i, 0)
		dxs = append(dxs, float64(to[0]-from[0]))
		dys = append(dys, float64(to[1]-from[1]))
	}
	if len(dxs) == 0 {
		return mot.Vector{}, nil
	}
	return mot.Vector{DX: median(dxs), DY: median(dys)}, nil
}

// median sorts values in place
func median(values []float64) float64 {
	sort.Float64s(values)
	return stat.Quantile(0.5, stat.Empirical, values, nil)
}

func checkPair(prev, curr gocv.Mat) error {
	if prev.Empty() || curr.Empty() {
		return errors.New("empty frame")
	}
	if prev.Rows() != curr.Rows() || prev.Cols() != curr.Cols() {
		return errors.Errorf("frame size changed from %dx%d to %dx%d", prev.Cols(), prev.Rows(), curr.Cols(), curr.Rows())
	}
	if prev.Channels() != 1 || curr.Channels() != 1 {
		return errors.New("grayscale frames expected")
	}
	return nil
}
