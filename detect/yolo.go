package detect

import (
	"image"
	"os"

	"github.com/carevision/carevision-go/mot"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// DefaultVehicleClasses are vehicle class indices of the trained monitor model
var DefaultVehicleClasses = []int{3, 4, 5, 8, 9}

// YOLOOptions configures YOLO detector
type YOLOOptions struct {
	// InputSize is side of square network input
	InputSize int
	// ConfThreshold is minimal class score
	ConfThreshold float32
	// NMSThreshold is IoU above which overlapping boxes are suppressed
	NMSThreshold float32
	// Classes is allow-list of class indices. Empty list allows every class.
	Classes []int
}

// DefaultYOLOOptions returns 640 px input, 0.5 confidence, 0.4 NMS and vehicle classes
func DefaultYOLOOptions() YOLOOptions {
	return YOLOOptions{
		InputSize:     640,
		ConfThreshold: 0.5,
		NMSThreshold:  0.4,
		Classes:       DefaultVehicleClasses,
	}
}

// YOLO runs anchor-free YOLO (v8 and later) ONNX export through OpenCV DNN.
// Expected output shape is [1, 4+C, N] with rows cx, cy, w, h followed by C class scores.
type YOLO struct {
	net     gocv.Net
	options YOLOOptions
	allowed map[int]struct{}
}

// NewYOLO loads ONNX model from modelPath
func NewYOLO(modelPath string, options YOLOOptions) (*YOLO, error) {
	if options.InputSize <= 0 {
		return nil, errors.Errorf("bad input size: %d", options.InputSize)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, errors.Wrap(err, "Can't find model")
	}
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, errors.Errorf("Can't read network from '%s'", modelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		logrus.WithError(err).Warn("Can't set preferable backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		logrus.WithError(err).Warn("Can't set preferable target")
	}
	return &YOLO{
		net:     net,
		options: options,
		allowed: classSet(options.Classes),
	}, nil
}

// Detect implements Detector
func (y *YOLO) Detect(frame gocv.Mat) ([]mot.Detection, error) {
	if frame.Empty() {
		return nil, errors.New("empty frame")
	}
	// Pad to square at top-left so that a single scale maps boxes back
	side := maxInt(frame.Rows(), frame.Cols())
	square := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(114, 114, 114, 0), side, side, gocv.MatTypeCV8UC3)
	defer square.Close()
	bgr := gocv.NewMat()
	defer bgr.Close()
	if err := toBGR(frame, &bgr); err != nil {
		return nil, err
	}
	roi := square.Region(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	bgr.CopyTo(&roi)
	roi.Close()

	blob := gocv.BlobFromImage(square, 1.0/255.0, image.Pt(y.options.InputSize, y.options.InputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()
	y.net.SetInput(blob, "")
	output := y.net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 || dims[1] < 5 {
		return nil, errors.Errorf("unexpected output shape %v", dims)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "Can't read network output")
	}
	scale := float64(side) / float64(y.options.InputSize)
	candidates := decodeOutput(data, dims[1], dims[2], scale, y.options.ConfThreshold, y.allowed)
	return suppress(candidates, y.options.ConfThreshold, y.options.NMSThreshold), nil
}

// Close releases network
func (y *YOLO) Close() error {
	return y.net.Close()
}

// candidate is a decoded box before non-maximum suppression
type candidate struct {
	box     image.Rectangle
	score   float32
	classID int
}

// decodeOutput reads [rows x n] row-major tensor: 4 box rows then class score rows.
// Boxes are scaled back to source frame coordinates.
func decodeOutput(data []float32, rows, n int, scale float64, confThreshold float32, allowed map[int]struct{}) []candidate {
	if len(data) < rows*n {
		return nil
	}
	candidates := make([]candidate, 0, 32)
	for i := 0; i < n; i++ {
		bestClass := -1
		bestScore := float32(0)
		for c := 4; c < rows; c++ {
			score := data[c*n+i]
			if score > bestScore {
				bestScore = score
				bestClass = c - 4
			}
		}
		if bestClass < 0 || bestScore < confThreshold {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[bestClass]; !ok {
				continue
			}
		}
		cx := float64(data[i]) * scale
		cy := float64(data[n+i]) * scale
		w := float64(data[2*n+i]) * scale
		h := float64(data[3*n+i]) * scale
		rect := mot.NewRect(cx-w/2.0, cy-h/2.0, w, h)
		candidates = append(candidates, candidate{
			box:     rect.Image(),
			score:   bestScore,
			classID: bestClass,
		})
	}
	return candidates
}

func suppress(candidates []candidate, confThreshold, nmsThreshold float32) []mot.Detection {
	if len(candidates) == 0 {
		return []mot.Detection{}
	}
	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		boxes[i] = c.box
		scores[i] = c.score
	}
	indices := gocv.NMSBoxes(boxes, scores, confThreshold, nmsThreshold)
	detections := make([]mot.Detection, 0, len(indices))
	for _, idx := range indices {
		c := candidates[idx]
		detections = append(detections, mot.Detection{
			BBox:       mot.NewRectFrom(c.box),
			Confidence: float64(c.score),
			ClassID:    c.classID,
		})
	}
	return detections
}

func classSet(classes []int) map[int]struct{} {
	set := make(map[int]struct{}, len(classes))
	for _, c := range classes {
		set[c] = struct{}{}
	}
	return set
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
