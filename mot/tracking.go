package mot

import (
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Tracking algorithm names accepted by NewFrameTracker
const (
	AlgorithmSimple    = "simple"
	AlgorithmIoU       = "iou"
	AlgorithmByteTrack = "bytetrack"
)

// TrackerOptions configures FrameTracker
type TrackerOptions struct {
	// Algorithm is one of "simple", "iou", "bytetrack"
	Algorithm string
	// MaxNoMatch is number of frames a track may go unmatched before removal
	MaxNoMatch int
	// MinDistance is distance threshold for "simple", pixels
	MinDistance float64
	// IoUThreshold is minimal match score for "iou" and minimal IoU for "bytetrack"
	IoUThreshold float64
	// HighThresh and LowThresh are ByteTrack confidence thresholds
	HighThresh float64
	LowThresh  float64
	// Matching is ByteTrack assignment method
	Matching MatchingAlgorithm
	// MinHits is number of measurements before a track is reported
	MinHits int
	// DT is Kalman time step
	DT float64
}

// DefaultTrackerOptions returns options used by the monitor unless configured otherwise
func DefaultTrackerOptions() TrackerOptions {
	return TrackerOptions{
		Algorithm:    AlgorithmByteTrack,
		MaxNoMatch:   30,
		MinDistance:  30.0,
		IoUThreshold: 0.3,
		HighThresh:   0.5,
		LowThresh:    0.1,
		Matching:     MatchingAlgorithmHungarian,
		MinHits:      3,
		DT:           1.0,
	}
}

// FrameTracker turns per-frame detections into confirmed tracked objects with stable identities.
// It hides the choice of underlying tracker and blob kind.
type FrameTracker struct {
	options TrackerOptions
	update  func(detections []Detection) ([]TrackedObject[uuid.UUID], error)
	size    func() int
}

// NewFrameTracker creates tracker for given options
func NewFrameTracker(options TrackerOptions) (*FrameTracker, error) {
	if options.DT <= 0 {
		options.DT = 1.0
	}
	if options.MinHits < 1 {
		options.MinHits = 1
	}
	ft := &FrameTracker{options: options}
	switch options.Algorithm {
	case AlgorithmSimple:
		tracker := NewSimpleTracker[*SimpleBlob](options.MinDistance, options.MaxNoMatch)
		ft.update = func(detections []Detection) ([]TrackedObject[uuid.UUID], error) {
			blobs := make([]*SimpleBlob, len(detections))
			for i, detection := range detections {
				blobs[i] = NewSimpleBlobFromDetection(detection, options.DT)
			}
			if err := tracker.MatchObjects(blobs); err != nil {
				return nil, err
			}
			return collectConfirmed(tracker.Objects, options.MinHits), nil
		}
		ft.size = func() int { return len(tracker.Objects) }
	case AlgorithmIoU:
		tracker := NewIoUTracker[*BlobBBox](options.MaxNoMatch, options.IoUThreshold)
		ft.update = func(detections []Detection) ([]TrackedObject[uuid.UUID], error) {
			if err := tracker.MatchObjects(bboxBlobs(detections, options.DT)); err != nil {
				return nil, err
			}
			return collectConfirmed(tracker.Objects, options.MinHits), nil
		}
		ft.size = func() int { return len(tracker.Objects) }
	case AlgorithmByteTrack:
		tracker := NewByteTracker[*BlobBBox](options.MaxNoMatch, options.IoUThreshold, options.HighThresh, options.LowThresh, options.Matching)
		ft.update = func(detections []Detection) ([]TrackedObject[uuid.UUID], error) {
			confidences := make([]float64, len(detections))
			for i, detection := range detections {
				confidences[i] = detection.Confidence
			}
			if err := tracker.MatchObjects(bboxBlobs(detections, options.DT), confidences); err != nil {
				return nil, err
			}
			return collectConfirmed(tracker.Objects, options.MinHits), nil
		}
		ft.size = func() int { return len(tracker.Objects) }
	default:
		return nil, errors.Errorf("unknown tracking algorithm '%s'", options.Algorithm)
	}
	return ft, nil
}

// Update matches detections of the next frame. Returns confirmed tracks matched (or created) in this frame,
// ordered by box position and then by identity.
func (ft *FrameTracker) Update(detections []Detection) ([]TrackedObject[uuid.UUID], error) {
	objects, err := ft.update(detections)
	if err != nil {
		return nil, errors.Wrapf(err, "%s tracker update", ft.options.Algorithm)
	}
	return objects, nil
}

// Len returns number of tracks kept by underlying tracker, confirmed or not
func (ft *FrameTracker) Len() int {
	return ft.size()
}

// Options returns effective options
func (ft *FrameTracker) Options() TrackerOptions {
	return ft.options
}

func bboxBlobs(detections []Detection, dt float64) []*BlobBBox {
	blobs := make([]*BlobBBox, len(detections))
	for i, detection := range detections {
		blobs[i] = NewBlobBBoxFromDetection(detection, dt)
	}
	return blobs
}

func collectConfirmed[B Blob[B]](objects map[uuid.UUID]B, minHits int) []TrackedObject[uuid.UUID] {
	result := make([]TrackedObject[uuid.UUID], 0, len(objects))
	for id, object := range objects {
		if !object.IsActive() || object.GetHits() < minHits {
			continue
		}
		result = append(result, TrackedObject[uuid.UUID]{
			ID:         id,
			BBox:       object.GetBBox(),
			ClassID:    object.GetClassID(),
			Confidence: object.GetConfidence(),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].BBox, result[j].BBox
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result
}
