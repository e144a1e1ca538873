package mot

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// BlobBBox is a tracked object with 8-D Kalman filter over the whole bounding box.
// State vector: [cx, cy, w, h, vx, vy, vw, vh].
// It implements Blob[*BlobBBox] interface.
type BlobBBox struct {
	id            uuid.UUID
	classID       int
	confidence    float64
	currentBBox   Rectangle
	predictedBBox Rectangle
	track         []Point
	maxTrackLen   int
	active        bool
	hits          int
	noMatchTimes  int
	diagonal      float64
	tracker       *kalman_filter.KalmanBBox
}

// NewBlobBBoxWithTime creates a new BlobBBox with specified time step.
func NewBlobBBoxWithTime(currentBbox Rectangle, dt float64) *BlobBBox {
	center := currentBbox.Center()
	// Size is not expected to drift on its own
	uW, uH := 0.0, 0.0
	kf := kalman_filter.NewKalmanBBox(
		dt, kalmanControlX, kalmanControlY, uW, uH,
		kalmanStdDevAccel, kalmanStdDevMeasXY, kalmanStdDevMeasXY, kalmanStdDevMeasWH, kalmanStdDevMeasWH,
		kalman_filter.WithStateBBox(center.X, center.Y, currentBbox.Width, currentBbox.Height),
	)
	blob := BlobBBox{
		id:            uuid.New(),
		classID:       -1,
		confidence:    1.0,
		currentBBox:   currentBbox,
		predictedBBox: currentBbox,
		track:         make([]Point, 0, defaultMaxTrackLen),
		maxTrackLen:   defaultMaxTrackLen,
		hits:          1,
		diagonal:      currentBbox.Diagonal(),
		tracker:       kf,
	}
	blob.track = append(blob.track, center)
	return &blob
}

// NewBlobBBox creates a new BlobBBox with default time step of 1.0.
func NewBlobBBox(currentBbox Rectangle) *BlobBBox {
	return NewBlobBBoxWithTime(currentBbox, 1.0)
}

// NewBlobBBoxFromDetection creates a new BlobBBox carrying detection's class and confidence.
func NewBlobBBoxFromDetection(detection Detection, dt float64) *BlobBBox {
	blob := NewBlobBBoxWithTime(detection.BBox, dt)
	blob.classID = detection.ClassID
	blob.confidence = detection.Confidence
	return blob
}

// Activate activates blob
func (blob *BlobBBox) Activate() {
	blob.active = true
}

// Deactivate deactivates blob
func (blob *BlobBBox) Deactivate() {
	blob.active = false
}

// IsActive tells whether blob was matched in the latest frame
func (blob *BlobBBox) IsActive() bool {
	return blob.active
}

// GetHits returns number of absorbed measurements
func (blob *BlobBBox) GetHits() int {
	return blob.hits
}

// GetID returns blob's identifier
func (blob *BlobBBox) GetID() uuid.UUID {
	return blob.id
}

// SetID sets blob's identifier
func (blob *BlobBBox) SetID(newID uuid.UUID) {
	blob.id = newID
}

// GetClassID returns class of the last matched detection
func (blob *BlobBBox) GetClassID() int {
	return blob.classID
}

// GetConfidence returns confidence of the last matched detection
func (blob *BlobBBox) GetConfidence() float64 {
	return blob.confidence
}

// GetCenter returns blob's current center
func (blob *BlobBBox) GetCenter() Point {
	return blob.currentBBox.Center()
}

// GetBBox returns blob's current bounding box
func (blob *BlobBBox) GetBBox() Rectangle {
	return blob.currentBBox
}

// GetPredictedBBox returns predicted bounding box from Kalman filter
func (blob *BlobBBox) GetPredictedBBox() Rectangle {
	return blob.predictedBBox
}

// GetDiagonal returns blob's diagonal
func (blob *BlobBBox) GetDiagonal() float64 {
	return blob.diagonal
}

// GetTrack returns blob's track. This is not a copy.
func (blob *BlobBBox) GetTrack() []Point {
	return blob.track
}

// GetMaxTrackLen returns blob's max track length
func (blob *BlobBBox) GetMaxTrackLen() int {
	return blob.maxTrackLen
}

// SetMaxTrackLen sets blob's max track length
func (blob *BlobBBox) SetMaxTrackLen(newMaxTrackLen int) {
	blob.maxTrackLen = newMaxTrackLen
}

// GetNoMatchTimes returns number of frames since the blob was matched
func (blob *BlobBBox) GetNoMatchTimes() int {
	return blob.noMatchTimes
}

// IncNoMatch increases blob's no match times
func (blob *BlobBBox) IncNoMatch() {
	blob.noMatchTimes++
}

// ResetNoMatch resets blob's no match times
func (blob *BlobBBox) ResetNoMatch() {
	blob.noMatchTimes = 0
}

// DistanceTo returns center to center distance
func (blob *BlobBBox) DistanceTo(otherBlob *BlobBBox) float64 {
	return euclideanDistance(blob.GetCenter(), otherBlob.GetCenter())
}

// DistanceToPredicted returns distance between predicted centers
func (blob *BlobBBox) DistanceToPredicted(otherBlob *BlobBBox) float64 {
	return euclideanDistance(blob.predictedBBox.Center(), otherBlob.predictedBBox.Center())
}

// PredictNextPosition runs Kalman prediction step
func (blob *BlobBBox) PredictNextPosition() {
	blob.tracker.Predict()
	cx, cy, w, h := blob.tracker.GetState()
	blob.predictedBBox = Rectangle{
		X:      cx - w/2.0,
		Y:      cy - h/2.0,
		Width:  w,
		Height: h,
	}
}

// Update absorbs new measurement (full bbox) and replaces current bbox with smoothed state
func (blob *BlobBBox) Update(newBlob *BlobBBox) error {
	measured := newBlob.currentBBox
	measuredCenter := measured.Center()
	err := blob.tracker.Update(measuredCenter.X, measuredCenter.Y, measured.Width, measured.Height)
	if err != nil {
		return errors.Wrap(err, "Can't update object tracker")
	}

	cx, cy, w, h := blob.tracker.GetState()
	blob.currentBBox = Rectangle{
		X:      cx - w/2.0,
		Y:      cy - h/2.0,
		Width:  w,
		Height: h,
	}
	blob.diagonal = blob.currentBBox.Diagonal()
	blob.classID = newBlob.classID
	blob.confidence = newBlob.confidence
	blob.active = true
	blob.hits++
	blob.noMatchTimes = 0

	blob.track = append(blob.track, Point{X: cx, Y: cy})
	if len(blob.track) > blob.maxTrackLen {
		blob.track = blob.track[1:]
	}
	return nil
}

// GetVelocity returns current velocity estimates (vx, vy, vw, vh) from Kalman filter
func (blob *BlobBBox) GetVelocity() (float64, float64, float64, float64) {
	return blob.tracker.GetVelocity()
}

// GetMahalanobisDistance returns the Mahalanobis distance to other blob's bbox
func (blob *BlobBBox) GetMahalanobisDistance(otherBlob *BlobBBox) (float64, error) {
	other := otherBlob.currentBBox
	center := other.Center()
	return blob.tracker.MahalanobisDistance(center.X, center.Y, other.Width, other.Height)
}
