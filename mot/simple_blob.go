package mot

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	// Kalman filter noise model shared by all blob kinds
	kalmanControlX     = 1.0
	kalmanControlY     = 1.0
	kalmanStdDevAccel  = 2.0
	kalmanStdDevMeasXY = 0.1
	kalmanStdDevMeasWH = 0.1

	defaultMaxTrackLen = 150
)

// SimpleBlob is a tracked object with 2D Kalman filter smoothing its center position.
// It implements Blob[*SimpleBlob] interface.
type SimpleBlob struct {
	id                    uuid.UUID
	classID               int
	confidence            float64
	currentBBox           Rectangle
	currentCenter         Point
	predictedNextPosition Point
	track                 []Point
	maxTrackLen           int
	active                bool
	hits                  int
	noMatchTimes          int
	diagonal              float64
	tracker               *kalman_filter.Kalman2D
}

func newSimpleBlob(center Point, bbox Rectangle, dt float64) *SimpleBlob {
	kf := kalman_filter.NewKalman2D(
		dt, kalmanControlX, kalmanControlY,
		kalmanStdDevAccel, kalmanStdDevMeasXY, kalmanStdDevMeasXY,
		kalman_filter.WithState2D(center.X, center.Y),
	)
	blob := SimpleBlob{
		id:            uuid.New(),
		classID:       -1,
		confidence:    1.0,
		currentBBox:   bbox,
		currentCenter: center,
		track:         make([]Point, 0, defaultMaxTrackLen),
		maxTrackLen:   defaultMaxTrackLen,
		hits:          1,
		diagonal:      bbox.Diagonal(),
		tracker:       kf,
	}
	blob.track = append(blob.track, center)
	return &blob
}

// NewSimpleBlobWithCenterTime creates blob with explicit center (which may differ from bbox midpoint) and time step
func NewSimpleBlobWithCenterTime(currentCenter Point, currentBbox Rectangle, dt float64) *SimpleBlob {
	return newSimpleBlob(currentCenter, currentBbox, dt)
}

// NewSimpleBlobWithTime creates blob centered on bbox midpoint with given time step
func NewSimpleBlobWithTime(currentBbox Rectangle, dt float64) *SimpleBlob {
	return newSimpleBlob(currentBbox.Center(), currentBbox, dt)
}

// NewSimpleBlob creates blob with time step 1.0
func NewSimpleBlob(currentBbox Rectangle) *SimpleBlob {
	return NewSimpleBlobWithTime(currentBbox, 1.0)
}

// NewSimpleBlobFromDetection creates blob carrying detection's class and confidence
func NewSimpleBlobFromDetection(detection Detection, dt float64) *SimpleBlob {
	blob := NewSimpleBlobWithTime(detection.BBox, dt)
	blob.classID = detection.ClassID
	blob.confidence = detection.Confidence
	return blob
}

// Activate activates blob
func (blob *SimpleBlob) Activate() {
	blob.active = true
}

// Deactivate deactivates blob
func (blob *SimpleBlob) Deactivate() {
	blob.active = false
}

// IsActive tells whether blob was matched in the latest frame
func (blob *SimpleBlob) IsActive() bool {
	return blob.active
}

// GetHits returns number of absorbed measurements
func (blob *SimpleBlob) GetHits() int {
	return blob.hits
}

// GetID returns blob's identifier
func (blob *SimpleBlob) GetID() uuid.UUID {
	return blob.id
}

// SetID sets blob's identifier
func (blob *SimpleBlob) SetID(newID uuid.UUID) {
	blob.id = newID
}

// GetClassID returns class of the last matched detection
func (blob *SimpleBlob) GetClassID() int {
	return blob.classID
}

// GetConfidence returns confidence of the last matched detection
func (blob *SimpleBlob) GetConfidence() float64 {
	return blob.confidence
}

// GetCenter returns blob's current (smoothed) center
func (blob *SimpleBlob) GetCenter() Point {
	return blob.currentCenter
}

// GetBBox returns blob's current bounding box
func (blob *SimpleBlob) GetBBox() Rectangle {
	return blob.currentBBox
}

// GetPredictedBBox returns current bounding box moved onto the predicted center
func (blob *SimpleBlob) GetPredictedBBox() Rectangle {
	return Rectangle{
		X:      blob.predictedNextPosition.X - blob.currentBBox.Width/2.0,
		Y:      blob.predictedNextPosition.Y - blob.currentBBox.Height/2.0,
		Width:  blob.currentBBox.Width,
		Height: blob.currentBBox.Height,
	}
}

// GetDiagonal returns blob's diagonal
func (blob *SimpleBlob) GetDiagonal() float64 {
	return blob.diagonal
}

// GetTrack returns blob's track. This is not a copy.
func (blob *SimpleBlob) GetTrack() []Point {
	return blob.track
}

// GetMaxTrackLen returns blob's max track length
func (blob *SimpleBlob) GetMaxTrackLen() int {
	return blob.maxTrackLen
}

// SetMaxTrackLen sets blob's max track length
func (blob *SimpleBlob) SetMaxTrackLen(newMaxTrackLen int) {
	blob.maxTrackLen = newMaxTrackLen
}

// GetNoMatchTimes returns number of frames since the blob was matched
func (blob *SimpleBlob) GetNoMatchTimes() int {
	return blob.noMatchTimes
}

// IncNoMatch increases blob's no match times
func (blob *SimpleBlob) IncNoMatch() {
	blob.noMatchTimes++
}

// ResetNoMatch resets blob's no match times
func (blob *SimpleBlob) ResetNoMatch() {
	blob.noMatchTimes = 0
}

// DistanceTo returns center to center distance
func (blob *SimpleBlob) DistanceTo(otherBlob *SimpleBlob) float64 {
	return euclideanDistance(blob.currentCenter, otherBlob.currentCenter)
}

// DistanceToPredicted returns distance between predicted centers
func (blob *SimpleBlob) DistanceToPredicted(otherBlob *SimpleBlob) float64 {
	return euclideanDistance(blob.predictedNextPosition, otherBlob.predictedNextPosition)
}

// PredictNextPosition runs Kalman prediction step only
func (blob *SimpleBlob) PredictNextPosition() {
	blob.tracker.Predict()
	stateX, stateY := blob.tracker.GetState()
	blob.predictedNextPosition.X = stateX
	blob.predictedNextPosition.Y = stateY
}

// Update absorbs new measurement: Kalman correction step, bbox shifted onto the smoothed center
func (blob *SimpleBlob) Update(newBlob *SimpleBlob) error {
	blob.currentCenter = newBlob.currentCenter
	blob.currentBBox = newBlob.currentBBox

	err := blob.tracker.Update(blob.currentCenter.X, blob.currentCenter.Y)
	if err != nil {
		return errors.Wrap(err, "Can't update object tracker")
	}
	stateX, stateY := blob.tracker.GetState()
	blob.currentBBox.X += stateX - blob.currentCenter.X
	blob.currentBBox.Y += stateY - blob.currentCenter.Y
	blob.currentCenter.X = stateX
	blob.currentCenter.Y = stateY

	blob.diagonal = newBlob.diagonal
	blob.classID = newBlob.classID
	blob.confidence = newBlob.confidence
	blob.active = true
	blob.hits++
	blob.noMatchTimes = 0

	blob.track = append(blob.track, blob.currentCenter)
	if len(blob.track) > blob.maxTrackLen {
		blob.track = blob.track[1:]
	}
	return nil
}
