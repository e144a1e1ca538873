package mot

import "github.com/google/uuid"

// Blob is the interface for objects kept by the trackers.
// Self is the concrete type implementing this interface (e.g., *BlobBBox), which keeps
// Update and distance calls type-safe.
type Blob[Self any] interface {
	// Identity
	GetID() uuid.UUID
	SetID(newID uuid.UUID)

	// Detection attributes of the last matched measurement
	GetClassID() int
	GetConfidence() float64

	// Geometry
	GetCenter() Point
	GetBBox() Rectangle
	GetPredictedBBox() Rectangle
	GetDiagonal() float64

	// Track history
	GetTrack() []Point
	GetMaxTrackLen() int
	SetMaxTrackLen(newMaxTrackLen int)

	// Lifecycle. A blob is active when it was matched (or created) in the latest frame.
	Activate()
	Deactivate()
	IsActive() bool
	// GetHits returns number of measurements the blob has absorbed, including the first one
	GetHits() int

	// Match tracking
	GetNoMatchTimes() int
	IncNoMatch()
	ResetNoMatch()

	// Kalman operations
	PredictNextPosition()
	Update(measurement Self) error

	// Distance calculations
	DistanceTo(other Self) float64
	DistanceToPredicted(other Self) float64
}
