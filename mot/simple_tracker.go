package mot

import (
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// SimpleTracker is naive centroid-distance Multi-object tracker (MOT).
// B is the blob type implementing Blob[B] interface.
type SimpleTracker[B Blob[B]] struct {
	// Main storage
	Objects map[uuid.UUID]B
	// Threshold distance (most of time in pixels). Default 30.0
	minDistThreshold float64
	// Max no match (max number of frames when object could not be found again). Default is 75
	maxNoMatch int
}

// NewSimpleTrackerDefault creates default instance of SimpleTracker
func NewSimpleTrackerDefault[B Blob[B]]() *SimpleTracker[B] {
	return NewSimpleTracker[B](30.0, 75)
}

// NewSimpleTracker creates new instance of SimpleTracker
func NewSimpleTracker[B Blob[B]](minDistThreshold float64, maxNoMatch int) *SimpleTracker[B] {
	return &SimpleTracker[B]{
		Objects:          make(map[uuid.UUID]B),
		minDistThreshold: minDistThreshold,
		maxNoMatch:       maxNoMatch,
	}
}

// MatchObjects assigns new detections to existing objects (closest first) and registers the rest as new objects.
// On success every blob in newObjects carries its final identity.
func (tracker *SimpleTracker[B]) MatchObjects(newObjects []B) error {
	for _, object := range tracker.Objects {
		object.Deactivate()
		object.PredictNextPosition()
	}

	queue := make(distanceHeap[B], 0, len(newObjects))
	for _, newObject := range newObjects {
		minID := uuid.UUID{}
		minDistance := math.MaxFloat64
		for objectID, object := range tracker.Objects {
			dist := newObject.DistanceTo(object)
			if dist < minDistance {
				minDistance = dist
				minID = objectID
			}
		}
		queue.pushBlob(&distanceBlob[B]{
			underlying: newObject,
			distance:   minDistance,
			id:         minID,
		})
	}

	blobsToRegister := make(map[uuid.UUID]B)
	// Each existing object absorbs at most one detection per frame
	reservedObjects := make(map[uuid.UUID]struct{})
	for queue.Len() > 0 {
		candidate := queue.popBlob()
		blob := candidate.underlying
		if _, ok := reservedObjects[candidate.id]; ok {
			// Closer detection already took this object
			blobsToRegister[blob.GetID()] = blob
			continue
		}
		if candidate.distance >= blob.GetDiagonal()*0.5 && candidate.distance >= tracker.minDistThreshold {
			blobsToRegister[blob.GetID()] = blob
			continue
		}
		existing, ok := tracker.Objects[candidate.id]
		if !ok {
			return errors.Errorf("Matched object %s is missing from storage", candidate.id)
		}
		if err := existing.Update(blob); err != nil {
			return errors.Wrapf(err, "Can't update blob with id %s", candidate.id)
		}
		blob.SetID(candidate.id)
		reservedObjects[candidate.id] = struct{}{}
	}

	for blobID, blob := range blobsToRegister {
		blob.Activate()
		tracker.Objects[blobID] = blob
	}

	// Matched objects leave this loop with no-match counter equal to 1
	for objectID, object := range tracker.Objects {
		object.IncNoMatch()
		if object.GetNoMatchTimes() > tracker.maxNoMatch {
			delete(tracker.Objects, objectID)
		}
	}
	return nil
}
