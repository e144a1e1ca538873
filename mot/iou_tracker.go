package mot

import (
	"container/heap"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// IoUTracker is Multi-object tracker (MOT) matching by IoU against Kalman-predicted boxes.
// When boxes stop overlapping it falls back to distance between predicted and detected centers.
type IoUTracker[B Blob[B]] struct {
	// Max no match (max number of frames when object could not be found again)
	maxNoMatch int
	// Minimal combined IoU/distance score to accept a match
	iouThreshold float64
	// Storage for tracked objects
	Objects map[uuid.UUID]B
}

// NewDefaultIoUTracker creates a default instance of IoUTracker.
// Default values: maxNoMatch=75, iouThreshold=0.0
func NewDefaultIoUTracker[B Blob[B]]() *IoUTracker[B] {
	return NewIoUTracker[B](75, 0.0)
}

// NewIoUTracker creates a new instance of IoUTracker with specified parameters.
func NewIoUTracker[B Blob[B]](maxNoMatch int, iouThreshold float64) *IoUTracker[B] {
	return &IoUTracker[B]{
		maxNoMatch:   maxNoMatch,
		iouThreshold: iouThreshold,
		Objects:      make(map[uuid.UUID]B),
	}
}

// scoredBlob is a detection with its best scoring existing object
type scoredBlob[B Blob[B]] struct {
	score float64
	bestID uuid.UUID
	blob  B
}

// scoreHeap is a max-heap by score
type scoreHeap[B Blob[B]] []*scoredBlob[B]

func (h scoreHeap[B]) Len() int           { return len(h) }
func (h scoreHeap[B]) Less(i, j int) bool { return h[i].score > h[j].score }
func (h scoreHeap[B]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *scoreHeap[B]) Push(x any) {
	*h = append(*h, x.(*scoredBlob[B]))
}

func (h *scoreHeap[B]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// matchScore mixes IoU with a distance similarity in (0, 1]. Pure distance matches are
// down-weighted so any real overlap wins over proximity.
func matchScore(detected, predicted Rectangle) float64 {
	iouValue := IoU(detected, predicted)
	distance := euclideanDistance(predicted.Center(), detected.Center())
	distanceScore := 1.0 / (1.0 + distance*0.01)
	if iouValue > 0.05 {
		return iouValue*0.8 + distanceScore*0.2
	}
	return distanceScore * 0.5
}

// MatchObjects matches new detections to existing tracked objects, best score first.
// On success every blob in newObjects carries its final identity.
func (tracker *IoUTracker[B]) MatchObjects(newObjects []B) error {
	for _, object := range tracker.Objects {
		object.Deactivate()
	}

	queue := &scoreHeap[B]{}
	for _, newObject := range newObjects {
		var bestID uuid.UUID
		bestScore := 0.0
		for objectID, object := range tracker.Objects {
			score := matchScore(newObject.GetBBox(), object.GetPredictedBBox())
			if score > bestScore {
				bestScore = score
				bestID = objectID
			}
		}
		heap.Push(queue, &scoredBlob[B]{
			score:  bestScore,
			bestID: bestID,
			blob:   newObject,
		})
	}

	blobsToRegister := make(map[uuid.UUID]B)
	reservedObjects := make(map[uuid.UUID]bool)
	for queue.Len() > 0 {
		item := heap.Pop(queue).(*scoredBlob[B])
		blob := item.blob
		if reservedObjects[item.bestID] || item.score <= tracker.iouThreshold {
			blobsToRegister[blob.GetID()] = blob
			continue
		}
		existing, ok := tracker.Objects[item.bestID]
		if !ok {
			continue
		}
		existing.PredictNextPosition()
		if err := existing.Update(blob); err != nil {
			return errors.Wrapf(err, "Can't update blob with id %s", item.bestID)
		}
		existing.ResetNoMatch()
		blob.SetID(item.bestID)
		reservedObjects[item.bestID] = true
	}

	for id, blob := range blobsToRegister {
		blob.Activate()
		tracker.Objects[id] = blob
	}

	// Unmatched objects coast on prediction
	for id, object := range tracker.Objects {
		if reservedObjects[id] {
			continue
		}
		object.PredictNextPosition()
		object.IncNoMatch()
		if object.GetNoMatchTimes() > tracker.maxNoMatch {
			delete(tracker.Objects, id)
		}
	}
	return nil
}
