package mot

import (
	"container/list"
)

const (
	// NoSpeed is reported for an identity seen for the first time
	NoSpeed = -1.0

	// DefaultSpeedThreshold is compensated displacement (pixels per frame) below which an object counts as still
	DefaultSpeedThreshold = 1.0
	// DefaultFramesRequired is stillness streak needed to call an object stationary
	DefaultFramesRequired = 10
	// DefaultMaxAge is number of frames an identity may go unseen before its history is dropped.
	// Matches the usual tracker max age.
	DefaultMaxAge = 30
)

// trackHistory is what the classifier remembers about a single identity
type trackHistory[K comparable] struct {
	id K
	// Center observed on the previous sighting
	position Point
	// Consecutive frames with compensated speed under threshold
	stationaryCount int
	// Frame number of the latest sighting
	lastSeen int
}

// Classification is classifier verdict for a single object on a single frame
type Classification[K comparable] struct {
	TrackedObject[K]
	// Speed is camera-compensated displacement since previous sighting, pixels per frame. NoSpeed on first sighting.
	Speed float64
	// Stationary is true once stillness streak reached the required number of frames
	Stationary bool
	// Stopped is true only on the frame the object became stationary
	Stopped bool
}

// StationaryClassifier decides whether tracked objects stand still, after removing camera ego-motion.
// It keeps a small history per identity. Histories of identities not seen for more than
// maxAge frames are evicted by NextFrame, least recently seen first.
//
// The classifier is not safe for concurrent use: one instance belongs to one camera session.
type StationaryClassifier[K comparable] struct {
	speedThreshold float64
	framesRequired int
	maxAge         int

	frame   int
	history map[K]*list.Element
	// Front is least recently seen
	recency *list.List
}

// NewDefaultStationaryClassifier creates classifier with threshold 1.0 px/frame, 10 frames streak and max age of 30 frames
func NewDefaultStationaryClassifier[K comparable]() *StationaryClassifier[K] {
	return NewStationaryClassifier[K](DefaultSpeedThreshold, DefaultFramesRequired, DefaultMaxAge)
}

// NewStationaryClassifier creates classifier.
// maxAge <= 0 disables eviction: history then grows with every new identity.
func NewStationaryClassifier[K comparable](speedThreshold float64, framesRequired, maxAge int) *StationaryClassifier[K] {
	return &StationaryClassifier[K]{
		speedThreshold: speedThreshold,
		framesRequired: framesRequired,
		maxAge:         maxAge,
		history:        make(map[K]*list.Element),
		recency:        list.New(),
	}
}

// Classify registers observation of identity at center on the current frame and returns
// its compensated speed and whether it is stationary.
// compensation is camera displacement between previous and current frame.
func (classifier *StationaryClassifier[K]) Classify(id K, center Point, compensation Vector) (float64, bool) {
	speed, stationary, _ := classifier.observe(id, center, compensation)
	return speed, stationary
}

func (classifier *StationaryClassifier[K]) observe(id K, center Point, compensation Vector) (speed float64, stationary bool, stopped bool) {
	element, ok := classifier.history[id]
	if !ok {
		entry := &trackHistory[K]{
			id:       id,
			position: center,
			lastSeen: classifier.frame,
		}
		classifier.history[id] = classifier.recency.PushBack(entry)
		return NoSpeed, false, false
	}

	entry := element.Value.(*trackHistory[K])
	wasStationary := entry.stationaryCount >= classifier.framesRequired
	speed = center.Sub(entry.position).Sub(compensation).Norm()
	if speed < classifier.speedThreshold {
		entry.stationaryCount++
	} else {
		entry.stationaryCount = 0
	}
	entry.position = center
	entry.lastSeen = classifier.frame
	classifier.recency.MoveToBack(element)

	stationary = entry.stationaryCount >= classifier.framesRequired
	return speed, stationary, stationary && !wasStationary
}

// ClassifyFrame classifies every object of a frame (in the given order) and then advances to the next frame.
func (classifier *StationaryClassifier[K]) ClassifyFrame(objects []TrackedObject[K], compensation Vector) []Classification[K] {
	result := make([]Classification[K], len(objects))
	for i, object := range objects {
		speed, stationary, stopped := classifier.observe(object.ID, object.Center(), compensation)
		result[i] = Classification[K]{
			TrackedObject: object,
			Speed:         speed,
			Stationary:    stationary,
			Stopped:       stopped,
		}
	}
	classifier.NextFrame()
	return result
}

// NextFrame advances frame counter and evicts identities unseen for more than maxAge frames.
// Returns number of evicted identities.
func (classifier *StationaryClassifier[K]) NextFrame() int {
	classifier.frame++
	if classifier.maxAge <= 0 {
		return 0
	}
	evicted := 0
	for front := classifier.recency.Front(); front != nil; front = classifier.recency.Front() {
		entry := front.Value.(*trackHistory[K])
		// Completed frames without a sighting
		missed := classifier.frame - entry.lastSeen - 1
		if missed <= classifier.maxAge {
			break
		}
		classifier.recency.Remove(front)
		delete(classifier.history, entry.id)
		evicted++
	}
	return evicted
}

// Frame returns current frame number (number of NextFrame calls so far)
func (classifier *StationaryClassifier[K]) Frame() int {
	return classifier.frame
}

// Streak returns stillness streak of identity and whether the identity is known
func (classifier *StationaryClassifier[K]) Streak(id K) (int, bool) {
	element, ok := classifier.history[id]
	if !ok {
		return 0, false
	}
	return element.Value.(*trackHistory[K]).stationaryCount, true
}

// Forget drops history of identity
func (classifier *StationaryClassifier[K]) Forget(id K) {
	element, ok := classifier.history[id]
	if !ok {
		return
	}
	classifier.recency.Remove(element)
	delete(classifier.history, id)
}

// Len returns number of remembered identities
func (classifier *StationaryClassifier[K]) Len() int {
	return len(classifier.history)
}

// Reset drops all histories and restarts frame numbering
func (classifier *StationaryClassifier[K]) Reset() {
	classifier.frame = 0
	classifier.history = make(map[K]*list.Element)
	classifier.recency.Init()
}
