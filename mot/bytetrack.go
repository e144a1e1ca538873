package mot

import (
	"github.com/arthurkushman/go-hungarian"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// MatchingAlgorithm selects how detections are assigned to tracks
type MatchingAlgorithm uint16

const (
	// MatchingAlgorithmHungarian uses the Hungarian algorithm (Kuhn-Munkres) for optimal assignment
	MatchingAlgorithmHungarian MatchingAlgorithm = iota
	// MatchingAlgorithmGreedy picks best IoU per track in order. Faster, possibly suboptimal
	MatchingAlgorithmGreedy
)

// ByteTracker is implementation of ByteTrack Multi-object tracker (MOT): high confidence
// detections are associated first, low confidence ones are only used to keep existing tracks alive.
// B is the blob type implementing Blob[B] interface.
type ByteTracker[B Blob[B]] struct {
	// Number of frames an object can be missing before it is removed
	maxDisappeared int
	// Minimal IoU between predicted track box and detection
	minIoU float64
	// High detection confidence threshold
	highThresh float64
	// Low detection confidence threshold
	lowThresh float64
	// Algorithm to use for matching
	algorithm MatchingAlgorithm
	// Main storage
	Objects map[uuid.UUID]B
}

// NewByteTracker creates a new instance of ByteTracker with specified parameters.
func NewByteTracker[B Blob[B]](maxDisappeared int, minIoU, highThresh, lowThresh float64, algorithm MatchingAlgorithm) *ByteTracker[B] {
	return &ByteTracker[B]{
		maxDisappeared: maxDisappeared,
		minIoU:         minIoU,
		highThresh:     highThresh,
		lowThresh:      lowThresh,
		algorithm:      algorithm,
		Objects:        make(map[uuid.UUID]B),
	}
}

// bboxPair is track ID with its predicted bounding box
type bboxPair struct {
	ID   uuid.UUID
	BBox Rectangle
}

// associationStage is the state shared by both association passes of a single frame
type associationStage[B Blob[B]] struct {
	detections        []B
	matchedTracks     map[uuid.UUID]struct{}
	matchedDetections map[int]struct{}
}

// MatchObjects matches detections of the current frame with existing tracks.
// confidences[i] is the detector score of detections[i].
// Matched detections take over the identity of their track.
func (bt *ByteTracker[B]) MatchObjects(detections []B, confidences []float64) error {
	if len(detections) != len(confidences) {
		return errors.Errorf("detections and confidences must have the same length: %d detections, %d confidences",
			len(detections), len(confidences))
	}

	for _, track := range bt.Objects {
		track.Deactivate()
		track.PredictNextPosition()
	}

	activeTracks := make([]bboxPair, 0, len(bt.Objects))
	for id, track := range bt.Objects {
		if track.GetNoMatchTimes() < bt.maxDisappeared {
			activeTracks = append(activeTracks, bboxPair{ID: id, BBox: track.GetPredictedBBox()})
		}
	}

	stage := associationStage[B]{
		detections:        detections,
		matchedTracks:     make(map[uuid.UUID]struct{}),
		matchedDetections: make(map[int]struct{}),
	}

	// 1. High confidence detections against all active tracks
	highIndices := make([]int, 0, len(detections))
	for i, conf := range confidences {
		if conf >= bt.highThresh {
			highIndices = append(highIndices, i)
		}
	}
	if err := bt.associate(&stage, activeTracks, highIndices); err != nil {
		return errors.Wrap(err, "high confidence association")
	}

	// 2. Low confidence detections against tracks left over from the first pass
	leftTracks := make([]bboxPair, 0, len(activeTracks))
	for _, pair := range activeTracks {
		if _, found := stage.matchedTracks[pair.ID]; !found {
			leftTracks = append(leftTracks, pair)
		}
	}
	lowIndices := make([]int, 0, len(detections))
	for i, conf := range confidences {
		if _, found := stage.matchedDetections[i]; found {
			continue
		}
		if conf < bt.highThresh && conf >= bt.lowThresh {
			lowIndices = append(lowIndices, i)
		}
	}
	if err := bt.associate(&stage, leftTracks, lowIndices); err != nil {
		return errors.Wrap(err, "low confidence association")
	}

	// 3. Unmatched high confidence detections start new tracks
	for _, detIdx := range highIndices {
		if _, found := stage.matchedDetections[detIdx]; !found {
			newBlob := detections[detIdx]
			newBlob.Activate()
			bt.Objects[newBlob.GetID()] = newBlob
		}
	}

	// 4. Age unmatched tracks and drop those gone for too long
	for id, track := range bt.Objects {
		if _, found := stage.matchedTracks[id]; found {
			continue
		}
		track.IncNoMatch()
		if track.GetNoMatchTimes() >= bt.maxDisappeared {
			delete(bt.Objects, id)
		}
	}
	return nil
}

// associate runs one association pass between given tracks and detection indices
func (bt *ByteTracker[B]) associate(stage *associationStage[B], tracks []bboxPair, detectionIndices []int) error {
	if len(tracks) == 0 || len(detectionIndices) == 0 {
		return nil
	}
	iouMatrix := bt.createIoUMatrix(tracks, detectionIndices, stage.detections)
	matches := bt.performMatching(iouMatrix, tracks, detectionIndices)
	return bt.processMatches(stage, matches, tracks, detectionIndices, iouMatrix)
}

// createIoUMatrix builds IoU matrix: rows are tracks, columns are detections picked by detectionIndices.
func (bt *ByteTracker[B]) createIoUMatrix(trackBBoxes []bboxPair, detectionIndices []int, allDetections []B) [][]float64 {
	iouMatrix := make([][]float64, len(trackBBoxes))
	for i, trkBox := range trackBBoxes {
		row := make([]float64, len(detectionIndices))
		for j, detIdx := range detectionIndices {
			row[j] = IoU(trkBox.BBox, allDetections[detIdx].GetBBox())
		}
		iouMatrix[i] = row
	}
	return iouMatrix
}

// performMatching returns (trackIndex, detectionIndex) pairs, indices are positions in
// trackBBoxes and detectionIndices respectively.
func (bt *ByteTracker[B]) performMatching(iouMatrix [][]float64, trackBBoxes []bboxPair, detectionIndices []int) [][2]int {
	if bt.algorithm != MatchingAlgorithmHungarian {
		return bt.performGreedyMatching(iouMatrix, trackBBoxes, detectionIndices)
	}
	numTracks := len(trackBBoxes)
	numDetections := len(detectionIndices)
	if numTracks == 0 || numDetections == 0 {
		return [][2]int{}
	}

	// Hungarian solver needs square matrix; padding cells have IoU 0
	squareMatrix := iouMatrix
	if numTracks != numDetections {
		size := maxInt(numTracks, numDetections)
		squareMatrix = make([][]float64, size)
		for i := range squareMatrix {
			squareMatrix[i] = make([]float64, size)
			if i < numTracks {
				copy(squareMatrix[i], iouMatrix[i])
			}
		}
	}

	assignments := hungarian.SolveMax(squareMatrix)
	matches := make([][2]int, 0, numTracks)
	for trackIndex, row := range assignments {
		for detectionIndex := range row {
			if trackIndex < numTracks && detectionIndex < numDetections {
				matches = append(matches, [2]int{trackIndex, detectionIndex})
			} else if trackIndex >= len(squareMatrix) || detectionIndex >= len(squareMatrix) {
				logrus.Warnf("Hungarian assignment out of bounds. TrackIdx: %d, DetIdx: %d", trackIndex, detectionIndex)
			}
			break
		}
	}
	return matches
}

// performGreedyMatching gives every track (in order) its best unmatched detection above minIoU.
func (bt *ByteTracker[B]) performGreedyMatching(iouMatrix [][]float64, trackBBoxes []bboxPair, detectionIndices []int) [][2]int {
	matches := make([][2]int, 0)
	taken := make(map[int]struct{})
	for i := range trackBBoxes {
		bestIoU := -1.0
		bestJ := -1
		for j := range detectionIndices {
			if _, found := taken[j]; found {
				continue
			}
			if iouMatrix[i][j] > bestIoU && iouMatrix[i][j] >= bt.minIoU {
				bestIoU = iouMatrix[i][j]
				bestJ = j
			}
		}
		if bestJ != -1 {
			matches = append(matches, [2]int{i, bestJ})
			taken[bestJ] = struct{}{}
		}
	}
	return matches
}

// processMatches updates tracks for matches passing minIoU and records them in stage.
func (bt *ByteTracker[B]) processMatches(stage *associationStage[B], matches [][2]int, trackBBoxes []bboxPair, detectionIndices []int, iouMatrix [][]float64) error {
	for _, match := range matches {
		if iouMatrix[match[0]][match[1]] < bt.minIoU {
			continue
		}
		trackID := trackBBoxes[match[0]].ID
		detIdx := detectionIndices[match[1]]
		track, ok := bt.Objects[trackID]
		if !ok {
			continue
		}
		detection := stage.detections[detIdx]
		if err := track.Update(detection); err != nil {
			return errors.Wrapf(err, "Can't update track %s", trackID)
		}
		track.ResetNoMatch()
		detection.SetID(trackID)
		stage.matchedTracks[trackID] = struct{}{}
		stage.matchedDetections[detIdx] = struct{}{}
	}
	return nil
}
