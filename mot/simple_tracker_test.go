package mot

import (
	"testing"
)

func TestMatchObjectsSpread(t *testing.T) {
	tracker := NewSimpleTracker[*SimpleBlob](15.0, 5)
	dt := 1.0 / 25.0 // emulate 25 fps

	for _, frame := range spreadFrames() {
		blobs := make([]*SimpleBlob, len(frame))
		for j, bbox := range frame {
			blobs[j] = NewSimpleBlobWithTime(bbox, dt)
		}
		if err := tracker.MatchObjects(blobs); err != nil {
			t.Fatal(err)
		}
	}

	correctNumOfObjects := 4
	if len(tracker.Objects) != correctNumOfObjects {
		t.Errorf("incorrect number of objects: %d, expected: %d", len(tracker.Objects), correctNumOfObjects)
	}
	dumpTracks(t, "blobs_spread.csv", tracker.Objects)
}

func TestMatchObjectsSimilar(t *testing.T) {
	one, two, three := naiveTracks()
	tracker := NewSimpleTracker[*SimpleBlob](15.0, 5)
	dt := 1.0 / 25.0

	for idx := range one {
		blobs := []*SimpleBlob{
			NewSimpleBlobWithTime(xyxyToRect(one[idx]), dt),
			NewSimpleBlobWithTime(xyxyToRect(two[idx]), dt),
			NewSimpleBlobWithTime(xyxyToRect(three[idx]), dt),
		}
		if err := tracker.MatchObjects(blobs); err != nil {
			t.Fatal(err)
		}
	}

	correctNumOfObjects := 3
	if len(tracker.Objects) != correctNumOfObjects {
		t.Errorf("incorrect number of objects: %d, expected: %d", len(tracker.Objects), correctNumOfObjects)
	}
	dumpTracks(t, "blobs_similar.csv", tracker.Objects)
}

func TestSimpleTrackerKeepsIdentity(t *testing.T) {
	tracker := NewSimpleTrackerDefault[*SimpleBlob]()
	first := NewSimpleBlob(NewRect(100, 100, 40, 20))
	if err := tracker.MatchObjects([]*SimpleBlob{first}); err != nil {
		t.Fatal(err)
	}
	id := first.GetID()
	for i := 1; i <= 5; i++ {
		next := NewSimpleBlob(NewRect(100+float64(i), 100, 40, 20))
		if err := tracker.MatchObjects([]*SimpleBlob{next}); err != nil {
			t.Fatal(err)
		}
		if next.GetID() != id {
			t.Fatalf("Frame %d: detection should take over identity %s, got %s", i, id, next.GetID())
		}
	}
	object := tracker.Objects[id]
	if object.GetHits() != 6 {
		t.Errorf("Expected 6 hits, got %d", object.GetHits())
	}
	if !object.IsActive() {
		t.Error("Matched object should be active")
	}
}

func TestSimpleTrackerDropsLostObjects(t *testing.T) {
	tracker := NewSimpleTracker[*SimpleBlob](30.0, 2)
	if err := tracker.MatchObjects([]*SimpleBlob{NewSimpleBlob(NewRect(0, 0, 10, 10))}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := tracker.MatchObjects(nil); err != nil {
			t.Fatal(err)
		}
	}
	if len(tracker.Objects) != 0 {
		t.Errorf("Lost object should be removed, got %d objects", len(tracker.Objects))
	}
}
