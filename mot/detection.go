package mot

// Detection is a single detector output for one frame.
type Detection struct {
	BBox       Rectangle
	Confidence float64
	// ClassID is detector class index; -1 when detector is class-agnostic (e.g. motion based)
	ClassID int
}

// TrackedObject is an identified object on a single frame.
// K is identity type: uuid.UUID for internal trackers, string for identities assigned upstream.
type TrackedObject[K comparable] struct {
	ID         K
	BBox       Rectangle
	ClassID    int
	Confidence float64
}

// Center returns midpoint of object's bounding box
func (object TrackedObject[K]) Center() Point {
	return object.BBox.Center()
}
