package mot

import "math"

// IoU returns Intersection over Union of two rectangles. Degenerate (zero area) inputs give 0.
func IoU(r1, r2 Rectangle) float64 {
	left := math.Max(r1.X, r2.X)
	top := math.Max(r1.Y, r2.Y)
	right := math.Min(r1.X+r1.Width, r2.X+r2.Width)
	bottom := math.Min(r1.Y+r1.Height, r2.Y+r2.Height)

	intersection := math.Max(0, right-left) * math.Max(0, bottom-top)
	if intersection == 0 {
		return 0.0
	}
	union := r1.Width*r1.Height + r2.Width*r2.Height - intersection
	if union <= 0 {
		return 0.0
	}
	return intersection / union
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
