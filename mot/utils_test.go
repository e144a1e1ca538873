package mot

import (
	"math"
	"testing"
)

func TestIoU(t *testing.T) {
	cases := []struct {
		r1, r2   Rectangle
		expected float64
	}{
		{NewRect(0, 0, 10, 10), NewRect(0, 0, 10, 10), 1.0},
		{NewRect(0, 0, 10, 10), NewRect(5, 0, 10, 10), 50.0 / 150.0},
		{NewRect(0, 0, 10, 10), NewRect(20, 20, 10, 10), 0.0},
		{NewRect(0, 0, 10, 10), NewRect(10, 0, 10, 10), 0.0},
		{NewRect(0, 0, 0, 0), NewRect(0, 0, 0, 0), 0.0},
	}
	for i, c := range cases {
		answer := IoU(c.r1, c.r2)
		if math.Abs(answer-c.expected) > eps {
			t.Errorf("Case %d: wrong IoU %v, expected %v", i, answer, c.expected)
		}
	}
}
