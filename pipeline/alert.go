package pipeline

// DefaultAlertReset is number of quiet frames after which a motion alert may be raised again
const DefaultAlertReset = 150

// MotionAlert is a camera-level alert. It is raised once when motion appears and stays active
// until it is acknowledged or the camera has been quiet for resetAfter consecutive frames.
type MotionAlert struct {
	// resetAfter 0 disables automatic reset
	resetAfter int
	active     bool
	quiet      int
}

// NewMotionAlert creates inactive alert
func NewMotionAlert(resetAfter int) *MotionAlert {
	if resetAfter < 0 {
		resetAfter = 0
	}
	return &MotionAlert{resetAfter: resetAfter}
}

// Update registers whether the latest frame had motion. Returns true only on the frame the alert is raised.
func (a *MotionAlert) Update(motion bool) bool {
	if motion {
		a.quiet = 0
		if a.active {
			return false
		}
		a.active = true
		return true
	}
	if !a.active {
		return false
	}
	a.quiet++
	if a.resetAfter > 0 && a.quiet >= a.resetAfter {
		a.active = false
		a.quiet = 0
	}
	return false
}

// Active reports whether alert is raised and not reset yet
func (a *MotionAlert) Active() bool {
	return a.active
}

// Acknowledge clears the alert, next motion raises it again
func (a *MotionAlert) Acknowledge() {
	a.active = false
	a.quiet = 0
}
