package burden

// AlertStatus is the tri-state alert shown on the waiting-room board.
type AlertStatus string

const (
	AlertGreen AlertStatus = "GREEN"
	AlertAmber AlertStatus = "AMBER"
	AlertRed   AlertStatus = "RED"
)

const (
	redThreshold   = 75.0
	amberThreshold = 50.0
)

// Classify maps a burden score and stated leave intent to an alert. Both
// thresholds are strict.
func Classify(burden float64, planningToLeave bool) AlertStatus {
	switch {
	case burden > redThreshold || planningToLeave:
		return AlertRed
	case burden > amberThreshold:
		return AlertAmber
	default:
		return AlertGreen
	}
}
