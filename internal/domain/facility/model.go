package facility

import "time"

// Facility maps to the facility table. AverageWaitMinutes and
// LeaveSignalWeight are published by the facility and may be absent.
type Facility struct {
	ID                 string    `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	AverageWaitMinutes *float64  `db:"average_wait_minutes" json:"average_wait_minutes,omitempty"`
	LeaveSignalWeight  *float64  `db:"leave_signal_weight" json:"leave_signal_weight,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Context is the facility data consumed by the burden model.
type Context struct {
	Known             bool     `json:"known"`
	AverageWait       *float64 `json:"average_wait_minutes,omitempty"`
	LeaveSignalWeight float64  `json:"leave_signal_weight"`
}
