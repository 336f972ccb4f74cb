package flow

import (
	"time"

	"github.com/edflow/edflow/internal/burden"
)

// ComputeBurdenRequest is the wire form of a burden computation. When both
// profile and vulnerability_multiplier are present the profile is used.
type ComputeBurdenRequest struct {
	FacilityID              string                   `json:"facility_id"`
	VulnerabilityMultiplier *float64                 `json:"vulnerability_multiplier,omitempty"`
	Profile                 *burden.Profile          `json:"profile,omitempty"`
	EstimatedCTASLevel      int                      `json:"estimated_ctas_level"`
	WaitTimeMinutes         float64                  `json:"wait_time_minutes"`
	CheckInResponses        []burden.CheckInResponse `json:"check_in_responses,omitempty"`
}

func (r ComputeBurdenRequest) input(leaveWeight float64) burden.Input {
	return burden.Input{
		CTAS:              r.EstimatedCTASLevel,
		WaitMinutes:       r.WaitTimeMinutes,
		Vulnerability:     resolveVulnerability(r.Profile, r.VulnerabilityMultiplier),
		CheckIns:          r.CheckInResponses,
		LeaveSignalWeight: leaveWeight,
	}
}

type EstimateWaitRequest struct {
	FacilityID              string          `json:"facility_id"`
	VulnerabilityMultiplier *float64        `json:"vulnerability_multiplier,omitempty"`
	Profile                 *burden.Profile `json:"profile,omitempty"`
	EstimatedCTASLevel      int             `json:"estimated_ctas_level"`
	WaitTimeMinutes         float64         `json:"wait_time_minutes"`
}

type EstimateWaitResponse struct {
	EstimatedWaitMinutes int `json:"estimated_wait_minutes"`
}

type VulnerabilityRequest struct {
	VulnerabilityMultiplier *float64        `json:"vulnerability_multiplier,omitempty"`
	Profile                 *burden.Profile `json:"profile,omitempty"`
}

// VulnerabilityResponse reports the multiplier the model will use and where
// it came from: "profile", "multiplier" or "default".
type VulnerabilityResponse struct {
	VulnerabilityMultiplier float64       `json:"vulnerability_multiplier"`
	MultiplierFloored       bool          `json:"multiplier_floored"`
	Source                  string        `json:"source"`
	Flags                   []burden.Flag `json:"flags,omitempty"`
}

func resolveVulnerability(p *burden.Profile, m *float64) burden.Vulnerability {
	switch {
	case p != nil:
		return burden.FromProfile(*p)
	case m != nil:
		return burden.FromMultiplier(*m)
	default:
		return burden.Vulnerability{}
	}
}

// Watch is a waiting patient re-evaluated on every monitor tick.
type Watch struct {
	ID                      string                   `json:"id"`
	FacilityID              string                   `json:"facility_id"`
	EstimatedCTASLevel      int                      `json:"estimated_ctas_level"`
	VulnerabilityMultiplier *float64                 `json:"vulnerability_multiplier,omitempty"`
	Profile                 *burden.Profile          `json:"profile,omitempty"`
	ArrivedAt               time.Time                `json:"arrived_at"`
	CheckInResponses        []burden.CheckInResponse `json:"check_in_responses"`
	WaitTimeMinutes         float64                  `json:"wait_time_minutes"`
	EvaluatedAt             *time.Time               `json:"evaluated_at,omitempty"`
	Latest                  *burden.Result           `json:"latest,omitempty"`

	// revision counts check-ins applied; an evaluation taken at an older
	// revision is discarded.
	revision uint64
}

func (w *Watch) request(wait float64) ComputeBurdenRequest {
	return ComputeBurdenRequest{
		FacilityID:              w.FacilityID,
		VulnerabilityMultiplier: w.VulnerabilityMultiplier,
		Profile:                 w.Profile,
		EstimatedCTASLevel:      w.EstimatedCTASLevel,
		WaitTimeMinutes:         wait,
		CheckInResponses:        w.CheckInResponses,
	}
}

func (w *Watch) clone() *Watch {
	out := *w
	out.CheckInResponses = append([]burden.CheckInResponse(nil), w.CheckInResponses...)
	return &out
}

type CreateWatchRequest struct {
	FacilityID              string                   `json:"facility_id"`
	VulnerabilityMultiplier *float64                 `json:"vulnerability_multiplier,omitempty"`
	Profile                 *burden.Profile          `json:"profile,omitempty"`
	EstimatedCTASLevel      int                      `json:"estimated_ctas_level"`
	ArrivedAt               *time.Time               `json:"arrived_at,omitempty"`
	CheckInResponses        []burden.CheckInResponse `json:"check_in_responses,omitempty"`
}

// AlertChange is the payload of an alert.changed event.
type AlertChange struct {
	WatchID                    string             `json:"watch_id"`
	FacilityID                 string             `json:"facility_id"`
	Previous                   burden.AlertStatus `json:"previous,omitempty"`
	Current                    burden.AlertStatus `json:"alert_status"`
	Burden                     float64            `json:"burden"`
	WaitTimeMinutes            float64            `json:"wait_time_minutes"`
	PlanningToLeave            bool               `json:"planning_to_leave"`
	SuggestAmberCheckIn        bool               `json:"suggest_amber_check_in"`
	DisengagementWindowMinutes *int               `json:"disengagement_window_minutes,omitempty"`
}
