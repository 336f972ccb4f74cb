package burden

import "math"

const (
	amberCheckInWaitMinutes = 87.0
	amberCheckInBurden      = 55.0
)

// CheckInResponse is one answer to the periodic waiting-room check-in.
type CheckInResponse struct {
	DiscomfortLevel     *int     `json:"discomfort_level,omitempty"`
	AssistanceRequested []string `json:"assistance_requested,omitempty"`
	IntendsToStay       *bool    `json:"intends_to_stay,omitempty"`
	Timestamp           string   `json:"timestamp"`
}

// Input is a fully resolved compute request: facility context has already
// been looked up by the caller.
type Input struct {
	CTAS              int
	WaitMinutes       float64
	Vulnerability     Vulnerability
	CheckIns          []CheckInResponse
	LeaveSignalWeight float64
}

// Result is everything the model reports for one patient at one instant.
type Result struct {
	BurdenCurve                []CurvePoint    `json:"burden_curve"`
	BaselineCurve              []BaselinePoint `json:"baseline_curve"`
	Burden                     float64         `json:"burden"`
	AlertStatus                AlertStatus     `json:"alert_status"`
	EquityGapScore             float64         `json:"equity_gap_score"`
	DisengagementWindowMinutes *int            `json:"disengagement_window_minutes,omitempty"`
	ConfidenceInterval         float64         `json:"confidence_interval"`
	PlanningToLeave            bool            `json:"planning_to_leave"`
	SuggestAmberCheckIn        bool            `json:"suggest_amber_check_in"`
	VulnerabilityMultiplier    float64         `json:"vulnerability_multiplier"`
	MultiplierFloored          bool            `json:"multiplier_floored,omitempty"`
}

// Validate checks the ranges the model relies on.
func (in Input) Validate() error {
	if in.CTAS < 1 || in.CTAS > 5 {
		return invalid("estimated_ctas_level", "must be between 1 and 5, got %d", in.CTAS)
	}
	if !finite(in.WaitMinutes) || in.WaitMinutes < 0 {
		return invalid("wait_time_minutes", "must be a non-negative number")
	}
	if m, ok := in.Vulnerability.Explicit(); ok && (!finite(m) || m < 0) {
		return invalid("vulnerability_multiplier", "must be a non-negative number")
	}
	if !finite(in.LeaveSignalWeight) || in.LeaveSignalWeight < 0 {
		return invalid("leave_signal_weight", "must be a non-negative number")
	}
	for i, r := range in.CheckIns {
		if r.DiscomfortLevel != nil && (*r.DiscomfortLevel < 1 || *r.DiscomfortLevel > 5) {
			return invalid("check_in_responses", "entry %d: discomfort_level must be between 1 and 5", i)
		}
	}
	return nil
}

// PlanningToLeave reports whether any check-in explicitly says the patient
// does not intend to stay. Absent answers do not count.
func PlanningToLeave(checkIns []CheckInResponse) bool {
	for _, r := range checkIns {
		if r.IntendsToStay != nil && !*r.IntendsToStay {
			return true
		}
	}
	return false
}

// SuggestAmberCheckIn is the single predicate for prompting an extra check-in:
// past the triage-matched time-to-physician with an elevated burden.
func SuggestAmberCheckIn(wait, burden float64) bool {
	return wait > amberCheckInWaitMinutes && burden >= amberCheckInBurden
}

// ComputeBurden runs the full model. in is assumed valid; see Input.Validate.
func (c Calibration) ComputeBurden(in Input) Result {
	m, floored := c.EffectiveMultiplier(in.Vulnerability)
	curve := c.BuildCurve(in.WaitMinutes, in.CTAS, m, in.LeaveSignalWeight)
	last := curve[len(curve)-1]
	planning := PlanningToLeave(in.CheckIns)

	score := c.Score(ScoreInput{
		Last:            last,
		Multiplier:      m,
		WaitMinutes:     in.WaitMinutes,
		LeaveWeight:     in.LeaveSignalWeight,
		PlanningToLeave: planning,
	})

	res := Result{
		BurdenCurve:             curve,
		BaselineCurve:           BaselineCurve(curve, m),
		Burden:                  score,
		AlertStatus:             Classify(score, planning),
		EquityGapScore:          EquityGap(last, m),
		ConfidenceInterval:      c.ConfidenceInterval,
		PlanningToLeave:         planning,
		SuggestAmberCheckIn:     SuggestAmberCheckIn(in.WaitMinutes, score),
		VulnerabilityMultiplier: m,
		MultiplierFloored:       floored,
	}
	if planning || score >= disengagementEvalBurden {
		w := DisengagementWindow(curve, in.WaitMinutes)
		res.DisengagementWindowMinutes = &w
	}
	return res
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
