package burden

import "math"

const (
	distressWeight    = 30.0
	lwbsWeight        = 40.0
	returnVisitWeight = 20.0

	waitImpactScale        = 60.0
	waitImpactPhysicianAdd = 8.0
	waitImpactCap          = 75.0

	leaveIntentPoints = 15.0

	maxBurden = 100.0
)

// ScoreInput carries what the aggregator needs besides the curve.
type ScoreInput struct {
	Last            CurvePoint
	Multiplier      float64
	WaitMinutes     float64
	LeaveWeight     float64
	PlanningToLeave bool
}

// WaitImpact is the curve-independent contribution of elapsed wait: a share
// of the median total stay scaled to 60 points, +8 once the wait passes the
// median time-to-physician, never more than 75.
func (c Calibration) WaitImpact(wait float64) float64 {
	normalized := wait / c.MedianStayMinutes
	impact := math.Min(normalized*waitImpactScale, waitImpactScale)
	if wait > c.MedianTimeToPhysicianMinutes {
		impact += waitImpactPhysicianAdd
	}
	return math.Min(impact, waitImpactCap)
}

// PostThresholdEscalation grows linearly once wait passes
// EscalationStartMinutes and saturates at EscalationCap.
func (c Calibration) PostThresholdEscalation(wait float64) float64 {
	if wait <= c.EscalationStartMinutes {
		return 0
	}
	return math.Min(c.EscalationCap, c.EscalationPerMinute*(wait-c.EscalationStartMinutes))
}

// Score collapses the terminal curve point and the wait context into a
// 0-100 burden.
func (c Calibration) Score(in ScoreInput) float64 {
	raw := in.Last.DistressProbability*distressWeight +
		in.Last.LWBSProbability*lwbsWeight +
		in.Last.ReturnVisitRisk*returnVisitWeight
	burden := math.Min(maxBurden, raw*in.Multiplier)

	burden += c.WaitImpact(in.WaitMinutes)
	if in.PlanningToLeave {
		burden += leaveIntentPoints * in.LeaveWeight
	}
	burden += c.PostThresholdEscalation(in.WaitMinutes)
	burden *= 1 + in.Multiplier

	return clamp(burden, 0, maxBurden)
}
