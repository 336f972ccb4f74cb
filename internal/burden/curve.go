package burden

import "math"

const (
	distressCap    = 0.95
	lwbsCap        = 0.95
	returnVisitCap = 0.80

	distressRate = 0.01
	lwbsRate     = 0.008

	returnVisitHorizonMinutes = 120.0
)

// CurvePoint is one grid sample of the three risk curves.
type CurvePoint struct {
	TimeMinutes         float64 `json:"time_minutes"`
	DistressProbability float64 `json:"distress_probability"`
	LWBSProbability     float64 `json:"lwbs_probability"`
	ReturnVisitRisk     float64 `json:"return_visit_risk"`
}

// BaselinePoint is a curve sample with the vulnerability multiplier removed.
type BaselinePoint struct {
	TimeMinutes         float64 `json:"time_minutes"`
	DistressProbability float64 `json:"distress_probability"`
	LWBSProbability     float64 `json:"lwbs_probability"`
}

// BaselineHazard is the per-minute hazard for a CTAS level at minute t. The
// urgency factor 6-ctas runs from 5 (CTAS 1) down to 1 (CTAS 5).
func BaselineHazard(t float64, ctas int) float64 {
	return 0.001 * math.Exp(0.02*t) * float64(6-ctas)
}

// Horizon is the last grid time for a patient who has waited wait minutes:
// one lookahead past the current wait, capped.
func (c Calibration) Horizon(wait float64) float64 {
	return math.Min(c.HorizonCapMinutes, wait+c.HorizonLookaheadMinutes)
}

// CurveAt evaluates the three curves at minute t.
func CurveAt(t float64, ctas int, multiplier, leaveWeight float64) CurvePoint {
	risk := BaselineHazard(t, ctas) * multiplier
	lwbsRisk := risk * leaveWeight
	return CurvePoint{
		TimeMinutes:         t,
		DistressProbability: clamp(1-math.Exp(-risk*t*distressRate), 0, distressCap),
		LWBSProbability:     clamp(1-math.Exp(-lwbsRisk*t*lwbsRate), 0, lwbsCap),
		ReturnVisitRisk:     clamp((1-math.Exp(-risk*0.5))*(t/returnVisitHorizonMinutes), 0, returnVisitCap),
	}
}

// BuildCurve samples the curves every GridStepMinutes from 0 to Horizon(wait)
// inclusive. The grid is indexed by integer step so it never drifts.
func (c Calibration) BuildCurve(wait float64, ctas int, multiplier, leaveWeight float64) []CurvePoint {
	maxTime := c.Horizon(wait)
	steps := int(math.Floor(maxTime / c.GridStepMinutes))
	points := make([]CurvePoint, 0, steps+1)
	for i := 0; i <= steps; i++ {
		points = append(points, CurveAt(float64(i)*c.GridStepMinutes, ctas, multiplier, leaveWeight))
	}
	return points
}

// BaselineCurve divides the distress and LWBS probabilities of curve by the
// multiplier, recovering the non-vulnerable trajectory. multiplier must
// already be floored.
func BaselineCurve(curve []CurvePoint, multiplier float64) []BaselinePoint {
	out := make([]BaselinePoint, len(curve))
	for i, p := range curve {
		out[i] = BaselinePoint{
			TimeMinutes:         p.TimeMinutes,
			DistressProbability: clamp(p.DistressProbability/multiplier, 0, distressCap),
			LWBSProbability:     clamp(p.LWBSProbability/multiplier, 0, lwbsCap),
		}
	}
	return out
}
