package flow

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/edflow/edflow/internal/burden"
	"github.com/edflow/edflow/internal/domain/facility"
)

// FacilityLookup resolves the facility context for a request. Implementations
// never fail; unknown facilities come back with defaults.
type FacilityLookup interface {
	Lookup(ctx context.Context, id string) facility.Context
}

type Service struct {
	cal        burden.Calibration
	facilities FacilityLookup
	logger     zerolog.Logger
}

func NewService(cal burden.Calibration, facilities FacilityLookup, logger zerolog.Logger) *Service {
	return &Service{
		cal:        cal,
		facilities: facilities,
		logger:     logger.With().Str("component", "flow").Logger(),
	}
}

// ComputeBurden validates req, resolves facility context and runs the model.
// Only *burden.ValidationError is returned.
func (s *Service) ComputeBurden(ctx context.Context, req ComputeBurdenRequest) (*burden.Result, error) {
	fc := s.facilities.Lookup(ctx, req.FacilityID)
	in := req.input(fc.LeaveSignalWeight)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	res := s.cal.ComputeBurden(in)
	if res.MultiplierFloored {
		s.logger.Warn().
			Str("facility_id", req.FacilityID).
			Float64("multiplier", res.VulnerabilityMultiplier).
			Msg("vulnerability multiplier below floor, clamped")
	}
	return &res, nil
}

func (s *Service) EstimateWait(ctx context.Context, req EstimateWaitRequest) (*EstimateWaitResponse, error) {
	in := burden.Input{
		CTAS:          req.EstimatedCTASLevel,
		WaitMinutes:   req.WaitTimeMinutes,
		Vulnerability: resolveVulnerability(req.Profile, req.VulnerabilityMultiplier),
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	fc := s.facilities.Lookup(ctx, req.FacilityID)
	m := s.cal.Multiplier(in.Vulnerability)
	return &EstimateWaitResponse{
		EstimatedWaitMinutes: s.cal.EstimateWait(fc.AverageWait, m, req.WaitTimeMinutes),
	}, nil
}

func (s *Service) ResolveVulnerability(req VulnerabilityRequest) (*VulnerabilityResponse, error) {
	in := burden.Input{CTAS: 1, Vulnerability: resolveVulnerability(req.Profile, req.VulnerabilityMultiplier)}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	m, floored := s.cal.EffectiveMultiplier(in.Vulnerability)
	out := &VulnerabilityResponse{VulnerabilityMultiplier: m, MultiplierFloored: floored, Source: "default"}
	if p, ok := in.Vulnerability.Profile(); ok {
		out.Source = "profile"
		out.Flags = p.Set()
	} else if _, ok := in.Vulnerability.Explicit(); ok {
		out.Source = "multiplier"
	}
	return out, nil
}
