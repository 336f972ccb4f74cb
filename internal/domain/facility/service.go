package facility

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog"
)

type Service struct {
	repo               Repository
	defaultLeaveWeight float64
	logger             zerolog.Logger
}

func NewService(repo Repository, defaultLeaveWeight float64, logger zerolog.Logger) *Service {
	return &Service{
		repo:               repo,
		defaultLeaveWeight: defaultLeaveWeight,
		logger:             logger.With().Str("component", "facility").Logger(),
	}
}

// Lookup resolves the model's facility context. It never fails: unknown
// facilities and lookup errors fall back to the defaults (no published wait,
// default leave-signal weight), and unusable stored values are ignored.
func (s *Service) Lookup(ctx context.Context, id string) Context {
	out := Context{LeaveSignalWeight: s.defaultLeaveWeight}
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Debug().Str("facility_id", id).Msg("unknown facility, using defaults")
		} else {
			s.logger.Error().Err(err).Str("facility_id", id).Msg("facility lookup failed, using defaults")
		}
		return out
	}
	out.Known = true
	if usable(f.AverageWaitMinutes) {
		w := *f.AverageWaitMinutes
		out.AverageWait = &w
	}
	if usable(f.LeaveSignalWeight) {
		out.LeaveSignalWeight = *f.LeaveSignalWeight
	}
	return out
}

func usable(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) && *v >= 0
}

func (s *Service) UpsertFacility(ctx context.Context, f *Facility) error {
	if f.ID == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}
	if f.AverageWaitMinutes != nil && !usable(f.AverageWaitMinutes) {
		return &ValidationError{Field: "average_wait_minutes", Reason: "must be a non-negative number"}
	}
	if f.LeaveSignalWeight != nil && !usable(f.LeaveSignalWeight) {
		return &ValidationError{Field: "leave_signal_weight", Reason: "must be a non-negative number"}
	}
	return s.repo.Upsert(ctx, f)
}

func (s *Service) GetFacility(ctx context.Context, id string) (*Facility, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) DeleteFacility(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListFacilities(ctx context.Context, limit, offset int) ([]*Facility, int, error) {
	return s.repo.List(ctx, limit, offset)
}
