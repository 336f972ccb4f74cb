package flow

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edflow/edflow/internal/burden"
	"github.com/edflow/edflow/internal/platform/websocket"
)

const EventAlertChanged = "alert.changed"

var ErrWatchNotFound = errors.New("watch not found")

// Monitor keeps the set of waiting patients and re-runs the burden model for
// each of them on a fixed interval, publishing an event whenever a patient's
// alert status changes. The model sees wall-clock time only through the wait
// computed here.
type Monitor struct {
	svc         *Service
	publisher   websocket.EventPublisher
	interval    time.Duration
	concurrency int
	now         func() time.Time
	logger      zerolog.Logger

	mu      sync.RWMutex
	watches map[string]*Watch
}

func NewMonitor(svc *Service, publisher websocket.EventPublisher, interval time.Duration, concurrency int, logger zerolog.Logger) *Monitor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Monitor{
		svc:         svc,
		publisher:   publisher,
		interval:    interval,
		concurrency: concurrency,
		now:         time.Now,
		logger:      logger.With().Str("component", "monitor").Logger(),
		watches:     make(map[string]*Watch),
	}
}

func WatchTopic(id string) string { return "watch:" + id }

func FacilityTopic(facilityID string) string { return "facility:" + facilityID }

// Add registers a patient and evaluates it immediately.
func (m *Monitor) Add(ctx context.Context, req CreateWatchRequest) (*Watch, error) {
	now := m.now()
	arrived := now
	if req.ArrivedAt != nil {
		arrived = *req.ArrivedAt
	}
	if arrived.After(now) {
		return nil, &burden.ValidationError{Field: "arrived_at", Reason: "must not be in the future"}
	}

	w := &Watch{
		ID:                      uuid.New().String(),
		FacilityID:              req.FacilityID,
		EstimatedCTASLevel:      req.EstimatedCTASLevel,
		VulnerabilityMultiplier: req.VulnerabilityMultiplier,
		Profile:                 req.Profile,
		ArrivedAt:               arrived,
		CheckInResponses:        append([]burden.CheckInResponse(nil), req.CheckInResponses...),
	}
	if err := w.request(waitMinutes(now, arrived)).input(0).Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.watches[w.ID] = w
	m.mu.Unlock()

	if err := m.evaluate(ctx, w.ID); err != nil {
		_ = m.Remove(w.ID)
		return nil, err
	}
	return m.Get(w.ID)
}

func (m *Monitor) Get(id string) (*Watch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.watches[id]
	if !ok {
		return nil, ErrWatchNotFound
	}
	return w.clone(), nil
}

// List returns every watch, longest waiting first.
func (m *Monitor) List() []*Watch {
	m.mu.RLock()
	out := make([]*Watch, 0, len(m.watches))
	for _, w := range m.watches {
		out = append(out, w.clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ArrivedAt.Equal(out[j].ArrivedAt) {
			return out[i].ArrivedAt.Before(out[j].ArrivedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Monitor) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.watches[id]; !ok {
		return ErrWatchNotFound
	}
	delete(m.watches, id)
	return nil
}

// AddCheckIn appends a check-in response and re-evaluates the watch so a
// stated intent to leave is reflected without waiting for the next tick.
func (m *Monitor) AddCheckIn(ctx context.Context, id string, r burden.CheckInResponse) (*Watch, error) {
	if r.DiscomfortLevel != nil && (*r.DiscomfortLevel < 1 || *r.DiscomfortLevel > 5) {
		return nil, &burden.ValidationError{Field: "discomfort_level", Reason: "must be between 1 and 5"}
	}

	m.mu.Lock()
	w, ok := m.watches[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrWatchNotFound
	}
	w.CheckInResponses = append(w.CheckInResponses, r)
	w.revision++
	m.mu.Unlock()

	if err := m.evaluate(ctx, id); err != nil {
		return nil, err
	}
	return m.Get(id)
}

// Run ticks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.interval).Int("concurrency", m.concurrency).Msg("monitor started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("monitor stopped")
			return nil
		case <-ticker.C:
			if err := m.Tick(ctx); err != nil && ctx.Err() == nil {
				m.logger.Error().Err(err).Msg("monitor tick failed")
			}
		}
	}
}

// Tick re-evaluates every watch, at most concurrency at a time.
func (m *Monitor) Tick(ctx context.Context) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.watches))
	for id := range m.watches {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := m.evaluate(gctx, id); err != nil && !errors.Is(err, ErrWatchNotFound) {
				m.logger.Error().Err(err).Str("watch_id", id).Msg("evaluate watch")
			}
			return nil
		})
	}
	return g.Wait()
}

func (m *Monitor) evaluate(ctx context.Context, id string) error {
	now := m.now()

	m.mu.RLock()
	w, ok := m.watches[id]
	if !ok {
		m.mu.RUnlock()
		return ErrWatchNotFound
	}
	wait := waitMinutes(now, w.ArrivedAt)
	req := w.request(wait)
	req.CheckInResponses = append([]burden.CheckInResponse(nil), w.CheckInResponses...)
	rev := w.revision
	m.mu.RUnlock()

	res, err := m.svc.ComputeBurden(ctx, req)
	if err != nil {
		return err
	}

	m.mu.Lock()
	w, ok = m.watches[id]
	if !ok {
		m.mu.Unlock()
		return ErrWatchNotFound
	}
	if w.revision != rev || (w.EvaluatedAt != nil && w.EvaluatedAt.After(now)) {
		m.mu.Unlock()
		m.logger.Debug().Str("watch_id", id).Msg("discarding stale evaluation")
		return nil
	}
	var prev burden.AlertStatus
	if w.Latest != nil {
		prev = w.Latest.AlertStatus
	}
	w.Latest = res
	w.WaitTimeMinutes = wait
	w.EvaluatedAt = &now
	facilityID := w.FacilityID
	m.mu.Unlock()

	if prev == res.AlertStatus {
		return nil
	}
	m.publish(ctx, AlertChange{
		WatchID:                    id,
		FacilityID:                 facilityID,
		Previous:                   prev,
		Current:                    res.AlertStatus,
		Burden:                     res.Burden,
		WaitTimeMinutes:            wait,
		PlanningToLeave:            res.PlanningToLeave,
		SuggestAmberCheckIn:        res.SuggestAmberCheckIn,
		DisengagementWindowMinutes: res.DisengagementWindowMinutes,
	}, now)
	return nil
}

func (m *Monitor) publish(ctx context.Context, change AlertChange, at time.Time) {
	if m.publisher == nil {
		return
	}
	data, err := json.Marshal(change)
	if err != nil {
		m.logger.Error().Err(err).Msg("marshal alert change")
		return
	}
	for _, topic := range []string{WatchTopic(change.WatchID), FacilityTopic(change.FacilityID)} {
		ev := websocket.Event{Type: EventAlertChanged, Topic: topic, Timestamp: at, Data: data}
		if err := m.publisher.Publish(ctx, ev); err != nil {
			m.logger.Warn().Err(err).Str("topic", topic).Msg("publish alert change")
		}
	}
	m.logger.Info().
		Str("watch_id", change.WatchID).
		Str("from", string(change.Previous)).
		Str("to", string(change.Current)).
		Float64("burden", change.Burden).
		Msg("alert status changed")
}

func waitMinutes(now, arrived time.Time) float64 {
	if d := now.Sub(arrived); d > 0 {
		return d.Minutes()
	}
	return 0
}
