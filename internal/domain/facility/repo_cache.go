package facility

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const cacheKeyPrefix = "edflow:facility:"

// cachedRepo is a read-through Redis cache in front of another Repository.
// Writes go to the backing store first and then drop the cached entry.
// Redis failures degrade to the backing store.
type cachedRepo struct {
	next   Repository
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedRepo(next Repository, rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) Repository {
	return &cachedRepo{next: next, rdb: rdb, ttl: ttl, logger: logger.With().Str("component", "facility_cache").Logger()}
}

func cacheKey(id string) string { return cacheKeyPrefix + id }

func (r *cachedRepo) GetByID(ctx context.Context, id string) (*Facility, error) {
	data, err := r.rdb.Get(ctx, cacheKey(id)).Bytes()
	switch {
	case err == nil:
		var f Facility
		if err := json.Unmarshal(data, &f); err == nil {
			return &f, nil
		}
		r.logger.Warn().Str("facility_id", id).Msg("dropping undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		r.logger.Warn().Err(err).Str("facility_id", id).Msg("cache read failed")
	}

	f, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(f); err == nil {
		if err := r.rdb.Set(ctx, cacheKey(id), data, r.ttl).Err(); err != nil {
			r.logger.Warn().Err(err).Str("facility_id", id).Msg("cache write failed")
		}
	}
	return f, nil
}

func (r *cachedRepo) Upsert(ctx context.Context, f *Facility) error {
	if err := r.next.Upsert(ctx, f); err != nil {
		return err
	}
	r.evict(ctx, f.ID)
	return nil
}

func (r *cachedRepo) Delete(ctx context.Context, id string) error {
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	r.evict(ctx, id)
	return nil
}

func (r *cachedRepo) List(ctx context.Context, limit, offset int) ([]*Facility, int, error) {
	return r.next.List(ctx, limit, offset)
}

func (r *cachedRepo) evict(ctx context.Context, id string) {
	if err := r.rdb.Del(ctx, cacheKey(id)).Err(); err != nil {
		r.logger.Warn().Err(err).Str("facility_id", id).Msg("cache evict failed")
	}
}
