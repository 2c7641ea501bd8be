// Package geocode turns coordinates into places through a pluggable backend
// and a persisted cache keyed by rounded coordinates.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

// ErrNoResult is returned by backends that answered but found no place.
var ErrNoResult = errors.New("no result")

const zeroEpsilon = 1e-6

// Backend performs a single reverse-geocoding lookup.
type Backend interface {
	Name() string
	Lookup(ctx context.Context, coord types.Coordinate) (types.Place, error)
}

// Recorder receives geocode-failed anomalies.
type Recorder interface {
	Record(category types.AnomalyCategory, path, detail string)
}

// Resolver answers from the cache first and calls the backend at most once
// per cache key.
type Resolver struct {
	backend   Backend
	cache     *Cache
	anomalies Recorder
	logger    *zap.Logger
	group     singleflight.Group
}

func NewResolver(backend Backend, cache *Cache, anomalies Recorder, logger *zap.Logger) *Resolver {
	if cache == nil {
		cache = NewCache("", DefaultPrecision)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		backend:   backend,
		cache:     cache,
		anomalies: anomalies,
		logger:    logger,
	}
}

func (r *Resolver) Cache() *Cache {
	return r.cache
}

// IsZero reports whether coord is the (0,0) "no fix" sentinel.
func IsZero(coord types.Coordinate) bool {
	return math.Abs(coord.Latitude) < zeroEpsilon && math.Abs(coord.Longitude) < zeroEpsilon
}

// ResolvePlace returns the place for coord. Failures are recorded against
// path as geocode-failed anomalies and yield ok == false.
func (r *Resolver) ResolvePlace(ctx context.Context, path string, coord types.Coordinate) (types.Place, bool) {
	if IsZero(coord) {
		r.fail(path, "zero coordinate")
		return types.Place{}, false
	}

	key := r.cache.Key(coord)
	if place, ok := r.cache.Get(key); ok {
		if place == nil {
			r.fail(path, "no place for "+key+" (cached)")
			return types.Place{}, false
		}
		return *place, true
	}

	if r.backend == nil {
		r.fail(path, "no geocoding backend")
		return types.Place{}, false
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		if place, ok := r.cache.Get(key); ok {
			if place == nil {
				return nil, ErrNoResult
			}
			return *place, nil
		}

		place, err := r.lookup(ctx, coord)
		if err != nil {
			// aborted lookups are retried on the next run
			if ctx.Err() != nil {
				return nil, err
			}
			r.cache.Put(key, nil)
			return nil, err
		}
		r.cache.Put(key, &place)
		return place, nil
	})
	if err != nil {
		r.logger.Debug("reverse geocoding failed",
			zap.String("backend", r.backend.Name()),
			zap.String("key", key),
			zap.Error(err))
		r.fail(path, err.Error())
		return types.Place{}, false
	}

	return v.(types.Place), true
}

func (r *Resolver) lookup(ctx context.Context, coord types.Coordinate) (types.Place, error) {
	place, err := r.backend.Lookup(ctx, coord)
	if err != nil {
		return types.Place{}, fmt.Errorf("%s: %w", r.backend.Name(), err)
	}
	if place.Locality == "" || place.Country == "" {
		return types.Place{}, fmt.Errorf("%s: %w: missing locality or country", r.backend.Name(), ErrNoResult)
	}
	return place, nil
}

func (r *Resolver) fail(path, reason string) {
	if r.anomalies != nil {
		r.anomalies.Record(types.AnomalyGeocodeFailed, path, reason)
	}
}
