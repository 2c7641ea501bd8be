// Package metadata resolves the capture time and location of a media asset by
// trying an ordered list of metadata sources.
package metadata

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

// ErrNoCreationTime is returned by probes when a container carries no creation time.
var ErrNoCreationTime = errors.New("no creation time")

// Finding is what a single source learned about an asset.
type Finding struct {
	Moment    types.ResolvedMoment
	Found     bool
	Anomalies []types.AnomalyRecord
}

// Source is one step of the fallback chain. Implementations never return
// errors; failures become anomalies or a Finding with Found unset.
type Source interface {
	Name() string
	Resolve(ctx context.Context, asset types.Asset) Finding
}

// Resolution is the outcome of running the whole chain for one asset.
type Resolution struct {
	Moment    types.ResolvedMoment
	Anomalies []types.AnomalyRecord
}

// Resolver runs sources in order; the first one that yields a timestamp wins.
type Resolver struct {
	sources []Source
	logger  *zap.Logger
}

func NewResolver(logger *zap.Logger, sources ...Source) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{sources: sources, logger: logger}
}

// Resolve never fails. When no source yields a timestamp the returned moment is empty.
func (r *Resolver) Resolve(ctx context.Context, asset types.Asset) Resolution {
	var res Resolution

	for _, src := range r.sources {
		f := src.Resolve(ctx, asset)
		res.Anomalies = append(res.Anomalies, f.Anomalies...)

		if !f.Found || f.Moment.Timestamp == nil {
			continue
		}

		res.Moment = f.Moment
		if res.Moment.Source == "" {
			res.Moment.Source = src.Name()
		}
		r.logger.Debug("resolved capture time",
			zap.String("path", asset.DisplayPath()),
			zap.String("source", res.Moment.Source),
			zap.Time("timestamp", *res.Moment.Timestamp),
			zap.Bool("has_coordinate", res.Moment.Coordinate != nil))
		return res
	}

	r.logger.Debug("no capture time found", zap.String("path", asset.DisplayPath()))
	return res
}

func found(t time.Time, coord *types.Coordinate, source string) Finding {
	return Finding{
		Moment: types.ResolvedMoment{
			Timestamp:  &t,
			Coordinate: coord,
			Source:     source,
		},
		Found: true,
	}
}

func anomaly(category types.AnomalyCategory, path, detail string) types.AnomalyRecord {
	return types.AnomalyRecord{Category: category, Path: path, Detail: detail}
}
