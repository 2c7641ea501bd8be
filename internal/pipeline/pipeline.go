// Package pipeline wires the scanner, resolvers and stores into one run:
// assets are analyzed by a bounded worker pool and committed one at a time
// in discovery order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/On-Jun9/TakeoutPipe/internal/aggregate"
	"github.com/On-Jun9/TakeoutPipe/internal/anomaly"
	"github.com/On-Jun9/TakeoutPipe/internal/archive"
	"github.com/On-Jun9/TakeoutPipe/internal/config"
	"github.com/On-Jun9/TakeoutPipe/internal/copier"
	"github.com/On-Jun9/TakeoutPipe/internal/fingerprint"
	"github.com/On-Jun9/TakeoutPipe/internal/geocode"
	"github.com/On-Jun9/TakeoutPipe/internal/log"
	"github.com/On-Jun9/TakeoutPipe/internal/metadata"
	"github.com/On-Jun9/TakeoutPipe/internal/planner"
	"github.com/On-Jun9/TakeoutPipe/internal/report"
	"github.com/On-Jun9/TakeoutPipe/internal/scanner"
	"github.com/On-Jun9/TakeoutPipe/internal/verify"
	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

type Pipeline struct {
	cfg              *config.Config
	logger           *log.Logger
	scanner          *scanner.Scanner
	extractor        *archive.Extractor
	hasher           *fingerprint.Hasher
	resolver         *metadata.Resolver
	geocoder         *geocode.Resolver
	planner          *planner.Planner
	copier           *copier.Copier
	verifier         *verify.Verifier
	index            *fingerprint.Index
	geoCache         *geocode.Cache
	places           *aggregate.Aggregator
	anomalies        *anomaly.Log
	reports          *report.Writer
	history          *config.HistoryStore
	progressCallback ProgressCallback
}

// New validates cfg and loads every persisted store. Unreadable state is
// fatal here so a run never starts against a store it would overwrite.
func New(cfg *config.Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := log.New(cfg.LogFile, cfg.LogJSON)
	if err != nil {
		return nil, err
	}

	p, err := build(cfg, logger)
	if err != nil {
		logger.Close()
		return nil, err
	}
	return p, nil
}

func build(cfg *config.Config, logger *log.Logger) (*Pipeline, error) {
	index, err := fingerprint.Load(cfg.IndexFile)
	if err != nil {
		return nil, err
	}

	geoCache, err := geocode.LoadCache(cfg.GeoCacheFile, cfg.Geocoder.CachePrecision)
	if err != nil {
		return nil, err
	}

	places, err := aggregate.Load(cfg.PlacesFile)
	if err != nil {
		return nil, err
	}

	var zones metadata.TZLocator
	if cfg.LocalizeTimestamps {
		zones, err = metadata.NewTZLocator()
		if err != nil {
			return nil, fmt.Errorf("load timezone finder: %w", err)
		}
	}

	anomalies := anomaly.New()

	var geocoder *geocode.Resolver
	backend, err := newBackend(cfg.Geocoder)
	if err != nil {
		return nil, err
	}
	if backend != nil {
		geocoder = geocode.NewResolver(backend, geoCache, anomalies, logger.Named("geocode"))
	}

	sc := scanner.New(cfg.IncludeExtensions, cfg.ArchiveExtensions, logger.Named("scanner"))
	sc.Exclude(cfg.Dest, cfg.StagingDir)

	hasher := fingerprint.NewHasher(cfg.DigestAlgorithm)
	resolver := metadata.New(metadata.Options{
		SidecarSuffixes: cfg.SidecarSuffixes,
		VideoProbe:      cfg.VideoProbe,
		FFProbePath:     cfg.FFProbePath,
		ProbeTimeout:    cfg.ProbeTimeout,
		Zones:           zones,
	}, logger.Named("metadata"))

	return &Pipeline{
		cfg:       cfg,
		logger:    logger,
		scanner:   sc,
		extractor: archive.NewExtractor(logger.Named("archive"), sc.IsMedia, cfg.SidecarSuffixes),
		hasher:    hasher,
		resolver:  resolver,
		geocoder:  geocoder,
		planner:   planner.New(cfg.Dest, cfg.UnclassifiedDir, cfg.OrganizeStrategy, cfg.EventName),
		copier:    copier.New(cfg.DryRun),
		verifier:  verify.New(hasher, cfg.HashVerify),
		index:     index,
		geoCache:  geoCache,
		places:    places,
		anomalies: anomalies,
		reports:   report.New(cfg.ReportDir),
		history:   config.NewHistoryStore(cfg.HistoryFile),
	}, nil
}

func newBackend(cfg config.GeocoderConfig) (geocode.Backend, error) {
	switch cfg.Backend {
	case types.GeocoderNone:
		return nil, nil
	case types.GeocoderOffline:
		b, err := geocode.LoadOfflineBackend(cfg.CitiesFile, cfg.MaxDistanceKm)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return geocode.NewNominatimBackend(geocode.NominatimOptions{
			Endpoint:          cfg.Endpoint,
			UserAgent:         cfg.UserAgent,
			Language:          cfg.Language,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}), nil
	}
}

func (p *Pipeline) SetProgressCallback(cb ProgressCallback) {
	p.progressCallback = cb
}

func (p *Pipeline) progress(update ProgressUpdate) {
	if p.progressCallback != nil {
		p.progressCallback(update)
	}
}

// Anomalies exposes the run's anomaly log.
func (p *Pipeline) Anomalies() *anomaly.Log {
	return p.anomalies
}

// runState is owned by the commit loop.
type runState struct {
	summary   *types.RunSummary
	processed int
	total     int
}

// Run processes loose media first, then each archive in discovery order.
// Cancelling ctx stops new assets from being enqueued; assets already being
// analyzed are still committed and every store is still saved. The summary
// is returned together with ctx.Err() in that case.
func (p *Pipeline) Run(ctx context.Context) (*types.RunSummary, error) {
	startTime := time.Now()
	summary := &types.RunSummary{StartTime: startTime}

	p.logger.Info("starting scan", zap.String("source", p.cfg.Source))
	p.progress(ProgressUpdate{Type: ProgressStatus, Message: "scanning source"})

	found, err := p.scanner.Scan(p.cfg.Source)
	if err != nil {
		summary.EndTime = time.Now()
		summary.Duration = summary.EndTime.Sub(startTime)
		p.addHistory(summary, types.RunStatusFailed, err)
		return nil, fmt.Errorf("scan source: %w", err)
	}

	summary.Archives = len(found.Archives)
	p.logger.Info("scan complete",
		zap.Int("media", len(found.Media)),
		zap.Int("archives", len(found.Archives)))

	st := &runState{summary: summary, total: len(found.Media)}
	// in-flight work finishes even after ctx is cancelled
	work := context.WithoutCancel(ctx)

	p.processBatch(ctx, work, found.Media, st)

	stagingRoot := filepath.Join(p.cfg.StagingDir, p.logger.RunID)
	for i, archivePath := range found.Archives {
		if ctx.Err() != nil {
			break
		}
		p.processArchive(ctx, work, archivePath, filepath.Join(stagingRoot, fmt.Sprintf("%04d", i)), st)
	}
	if err := os.RemoveAll(stagingRoot); err != nil {
		p.logger.Warn("failed to remove staging dir", zap.String("path", stagingRoot), zap.Error(err))
	}

	summary.ScannedFiles = st.total
	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(startTime)
	if summary.Duration.Seconds() > 0 {
		summary.BytesPerSecond = float64(summary.BytesCopied) / summary.Duration.Seconds()
	}

	p.finish(summary)

	status := types.RunStatusCompleted
	switch {
	case ctx.Err() != nil:
		status = types.RunStatusCanceled
		p.logger.Warn("run canceled", zap.Int("processed", st.processed), zap.Int("discovered", st.total))
	case summary.Failed > 0:
		status = types.RunStatusFailed
	}
	p.addHistory(summary, status, ctx.Err())

	p.progress(ProgressUpdate{Type: ProgressComplete, Summary: summary})
	p.logger.Summary(*summary)

	return summary, ctx.Err()
}

func (p *Pipeline) processArchive(ctx, work context.Context, archivePath, stagingDir string, st *runState) {
	p.progress(ProgressUpdate{Type: ProgressStatus, Message: "extracting " + filepath.Base(archivePath)})

	assets, err := p.extractor.Extract(ctx, archivePath, stagingDir)
	defer func() {
		if err := os.RemoveAll(stagingDir); err != nil {
			p.logger.Warn("failed to remove staging dir", zap.String("path", stagingDir), zap.Error(err))
		}
	}()
	switch {
	case err == nil:
	case errors.Is(err, archive.ErrNotArchive):
		p.logger.Warn("not an archive", zap.String("path", archivePath))
		st.summary.Skipped++
		return
	case ctx.Err() != nil:
		return
	default:
		// members staged before the failure are still filed
		p.logger.Error("archive extraction failed", zap.String("path", archivePath), zap.Error(err))
		st.summary.Failed++
	}

	st.total += len(assets)
	p.processBatch(ctx, work, assets, st)
}

// analysis is the read-only work done for one asset before commit.
type analysis struct {
	asset      types.Asset
	digest     string
	err        error
	resolution metadata.Resolution
	notQueued  bool
}

// processBatch analyzes assets on up to cfg.Jobs workers and commits the
// results strictly in input order on the calling goroutine.
func (p *Pipeline) processBatch(ctx, work context.Context, assets []types.Asset, st *runState) {
	if len(assets) == 0 {
		return
	}

	slots := make([]chan analysis, len(assets))
	for i := range slots {
		slots[i] = make(chan analysis, 1)
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Jobs)
	fed := make(chan struct{})
	go func() {
		defer close(fed)
		for i, asset := range assets {
			if ctx.Err() != nil {
				slots[i] <- analysis{asset: asset, notQueued: true}
				continue
			}
			g.Go(func() error {
				slots[i] <- p.analyze(work, asset)
				return nil
			})
		}
	}()

	for i := range slots {
		an := <-slots[i]
		if an.notQueued {
			continue
		}
		p.commit(work, an, st)
	}

	<-fed
	_ = g.Wait()
}

func (p *Pipeline) analyze(ctx context.Context, asset types.Asset) analysis {
	an := analysis{asset: asset}

	an.digest, an.err = p.hasher.Sum(asset.Path)
	if an.err != nil {
		return an
	}
	// known content is a duplicate whatever its metadata says
	if _, ok := p.index.Lookup(an.digest); ok {
		return an
	}

	an.resolution = p.resolver.Resolve(ctx, asset)
	return an
}

// commit is the single writer for the index, cache, aggregator and anomaly log.
func (p *Pipeline) commit(ctx context.Context, an analysis, st *runState) {
	start := time.Now()
	asset := an.asset
	origin := asset.DisplayPath()

	st.processed++
	outcome := p.place(ctx, an, st.summary)

	p.progress(ProgressUpdate{
		Type:     ProgressFile,
		Current:  st.processed,
		Total:    st.total,
		Filename: asset.Name,
		Outcome:  outcome,
	})
	p.logger.Debug("committed",
		zap.String("source", origin),
		zap.String("outcome", string(outcome)),
		zap.Duration("duration", time.Since(start)))
}

func (p *Pipeline) place(ctx context.Context, an analysis, summary *types.RunSummary) Outcome {
	asset := an.asset
	origin := asset.DisplayPath()
	start := time.Now()

	if an.err != nil {
		p.logger.Error("cannot read asset", zap.String("source", origin), zap.Error(an.err))
		summary.Skipped++
		return OutcomeSkipped
	}

	if prior, ok := p.index.Lookup(an.digest); ok {
		p.anomalies.Record(types.AnomalyDuplicate, origin, prior)
		summary.Duplicates++
		return OutcomeDuplicate
	}

	res := an.resolution
	p.anomalies.Add(res.Anomalies...)

	bucket := p.planner.Place(asset, res.Moment)

	dest, err := p.copier.Place(asset.Path, bucket.Dir, asset.Name)
	if err != nil {
		p.logger.Error("copy failed", zap.String("source", origin), zap.Error(err))
		summary.Failed++
		return OutcomeFailed
	}

	if !p.cfg.DryRun {
		if err := p.verifier.Verify(dest, asset.Size, an.digest); err != nil {
			p.logger.Error("verification failed", zap.String("source", origin), zap.String("dest", dest), zap.Error(err))
			if rmErr := os.Remove(dest); rmErr != nil {
				p.logger.Warn("failed to remove unverified copy", zap.String("dest", dest), zap.Error(rmErr))
			}
			summary.Failed++
			return OutcomeFailed
		}
		summary.BytesCopied += asset.Size
	}

	p.index.Record(an.digest, dest)
	summary.Filed++
	p.logger.LogPlacement(origin, dest, res.Moment.Source, time.Since(start))

	if !bucket.Classified {
		p.anomalies.Record(types.AnomalyUnclassified, origin, "")
		summary.Unclassified++
		return OutcomeUnclassified
	}

	if res.Moment.Coordinate == nil {
		p.anomalies.Record(types.AnomalyNoLocation, origin, "")
		return OutcomeFiled
	}
	if p.geocoder == nil {
		return OutcomeFiled
	}
	if place, ok := p.geocoder.ResolvePlace(ctx, origin, *res.Moment.Coordinate); ok {
		p.places.Record(bucket, place)
		summary.Geocoded++
	}
	return OutcomeFiled
}

// finish persists the stores and writes the reports. Failures are logged;
// the files already placed stay valid either way.
func (p *Pipeline) finish(summary *types.RunSummary) {
	if !p.cfg.DryRun {
		if err := p.index.Save(); err != nil {
			p.logger.Error("failed to save fingerprint index", zap.Error(err))
		}
		if err := p.geoCache.Save(); err != nil {
			p.logger.Error("failed to save geocode cache", zap.Error(err))
		}
		if err := p.places.Save(p.cfg.PlacesFile); err != nil {
			p.logger.Error("failed to save place observations", zap.Error(err))
		}
	}

	places := p.places.Summarize()
	if err := p.reports.Write(p.anomalies, places); err != nil {
		p.logger.Error("failed to write reports", zap.Error(err))
	}
	if !p.cfg.DryRun {
		if err := p.reports.WriteBucketLocations(p.cfg.Dest, places); err != nil {
			p.logger.Error("failed to write bucket locations", zap.Error(err))
		}
	}

	p.logger.Info("run finished",
		zap.String("reports", p.reports.Dir()),
		zap.Int("filed", summary.Filed),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("anomalies", p.anomalies.Total()),
		zap.Int("index_size", p.index.Len()),
		zap.Int("geocache_size", p.geoCache.Len()))
}

func (p *Pipeline) addHistory(summary *types.RunSummary, status types.RunStatus, runErr error) {
	entry := types.RunHistoryEntry{
		ID:        p.logger.RunID,
		Source:    p.cfg.Source,
		DryRun:    p.cfg.DryRun,
		Status:    status,
		Summary:   *summary,
		CreatedAt: summary.StartTime,
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}

	if err := p.history.Add(entry); err != nil {
		p.logger.Error("failed to save run history", zap.Error(err))
	}
}

func (p *Pipeline) Close() error {
	return p.logger.Close()
}
