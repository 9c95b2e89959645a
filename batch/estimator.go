// Package batch runs the RCA for many managers on a worker pool and keeps a resumable report.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	r "github.com/invertedv/rca"
	"github.com/invertedv/rca/causal"
)

const defaultWorkers = 4

// Conn is a data source for one manager's run. Each task gets its own.
type Conn interface {
	Profile(ctx context.Context, manager string) (*r.Profile, error)
	TeamKPIs(ctx context.Context, manager string) ([]r.TeamRecord, error)
	DomainKPIs(ctx context.Context, kpiMapping string, geos []string) ([]r.DomainRecord, error)
	Close() error
}

// Connector opens a Conn.
type Connector func(ctx context.Context) (Conn, error)

type Config struct {
	Logger    *slog.Logger
	Connector Connector
	Engine    *causal.Engine
	Metrics   *Metrics

	Workers int
	// Output is the CSV report. If it exists, managers already in it are skipped and the new
	// rows are merged in.
	Output string
}

func (c *Config) Validate() error {
	if c.Connector == nil {
		return errors.New("connector is required")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Workers == 0 {
		c.Workers = defaultWorkers
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Engine == nil {
		eng, err := causal.New(causal.Logger(c.Logger))
		if err != nil {
			return err
		}
		c.Engine = eng
	}
	return nil
}

type Estimator struct {
	cfg   *Config
	log   *slog.Logger
	cache *DomainCache
}

func New(cfg *Config) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Estimator{
		cfg:   cfg,
		log:   cfg.Logger,
		cache: NewDomainCache(cfg.Metrics),
	}, nil
}

// Cache is the estimator's domain cache, shared by all runs of this Estimator.
func (est *Estimator) Cache() *DomainCache {
	return est.cache
}

// Report is the outcome of a Run.
type Report struct {
	RunID     string
	Records   []Record // merged with any previous output, sorted by manager
	Processed int      // managers run in this call
	Resumed   int      // managers skipped because the output already had them
	Summary   Summary
	Elapsed   time.Duration
}

// Run processes the managers not already in the output. A failure for one manager is recorded
// with status error and never stops the run. The report is written even when ctx is cancelled
// partway, holding whatever finished.
func (est *Estimator) Run(ctx context.Context, managers []string) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := est.log.With("run", runID)

	var prev []Record
	if est.cfg.Output != "" {
		var err error
		if prev, err = ReadRecords(est.cfg.Output); err != nil {
			return nil, fmt.Errorf("failed to read previous output: %w", err)
		}
	}

	done := make(map[string]bool, len(prev))
	for _, rec := range prev {
		done[rec.Manager] = true
	}

	var todo []string
	seen := make(map[string]bool)
	for _, m := range managers {
		if m == "" || done[m] || seen[m] {
			continue
		}
		seen[m] = true
		todo = append(todo, m)
	}

	log.Info("starting batch", "managers", len(todo), "resumed", len(managers)-len(todo), "workers", est.cfg.Workers)

	// finished is filled as tasks complete, so a cancelled run still reports what ran.
	var (
		finished []Record
		mu       sync.Mutex
	)

	if len(todo) > 0 {
		pool := pond.NewResultPool[Record](est.cfg.Workers)
		group := pool.NewGroupContext(ctx)
		for _, m := range todo {
			m := m
			group.Submit(func() Record {
				rec := est.processManager(ctx, m)
				if rec.Status == StatusError && ctx.Err() != nil {
					// interrupted, not failed: leave it for the next run
					return rec
				}
				mu.Lock()
				finished = append(finished, rec)
				mu.Unlock()
				return rec
			})
		}

		_, err := group.Wait()
		pool.StopAndWait()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("batch failed: %w", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()

	all := merge(prev, finished)
	if est.cfg.Output != "" {
		if werr := WriteRecords(est.cfg.Output, all); werr != nil {
			return nil, werr
		}
		log.Info("report written", "file", est.cfg.Output, "rows", len(all))
	}

	rep := &Report{
		RunID:     runID,
		Records:   all,
		Processed: len(finished),
		Resumed:   len(prev),
		Summary:   Summarize(all, est.cache.Len()),
		Elapsed:   time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return rep, ctxErr
	}

	return rep, nil
}

// processManager never fails: errors and panics become status error.
func (est *Estimator) processManager(ctx context.Context, manager string) (rec Record) {
	rec = newRecord(manager)
	start := time.Now()
	log := est.log.With("manager", rec.ManagerShort)

	defer func() {
		if p := recover(); p != nil {
			rec.Status, rec.Error = StatusError, fmt.Sprintf("panic: %v", p)
		}

		if rec.Status == StatusError {
			log.Error("manager failed", "error", rec.Error)
		} else {
			log.Info("manager done", "status", rec.Status, "correlations", rec.Correlations)
		}

		if m := est.cfg.Metrics; m != nil {
			m.ManagersTotal.WithLabelValues(string(rec.Status)).Inc()
			m.ManagerDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if err := est.estimate(ctx, manager, &rec); err != nil {
		rec.Status, rec.Error = StatusError, err.Error()
	}

	return rec
}

func (est *Estimator) estimate(ctx context.Context, manager string, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := est.cfg.Connector(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = conn.Close() }()

	profile, err := conn.Profile(ctx, manager)
	if err != nil {
		return err
	}
	if profile == nil {
		rec.Status = StatusNoProfile
		return nil
	}

	rec.SearchText = profile.SearchText
	rec.GeoCount = len(profile.GeoCodes)
	if profile.KPIMapping == "" {
		rec.Status = StatusNoKPIMapping
		return nil
	}
	rec.KPIMapping = profile.KPIMapping

	team, err := conn.TeamKPIs(ctx, manager)
	if err != nil {
		return err
	}
	if len(team) == 0 {
		rec.Status = StatusNoPPLData
		return nil
	}

	domain, _, err := est.cache.Get(ctx, profile.KPIMapping, profile.GeoCodes, conn.DomainKPIs)
	if err != nil {
		return err
	}
	if len(domain) == 0 {
		rec.Status = StatusNoDomainData
		return nil
	}

	results, err := est.cfg.Engine.RunPrepared(ctx, r.PrepareRCA(team, domain))
	if err != nil {
		return err
	}

	rec.Correlations = len(results)
	rec.Weak, rec.Moderate, rec.Strong = results.Counts()
	rec.Status = StatusOK

	if m := est.cfg.Metrics; m != nil {
		m.Significant.WithLabelValues(string(r.SignalWeak)).Add(float64(rec.Weak))
		m.Significant.WithLabelValues(string(r.SignalModerate)).Add(float64(rec.Moderate))
		m.Significant.WithLabelValues(string(r.SignalStrong)).Add(float64(rec.Strong))
	}

	return nil
}
