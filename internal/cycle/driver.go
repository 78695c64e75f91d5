// Package cycle runs the load, read, accumulate and persist pipeline at a
// fixed interval.
package cycle

import (
	"context"
	"errors"
	"time"

	"github.com/oicur0t/logstat/internal/logsource"
	"github.com/oicur0t/logstat/internal/rules"
	"github.com/oicur0t/logstat/internal/stats"
	"github.com/oicur0t/logstat/pkg/models"
	"go.uber.org/zap"
)

// DefaultInterval is the pause between cycles when none is configured
const DefaultInterval = time.Second

// Options holds the inputs of every cycle
type Options struct {
	RulesPath string
	LogPath   string
	Interval  time.Duration
}

// Driver runs scan cycles. A Driver carries no data from one cycle to the next.
type Driver struct {
	opts    Options
	sinks   []stats.Sink
	logger  *zap.Logger
	metrics *Metrics
	status  *Status

	loadRules func(path string) (*rules.RuleSet, error)
	readLines func(ctx context.Context, path string) ([]string, error)
	wait      func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// Option customizes a Driver
type Option func(*Driver)

// WithMetrics records cycle outcomes and counters in m
func WithMetrics(m *Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithStatus publishes each cycle's outcome to s
func WithStatus(s *Status) Option {
	return func(d *Driver) { d.status = s }
}

// WithWait replaces the pause between cycles
func WithWait(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Driver) { d.wait = wait }
}

// WithClock replaces the time source used to stamp snapshots
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// New creates a cycle driver writing each snapshot to sinks in order
func New(opts Options, sinks []stats.Sink, logger *zap.Logger, options ...Option) *Driver {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	d := &Driver{
		opts:      opts,
		sinks:     sinks,
		logger:    logger,
		loadRules: rules.Load,
		readLines: logsource.ReadLines,
		wait:      sleep,
		now:       time.Now,
	}
	for _, o := range options {
		o(d)
	}
	return d
}

// Run executes cycles until ctx is cancelled. Failed cycles are logged and
// the loop carries on with the next one.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("Starting scan loop",
		zap.String("rules", d.opts.RulesPath),
		zap.String("log", d.opts.LogPath),
		zap.Duration("interval", d.opts.Interval))

	for {
		d.RunOnce(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := d.wait(ctx, d.opts.Interval); err != nil {
			return err
		}
	}
}

// RunOnce performs a single cycle: load rules, read the log, count per
// server and write the snapshot to every sink. A missing log file counts as
// an empty one. Any other failure ends the cycle and is returned. A read cut
// short by ctx returns ctx.Err() and is not recorded as a cycle outcome.
func (d *Driver) RunOnce(ctx context.Context) (models.Snapshot, error) {
	start := d.now()

	// Load rules, fresh every cycle
	rs, err := d.loadRules(d.opts.RulesPath)
	if err != nil {
		d.logger.Error("Failed to load rules, skipping cycle",
			zap.String("path", d.opts.RulesPath),
			zap.Error(err))
		d.finish(start, resultRulesError, nil, err)
		return models.Snapshot{}, err
	}

	// Read log file
	lines, err := d.readLines(ctx, d.opts.LogPath)
	if err != nil {
		// Shutdown interrupted the read; the cycle is abandoned, not failed
		if ctxErr := ctx.Err(); ctxErr != nil {
			d.logger.Info("Scan interrupted by shutdown",
				zap.String("path", d.opts.LogPath))
			return models.Snapshot{}, ctxErr
		}
		if !errors.Is(err, logsource.ErrNotFound) {
			d.logger.Error("Failed to read log file, skipping cycle",
				zap.String("path", d.opts.LogPath),
				zap.Error(err))
			d.finish(start, resultReadError, nil, err)
			return models.Snapshot{}, err
		}
		d.logger.Warn("Log file not found, treating it as empty",
			zap.String("path", d.opts.LogPath))
		lines = nil
	}

	// Count per server
	serverStats, tally := stats.Fold(lines, rs)
	snapshot := models.Snapshot{
		Stats:        serverStats,
		TakenAt:      start,
		LinesRead:    tally.Read,
		LinesMatched: tally.Matched,
		LinesCounted: tally.Counted,
	}

	// Every sink gets the snapshot even when an earlier one failed
	var persistErrs []error
	for _, sink := range d.sinks {
		if err := sink.Write(ctx, snapshot); err != nil {
			d.logger.Error("Failed to persist snapshot",
				zap.String("sink", sink.Name()),
				zap.Error(err))
			persistErrs = append(persistErrs, err)
		}
	}
	if err := errors.Join(persistErrs...); err != nil {
		d.finish(start, resultPersistError, &snapshot, err)
		return snapshot, err
	}

	d.logger.Debug("Cycle complete",
		zap.Int("rules", rs.Len()),
		zap.Int("lines", tally.Read),
		zap.Int("matched", tally.Matched),
		zap.Int("servers", len(serverStats)),
		zap.Duration("duration", d.now().Sub(start)))
	d.finish(start, resultOK, &snapshot, nil)
	return snapshot, nil
}

func (d *Driver) finish(start time.Time, result string, snapshot *models.Snapshot, err error) {
	d.metrics.observeCycle(result, d.now().Sub(start))
	if snapshot != nil {
		d.metrics.publish(*snapshot)
	}
	d.status.record(start, snapshot, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
