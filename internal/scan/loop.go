package scan

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"riskradar/internal/checkpoint"
	"riskradar/internal/logger"
	"riskradar/pkg/metrics"
	"riskradar/pkg/models"
)

// Scanner reads the chain: tip height and per-block deployments.
type Scanner interface {
	LatestHeight(ctx context.Context) (uint64, error)
	DeploymentsInBlock(ctx context.Context, height uint64) ([]models.Deployment, error)
}

// Pipeline consumes one deployment. Degradation is absorbed inside the
// pipeline; a returned error is fatal for the current height.
type Pipeline interface {
	Process(ctx context.Context, dep models.Deployment) error
}

// Config controls the scan loop.
type Config struct {
	// StartBlock is "latest" (resume from checkpoint, else the chain tip)
	// or an explicit height after which scanning begins.
	StartBlock   string
	PollInterval time.Duration
	// BatchCap bounds heights processed per cycle to keep latency bounded.
	BatchCap int
}

// Loop monotonically advances through block heights, discovers deployments,
// and drives the pipeline with crash-safe checkpointing. A single Loop is
// the only writer of its checkpoint store.
type Loop struct {
	cfg     Config
	scanner Scanner
	pipe    Pipeline
	store   checkpoint.Store
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewLoop creates a scan loop.
func NewLoop(cfg Config, scanner Scanner, pipe Pipeline, store checkpoint.Store, log *logger.Logger, m *metrics.Metrics) *Loop {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.BatchCap <= 0 {
		cfg.BatchCap = 10
	}
	if cfg.StartBlock == "" {
		cfg.StartBlock = "latest"
	}
	return &Loop{
		cfg:     cfg,
		scanner: scanner,
		pipe:    pipe,
		store:   store,
		log:     log,
		metrics: m,
	}
}

// Run executes the loop until the context is canceled.
func (l *Loop) Run(ctx context.Context) error {
	cursor, err := l.resolveStart(ctx)
	if err != nil {
		return fmt.Errorf("resolve start height: %w", err)
	}

	l.log.Infof("Scan loop started: next_height=%d poll=%s batch_cap=%d", cursor+1, l.cfg.PollInterval, l.cfg.BatchCap)

	for {
		caughtUp := l.cycle(ctx, &cursor)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !caughtUp {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cfg.PollInterval):
		}
	}
}

// resolveStart loads the cursor from the checkpoint, or resolves the
// "latest" sentinel against the chain tip exactly once.
func (l *Loop) resolveStart(ctx context.Context) (uint64, error) {
	if l.cfg.StartBlock != "latest" {
		h, err := strconv.ParseUint(l.cfg.StartBlock, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid start_block %q: %w", l.cfg.StartBlock, err)
		}
		return h, nil
	}

	h, found, err := l.store.LastHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	if found {
		l.log.Infof("Resuming from checkpoint: last_height=%d", h)
		return h, nil
	}

	tip, err := l.scanner.LatestHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("read chain tip: %w", err)
	}
	l.log.Infof("No checkpoint, starting from chain tip: %d", tip)
	return tip, nil
}

// cycle processes up to BatchCap heights and reports whether the cursor has
// caught up with the tip (meaning the caller should sleep). A failed height
// stops the cycle without advancing past it; the next cycle retries it.
func (l *Loop) cycle(ctx context.Context, cursor *uint64) bool {
	tip, err := l.scanner.LatestHeight(ctx)
	if err != nil {
		l.log.Errorf("Tip poll failed: %v", err)
		return true
	}
	if *cursor >= tip {
		return true
	}

	end := tip
	if limit := *cursor + uint64(l.cfg.BatchCap); limit < end {
		end = limit
	}

	for h := *cursor + 1; h <= end; h++ {
		if ctx.Err() != nil {
			return true
		}
		if err := l.processHeight(ctx, h); err != nil {
			l.log.Errorf("Height %d failed, will retry next cycle: %v", h, err)
			return true
		}
		*cursor = h
		l.metrics.BlockScanned()
		l.metrics.ObserveHeight(h)
	}

	return end >= tip
}

// processHeight drains one block. Events are marked processed before the
// pipeline runs: a crash after the mark loses that event rather than risking
// duplicate external side effects. Checkpoint write failures are fatal to
// the height so the durable state never lags the in-memory cursor.
func (l *Loop) processHeight(ctx context.Context, height uint64) error {
	deps, err := l.scanner.DeploymentsInBlock(ctx, height)
	if err != nil {
		return fmt.Errorf("scan block: %w", err)
	}

	for _, dep := range deps {
		seen, err := l.store.HasProcessed(ctx, dep.EventID)
		if err != nil {
			return fmt.Errorf("check processed %s: %w", dep.EventID, err)
		}
		if seen {
			l.log.Debugf("Skipping already-processed event %s", dep.EventID)
			l.metrics.DeploymentSkipped()
			continue
		}

		if err := l.store.MarkProcessed(ctx, dep); err != nil {
			return fmt.Errorf("mark processed %s: %w", dep.EventID, err)
		}
		l.metrics.DeploymentSeen()

		if err := l.pipe.Process(ctx, dep); err != nil {
			return fmt.Errorf("pipeline for %s: %w", dep.EventID, err)
		}
	}

	if err := l.store.SetLastHeight(ctx, height); err != nil {
		return fmt.Errorf("advance checkpoint to %d: %w", height, err)
	}
	return nil
}
