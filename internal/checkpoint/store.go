package checkpoint

import (
	"context"

	"riskradar/pkg/models"
)

// Store persists scan progress: the last fully-processed block height and
// the set of already-processed event ids. A write that returns nil must
// survive process restart; the scan loop treats a failed write as fatal to
// the current cycle.
type Store interface {
	// LastHeight returns the persisted height and whether one was recorded.
	LastHeight(ctx context.Context) (uint64, bool, error)
	// SetLastHeight records that every event up to height has been handled.
	SetLastHeight(ctx context.Context, height uint64) error
	// HasProcessed reports whether the event id was already handled within
	// the current resumption window.
	HasProcessed(ctx context.Context, eventID string) (bool, error)
	// MarkProcessed records the deployment before the pipeline runs.
	MarkProcessed(ctx context.Context, dep models.Deployment) error
	Close() error
}
