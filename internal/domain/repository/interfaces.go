package repository

import (
	"context"
	"time"

	"Foresight/internal/domain/models"
)

// PriceOracle fetches reference prices from the external quote provider.
type PriceOracle interface {
	// FetchSpot returns the current/last price for a raw symbol.
	FetchSpot(ctx context.Context, symbol string) (float64, error)
	// FetchCloseOn returns the daily close for the given calendar date,
	// falling back to the most recent prior trading day within a bounded
	// lookback window.
	FetchCloseOn(ctx context.Context, symbol string, date time.Time) (float64, error)
}

// ForecastStore is the persisted forecast collection and its engine primitives.
type ForecastStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Insert(ctx context.Context, f *models.Forecast) error
	Due(ctx context.Context, now time.Time, limit int) ([]*models.Forecast, error)
	ActiveByHorizon(ctx context.Context, h models.Horizon) ([]*models.Forecast, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.Forecast, error)

	// CommitGradeBatch applies a whole grading run's write set in one
	// transaction: status transitions, startCmpPrice backfills, snapshot
	// inserts and the graded counter increment. All-or-nothing.
	CommitGradeBatch(ctx context.Context, batch *models.GradeBatch) error

	// UpsertConsensus overwrites all buckets for one horizon atomically.
	UpsertConsensus(ctx context.Context, h models.Horizon, buckets []*models.ConsensusBucket) error
	Consensus(ctx context.Context, asset string) ([]*models.ConsensusBucket, error)

	// History returns archived price snapshots for an asset, newest first.
	// Zero from/to bounds are ignored.
	History(ctx context.Context, asset string, from, to time.Time, limit int) ([]models.AssetSnapshot, error)
	Stats(ctx context.Context) (*models.EngineStats, error)

	Health(ctx context.Context) error // ping
	Close() error
}

// SnapshotArchive mirrors graded snapshots into the analytics store.
// Best-effort: archive failures never fail a grading run.
type SnapshotArchive interface {
	ArchiveBatch(ctx context.Context, snaps []models.AssetSnapshot) error
	Close() error
}

// Publisher emits resolved-forecast events for downstream consumers.
type Publisher interface {
	PublishResolved(ctx context.Context, events []*models.ForecastResolvedEvent) error
	Close() error
}

// Metrics records operational counters and gauges.
type Metrics interface {
	RecordGraded(status string, n int)
	RecordOracleError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordRunDuration(job string, seconds float64)
	RecordError(kind string)
}
