package repository

import (
	"context"
	"fmt"
	"time"

	"Foresight/internal/domain/models"
	"Foresight/internal/domain/repository"
	pkgpg "Foresight/pkg/postgres"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const forecastColumns = `id, user_id, asset, direction, compare_symbol, horizon,
	start_price, start_cmp_price, created_at, expires_at,
	target_low, target_high, confidence, status, end_price, resolved_at`

// PostgresForecastStore implements ForecastStore on PostgreSQL. All grading
// mutations go through a single transaction per run so readers never observe
// a partially graded batch.
type PostgresForecastStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresForecastStore creates the PostgreSQL forecast store.
func NewPostgresForecastStore(pg *pkgpg.Client, timeout time.Duration) repository.ForecastStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PostgresForecastStore{db: pg.DB(), timeout: timeout}
}

// Init ensures the singleton stats row exists. Table DDL runs in pkg wiring.
func (s *PostgresForecastStore) Init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO engine_stats (id, graded_predictions_count, last_graded_at)
		 VALUES (1, 0, now()) ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("init stats row: %w", err)
	}
	return nil
}

func (s *PostgresForecastStore) Insert(ctx context.Context, f *models.Forecast) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO forecasts (`+forecastColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		f.ID, f.UserID, f.Asset, f.Direction, f.CompareSymbol, f.Horizon,
		f.StartPrice, f.StartCmpPrice, f.CreatedAt, f.ExpiresAt,
		f.TargetLow, f.TargetHigh, f.Confidence, f.Status, f.EndPrice, f.ResolvedAt)
	if err != nil {
		return fmt.Errorf("insert forecast: %w", err)
	}
	return nil
}

// Due returns active forecasts whose deadline has passed, oldest deadline
// first, capped at limit to bound the following atomic commit.
func (s *PostgresForecastStore) Due(ctx context.Context, now time.Time, limit int) ([]*models.Forecast, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []*models.Forecast
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+forecastColumns+` FROM forecasts
		WHERE status = 'active' AND expires_at <= $1
		ORDER BY expires_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due forecasts: %w", err)
	}
	return out, nil
}

func (s *PostgresForecastStore) ActiveByHorizon(ctx context.Context, h models.Horizon) ([]*models.Forecast, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []*models.Forecast
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+forecastColumns+` FROM forecasts
		WHERE status = 'active' AND horizon = $1`, h)
	if err != nil {
		return nil, fmt.Errorf("query active by horizon: %w", err)
	}
	return out, nil
}

func (s *PostgresForecastStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Forecast, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []*models.Forecast
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+forecastColumns+` FROM forecasts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query forecasts by user: %w", err)
	}
	return out, nil
}

// CommitGradeBatch applies the run's whole write set in one transaction.
// The status guard keeps re-runs idempotent: a forecast already resolved by a
// previous run is untouched and not counted again.
func (s *PostgresForecastStore) CommitGradeBatch(ctx context.Context, batch *models.GradeBatch) error {
	if batch == nil || batch.Empty() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grade batch: %w", err)
	}
	defer tx.Rollback()

	var graded int64
	var lastResolved time.Time
	for _, r := range batch.Results {
		res, err := tx.ExecContext(ctx, `
			UPDATE forecasts
			SET status = $2, end_price = $3, resolved_at = $4,
			    start_cmp_price = COALESCE(start_cmp_price, $5)
			WHERE id = $1 AND status = 'active'`,
			r.ForecastID, r.Status, r.EndPrice, r.ResolvedAt, r.BackfillCmpPrice)
		if err != nil {
			return fmt.Errorf("grade forecast %s: %w", r.ForecastID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("grade forecast %s: %w", r.ForecastID, err)
		}
		graded += n
		if r.ResolvedAt.After(lastResolved) {
			lastResolved = r.ResolvedAt
		}
	}

	for _, snap := range batch.Snapshots {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO asset_snapshots (asset, price, ts) VALUES ($1, $2, $3)`,
			snap.Asset, snap.Price, snap.Timestamp); err != nil {
			return fmt.Errorf("insert snapshot %s: %w", snap.Asset, err)
		}
	}

	if graded > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE engine_stats
			SET graded_predictions_count = graded_predictions_count + $1,
			    last_graded_at = $2
			WHERE id = 1`, graded, lastResolved); err != nil {
			return fmt.Errorf("update stats: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grade batch: %w", err)
	}
	return nil
}

// UpsertConsensus overwrites every bucket for one horizon in one transaction.
func (s *PostgresForecastStore) UpsertConsensus(ctx context.Context, h models.Horizon, buckets []*models.ConsensusBucket) error {
	if len(buckets) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin consensus upsert: %w", err)
	}
	defer tx.Rollback()

	for _, b := range buckets {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO asset_consensus (asset, horizon, up_pct, down_pct, avg_confidence, avg_target, computed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (asset, horizon) DO UPDATE SET
				up_pct = EXCLUDED.up_pct,
				down_pct = EXCLUDED.down_pct,
				avg_confidence = EXCLUDED.avg_confidence,
				avg_target = EXCLUDED.avg_target,
				computed_at = EXCLUDED.computed_at`,
			b.Asset, h, b.UpPct, b.DownPct, b.AvgConfidence, b.AvgTarget, b.ComputedAt); err != nil {
			return fmt.Errorf("upsert consensus %s/%s: %w", b.Asset, h, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit consensus %s: %w", h, err)
	}
	return nil
}

func (s *PostgresForecastStore) Consensus(ctx context.Context, asset string) ([]*models.ConsensusBucket, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []*models.ConsensusBucket
	err := s.db.SelectContext(ctx, &out, `
		SELECT asset, horizon, up_pct, down_pct, avg_confidence, avg_target, computed_at
		FROM asset_consensus
		WHERE asset = $1
		ORDER BY horizon`, asset)
	if err != nil {
		return nil, fmt.Errorf("query consensus: %w", err)
	}
	return out, nil
}

func (s *PostgresForecastStore) History(ctx context.Context, asset string, from, to time.Time, limit int) ([]models.AssetSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q := `SELECT asset, price, ts FROM asset_snapshots WHERE asset = $1`
	args := []interface{}{asset}
	if !from.IsZero() {
		args = append(args, from)
		q += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		q += fmt.Sprintf(" AND ts <= $%d", len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d", len(args))

	var out []models.AssetSnapshot
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("query snapshot history: %w", err)
	}
	return out, nil
}

func (s *PostgresForecastStore) Stats(ctx context.Context) (*models.EngineStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var st models.EngineStats
	err := s.db.GetContext(ctx, &st, `
		SELECT graded_predictions_count, last_graded_at FROM engine_stats WHERE id = 1`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	return &st, nil
}

func (s *PostgresForecastStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresForecastStore) Close() error {
	return s.db.Close()
}
