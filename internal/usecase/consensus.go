package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"Foresight/internal/domain/models"
	drepo "Foresight/internal/domain/repository"
	applogger "Foresight/pkg/logger"
)

// Aggregator recomputes per-asset sentiment buckets from currently active
// forecasts. Each run is a full overwrite per horizon, not an incremental
// merge: active sets are small and cleared continuously by grading.
type Aggregator struct {
	store   drepo.ForecastStore
	metrics drepo.Metrics
	logger  *applogger.Logger
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(store drepo.ForecastStore, metrics drepo.Metrics, logger *applogger.Logger) *Aggregator {
	return &Aggregator{store: store, metrics: metrics, logger: logger}
}

// Run recomputes consensus for every horizon. Buckets for one horizon commit
// atomically before the next horizon is processed.
func (a *Aggregator) Run(ctx context.Context) error {
	start := time.Now()
	now := start.UTC()

	for _, h := range models.Horizons {
		active, err := a.store.ActiveByHorizon(ctx, h)
		if err != nil {
			a.metrics.RecordError("consensus_query")
			return fmt.Errorf("query active %s forecasts: %w", h, err)
		}

		buckets := buildBuckets(active, h, now)
		if err := a.store.UpsertConsensus(ctx, h, buckets); err != nil {
			a.metrics.RecordError("consensus_commit")
			return fmt.Errorf("upsert consensus %s: %w", h, err)
		}
		a.logger.Debug("consensus recomputed",
			applogger.String("horizon", string(h)),
			applogger.Int("assets", len(buckets)),
		)
	}

	a.metrics.RecordRunDuration("consensus", time.Since(start).Seconds())
	return nil
}

type bucketAcc struct {
	up, down int
	conf     int
	cnt      int
	targets  []float64
}

// buildBuckets folds active forecasts into per-asset consensus buckets.
func buildBuckets(active []*models.Forecast, h models.Horizon, now time.Time) []*models.ConsensusBucket {
	acc := make(map[string]*bucketAcc)
	for _, f := range active {
		b, ok := acc[f.Asset]
		if !ok {
			b = &bucketAcc{}
			acc[f.Asset] = b
		}
		switch f.Direction {
		case models.DirectionUp:
			b.up++
		case models.DirectionDown:
			b.down++
		}
		conf := f.Confidence
		if conf <= 0 {
			conf = 3
		}
		b.conf += conf
		b.cnt++
		if f.TargetLow != nil && f.TargetHigh != nil {
			b.targets = append(b.targets, (*f.TargetLow+*f.TargetHigh)/2)
		}
	}

	assets := make([]string, 0, len(acc))
	for asset := range acc {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	out := make([]*models.ConsensusBucket, 0, len(assets))
	for _, asset := range assets {
		b := acc[asset]
		bucket := &models.ConsensusBucket{
			Asset:         asset,
			Horizon:       h,
			UpPct:         int(math.Round(100 * float64(b.up) / float64(b.cnt))),
			DownPct:       int(math.Round(100 * float64(b.down) / float64(b.cnt))),
			AvgConfidence: round2(float64(b.conf) / float64(b.cnt)),
			ComputedAt:    now,
		}
		if len(b.targets) > 0 {
			var sum float64
			for _, t := range b.targets {
				sum += t
			}
			avg := round2(sum / float64(len(b.targets)))
			bucket.AvgTarget = &avg
		}
		out = append(out, bucket)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
