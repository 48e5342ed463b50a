package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Foresight/internal/domain/models"
	drepo "Foresight/internal/domain/repository"
	applogger "Foresight/pkg/logger"

	"github.com/google/uuid"
)

// priceCache holds the prices resolved during one grading run. It is created
// per run and never shared across runs, so overlapping invocations cannot
// contaminate each other with stale prices.
type priceCache struct {
	mu sync.Mutex
	m  map[string]float64
}

func newPriceCache() *priceCache { return &priceCache{m: make(map[string]float64)} }

func (c *priceCache) get(symbol string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[symbol]
	return v, ok
}

func (c *priceCache) set(symbol string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[symbol] = price
}

// Grader grades due forecasts against oracle prices and commits outcomes as
// one atomic batch per run. Runs are idempotent: a forecast resolved by an
// earlier run is never regraded.
type Grader struct {
	store        drepo.ForecastStore
	oracle       drepo.PriceOracle
	archive      drepo.SnapshotArchive
	pub          drepo.Publisher
	metrics      drepo.Metrics
	logger       *applogger.Logger
	batchSize    int
	fetchWorkers int
}

// NewGrader creates a new Grader instance.
func NewGrader(
	store drepo.ForecastStore,
	oracle drepo.PriceOracle,
	archive drepo.SnapshotArchive,
	pub drepo.Publisher,
	metrics drepo.Metrics,
	logger *applogger.Logger,
	batchSize int,
	fetchWorkers int,
) *Grader {
	if batchSize <= 0 {
		batchSize = 200
	}
	if fetchWorkers <= 0 {
		fetchWorkers = 4
	}
	return &Grader{
		store:        store,
		oracle:       oracle,
		archive:      archive,
		pub:          pub,
		metrics:      metrics,
		logger:       logger,
		batchSize:    batchSize,
		fetchWorkers: fetchWorkers,
	}
}

// Run executes one grading pass. Per-symbol fetch failures are non-fatal:
// the affected forecasts stay active and are retried on the next run. A
// failed batch commit aborts the whole run with no partial state applied.
func (g *Grader) Run(ctx context.Context) error {
	start := time.Now()
	now := start.UTC()

	due, err := g.store.Due(ctx, now, g.batchSize)
	if err != nil {
		g.metrics.RecordError("grade_query")
		return fmt.Errorf("query due forecasts: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	cache := g.fetchPrices(ctx, due, newPriceCache())
	batch, events := g.stage(ctx, due, cache, now)
	if batch.Empty() {
		g.logger.Warn("grading run staged nothing", applogger.Int("due", len(due)))
		return nil
	}

	if err := g.store.CommitGradeBatch(ctx, batch); err != nil {
		g.metrics.RecordError("grade_commit")
		return fmt.Errorf("commit grade batch: %w", err)
	}

	for _, r := range batch.Results {
		g.metrics.RecordGraded(string(r.Status), 1)
	}
	g.metrics.RecordRunDuration("grade", time.Since(start).Seconds())
	g.logger.Info("grading run committed",
		applogger.Int("due", len(due)),
		applogger.Int("graded", len(batch.Results)),
	)

	// Post-commit side channels are best-effort: the canonical rows are
	// already durable, so failures here are logged, not retried.
	if g.archive != nil {
		if err := g.archive.ArchiveBatch(ctx, batch.Snapshots); err != nil {
			g.metrics.RecordError("snapshot_archive")
			g.logger.Error("snapshot archive failed", applogger.Error(err))
		}
	}
	if g.pub != nil {
		if err := g.pub.PublishResolved(ctx, events); err != nil {
			g.metrics.RecordError("publish_resolved")
			g.logger.Error("resolved event publish failed", applogger.Error(err))
		}
	}
	return nil
}

// fetchPrices resolves every symbol the batch needs, once per symbol, through
// a bounded worker pool. The representative forecast for a symbol decides
// which price applies: spot for 24h horizons, the close on the expiry date
// for 7d/30d. Failed symbols are simply absent from the cache.
func (g *Grader) fetchPrices(ctx context.Context, due []*models.Forecast, cache *priceCache) *priceCache {
	// first forecast referencing each symbol is its representative
	reps := make(map[string]*models.Forecast)
	order := make([]string, 0, len(due))
	for _, f := range due {
		if _, ok := reps[f.Asset]; !ok {
			reps[f.Asset] = f
			order = append(order, f.Asset)
		}
		if f.NeedsCompare() {
			if _, ok := reps[*f.CompareSymbol]; !ok {
				reps[*f.CompareSymbol] = f
				order = append(order, *f.CompareSymbol)
			}
		}
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < g.fetchWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				price, err := g.fetchFor(ctx, symbol, reps[symbol])
				if err != nil {
					g.metrics.RecordOracleError("fetch")
					g.logger.Warn("price fetch failed",
						applogger.String("symbol", symbol), applogger.Error(err))
					continue
				}
				cache.set(symbol, price)
			}
		}()
	}
send:
	for _, symbol := range order {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- symbol:
		case <-ctx.Done():
			break send
		}
	}
	close(jobs)
	wg.Wait()
	return cache
}

func (g *Grader) fetchFor(ctx context.Context, symbol string, rep *models.Forecast) (float64, error) {
	if rep.Horizon == models.Horizon24h {
		return g.oracle.FetchSpot(ctx, symbol)
	}
	return g.oracle.FetchCloseOn(ctx, symbol, rep.ExpiresAt)
}

// stage computes the grading decision for every due forecast against the
// run's price cache. Forecasts whose prices are unavailable are skipped and
// reconsidered next run.
func (g *Grader) stage(ctx context.Context, due []*models.Forecast, cache *priceCache, now time.Time) (*models.GradeBatch, []*models.ForecastResolvedEvent) {
	batch := &models.GradeBatch{}
	events := make([]*models.ForecastResolvedEvent, 0, len(due))

	for _, f := range due {
		endPrice, ok := cache.get(f.Asset)
		if !ok {
			g.logger.Warn("no price cached, forecast stays active",
				applogger.String("forecast", f.ID), applogger.String("asset", f.Asset))
			continue
		}

		var won bool
		var backfill *float64
		if f.Direction == models.DirectionOutperform {
			if !f.NeedsCompare() {
				g.logger.Warn("outperform forecast without compare symbol",
					applogger.String("forecast", f.ID))
				continue
			}
			cmpWon, cmpBackfill, ok := g.gradeOutperform(ctx, f, endPrice, cache)
			if !ok {
				continue
			}
			won, backfill = cmpWon, cmpBackfill
		} else {
			won = gradeDirection(f.Direction, f.StartPrice, endPrice)
		}

		status := models.StatusLost
		if won {
			status = models.StatusWon
		}
		batch.Results = append(batch.Results, models.GradeResult{
			ForecastID:       f.ID,
			Asset:            f.Asset,
			Status:           status,
			EndPrice:         endPrice,
			ResolvedAt:       now,
			BackfillCmpPrice: backfill,
		})
		batch.Snapshots = append(batch.Snapshots, models.AssetSnapshot{
			Asset:     f.Asset,
			Price:     endPrice,
			Timestamp: now,
		})
		events = append(events, &models.ForecastResolvedEvent{
			EventID:    uuid.NewString(),
			ForecastID: f.ID,
			Asset:      f.Asset,
			Status:     status,
			EndPrice:   endPrice,
			ResolvedAt: now,
		})
		g.metrics.RecordLastPrice(f.Asset, endPrice)
	}
	return batch, events
}

// gradeOutperform grades by relative performance ratio. The comparison start
// price uses the stored value when present, otherwise the cached spot for the
// benchmark, fetched fresh if the pool never resolved it.
func (g *Grader) gradeOutperform(ctx context.Context, f *models.Forecast, endPrice float64, cache *priceCache) (won bool, backfill *float64, ok bool) {
	cmp := *f.CompareSymbol

	var startCmp float64
	switch {
	case f.StartCmpPrice != nil:
		startCmp = *f.StartCmpPrice
	default:
		v, cached := cache.get(cmp)
		if !cached {
			spot, err := g.oracle.FetchSpot(ctx, cmp)
			if err != nil {
				g.metrics.RecordOracleError("fetch")
				g.logger.Warn("comparison spot fetch failed",
					applogger.String("compare", cmp), applogger.Error(err))
				return false, nil, false
			}
			cache.set(cmp, spot)
			v = spot
		}
		startCmp = v
		backfill = &startCmp
	}

	endCmp, cached := cache.get(cmp)
	if !cached {
		g.logger.Warn("no comparison price cached",
			applogger.String("forecast", f.ID), applogger.String("compare", cmp))
		return false, nil, false
	}
	if startCmp == 0 || endCmp == 0 {
		g.logger.Warn("zero comparison price",
			applogger.String("forecast", f.ID), applogger.String("compare", cmp))
		return false, nil, false
	}

	relStart := f.StartPrice / startCmp
	relEnd := endPrice / endCmp
	return relEnd > relStart, backfill, true
}

// gradeDirection grades an absolute-direction forecast. Price equality
// always loses.
func gradeDirection(direction models.Direction, start, end float64) bool {
	if direction == models.DirectionUp {
		return end > start
	}
	return end < start
}
