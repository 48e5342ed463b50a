package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"Foresight/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGrader(store *fakeStore, oracle *fakeOracle, metrics *fakeMetrics, t *testing.T, batchSize int) *Grader {
	return NewGrader(store, oracle, nil, nil, metrics, testLogger(t), batchSize, 2)
}

func expired(asset string, dir models.Direction, startPrice float64) *models.Forecast {
	now := time.Now().UTC()
	return &models.Forecast{
		UserID:     "u1",
		Asset:      asset,
		Direction:  dir,
		Horizon:    models.Horizon24h,
		StartPrice: startPrice,
		Confidence: 3,
		Status:     models.StatusActive,
		CreatedAt:  now.Add(-25 * time.Hour),
		ExpiresAt:  now.Add(-time.Hour),
	}
}

func TestGradeDirection(t *testing.T) {
	cases := []struct {
		dir        models.Direction
		start, end float64
		won        bool
	}{
		{models.DirectionUp, 100, 110, true},
		{models.DirectionUp, 100, 90, false},
		{models.DirectionUp, 100, 100, false}, // equality loses
		{models.DirectionDown, 100, 90, true},
		{models.DirectionDown, 100, 110, false},
		{models.DirectionDown, 100, 100, false},
	}
	for _, c := range cases {
		got := gradeDirection(c.dir, c.start, c.end)
		assert.Equal(t, c.won, got, "%s start=%v end=%v", c.dir, c.start, c.end)
	}
}

func TestRunGradesDueForecasts(t *testing.T) {
	store := newFakeStore()
	oracle := newFakeOracle()
	oracle.spot["AAPL"] = 110
	oracle.spot["TSLA"] = 90

	up := expired("AAPL", models.DirectionUp, 100)
	down := expired("TSLA", models.DirectionDown, 100)
	store.add(up)
	store.add(down)

	g := newTestGrader(store, oracle, newFakeMetrics(), t, 200)
	require.NoError(t, g.Run(context.Background()))

	assert.Equal(t, models.StatusWon, up.Status)
	assert.Equal(t, models.StatusWon, down.Status)
	require.NotNil(t, up.EndPrice)
	assert.Equal(t, 110.0, *up.EndPrice)
	assert.NotNil(t, up.ResolvedAt)
	assert.Len(t, store.snapshots, 2)
	assert.EqualValues(t, 2, store.stats.GradedCount)
}

func TestRunOutperform(t *testing.T) {
	cases := []struct {
		name     string
		endPrice float64
		want     models.Status
	}{
		{"outperforms benchmark", 120, models.StatusWon}, // relEnd 2.4 > relStart 2.0
		{"underperforms benchmark", 90, models.StatusLost}, // relEnd 1.8 < relStart 2.0
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			store := newFakeStore()
			oracle := newFakeOracle()
			oracle.spot["AAPL"] = c.endPrice
			oracle.spot["SPY"] = 50

			startCmp := 50.0
			cmp := "SPY"
			f := expired("AAPL", models.DirectionOutperform, 100)
			f.CompareSymbol = &cmp
			f.StartCmpPrice = &startCmp
			store.add(f)

			g := newTestGrader(store, oracle, newFakeMetrics(), t, 200)
			require.NoError(t, g.Run(context.Background()))
			assert.Equal(t, c.want, f.Status)
		})
	}
}

func TestRunBackfillsMissingCmpPrice(t *testing.T) {
	store := newFakeStore()
	oracle := newFakeOracle()
	oracle.spot["AAPL"] = 120
	oracle.spot["SPY"] = 50

	cmp := "SPY"
	f := expired("AAPL", models.DirectionOutperform, 100)
	f.CompareSymbol = &cmp // startCmpPrice never captured at creation
	store.add(f)

	g := newTestGrader(store, oracle, newFakeMetrics(), t, 200)
	require.NoError(t, g.Run(context.Background()))

	require.NotNil(t, f.StartCmpPrice)
	assert.Equal(t, 50.0, *f.StartCmpPrice)
	assert.Equal(t, models.StatusWon, f.Status)
}

func TestRunIsIdempotent(t *testing.T) {
	store := newFakeStore()
	oracle := newFakeOracle()
	oracle.spot["AAPL"] = 110

	f := expired("AAPL", models.DirectionUp, 100)
	store.add(f)

	g := newTestGrader(store, oracle, newFakeMetrics(), t, 200)
	require.NoError(t, g.Run(context.Background()))
	require.NoError(t, g.Run(context.Background()))

	assert.Equal(t, models.StatusWon, f.Status)
	assert.EqualValues(t, 1, store.stats.GradedCount)
	assert.Len(t, store.snapshots, 1) // second run staged nothing
}

func TestRunBatchCap(t *testing.T) {
	store := newFakeStore()
	oracle := newFakeOracle()
	oracle.spot["AAPL"] = 110

	now := time.Now().UTC()
	for i := 0; i < 500; i++ {
		f := expired("AAPL", models.DirectionUp, 100)
		f.ID = fmt.Sprintf("f-%03d", i)
		f.ExpiresAt = now.Add(-time.Duration(500-i) * time.Minute)
		store.add(f)
	}

	g := newTestGrader(store, oracle, newFakeMetrics(), t, 200)
	require.NoError(t, g.Run(context.Background()))
	assert.EqualValues(t, 200, store.stats.GradedCount)

	// the oldest deadlines went first
	assert.Equal(t, models.StatusWon, store.forecasts["f-000"].Status)
	assert.Equal(t, models.StatusWon, store.forecasts["f-199"].Status)
	assert.Equal(t, models.StatusActive, store.forecasts["f-200"].Status)

	require.NoError(t, g.Run(context.Background()))
	assert.EqualValues(t, 400, store.stats.GradedCount)
}

func TestRunFetchesOncePerSymbol(t *testing.T) {
	store := newFakeStore()
	oracle := newFakeOracle()
	oracle.spot["AAPL"] = 110

	for i := 0; i < 50; i++ {
		store.add(expired("AAPL", models.DirectionUp, 100))
	}

	g := newTestGrader(store, oracle, newFakeMetrics(), t, 200)
	require.NoError(t, g.Run(context.Background()))
	assert.Equal(t, 1, oracle.calls["AAPL"])
}

func TestRunSkipsFailedSymbols(t *testing.T) {
	store := newFakeStore()
	oracle := newFakeOracle()
	oracle.spot["AAPL"] = 110
	oracle.fails["TSLA"] = errors.New("provider down")

	ok := expired("AAPL", models.DirectionUp, 100)
	stuck := expired("TSLA", models.DirectionUp, 100)
	store.add(ok)
	store.add(stuck)

	metrics := newFakeMetrics()
	g := newTestGrader(store, oracle, metrics, t, 200)
	require.NoError(t, g.Run(context.Background()))

	assert.Equal(t, models.StatusWon, ok.Status)
	assert.Equal(t, models.StatusActive, stuck.Status) // retried next run
	assert.Equal(t, 1, metrics.errors["oracle_fetch"])
}

func TestRunCommitFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.commitErr = errors.New("transaction rejected")
	oracle := newFakeOracle()
	oracle.spot["AAPL"] = 110
	f := expired("AAPL", models.DirectionUp, 100)
	store.add(f)

	g := newTestGrader(store, oracle, newFakeMetrics(), t, 200)
	err := g.Run(context.Background())
	require.Error(t, err)

	// nothing applied, forecast is retried next scheduled run
	assert.Equal(t, models.StatusActive, f.Status)
	assert.EqualValues(t, 0, store.stats.GradedCount)
}

func TestRunUsesCloseForLongHorizons(t *testing.T) {
	store := newFakeStore()
	oracle := newFakeOracle()
	oracle.close["AAPL"] = 105

	f := expired("AAPL", models.DirectionUp, 100)
	f.Horizon = models.Horizon7d
	store.add(f)

	g := newTestGrader(store, oracle, newFakeMetrics(), t, 200)
	require.NoError(t, g.Run(context.Background()))

	assert.Equal(t, models.StatusWon, f.Status)
	require.NotNil(t, f.EndPrice)
	assert.Equal(t, 105.0, *f.EndPrice)
}

func TestRunCancelledContextQueuesNoFetches(t *testing.T) {
	store := newFakeStore()
	oracle := newFakeOracle()
	for i := 0; i < 10; i++ {
		oracle.spot[fmt.Sprintf("AS%d", i)] = 100
		store.add(expired(fmt.Sprintf("AS%d", i), models.DirectionUp, 90))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := newTestGrader(store, oracle, newFakeMetrics(), t, 200)
	require.NoError(t, g.Run(ctx))

	assert.Empty(t, oracle.calls)
	assert.Equal(t, 0, store.commits)
}
