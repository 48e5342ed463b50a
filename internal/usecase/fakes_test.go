package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"Foresight/internal/domain/models"
	applogger "Foresight/pkg/logger"

	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	return l
}

// fakeStore is an in-memory ForecastStore mirroring the guarded-update and
// counter semantics of the PostgreSQL implementation.
type fakeStore struct {
	mu        sync.Mutex
	forecasts map[string]*models.Forecast
	snapshots []models.AssetSnapshot
	consensus map[models.Horizon][]*models.ConsensusBucket
	stats     models.EngineStats
	commits   int

	dueErr    error
	commitErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		forecasts: make(map[string]*models.Forecast),
		consensus: make(map[models.Horizon][]*models.ConsensusBucket),
	}
}

func (s *fakeStore) add(f *models.Forecast) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == "" {
		f.ID = fmt.Sprintf("f-%d", len(s.forecasts)+1)
	}
	s.forecasts[f.ID] = f
}

func (s *fakeStore) Init(ctx context.Context) error { return nil }

func (s *fakeStore) Insert(ctx context.Context, f *models.Forecast) error {
	s.add(f)
	return nil
}

func (s *fakeStore) Due(ctx context.Context, now time.Time, limit int) ([]*models.Forecast, error) {
	if s.dueErr != nil {
		return nil, s.dueErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Forecast
	for _, f := range s.forecasts {
		if f.Status == models.StatusActive && !f.ExpiresAt.After(now) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) ActiveByHorizon(ctx context.Context, h models.Horizon) ([]*models.Forecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Forecast
	for _, f := range s.forecasts {
		if f.Status == models.StatusActive && f.Horizon == h {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Forecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Forecast
	for _, f := range s.forecasts {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeStore) CommitGradeBatch(ctx context.Context, batch *models.GradeBatch) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	var graded int64
	for _, r := range batch.Results {
		f, ok := s.forecasts[r.ForecastID]
		if !ok || f.Status != models.StatusActive {
			continue // guarded update: already resolved rows untouched
		}
		f.Status = r.Status
		end := r.EndPrice
		f.EndPrice = &end
		at := r.ResolvedAt
		f.ResolvedAt = &at
		if f.StartCmpPrice == nil && r.BackfillCmpPrice != nil {
			v := *r.BackfillCmpPrice
			f.StartCmpPrice = &v
		}
		graded++
	}
	s.snapshots = append(s.snapshots, batch.Snapshots...)
	if graded > 0 {
		s.stats.GradedCount += graded
	}
	return nil
}

func (s *fakeStore) UpsertConsensus(ctx context.Context, h models.Horizon, buckets []*models.ConsensusBucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consensus[h] = buckets
	return nil
}

func (s *fakeStore) Consensus(ctx context.Context, asset string) ([]*models.ConsensusBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ConsensusBucket
	for _, buckets := range s.consensus {
		for _, b := range buckets {
			if b.Asset == asset {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

func (s *fakeStore) History(ctx context.Context, asset string, from, to time.Time, limit int) ([]models.AssetSnapshot, error) {
	return nil, nil
}

func (s *fakeStore) Stats(ctx context.Context) (*models.EngineStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	return &st, nil
}

func (s *fakeStore) Health(ctx context.Context) error { return nil }
func (s *fakeStore) Close() error                     { return nil }

// fakeOracle serves canned prices and counts fetches per symbol.
type fakeOracle struct {
	mu    sync.Mutex
	spot  map[string]float64
	close map[string]float64
	fails map[string]error
	calls map[string]int
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		spot:  make(map[string]float64),
		close: make(map[string]float64),
		fails: make(map[string]error),
		calls: make(map[string]int),
	}
}

func (o *fakeOracle) FetchSpot(ctx context.Context, symbol string) (float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[symbol]++
	if err, ok := o.fails[symbol]; ok {
		return 0, err
	}
	p, ok := o.spot[symbol]
	if !ok {
		return 0, fmt.Errorf("no spot for %s", symbol)
	}
	return p, nil
}

func (o *fakeOracle) FetchCloseOn(ctx context.Context, symbol string, date time.Time) (float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[symbol]++
	if err, ok := o.fails[symbol]; ok {
		return 0, err
	}
	p, ok := o.close[symbol]
	if !ok {
		return 0, fmt.Errorf("no close for %s", symbol)
	}
	return p, nil
}

// fakeMetrics counts recorder calls.
type fakeMetrics struct {
	mu     sync.Mutex
	graded map[string]int
	errors map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{graded: make(map[string]int), errors: make(map[string]int)}
}

func (m *fakeMetrics) RecordGraded(status string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graded[status] += n
}

func (m *fakeMetrics) RecordOracleError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors["oracle_"+kind]++
}

func (m *fakeMetrics) RecordLastPrice(symbol string, price float64) {}

func (m *fakeMetrics) RecordRunDuration(job string, seconds float64) {}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}
