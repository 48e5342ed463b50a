package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	models "Foresight/internal/domain/models"
	icache "Foresight/internal/service/cache"
	xlogger "Foresight/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReadStore struct {
	forecasts     map[string][]*models.Forecast
	consensus     map[string][]*models.ConsensusBucket
	history       map[string][]models.AssetSnapshot
	consensusHits int
}

func (s *stubReadStore) ListByUser(_ context.Context, userID string, limit int) ([]*models.Forecast, error) {
	rows := s.forecasts[userID]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *stubReadStore) Consensus(_ context.Context, asset string) ([]*models.ConsensusBucket, error) {
	s.consensusHits++
	return s.consensus[asset], nil
}

func (s *stubReadStore) History(_ context.Context, asset string, from, to time.Time, limit int) ([]models.AssetSnapshot, error) {
	var rows []models.AssetSnapshot
	for _, snap := range s.history[asset] {
		if !from.IsZero() && snap.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && snap.Timestamp.After(to) {
			continue
		}
		rows = append(rows, snap)
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *stubReadStore) Stats(_ context.Context) (*models.EngineStats, error) {
	return &models.EngineStats{GradedCount: 42}, nil
}

func newTestHandler(t *testing.T, store ReadStore, cache icache.BytesCache) *ForecastsEchoHandler {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	return NewForecastsEchoHandler(l, nil, nil, nil, store, cache, time.Minute)
}

func doRequest(h *ForecastsEchoHandler, method, target string) *httptest.ResponseRecorder {
	e := echo.New()
	h.RegisterRoutes(e)
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestListForecastsRequiresUserID(t *testing.T) {
	h := newTestHandler(t, &stubReadStore{}, nil)
	rec := doRequest(h, http.MethodGet, "/api/forecasts")

	// the response envelope always rides HTTP 200; the status lives in the body
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status int `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusBadRequest, resp.Status)
}

func TestListForecastsReturnsUserRows(t *testing.T) {
	store := &stubReadStore{forecasts: map[string][]*models.Forecast{
		"u1": {{ID: "f-1", UserID: "u1", Asset: "AAPL"}},
	}}
	h := newTestHandler(t, store, nil)

	rec := doRequest(h, http.MethodGet, "/api/forecasts?user_id=u1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Rows  []*models.Forecast `json:"rows"`
			Total int64              `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Data.Total)
	require.Len(t, resp.Data.Rows, 1)
	assert.Equal(t, "AAPL", resp.Data.Rows[0].Asset)
}

func TestConsensusServedFromCacheOnSecondRead(t *testing.T) {
	store := &stubReadStore{consensus: map[string][]*models.ConsensusBucket{
		"BTC": {{Asset: "BTC", Horizon: models.Horizon24h, UpPct: 67, DownPct: 33}},
	}}
	h := newTestHandler(t, store, icache.NewTTLCache())

	first := doRequest(h, http.MethodGet, "/api/consensus/btc")
	require.Equal(t, http.StatusOK, first.Code)
	second := doRequest(h, http.MethodGet, "/api/consensus/btc")
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, 1, store.consensusHits)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

// Stored forecasts key assets as bare uppercase tickers, so the read path
// must canonicalize to the same key, crypto included. "BTC/USD" is the
// oracle's request form and never a store key.
func TestConsensusUsesStoredAssetKey(t *testing.T) {
	store := &stubReadStore{consensus: map[string][]*models.ConsensusBucket{
		"BTC": {{Asset: "BTC", Horizon: models.Horizon24h, UpPct: 67, DownPct: 33}},
		"ETH": {{Asset: "ETH", Horizon: models.Horizon7d, UpPct: 50, DownPct: 50}},
	}}
	h := newTestHandler(t, store, nil)

	for param, want := range map[string]string{"btc": "BTC", " eth ": "ETH"} {
		rec := doRequest(h, http.MethodGet, "/api/consensus/"+url.PathEscape(param))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data []*models.ConsensusBucket `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1, "param %q", param)
		assert.Equal(t, want, resp.Data[0].Asset)
	}
}

func TestHistoryReturnsSnapshots(t *testing.T) {
	ts := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	store := &stubReadStore{history: map[string][]models.AssetSnapshot{
		"AAPL": {{Asset: "AAPL", Price: 191.2, Timestamp: ts}},
		"BTC":  {{Asset: "BTC", Price: 64123.5, Timestamp: ts}},
	}}
	h := newTestHandler(t, store, nil)

	for path, want := range map[string]float64{"aapl": 191.2, "btc": 64123.5} {
		rec := doRequest(h, http.MethodGet, "/api/assets/"+path+"/history?limit=10")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data struct {
				Rows []models.AssetSnapshot `json:"rows"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data.Rows, 1, "path %q", path)
		assert.Equal(t, want, resp.Data.Rows[0].Price)
	}
}

func TestHistoryTimeRangeFilter(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 2, d, 0, 0, 0, 0, time.UTC) }
	store := &stubReadStore{history: map[string][]models.AssetSnapshot{
		"AAPL": {
			{Asset: "AAPL", Price: 190, Timestamp: day(12)},
			{Asset: "AAPL", Price: 189, Timestamp: day(10)},
			{Asset: "AAPL", Price: 188, Timestamp: day(8)},
		},
	}}
	h := newTestHandler(t, store, nil)

	rec := doRequest(h, http.MethodGet, "/api/assets/AAPL/history?from=2026-02-09T00:00:00Z&to=2026-02-11T00:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Rows []models.AssetSnapshot `json:"rows"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Rows, 1)
	assert.Equal(t, 189.0, resp.Data.Rows[0].Price)
}

func TestStats(t *testing.T) {
	h := newTestHandler(t, &stubReadStore{}, nil)
	rec := doRequest(h, http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data models.EngineStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.Data.GradedCount)
}
