package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"Foresight/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCapturesStartPrice(t *testing.T) {
	store := newFakeStore()
	oracle := newFakeOracle()
	oracle.spot["AAPL"] = 186.4

	c := NewCreator(store, oracle, testLogger(t))
	f, err := c.Create(context.Background(), &models.CreateForecastRequest{
		UserID:    "u1",
		Asset:     " aapl ",
		Direction: "up",
		Horizon:   "24h",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, f.ID)
	assert.Equal(t, "AAPL", f.Asset)
	assert.Equal(t, 186.4, f.StartPrice)
	assert.Equal(t, models.StatusActive, f.Status)
	assert.Equal(t, 3, f.Confidence)
	assert.Equal(t, 24*time.Hour, f.ExpiresAt.Sub(f.CreatedAt))
}

func TestCreateOutperformCapturesComparison(t *testing.T) {
	store := newFakeStore()
	oracle := newFakeOracle()
	oracle.spot["BTC"] = 64000
	oracle.spot["ETH"] = 3200

	c := NewCreator(store, oracle, testLogger(t))
	f, err := c.Create(context.Background(), &models.CreateForecastRequest{
		UserID:        "u1",
		Asset:         "btc",
		Direction:     "outperform",
		CompareSymbol: "eth",
		Horizon:       "7d",
		Confidence:    5,
	})
	require.NoError(t, err)

	require.NotNil(t, f.CompareSymbol)
	assert.Equal(t, "ETH", *f.CompareSymbol)
	require.NotNil(t, f.StartCmpPrice)
	assert.Equal(t, 3200.0, *f.StartCmpPrice)
}

func TestCreateOutperformToleratesMissingComparisonPrice(t *testing.T) {
	store := newFakeStore()
	oracle := newFakeOracle()
	oracle.spot["BTC"] = 64000
	oracle.fails["ETH"] = errors.New("provider down")

	c := NewCreator(store, oracle, testLogger(t))
	f, err := c.Create(context.Background(), &models.CreateForecastRequest{
		UserID:        "u1",
		Asset:         "btc",
		Direction:     "outperform",
		CompareSymbol: "eth",
		Horizon:       "7d",
	})
	require.NoError(t, err)
	assert.Nil(t, f.StartCmpPrice) // backfilled at grading time
}

func TestCreateValidation(t *testing.T) {
	store := newFakeStore()
	oracle := newFakeOracle()
	oracle.spot["AAPL"] = 186.4
	c := NewCreator(store, oracle, testLogger(t))

	cases := []struct {
		name string
		req  models.CreateForecastRequest
	}{
		{"missing asset", models.CreateForecastRequest{UserID: "u1", Direction: "up", Horizon: "24h"}},
		{"unknown direction", models.CreateForecastRequest{UserID: "u1", Asset: "AAPL", Direction: "sideways", Horizon: "24h"}},
		{"unknown horizon", models.CreateForecastRequest{UserID: "u1", Asset: "AAPL", Direction: "up", Horizon: "1y"}},
		{"outperform without compare", models.CreateForecastRequest{UserID: "u1", Asset: "AAPL", Direction: "outperform", Horizon: "24h"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Create(context.Background(), &tc.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Empty(t, store.forecasts) // rejected input never reaches the store
}

func TestCreateSurfacesOracleFailure(t *testing.T) {
	store := newFakeStore()
	oracle := newFakeOracle()
	oracle.fails["AAPL"] = errors.New("provider down")

	c := NewCreator(store, oracle, testLogger(t))
	_, err := c.Create(context.Background(), &models.CreateForecastRequest{
		UserID: "u1", Asset: "AAPL", Direction: "up", Horizon: "24h",
	})
	require.Error(t, err)
	assert.Empty(t, store.forecasts)
}
