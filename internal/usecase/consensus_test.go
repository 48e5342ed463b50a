package usecase

import (
	"context"
	"testing"
	"time"

	"Foresight/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func active(asset string, dir models.Direction, h models.Horizon, conf int) *models.Forecast {
	now := time.Now().UTC()
	return &models.Forecast{
		UserID:     "u1",
		Asset:      asset,
		Direction:  dir,
		Horizon:    h,
		StartPrice: 100,
		Confidence: conf,
		Status:     models.StatusActive,
		CreatedAt:  now,
		ExpiresAt:  now.Add(h.Duration()),
	}
}

func TestAggregatorSentimentSplit(t *testing.T) {
	store := newFakeStore()
	store.add(active("X", models.DirectionUp, models.Horizon24h, 3))
	store.add(active("X", models.DirectionUp, models.Horizon24h, 4))
	store.add(active("X", models.DirectionDown, models.Horizon24h, 5))

	a := NewAggregator(store, newFakeMetrics(), testLogger(t))
	require.NoError(t, a.Run(context.Background()))

	buckets := store.consensus[models.Horizon24h]
	require.Len(t, buckets, 1)
	b := buckets[0]
	assert.Equal(t, "X", b.Asset)
	assert.Equal(t, 67, b.UpPct)
	assert.Equal(t, 33, b.DownPct)
	assert.Equal(t, 4.0, b.AvgConfidence)
	assert.Nil(t, b.AvgTarget)
}

func TestAggregatorTargetMidpoints(t *testing.T) {
	store := newFakeStore()
	low1, high1 := 90.0, 110.0
	withTarget := active("Y", models.DirectionUp, models.Horizon7d, 3)
	withTarget.TargetLow, withTarget.TargetHigh = &low1, &high1
	store.add(withTarget)

	low2 := 95.0
	halfTarget := active("Y", models.DirectionDown, models.Horizon7d, 3)
	halfTarget.TargetLow = &low2 // one bound only: excluded from mean
	store.add(halfTarget)

	a := NewAggregator(store, newFakeMetrics(), testLogger(t))
	require.NoError(t, a.Run(context.Background()))

	buckets := store.consensus[models.Horizon7d]
	require.Len(t, buckets, 1)
	require.NotNil(t, buckets[0].AvgTarget)
	assert.Equal(t, 100.0, *buckets[0].AvgTarget)
}

func TestAggregatorDefaultsConfidence(t *testing.T) {
	store := newFakeStore()
	f := active("Z", models.DirectionUp, models.Horizon30d, 0) // never set
	store.add(f)

	a := NewAggregator(store, newFakeMetrics(), testLogger(t))
	require.NoError(t, a.Run(context.Background()))

	buckets := store.consensus[models.Horizon30d]
	require.Len(t, buckets, 1)
	assert.Equal(t, 3.0, buckets[0].AvgConfidence)
}

func TestAggregatorSeparatesHorizonsAndAssets(t *testing.T) {
	store := newFakeStore()
	store.add(active("A", models.DirectionUp, models.Horizon24h, 3))
	store.add(active("B", models.DirectionDown, models.Horizon24h, 3))
	store.add(active("A", models.DirectionUp, models.Horizon7d, 3))
	// resolved forecasts never feed consensus
	resolved := active("A", models.DirectionDown, models.Horizon24h, 3)
	resolved.Status = models.StatusLost
	store.add(resolved)

	a := NewAggregator(store, newFakeMetrics(), testLogger(t))
	require.NoError(t, a.Run(context.Background()))

	require.Len(t, store.consensus[models.Horizon24h], 2)
	require.Len(t, store.consensus[models.Horizon7d], 1)
	assert.Equal(t, "A", store.consensus[models.Horizon24h][0].Asset) // sorted
	assert.Equal(t, 100, store.consensus[models.Horizon24h][0].UpPct)
}
