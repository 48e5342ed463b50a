package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"Foresight/internal/domain/models"
	drepo "Foresight/internal/domain/repository"
	applogger "Foresight/pkg/logger"
)

// ErrValidation marks malformed forecast input, rejected synchronously before
// anything reaches the store.
var ErrValidation = errors.New("invalid forecast input")

// Creator validates forecast submissions and records them with their start
// prices captured from the oracle.
type Creator struct {
	store  drepo.ForecastStore
	oracle drepo.PriceOracle
	logger *applogger.Logger
}

// NewCreator creates a new Creator instance.
func NewCreator(store drepo.ForecastStore, oracle drepo.PriceOracle, logger *applogger.Logger) *Creator {
	return &Creator{store: store, oracle: oracle, logger: logger}
}

// Create validates req, captures start prices and persists the forecast.
// Oracle failures surface synchronously to the submitter.
func (c *Creator) Create(ctx context.Context, req *models.CreateForecastRequest) (*models.Forecast, error) {
	direction := models.Direction(req.Direction)
	horizon := models.Horizon(req.Horizon)

	asset := strings.ToUpper(strings.TrimSpace(req.Asset))
	switch {
	case asset == "":
		return nil, fmt.Errorf("%w: asset is required", ErrValidation)
	case !direction.Valid():
		return nil, fmt.Errorf("%w: unknown direction %q", ErrValidation, req.Direction)
	case !horizon.Valid():
		return nil, fmt.Errorf("%w: unknown horizon %q", ErrValidation, req.Horizon)
	case direction == models.DirectionOutperform && strings.TrimSpace(req.CompareSymbol) == "":
		return nil, fmt.Errorf("%w: outperform requires a compare symbol", ErrValidation)
	}

	startPrice, err := c.oracle.FetchSpot(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("capture start price: %w", err)
	}

	now := time.Now().UTC()
	f := &models.Forecast{
		UserID:     req.UserID,
		Asset:      asset,
		Direction:  direction,
		Horizon:    horizon,
		StartPrice: startPrice,
		CreatedAt:  now,
		ExpiresAt:  now.Add(horizon.Duration()),
		TargetLow:  req.TargetLow,
		TargetHigh: req.TargetHigh,
		Confidence: req.Confidence,
		Status:     models.StatusActive,
	}
	if f.Confidence == 0 {
		f.Confidence = 3
	}

	if direction == models.DirectionOutperform {
		cmp := strings.ToUpper(strings.TrimSpace(req.CompareSymbol))
		f.CompareSymbol = &cmp
		// best-effort: a missing comparison start is backfilled at grading
		if cmpPrice, err := c.oracle.FetchSpot(ctx, cmp); err == nil {
			f.StartCmpPrice = &cmpPrice
		} else {
			c.logger.Warn("comparison start price unavailable, will backfill at grading",
				applogger.String("compare", cmp), applogger.Error(err))
		}
	}

	if err := c.store.Insert(ctx, f); err != nil {
		return nil, fmt.Errorf("insert forecast: %w", err)
	}
	c.logger.Info("forecast created",
		applogger.String("id", f.ID),
		applogger.String("asset", f.Asset),
		applogger.String("direction", string(f.Direction)),
		applogger.String("horizon", string(f.Horizon)),
	)
	return f, nil
}
