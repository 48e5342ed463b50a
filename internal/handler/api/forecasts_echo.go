package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	models "Foresight/internal/domain/models"
	icache "Foresight/internal/service/cache"
	"Foresight/internal/service/twelvedata"
	"Foresight/internal/usecase"
	xhttp "Foresight/pkg/http"
	xlogger "Foresight/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ReadStore is the subset of the forecast store the handler reads from.
type ReadStore interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.Forecast, error)
	Consensus(ctx context.Context, asset string) ([]*models.ConsensusBucket, error)
	History(ctx context.Context, asset string, from, to time.Time, limit int) ([]models.AssetSnapshot, error)
	Stats(ctx context.Context) (*models.EngineStats, error)
}

// ForecastsEchoHandler implements Echo-based HTTP handlers following Clean Architecture.
type ForecastsEchoHandler struct {
	logger  *xlogger.Logger
	creator *usecase.Creator
	grader  *usecase.Grader
	agg     *usecase.Aggregator
	store   ReadStore
	cache   icache.BytesCache
	ttl     time.Duration
}

func NewForecastsEchoHandler(
	logger *xlogger.Logger,
	creator *usecase.Creator,
	grader *usecase.Grader,
	agg *usecase.Aggregator,
	store ReadStore,
	cache icache.BytesCache,
	cacheTTL time.Duration,
) *ForecastsEchoHandler {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &ForecastsEchoHandler{
		logger:  logger,
		creator: creator,
		grader:  grader,
		agg:     agg,
		store:   store,
		cache:   cache,
		ttl:     cacheTTL,
	}
}

func (h *ForecastsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/forecasts", h.CreateForecast)
	g.GET("/forecasts", h.ListForecasts)
	g.GET("/consensus/:asset", h.Consensus)
	g.POST("/consensus/recompute", h.RecomputeConsensus)
	g.POST("/grade/run", h.RunGrading)
	g.GET("/assets/:symbol/history", h.History)
	g.GET("/stats", h.Stats)
}

func (h *ForecastsEchoHandler) CreateForecast(c echo.Context) error {
	req := &models.CreateForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	f, err := h.creator.Create(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, usecase.ErrValidation) {
			return xhttp.BadRequestResponse(c, []*xhttp.AppError{
				xhttp.NewAppError("ERR_INVALID_FORECAST", "", err.Error(), http.StatusBadRequest),
			})
		}
		var oerr *twelvedata.OracleError
		if errors.As(err, &oerr) {
			h.logger.Warn("forecast create oracle error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.NewAppError(
				"ERR_ORACLE_UNAVAILABLE", "asset",
				"could not fetch a starting price for the asset",
				http.StatusBadGateway,
			).WithError(err))
		}
		h.logger.Error("forecast create failed", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.DataResponse(c, http.StatusCreated, f)
}

func (h *ForecastsEchoHandler) ListForecasts(c echo.Context) error {
	req := &models.ListForecastsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.store.ListByUser(c.Request().Context(), req.UserID, req.Limit)
	if err != nil {
		h.logger.Error("forecast list failed", xlogger.String("user", req.UserID), xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, &xhttp.ListDataResponse{Rows: rows, Total: int64(len(rows))})
}

// assetKey canonicalizes a path param the way stored forecasts key their
// assets: plain uppercase ticker. Provider symbol forms ("BTC/USD") are an
// oracle concern and never appear in the store.
func assetKey(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func (h *ForecastsEchoHandler) Consensus(c echo.Context) error {
	asset := assetKey(c.Param("asset"))
	if asset == "" {
		return xhttp.BadRequestResponse(c, []*xhttp.AppError{
			xhttp.NewAppError("ERR_REQUIRED", "asset", "asset is required", http.StatusBadRequest),
		})
	}

	cacheKey := "consensus:" + asset
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
			h.logger.Warn("consensus cache get error", xlogger.Error(err))
		} else if ok {
			var buckets []*models.ConsensusBucket
			if err := json.Unmarshal(b, &buckets); err == nil {
				return xhttp.SuccessResponse(c, buckets)
			}
		}
	}

	buckets, err := h.store.Consensus(c.Request().Context(), asset)
	if err != nil {
		h.logger.Error("consensus read failed", xlogger.String("asset", asset), xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	if h.cache != nil {
		if b, err := json.Marshal(buckets); err == nil {
			if err := h.cache.SetBytes(cacheKey, b, h.ttl); err != nil {
				h.logger.Warn("consensus cache set error", xlogger.Error(err))
			}
		}
	}
	return xhttp.SuccessResponse(c, buckets)
}

func (h *ForecastsEchoHandler) RecomputeConsensus(c echo.Context) error {
	if err := h.agg.Run(c.Request().Context()); err != nil {
		h.logger.Error("consensus recompute failed", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, "consensus recomputed")
}

func (h *ForecastsEchoHandler) RunGrading(c echo.Context) error {
	if err := h.grader.Run(c.Request().Context()); err != nil {
		h.logger.Error("manual grading run failed", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, "grading run completed")
}

func (h *ForecastsEchoHandler) History(c echo.Context) error {
	asset := assetKey(c.Param("symbol"))
	if asset == "" {
		return xhttp.BadRequestResponse(c, []*xhttp.AppError{
			xhttp.NewAppError("ERR_REQUIRED", "symbol", "symbol is required", http.StatusBadRequest),
		})
	}
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), time.Time{})
	to := xhttp.ParseTimeDefault(c.QueryParam("to"), time.Time{})

	snaps, err := h.store.History(c.Request().Context(), asset, from, to, req.Limit)
	if err != nil {
		h.logger.Error("history read failed", xlogger.String("asset", asset), xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, &xhttp.ListDataResponse{Rows: snaps, Total: int64(len(snaps))})
}

func (h *ForecastsEchoHandler) Stats(c echo.Context) error {
	stats, err := h.store.Stats(c.Request().Context())
	if err != nil {
		h.logger.Error("stats read failed", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, stats)
}
