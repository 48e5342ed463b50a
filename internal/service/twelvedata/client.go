package twelvedata

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	drepo "Foresight/internal/domain/repository"
	"Foresight/internal/service/ratelimit"
	"Foresight/internal/service/symbols"
	xhttp "Foresight/pkg/http"

	"github.com/sony/gobreaker"
)

const (
	defaultBaseURL  = "https://api.twelvedata.com"
	defaultTimeout  = 10 * time.Second
	defaultLookback = 10 // max calendar days to step back for a close
	limiterKey      = "twelvedata"
)

// Client implements a PriceOracle backed by the Twelve Data REST API.
// Equities are requested as bare tickers ("AAPL"), major crypto as "BTC/USD".
type Client struct {
	apiKey       string
	baseURL      string
	timeout      time.Duration
	http         *xhttp.Client
	breaker      *gobreaker.CircuitBreaker
	limiter      *ratelimit.Limiter
	lookbackDays int
	ratePerMin   float64
}

// Option configures Client.
type Option func(*Client)

// WithBaseURL overrides the provider endpoint (tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTimeout bounds each provider request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLookbackDays caps the holiday fallback window.
func WithLookbackDays(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.lookbackDays = n
		}
	}
}

// WithRatePerMinute caps outbound request credits per minute.
func WithRatePerMin(rpm float64) Option {
	return func(c *Client) {
		if rpm > 0 {
			c.ratePerMin = rpm
		}
	}
}

// New creates a Twelve Data PriceOracle. An empty API key is a fatal
// configuration error; nothing is fetched.
func New(apiKey string, limiter *ratelimit.Limiter, opts ...Option) (drepo.PriceOracle, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		timeout:      defaultTimeout,
		limiter:      limiter,
		lookbackDays: defaultLookback,
		ratePerMin:   55,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = xhttp.NewClient(xhttp.WithTimeout(c.timeout))
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "twelvedata",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return c, nil
}

type priceResponse struct {
	Price   string `json:"price"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type seriesResponse struct {
	Values []struct {
		Close string `json:"close"`
	} `json:"values"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// FetchSpot requests the current/last price for a symbol.
func (c *Client) FetchSpot(ctx context.Context, symbolRaw string) (float64, error) {
	symbol := symbols.Normalize(symbolRaw)

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("apikey", c.apiKey)

	var j priceResponse
	if err := c.getJSON(ctx, "/price", q, &j); err != nil {
		return 0, &OracleError{Symbol: symbol, Op: "spot", Err: err}
	}
	if j.Status == "error" {
		return 0, &OracleError{Symbol: symbol, Op: "spot", Err: fmt.Errorf("provider: %s", j.Message)}
	}
	price, err := strconv.ParseFloat(j.Price, 64)
	if err != nil || math.IsInf(price, 0) || math.IsNaN(price) {
		return 0, &OracleError{Symbol: symbol, Op: "spot", Err: fmt.Errorf("malformed price %q", j.Price)}
	}
	return price, nil
}

// FetchCloseOn requests the daily close for date. Market holidays and
// weekends fall back one calendar day at a time, capped at the configured
// lookback window; exhaustion yields ErrNoData.
func (c *Client) FetchCloseOn(ctx context.Context, symbolRaw string, date time.Time) (float64, error) {
	symbol := symbols.Normalize(symbolRaw)

	day := date.UTC()
	for i := 0; i <= c.lookbackDays; i++ {
		ymd := day.Format("2006-01-02")

		q := url.Values{}
		q.Set("symbol", symbol)
		q.Set("interval", "1day")
		q.Set("start_date", ymd)
		q.Set("end_date", ymd)
		q.Set("order", "ASC")
		q.Set("outputsize", "1")
		q.Set("apikey", c.apiKey)

		var j seriesResponse
		if err := c.getJSON(ctx, "/time_series", q, &j); err != nil {
			return 0, &OracleError{Symbol: symbol, Op: "close", Err: err}
		}
		switch {
		case j.Status == "error" && !isNoDataMessage(j.Message):
			return 0, &OracleError{Symbol: symbol, Op: "close", Err: fmt.Errorf("provider: %s", j.Message)}
		case j.Status != "error" && len(j.Values) > 0:
			v, err := strconv.ParseFloat(j.Values[0].Close, 64)
			if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
				return 0, &OracleError{Symbol: symbol, Op: "close", Err: fmt.Errorf("malformed close %q", j.Values[0].Close)}
			}
			return v, nil
		}

		// no bar for this calendar day; try the previous one
		day = day.AddDate(0, 0, -1)
	}
	return 0, fmt.Errorf("%w: %s back to %s", ErrNoData, symbol, day.Format("2006-01-02"))
}

// isNoDataMessage matches the provider's empty-bar error payload so holidays
// are distinguished from real provider errors.
func isNoDataMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "no data")
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx, limiterKey, c.ratePerMin, c.ratePerMin/60.0); err != nil {
		return fmt.Errorf("rate wait: %w", err)
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         c.baseURL + path,
			QueryParams: q,
		}, out)
	})
	return err
}
