package models

import "time"

// Direction is the kind of bet a forecast makes.
type Direction string

const (
	DirectionUp         Direction = "up"
	DirectionDown       Direction = "down"
	DirectionOutperform Direction = "outperform"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionOutperform:
		return true
	}
	return false
}

// Horizon is the fixed grading window of a forecast.
type Horizon string

const (
	Horizon24h Horizon = "24h"
	Horizon7d  Horizon = "7d"
	Horizon30d Horizon = "30d"
)

// Horizons lists all horizons in aggregation order.
var Horizons = []Horizon{Horizon24h, Horizon7d, Horizon30d}

// Valid reports whether h is a known horizon.
func (h Horizon) Valid() bool {
	switch h {
	case Horizon24h, Horizon7d, Horizon30d:
		return true
	}
	return false
}

// Duration returns the wall-clock length of the horizon.
func (h Horizon) Duration() time.Duration {
	switch h {
	case Horizon24h:
		return 24 * time.Hour
	case Horizon7d:
		return 7 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// Status is the forecast lifecycle state. Transitions active -> won|lost exactly once.
type Status string

const (
	StatusActive Status = "active"
	StatusWon    Status = "won"
	StatusLost   Status = "lost"
)

// Forecast is a user's directional or relative-performance bet on an asset.
// Field names are a stable contract read directly by downstream consumers.
type Forecast struct {
	ID            string     `db:"id" json:"id"`
	UserID        string     `db:"user_id" json:"userId"`
	Asset         string     `db:"asset" json:"asset"`
	Direction     Direction  `db:"direction" json:"direction"`
	CompareSymbol *string    `db:"compare_symbol" json:"compareSymbol"`
	Horizon       Horizon    `db:"horizon" json:"horizon"`
	StartPrice    float64    `db:"start_price" json:"startPrice"`
	StartCmpPrice *float64   `db:"start_cmp_price" json:"startCmpPrice"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	ExpiresAt     time.Time  `db:"expires_at" json:"expiresAt"`
	TargetLow     *float64   `db:"target_low" json:"targetLow"`
	TargetHigh    *float64   `db:"target_high" json:"targetHigh"`
	Confidence    int        `db:"confidence" json:"confidence"`
	Status        Status     `db:"status" json:"status"`
	EndPrice      *float64   `db:"end_price" json:"endPrice"`
	ResolvedAt    *time.Time `db:"resolved_at" json:"resolvedAt"`
}

// NeedsCompare reports whether grading requires a benchmark symbol.
func (f *Forecast) NeedsCompare() bool {
	return f.Direction == DirectionOutperform && f.CompareSymbol != nil
}

// AssetSnapshot is an immutable price point recorded as a side effect of grading.
type AssetSnapshot struct {
	Asset     string    `db:"asset" json:"asset"`
	Price     float64   `db:"price" json:"price"`
	Timestamp time.Time `db:"ts" json:"timestamp"`
}

// ConsensusBucket is the aggregated sentiment for one (asset, horizon) pair.
// Fully overwritten on each aggregation run.
type ConsensusBucket struct {
	Asset         string    `db:"asset" json:"asset"`
	Horizon       Horizon   `db:"horizon" json:"horizon"`
	UpPct         int       `db:"up_pct" json:"upPct"`
	DownPct       int       `db:"down_pct" json:"downPct"`
	AvgConfidence float64   `db:"avg_confidence" json:"avgConfidence"`
	AvgTarget     *float64  `db:"avg_target" json:"avgTarget"`
	ComputedAt    time.Time `db:"computed_at" json:"computedAt"`
}

// GradeResult is one staged grading decision for a due forecast.
type GradeResult struct {
	ForecastID string
	Asset      string
	Status     Status // won or lost
	EndPrice   float64
	ResolvedAt time.Time

	// BackfillCmpPrice, when non-nil, records a startCmpPrice that was
	// missing at creation and resolved during grading. Written in the same
	// commit; rewriting the same value on a retried run is harmless.
	BackfillCmpPrice *float64
}

// GradeBatch is the whole write set of one grading run. It is applied as a
// single atomic commit or not at all.
type GradeBatch struct {
	Results   []GradeResult
	Snapshots []AssetSnapshot
}

// Empty reports whether the batch stages no writes.
func (b *GradeBatch) Empty() bool { return len(b.Results) == 0 }

// EngineStats is the singleton counters row maintained by the grading runs.
type EngineStats struct {
	GradedCount  int64     `db:"graded_predictions_count" json:"gradedPredictionsCount"`
	LastGradedAt time.Time `db:"last_graded_at" json:"lastGradedAt"`
}
