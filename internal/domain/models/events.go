package models

import "time"

// ForecastResolvedEvent is published to Kafka after a grade batch commits.
type ForecastResolvedEvent struct {
	EventID    string    `json:"eventId"`
	ForecastID string    `json:"forecastId"`
	Asset      string    `json:"asset"`
	Status     Status    `json:"status"`
	EndPrice   float64   `json:"endPrice"`
	ResolvedAt time.Time `json:"resolvedAt"`
}
