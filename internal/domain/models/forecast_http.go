package models

// Requests for forecast HTTP endpoints. Defined in domain for consistency and reuse.

type CreateForecastRequest struct {
	UserID        string   `json:"userId" validate:"required"`
	Asset         string   `json:"asset" validate:"required"`
	Direction     string   `json:"direction" validate:"required,oneof=up down outperform"`
	CompareSymbol string   `json:"compareSymbol" validate:"required_if=Direction outperform"`
	Horizon       string   `json:"horizon" validate:"required,oneof=24h 7d 30d"`
	TargetLow     *float64 `json:"targetLow" validate:"omitempty,gt=0"`
	TargetHigh    *float64 `json:"targetHigh" validate:"omitempty,gtefield=TargetLow"`
	Confidence    int      `json:"confidence" default:"3" validate:"gte=1,lte=5"`
}

type ListForecastsRequest struct {
	UserID string `query:"user_id" json:"user_id" validate:"required"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=500"`
}

type HistoryRequest struct {
	Limit int `query:"limit" json:"limit" default:"200" validate:"gte=1,lte=2000"`
}
