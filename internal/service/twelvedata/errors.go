package twelvedata

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey means the provider credential was absent from
// configuration. Fatal: no fetch is attempted.
var ErrMissingAPIKey = errors.New("twelvedata: missing api key")

// ErrNoData means no trading bar was found within the bounded lookback
// window. Non-fatal per symbol; handled like a failed fetch.
var ErrNoData = errors.New("twelvedata: no trading data in lookback window")

// OracleError wraps a transport failure, provider error payload or malformed
// price for a specific symbol.
type OracleError struct {
	Symbol string
	Op     string // "spot" or "close"
	Err    error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("twelvedata %s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }
