package di

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ddlFor(t *testing.T, table string) string {
	t.Helper()
	for _, stmt := range schemaStatements {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			return stmt
		}
	}
	t.Fatalf("no CREATE TABLE statement for %s", table)
	return ""
}

// Every column the forecast store reads or writes must exist in the DDL,
// otherwise store.Init fails on first start and the daemon never comes up.
func TestSchemaDefinesStoreColumns(t *testing.T) {
	columns := map[string][]string{
		"forecasts": {
			"id", "user_id", "asset", "direction", "compare_symbol", "horizon",
			"start_price", "start_cmp_price", "target_low", "target_high",
			"confidence", "status", "end_price", "created_at", "expires_at",
			"resolved_at",
		},
		"asset_snapshots": {"asset", "price", "ts"},
		"asset_consensus": {
			"asset", "horizon", "up_pct", "down_pct",
			"avg_confidence", "avg_target", "computed_at",
		},
		"engine_stats": {"id", "graded_predictions_count", "last_graded_at"},
	}

	for table, cols := range columns {
		stmt := ddlFor(t, table)
		for _, col := range cols {
			assert.Contains(t, stmt, col, "table %s is missing column %s", table, col)
		}
	}
}

func TestSchemaStatementsAreIdempotent(t *testing.T) {
	for _, stmt := range schemaStatements {
		require.True(t,
			strings.Contains(stmt, "IF NOT EXISTS"),
			"statement must be rerunnable on every start: %s", stmt)
	}
}
