package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"Foresight/internal/domain/models"
	"Foresight/internal/domain/repository"
	pkgch "Foresight/pkg/clickhouse"
)

// ClickHouseSnapshotArchive mirrors graded AssetSnapshots into ClickHouse for
// chart and reporting reads. The canonical snapshot row lives in the Postgres
// grade transaction; this archive is written after commit and is best-effort.
type ClickHouseSnapshotArchive struct {
	db    *sql.DB
	table string
}

// NewClickHouseSnapshotArchive creates the ClickHouse archive.
func NewClickHouseSnapshotArchive(ch *pkgch.Client, table string) repository.SnapshotArchive {
	return &ClickHouseSnapshotArchive{db: ch.DB(), table: table}
}

func (a *ClickHouseSnapshotArchive) ArchiveBatch(ctx context.Context, snaps []models.AssetSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	// Multi-row VALUES to reduce round-trips. Chunk size tuned to 2000 rows.
	const chunkSize = 2000
	for start := 0; start < len(snaps); start += chunkSize {
		end := start + chunkSize
		if end > len(snaps) {
			end = len(snaps)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*3)
		for _, snap := range snaps[start:end] {
			if snap.Asset == "" {
				continue
			}
			values = append(values, "(?, ?, ?)")
			args = append(args, snap.Asset, snap.Price, snap.Timestamp)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (asset, price, ts) VALUES %s", a.table, strings.Join(values, ","))
		if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("archive snapshots: %w", err)
		}
	}
	return nil
}

func (a *ClickHouseSnapshotArchive) Close() error {
	return a.db.Close()
}
