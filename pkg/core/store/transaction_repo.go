// Package store is the persistence boundary of the engine: it loads the raw
// transaction log and saves finished analysis reports. The core never
// touches the database directly; callers inject these repositories.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"clv_analytics/pkg/core/timeline"
)

// ReportRepository persists finished analysis reports. The pipeline accepts
// any implementation, e.g. an in-memory stub in tests.
type ReportRepository interface {
	SaveReport(ctx context.Context, runID string, report any) error
}

// TransactionRepo reads the raw transaction log from Postgres.
type TransactionRepo struct{}

// NewTransactionRepo creates a new repository instance.
func NewTransactionRepo() *TransactionRepo {
	return &TransactionRepo{}
}

// LoadTransactions reads the full transaction log ordered by time.
//
// Schema assumption (managed elsewhere, e.g. migrations):
//
//	CREATE TABLE IF NOT EXISTS transaction_events (
//	  customer_id TEXT NOT NULL,
//	  event_time  TIMESTAMPTZ NOT NULL,
//	  amount      DOUBLE PRECISION NOT NULL
//	);
func (r *TransactionRepo) LoadTransactions(ctx context.Context) ([]timeline.Transaction, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	rows, err := pool.Query(ctx, `
		SELECT customer_id, event_time, amount
		FROM transaction_events
		ORDER BY event_time;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction log: %w", err)
	}
	defer rows.Close()

	var txns []timeline.Transaction
	for rows.Next() {
		var t timeline.Transaction
		if err := rows.Scan(&t.CustomerID, &t.Timestamp, &t.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transaction log read failed: %w", err)
	}
	return txns, nil
}

// ReportRepo stores analysis reports as JSONB blobs keyed by run ID.
type ReportRepo struct{}

// NewReportRepo creates a new repository instance.
func NewReportRepo() *ReportRepo {
	return &ReportRepo{}
}

// SaveReport upserts one analysis report.
//
// Schema assumption:
//
//	CREATE TABLE IF NOT EXISTS clv_reports (
//	  run_id      TEXT PRIMARY KEY,
//	  report_json JSONB,
//	  created_at  TIMESTAMPTZ
//	);
func (r *ReportRepo) SaveReport(ctx context.Context, runID string, report any) error {
	pool := GetPool()
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	jsonData, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `
		INSERT INTO clv_reports (run_id, report_json, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id)
		DO UPDATE SET
			report_json = EXCLUDED.report_json,
			created_at = EXCLUDED.created_at;
	`
	if _, err := pool.Exec(ctx, query, runID, jsonData, time.Now()); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}
