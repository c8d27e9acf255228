package store

import (
	"context"
	"fmt"
)

// Summary describes the journal contents for operators.
type Summary struct {
	Total    int
	OK       int
	Errors   int
	Distinct int   // distinct request hashes
	LastSeq  int64 // 0 for an empty journal
}

// Summarize counts journaled records.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = 'ok' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'error' THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT request_hash),
			COALESCE(MAX(seq), 0)
		FROM requests
	`).Scan(&sum.Total, &sum.OK, &sum.Errors, &sum.Distinct, &sum.LastSeq)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize journal: %w", err)
	}
	return sum, nil
}

// ReplaySet returns the first record of each distinct request, the
// baseline a replay compares fresh executions against. kind restricts the
// set to one request kind when non-empty.
//
// Ordered by seq ASC, id COLLATE BINARY ASC.
func (s *Store) ReplaySet(ctx context.Context, kind string) ([]Record, error) {
	query := selectRecord + `
		WHERE seq IN (SELECT MIN(seq) FROM requests GROUP BY request_hash)
	`
	var args []any
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY seq ASC, id COLLATE BINARY ASC"

	records, err := s.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("replay set: %w", err)
	}
	return records, nil
}
