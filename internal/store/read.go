package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by ReadRequest for an unknown ID.
var ErrNotFound = errors.New("request not found")

const selectRecord = `
	SELECT seq, id, kind, request_hash, request, outcome, result_count,
	       result_hash, error_code, error_message, created_at
	FROM requests
`

// Filter narrows ListRequests. Zero values mean no restriction.
type Filter struct {
	Kind     string // "query" or "count"
	Outcome  string // OutcomeOK or OutcomeError
	AfterSeq int64  // only records with seq > AfterSeq
	Limit    int
}

// ReadRequest returns the record with the given ID.
func (s *Store) ReadRequest(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, selectRecord+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("read request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("read request %s: %w", id, err)
	}
	return rec, nil
}

// ListRequests returns journaled records matching f.
// Results are ordered deterministically: ORDER BY seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListRequests(ctx context.Context, f Filter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, f.Outcome)
	}
	if f.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, f.AfterSeq)
	}

	query := selectRecord
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC, id COLLATE BINARY ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	return s.queryRecords(ctx, query, args...)
}

// RequestsByHash returns every record of one request content hash, oldest
// first.
func (s *Store) RequestsByHash(ctx context.Context, hash string) ([]Record, error) {
	return s.queryRecords(ctx, selectRecord+`
		WHERE request_hash = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, hash)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}

	// Return empty slice instead of nil
	if records == nil {
		records = []Record{}
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec       Record
		createdAt string
	)
	err := row.Scan(
		&rec.Seq,
		&rec.ID,
		&rec.Kind,
		&rec.RequestHash,
		&rec.Request,
		&rec.Outcome,
		&rec.ResultCount,
		&rec.ResultHash,
		&rec.ErrorCode,
		&rec.ErrorMessage,
		&createdAt,
	)
	if err != nil {
		return Record{}, err
	}
	rec.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}
