package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DefaultTopN bounds the top-N lists of Statistics.
const DefaultTopN = 10

// Count is one bucket of a distribution.
type Count struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Statistics aggregates the entries matching a Filter.
type Statistics struct {
	TotalEntries   int64            `json:"total_entries"`
	ByOperation    map[string]int64 `json:"by_operation"`
	ByEntityType   map[string]int64 `json:"by_entity_type"`
	ByUser         map[string]int64 `json:"by_user"`
	ByContext      map[string]int64 `json:"by_context"`
	ByLevel        map[string]int64 `json:"by_level"`
	HourlyActivity map[string]int64 `json:"hourly_activity"`
	DailyActivity  map[string]int64 `json:"daily_activity"`
	TopUsers       []Count          `json:"top_users"`
	TopOperations  []Count          `json:"top_operations"`
	TopEntities    []Count          `json:"top_entities"`
	FirstEntry     *time.Time       `json:"first_entry,omitempty"`
	LastEntry      *time.Time       `json:"last_entry,omitempty"`
}

// GetAuditStatistics computes distributions over the entries matching f.
// Sort and paging fields of f are ignored. topN <= 0 uses DefaultTopN.
func (e *Engine) GetAuditStatistics(ctx context.Context, f Filter, topN int) (*Statistics, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}
	where, args := f.where()

	stats := &Statistics{}
	var first, last sql.NullString
	err := e.db.QueryRowContext(ctx,
		"SELECT COUNT(*), MIN(timestamp), MAX(timestamp) FROM audit_logs"+where, args...,
	).Scan(&stats.TotalEntries, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("audit: statistics totals: %w", err)
	}
	if first.Valid {
		if t, err := parseTime(first.String); err == nil {
			stats.FirstEntry = &t
		}
	}
	if last.Valid {
		if t, err := parseTime(last.String); err == nil {
			stats.LastEntry = &t
		}
	}

	distributions := []struct {
		expr string
		dst  *map[string]int64
	}{
		{"operation", &stats.ByOperation},
		{"entity_type", &stats.ByEntityType},
		{"performed_by", &stats.ByUser},
		{"context", &stats.ByContext},
		{"log_level", &stats.ByLevel},
		// Stored timestamps are fixed-width UTC, so substrings are exact.
		{"substr(timestamp, 12, 2)", &stats.HourlyActivity},
		{"substr(timestamp, 1, 10)", &stats.DailyActivity},
	}
	for _, d := range distributions {
		counts, err := e.groupCount(ctx, d.expr, where, args, 0)
		if err != nil {
			return nil, err
		}
		m := make(map[string]int64, len(counts))
		for _, c := range counts {
			m[c.Key] = c.Count
		}
		*d.dst = m
	}

	if stats.TopUsers, err = e.groupCount(ctx, "performed_by", where, args, topN); err != nil {
		return nil, err
	}
	if stats.TopOperations, err = e.groupCount(ctx, "operation", where, args, topN); err != nil {
		return nil, err
	}
	if stats.TopEntities, err = e.groupCount(ctx, "entity_id", where, args, topN); err != nil {
		return nil, err
	}
	return stats, nil
}

// groupCount returns counts grouped by expr, most frequent first. limit <= 0
// returns every group.
func (e *Engine) groupCount(ctx context.Context, expr, where string, args []any, limit int) ([]Count, error) {
	query := fmt.Sprintf("SELECT %s AS k, COUNT(*) AS n FROM audit_logs%s GROUP BY k ORDER BY n DESC, k ASC", expr, where)
	qargs := args
	if limit > 0 {
		query += " LIMIT ?"
		qargs = append(append([]any{}, args...), limit)
	}

	rows, err := e.db.QueryContext(ctx, query, qargs...)
	if err != nil {
		return nil, fmt.Errorf("audit: grouping by %s: %w", expr, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]Count, 0)
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, fmt.Errorf("audit: scanning %s group: %w", expr, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
