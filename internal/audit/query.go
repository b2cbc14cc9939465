package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

// DefaultLimit caps unpaged queries.
const DefaultLimit = 1000

// sortColumns whitelists the sortable columns; anything else falls back to
// timestamp.
var sortColumns = map[string]string{
	"timestamp":    "timestamp",
	"operation":    "operation",
	"entity_type":  "entity_type",
	"entity_id":    "entity_id",
	"performed_by": "performed_by",
	"context":      "context",
	"log_level":    "log_level",
}

// Filter selects audit entries. Zero-valued fields do not constrain.
type Filter struct {
	StartDate   *time.Time
	EndDate     *time.Time
	Operations  []string
	EntityTypes []string
	EntityIDs   []string
	PerformedBy string
	Context     string
	Levels      []models.LogLevel

	// Search matches operation, entity_id, performed_by, context and details
	// as a case-insensitive substring.
	Search string

	SortBy    string
	SortOrder string // "asc" or "desc" (default)
	Limit     int
	Offset    int
}

// where renders the filter as a WHERE clause with positional args. The
// clause is empty when nothing constrains.
func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.StartDate != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, formatTime(*f.StartDate))
	}
	if f.EndDate != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, formatTime(*f.EndDate))
	}
	addIn := func(col string, vals []string) {
		if len(vals) == 0 {
			return
		}
		clauses = append(clauses, col+" IN ("+placeholders(len(vals))+")")
		for _, v := range vals {
			args = append(args, v)
		}
	}
	addIn("operation", f.Operations)
	addIn("entity_type", f.EntityTypes)
	addIn("entity_id", f.EntityIDs)
	if len(f.Levels) > 0 {
		levels := make([]string, len(f.Levels))
		for i, l := range f.Levels {
			levels[i] = string(l)
		}
		addIn("log_level", levels)
	}
	if f.PerformedBy != "" {
		clauses = append(clauses, "performed_by = ?")
		args = append(args, f.PerformedBy)
	}
	if f.Context != "" {
		clauses = append(clauses, "context = ?")
		args = append(args, f.Context)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		clauses = append(clauses, "(LOWER(operation) LIKE ? OR LOWER(entity_id) LIKE ? OR LOWER(performed_by) LIKE ? OR LOWER(context) LIKE ? OR LOWER(details) LIKE ?)")
		args = append(args, like, like, like, like, like)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (f Filter) orderBy() string {
	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "timestamp"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}
	// id keeps paging stable among equal sort keys.
	return fmt.Sprintf(" ORDER BY %s %s, id %s", col, dir, dir)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// QueryResult is one page of audit entries.
type QueryResult struct {
	Entries []models.AuditEntry `json:"entries"`
	Total   int64               `json:"total"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
}

// QueryAuditLogs returns the entries matching f plus the unpaged total.
func (e *Engine) QueryAuditLogs(ctx context.Context, f Filter) (*QueryResult, error) {
	where, args := f.where()

	var total int64
	if err := e.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("audit: counting entries: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	entries, err := e.selectEntries(ctx, f, limit, offset)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

// selectEntries returns one ordered page of the entries matching f. A
// negative limit returns every row from offset on.
func (e *Engine) selectEntries(ctx context.Context, f Filter, limit, offset int) ([]models.AuditEntry, error) {
	where, args := f.where()
	query := `SELECT id, timestamp, operation, entity_type, entity_id, details, performed_by, context, log_level, ip_address, user_agent, session_id
		FROM audit_logs` + where + f.orderBy() + " LIMIT ? OFFSET ?"
	rows, err := e.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("audit: querying entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]models.AuditEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: reading entries: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (models.AuditEntry, error) {
	var (
		entry                         models.AuditEntry
		ts, details, level            string
		ipAddress, userAgent, session sql.NullString
	)
	if err := rows.Scan(
		&entry.ID, &ts, &entry.Operation, &entry.EntityType, &entry.EntityID,
		&details, &entry.PerformedBy, &entry.Context, &level,
		&ipAddress, &userAgent, &session,
	); err != nil {
		return entry, fmt.Errorf("audit: scanning entry: %w", err)
	}

	parsed, err := parseTime(ts)
	if err != nil {
		return entry, fmt.Errorf("audit: entry %s has bad timestamp %q: %w", entry.ID, ts, err)
	}
	entry.Timestamp = parsed
	entry.Level = models.LogLevel(level)
	entry.IPAddress = ipAddress.String
	entry.UserAgent = userAgent.String
	entry.SessionID = session.String

	entry.Details = map[string]any{}
	if details != "" {
		if err := json.Unmarshal([]byte(details), &entry.Details); err != nil {
			return entry, fmt.Errorf("audit: entry %s has bad details: %w", entry.ID, err)
		}
	}
	return entry, nil
}
