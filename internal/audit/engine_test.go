package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ajitpratap0/ssot-registry/internal/metrics"
	"github.com/ajitpratap0/ssot-registry/internal/models"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	e, err := Open(context.Background(), Options{
		Path:      filepath.Join(dir, "audit.db"),
		ReportDir: filepath.Join(dir, "reports"),
	}, newTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// seed writes entries at fixed offsets from base.
func seed(t *testing.T, e *Engine, base time.Time) {
	t.Helper()
	ctx := context.Background()
	entries := []models.AuditEntry{
		{Timestamp: base.Add(-10 * 24 * time.Hour), Operation: models.OpRegisterAnchor, EntityType: models.EntityAnchor, EntityID: "A1", PerformedBy: "alice", Context: "global", Level: models.LogLevelDebug},
		{Timestamp: base.Add(-5 * 24 * time.Hour), Operation: models.OpAddAlias, EntityType: models.EntityAlias, EntityID: "frontend:checkout", PerformedBy: "alice", Context: "frontend", Level: models.LogLevelInfo, Details: map[string]any{"canonical": "A1"}},
		{Timestamp: base.Add(-2 * time.Hour), Operation: models.OpResolveAlias, EntityType: models.EntityAlias, EntityID: "frontend:checkout", PerformedBy: "bob", Context: "frontend", Level: models.LogLevelInfo},
		{Timestamp: base.Add(-1 * time.Hour), Operation: models.OpSecurityEvent, EntityType: models.EntityAlias, EntityID: "global:tmp", PerformedBy: "mallory", Context: "global", Level: models.LogLevelWarning, Details: map[string]any{"rule": "no_temporary_in_reserved_context"}},
	}
	for _, entry := range entries {
		e.LogOperation(ctx, entry)
	}
}

func TestLogOperation_FillsDefaults(t *testing.T) {
	e := openTestEngine(t)

	stored := e.LogOperation(context.Background(), models.AuditEntry{
		Operation:  models.OpRegisterAnchor,
		EntityType: models.EntityAnchor,
		EntityID:   "A1",
	})
	assert.NotEmpty(t, stored.ID)
	assert.False(t, stored.Timestamp.IsZero())
	assert.Equal(t, models.LogLevelInfo, stored.Level)

	res, err := e.QueryAuditLogs(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, stored.ID, res.Entries[0].ID)
	assert.True(t, stored.Timestamp.Equal(res.Entries[0].Timestamp))
}

func TestLogOperation_StripsSensitiveDetails(t *testing.T) {
	e := openTestEngine(t)

	e.LogOperation(context.Background(), models.AuditEntry{
		Operation:  models.OpAddAlias,
		EntityType: models.EntityAlias,
		EntityID:   "frontend:checkout",
		Details: map[string]any{
			"password":  "hunter2",
			"canonical": "A1",
			"nested":    map[string]any{"api_key": "k", "ok": true},
		},
	})

	res, err := e.QueryAuditLogs(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	details := res.Entries[0].Details
	assert.NotContains(t, details, "password")
	assert.Equal(t, "A1", details["canonical"])
	assert.Equal(t, map[string]any{"ok": true}, details["nested"])

	// The secret must not be findable by free-text search either.
	res, err = e.QueryAuditLogs(context.Background(), Filter{Search: "hunter2"})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestQueryAuditLogs_Filters(t *testing.T) {
	e := openTestEngine(t)
	base := time.Now().UTC()
	seed(t, e, base)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter Filter
		want   int64
	}{
		{name: "all", filter: Filter{}, want: 4},
		{name: "by operation", filter: Filter{Operations: []string{models.OpAddAlias, models.OpResolveAlias}}, want: 2},
		{name: "by entity", filter: Filter{EntityIDs: []string{"frontend:checkout"}}, want: 2},
		{name: "by entity type", filter: Filter{EntityTypes: []string{models.EntityAnchor}}, want: 1},
		{name: "by user", filter: Filter{PerformedBy: "alice"}, want: 2},
		{name: "by context", filter: Filter{Context: "global"}, want: 2},
		{name: "by level", filter: Filter{Levels: []models.LogLevel{models.LogLevelWarning}}, want: 1},
		{name: "search details", filter: Filter{Search: "RESERVED"}, want: 1},
		{name: "search context", filter: Filter{Search: "GLOB"}, want: 2},
		{name: "since", filter: Filter{StartDate: timePtr(base.Add(-3 * time.Hour))}, want: 2},
		{name: "window", filter: Filter{StartDate: timePtr(base.Add(-6 * 24 * time.Hour)), EndDate: timePtr(base.Add(-90 * time.Minute))}, want: 2},
		{name: "combined", filter: Filter{PerformedBy: "alice", Context: "frontend"}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.QueryAuditLogs(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Total)
			assert.Len(t, res.Entries, int(tt.want))
		})
	}
}

func TestQueryAuditLogs_SortAndPage(t *testing.T) {
	e := openTestEngine(t)
	seed(t, e, time.Now().UTC())
	ctx := context.Background()

	res, err := e.QueryAuditLogs(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, res.Entries, 4)
	assert.Equal(t, models.OpSecurityEvent, res.Entries[0].Operation, "newest first by default")

	res, err = e.QueryAuditLogs(ctx, Filter{SortBy: "timestamp", SortOrder: "asc", Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Total)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, models.OpAddAlias, res.Entries[0].Operation)
	assert.Equal(t, models.OpResolveAlias, res.Entries[1].Operation)

	// Unknown sort columns are not interpolated into SQL.
	res, err = e.QueryAuditLogs(ctx, Filter{SortBy: "timestamp; DROP TABLE audit_logs"})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 4)
}

func TestGetAuditStatistics(t *testing.T) {
	e := openTestEngine(t)
	base := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	seed(t, e, base)

	stats, err := e.GetAuditStatistics(context.Background(), Filter{}, 2)
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.TotalEntries)
	assert.Equal(t, int64(2), stats.ByUser["alice"])
	assert.Equal(t, int64(1), stats.ByOperation[models.OpSecurityEvent])
	assert.Equal(t, int64(3), stats.ByEntityType[models.EntityAlias])
	assert.Equal(t, int64(2), stats.ByLevel[string(models.LogLevelInfo)])
	assert.Equal(t, int64(2), stats.ByContext["frontend"])
	assert.Equal(t, int64(2), stats.HourlyActivity["15"])
	assert.Equal(t, int64(2), stats.DailyActivity["2026-03-10"])

	require.Len(t, stats.TopUsers, 2)
	assert.Equal(t, Count{Key: "alice", Count: 2}, stats.TopUsers[0])
	require.Len(t, stats.TopEntities, 2)
	assert.Equal(t, "frontend:checkout", stats.TopEntities[0].Key)

	require.NotNil(t, stats.FirstEntry)
	require.NotNil(t, stats.LastEntry)
	assert.True(t, stats.FirstEntry.Equal(base.Add(-10*24*time.Hour)))
	assert.True(t, stats.LastEntry.Equal(base.Add(-time.Hour)))
}

func TestGetAuditStatistics_Empty(t *testing.T) {
	e := openTestEngine(t)
	stats, err := e.GetAuditStatistics(context.Background(), Filter{}, 0)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEntries)
	assert.Nil(t, stats.FirstEntry)
	assert.Empty(t, stats.TopUsers)
}

func TestCleanupOldLogs(t *testing.T) {
	e := openTestEngine(t)
	seed(t, e, time.Now().UTC())
	ctx := context.Background()

	n, err := e.CleanupOldLogs(ctx, 7, models.LogLevelInfo)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "the 10-day-old entry is debug")

	n, err = e.CleanupOldLogs(ctx, 3, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	res, err := e.QueryAuditLogs(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)

	_, err = e.CleanupOldLogs(ctx, -1, "")
	assert.Error(t, err)
	_, err = e.CleanupOldLogs(ctx, 1, "verbose")
	assert.Error(t, err)
}

func TestCleanupByRetention(t *testing.T) {
	e := openTestEngine(t)
	seed(t, e, time.Now().UTC())

	deleted, err := e.CleanupByRetention(context.Background(), DefaultRetention())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted[models.LogLevelDebug])
	assert.Equal(t, int64(0), deleted[models.LogLevelInfo])

	res, err := e.QueryAuditLogs(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
}

func TestGenerateReport_Formats(t *testing.T) {
	e := openTestEngine(t)
	seed(t, e, time.Now().UTC())
	ctx := context.Background()

	for _, format := range ValidReportFormats {
		t.Run(string(format), func(t *testing.T) {
			rep, err := e.GenerateReport(ctx, ReportRequest{Title: "Weekly <audit>", Format: format})
			require.NoError(t, err)
			assert.Equal(t, 4, rep.Entries)
			info, err := os.Stat(rep.Path)
			require.NoError(t, err)
			assert.Positive(t, info.Size())

			switch format {
			case FormatCSV:
				f, err := os.Open(rep.Path)
				require.NoError(t, err)
				defer func() { _ = f.Close() }()
				records, err := csv.NewReader(f).ReadAll()
				require.NoError(t, err)
				assert.Len(t, records, 5)
				assert.Equal(t, csvHeader, records[0])
			case FormatHTML:
				data, err := os.ReadFile(rep.Path)
				require.NoError(t, err)
				html := string(data)
				assert.Contains(t, html, "<table>")
				assert.Contains(t, html, "security_event")
				assert.NotContains(t, html, "<audit>")
			case FormatExcel:
				wb, err := excelize.OpenFile(rep.Path)
				require.NoError(t, err)
				defer func() { _ = wb.Close() }()
				assert.Equal(t, []string{logsSheet, statsSheet}, wb.GetSheetList())
				rows, err := wb.GetRows(logsSheet)
				require.NoError(t, err)
				assert.Len(t, rows, 5)
			case FormatJSON:
				data, err := os.ReadFile(rep.Path)
				require.NoError(t, err)
				assert.True(t, strings.Contains(string(data), `"total_entries": 4`))
			}
		})
	}

	_, err := e.GenerateReport(ctx, ReportRequest{Format: "pdf"})
	assert.Error(t, err)
}

func TestGenerateReport_IncludesEveryMatchingRow(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()
	base := time.Now().UTC()
	n := DefaultLimit + 5
	for i := 0; i < n; i++ {
		e.LogOperation(ctx, models.AuditEntry{
			Timestamp:  base.Add(-time.Duration(i) * time.Second),
			Operation:  models.OpResolveAlias,
			EntityType: models.EntityAlias,
			EntityID:   fmt.Sprintf("frontend:alias-%d", i),
			Context:    "frontend",
			Level:      models.LogLevelDebug,
		})
	}

	rep, err := e.GenerateReport(ctx, ReportRequest{Format: FormatJSON})
	require.NoError(t, err)
	assert.Equal(t, n, rep.Entries)

	data, err := os.ReadFile(rep.Path)
	require.NoError(t, err)
	var doc struct {
		Entries []models.AuditEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc.Entries, n)

	rep, err = e.GenerateReport(ctx, ReportRequest{Format: FormatCSV, Filter: Filter{Limit: 10}})
	require.NoError(t, err)
	assert.Equal(t, 10, rep.Entries)
}

func TestLogOperation_DatabaseFailureIsSwallowed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(assertErr("disk full"))

	e := NewEngineWithDB(db, t.TempDir(), newTestLogger())
	before := testutil.ToFloat64(metrics.AuditFailures)

	stored := e.LogOperation(context.Background(), models.AuditEntry{
		Operation:  models.OpAddAlias,
		EntityType: models.EntityAlias,
		EntityID:   "frontend:checkout",
	})
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AuditFailures))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryAuditLogs_DatabaseFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT COUNT").WillReturnError(assertErr("locked"))

	e := NewEngineWithDB(db, t.TempDir(), newTestLogger())
	_, err = e.QueryAuditLogs(context.Background(), Filter{Context: "frontend"})
	assert.ErrorContains(t, err, "locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupOldLogs_UsesCutoff(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	e := NewEngineWithDB(db, t.TempDir(), newTestLogger())
	fixed := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	mock.ExpectExec("DELETE FROM audit_logs WHERE timestamp < \\? AND log_level = \\?").
		WithArgs("2026-01-01T00:00:00.000000000Z", "info").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := e.CleanupOldLogs(context.Background(), 30, models.LogLevelInfo)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitize(t *testing.T) {
	in := map[string]any{
		"Password":     "x",
		"client_token": "y",
		"list":         []any{map[string]any{"secret": 1, "keep": 2}},
		"labels":       map[string]string{"credential_id": "c", "env": "prod"},
		"name":         "checkout",
	}
	out := Sanitize(in)
	assert.Equal(t, map[string]any{
		"list":   []any{map[string]any{"keep": 2}},
		"labels": map[string]any{"env": "prod"},
		"name":   "checkout",
	}, out)
	assert.Contains(t, in, "Password", "input is not modified")
	assert.Equal(t, map[string]any{}, Sanitize(nil))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func timePtr(t time.Time) *time.Time { return &t }
