package audit

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/ajitpratap0/ssot-registry/internal/metrics"
	"github.com/ajitpratap0/ssot-registry/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// tsLayout is fixed-width so that lexical order of stored timestamps equals
// chronological order.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// Engine is the SQLite-backed audit log.
type Engine struct {
	db        *sql.DB
	logger    *slog.Logger
	reportDir string
	now       func() time.Time
}

// Options configures an Engine.
type Options struct {
	// Path of the SQLite database file.
	Path string
	// ReportDir receives generated reports. Defaults to "<dir of Path>/reports".
	ReportDir string
}

// Open opens (creating if needed) the audit database at opts.Path and brings
// its schema up to date.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Engine, error) {
	if opts.Path == "" {
		return nil, errors.New("audit: database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o750); err != nil {
		return nil, fmt.Errorf("audit: creating database directory: %w", err)
	}

	dsn := "file:" + opts.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: opening database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: pinging database: %w", err)
	}
	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	reportDir := opts.ReportDir
	if reportDir == "" {
		reportDir = filepath.Join(filepath.Dir(opts.Path), "reports")
	}
	logger.Info("audit log opened", "path", opts.Path)
	return &Engine{db: db, logger: logger, reportDir: reportDir, now: time.Now}, nil
}

// NewEngineWithDB wraps an already-migrated database handle.
func NewEngineWithDB(db *sql.DB, reportDir string, logger *slog.Logger) *Engine {
	return &Engine{db: db, logger: logger, reportDir: reportDir, now: time.Now}
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("audit: loading migrations: %w", err)
	}
	defer func() { _ = src.Close() }()

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("audit: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("audit: migrator: %w", err)
	}
	// m.Close would close db as well; only the source is released above.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("audit: applying migrations: %w", err)
	}
	return nil
}

// LogOperation sanitizes and appends entry. It never fails: write errors are
// logged and counted in ssot_audit_write_failures_total. The stored entry is
// returned with its ID, timestamp and level filled in.
func (e *Engine) LogOperation(ctx context.Context, entry models.AuditEntry) models.AuditEntry {
	entry = Prepare(entry, e.now)

	details, err := json.Marshal(entry.Details)
	if err != nil {
		e.logger.Error("audit details not serializable", "operation", entry.Operation, "error", err)
		details = []byte("{}")
	}

	_, err = e.db.ExecContext(ctx, `INSERT INTO audit_logs
		(id, timestamp, operation, entity_type, entity_id, details, performed_by, context, log_level, ip_address, user_agent, session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		formatTime(entry.Timestamp),
		entry.Operation,
		entry.EntityType,
		entry.EntityID,
		string(details),
		entry.PerformedBy,
		entry.Context,
		string(entry.Level),
		nullString(entry.IPAddress),
		nullString(entry.UserAgent),
		nullString(entry.SessionID),
	)
	if err != nil {
		metrics.AuditFailures.Inc()
		e.logger.Error("audit write failed",
			"operation", entry.Operation,
			"entity_id", entry.EntityID,
			"error", err,
		)
		return entry
	}

	metrics.AuditEntries.WithLabelValues(entry.Operation).Inc()
	return entry
}

// Prepare fills in defaults and strips sensitive details. It is exported so
// the registry's in-document log stores exactly what the database stores.
func Prepare(entry models.AuditEntry, now func() time.Time) models.AuditEntry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = now()
	}
	entry.Timestamp = entry.Timestamp.UTC().Round(0)
	if !entry.Level.IsValid() {
		entry.Level = models.LogLevelInfo
	}
	entry.Details = normalizeDetails(Sanitize(entry.Details))
	return entry
}

// normalizeDetails converts details to the shapes JSON decoding produces
// (float64 numbers, []any lists), so an entry compares equal before and
// after a storage round trip.
func normalizeDetails(details map[string]any) map[string]any {
	data, err := json.Marshal(details)
	if err != nil {
		return details
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return details
	}
	return out
}

// Close closes the underlying database. Later writes fail and are counted
// like any other audit write failure.
func (e *Engine) Close() error {
	return e.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		// Rows written by other tools may carry plain RFC 3339.
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
