package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

// RetentionPolicy maps a log level to the number of days its entries are kept.
type RetentionPolicy map[models.LogLevel]int

// DefaultRetention returns the compliance retention tiers.
func DefaultRetention() RetentionPolicy {
	return RetentionPolicy{
		models.LogLevelDebug:    7,
		models.LogLevelInfo:     90,
		models.LogLevelWarning:  365,
		models.LogLevelError:    730,
		models.LogLevelCritical: 2555,
	}
}

// CleanupOldLogs deletes entries older than retentionDays. An empty level
// applies to every level; otherwise only entries of that level are removed.
// It returns the number of deleted rows.
func (e *Engine) CleanupOldLogs(ctx context.Context, retentionDays int, level models.LogLevel) (int64, error) {
	if retentionDays < 0 {
		return 0, errors.New("audit: retention days must not be negative")
	}
	if level != "" && !level.IsValid() {
		return 0, fmt.Errorf("audit: unknown log level %q", level)
	}

	cutoff := formatTime(e.now().Add(-time.Duration(retentionDays) * 24 * time.Hour))
	query := "DELETE FROM audit_logs WHERE timestamp < ?"
	args := []any{cutoff}
	if level != "" {
		query += " AND log_level = ?"
		args = append(args, string(level))
	}

	res, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("audit: deleting old entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("audit: counting deleted entries: %w", err)
	}
	e.logger.Info("audit cleanup", "retention_days", retentionDays, "level", level, "deleted", n)
	return n, nil
}

// CleanupByRetention applies policy level by level and returns the rows
// deleted per level. Levels missing from policy are kept forever.
func (e *Engine) CleanupByRetention(ctx context.Context, policy RetentionPolicy) (map[models.LogLevel]int64, error) {
	deleted := make(map[models.LogLevel]int64, len(policy))
	for _, level := range models.ValidLogLevels {
		days, ok := policy[level]
		if !ok {
			continue
		}
		n, err := e.CleanupOldLogs(ctx, days, level)
		if err != nil {
			return deleted, err
		}
		deleted[level] = n
	}
	return deleted, nil
}
