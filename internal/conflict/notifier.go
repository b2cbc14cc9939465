package conflict

import (
	"context"
	"log/slog"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

// Notifier receives conflicts that need human review.
type Notifier interface {
	Notify(ctx context.Context, conflict models.ConflictDetection, res models.ConflictResolution) error
}

// LogNotifier writes escalations to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, c models.ConflictDetection, res models.ConflictResolution) error {
	n.logger.Warn("conflict escalated for review",
		"conflict_id", c.ID,
		"type", c.Type,
		"severity", c.Severity,
		"strategy", res.Strategy,
		"affected", c.AffectedEntities,
		"description", c.Description,
	)
	return nil
}
