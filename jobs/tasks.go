package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Joseamica/avoqado-server-sub011/internal/inventory"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan sweeps raw materials at or below their reorder point.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskIdempotencyCleanup prunes processed checkout idempotency keys.
	TaskIdempotencyCleanup = "checkout:idempotency_cleanup"
)

// LowStockSource lists every ingredient, across venues, that needs reordering.
type LowStockSource interface {
	ListBelowReorderPointAll(ctx context.Context) ([]inventory.RawMaterial, error)
}

// LowStockScanPayload carries scheduling metadata.
type LowStockScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs the cron task.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// NewLowStockScanHandler returns the handler for TaskLowStockScan. Alerts go
// to the structured log; a notification channel can subscribe there.
func NewLowStockScanHandler(src LowStockSource, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload LowStockScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		materials, err := src.ListBelowReorderPointAll(ctx)
		if err != nil {
			return err
		}
		for _, m := range materials {
			logger.Warn("raw material at or below reorder point",
				slog.Int64("venue_id", m.VenueID),
				slog.Int64("raw_material_id", m.ID),
				slog.String("name", m.Name),
				slog.Float64("current_stock", m.CurrentStock),
				slog.Float64("reorder_point", m.ReorderPoint))
		}
		logger.Info("low stock scan finished", slog.Int("flagged", len(materials)))
		return nil
	}
}

// KeyCleaner prunes idempotency keys older than a retention window.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupPayload carries the retention window.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs the cron task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupHandler returns the handler for TaskIdempotencyCleanup.
func NewIdempotencyCleanupHandler(cleaner KeyCleaner, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload IdempotencyCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.Retention <= 0 {
			payload.Retention = 7 * 24 * time.Hour
		}
		if err := cleaner.Cleanup(ctx, payload.Retention); err != nil {
			return err
		}
		logger.Info("idempotency key cleanup finished", slog.Duration("retention", payload.Retention))
		return nil
	}
}
