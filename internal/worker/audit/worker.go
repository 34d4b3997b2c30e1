package audit

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/campaign-console/internal/app"
	"github.com/acme/campaign-console/internal/queue"
	"github.com/acme/campaign-console/internal/repository"
)

// Worker consumes launch lifecycle events and writes them to the audit
// trail. The trail is keyed by (launch id, seq), so reprocessing a
// message after a crash overwrites the same row instead of duplicating it.
type Worker struct {
	container *app.Container
}

// New creates a new audit worker.
func New(container *app.Container) *Worker {
	return &Worker{container: container}
}

// Run processes launch events until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	cfg := w.container.Config
	groupID := cfg.Kafka.ConsumerGroupID + "-audit"
	reader := w.container.Kafka.NewReader(cfg.Kafka.LaunchTopic, groupID)
	defer reader.Close()

	store := w.container.Repositories().LaunchAudit
	logger := w.container.Logger

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("audit worker: fetch", zap.Error(err))
			continue
		}

		var event queue.LaunchEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("audit worker: unmarshal", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		tracer := otel.Tracer("console.auditworker")
		sctx, span := tracer.Start(ctx, "launch.audit", trace.WithAttributes(
			attribute.String("launch.id", event.LaunchID.String()),
			attribute.String("stage", event.Stage),
			attribute.Int("seq", event.Seq),
		))

		entry := repository.AuditEntry{
			LaunchID:   event.LaunchID,
			Seq:        event.Seq,
			Stage:      event.Stage,
			Status:     event.Status,
			CampaignID: event.CampaignID,
			ListID:     event.ListID,
			AgentID:    event.AgentID,
			Detail:     event.Error,
			OccurredAt: event.OccurredAt,
		}
		if err := store.Append(sctx, entry); err != nil {
			span.RecordError(err)
			logger.Error("audit worker: append", zap.Error(err))
			span.End()
			continue
		}

		if err := reader.CommitMessages(sctx, msg); err != nil {
			span.RecordError(err)
			logger.Error("audit worker: commit", zap.Error(err))
		}
		span.End()
	}
}
