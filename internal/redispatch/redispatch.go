package redispatch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/campaign-console/internal/app"
	"github.com/acme/campaign-console/internal/domain"
	"github.com/acme/campaign-console/internal/service/launch"
)

// Reconciler retries the execution trigger for campaigns whose launch
// sequence completed but whose initial dispatch failed. Those campaigns
// sit in the dispatch_pending status with all their records in place;
// only the outbound call to the execution engine is outstanding.
type Reconciler struct {
	container *app.Container
}

// New constructs a reconciler.
func New(container *app.Container) *Reconciler {
	return &Reconciler{container: container}
}

// Run executes the reconcile loop until cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	interval := r.container.Config.Redispatch.TickInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := r.tick(ctx); err != nil && ctx.Err() == nil {
			r.container.Logger.Error("redispatch tick failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) error {
	repos := r.container.Repositories()
	triggerClient := r.container.Services().Trigger
	logger := r.container.Logger

	tracer := otel.Tracer("console.redispatch")
	sctx, span := tracer.Start(ctx, "redispatch.tick")
	defer span.End()

	campaigns, err := repos.Campaigns.ListByStatus(sctx, domain.CampaignStatusDispatchPending, r.container.Config.Redispatch.BatchSize)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.Int("campaign.count", len(campaigns)))
	if len(campaigns) == 0 {
		return nil
	}
	logger.Info("redispatch: found pending campaigns", zap.Int("count", len(campaigns)))

	for _, campaign := range campaigns {
		cctx, cspan := tracer.Start(sctx, "redispatch.campaign", trace.WithAttributes(
			attribute.String("campaign.id", campaign.ID.String()),
		))

		// The agent is re-resolved at dispatch time: the one resolved
		// during the original launch may have been deactivated since.
		agent, err := repos.Agents.ActiveForClient(cctx, campaign.ClientID)
		if err != nil {
			cspan.RecordError(err)
			logger.Warn("redispatch: no active agent",
				zap.String("campaign_id", campaign.ID.String()),
				zap.Error(err))
			cspan.End()
			continue
		}

		payload := launch.BuildPayload(campaign, agent.ID)
		result, err := triggerClient.Trigger(cctx, payload)
		if err != nil {
			cspan.RecordError(err)
			logger.Warn("redispatch: trigger failed",
				zap.String("campaign_id", campaign.ID.String()),
				zap.Error(err))
			cspan.End()
			continue
		}

		status := domain.LaunchedStatus(campaign.ScheduleMode)
		if err := repos.Campaigns.UpdateStatus(cctx, campaign.ID, status); err != nil {
			cspan.RecordError(err)
			logger.Error("redispatch: update status",
				zap.String("campaign_id", campaign.ID.String()),
				zap.Error(err))
			cspan.End()
			continue
		}

		logger.Info("redispatch: campaign dispatched",
			zap.String("campaign_id", campaign.ID.String()),
			zap.String("status", string(status)),
			zap.Bool("used_fallback", result.UsedFallback))
		cspan.End()
	}

	return nil
}
