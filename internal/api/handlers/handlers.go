package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/acme/campaign-console/internal/app"
	"github.com/acme/campaign-console/internal/service/ingest"
	"github.com/acme/campaign-console/internal/service/wizard"
)

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	container *app.Container
	wizard    *wizard.Service
	ingest    *ingest.Service
}

// NewHandlerSet creates a new handler bundle.
func NewHandlerSet(container *app.Container) *HandlerSet {
	services := container.Services()
	return &HandlerSet{
		container: container,
		wizard:    services.Wizard,
		ingest:    services.Ingest,
	}
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.health)

	api := app.Group("/api")
	v1 := api.Group("/v1")

	wiz := v1.Group("/wizard")
	wiz.Post("/sessions", h.openSession)
	wiz.Get("/sessions/:id", h.getSession)
	wiz.Put("/sessions/:id/details", h.updateDetails)
	wiz.Put("/sessions/:id/script", h.updateScript)
	wiz.Post("/sessions/:id/contacts/file", h.uploadContacts)
	wiz.Post("/sessions/:id/contacts", h.addManualContact)
	wiz.Delete("/sessions/:id/contacts/:index", h.removeContact)
	wiz.Post("/sessions/:id/next", h.nextStep)
	wiz.Post("/sessions/:id/back", h.backStep)
	wiz.Post("/sessions/:id/goto", h.gotoStep)
	wiz.Get("/sessions/:id/quota", h.quotaView)
	wiz.Post("/sessions/:id/launch", h.launchCampaign)
	wiz.Post("/sessions/:id/draft", h.saveDraft)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.container.Logger.Error("request failed", zap.Error(err))
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error":    message,
		"trace_id": ctx.GetRespHeader("Trace-Id"),
	})
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	healthCtx, cancel := context.WithTimeout(ctx.Context(), 2*time.Second)
	defer cancel()

	errs := make(map[string]string)

	if err := h.container.Postgres.DB().PingContext(healthCtx); err != nil {
		errs["postgres"] = err.Error()
	}

	if err := h.container.Redis.Inner().Ping(healthCtx).Err(); err != nil {
		errs["redis"] = err.Error()
	}

	if err := h.container.Scylla.Session().Query("SELECT now() FROM system.local").WithContext(healthCtx).Exec(); err != nil {
		errs["scylla"] = err.Error()
	}

	status := fiber.StatusOK
	if len(errs) > 0 {
		status = fiber.StatusServiceUnavailable
	}

	return ctx.Status(status).JSON(fiber.Map{"status": "ok", "errors": errs})
}
