package revenuehttp

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/meridian-hq/meridian/pkg/errx"
	"github.com/meridian-hq/meridian/pkg/jobx"
	"github.com/meridian-hq/meridian/pkg/kernel"
	"github.com/meridian-hq/meridian/pkg/revenue/revenuesrv"
)

// Handlers exposes tenant revenue processing over HTTP. Processing itself is
// asynchronous: the process endpoint only enqueues a job and hands back its ID.
type Handlers struct {
	svc    *revenuesrv.Service
	worker *jobx.Worker
	log    *zap.Logger
}

func NewHandlers(svc *revenuesrv.Service, worker *jobx.Worker, log *zap.Logger) *Handlers {
	return &Handlers{svc: svc, worker: worker, log: log.Named("revenue.http")}
}

func (h *Handlers) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/v1/tenants/:id")

	api.Post("/revenue/process", h.processRevenue)
	api.Get("/revenue", h.revenueState)
	api.Get("/commissions", h.commissionRecords)
}

func (h *Handlers) processRevenue(c *fiber.Ctx) error {
	tenantID := c.Params("id")
	if tenantID == "" {
		return errx.New("tenant id is required", errx.TypeValidation)
	}

	payload, err := json.Marshal(revenuesrv.MonthlyRevenuePayload{TenantID: tenantID})
	if err != nil {
		return errx.Wrap(err, "failed to encode job payload", errx.TypeInternal)
	}

	jobID, err := h.worker.AddJob(c.Context(), revenuesrv.JobTypeProcessMonthlyRevenue, payload, 0)
	if err != nil {
		return err
	}

	h.log.Info("revenue processing enqueued",
		zap.String("tenant_id", tenantID),
		zap.String("job_id", jobID))

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":    jobID,
		"tenant_id": tenantID,
	})
}

func (h *Handlers) revenueState(c *fiber.Ctx) error {
	state, err := h.svc.RevenueState(c.Context(), kernel.TenantID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(state)
}

func (h *Handlers) commissionRecords(c *fiber.Ctx) error {
	opts := kernel.PaginationOptions{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 0),
	}
	period := kernel.Period(c.Query("period"))

	records, err := h.svc.CommissionRecords(c.Context(), kernel.TenantID(c.Params("id")), period, opts)
	if err != nil {
		return err
	}
	return c.JSON(records)
}
