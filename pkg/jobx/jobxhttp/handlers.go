package jobxhttp

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/meridian-hq/meridian/pkg/errx"
	"github.com/meridian-hq/meridian/pkg/jobx"
)

// Handlers exposes the job queue over HTTP.
type Handlers struct {
	worker *jobx.Worker
	log    *zap.Logger
}

func NewHandlers(worker *jobx.Worker, log *zap.Logger) *Handlers {
	return &Handlers{worker: worker, log: log.Named("jobx.http")}
}

// RegisterRoutes mounts the job queue endpoints. The stats route is registered
// before the :id route so "stats" is never captured as a job ID.
func (h *Handlers) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Post("/jobs", h.enqueueJob)
	api.Get("/jobs/stats", h.queueStats)
	api.Get("/jobs/:id", h.getJob)
	api.Post("/queue/worker", h.workerControl)
}

type enqueueRequest struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Priority int             `json:"priority"`
}

func (h *Handlers) enqueueJob(c *fiber.Ctx) error {
	var req enqueueRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Wrap(err, "invalid request body", errx.TypeValidation)
	}
	if req.Type == "" {
		return errx.New("job type is required", errx.TypeValidation)
	}

	jobID, err := h.worker.AddJob(c.Context(), req.Type, req.Payload, req.Priority)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id": jobID,
		"status": jobx.JobStatusPending,
	})
}

func (h *Handlers) getJob(c *fiber.Ctx) error {
	job, err := h.worker.GetJobStatus(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(job)
}

func (h *Handlers) queueStats(c *fiber.Ctx) error {
	stats, err := h.worker.GetQueueStats(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// workerControl starts or stops the polling loop, or reports its state.
// Accepted actions: start, stop, stats.
func (h *Handlers) workerControl(c *fiber.Ctx) error {
	action := c.Query("action")
	switch action {
	case "start":
		h.worker.Start()
		return c.JSON(fiber.Map{"running": true})
	case "stop":
		h.worker.Stop()
		return c.JSON(fiber.Map{"running": false})
	case "stats":
		return c.JSON(fiber.Map{"running": h.worker.IsRunning()})
	default:
		return errx.New("unknown worker action", errx.TypeValidation).
			WithDetail("action", action)
	}
}
