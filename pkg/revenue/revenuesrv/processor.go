package revenuesrv

import (
	"context"
	"encoding/json"

	"github.com/meridian-hq/meridian/pkg/errx"
	"github.com/meridian-hq/meridian/pkg/jobx"
	"github.com/meridian-hq/meridian/pkg/kernel"
)

// JobTypeProcessMonthlyRevenue is the queue job type for monthly commission runs.
const JobTypeProcessMonthlyRevenue = "revenue.process_monthly"

// MonthlyRevenuePayload identifies the tenant a revenue processing job runs for.
type MonthlyRevenuePayload struct {
	TenantID string `json:"tenant_id"`
}

// NewMonthlyRevenueProcessor adapts the service to the job queue. The job's
// result is the full commission calculation.
func NewMonthlyRevenueProcessor(svc *Service) jobx.Processor {
	return jobx.Typed(func(ctx context.Context, payload MonthlyRevenuePayload, job *jobx.JobRecord) (json.RawMessage, error) {
		if payload.TenantID == "" {
			return nil, errx.New("payload is missing tenant_id", errx.TypeValidation).
				WithDetail("job_id", job.ID)
		}

		calc, err := svc.ProcessMonthlyRevenue(ctx, kernel.TenantID(payload.TenantID))
		if err != nil {
			return nil, err
		}
		return json.Marshal(calc)
	})
}

// RegisterProcessors wires the revenue processors into a registry.
func RegisterProcessors(registry *jobx.Registry, svc *Service) {
	registry.Register(JobTypeProcessMonthlyRevenue, NewMonthlyRevenueProcessor(svc))
}
