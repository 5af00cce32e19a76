package subscription

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/assistdesk/assistdesk/internal/pkg/jobqueue"
)

// RegisterJobs wires the reconciliation job into q.
func (s *Service) RegisterJobs(q *jobqueue.Queue) {
	q.RegisterHandler(jobqueue.JobTypeSimulationReconcile, func(ctx context.Context, job *jobqueue.Job) error {
		var p jobqueue.SimulationReconcileJobPayload
		if err := job.DecodePayload(&p); err != nil {
			return err
		}
		olderThan := time.Duration(p.OlderThanSeconds) * time.Second
		if olderThan <= 0 {
			olderThan = time.Hour
		}
		n, err := s.ReconcilePendingSimulations(ctx, olderThan)
		if err != nil {
			return err
		}
		log.Infof("[Subscription] reconciliation requested by %d failed %d simulations", p.RequestedBy, n)
		return nil
	})
}
