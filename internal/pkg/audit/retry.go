package audit

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/assistdesk/assistdesk/app/models"
	"github.com/assistdesk/assistdesk/internal/pkg/jobqueue"
)

type retryPayload struct {
	Entry models.AdminActivityLog `json:"entry"`
}

func (r *Recorder) scheduleRetry(ctx context.Context, row *models.AdminActivityLog) {
	if r.queue == nil {
		r.alert(row, fmt.Errorf("no retry queue configured"))
		return
	}
	payload, err := jobqueue.ToMap(retryPayload{Entry: *row})
	if err == nil {
		_, err = r.queue.EnqueueJob(ctx, jobqueue.JobTypeAuditRetry, payload)
	}
	if err != nil {
		log.Errorf("[Audit] could not queue retry for correlation %s: %v", row.CorrelationID, err)
		r.alert(row, err)
	}
}

// RegisterJobs wires the retry handler and the exhaustion alert into q.
func (r *Recorder) RegisterJobs(q *jobqueue.Queue) {
	q.RegisterHandler(jobqueue.JobTypeAuditRetry, r.handleRetry)
	q.OnPermanentFailure(jobqueue.JobTypeAuditRetry, func(ctx context.Context, job *jobqueue.Job) {
		var p retryPayload
		if err := job.DecodePayload(&p); err != nil {
			log.Errorf("[Audit] undecodable retry job %s: %v", job.ID, err)
			return
		}
		r.alert(&p.Entry, fmt.Errorf("%d attempts failed: %s", job.RetryCount, job.ErrorMsg))
	})
}

func (r *Recorder) handleRetry(ctx context.Context, job *jobqueue.Job) error {
	var p retryPayload
	if err := job.DecodePayload(&p); err != nil {
		return fmt.Errorf("decode audit retry payload: %w", err)
	}
	entry := p.Entry
	entry.ID = 0
	if err := r.repo.Insert(ctx, &entry); err != nil {
		return err
	}
	log.Infof("[Audit] recorded %s (correlation %s) on retry", entry.ActivityType, entry.CorrelationID)
	return nil
}

func (r *Recorder) alert(row *models.AdminActivityLog, cause error) {
	if r.alerter == nil {
		log.Errorf("[Audit] entry lost: %s %s/%s correlation %s: %v", row.ActivityType, row.EntityType, row.EntityID, row.CorrelationID, cause)
		return
	}
	body := fmt.Sprintf("activity=%s entity=%s/%s admin=%d correlation=%s\ndescription: %s\ncause: %v",
		row.ActivityType, row.EntityType, row.EntityID, row.AdminUserID, row.CorrelationID, row.Description, cause)
	if err := r.alerter.Alert("admin activity entry not recorded", body); err != nil {
		log.Errorf("[Audit] alert delivery failed: %v", err)
	}
}
