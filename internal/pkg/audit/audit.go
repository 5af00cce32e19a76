// Package audit writes the append-only admin activity log.
//
// Record never fails the caller's primary operation: a failed insert is
// logged, queued for retry and returned as an *apperr.AuditWarning.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/assistdesk/assistdesk/app/models"
	"github.com/assistdesk/assistdesk/internal/pkg/apperr"
	"github.com/assistdesk/assistdesk/internal/pkg/jobqueue"
)

// Enqueuer is the part of the job queue the recorder needs.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error)
}

// Alerter reports problems on the operational channel.
type Alerter interface {
	Alert(subject, body string) error
}

// Entry is one activity to record.
type Entry struct {
	AdminUserID   uint
	UserID        *uint
	EntityType    string
	EntityID      string
	ActivityType  string
	Description   string
	Amount        *int64
	Metadata      map[string]any
	CorrelationID string
}

// Recorder writes activity entries.
type Recorder struct {
	repo    Repository
	queue   Enqueuer
	alerter Alerter
}

// NewRecorder creates a recorder. queue and alerter may be nil.
func NewRecorder(repo Repository, queue Enqueuer, alerter Alerter) *Recorder {
	return &Recorder{repo: repo, queue: queue, alerter: alerter}
}

// NewRecorderFromDB creates a recorder on a GORM DB handle.
func NewRecorderFromDB(db *gorm.DB, queue Enqueuer, alerter Alerter) *Recorder {
	return NewRecorder(NewRepository(db), queue, alerter)
}

// NewCorrelationID returns an id linking a mutation to its audit entry.
func NewCorrelationID() string {
	return uuid.NewString()
}

// EntityIDFor formats a numeric entity id.
func EntityIDFor(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// AdminName resolves the display name of adminID. Lookup failures fall back
// to models.UnknownAdminName and are only logged.
func (r *Recorder) AdminName(ctx context.Context, adminID uint) string {
	u, err := r.repo.FindUser(ctx, adminID)
	if err != nil {
		log.Warnf("[Audit] could not resolve admin %d: %v", adminID, err)
		return models.UnknownAdminName
	}
	return u.DisplayName()
}

// Record inserts one entry. On failure the entry is queued for retry and an
// *apperr.AuditWarning is returned.
func (r *Recorder) Record(ctx context.Context, e Entry) (*models.AdminActivityLog, error) {
	row, err := e.toModel()
	if err != nil {
		return nil, &apperr.AuditWarning{ActivityType: e.ActivityType, Err: err}
	}

	if err := r.repo.Insert(ctx, row); err != nil {
		log.Warnf("[Audit] %s for %s/%s not recorded (correlation %s): %v", row.ActivityType, row.EntityType, row.EntityID, row.CorrelationID, err)
		r.scheduleRetry(ctx, row)
		return row, &apperr.AuditWarning{ActivityType: row.ActivityType, Err: err}
	}
	return row, nil
}

// List returns entries matching filter, newest first, plus the total count.
func (r *Recorder) List(ctx context.Context, filter Filter) ([]models.AdminActivityLog, int64, error) {
	entries, total, err := r.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperr.FromStore("list activity", err)
	}
	return entries, total, nil
}

func (e Entry) toModel() (*models.AdminActivityLog, error) {
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	cid := e.CorrelationID
	if cid == "" {
		cid = NewCorrelationID()
	}
	return &models.AdminActivityLog{
		AdminUserID:   e.AdminUserID,
		UserID:        e.UserID,
		EntityType:    e.EntityType,
		EntityID:      e.EntityID,
		ActivityType:  e.ActivityType,
		Description:   e.Description,
		Amount:        e.Amount,
		Metadata:      raw,
		CorrelationID: cid,
	}, nil
}
