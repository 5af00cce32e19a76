package auditarchive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistdesk/assistdesk/app/models"
	"github.com/assistdesk/assistdesk/internal/pkg/apperr"
	"github.com/assistdesk/assistdesk/internal/pkg/audit"
	"github.com/assistdesk/assistdesk/internal/pkg/env"
)

type fakeLister struct {
	entries []models.AdminActivityLog
	calls   []audit.Filter
}

func (l *fakeLister) List(ctx context.Context, f audit.Filter) ([]models.AdminActivityLog, int64, error) {
	l.calls = append(l.calls, f)
	var out []models.AdminActivityLog
	for _, e := range l.entries {
		if e.ID <= f.AfterID || e.CreatedAt.Before(*f.From) || !e.CreatedAt.Before(*f.To) {
			continue
		}
		out = append(out, e)
		if len(out) == f.Limit {
			break
		}
	}
	return out, int64(len(out)), nil
}

type fakeUploader struct {
	objects map[string][]byte
}

func (u *fakeUploader) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	if u.objects == nil {
		u.objects = map[string][]byte{}
	}
	u.objects[key] = append([]byte(nil), body...)
	return nil
}

func (u *fakeUploader) Bucket() string { return "audit-bucket" }

func TestObjectKey(t *testing.T) {
	from := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	assert.Equal(t, "audit/2026/03/07/20260307T000000Z-20260308T000000Z.jsonl", ObjectKey(from, to))
}

func TestExportWritesJSONLinesAcrossPages(t *testing.T) {
	from := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	lister := &fakeLister{}
	lister.entries = append(lister.entries, models.AdminActivityLog{ID: 1, ActivityType: "early", CreatedAt: from.Add(-time.Minute)})
	for i := 0; i < pageSize+3; i++ {
		lister.entries = append(lister.entries, models.AdminActivityLog{
			ID:           uint(i + 2),
			ActivityType: models.ActivityCreditAdjustment,
			CreatedAt:    from.Add(time.Duration(i) * time.Second),
		})
	}
	lister.entries = append(lister.entries, models.AdminActivityLog{ID: 9999, ActivityType: "late", CreatedAt: to})

	up := &fakeUploader{}
	res, err := NewExporter(lister, up).Export(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, pageSize+3, res.Entries)
	assert.Equal(t, "audit-bucket", res.Bucket)
	require.Len(t, lister.calls, 2)
	assert.True(t, lister.calls[0].Keyset)
	assert.Equal(t, uint(pageSize+1), lister.calls[1].AfterID)

	body := up.objects[res.ObjectKey]
	require.NotEmpty(t, body)
	assert.Equal(t, len(body), res.Bytes)

	scanner := bufio.NewScanner(bytes.NewReader(body))
	lines := 0
	for scanner.Scan() {
		var e models.AdminActivityLog
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		assert.Equal(t, models.ActivityCreditAdjustment, e.ActivityType)
		lines++
	}
	assert.Equal(t, pageSize+3, lines)
}

func TestExportEmptyWindowUploadsNothing(t *testing.T) {
	from := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	up := &fakeUploader{}
	res, err := NewExporter(&fakeLister{}, up).Export(context.Background(), from, from.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, res.Entries)
	assert.Empty(t, up.objects)
}

func TestExportValidation(t *testing.T) {
	now := time.Now()
	_, err := NewExporter(&fakeLister{}, &fakeUploader{}).Export(context.Background(), now, now)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = NewExporter(&fakeLister{}, nil).Export(context.Background(), now, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestLoadConfig(t *testing.T) {
	saved := env.Env
	t.Cleanup(func() { env.Env = saved })

	env.Env = map[string]string{"AUDIT_ARCHIVE_ENABLED": "true", "S3_ACCESS_KEY_ID": ""}
	_, err := LoadConfig()
	assert.Error(t, err)

	env.Env = map[string]string{"AUDIT_ARCHIVE_ENABLED": "false"}
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.IsEnabled())
}
