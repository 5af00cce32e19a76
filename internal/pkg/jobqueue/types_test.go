package jobqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobLifecycle(t *testing.T) {
	job := &Job{ID: "j1", Type: JobTypeAuditRetry, Status: JobStatusPending, MaxRetries: 2}

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	require.NotNil(t, job.ProcessedAt)

	job.MarkAsFailed("boom")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, "boom", job.ErrorMsg)
	assert.True(t, job.IsRetryable())

	job.MarkAsRetrying()
	assert.Equal(t, JobStatusRetrying, job.Status)
	assert.False(t, job.IsRetryable())

	job.MarkAsFailed("boom again")
	assert.False(t, job.IsRetryable())

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Empty(t, job.ErrorMsg)
	assert.NotNil(t, job.CompletedAt)
}

func TestPayloadRoundTrip(t *testing.T) {
	in := SimulationReconcileJobPayload{OlderThanSeconds: 1800, RequestedBy: 7}
	m, err := ToMap(in)
	require.NoError(t, err)
	assert.EqualValues(t, 1800, m["older_than_seconds"])

	job := &Job{Payload: m}
	var out SimulationReconcileJobPayload
	require.NoError(t, job.DecodePayload(&out))
	assert.Equal(t, in, out)
}
