package jobqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistdesk/assistdesk/internal/pkg/env"
)

func TestLoadConfigDefaults(t *testing.T) {
	prev := env.Env
	env.Env = map[string]string{}
	t.Cleanup(func() { env.Env = prev })
	cfg := LoadConfig()

	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, time.Duration(0), cfg.ReconcileInterval)
	assert.Equal(t, time.Hour, cfg.ReconcileOlderThan)
	assert.Equal(t, time.Minute, cfg.CounterFlushInterval)
}

func TestGetManagerSingleton(t *testing.T) {
	q, _ := newTestQueue(t, 1)
	globalManager = nil
	managerOnce = sync.Once{}
	managerOnce.Do(func() { globalManager = NewManager(q, Config{}) })

	assert.Same(t, GetManager(), GetManager())
	assert.Same(t, q, GetManager().GetQueue())
}

func TestManagerStartStop(t *testing.T) {
	q, _ := newTestQueue(t, 1)
	m := NewManager(q, Config{ReconcileInterval: time.Hour})

	m.Stop()
	assert.False(t, m.IsRunning())

	m.Start()
	assert.True(t, m.IsRunning())
	m.Start()

	m.Stop()
	assert.False(t, m.IsRunning())
}

func TestEnqueueReconcile(t *testing.T) {
	q, _ := newTestQueue(t, 1)
	m := NewManager(q, Config{ReconcileOlderThan: 90 * time.Minute})

	job, err := m.EnqueueReconcile(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, JobTypeSimulationReconcile, job.Type)

	var payload SimulationReconcileJobPayload
	require.NoError(t, job.DecodePayload(&payload))
	assert.EqualValues(t, 5400, payload.OlderThanSeconds)
	assert.Equal(t, uint(5), payload.RequestedBy)
}

func TestEnqueueReconcileKeepsSubMinuteAge(t *testing.T) {
	q, _ := newTestQueue(t, 1)
	m := NewManager(q, Config{ReconcileOlderThan: 30 * time.Second})

	job, err := m.EnqueueReconcile(context.Background(), 0)
	require.NoError(t, err)

	var payload SimulationReconcileJobPayload
	require.NoError(t, job.DecodePayload(&payload))
	assert.EqualValues(t, 30, payload.OlderThanSeconds)
}

func TestEnqueueArchive(t *testing.T) {
	q, _ := newTestQueue(t, 1)
	m := NewManager(q, Config{})

	from := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	job, err := m.EnqueueArchive(context.Background(), from, to, 9)
	require.NoError(t, err)
	assert.Equal(t, JobTypeAuditArchive, job.Type)

	var payload AuditArchiveJobPayload
	require.NoError(t, job.DecodePayload(&payload))
	assert.True(t, from.Equal(payload.From))
	assert.True(t, to.Equal(payload.To))
	assert.Equal(t, uint(9), payload.RequestedBy)
}

func TestManagerFlushesCounters(t *testing.T) {
	q, _ := newTestQueue(t, 1)
	m := NewManager(q, Config{CounterFlushInterval: 10 * time.Millisecond})
	var flushes atomic.Int32
	m.flushCounters = func() error {
		flushes.Add(1)
		return nil
	}

	m.Start()
	assert.Eventually(t, func() bool { return flushes.Load() >= 2 }, time.Second, 5*time.Millisecond)
	m.Stop()

	// Stop runs one final flush after the worker has exited
	after := flushes.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, flushes.Load())
}
