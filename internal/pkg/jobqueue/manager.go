package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/assistdesk/assistdesk/internal/pkg/env"
	"github.com/assistdesk/assistdesk/internal/pkg/metrics/counter"
)

// Config holds the worker runtime settings.
type Config struct {
	Workers int
	// ReconcileInterval enables the periodic billing-simulation reconciliation when > 0.
	ReconcileInterval time.Duration
	// ReconcileOlderThan is the age after which a pending simulation counts as stale.
	ReconcileOlderThan time.Duration
	// CounterFlushInterval moves Redis request counters to the database when > 0.
	CounterFlushInterval time.Duration
}

// LoadConfig reads JOBQUEUE_* settings. Reconciliation is off unless an interval is set.
func LoadConfig() Config {
	return Config{
		Workers:              env.GetEnvInt("JOBQUEUE_WORKERS", 3),
		ReconcileInterval:    env.GetEnvDuration("JOBQUEUE_RECONCILE_INTERVAL", 0),
		ReconcileOlderThan:   env.GetEnvDuration("JOBQUEUE_RECONCILE_OLDER_THAN", time.Hour),
		CounterFlushInterval: env.GetEnvDuration("COUNTER_FLUSH_INTERVAL", time.Minute),
	}
}

// Manager manages the global job queue and background tasks
type Manager struct {
	queue              *Queue
	cfg                Config
	reconcileTimer     *time.Ticker
	counterFlushTicker *time.Ticker
	flushCounters      func() error
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		cfg := LoadConfig()
		globalManager = NewManager(NewQueue(cfg.Workers), cfg)
	})
	return globalManager
}

// NewManager wraps queue with the periodic tasks described by cfg.
func NewManager(queue *Queue, cfg Config) *Manager {
	return &Manager{
		queue:         queue,
		cfg:           cfg,
		stopCh:        make(chan struct{}),
		flushCounters: counter.FlushAll,
	}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	if m.cfg.ReconcileInterval > 0 {
		m.reconcileTimer = time.NewTicker(m.cfg.ReconcileInterval)
		m.wg.Add(1)
		go m.reconcileWorker(m.reconcileTimer, m.stopCh)
	}

	if m.cfg.CounterFlushInterval > 0 {
		m.counterFlushTicker = time.NewTicker(m.cfg.CounterFlushInterval)
		m.wg.Add(1)
		go m.counterFlushWorker(m.counterFlushTicker, m.stopCh)
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.reconcileTimer != nil {
		m.reconcileTimer.Stop()
		m.reconcileTimer = nil
	}
	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
		m.counterFlushTicker = nil
	}

	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	// final flush so counts are not lost on shutdown
	if m.cfg.CounterFlushInterval > 0 {
		if err := m.flushCounters(); err != nil {
			log.Errorf("[JobQueue Manager] Final counter flush error: %v", err)
		}
	}

	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// reconcileWorker enqueues a reconciliation job on every tick
func (m *Manager) reconcileWorker(ticker *time.Ticker, stopCh chan struct{}) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started reconcile worker (interval: %s)", m.cfg.ReconcileInterval)

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Reconcile worker stopping")
			return
		case <-ticker.C:
			if _, err := m.EnqueueReconcile(context.Background(), 0); err != nil {
				log.Errorf("[JobQueue Manager] Error enqueuing reconciliation: %v", err)
			}
		}
	}
}

// counterFlushWorker periodically flushes request counters from Redis to DB
func (m *Manager) counterFlushWorker(ticker *time.Ticker, stopCh chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Counter flush worker stopping")
			return
		case <-ticker.C:
			if err := m.flushCounters(); err != nil {
				log.Errorf("[JobQueue Manager] Counter flush error: %v", err)
			}
		}
	}
}

// EnqueueReconcile schedules one reconciliation pass requested by adminID (0 for the scheduler).
func (m *Manager) EnqueueReconcile(ctx context.Context, adminID uint) (*Job, error) {
	payload, err := ToMap(SimulationReconcileJobPayload{
		OlderThanSeconds: int64(m.cfg.ReconcileOlderThan / time.Second),
		RequestedBy:      adminID,
	})
	if err != nil {
		return nil, err
	}
	return m.queue.EnqueueJob(ctx, JobTypeSimulationReconcile, payload)
}

// EnqueueArchive schedules an export of the activity entries in [from, to).
func (m *Manager) EnqueueArchive(ctx context.Context, from, to time.Time, adminID uint) (*Job, error) {
	payload, err := ToMap(AuditArchiveJobPayload{From: from.UTC(), To: to.UTC(), RequestedBy: adminID})
	if err != nil {
		return nil, err
	}
	return m.queue.EnqueueJob(ctx, JobTypeAuditArchive, payload)
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
