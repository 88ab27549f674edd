package camunda

import (
	"context"
	"time"

	"stream-monetization-workers/internal/common/config"
	"stream-monetization-workers/internal/common/metrics"
	"stream-monetization-workers/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

type HandlerFunc func(client worker.JobClient, job entities.Job)

// Manager opens and closes the job workers of one process.
type Manager struct {
	client  zbc.Client
	obs     *observability.Observability
	logger  *zap.Logger
	workers []worker.JobWorker
}

func NewManager(client zbc.Client, obs *observability.Observability, logger *zap.Logger) *Manager {
	return &Manager{client: client, obs: obs, logger: logger}
}

// Start opens a job worker for taskType unless it is disabled in config.
func (m *Manager) Start(taskType string, wcfg config.WorkerConfig, handler HandlerFunc) {
	if !wcfg.Enabled {
		m.logger.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	jw := m.client.NewJobWorker().
		JobType(taskType).
		Handler(m.instrument(taskType, handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()
	m.workers = append(m.workers, jw)

	m.logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}

func (m *Manager) instrument(taskType string, handler HandlerFunc) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer func() {
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
			elapsed := time.Since(start)
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
			if m.obs != nil {
				m.obs.RecordJobDuration(context.Background(), taskType, elapsed, "handled")
				m.obs.RecordJobProcessed(context.Background(), taskType, "handled")
			}
		}()
		handler(client, job)
	}
}

// Count reports how many workers are open.
func (m *Manager) Count() int {
	return len(m.workers)
}

// Close stops every worker and waits for in-flight jobs.
func (m *Manager) Close() {
	for _, w := range m.workers {
		w.Close()
		w.AwaitClose()
	}
	m.workers = nil
}
