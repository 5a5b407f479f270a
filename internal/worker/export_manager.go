// Package worker owns the lifecycle of background export jobs. At most one
// job is active per checkup: a new request cancels and replaces the running
// one so two jobs never write into the same destination tree.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oasislab/checkup-export/internal/export"
	"github.com/oasislab/checkup-export/internal/models"
)

// ErrJobNotFound is returned when a job id is unknown or already pruned.
var ErrJobNotFound = errors.New("export job not found")

// finishedJobRetention is how long a finished job stays queryable before it
// is pruned from the registry.
const finishedJobRetention = time.Hour

// Job is one background export invocation.
type Job struct {
	ID        string
	CheckupID int64

	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	latest      models.MultiFormatExportResult
	hasLatest   bool
	finalErr    error
	finishedAt  time.Time
	subscribers map[int]chan models.MultiFormatExportResult
	nextSub     int
}

// Done is closed when the job has finished, successfully or not.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Result returns the latest result snapshot, the terminal error if any, and
// whether the job has finished.
func (j *Job) Result() (models.MultiFormatExportResult, error, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	select {
	case <-j.done:
		return j.latest, j.finalErr, true
	default:
		return j.latest, nil, false
	}
}

// Subscribe returns a channel of result snapshots, pre-seeded with the
// latest one, plus an unsubscribe function. The channel is closed when the
// job finishes.
func (j *Job) Subscribe() (<-chan models.MultiFormatExportResult, func()) {
	j.mu.Lock()
	defer j.mu.Unlock()

	ch := make(chan models.MultiFormatExportResult, 16)
	if j.hasLatest {
		ch <- j.latest
	}

	select {
	case <-j.done:
		close(ch)
		return ch, func() {}
	default:
	}

	id := j.nextSub
	j.nextSub++
	j.subscribers[id] = ch

	return ch, func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if sub, ok := j.subscribers[id]; ok {
			delete(j.subscribers, id)
			close(sub)
		}
	}
}

// publish records a snapshot and fans it out to subscribers. Slow
// subscribers drop intermediate snapshots instead of blocking the export.
func (j *Job) publish(result models.MultiFormatExportResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.latest = result
	j.hasLatest = true
	for _, ch := range j.subscribers {
		select {
		case ch <- result:
		default:
		}
	}
}

// finish stores the terminal error, closes all subscriber channels and
// marks the job done.
func (j *Job) finish(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.finalErr = err
	j.finishedAt = time.Now()
	for id, ch := range j.subscribers {
		delete(j.subscribers, id)
		close(ch)
	}
	close(j.done)
}

// Exporter runs one export invocation. *export.Orchestrator implements it.
type Exporter interface {
	Export(ctx context.Context, snap *models.CheckupSnapshot, opts models.ExportOptions, onProgress export.ProgressFunc) (*models.MultiFormatExportResult, error)
}

// Manager starts, tracks and replaces export jobs.
type Manager struct {
	exporter  Exporter
	logger    *zap.Logger
	retention time.Duration

	mu        sync.Mutex
	byID      map[string]*Job
	byCheckup map[int64]*Job
}

// NewManager creates a new export job manager.
func NewManager(exporter Exporter, logger *zap.Logger) *Manager {
	return &Manager{
		exporter:  exporter,
		logger:    logger,
		retention: finishedJobRetention,
		byID:      make(map[string]*Job),
		byCheckup: make(map[int64]*Job),
	}
}

// Start launches an export job for the snapshot. A job already running for
// the same checkup is cancelled and awaited first, so the destination
// directory never has two writers.
func (m *Manager) Start(ctx context.Context, snap *models.CheckupSnapshot, opts models.ExportOptions) (*Job, error) {
	m.mu.Lock()
	m.pruneLocked(time.Now())

	// Claim the checkup slot. The re-check after awaiting Done closes the
	// window where two concurrent Starts both see the same previous job;
	// registration of the new job happens under the same lock hold that
	// observed the slot empty.
	for {
		previous := m.byCheckup[snap.CheckupID]
		if previous == nil {
			break
		}
		select {
		case <-previous.Done():
			// Finished but its goroutine has not cleared the slot yet.
			delete(m.byCheckup, snap.CheckupID)
			continue
		default:
		}

		m.mu.Unlock()
		m.logger.Info("Replacing running export job",
			zap.Int64("checkup_id", snap.CheckupID),
			zap.String("previous_job", previous.ID))
		previous.cancel()
		<-previous.Done()
		m.mu.Lock()
	}

	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{
		ID:          uuid.NewString(),
		CheckupID:   snap.CheckupID,
		cancel:      cancel,
		done:        make(chan struct{}),
		subscribers: make(map[int]chan models.MultiFormatExportResult),
	}
	m.byID[job.ID] = job
	m.byCheckup[snap.CheckupID] = job
	m.mu.Unlock()

	go func() {
		defer cancel()

		result, err := m.exporter.Export(jobCtx, snap, opts, job.publish)
		if result != nil {
			job.publish(result.Clone())
		}
		if err != nil {
			m.logger.Warn("Export job ended with error",
				zap.String("job_id", job.ID),
				zap.Int64("checkup_id", snap.CheckupID),
				zap.Error(err))
		}
		job.finish(err)

		m.mu.Lock()
		if m.byCheckup[snap.CheckupID] == job {
			delete(m.byCheckup, snap.CheckupID)
		}
		m.mu.Unlock()
	}()

	m.logger.Info("Export job started",
		zap.String("job_id", job.ID),
		zap.Int64("checkup_id", snap.CheckupID))

	return job, nil
}

// pruneLocked drops finished jobs older than the retention window. The
// caller must hold m.mu.
func (m *Manager) pruneLocked(now time.Time) {
	for id, job := range m.byID {
		select {
		case <-job.Done():
		default:
			continue
		}
		job.mu.Lock()
		expired := now.Sub(job.finishedAt) >= m.retention
		job.mu.Unlock()
		if expired {
			delete(m.byID, id)
		}
	}
}

// Get looks a job up by id.
func (m *Manager) Get(jobID string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.byID[jobID]
	return job, ok
}

// Cancel requests cancellation of a job. It returns ErrJobNotFound when the
// id is unknown or the job was already pruned.
func (m *Manager) Cancel(jobID string) error {
	job, ok := m.Get(jobID)
	if !ok {
		return ErrJobNotFound
	}
	job.cancel()
	return nil
}

// Shutdown cancels every running job and waits for them to exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	jobs := make([]*Job, 0, len(m.byID))
	for _, job := range m.byID {
		jobs = append(jobs, job)
	}
	m.mu.Unlock()

	for _, job := range jobs {
		job.cancel()
		<-job.Done()
	}
}
