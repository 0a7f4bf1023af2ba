package trigger

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// Executor is the external collaborator contract: it receives due jobs and
// later acknowledges executed | failed | skipped through the query API.
// Retries after a failed execution are the executor's responsibility.
type Executor interface {
	Dispatch(ctx context.Context, job *domain.TriggerJob) error
}

// JobLoader restores still-scheduled jobs across restarts. The heap is
// memory-only; without the reload a restart would strand every not-yet-due
// job in the store forever.
type JobLoader interface {
	PendingJobs(ctx context.Context) ([]*domain.TriggerJob, error)
}

type jobHeap []*domain.TriggerJob

func (h jobHeap) Len() int           { return len(h) }
func (h jobHeap) Less(i, j int) bool { return h[i].ScheduledFor.Before(h[j].ScheduledFor) }
func (h jobHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x any)        { *h = append(*h, x.(*domain.TriggerJob)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}

// Scheduler holds scheduled jobs until they are due, then hands them to the
// executor. Dispatch is isolated from the ingestion path: a slow executor
// delays other jobs, never event processing.
type Scheduler struct {
	mu       sync.Mutex
	pending  jobHeap
	wake     chan struct{}
	executor Executor
	loader   JobLoader
	log      *zap.Logger
}

func NewScheduler(executor Executor, loader JobLoader, log *zap.Logger) *Scheduler {
	return &Scheduler{
		wake:     make(chan struct{}, 1),
		executor: executor,
		loader:   loader,
		log:      log,
	}
}

// restore reloads jobs the previous process scheduled but never dispatched.
// Dispatch-then-crash before the executor's ack redelivers; the executor's
// side is expected to deduplicate by job id.
func (s *Scheduler) restore(ctx context.Context) {
	jobs, err := s.loader.PendingJobs(ctx)
	if err != nil {
		s.log.Error("Failed to restore scheduled trigger jobs", zap.Error(err))
		return
	}
	if len(jobs) == 0 {
		return
	}

	s.mu.Lock()
	for _, job := range jobs {
		heap.Push(&s.pending, job)
	}
	s.mu.Unlock()

	s.log.Info("Restored scheduled trigger jobs", zap.Int("count", len(jobs)))
}

// Schedule queues a job for dispatch at its scheduled time.
func (s *Scheduler) Schedule(job *domain.TriggerJob) {
	s.mu.Lock()
	heap.Push(&s.pending, job)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run restores still-scheduled jobs and dispatches due jobs until the
// context is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	s.restore(ctx)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.mu.Lock()
		var next *domain.TriggerJob
		if s.pending.Len() > 0 {
			next = s.pending[0]
		}
		s.mu.Unlock()

		if next == nil {
			select {
			case <-ctx.Done():
				s.log.Info("Trigger scheduler shutting down")
				return
			case <-s.wake:
			}
			continue
		}

		wait := time.Until(next.ScheduledFor)
		if wait > 0 {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(wait)

			select {
			case <-ctx.Done():
				s.log.Info("Trigger scheduler shutting down")
				return
			case <-s.wake:
				continue
			case <-timer.C:
			}
		}

		s.mu.Lock()
		job := heap.Pop(&s.pending).(*domain.TriggerJob)
		s.mu.Unlock()

		dispatchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := s.executor.Dispatch(dispatchCtx, job)
		cancel()

		if err != nil {
			s.log.Error("Failed to dispatch trigger job",
				zap.String("job_id", job.JobID),
				zap.String("trigger", job.TriggerName),
				zap.Error(err))
			continue
		}

		s.log.Info("Trigger job dispatched",
			zap.String("job_id", job.JobID),
			zap.String("trigger", job.TriggerName),
			zap.String("identity_id", job.IdentityID))
	}
}
