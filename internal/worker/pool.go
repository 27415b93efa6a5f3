package worker

import (
	"context"
	"sync"
	"time"

	"adaptive-backend/internal/logger"
)

// Job asks for a fresh progress push for one (student, course).
type Job struct {
	StudentID string
	CourseID  string
}

type Handler func(ctx context.Context, job Job) error

// Pool runs post-attempt work off the request path. Jobs are best effort: when the queue is
// full, Enqueue drops the job and the student gets the next update instead.
type Pool struct {
	handler     Handler
	jobs        chan Job
	workerCount int
	timeout     time.Duration
	log         *logger.Logger
	wg          sync.WaitGroup
	stopOnce    sync.Once
	mu          sync.RWMutex
	stopped     bool
}

func NewPool(handler Handler, workerCount, queueSize int, log *logger.Logger) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		handler:     handler,
		jobs:        make(chan Job, queueSize),
		workerCount: workerCount,
		timeout:     10 * time.Second,
		log:         log,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Info("Started worker goroutines", "count", p.workerCount)
}

// Stop stops accepting jobs, drains the queue and waits for the workers.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.jobs)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

// Enqueue reports whether the job was accepted.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}

	select {
	case p.jobs <- job:
		return true
	default:
		p.log.Warn("Worker queue full, dropping job", "student_id", job.StudentID, "course_id", job.CourseID)
		return false
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.handler(ctx, job); err != nil {
			p.log.Warn("Worker job failed", "worker", id, "student_id", job.StudentID, "course_id", job.CourseID, "error", err)
		}
		cancel()
	}
	p.log.Debug("Worker shutting down", "worker", id)
}
