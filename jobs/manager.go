package jobs

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/breedkit/gblup/resource"
)

var (
	// ErrClosed is returned when submitting to a closed manager.
	ErrClosed = errors.New("jobs: manager closed")

	// ErrNotFound is returned when a job ID is unknown.
	ErrNotFound = errors.New("jobs: job not found")
)

// Manager tracks jobs and runs them on a fixed pool of worker goroutines.
// Safe for concurrent use.
type Manager struct {
	controller *resource.Controller

	workCh   chan func()
	stopCh   chan struct{}
	wg       sync.WaitGroup
	closed   atomic.Bool
	submitMu sync.RWMutex

	mu   sync.RWMutex
	jobs map[ID]*job
}

type job struct {
	id      ID
	kind    Kind
	created time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	status   Status
	result   any
	err      error
	started  time.Time
	finished time.Time
}

// NewManager creates a manager with numWorkers worker goroutines.
// numWorkers <= 0 selects GOMAXPROCS. The controller may be nil, in which
// case submissions and solve slots are unbounded.
func NewManager(numWorkers int, controller *resource.Controller) *Manager {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	m := &Manager{
		controller: controller,
		workCh:     make(chan func(), numWorkers*2),
		stopCh:     make(chan struct{}),
		jobs:       make(map[ID]*job),
	}

	m.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go m.worker()
	}

	return m
}

// worker processes work closures until the manager closes, draining any
// queued work before exiting.
func (m *Manager) worker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopCh:
			for {
				select {
				case workFunc, ok := <-m.workCh:
					if !ok {
						return
					}
					workFunc()
				default:
					return
				}
			}
		case workFunc, ok := <-m.workCh:
			if !ok {
				return
			}
			workFunc()
		}
	}
}

// Submit registers a job and enqueues it. The returned ID is valid
// immediately; the job reports StatusQueued until a worker picks it up.
//
// The submission context bounds enqueueing and rate limiting only. The
// task itself runs under a context owned by the job, cancelled by Cancel
// or Close.
func (m *Manager) Submit(ctx context.Context, kind Kind, task Task) (ID, error) {
	m.submitMu.RLock()
	defer m.submitMu.RUnlock()

	if m.closed.Load() {
		return "", ErrClosed
	}

	if err := m.controller.AcquireSubmit(ctx); err != nil {
		return "", err
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:      NewID(),
		kind:    kind,
		created: time.Now(),
		status:  StatusQueued,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	m.jobs[j.id] = j
	m.mu.Unlock()

	run := func() {
		m.run(taskCtx, j, task)
	}

	select {
	case m.workCh <- run:
		return j.id, nil
	case <-m.stopCh:
		m.discard(j)
		return "", ErrClosed
	case <-ctx.Done():
		m.discard(j)
		return "", ctx.Err()
	}
}

// discard finishes and drops a job that never made it onto the queue.
func (m *Manager) discard(j *job) {
	m.finish(j, StatusCancelled, nil, nil)
	m.mu.Lock()
	delete(m.jobs, j.id)
	m.mu.Unlock()
}

// run executes one job on a worker goroutine.
func (m *Manager) run(ctx context.Context, j *job, task Task) {
	// Cancelled while still queued: never start.
	if ctx.Err() != nil {
		m.finish(j, StatusCancelled, nil, nil)
		return
	}

	j.mu.Lock()
	j.status = StatusRunning
	j.started = time.Now()
	j.mu.Unlock()

	// Solve slots and memory are acquired inside the task itself, so the
	// same gating covers sync and async callers.
	result, err := task(ctx)

	// Cancel after the fact discards whatever the task produced.
	if ctx.Err() != nil {
		m.finish(j, StatusCancelled, nil, nil)
		return
	}
	if err != nil {
		m.finish(j, StatusFailed, nil, err)
		return
	}
	m.finish(j, StatusCompleted, result, nil)
}

func (m *Manager) finish(j *job, status Status, result any, err error) {
	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return
	}
	j.status = status
	j.result = result
	j.err = err
	j.finished = time.Now()
	j.mu.Unlock()

	j.cancel()
	close(j.done)
}

// Get returns a snapshot of the job, or ErrNotFound.
func (m *Manager) Get(id ID) (*Snapshot, error) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return j.snapshot(), nil
}

// Wait blocks until the job reaches a terminal state or ctx expires.
func (m *Manager) Wait(ctx context.Context, id ID) (*Snapshot, error) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	select {
	case <-j.done:
		return j.snapshot(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel marks a job cancelled. A queued job never starts; a running job's
// context is cancelled and its result is discarded when the task returns.
// Cancelling a terminal job is a no-op.
func (m *Manager) Cancel(id ID) error {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	j.cancel()
	return nil
}

// Forget drops a terminal job from the table. Non-terminal jobs are kept.
func (m *Manager) Forget(id ID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if j, ok := m.jobs[id]; ok {
		j.mu.Lock()
		terminal := j.status.Terminal()
		j.mu.Unlock()
		if terminal {
			delete(m.jobs, id)
		}
	}
}

// Len returns the number of tracked jobs.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

// Close shuts the manager down. Queued work is drained; jobs still
// running are cancelled and their results discarded. Idempotent.
func (m *Manager) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}

	m.submitMu.Lock()
	close(m.stopCh)
	close(m.workCh)
	m.submitMu.Unlock()

	m.mu.RLock()
	for _, j := range m.jobs {
		j.cancel()
	}
	m.mu.RUnlock()

	m.wg.Wait()
}

func (j *job) snapshot() *Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	return &Snapshot{
		ID:       j.id,
		Kind:     j.kind,
		Status:   j.status,
		Result:   j.result,
		Err:      j.err,
		Created:  j.created,
		Started:  j.started,
		Finished: j.finished,
	}
}
