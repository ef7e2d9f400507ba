package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phamduchanh/docvec-be/types"
)

// TaskArchive persists finished tasks outside the in-memory table. Optional.
type TaskArchive interface {
	SaveTask(ctx context.Context, task *types.Task) error
}

type taskState struct {
	mu        sync.Mutex
	task      types.Task
	cancelled atomic.Bool
}

func (s *taskState) snapshot() types.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}

// TaskService queues document ingestion jobs on a bounded worker pool and
// tracks their lifecycle in memory. Subscribers receive progress events for
// every task.
type TaskService struct {
	logger    *zap.Logger
	documents *DocumentService
	archive   TaskArchive
	ttl       time.Duration

	mu    sync.RWMutex
	tasks map[string]*taskState

	subMu       sync.Mutex
	subscribers map[chan types.TaskEvent]struct{}

	queue  chan string
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewTaskService(logger *zap.Logger, documents *DocumentService, archive TaskArchive, workers int, ttl time.Duration) *TaskService {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &TaskService{
		logger:      logger,
		documents:   documents,
		archive:     archive,
		ttl:         ttl,
		tasks:       make(map[string]*taskState),
		subscribers: make(map[chan types.TaskEvent]struct{}),
		queue:       make(chan string, 256),
		ctx:         ctx,
		cancel:      cancel,
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	if ttl > 0 {
		s.wg.Add(1)
		go s.janitor()
	}
	return s
}

// Submit registers a new task and queues it. The returned ID is usable
// immediately with Status.
func (s *TaskService) Submit(filePath string, opts types.ProcessOptions) (string, error) {
	id := uuid.NewString()
	state := &taskState{task: types.Task{
		ID:        id,
		FilePath:  filePath,
		Options:   opts,
		Status:    types.TaskStatusQueued,
		CreatedAt: time.Now().Unix(),
	}}

	s.mu.Lock()
	s.tasks[id] = state
	s.mu.Unlock()

	select {
	case s.queue <- id:
	default:
		s.mu.Lock()
		delete(s.tasks, id)
		s.mu.Unlock()
		return "", errors.New("task queue is full")
	}

	s.logger.Info("task queued",
		zap.String("task_id", id),
		zap.String("file", filePath),
		zap.String("collection", opts.Collection))
	s.publish(types.TaskEvent{TaskID: id, Status: types.TaskStatusQueued})
	return id, nil
}

// Get returns a snapshot of the task, queued or finished.
func (s *TaskService) Get(id string) (types.Task, error) {
	s.mu.RLock()
	state, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return types.Task{}, fmt.Errorf("task %s: %w", id, types.ErrNotFound)
	}
	return state.snapshot(), nil
}

// Status returns just the status of the task.
func (s *TaskService) Status(id string) (types.TaskStatus, error) {
	task, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return task.Status, nil
}

// Result returns the process result of a succeeded task. For tasks still
// queued or running it returns the task with a nil result and no error, so
// callers can distinguish "pending" from "unknown".
func (s *TaskService) Result(id string) (types.Task, error) {
	return s.Get(id)
}

// List returns snapshots of every known task, newest first.
func (s *TaskService) List() []types.Task {
	s.mu.RLock()
	tasks := make([]types.Task, 0, len(s.tasks))
	for _, state := range s.tasks {
		tasks = append(tasks, state.snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt > tasks[j].CreatedAt
	})
	return tasks
}

// Cancel requests cancellation. A queued task is cancelled before it
// starts; a running task stops at its next stage boundary.
func (s *TaskService) Cancel(id string) error {
	s.mu.RLock()
	state, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("task %s: %w", id, types.ErrNotFound)
	}
	state.cancelled.Store(true)
	return nil
}

// Clear removes a finished task from the table. Running and queued tasks
// are left alone.
func (s *TaskService) Clear(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, types.ErrNotFound)
	}
	if !state.snapshot().Status.Terminal() {
		return fmt.Errorf("task %s is not finished: %w", id, types.ErrInvalidInput)
	}
	delete(s.tasks, id)
	return nil
}

// Subscribe returns a channel of task events. The caller must call the
// returned cancel function when done; slow subscribers drop events rather
// than block the pipeline.
func (s *TaskService) Subscribe() (<-chan types.TaskEvent, func()) {
	ch := make(chan types.TaskEvent, 64)
	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()
	return ch, func() {
		s.subMu.Lock()
		delete(s.subscribers, ch)
		s.subMu.Unlock()
	}
}

// Close stops the workers after the current tasks finish.
func (s *TaskService) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *TaskService) worker(n int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case id := <-s.queue:
			s.run(id)
		}
	}
}

func (s *TaskService) run(id string) {
	s.mu.RLock()
	state, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return
	}

	if state.cancelled.Load() {
		s.finish(state, types.TaskStatusFailed, types.ErrTaskCancelled.Error(), nil)
		return
	}

	state.mu.Lock()
	state.task.Status = types.TaskStatusRunning
	state.mu.Unlock()
	s.publish(types.TaskEvent{TaskID: id, Status: types.TaskStatusRunning})

	progress := func(stage string, processed, total int) {
		state.mu.Lock()
		if total > 0 {
			state.task.TotalPages = total
			state.task.ProcessedPages = processed
		}
		state.mu.Unlock()
		s.publish(types.TaskEvent{
			TaskID:         id,
			Status:         types.TaskStatusRunning,
			Stage:          stage,
			TotalPages:     total,
			ProcessedPages: processed,
		})
	}

	task := state.snapshot()
	result, err := s.documents.Process(s.ctx, task.FilePath, task.Options, progress, state.cancelled.Load)
	if err != nil {
		s.logger.Warn("task failed",
			zap.String("task_id", id),
			zap.Error(err))
		s.finish(state, types.TaskStatusFailed, err.Error(), nil)
		return
	}

	s.logger.Info("task succeeded",
		zap.String("task_id", id),
		zap.Int("pages", result.TotalPages),
		zap.Int("embedded_units", result.EmbeddedUnits),
		zap.String("provider", result.EmbeddingProvider))
	s.finish(state, types.TaskStatusSucceeded, "", result)
}

func (s *TaskService) finish(state *taskState, status types.TaskStatus, errMsg string, result *types.ProcessResult) {
	state.mu.Lock()
	state.task.Status = status
	state.task.Error = errMsg
	state.task.Result = result
	state.task.FinishedAt = time.Now().Unix()
	task := state.task
	state.mu.Unlock()

	s.publish(types.TaskEvent{TaskID: task.ID, Status: status, Error: errMsg})

	if s.archive != nil {
		archiveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.archive.SaveTask(archiveCtx, &task); err != nil {
			s.logger.Warn("task archive write failed",
				zap.String("task_id", task.ID),
				zap.Error(err))
		}
	}
}

func (s *TaskService) publish(event types.TaskEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// janitor drops finished tasks older than the TTL so the table does not
// grow without bound.
func (s *TaskService) janitor() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.ttl).Unix()
			s.mu.Lock()
			for id, state := range s.tasks {
				task := state.snapshot()
				if task.Status.Terminal() && task.FinishedAt > 0 && task.FinishedAt < cutoff {
					delete(s.tasks, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
