package rpc

import (
	"context"
	"sync"
	"time"

	"huskycat/internal/async"
	"huskycat/internal/logging"
	"huskycat/internal/result"
	"huskycat/internal/utils/id"
)

// TaskState is the lifecycle of one async validation handle.
type TaskState string

const (
	TaskQueued    TaskState = "queued"
	TaskRunning   TaskState = "running"
	TaskFinished  TaskState = "finished"
	TaskCancelled TaskState = "cancelled"
)

// Task is an async handle surfaced through validate_async. The table owns
// tasks for the lifetime of the process.
type Task struct {
	ID        string
	State     TaskState
	StartedAt time.Time
	Run       *result.Run
	Err       error

	cancel context.CancelFunc
}

// TaskTable tracks in-process async validations.
type TaskTable struct {
	mu     sync.Mutex
	tasks  map[string]*Task
	logger logging.Logger
}

// NewTaskTable builds an empty table.
func NewTaskTable(logger logging.Logger) *TaskTable {
	return &TaskTable{
		tasks:  make(map[string]*Task),
		logger: logging.OrNop(logger),
	}
}

// Launch starts fn in the background and returns the new task id.
func (t *TaskTable) Launch(parent context.Context, fn func(ctx context.Context) (*result.Run, error)) string {
	ctx, cancel := context.WithCancel(parent)
	task := &Task{
		ID:        id.NewTaskID(),
		State:     TaskQueued,
		StartedAt: time.Now(),
		cancel:    cancel,
	}

	t.mu.Lock()
	t.tasks[task.ID] = task
	t.mu.Unlock()

	async.Go(t.logger, "task-"+task.ID, func() {
		t.setState(task.ID, TaskRunning)
		run, err := fn(ctx)

		t.mu.Lock()
		defer t.mu.Unlock()
		if task.State == TaskCancelled {
			return
		}
		task.Run = run
		task.Err = err
		task.State = TaskFinished
	})
	return task.ID
}

// Get returns a snapshot of the task, or nil when unknown.
func (t *TaskTable) Get(taskID string) *Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[taskID]
	if !ok {
		return nil
	}
	cp := *task
	return &cp
}

// Cancel aborts a queued or running task. Finished tasks report false.
func (t *TaskTable) Cancel(taskID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[taskID]
	if !ok || task.State == TaskFinished || task.State == TaskCancelled {
		return false
	}
	task.State = TaskCancelled
	task.cancel()
	return true
}

func (t *TaskTable) setState(taskID string, state TaskState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if task, ok := t.tasks[taskID]; ok && task.State != TaskCancelled {
		task.State = state
	}
}
