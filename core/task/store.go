package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"VoxTA/cache"
	"VoxTA/logger"
	"VoxTA/model"
	"VoxTA/repository"
)

var (
	// ErrTaskNotFound is returned when no task exists for the given ID.
	ErrTaskNotFound = errors.New("task not found")
	// ErrIllegalTransition is returned for status updates that break the lifecycle.
	ErrIllegalTransition = errors.New("illegal task status transition")
)

// Store 管理任务记录的完整生命周期。
// 写路径先落库，再刷新Redis快照；同一任务的更新经过per-id锁串行化，
// 读到的任何快照都是某次完整写入的结果。
type Store struct {
	repo repository.TaskRepository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a task store backed by the given repository.
func NewStore(repo repository.TaskRepository) *Store {
	return &Store{
		repo:  repo,
		locks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing updates for one task ID.
func (s *Store) lockFor(taskID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[taskID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[taskID] = l
	}
	return l
}

// releaseLock drops the per-id mutex once a task reaches a terminal state.
func (s *Store) releaseLock(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, taskID)
}

// Create registers a new pending task. Params is the JSON snapshot of the
// submitted configuration and is immutable afterwards.
func (s *Store) Create(ctx context.Context, kind model.TaskKind, inputRef, params string) (*model.TaskRecord, error) {
	now := time.Now()
	rec := &model.TaskRecord{
		TaskID:    model.NewTaskID(kind),
		Kind:      kind,
		Status:    model.TaskStatusPending,
		Progress:  0,
		InputRef:  inputRef,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateTask(rec); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	// 缓存写失败不影响任务创建，轮询会回源数据库
	if err := cache.SetTaskSnapshot(ctx, rec); err != nil {
		logger.Warn("任务快照写入失败", logger.String("taskId", rec.TaskID), logger.ErrorField(err))
	}

	logger.Info("任务已创建",
		logger.String("taskId", rec.TaskID),
		logger.String("kind", string(kind)))
	return rec, nil
}

// Discard removes a task record that never made it onto the queue.
// 只用于入队失败的回滚，这样客户端拿到的要么是可轮询的任务，要么什么都没有。
func (s *Store) Discard(ctx context.Context, taskID string) {
	if err := s.repo.DeleteTask(taskID); err != nil {
		logger.Error("任务回滚删除失败", logger.String("taskId", taskID), logger.ErrorField(err))
	}
	if err := cache.DeleteTaskSnapshot(ctx, taskID); err != nil {
		logger.Warn("任务快照删除失败", logger.String("taskId", taskID), logger.ErrorField(err))
	}
	s.releaseLock(taskID)
}

// Recent returns the latest tasks of one kind, newest first.
func (s *Store) Recent(kind model.TaskKind, limit int) ([]*model.TaskRecord, error) {
	return s.repo.ListTasksByKind(kind, limit)
}

// Get returns the current snapshot of a task, preferring the cache.
func (s *Store) Get(ctx context.Context, taskID string) (*model.TaskRecord, error) {
	if rec, err := cache.GetTaskSnapshot(ctx, taskID); err == nil && rec != nil {
		return rec, nil
	}

	rec, err := s.repo.GetTaskByID(taskID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrTaskNotFound
	}
	return rec, nil
}

// MarkProcessing moves a pending task to processing.
func (s *Store) MarkProcessing(ctx context.Context, taskID string) error {
	return s.update(ctx, taskID, func(rec *model.TaskRecord) error {
		if !rec.Status.CanTransition(model.TaskStatusProcessing) {
			return fmt.Errorf("%w: %s -> processing", ErrIllegalTransition, rec.Status)
		}
		rec.Status = model.TaskStatusProcessing
		return nil
	})
}

// SetProgress updates the progress of a processing task. Progress only moves
// forward; a stale lower value is ignored rather than rolled back.
func (s *Store) SetProgress(ctx context.Context, taskID string, progress float64) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	return s.update(ctx, taskID, func(rec *model.TaskRecord) error {
		if rec.Status.Terminal() {
			return fmt.Errorf("%w: progress update on %s task", ErrIllegalTransition, rec.Status)
		}
		if progress <= rec.Progress {
			return nil
		}
		rec.Progress = progress
		return nil
	})
}

// Complete marks a task as successfully finished with its output artifact.
func (s *Store) Complete(ctx context.Context, taskID, outputRef string, duration float64) error {
	err := s.update(ctx, taskID, func(rec *model.TaskRecord) error {
		if !rec.Status.CanTransition(model.TaskStatusCompleted) {
			return fmt.Errorf("%w: %s -> completed", ErrIllegalTransition, rec.Status)
		}
		rec.Status = model.TaskStatusCompleted
		rec.Progress = 1
		rec.OutputRef = outputRef
		rec.Error = ""
		rec.Duration = duration
		return nil
	})
	if err == nil {
		s.releaseLock(taskID)
		logger.Info("任务已完成",
			logger.String("taskId", taskID),
			logger.String("outputRef", outputRef))
	}
	return err
}

// Fail marks a task as failed with a diagnostic message.
func (s *Store) Fail(ctx context.Context, taskID, errMsg string) error {
	err := s.update(ctx, taskID, func(rec *model.TaskRecord) error {
		if !rec.Status.CanTransition(model.TaskStatusFailed) {
			return fmt.Errorf("%w: %s -> failed", ErrIllegalTransition, rec.Status)
		}
		rec.Status = model.TaskStatusFailed
		rec.OutputRef = ""
		rec.Error = errMsg
		return nil
	})
	if err == nil {
		s.releaseLock(taskID)
		logger.Warn("任务处理失败",
			logger.String("taskId", taskID),
			logger.String("error", errMsg))
	}
	return err
}

// update loads the task, applies the mutation under the per-id lock, and
// writes it back to the database before refreshing the cache snapshot.
func (s *Store) update(ctx context.Context, taskID string, mutate func(*model.TaskRecord) error) error {
	l := s.lockFor(taskID)
	l.Lock()
	defer l.Unlock()

	rec, err := s.repo.GetTaskByID(taskID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrTaskNotFound
	}

	if err := mutate(rec); err != nil {
		return err
	}
	rec.UpdatedAt = time.Now()

	if err := s.repo.UpdateTask(rec); err != nil {
		return fmt.Errorf("failed to update task %s: %w", taskID, err)
	}
	if err := cache.SetTaskSnapshot(ctx, rec); err != nil {
		logger.Warn("任务快照刷新失败", logger.String("taskId", taskID), logger.ErrorField(err))
	}
	return nil
}
