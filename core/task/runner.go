package task

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"VoxTA/logger"
)

// ErrQueueFull is returned when the runner cannot accept more work.
var ErrQueueFull = errors.New("task queue is full")

// Job 执行一个任务的实际工作。report 用于上报进度，返回的outputRef
// 和duration在成功时写入任务记录。
type Job func(ctx context.Context, report func(progress float64)) (outputRef string, duration float64, err error)

// Runner 固定大小的任务执行池。
// 每个任务带超时上下文执行，panic会被捕获并转为失败状态。
type Runner struct {
	store   *Store
	workers int
	timeout time.Duration

	queue chan queuedJob

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

type queuedJob struct {
	taskID string
	job    Job
}

// NewRunner creates a runner with the given number of workers and a per-task
// execution timeout.
func NewRunner(store *Store, workers int, timeout time.Duration) *Runner {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		store:   store,
		workers: workers,
		timeout: timeout,
		queue:   make(chan queuedJob, 100),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}

	return r
}

// Dispatch enqueues a job for an already created task. The task must be in
// pending status; it is marked processing when a worker picks it up.
// 队列满时不动任务记录直接拒绝，由调用方回滚刚建的记录。
func (r *Runner) Dispatch(taskID string, job Job) error {
	if job == nil {
		return nil
	}
	select {
	case r.queue <- queuedJob{taskID: taskID, job: job}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (r *Runner) worker() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case qj, ok := <-r.queue:
			if !ok {
				return
			}
			r.run(qj.taskID, qj.job)
		}
	}
}

// run executes one job, translating its outcome into a terminal task status.
func (r *Runner) run(taskID string, job Job) {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	if err := r.store.MarkProcessing(ctx, taskID); err != nil {
		logger.Error("无法将任务置为处理中", logger.String("taskId", taskID), logger.ErrorField(err))
		return
	}

	var (
		outputRef string
		duration  float64
		jobErr    error
	)
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("任务执行发生panic",
					logger.String("taskId", taskID),
					logger.Any("panic", rec),
					logger.String("stack", string(debug.Stack())))
				jobErr = fmt.Errorf("internal error: %v", rec)
			}
		}()
		outputRef, duration, jobErr = job(ctx, func(progress float64) {
			if err := r.store.SetProgress(ctx, taskID, progress); err != nil {
				logger.Warn("进度上报失败", logger.String("taskId", taskID), logger.ErrorField(err))
			}
		})
	}()

	if jobErr == nil && ctx.Err() != nil {
		jobErr = ctx.Err()
	}

	if jobErr != nil {
		if err := r.store.Fail(context.Background(), taskID, jobErr.Error()); err != nil {
			logger.Error("标记任务失败时出错", logger.String("taskId", taskID), logger.ErrorField(err))
		}
		return
	}

	if err := r.store.Complete(context.Background(), taskID, outputRef, duration); err != nil {
		logger.Error("标记任务完成时出错", logger.String("taskId", taskID), logger.ErrorField(err))
	}
}

// Stop waits for in-flight tasks to finish and discards the queue.
func (r *Runner) Stop() {
cleanup:
	for {
		select {
		case <-r.queue:
			// 丢弃排队中的任务
		default:
			break cleanup
		}
	}

	r.cancel()
	r.wg.Wait()
}
