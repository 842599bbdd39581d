package task

import (
	"context"
	"testing"
	"time"

	"VoxTA/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForTerminal(t *testing.T, store *Store, taskID string) *model.TaskRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := store.Get(context.Background(), taskID)
		require.NoError(t, err)
		if rec.Status.Terminal() {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s did not reach a terminal state", taskID)
	return nil
}

func TestRunnerCompletesJob(t *testing.T) {
	store := NewStore(newMemTaskRepository())
	runner := NewRunner(store, 2, 5*time.Second)
	defer runner.Stop()

	rec, err := store.Create(context.Background(), model.TaskKindTTS, "", `{}`)
	require.NoError(t, err)

	err = runner.Dispatch(rec.TaskID, func(ctx context.Context, report func(float64)) (string, float64, error) {
		report(0.5)
		return "results/" + rec.TaskID + ".wav", 1.2, nil
	})
	require.NoError(t, err)

	got := waitForTerminal(t, store, rec.TaskID)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
	assert.Equal(t, "results/"+rec.TaskID+".wav", got.OutputRef)
	assert.Equal(t, 1.2, got.Duration)
}

func TestRunnerRecordsJobError(t *testing.T) {
	store := NewStore(newMemTaskRepository())
	runner := NewRunner(store, 1, 5*time.Second)
	defer runner.Stop()

	rec, err := store.Create(context.Background(), model.TaskKindTTS, "", `{}`)
	require.NoError(t, err)

	err = runner.Dispatch(rec.TaskID, func(ctx context.Context, report func(float64)) (string, float64, error) {
		return "", 0, assert.AnError
	})
	require.NoError(t, err)

	got := waitForTerminal(t, store, rec.TaskID)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	assert.NotEmpty(t, got.Error)
	assert.Empty(t, got.OutputRef)
}

func TestRunnerRecoversFromPanic(t *testing.T) {
	store := NewStore(newMemTaskRepository())
	runner := NewRunner(store, 1, 5*time.Second)
	defer runner.Stop()

	rec, err := store.Create(context.Background(), model.TaskKindTTS, "", `{}`)
	require.NoError(t, err)

	err = runner.Dispatch(rec.TaskID, func(ctx context.Context, report func(float64)) (string, float64, error) {
		panic("boom")
	})
	require.NoError(t, err)

	got := waitForTerminal(t, store, rec.TaskID)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	assert.Contains(t, got.Error, "internal error")

	// worker 存活，后续任务正常执行
	rec2, err := store.Create(context.Background(), model.TaskKindTTS, "", `{}`)
	require.NoError(t, err)
	err = runner.Dispatch(rec2.TaskID, func(ctx context.Context, report func(float64)) (string, float64, error) {
		return "results/ok.wav", 0.5, nil
	})
	require.NoError(t, err)
	got2 := waitForTerminal(t, store, rec2.TaskID)
	assert.Equal(t, model.TaskStatusCompleted, got2.Status)
}

func TestRunnerQueueFullLeavesTaskUntouched(t *testing.T) {
	store := NewStore(newMemTaskRepository())
	runner := NewRunner(store, 1, 5*time.Second)
	defer runner.Stop()

	// 用一个阻塞任务占住唯一worker
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	blocker, err := store.Create(context.Background(), model.TaskKindTTS, "", `{}`)
	require.NoError(t, err)
	require.NoError(t, runner.Dispatch(blocker.TaskID, func(ctx context.Context, report func(float64)) (string, float64, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return "results/blocker.wav", 0.1, nil
	}))
	<-started

	// 填满队列
	for i := 0; i < cap(runner.queue); i++ {
		rec, err := store.Create(context.Background(), model.TaskKindTTS, "", `{}`)
		require.NoError(t, err)
		require.NoError(t, runner.Dispatch(rec.TaskID, func(ctx context.Context, report func(float64)) (string, float64, error) {
			return "results/queued.wav", 0.1, nil
		}))
	}

	// 队列满：拒绝入队，任务记录保持pending不被改成失败
	rejected, err := store.Create(context.Background(), model.TaskKindTTS, "", `{}`)
	require.NoError(t, err)
	err = runner.Dispatch(rejected.TaskID, func(ctx context.Context, report func(float64)) (string, float64, error) {
		return "results/never.wav", 0.1, nil
	})
	assert.ErrorIs(t, err, ErrQueueFull)

	got, err := store.Get(context.Background(), rejected.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, got.Status)
	assert.Empty(t, got.Error)
}

func TestRunnerTimeout(t *testing.T) {
	store := NewStore(newMemTaskRepository())
	runner := NewRunner(store, 1, 50*time.Millisecond)
	defer runner.Stop()

	rec, err := store.Create(context.Background(), model.TaskKindTTS, "", `{}`)
	require.NoError(t, err)

	err = runner.Dispatch(rec.TaskID, func(ctx context.Context, report func(float64)) (string, float64, error) {
		select {
		case <-ctx.Done():
			return "", 0, ctx.Err()
		case <-time.After(2 * time.Second):
			return "results/slow.wav", 1.0, nil
		}
	})
	require.NoError(t, err)

	got := waitForTerminal(t, store, rec.TaskID)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	assert.Contains(t, got.Error, "context deadline exceeded")
}
