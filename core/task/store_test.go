package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"VoxTA/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTaskRepository 内存实现，仅用于测试
type memTaskRepository struct {
	mu    sync.Mutex
	tasks map[string]model.TaskRecord
}

func newMemTaskRepository() *memTaskRepository {
	return &memTaskRepository{tasks: make(map[string]model.TaskRecord)}
}

func (r *memTaskRepository) CreateTask(rec *model.TaskRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[rec.TaskID] = *rec
	return nil
}

func (r *memTaskRepository) GetTaskByID(taskID string) (*model.TaskRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tasks[taskID]
	if !ok {
		return nil, nil
	}
	copied := rec
	return &copied, nil
}

func (r *memTaskRepository) UpdateTask(rec *model.TaskRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[rec.TaskID] = *rec
	return nil
}

func (r *memTaskRepository) DeleteTask(taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, taskID)
	return nil
}

func (r *memTaskRepository) ListTasksByKind(kind model.TaskKind, limit int) ([]*model.TaskRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.TaskRecord, 0)
	for _, rec := range r.tasks {
		if rec.Kind == kind && len(out) < limit {
			copied := rec
			out = append(out, &copied)
		}
	}
	return out, nil
}

func TestStoreLifecycle(t *testing.T) {
	store := NewStore(newMemTaskRepository())
	ctx := context.Background()

	rec, err := store.Create(ctx, model.TaskKindTTS, "", `{"text":"你好"}`)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, rec.Status)
	assert.Equal(t, 0.0, rec.Progress)
	assert.Contains(t, rec.TaskID, "tts_")

	require.NoError(t, store.MarkProcessing(ctx, rec.TaskID))
	require.NoError(t, store.SetProgress(ctx, rec.TaskID, 0.5))
	require.NoError(t, store.Complete(ctx, rec.TaskID, "results/"+rec.TaskID+".wav", 2.5))

	got, err := store.Get(ctx, rec.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
	assert.Equal(t, 1.0, got.Progress)
	assert.Equal(t, "results/"+rec.TaskID+".wav", got.OutputRef)
	assert.Empty(t, got.Error)
	assert.Equal(t, 2.5, got.Duration)
}

func TestStoreFailClearsOutput(t *testing.T) {
	store := NewStore(newMemTaskRepository())
	ctx := context.Background()

	rec, err := store.Create(ctx, model.TaskKindCourseware, "courseware/abc.pptx", `{}`)
	require.NoError(t, err)

	require.NoError(t, store.MarkProcessing(ctx, rec.TaskID))
	require.NoError(t, store.Fail(ctx, rec.TaskID, "合成引擎不可用"))

	got, err := store.Get(ctx, rec.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	assert.Empty(t, got.OutputRef)
	assert.Equal(t, "合成引擎不可用", got.Error)
}

func TestStoreRejectsIllegalTransitions(t *testing.T) {
	store := NewStore(newMemTaskRepository())
	ctx := context.Background()

	rec, err := store.Create(ctx, model.TaskKindTTS, "", `{}`)
	require.NoError(t, err)

	// pending 不能直接 completed
	err = store.Complete(ctx, rec.TaskID, "results/x.wav", 1.0)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	require.NoError(t, store.MarkProcessing(ctx, rec.TaskID))
	require.NoError(t, store.Complete(ctx, rec.TaskID, "results/x.wav", 1.0))

	// 终态不可再变
	err = store.Fail(ctx, rec.TaskID, "late failure")
	assert.ErrorIs(t, err, ErrIllegalTransition)
	err = store.MarkProcessing(ctx, rec.TaskID)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestStoreProgressMonotonic(t *testing.T) {
	store := NewStore(newMemTaskRepository())
	ctx := context.Background()

	rec, err := store.Create(ctx, model.TaskKindTTS, "", `{}`)
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessing(ctx, rec.TaskID))

	require.NoError(t, store.SetProgress(ctx, rec.TaskID, 0.7))
	// 滞后的低进度被忽略
	require.NoError(t, store.SetProgress(ctx, rec.TaskID, 0.3))

	got, err := store.Get(ctx, rec.TaskID)
	require.NoError(t, err)
	assert.Equal(t, 0.7, got.Progress)

	// 超出范围的值被截断
	require.NoError(t, store.SetProgress(ctx, rec.TaskID, 3.0))
	got, err = store.Get(ctx, rec.TaskID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Progress)
}

func TestStoreGetUnknownTask(t *testing.T) {
	store := NewStore(newMemTaskRepository())

	_, err := store.Get(context.Background(), "tts_ffffffffffff")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestStoreDiscardRemovesRecord(t *testing.T) {
	store := NewStore(newMemTaskRepository())
	ctx := context.Background()

	rec, err := store.Create(ctx, model.TaskKindTTS, "", `{}`)
	require.NoError(t, err)

	store.Discard(ctx, rec.TaskID)

	_, err = store.Get(ctx, rec.TaskID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestStoreRecentFiltersByKind(t *testing.T) {
	store := NewStore(newMemTaskRepository())
	ctx := context.Background()

	_, err := store.Create(ctx, model.TaskKindTTS, "", `{}`)
	require.NoError(t, err)
	_, err = store.Create(ctx, model.TaskKindTTS, "", `{}`)
	require.NoError(t, err)
	_, err = store.Create(ctx, model.TaskKindTranscribe, "media_abc", `{}`)
	require.NoError(t, err)

	tasks, err := store.Recent(model.TaskKindTTS, 10)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	tasks, err = store.Recent(model.TaskKindCourseware, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestStoreConcurrentUpdates(t *testing.T) {
	store := NewStore(newMemTaskRepository())
	ctx := context.Background()

	rec, err := store.Create(ctx, model.TaskKindTTS, "", `{}`)
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessing(ctx, rec.TaskID))

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			_ = store.SetProgress(ctx, rec.TaskID, float64(step)/20)
		}(i)
	}
	wg.Wait()

	got, err := store.Get(ctx, rec.TaskID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Progress)
	assert.Equal(t, model.TaskStatusProcessing, got.Status)
	assert.WithinDuration(t, time.Now(), got.UpdatedAt, 5*time.Second)
}
