package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"VoxTA/config"
	"VoxTA/core/auth"
	"VoxTA/core/synth"
	"VoxTA/core/task"
	"VoxTA/core/tts"
	"VoxTA/core/voice"
	"VoxTA/model"
	"VoxTA/repository"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- 测试用内存实现 ----

type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]model.TaskRecord
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[string]model.TaskRecord)}
}

func (r *memTaskRepo) CreateTask(rec *model.TaskRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[rec.TaskID] = *rec
	return nil
}

func (r *memTaskRepo) GetTaskByID(taskID string) (*model.TaskRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tasks[taskID]
	if !ok {
		return nil, nil
	}
	copied := rec
	return &copied, nil
}

func (r *memTaskRepo) UpdateTask(rec *model.TaskRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[rec.TaskID] = *rec
	return nil
}

func (r *memTaskRepo) DeleteTask(taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, taskID)
	return nil
}

func (r *memTaskRepo) ListTasksByKind(kind model.TaskKind, limit int) ([]*model.TaskRecord, error) {
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

func (r *memTaskRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

type memVoiceRepo struct {
	mu      sync.Mutex
	samples map[string]model.VoiceSample
}

func newMemVoiceRepo() *memVoiceRepo {
	return &memVoiceRepo{samples: make(map[string]model.VoiceSample)}
}

func (r *memVoiceRepo) Create(s *model.VoiceSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[s.ID] = *s
	return nil
}

func (r *memVoiceRepo) GetByID(id string) (*model.VoiceSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.samples[id]
	if !ok {
		return nil, nil
	}
	copied := s
	return &copied, nil
}

func (r *memVoiceRepo) List(tags []string, skip, limit int) ([]*model.VoiceSample, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.VoiceSample, 0)
	for _, s := range r.samples {
		copied := s
		out = append(out, &copied)
	}
	return out, len(out), nil
}

func (r *memVoiceRepo) UpdateStatus(id string, status model.VoiceStatus, score *float64, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.samples[id]
	s.Status = status
	s.QualityScore = score
	s.Error = errMsg
	r.samples[id] = s
	return nil
}

func (r *memVoiceRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.samples, id)
	return nil
}

type memUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]model.User)}
}

func (r *memUserRepo) CreateUser(user *model.User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return 0, repository.ErrDuplicateUser
		}
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = *user
	return user.ID, nil
}

func (r *memUserRepo) GetUserByID(id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	copied := u
	return &copied, nil
}

func (r *memUserRepo) GetUserByUsername(username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			copied := u
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) GetUserByEmail(email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copied := u
			return &copied, nil
		}
	}
	return nil, nil
}

type memArtifacts struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{objects: make(map[string][]byte)}
}

func (m *memArtifacts) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memArtifacts) PutFile(ctx context.Context, key, path, contentType string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.Put(ctx, key, data, contentType)
}

func (m *memArtifacts) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, err := m.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memArtifacts) Fetch(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return append([]byte(nil), data...), nil
}

func (m *memArtifacts) FetchToFile(ctx context.Context, key, destPath string) error {
	data, err := m.Fetch(ctx, key)
	if err != nil {
		return err
	}
	return os.WriteFile(destPath, data, 0644)
}

func (m *memArtifacts) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memArtifacts) Stat(ctx context.Context, key string) (int64, error) {
	data, err := m.Fetch(ctx, key)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

type noopExtractor struct{}

func (noopExtractor) Extract(ctx context.Context, path string) (float64, error) {
	return 0.9, nil
}

// ---- fixture ----

type apiFixture struct {
	router   http.Handler
	cfg      *config.Config
	taskRepo *memTaskRepo
	store    *task.Store
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:         "test-secret",
		MinTextLen:        1,
		MaxTextLen:        2000,
		PreviewMinTextLen: 5,
		PreviewMaxTextLen: 200,
		SampleRate:        22050,
		WorkerCount:       2,
	}

	taskRepo := newMemTaskRepo()
	voiceRepo := newMemVoiceRepo()
	artifacts := newMemArtifacts()

	require.NoError(t, voiceRepo.Create(&model.VoiceSample{
		ID:        "voice_ready123",
		Name:      "测试声音",
		Status:    model.VoiceStatusReady,
		ObjectKey: "voices/voice_ready123.wav",
	}))

	store := task.NewStore(taskRepo)
	runner := task.NewRunner(store, 2, 10*time.Second)
	t.Cleanup(runner.Stop)

	voiceService := voice.NewService(voiceRepo, artifacts, noopExtractor{}, 10*time.Second)
	ttsService := tts.NewService(cfg, store, runner, voiceService, synth.NewBuiltinEngine(22050), artifacts)

	handler := NewAPIHandler(cfg, newMemUserRepo(), ttsService, voiceService, nil, nil)
	return &apiFixture{
		router:   NewRouter(handler),
		cfg:      cfg,
		taskRepo: taskRepo,
		store:    store,
	}
}

func (f *apiFixture) authToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken(1, "tester", f.cfg.JWTSecret)
	require.NoError(t, err)
	return token
}

func (f *apiFixture) postJSON(t *testing.T, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) waitCompleted(t *testing.T, taskID string) model.TaskStatusResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w := f.get(t, "/api/tts/status/"+taskID)
		require.Equal(t, http.StatusOK, w.Code)

		var status model.TaskStatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		if status.Status == model.TaskStatusCompleted || status.Status == model.TaskStatusFailed {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s did not finish", taskID)
	return model.TaskStatusResponse{}
}

// ---- tests ----

func TestSynthesizeLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	token := f.authToken(t)

	w := f.postJSON(t, "/api/tts/synthesize", map[string]interface{}{
		"text":     "第一句。第二句！第三句？",
		"voice_id": "voice_ready123",
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var submitted model.TaskSubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitted))
	assert.True(t, strings.HasPrefix(submitted.TaskID, "tts_"))

	status := f.waitCompleted(t, submitted.TaskID)
	require.Equal(t, model.TaskStatusCompleted, status.Status)
	assert.Equal(t, 1.0, status.Progress)

	dl := f.get(t, "/api/tts/download/"+submitted.TaskID)
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, "audio/wav", dl.Header().Get("Content-Type"))
	assert.Contains(t, dl.Header().Get("Content-Disposition"), submitted.TaskID+".wav")
	assert.Equal(t, "RIFF", dl.Body.String()[0:4])

	// 重复下载字节一致
	dl2 := f.get(t, "/api/tts/download/"+submitted.TaskID)
	require.Equal(t, http.StatusOK, dl2.Code)
	assert.Equal(t, dl.Body.Bytes(), dl2.Body.Bytes())
}

func TestSynthesizeRequiresAuth(t *testing.T) {
	f := newAPIFixture(t)

	w := f.postJSON(t, "/api/tts/synthesize", map[string]interface{}{
		"text":     "你好。",
		"voice_id": "voice_ready123",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.postJSON(t, "/api/tts/synthesize", map[string]interface{}{
		"text":     "你好。",
		"voice_id": "voice_ready123",
	}, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSynthesizeRejectsBadInput(t *testing.T) {
	f := newAPIFixture(t)
	token := f.authToken(t)

	cases := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"empty text", map[string]interface{}{"text": "", "voice_id": "voice_ready123"}, http.StatusBadRequest},
		{"text too long", map[string]interface{}{"text": strings.Repeat("字", 2001), "voice_id": "voice_ready123"}, http.StatusBadRequest},
		{"speed below range", map[string]interface{}{"text": "你好。", "voice_id": "voice_ready123", "speed": 0.49}, http.StatusBadRequest},
		{"speed above range", map[string]interface{}{"text": "你好。", "voice_id": "voice_ready123", "speed": 2.01}, http.StatusBadRequest},
		{"pitch out of range", map[string]interface{}{"text": "你好。", "voice_id": "voice_ready123", "pitch": -1.5}, http.StatusBadRequest},
		{"unknown voice", map[string]interface{}{"text": "你好。", "voice_id": "voice_missing"}, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := f.taskRepo.count()
			w := f.postJSON(t, "/api/tts/synthesize", tc.body, token)
			assert.Equal(t, tc.want, w.Code)
			assert.Equal(t, before, f.taskRepo.count(), "rejected submit must not create a task")
		})
	}

	// 边界值可接受
	for _, speed := range []float64{0.5, 2.0} {
		w := f.postJSON(t, "/api/tts/synthesize", map[string]interface{}{
			"text": "你好。", "voice_id": "voice_ready123", "speed": speed,
		}, token)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	// 正好2000字符是合法上限
	w := f.postJSON(t, "/api/tts/synthesize", map[string]interface{}{
		"text": strings.Repeat("字", 2000), "voice_id": "voice_ready123",
	}, token)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestListTasksOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	token := f.authToken(t)

	for i := 0; i < 2; i++ {
		w := f.postJSON(t, "/api/tts/synthesize", map[string]interface{}{
			"text":     "你好。",
			"voice_id": "voice_ready123",
		}, token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w := f.postJSON(t, "/api/tts/preview", map[string]interface{}{
		"text":     "刚好五个字。",
		"voice_id": "voice_ready123",
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	type listResponse struct {
		Total int                        `json:"total"`
		Items []model.TaskStatusResponse `json:"items"`
	}

	w = f.get(t, "/api/tts/tasks?kind=tts")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var listed listResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, 2, listed.Total)
	for _, item := range listed.Items {
		assert.True(t, strings.HasPrefix(item.TaskID, "tts_"))
	}

	w = f.get(t, "/api/tts/tasks?kind=preview")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, 1, listed.Total)

	// kind缺省为tts
	w = f.get(t, "/api/tts/tasks")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, 2, listed.Total)

	// limit截断
	w = f.get(t, "/api/tts/tasks?kind=tts&limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, 1, listed.Total)

	w = f.get(t, "/api/tts/tasks?kind=bogus")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadBeforeCompletionOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	// 只建任务不派发，保持pending
	rec, err := f.store.Create(context.Background(), model.TaskKindTTS, "voice_ready123", "{}")
	require.NoError(t, err)

	w := f.get(t, "/api/tts/download/"+rec.TaskID)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.get(t, "/api/tts/download/tts_000000000000")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPreviewOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	token := f.authToken(t)

	w := f.postJSON(t, "/api/tts/preview", map[string]interface{}{
		"text":     strings.Repeat("字", 500),
		"voice_id": "voice_ready123",
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var submitted model.TaskSubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitted))
	assert.True(t, strings.HasPrefix(submitted.TaskID, "preview_"))

	status := f.waitCompleted(t, submitted.TaskID)
	assert.Equal(t, model.TaskStatusCompleted, status.Status)

	// 低于预听最短长度
	w = f.postJSON(t, "/api/tts/preview", map[string]interface{}{
		"text":     "你好",
		"voice_id": "voice_ready123",
	}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newAPIFixture(t)

	w := f.postJSON(t, "/api/auth/register", map[string]string{
		"username": "alice",
		"password": "secret123",
		"email":    "alice@example.com",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var reg struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
	assert.NotEmpty(t, reg.Token)

	// 重复注册冲突
	w = f.postJSON(t, "/api/auth/register", map[string]string{
		"username": "alice",
		"password": "secret123",
		"email":    "alice@example.com",
	}, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	// 登录：用户名和邮箱都可以
	for _, name := range []string{"alice", "alice@example.com"} {
		w = f.postJSON(t, "/api/auth/login", map[string]string{
			"username": name,
			"password": "secret123",
		}, "")
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	// 密码错误
	w = f.postJSON(t, "/api/auth/login", map[string]string{
		"username": "alice",
		"password": "wrong",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 注册拿到的token可以直接调需要认证的接口
	w = f.postJSON(t, "/api/tts/synthesize", map[string]interface{}{
		"text":     "你好。",
		"voice_id": "voice_ready123",
	}, reg.Token)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestStreamSynthesizeOverWebsocket(t *testing.T) {
	f := newAPIFixture(t)

	ts := httptest.NewServer(f.router)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/tts/synthesize/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"text":     "第一句。第二句！第三句？",
		"voice_id": "voice_ready123",
	}))

	type controlMsg struct {
		Type           string  `json:"type"`
		TotalSentences int     `json:"total_sentences"`
		Index          int     `json:"index"`
		Total          int     `json:"total"`
		Duration       float64 `json:"duration"`
	}

	readControl := func() controlMsg {
		t.Helper()
		msgType, data, err := conn.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.TextMessage, msgType)
		var msg controlMsg
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	info := readControl()
	require.Equal(t, "info", info.Type)
	require.Equal(t, 3, info.TotalSentences)

	for i := 0; i < 3; i++ {
		msgType, chunk, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.BinaryMessage, msgType, "audio goes on binary frames")
		assert.Equal(t, "RIFF", string(chunk[0:4]))

		marker := readControl()
		assert.Equal(t, "sentence_complete", marker.Type)
		assert.Equal(t, i, marker.Index)
		assert.Equal(t, 3, marker.Total)
	}

	done := readControl()
	assert.Equal(t, "complete", done.Type)
	assert.Greater(t, done.Duration, 0.0)
}

func TestStreamSynthesizeErrorFrame(t *testing.T) {
	f := newAPIFixture(t)

	ts := httptest.NewServer(f.router)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/tts/synthesize/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"text":     "你好。",
		"voice_id": "voice_missing",
	}))

	var msg struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.NotEmpty(t, msg.Message)
}
