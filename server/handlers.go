package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"VoxTA/config"
	"VoxTA/core/course"
	"VoxTA/core/replace"
	"VoxTA/core/synth"
	"VoxTA/core/task"
	"VoxTA/core/tts"
	"VoxTA/core/voice"
	"VoxTA/logger"
	"VoxTA/repository"
)

// APIHandler holds dependencies for the HTTP handlers.
type APIHandler struct {
	cfg      *config.Config
	userRepo repository.UserRepository
	tts      *tts.Service
	voices   *voice.Service
	courses  *course.Service
	replaces *replace.Service
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(cfg *config.Config, userRepo repository.UserRepository,
	ttsService *tts.Service, voiceService *voice.Service,
	courseService *course.Service, replaceService *replace.Service) *APIHandler {
	return &APIHandler{
		cfg:      cfg,
		userRepo: userRepo,
		tts:      ttsService,
		voices:   voiceService,
		courses:  courseService,
		replaces: replaceService,
	}
}

// writeJSON serializes a response body with the right content type.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("响应序列化失败", logger.ErrorField(err))
	}
}

// writeError maps service errors onto HTTP statuses.
// 校验类错误400、资源不存在404，其余一律500。
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, task.ErrTaskNotFound),
		errors.Is(err, voice.ErrVoiceNotFound),
		errors.Is(err, course.ErrCoursewareNotFound),
		errors.Is(err, replace.ErrMediaNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)

	case errors.Is(err, tts.ErrInvalidText),
		errors.Is(err, synth.ErrInvalidParams),
		errors.Is(err, voice.ErrVoiceNotReady),
		errors.Is(err, voice.ErrUnsupportedAudio),
		errors.Is(err, course.ErrUnsupportedCourseware),
		errors.Is(err, course.ErrExtractionUnsupported),
		errors.Is(err, replace.ErrUnsupportedMedia),
		errors.Is(err, replace.ErrTranscriptionNotReady),
		errors.Is(err, tts.ErrTaskNotReady):
		http.Error(w, err.Error(), http.StatusBadRequest)

	case errors.Is(err, task.ErrQueueFull):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)

	default:
		logger.Error("请求处理失败", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
