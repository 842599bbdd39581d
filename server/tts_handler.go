package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"VoxTA/core/tts"
	"VoxTA/logger"
	"VoxTA/model"

	"github.com/gorilla/mux"
)

// SynthesizeHandler 提交异步合成任务
func (h *APIHandler) SynthesizeHandler(w http.ResponseWriter, r *http.Request) {
	var req tts.SynthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.tts.Submit(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.TaskSubmitResponse{
		TaskID:  rec.TaskID,
		Status:  rec.Status,
		Message: model.StatusMessage(rec.Status),
	})
}

// PreviewHandler 提交预听任务，文本会被截短
func (h *APIHandler) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	var req tts.SynthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.tts.Preview(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.TaskSubmitResponse{
		TaskID:  rec.TaskID,
		Status:  rec.Status,
		Message: model.StatusMessage(rec.Status),
	})
}

// ListTasksHandler 按类型列出最近的任务
func (h *APIHandler) ListTasksHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	kind := model.TaskKind(query.Get("kind"))
	if kind == "" {
		kind = model.TaskKindTTS
	}
	switch kind {
	case model.TaskKindTTS, model.TaskKindPreview, model.TaskKindCourseware,
		model.TaskKindVoiceReplace, model.TaskKindTranscribe:
	default:
		http.Error(w, "Unknown task kind", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(query.Get("limit"))
	items, err := h.tts.List(r.Context(), kind, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total": len(items),
		"items": items,
	})
}

// TaskStatusHandler 轮询任务状态
func (h *APIHandler) TaskStatusHandler(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]

	status, err := h.tts.Status(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// DownloadHandler 下载完成任务的产物
func (h *APIHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]

	data, filename, err := h.tts.Download(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeForFilename(filename))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	if _, err := w.Write(data); err != nil {
		logger.Warn("产物下载中断", logger.String("taskId", taskID), logger.ErrorField(err))
	}
}

func contentTypeForFilename(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(filename, ".zip"):
		return "application/zip"
	case strings.HasSuffix(filename, ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(filename, ".json"):
		return "application/json"
	}
	return "application/octet-stream"
}
