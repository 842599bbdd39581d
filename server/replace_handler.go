package server

import (
	"encoding/json"
	"io"
	"net/http"

	"VoxTA/core/subtitle"
	"VoxTA/core/tts"
	"VoxTA/model"

	"github.com/gorilla/mux"
)

// UploadMediaHandler 上传待换声的音视频文件
func (h *APIHandler) UploadMediaHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.cfg.MaxMediaUploadSize); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Media file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.cfg.MaxMediaUploadSize+1))
	if err != nil {
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}
	if int64(len(data)) > h.cfg.MaxMediaUploadSize {
		http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}

	record, err := h.replaces.Upload(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// TranscribeHandler 为已上传媒体提交转写任务
func (h *APIHandler) TranscribeHandler(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["file_id"]

	rec, err := h.replaces.Transcribe(r.Context(), fileID)
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

// ProcessReplaceHandler 基于完成的转写提交换声任务
func (h *APIHandler) ProcessReplaceHandler(w http.ResponseWriter, r *http.Request) {
	transcribeTaskID := mux.Vars(r)["task_id"]

	var req tts.SynthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.replaces.Process(r.Context(), transcribeTaskID, req.VoiceID, req.ResolveParams())
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

// SubtitlesHandler 导出转写或换声任务的字幕
func (h *APIHandler) SubtitlesHandler(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]

	format, err := subtitle.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.replaces.Subtitles(r.Context(), taskID, format)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
