package server

import (
	"encoding/json"
	"io"
	"net/http"

	"VoxTA/core/tts"
	"VoxTA/model"

	"github.com/gorilla/mux"
)

// UploadCoursewareHandler 上传课件文件
func (h *APIHandler) UploadCoursewareHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.cfg.MaxMediaUploadSize); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Courseware file is required", http.StatusBadRequest)
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

	record, err := h.courses.Upload(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// ExtractCoursewareHandler 提取课件逐页文本
func (h *APIHandler) ExtractCoursewareHandler(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["file_id"]

	extraction, err := h.courses.Extract(r.Context(), fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, extraction)
}

// SynthesizeCoursewareHandler 为整套课件提交配音任务
func (h *APIHandler) SynthesizeCoursewareHandler(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["file_id"]

	var req tts.SynthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.courses.Synthesize(r.Context(), fileID, req.VoiceID, req.ResolveParams())
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
