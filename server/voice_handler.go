package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"VoxTA/core/voice"
	"VoxTA/logger"

	"github.com/gorilla/mux"
)

// UploadVoiceHandler 上传声音样本，触发异步特征提取
func (h *APIHandler) UploadVoiceHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.cfg.MaxVoiceUploadSize); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Audio file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > h.cfg.MaxVoiceUploadSize {
		http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.cfg.MaxVoiceUploadSize+1))
	if err != nil {
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}
	if int64(len(data)) > h.cfg.MaxVoiceUploadSize {
		http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}

	sample, err := h.voices.Upload(r.Context(), voice.UploadInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Tags:        parseTags(r.FormValue("tags")),
		Filename:    header.Filename,
		Data:        data,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sample.ToResponse("样本已接收，特征提取中"))
}

// parseTags 逗号分隔，去空白去空项
func parseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// ListVoicesHandler 按标签过滤并分页列出声音样本
func (h *APIHandler) ListVoicesHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	skip, _ := strconv.Atoi(query.Get("skip"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	list, err := h.voices.List(r.Context(), parseTags(query.Get("tags")), skip, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetVoiceHandler 查询单个声音样本
func (h *APIHandler) GetVoiceHandler(w http.ResponseWriter, r *http.Request) {
	voiceID := mux.Vars(r)["voice_id"]

	sample, err := h.voices.Get(r.Context(), voiceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sample.ToResponse(""))
}

// VoiceAudioHandler 回放样本原始音频
func (h *APIHandler) VoiceAudioHandler(w http.ResponseWriter, r *http.Request) {
	voiceID := mux.Vars(r)["voice_id"]

	rc, contentType, err := h.voices.OpenAudio(r.Context(), voiceID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, rc); err != nil {
		logger.Warn("样本音频传输中断", logger.String("voiceId", voiceID), logger.ErrorField(err))
	}
}

// DeleteVoiceHandler 删除声音样本
func (h *APIHandler) DeleteVoiceHandler(w http.ResponseWriter, r *http.Request) {
	voiceID := mux.Vars(r)["voice_id"]

	if err := h.voices.Delete(r.Context(), voiceID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "声音样本已删除", "id": voiceID})
}
