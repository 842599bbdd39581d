package tts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"VoxTA/config"
	"VoxTA/core/synth"
	"VoxTA/core/task"
	"VoxTA/core/voice"
	"VoxTA/logger"
	"VoxTA/model"
	"VoxTA/storage"
)

var (
	// ErrInvalidText is returned for text outside the accepted length range.
	ErrInvalidText = errors.New("invalid text")
	// ErrTaskNotReady is returned when a download is requested before completion.
	ErrTaskNotReady = errors.New("task not completed yet")
)

// SynthesizeRequest 合成与预听接口的请求体。
// 韵律参数缺省时用中性默认值。
type SynthesizeRequest struct {
	Text        string   `json:"text"`
	VoiceID     string   `json:"voice_id"`
	Speed       *float64 `json:"speed,omitempty"`
	Pitch       *float64 `json:"pitch,omitempty"`
	Energy      *float64 `json:"energy,omitempty"`
	PauseFactor *float64 `json:"pause_factor,omitempty"`
}

// ResolveParams merges the request overrides onto the defaults.
func (r *SynthesizeRequest) ResolveParams() synth.Params {
	p := synth.DefaultParams()
	if r.Speed != nil {
		p.Speed = *r.Speed
	}
	if r.Pitch != nil {
		p.Pitch = *r.Pitch
	}
	if r.Energy != nil {
		p.Energy = *r.Energy
	}
	if r.PauseFactor != nil {
		p.PauseFactor = *r.PauseFactor
	}
	return p
}

// taskParams 任务记录里的参数快照
type taskParams struct {
	Text    string       `json:"text"`
	VoiceID string       `json:"voice_id"`
	Params  synth.Params `json:"params"`
}

// Service 文本转语音任务服务：提交、预听、查询、下载与流式合成。
type Service struct {
	cfg       *config.Config
	store     *task.Store
	runner    *task.Runner
	voices    *voice.Service
	engine    synth.Synthesizer
	artifacts storage.Artifacts
}

// NewService wires the TTS service.
func NewService(cfg *config.Config, store *task.Store, runner *task.Runner, voices *voice.Service, engine synth.Synthesizer, artifacts storage.Artifacts) *Service {
	return &Service{
		cfg:       cfg,
		store:     store,
		runner:    runner,
		voices:    voices,
		engine:    engine,
		artifacts: artifacts,
	}
}

// validate 校验文本与参数并确认声音可用。所有拒绝都发生在建任务之前。
func (s *Service) validate(ctx context.Context, req *SynthesizeRequest, minLen, maxLen int) (synth.Params, error) {
	runes := utf8.RuneCountInString(req.Text)
	if runes < minLen || runes > maxLen {
		return synth.Params{}, fmt.Errorf("%w: length %d runes, allowed [%d, %d]", ErrInvalidText, runes, minLen, maxLen)
	}

	params := req.ResolveParams()
	if err := params.Validate(); err != nil {
		return synth.Params{}, err
	}

	if _, err := s.voices.GetReady(ctx, req.VoiceID); err != nil {
		return synth.Params{}, err
	}
	return params, nil
}

// Submit validates the request and creates an asynchronous synthesis task.
func (s *Service) Submit(ctx context.Context, req *SynthesizeRequest) (*model.TaskRecord, error) {
	params, err := s.validate(ctx, req, s.cfg.MinTextLen, s.cfg.MaxTextLen)
	if err != nil {
		return nil, err
	}
	return s.submitTask(ctx, model.TaskKindTTS, req.Text, req.VoiceID, params)
}

// Preview validates the request, truncates the text, and creates a preview task.
func (s *Service) Preview(ctx context.Context, req *SynthesizeRequest) (*model.TaskRecord, error) {
	if runes := utf8.RuneCountInString(req.Text); runes < s.cfg.PreviewMinTextLen {
		return nil, fmt.Errorf("%w: length %d runes, preview needs at least %d", ErrInvalidText, runes, s.cfg.PreviewMinTextLen)
	}

	text := truncateRunes(req.Text, s.cfg.PreviewMaxTextLen)
	trimmed := *req
	trimmed.Text = text

	params, err := s.validate(ctx, &trimmed, s.cfg.PreviewMinTextLen, s.cfg.PreviewMaxTextLen)
	if err != nil {
		return nil, err
	}
	params.IsPreview = true
	return s.submitTask(ctx, model.TaskKindPreview, text, req.VoiceID, params)
}

func (s *Service) submitTask(ctx context.Context, kind model.TaskKind, text, voiceID string, params synth.Params) (*model.TaskRecord, error) {
	snapshot, err := json.Marshal(taskParams{Text: text, VoiceID: voiceID, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot params: %w", err)
	}

	rec, err := s.store.Create(ctx, kind, voiceID, string(snapshot))
	if err != nil {
		return nil, err
	}

	if err := s.runner.Dispatch(rec.TaskID, s.synthesisJob(text, voiceID, params, rec.TaskID)); err != nil {
		s.store.Discard(ctx, rec.TaskID)
		return nil, err
	}
	return rec, nil
}

// List returns the latest tasks of one kind as poll snapshots.
func (s *Service) List(ctx context.Context, kind model.TaskKind, limit int) ([]model.TaskStatusResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	records, err := s.store.Recent(kind, limit)
	if err != nil {
		return nil, err
	}

	items := make([]model.TaskStatusResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, model.TaskStatusResponse{
			TaskID:    rec.TaskID,
			Status:    rec.Status,
			Progress:  rec.Progress,
			Message:   model.StatusMessage(rec.Status),
			Error:     rec.Error,
			Duration:  rec.Duration,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		})
	}
	return items, nil
}

// synthesisJob 逐句合成全文，按句上报进度，产物传MinIO。
func (s *Service) synthesisJob(text, voiceID string, params synth.Params, taskID string) task.Job {
	return func(ctx context.Context, report func(float64)) (string, float64, error) {
		sentences := synth.SplitSentences(text)
		if len(sentences) == 0 {
			return "", 0, fmt.Errorf("text contains no speakable sentences")
		}

		merged := make([]int16, 0)
		rate := s.cfg.SampleRate
		var duration float64
		for i, sentence := range sentences {
			result, err := s.engine.Synthesize(ctx, sentence, voiceID, params)
			if err != nil {
				return "", 0, fmt.Errorf("sentence %d failed: %w", i+1, err)
			}
			samples, sampleRate, err := synth.DecodeWAV(result.WAV)
			if err != nil {
				return "", 0, fmt.Errorf("sentence %d produced bad audio: %w", i+1, err)
			}
			rate = sampleRate
			merged = append(merged, samples...)
			duration += result.Duration
			report(float64(i+1) / float64(len(sentences)))
		}

		outputRef := fmt.Sprintf("results/%s.wav", taskID)
		wav := synth.EncodeWAV(merged, rate)
		if err := s.artifacts.Put(ctx, outputRef, wav, "audio/wav"); err != nil {
			return "", 0, fmt.Errorf("failed to store result: %w", err)
		}

		logger.Info("合成任务产物已写入",
			logger.String("taskId", taskID),
			logger.Int("sentences", len(sentences)),
			logger.Float64("duration", duration))
		return outputRef, duration, nil
	}
}

// Status returns the poll snapshot of a task.
func (s *Service) Status(ctx context.Context, taskID string) (*model.TaskStatusResponse, error) {
	rec, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &model.TaskStatusResponse{
		TaskID:    rec.TaskID,
		Status:    rec.Status,
		Progress:  rec.Progress,
		Message:   model.StatusMessage(rec.Status),
		Error:     rec.Error,
		Duration:  rec.Duration,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// Download returns the finished artifact bytes and a download filename.
// Repeated calls return identical bytes.
func (s *Service) Download(ctx context.Context, taskID string) ([]byte, string, error) {
	rec, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, "", err
	}
	if rec.Status != model.TaskStatusCompleted {
		return nil, "", fmt.Errorf("%w: status %s", ErrTaskNotReady, rec.Status)
	}

	data, err := s.artifacts.Fetch(ctx, rec.OutputRef)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch artifact: %w", err)
	}

	filename := rec.TaskID + ".wav"
	if idx := strings.LastIndex(rec.OutputRef, "."); idx >= 0 {
		filename = rec.TaskID + rec.OutputRef[idx:]
	}
	return data, filename, nil
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
