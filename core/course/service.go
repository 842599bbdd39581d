package course

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"VoxTA/core/synth"
	"VoxTA/core/task"
	"VoxTA/core/voice"
	"VoxTA/logger"
	"VoxTA/model"
	"VoxTA/repository"
	"VoxTA/storage"

	"github.com/google/uuid"
)

var (
	// ErrCoursewareNotFound is returned when no file exists for the given ID.
	ErrCoursewareNotFound = errors.New("courseware file not found")
	// ErrUnsupportedCourseware is returned for uploads in a format we do not accept.
	ErrUnsupportedCourseware = errors.New("unsupported courseware format")
	// ErrExtractionUnsupported is returned when text extraction has no engine
	// for the stored format.
	ErrExtractionUnsupported = errors.New("text extraction not supported for this format")
)

var coursewareContentTypes = map[string]string{
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".ppt":  "application/vnd.ms-powerpoint",
	".pdf":  "application/pdf",
}

// courseParams 课件配音任务的参数快照
type courseParams struct {
	FileID  string       `json:"file_id"`
	VoiceID string       `json:"voice_id"`
	Params  synth.Params `json:"params"`
}

// Service 课件流水线：上传、文本提取、整套配音。
type Service struct {
	repo      repository.CoursewareRepository
	store     *task.Store
	runner    *task.Runner
	voices    *voice.Service
	narrator  *Narrator
	artifacts storage.Artifacts
}

// NewService wires the courseware service.
func NewService(repo repository.CoursewareRepository, store *task.Store, runner *task.Runner,
	voices *voice.Service, narrator *Narrator, artifacts storage.Artifacts) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		runner:    runner,
		voices:    voices,
		narrator:  narrator,
		artifacts: artifacts,
	}
}

// Upload stores a slide deck for later extraction and narration.
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (*model.CoursewareFile, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := coursewareContentTypes[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCourseware, ext)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty courseware upload")
	}

	now := time.Now()
	file := &model.CoursewareFile{
		FileID:           "course_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12],
		Name:             strings.TrimSuffix(filepath.Base(filename), ext),
		OriginalFilename: filepath.Base(filename),
		ContentType:      contentType,
		FileSize:         int64(len(data)),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	file.ObjectKey = fmt.Sprintf("courseware/%s%s", file.FileID, ext)

	// pptx能当场数出页数
	if ext == ".pptx" {
		if slides, err := ExtractPPTX(data); err == nil {
			file.SlideCount = len(slides)
		}
	}

	if err := s.artifacts.Put(ctx, file.ObjectKey, data, contentType); err != nil {
		return nil, fmt.Errorf("failed to store courseware: %w", err)
	}
	if err := s.repo.Create(ctx, file); err != nil {
		return nil, fmt.Errorf("failed to create courseware record: %w", err)
	}

	logger.Info("课件已上传",
		logger.String("fileId", file.FileID),
		logger.Int("slides", file.SlideCount))
	return file, nil
}

// Extract returns the per-slide text of an uploaded deck.
func (s *Service) Extract(ctx context.Context, fileID string) (*model.CoursewareExtraction, error) {
	file, err := s.repo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, ErrCoursewareNotFound
	}
	if !strings.HasSuffix(file.ObjectKey, ".pptx") {
		return nil, fmt.Errorf("%w: %s", ErrExtractionUnsupported, filepath.Ext(file.ObjectKey))
	}

	data, err := s.artifacts.Fetch(ctx, file.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch courseware: %w", err)
	}
	slides, err := ExtractPPTX(data)
	if err != nil {
		return nil, err
	}

	if file.SlideCount != len(slides) {
		if err := s.repo.UpdateSlideCount(ctx, fileID, len(slides)); err != nil {
			logger.Warn("课件页数回填失败", logger.String("fileId", fileID), logger.ErrorField(err))
		}
	}

	return &model.CoursewareExtraction{
		FileID: file.FileID,
		Name:   file.Name,
		Slides: slides,
	}, nil
}

// Synthesize creates an asynchronous narration task for the whole deck.
func (s *Service) Synthesize(ctx context.Context, fileID, voiceID string, params synth.Params) (*model.TaskRecord, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.voices.GetReady(ctx, voiceID); err != nil {
		return nil, err
	}

	extraction, err := s.Extract(ctx, fileID)
	if err != nil {
		return nil, err
	}

	snapshot, err := json.Marshal(courseParams{FileID: fileID, VoiceID: voiceID, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot params: %w", err)
	}

	rec, err := s.store.Create(ctx, model.TaskKindCourseware, fileID, string(snapshot))
	if err != nil {
		return nil, err
	}

	slides := extraction.Slides
	if err := s.runner.Dispatch(rec.TaskID, func(ctx context.Context, report func(float64)) (string, float64, error) {
		data, duration, err := s.narrator.Narrate(ctx, slides, voiceID, params, report)
		if err != nil {
			return "", 0, err
		}
		outputRef := fmt.Sprintf("results/%s.zip", rec.TaskID)
		if err := s.artifacts.Put(ctx, outputRef, data, "application/zip"); err != nil {
			return "", 0, fmt.Errorf("failed to store narration archive: %w", err)
		}
		return outputRef, duration, nil
	}); err != nil {
		s.store.Discard(ctx, rec.TaskID)
		return nil, err
	}
	return rec, nil
}
