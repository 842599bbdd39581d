package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"VoxTA/cache"
	"VoxTA/logger"
	"VoxTA/model"
	"VoxTA/repository"
	"VoxTA/storage"

	"github.com/google/uuid"
)

var (
	// ErrVoiceNotFound is returned when no sample exists for the given ID.
	ErrVoiceNotFound = errors.New("voice sample not found")
	// ErrVoiceNotReady is returned when a sample cannot be used for synthesis yet.
	ErrVoiceNotReady = errors.New("voice sample not ready")
	// ErrUnsupportedAudio is returned for uploads in a format we do not accept.
	ErrUnsupportedAudio = errors.New("unsupported audio format")
)

// 接受的样本后缀与MIME类型
var allowedExtensions = map[string]string{
	".wav": "audio/wav",
	".mp3": "audio/mpeg",
	".m4a": "audio/mp4",
}

// Service 管理声音样本：上传入库、异步特征提取、查询与删除。
type Service struct {
	repo      repository.VoiceRepository
	artifacts storage.Artifacts
	extractor FeatureExtractor
	timeout   time.Duration
}

// NewService wires the voice sample service.
func NewService(repo repository.VoiceRepository, artifacts storage.Artifacts, extractor FeatureExtractor, timeout time.Duration) *Service {
	return &Service{
		repo:      repo,
		artifacts: artifacts,
		extractor: extractor,
		timeout:   timeout,
	}
}

// UploadInput 上传请求参数
type UploadInput struct {
	Name        string
	Description string
	Tags        []string
	Filename    string
	Data        []byte
}

// Upload stores the sample and kicks off asynchronous feature extraction.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*model.VoiceSample, error) {
	ext := strings.ToLower(filepath.Ext(in.Filename))
	contentType, ok := allowedExtensions[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAudio, ext)
	}
	if in.Name == "" {
		in.Name = strings.TrimSuffix(filepath.Base(in.Filename), ext)
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("empty audio upload")
	}

	now := time.Now()
	sample := &model.VoiceSample{
		ID:               "voice_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12],
		Name:             in.Name,
		Description:      in.Description,
		Tags:             in.Tags,
		Status:           model.VoiceStatusPending,
		OriginalFilename: filepath.Base(in.Filename),
		ContentType:      contentType,
		FileSize:         int64(len(in.Data)),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	sample.ObjectKey = fmt.Sprintf("voices/%s%s", sample.ID, ext)

	if err := s.artifacts.Put(ctx, sample.ObjectKey, in.Data, contentType); err != nil {
		return nil, fmt.Errorf("failed to store sample audio: %w", err)
	}
	if err := s.repo.Create(sample); err != nil {
		return nil, fmt.Errorf("failed to create sample record: %w", err)
	}

	logger.Info("声音样本已上传",
		logger.String("voiceId", sample.ID),
		logger.String("name", sample.Name),
		logger.Int64("size", sample.FileSize))

	go s.extractFeatures(sample.ID, sample.ObjectKey)

	return sample, nil
}

// extractFeatures 下载样本到本地，跑特征提取，回填状态与评分。
// 失败只落在样本记录上，不影响其他请求。
func (s *Service) extractFeatures(voiceID, objectKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.repo.UpdateStatus(voiceID, model.VoiceStatusProcessing, nil, ""); err != nil {
		logger.Error("无法将样本置为处理中", logger.String("voiceId", voiceID), logger.ErrorField(err))
		return
	}
	_ = cache.DeleteVoiceSample(ctx, voiceID)

	fail := func(msg string) {
		if err := s.repo.UpdateStatus(voiceID, model.VoiceStatusFailed, nil, msg); err != nil {
			logger.Error("标记样本失败时出错", logger.String("voiceId", voiceID), logger.ErrorField(err))
		}
		_ = cache.DeleteVoiceSample(context.Background(), voiceID)
	}

	tempFile := filepath.Join(os.TempDir(), "voxta-"+voiceID+filepath.Ext(objectKey))
	defer os.Remove(tempFile)

	if err := s.artifacts.FetchToFile(ctx, objectKey, tempFile); err != nil {
		logger.Warn("样本下载失败", logger.String("voiceId", voiceID), logger.ErrorField(err))
		fail("样本音频下载失败")
		return
	}

	score, err := s.extractor.Extract(ctx, tempFile)
	if err != nil {
		logger.Warn("特征提取失败", logger.String("voiceId", voiceID), logger.ErrorField(err))
		fail(err.Error())
		return
	}

	if err := s.repo.UpdateStatus(voiceID, model.VoiceStatusReady, &score, ""); err != nil {
		logger.Error("标记样本就绪时出错", logger.String("voiceId", voiceID), logger.ErrorField(err))
		return
	}
	_ = cache.DeleteVoiceSample(context.Background(), voiceID)

	logger.Info("声音样本就绪",
		logger.String("voiceId", voiceID),
		logger.Float64("qualityScore", score))
}

// Get returns one voice sample, preferring the cache.
func (s *Service) Get(ctx context.Context, voiceID string) (*model.VoiceSample, error) {
	if sample, err := cache.GetVoiceSample(ctx, voiceID); err == nil && sample != nil {
		return sample, nil
	}

	sample, err := s.repo.GetByID(voiceID)
	if err != nil {
		return nil, err
	}
	if sample == nil {
		return nil, ErrVoiceNotFound
	}

	if err := cache.SetVoiceSample(ctx, sample); err != nil {
		logger.Warn("声音样本缓存回填失败", logger.String("voiceId", voiceID), logger.ErrorField(err))
	}
	return sample, nil
}

// GetReady returns a sample that is usable for synthesis.
func (s *Service) GetReady(ctx context.Context, voiceID string) (*model.VoiceSample, error) {
	sample, err := s.Get(ctx, voiceID)
	if err != nil {
		return nil, err
	}
	if !sample.Ready() {
		return nil, fmt.Errorf("%w: status %s", ErrVoiceNotReady, sample.Status)
	}
	return sample, nil
}

// List returns samples matching all given tags with pagination.
func (s *Service) List(ctx context.Context, tags []string, skip, limit int) (*model.VoiceSampleList, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}

	samples, total, err := s.repo.List(tags, skip, limit)
	if err != nil {
		return nil, err
	}

	items := make([]model.VoiceSampleResponse, 0, len(samples))
	for _, sample := range samples {
		items = append(items, sample.ToResponse(""))
	}
	return &model.VoiceSampleList{Total: total, Items: items}, nil
}

// OpenAudio streams the original sample audio.
func (s *Service) OpenAudio(ctx context.Context, voiceID string) (io.ReadCloser, string, error) {
	sample, err := s.Get(ctx, voiceID)
	if err != nil {
		return nil, "", err
	}
	rc, err := s.artifacts.Open(ctx, sample.ObjectKey)
	if err != nil {
		return nil, "", err
	}
	return rc, sample.ContentType, nil
}

// Delete removes the sample record, its audio object, and its cache entry.
func (s *Service) Delete(ctx context.Context, voiceID string) error {
	sample, err := s.repo.GetByID(voiceID)
	if err != nil {
		return err
	}
	if sample == nil {
		return ErrVoiceNotFound
	}

	if err := s.repo.Delete(voiceID); err != nil {
		return fmt.Errorf("failed to delete sample record: %w", err)
	}
	if err := s.artifacts.Delete(ctx, sample.ObjectKey); err != nil {
		logger.Warn("样本音频对象删除失败", logger.String("voiceId", voiceID), logger.ErrorField(err))
	}
	_ = cache.DeleteVoiceSample(ctx, voiceID)

	logger.Info("声音样本已删除", logger.String("voiceId", voiceID))
	return nil
}
