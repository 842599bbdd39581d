package replace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"VoxTA/config"
	"VoxTA/core/asr"
	"VoxTA/core/subtitle"
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
	// ErrMediaNotFound is returned when no media file exists for the given ID.
	ErrMediaNotFound = errors.New("media file not found")
	// ErrUnsupportedMedia is returned for uploads in a format we do not accept.
	ErrUnsupportedMedia = errors.New("unsupported media format")
	// ErrTranscriptionNotReady is returned when voice replacement is requested
	// before the transcription task has completed.
	ErrTranscriptionNotReady = errors.New("transcription not completed yet")
)

// 接受的媒体后缀，value标记是否视频
var allowedMedia = map[string]bool{
	".wav": false, ".mp3": false, ".m4a": false,
	".mp4": true, ".mov": true, ".mkv": true,
}

// replaceParams 换声任务的参数快照
type replaceParams struct {
	FileID           string       `json:"file_id"`
	VoiceID          string       `json:"voice_id"`
	TranscriptionRef string       `json:"transcription_ref"`
	Params           synth.Params `json:"params"`
}

// Service 换声流水线：媒体上传、转写、逐段重合成与混流、字幕导出。
type Service struct {
	cfg         *config.Config
	media       repository.MediaRepository
	store       *task.Store
	runner      *task.Runner
	voices      *voice.Service
	engine      synth.Synthesizer
	transcriber asr.Transcriber
	probe       *asr.MediaProbe
	artifacts   storage.Artifacts
}

// NewService wires the voice replacement service.
func NewService(cfg *config.Config, media repository.MediaRepository, store *task.Store, runner *task.Runner,
	voices *voice.Service, engine synth.Synthesizer, transcriber asr.Transcriber, probe *asr.MediaProbe,
	artifacts storage.Artifacts) *Service {
	return &Service{
		cfg:         cfg,
		media:       media,
		store:       store,
		runner:      runner,
		voices:      voices,
		engine:      engine,
		transcriber: transcriber,
		probe:       probe,
		artifacts:   artifacts,
	}
}

// Upload stores an audio/video file for later transcription.
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (*model.MediaFile, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	isVideo, ok := allowedMedia[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, ext)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty media upload")
	}

	now := time.Now()
	file := &model.MediaFile{
		FileID:           "media_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12],
		Name:             strings.TrimSuffix(filepath.Base(filename), ext),
		OriginalFilename: filepath.Base(filename),
		ContentType:      mediaContentType(ext, isVideo),
		FileSize:         int64(len(data)),
		IsVideo:          isVideo,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	file.ObjectKey = fmt.Sprintf("media/%s%s", file.FileID, ext)

	// 上传时就探测时长和流信息，探测失败不阻断上传，转写阶段还会回填
	if info, err := s.probeUpload(file.FileID, ext, data); err != nil {
		logger.Warn("媒体探测失败", logger.String("fileId", file.FileID), logger.ErrorField(err))
	} else {
		file.Duration = info.Duration
		file.IsVideo = info.HasVideo
	}

	if err := s.artifacts.Put(ctx, file.ObjectKey, data, file.ContentType); err != nil {
		return nil, fmt.Errorf("failed to store media: %w", err)
	}
	if err := s.media.Create(ctx, file); err != nil {
		return nil, fmt.Errorf("failed to create media record: %w", err)
	}

	logger.Info("媒体文件已上传",
		logger.String("fileId", file.FileID),
		logger.Bool("isVideo", isVideo),
		logger.Int64("size", file.FileSize))
	return file, nil
}

// probeUpload 把上传内容落到临时文件跑一次ffprobe
func (s *Service) probeUpload(fileID, ext string, data []byte) (*asr.MediaInfo, error) {
	tempFile := filepath.Join(os.TempDir(), "voxta-probe-"+fileID+ext)
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return nil, err
	}
	defer os.Remove(tempFile)
	return s.probe.Probe(tempFile)
}

func mediaContentType(ext string, isVideo bool) string {
	switch ext {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	}
	if isVideo {
		return "video/mp4"
	}
	return "application/octet-stream"
}

// Transcribe creates an asynchronous transcription task for an uploaded file.
func (s *Service) Transcribe(ctx context.Context, fileID string) (*model.TaskRecord, error) {
	file, err := s.media.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, ErrMediaNotFound
	}

	rec, err := s.store.Create(ctx, model.TaskKindTranscribe, fileID, "{}")
	if err != nil {
		return nil, err
	}

	if err := s.runner.Dispatch(rec.TaskID, s.transcribeJob(file, rec.TaskID)); err != nil {
		s.store.Discard(ctx, rec.TaskID)
		return nil, err
	}
	return rec, nil
}

// transcribeJob 把媒体拉到本地转写，片段JSON作为任务产物。
func (s *Service) transcribeJob(file *model.MediaFile, taskID string) task.Job {
	return func(ctx context.Context, report func(float64)) (string, float64, error) {
		localPath := filepath.Join(os.TempDir(), "voxta-"+taskID+filepath.Ext(file.ObjectKey))
		defer os.Remove(localPath)

		if err := s.artifacts.FetchToFile(ctx, file.ObjectKey, localPath); err != nil {
			return "", 0, fmt.Errorf("failed to fetch media: %w", err)
		}
		report(0.3)

		transcription, err := s.transcriber.Transcribe(ctx, localPath)
		if err != nil {
			return "", 0, fmt.Errorf("transcription failed: %w", err)
		}
		transcription.FileID = file.FileID
		report(0.8)

		var mediaDuration float64
		if len(transcription.Segments) > 0 {
			mediaDuration = transcription.Segments[len(transcription.Segments)-1].End
		}
		if err := s.media.UpdateDuration(ctx, file.FileID, mediaDuration); err != nil {
			logger.Warn("媒体时长回填失败", logger.String("fileId", file.FileID), logger.ErrorField(err))
		}

		data, err := json.Marshal(transcription)
		if err != nil {
			return "", 0, fmt.Errorf("failed to marshal transcription: %w", err)
		}
		outputRef := fmt.Sprintf("results/%s.json", taskID)
		if err := s.artifacts.Put(ctx, outputRef, data, "application/json"); err != nil {
			return "", 0, fmt.Errorf("failed to store transcription: %w", err)
		}

		return outputRef, mediaDuration, nil
	}
}

// Process creates a voice replacement task from a completed transcription.
func (s *Service) Process(ctx context.Context, transcribeTaskID, voiceID string, params synth.Params) (*model.TaskRecord, error) {
	srcTask, err := s.store.Get(ctx, transcribeTaskID)
	if err != nil {
		return nil, err
	}
	if srcTask.Kind != model.TaskKindTranscribe {
		return nil, fmt.Errorf("task %s is not a transcription task", transcribeTaskID)
	}
	if srcTask.Status != model.TaskStatusCompleted {
		return nil, fmt.Errorf("%w: status %s", ErrTranscriptionNotReady, srcTask.Status)
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.voices.GetReady(ctx, voiceID); err != nil {
		return nil, err
	}

	file, err := s.media.GetByID(ctx, srcTask.InputRef)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, ErrMediaNotFound
	}

	snapshot, err := json.Marshal(replaceParams{
		FileID:           file.FileID,
		VoiceID:          voiceID,
		TranscriptionRef: srcTask.OutputRef,
		Params:           params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot params: %w", err)
	}

	rec, err := s.store.Create(ctx, model.TaskKindVoiceReplace, transcribeTaskID, string(snapshot))
	if err != nil {
		return nil, err
	}

	if err := s.runner.Dispatch(rec.TaskID, s.replaceJob(file, srcTask.OutputRef, voiceID, params, rec.TaskID)); err != nil {
		s.store.Discard(ctx, rec.TaskID)
		return nil, err
	}
	return rec, nil
}

// replaceJob 逐段在目标声音里重新合成，按时间轴拼装新音轨；
// 视频文件再用ffmpeg把新音轨混回去。
func (s *Service) replaceJob(file *model.MediaFile, transcriptionRef, voiceID string, params synth.Params, taskID string) task.Job {
	return func(ctx context.Context, report func(float64)) (string, float64, error) {
		transcription, err := s.fetchTranscription(ctx, transcriptionRef)
		if err != nil {
			return "", 0, err
		}
		if len(transcription.Segments) == 0 {
			return "", 0, fmt.Errorf("transcription has no segments")
		}

		rate := s.cfg.SampleRate
		results := make([][]int16, len(transcription.Segments))
		for i, seg := range transcription.Segments {
			r, err := s.engine.Synthesize(ctx, seg.Text, voiceID, params)
			if err != nil {
				return "", 0, fmt.Errorf("segment %d failed: %w", i+1, err)
			}
			samples, segRate, err := synth.DecodeWAV(r.WAV)
			if err != nil {
				return "", 0, fmt.Errorf("segment %d produced bad audio: %w", i+1, err)
			}
			rate = segRate
			results[i] = samples
			// 合成占八成进度，混流占两成
			report(0.8 * float64(i+1) / float64(len(transcription.Segments)))
		}

		track := AssembleTrack(transcription.Segments, results, rate)
		wav := synth.EncodeWAV(track, rate)
		duration := float64(len(track)) / float64(rate)

		if !file.IsVideo {
			outputRef := fmt.Sprintf("results/%s.wav", taskID)
			if err := s.artifacts.Put(ctx, outputRef, wav, "audio/wav"); err != nil {
				return "", 0, fmt.Errorf("failed to store result: %w", err)
			}
			return outputRef, duration, nil
		}

		outputRef, err := s.muxVideo(ctx, file, wav, taskID)
		if err != nil {
			return "", 0, err
		}
		report(1.0)
		return outputRef, duration, nil
	}
}

func (s *Service) fetchTranscription(ctx context.Context, ref string) (*model.Transcription, error) {
	data, err := s.artifacts.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transcription: %w", err)
	}
	var transcription model.Transcription
	if err := json.Unmarshal(data, &transcription); err != nil {
		return nil, fmt.Errorf("failed to parse transcription: %w", err)
	}
	return &transcription, nil
}

// AssembleTrack 按片段时间区间把合成音频摆到时间轴上，间隙留静音。
// 片段音频超出自身区间时顺延，不做截断。
func AssembleTrack(segments []model.Segment, results [][]int16, rate int) []int16 {
	var total int
	for _, seg := range segments {
		if end := int(seg.End * float64(rate)); end > total {
			total = end
		}
	}
	track := make([]int16, total)

	for i, seg := range segments {
		offset := int(seg.Start * float64(rate))
		needed := offset + len(results[i])
		if needed > len(track) {
			track = append(track, make([]int16, needed-len(track))...)
		}
		copy(track[offset:needed], results[i])
	}
	return track
}

// Subtitles renders the transcript of a transcription or replacement task.
func (s *Service) Subtitles(ctx context.Context, taskID string, format subtitle.Format) (*model.SubtitleResponse, error) {
	rec, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.TaskStatusCompleted {
		return nil, fmt.Errorf("%w: status %s", ErrTranscriptionNotReady, rec.Status)
	}

	var ref string
	switch rec.Kind {
	case model.TaskKindTranscribe:
		ref = rec.OutputRef
	case model.TaskKindVoiceReplace:
		var params replaceParams
		if err := json.Unmarshal([]byte(rec.Params), &params); err != nil {
			return nil, fmt.Errorf("failed to parse task params: %w", err)
		}
		ref = params.TranscriptionRef
	default:
		return nil, fmt.Errorf("task %s has no transcript", taskID)
	}

	transcription, err := s.fetchTranscription(ctx, ref)
	if err != nil {
		return nil, err
	}
	content, err := subtitle.Render(transcription.Segments, format)
	if err != nil {
		return nil, err
	}
	return &model.SubtitleResponse{
		TaskID:  taskID,
		Format:  string(format),
		Content: content,
	}, nil
}
