package asr

import (
	"context"
	"fmt"

	"VoxTA/model"
)

// Transcriber 把一个本地媒体文件转写为带时间区间的文本片段。
type Transcriber interface {
	Transcribe(ctx context.Context, inputFile string) (*model.Transcription, error)
}

// 降级转写的分段窗口长度（秒）
const segmentWindowSeconds = 5.0

// DurationTranscriber 内置占位转写引擎。ASR模型不可用时按固定窗口
// 切分时间轴，文本为占位内容，供换声流程在无模型环境下走通。
type DurationTranscriber struct {
	probe *MediaProbe
}

// NewDurationTranscriber creates the placeholder transcriber.
func NewDurationTranscriber(probe *MediaProbe) *DurationTranscriber {
	return &DurationTranscriber{probe: probe}
}

// Transcribe divides the media timeline into fixed windows.
func (t *DurationTranscriber) Transcribe(ctx context.Context, inputFile string) (*model.Transcription, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	info, err := t.probe.Probe(inputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to probe media: %w", err)
	}
	if info.Duration <= 0 {
		return nil, fmt.Errorf("media has no measurable duration")
	}

	segments := SegmentTimeline(info.Duration)
	return &model.Transcription{Segments: segments}, nil
}

// SegmentTimeline 把时长切成固定窗口的片段序列
func SegmentTimeline(duration float64) []model.Segment {
	segments := make([]model.Segment, 0)
	for start, i := 0.0, 0; start < duration; start, i = start+segmentWindowSeconds, i+1 {
		end := start + segmentWindowSeconds
		if end > duration {
			end = duration
		}
		segments = append(segments, model.Segment{
			Index: i,
			Start: start,
			End:   end,
			Text:  fmt.Sprintf("第%d段语音内容。", i+1),
		})
	}
	return segments
}
