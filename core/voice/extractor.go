package voice

import (
	"context"
	"fmt"

	"VoxTA/core/asr"
)

// FeatureExtractor 对上传的声音样本做说话人特征提取，
// 返回样本质量评分 [0,1]。
type FeatureExtractor interface {
	Extract(ctx context.Context, audioPath string) (float64, error)
}

// 可用样本的最短时长（秒）
const minSampleSeconds = 1.0

// ProbeExtractor 内置占位特征提取器。模型不可用时用ffprobe探测
// 样本时长，时长越长评分越高，过短的样本直接判失败。
type ProbeExtractor struct {
	probe *asr.MediaProbe
}

// NewProbeExtractor creates the placeholder extractor.
func NewProbeExtractor(probe *asr.MediaProbe) *ProbeExtractor {
	return &ProbeExtractor{probe: probe}
}

// Extract scores the sample based on its measured duration.
func (e *ProbeExtractor) Extract(ctx context.Context, audioPath string) (float64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	info, err := e.probe.Probe(audioPath)
	if err != nil {
		return 0, fmt.Errorf("failed to probe sample: %w", err)
	}
	if info.Duration < minSampleSeconds {
		return 0, fmt.Errorf("sample too short: %.2fs, need at least %.0fs", info.Duration, minSampleSeconds)
	}

	// 30秒以上的样本视为高质量
	score := 0.5 + info.Duration/60.0
	if score > 0.95 {
		score = 0.95
	}
	return score, nil
}
