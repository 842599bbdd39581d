package asr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// MediaProbe 用ffprobe探测媒体文件的基本信息
type MediaProbe struct {
	ffmpegPath string
}

// NewMediaProbe creates a probe using the configured ffmpeg path.
func NewMediaProbe(ffmpegPath string) *MediaProbe {
	return &MediaProbe{ffmpegPath: ffmpegPath}
}

func (p *MediaProbe) ffprobePath() string {
	return strings.Replace(p.ffmpegPath, "ffmpeg", "ffprobe", 1)
}

// MediaInfo 探测结果
type MediaInfo struct {
	Duration float64
	HasVideo bool
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
}

// Probe returns the duration and stream layout of a media file.
func (p *MediaProbe) Probe(inputFile string) (*MediaInfo, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-show_entries", "stream=codec_type",
		"-of", "json",
		inputFile,
	}

	cmd := exec.Command(p.ffprobePath(), args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", inputFile, err, stderr.String())
	}

	var probeData probeOutput
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ffprobe output for %s: %w", inputFile, err)
	}

	if probeData.Format.Duration == "" {
		return nil, fmt.Errorf("duration not found in ffprobe output for %s", inputFile)
	}
	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse duration %q for %s: %w", probeData.Format.Duration, inputFile, err)
	}

	info := &MediaInfo{Duration: duration}
	for _, s := range probeData.Streams {
		if s.CodecType == "video" {
			info.HasVideo = true
		}
	}
	return info, nil
}
