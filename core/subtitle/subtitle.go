package subtitle

import (
	"fmt"
	"math"
	"strings"

	"VoxTA/model"
)

// Format 字幕格式
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
)

// ParseFormat 解析字幕格式参数，默认srt
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "srt":
		return FormatSRT, nil
	case "vtt":
		return FormatVTT, nil
	default:
		return "", fmt.Errorf("unsupported subtitle format: %s", s)
	}
}

// Render 将转写片段渲染为字幕文本
func Render(segments []model.Segment, format Format) (string, error) {
	switch format {
	case FormatSRT:
		return renderSRT(segments), nil
	case FormatVTT:
		return renderVTT(segments), nil
	default:
		return "", fmt.Errorf("unsupported subtitle format: %s", format)
	}
}

func renderSRT(segments []model.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", srtTimestamp(seg.Start), srtTimestamp(seg.End))
		b.WriteString(seg.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

func renderVTT(segments []model.Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, seg := range segments {
		fmt.Fprintf(&b, "%s --> %s\n", vttTimestamp(seg.Start), vttTimestamp(seg.End))
		b.WriteString(seg.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// srtTimestamp 格式化为 HH:MM:SS,mmm
func srtTimestamp(seconds float64) string {
	h, m, s, ms := splitTime(seconds)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// vttTimestamp 格式化为 HH:MM:SS.mmm
func vttTimestamp(seconds float64) string {
	h, m, s, ms := splitTime(seconds)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func splitTime(seconds float64) (h, m, s, ms int) {
	if seconds < 0 {
		seconds = 0
	}
	total := int(math.Round(seconds * 1000))
	ms = total % 1000
	totalSec := total / 1000
	s = totalSec % 60
	m = (totalSec / 60) % 60
	h = totalSec / 3600
	return
}
