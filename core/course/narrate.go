package course

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"VoxTA/core/synth"
	"VoxTA/model"
)

// NarrationManifest 配音包里的清单文件内容
type NarrationManifest struct {
	VoiceID       string               `json:"voice_id"`
	SlideCount    int                  `json:"slide_count"`
	TotalDuration float64              `json:"total_duration"`
	Slides        []NarrationSlideItem `json:"slides"`
}

// NarrationSlideItem 单页配音条目
type NarrationSlideItem struct {
	Index    int     `json:"index"`
	File     string  `json:"file"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// Narrator 将整套幻灯片逐页合成为配音包
type Narrator struct {
	engine synth.Synthesizer
}

// NewNarrator creates a narrator on top of the given synthesis engine.
func NewNarrator(engine synth.Synthesizer) *Narrator {
	return &Narrator{engine: engine}
}

// Narrate 逐页合成，产物是zip：slide_NNN.wav 若干加 manifest.json。
// report 每完成一页调用一次，进度为已完成页数占比。
func (n *Narrator) Narrate(ctx context.Context, slides []model.SlideContent, voiceID string, params synth.Params, report func(progress float64)) ([]byte, float64, error) {
	if len(slides) == 0 {
		return nil, 0, fmt.Errorf("no slides to narrate")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	manifest := NarrationManifest{
		VoiceID:    voiceID,
		SlideCount: len(slides),
		Slides:     make([]NarrationSlideItem, 0, len(slides)),
	}

	for i, slide := range slides {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		default:
		}

		text := NarrationText(slide)
		result, err := n.engine.Synthesize(ctx, text, voiceID, params)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to synthesize slide %d: %w", i+1, err)
		}

		filename := fmt.Sprintf("slide_%03d.wav", i+1)
		w, err := zw.Create(filename)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to add %s to archive: %w", filename, err)
		}
		if _, err := w.Write(result.WAV); err != nil {
			return nil, 0, fmt.Errorf("failed to write %s: %w", filename, err)
		}

		manifest.TotalDuration += result.Duration
		manifest.Slides = append(manifest.Slides, NarrationSlideItem{
			Index:    i,
			File:     filename,
			Duration: result.Duration,
			Text:     text,
		})

		if report != nil {
			report(float64(i+1) / float64(len(slides)))
		}
	}

	mw, err := zw.Create("manifest.json")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to add manifest: %w", err)
	}
	enc := json.NewEncoder(mw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return nil, 0, fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, 0, fmt.Errorf("failed to finalize archive: %w", err)
	}

	return buf.Bytes(), manifest.TotalDuration, nil
}
