package synth

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"unicode/utf8"
)

// 语速1.0时每秒读的字符数
const charsPerSecond = 5.0

// BuiltinEngine 内置占位合成引擎。模型运行时不可用时服务降级到这里：
// 根据文本和声音ID确定性地生成一段有包络的波形，时长与文本长度、
// 语速成比例，听感上能区分不同声音和参数。
type BuiltinEngine struct {
	SampleRate int
}

// NewBuiltinEngine creates the placeholder engine at the given sample rate.
func NewBuiltinEngine(sampleRate int) *BuiltinEngine {
	if sampleRate <= 0 {
		sampleRate = 22050
	}
	return &BuiltinEngine{SampleRate: sampleRate}
}

// Synthesize renders deterministic audio for the text in the given voice.
func (e *BuiltinEngine) Synthesize(ctx context.Context, text, voiceID string, params Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	runes := utf8.RuneCountInString(text)
	speechSeconds := float64(runes) / (charsPerSecond * params.Speed)
	if speechSeconds < 0.2 {
		speechSeconds = 0.2
	}
	pauseSeconds := 0.15 * params.PauseFactor

	speechSamples := int(speechSeconds * float64(e.SampleRate))
	pauseSamples := int(pauseSeconds * float64(e.SampleRate))
	samples := make([]int16, speechSamples+pauseSamples)

	// 声音ID决定基频，pitch在其上做八度内偏移
	seed := fnv.New64a()
	seed.Write([]byte(voiceID))
	seed.Write([]byte(text))
	base := 160.0 + float64(seed.Sum64()%120)
	freq := base * math.Pow(2, params.Pitch)
	amplitude := 0.25 * params.Energy * float64(math.MaxInt16)

	for i := 0; i < speechSamples; i++ {
		t := float64(i) / float64(e.SampleRate)
		// 基波加一个弱二次谐波，首尾各10%做淡入淡出
		v := math.Sin(2*math.Pi*freq*t) + 0.3*math.Sin(4*math.Pi*freq*t)
		envelope := 1.0
		fade := float64(speechSamples) * 0.1
		if float64(i) < fade {
			envelope = float64(i) / fade
		} else if float64(speechSamples-i) < fade {
			envelope = float64(speechSamples-i) / fade
		}
		samples[i] = int16(amplitude * envelope * v / 1.3)
	}

	wav := EncodeWAV(samples, e.SampleRate)
	return &Result{
		WAV:      wav,
		Duration: float64(len(samples)) / float64(e.SampleRate),
	}, nil
}
