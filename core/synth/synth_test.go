package synth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "chinese punctuation",
			text: "大家好。今天讲函数！有问题吗？",
			want: []string{"大家好。", "今天讲函数！", "有问题吗？"},
		},
		{
			name: "latin punctuation",
			text: "Hello there. How are you? Fine; thanks!",
			want: []string{"Hello there.", "How are you?", "Fine;", "thanks!"},
		},
		{
			name: "newlines split without punctuation",
			text: "第一行\n第二行",
			want: []string{"第一行", "第二行"},
		},
		{
			name: "trailing text without ender",
			text: "先说这句。然后还有半句",
			want: []string{"先说这句。", "然后还有半句"},
		},
		{
			name: "empty and whitespace",
			text: "  \n  ",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.text))
		})
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Params)
		wantErr bool
	}{
		{"defaults", func(p *Params) {}, false},
		{"speed lower bound", func(p *Params) { p.Speed = 0.5 }, false},
		{"speed upper bound", func(p *Params) { p.Speed = 2.0 }, false},
		{"speed below", func(p *Params) { p.Speed = 0.49 }, true},
		{"speed above", func(p *Params) { p.Speed = 2.01 }, true},
		{"pitch bounds", func(p *Params) { p.Pitch = -1.0 }, false},
		{"pitch above", func(p *Params) { p.Pitch = 1.1 }, true},
		{"energy below", func(p *Params) { p.Energy = 0.4 }, true},
		{"pause above", func(p *Params) { p.PauseFactor = 2.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParams)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEncodeDecodeWAV(t *testing.T) {
	samples := []int16{0, 100, -100, 32767, -32768, 42}
	data := EncodeWAV(samples, 22050)

	// RIFF头
	require.GreaterOrEqual(t, len(data), 44)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "fmt ", string(data[12:16]))

	decoded, rate, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, 22050, rate)
	assert.Equal(t, samples, decoded)

	dur, err := WAVDuration(data)
	require.NoError(t, err)
	assert.InDelta(t, float64(len(samples))/22050.0, dur, 1e-9)
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, _, err := DecodeWAV([]byte("definitely not audio"))
	assert.Error(t, err)
}

func TestBuiltinEngineDeterministic(t *testing.T) {
	engine := NewBuiltinEngine(22050)
	ctx := context.Background()

	r1, err := engine.Synthesize(ctx, "你好，世界。", "voice_a", DefaultParams())
	require.NoError(t, err)
	r2, err := engine.Synthesize(ctx, "你好，世界。", "voice_a", DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, r1.WAV, r2.WAV, "same input must produce identical bytes")
	assert.Greater(t, r1.Duration, 0.0)

	// 不同声音产出不同波形
	r3, err := engine.Synthesize(ctx, "你好，世界。", "voice_b", DefaultParams())
	require.NoError(t, err)
	assert.NotEqual(t, r1.WAV, r3.WAV)
}

func TestBuiltinEngineSpeedShortensAudio(t *testing.T) {
	engine := NewBuiltinEngine(22050)
	ctx := context.Background()
	text := "这是一段用于测试语速的比较长的文本内容。"

	slow := DefaultParams()
	slow.Speed = 0.5
	fast := DefaultParams()
	fast.Speed = 2.0

	rSlow, err := engine.Synthesize(ctx, text, "voice_a", slow)
	require.NoError(t, err)
	rFast, err := engine.Synthesize(ctx, text, "voice_a", fast)
	require.NoError(t, err)

	assert.Greater(t, rSlow.Duration, rFast.Duration)
}

func TestBuiltinEngineRejectsBadInput(t *testing.T) {
	engine := NewBuiltinEngine(22050)

	_, err := engine.Synthesize(context.Background(), "", "voice_a", DefaultParams())
	assert.Error(t, err)

	bad := DefaultParams()
	bad.Speed = 9.0
	_, err = engine.Synthesize(context.Background(), "text", "voice_a", bad)
	assert.ErrorIs(t, err, ErrInvalidParams)
}
