package synth

import "context"

// Result 一次合成的产物
type Result struct {
	WAV      []byte  // 完整的WAV字节
	Duration float64 // 秒
}

// Synthesizer 把一段文本变成某个声音的语音。
// 实现必须是确定性的：同样的输入产出同样的字节，下载接口依赖这一点。
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string, params Params) (*Result, error)
}
