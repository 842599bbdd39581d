package tts

import (
	"context"
	"fmt"
	"unicode/utf8"

	"VoxTA/core/synth"
	"VoxTA/logger"
)

// StreamSink 流式合成的下行通道。实现由连接独占，服务按句生产，
// 顺序即句子顺序。任何发送错误都会终止整个流。
type StreamSink interface {
	SendInfo(totalSentences int) error
	SendChunk(audio []byte) error
	SendSentenceComplete(index, total int) error
	SendComplete(duration float64) error
	SendError(message string) error
}

// Stream 边合成边推送：先发句子总数，然后每句一个二进制音频块
// 加一个完成标记，最后发终止消息。
func (s *Service) Stream(ctx context.Context, req *SynthesizeRequest, sink StreamSink) error {
	fail := func(err error) error {
		if sendErr := sink.SendError(err.Error()); sendErr != nil {
			logger.Warn("流式错误消息发送失败", logger.ErrorField(sendErr))
		}
		return err
	}

	if runes := utf8.RuneCountInString(req.Text); runes < s.cfg.MinTextLen || runes > s.cfg.MaxTextLen {
		return fail(fmt.Errorf("%w: length %d runes, allowed [%d, %d]", ErrInvalidText, runes, s.cfg.MinTextLen, s.cfg.MaxTextLen))
	}
	params := req.ResolveParams()
	if err := params.Validate(); err != nil {
		return fail(err)
	}
	if _, err := s.voices.GetReady(ctx, req.VoiceID); err != nil {
		return fail(err)
	}

	sentences := synth.SplitSentences(req.Text)
	if len(sentences) == 0 {
		return fail(fmt.Errorf("text contains no speakable sentences"))
	}

	if err := sink.SendInfo(len(sentences)); err != nil {
		return fmt.Errorf("failed to send stream info: %w", err)
	}

	var duration float64
	for i, sentence := range sentences {
		select {
		case <-ctx.Done():
			return fail(ctx.Err())
		default:
		}

		result, err := s.engine.Synthesize(ctx, sentence, req.VoiceID, params)
		if err != nil {
			return fail(fmt.Errorf("sentence %d failed: %w", i+1, err))
		}

		if err := sink.SendChunk(result.WAV); err != nil {
			return fmt.Errorf("failed to send audio chunk %d: %w", i, err)
		}
		if err := sink.SendSentenceComplete(i, len(sentences)); err != nil {
			return fmt.Errorf("failed to send sentence marker %d: %w", i, err)
		}
		duration += result.Duration
	}

	if err := sink.SendComplete(duration); err != nil {
		return fmt.Errorf("failed to send completion: %w", err)
	}
	return nil
}
