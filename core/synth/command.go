package synth

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"VoxTA/logger"

	"github.com/fsnotify/fsnotify"
)

// 文件稳定判定：这段时间内没有新事件才认为分块写完了
const chunkSettleDelay = 100 * time.Millisecond

// CommandEngine 外部命令合成引擎适配器。
// 命令通过环境变量拿到文本、声音ID和参数，将音频分块写成
// <输出目录>/chunk_NNNN.wav，进程退出即视为合成结束。
// 分块边写边收：fsnotify监听到文件稳定后立刻解码，进程退出后
// 再扫一遍目录补齐漏掉的分块。
type CommandEngine struct {
	command    string
	sampleRate int
}

// NewCommandEngine wraps the configured external synthesis command.
func NewCommandEngine(command string, sampleRate int) *CommandEngine {
	return &CommandEngine{command: command, sampleRate: sampleRate}
}

// chunkSink 按文件名聚合解码后的分块，监听协程和最终扫描共用
type chunkSink struct {
	mu      sync.Mutex
	samples map[string][]int16
	rate    int
}

func newChunkSink(defaultRate int) *chunkSink {
	return &chunkSink{samples: make(map[string][]int16), rate: defaultRate}
}

// add 解码一个分块文件并收入结果集
func (s *chunkSink) add(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	samples, rate, err := DecodeWAV(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[filepath.Base(path)] = samples
	s.rate = rate
	return nil
}

func (s *chunkSink) has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.samples[filepath.Base(path)]
	return ok
}

// merge 按给定文件顺序拼接所有分块
func (s *chunkSink) merge(order []string) ([]int16, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]int16, 0)
	for _, path := range order {
		merged = append(merged, s.samples[filepath.Base(path)]...)
	}
	return merged, s.rate
}

// Synthesize runs the external command, decoding chunk files as the engine
// writes them and assembling the full result when it exits.
func (e *CommandEngine) Synthesize(ctx context.Context, text, voiceID string, params Params) (*Result, error) {
	if e.command == "" {
		return nil, fmt.Errorf("synthesis command not configured")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	outDir, err := os.MkdirTemp("", "synth-")
	if err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(outDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch output dir: %w", err)
	}

	sink := newChunkSink(e.sampleRate)
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		e.watchChunks(ctx, watcher, sink)
	}()

	cmd := exec.CommandContext(ctx, "sh", "-c", e.command)
	cmd.Env = append(os.Environ(),
		"SYNTH_TEXT="+text,
		"SYNTH_VOICE_ID="+voiceID,
		"SYNTH_OUTPUT_DIR="+outDir,
		fmt.Sprintf("SYNTH_SPEED=%.3f", params.Speed),
		fmt.Sprintf("SYNTH_PITCH=%.3f", params.Pitch),
		fmt.Sprintf("SYNTH_ENERGY=%.3f", params.Energy),
		fmt.Sprintf("SYNTH_PAUSE_FACTOR=%.3f", params.PauseFactor),
		fmt.Sprintf("SYNTH_SAMPLE_RATE=%d", e.sampleRate),
	)

	runErr := cmd.Run()

	// 给监听器一点时间消化最后的事件，再关监听
	time.Sleep(2 * chunkSettleDelay)
	watcher.Close()
	<-watcherDone

	if runErr != nil {
		return nil, fmt.Errorf("synthesis command failed: %w", runErr)
	}

	// 最终扫描兜底：事件可能漏掉写得太快的文件
	chunks, err := filepath.Glob(filepath.Join(outDir, "chunk_*.wav"))
	if err != nil || len(chunks) == 0 {
		return nil, fmt.Errorf("synthesis command produced no chunks")
	}
	sort.Strings(chunks)

	for _, chunk := range chunks {
		if sink.has(chunk) {
			continue
		}
		if err := sink.add(chunk); err != nil {
			return nil, fmt.Errorf("bad chunk %s: %w", filepath.Base(chunk), err)
		}
	}

	merged, rate := sink.merge(chunks)
	wav := EncodeWAV(merged, rate)
	return &Result{
		WAV:      wav,
		Duration: float64(len(merged)) / float64(rate),
	}, nil
}

// watchChunks 监听输出目录，分块文件稳定后立即解码收入sink。
// 解码失败说明文件可能还没写完，留给最终扫描处理。
func (e *CommandEngine) watchChunks(ctx context.Context, watcher *fsnotify.Watcher, sink *chunkSink) {
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(chunkSettleDelay / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && isChunkFile(event.Name) {
				pending[event.Name] = time.Now()
			}

		case now := <-ticker.C:
			for path, lastEvent := range pending {
				if now.Sub(lastEvent) < chunkSettleDelay {
					continue // 可能还在写入
				}
				delete(pending, path)
				if sink.has(path) {
					continue
				}
				if err := sink.add(path); err != nil {
					logger.Debug("分块暂不可读，等待最终扫描",
						logger.String("chunk", filepath.Base(path)),
						logger.ErrorField(err))
					continue
				}
				logger.Debug("合成分块已接收", logger.String("chunk", filepath.Base(path)))
			}

		case werr, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("watcher error", logger.ErrorField(werr))
		}
	}
}

func isChunkFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, "chunk_") && strings.HasSuffix(base, ".wav")
}
