package replace

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"VoxTA/logger"
	"VoxTA/model"
)

// muxVideo 下载原视频，把重新合成的音轨替换进去，保持视频流不转码。
func (s *Service) muxVideo(ctx context.Context, file *model.MediaFile, wav []byte, taskID string) (string, error) {
	workDir, err := os.MkdirTemp("", "mux-")
	if err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	videoPath := filepath.Join(workDir, "input"+filepath.Ext(file.ObjectKey))
	audioPath := filepath.Join(workDir, "narration.wav")
	outputPath := filepath.Join(workDir, "output.mp4")

	if err := s.artifacts.FetchToFile(ctx, file.ObjectKey, videoPath); err != nil {
		return "", fmt.Errorf("failed to fetch original video: %w", err)
	}
	if err := os.WriteFile(audioPath, wav, 0644); err != nil {
		return "", fmt.Errorf("failed to write narration track: %w", err)
	}

	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, s.cfg.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg mux failed: %w\nFFmpeg Error: %s", err, stderr.String())
	}

	outputRef := fmt.Sprintf("results/%s.mp4", taskID)
	if err := s.artifacts.PutFile(ctx, outputRef, outputPath, "video/mp4"); err != nil {
		return "", fmt.Errorf("failed to store muxed video: %w", err)
	}

	logger.Info("换声视频已混流",
		logger.String("taskId", taskID),
		logger.String("fileId", file.FileID))
	return outputRef, nil
}
