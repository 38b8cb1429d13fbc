package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// FrameExtractor produces a representative still image for a local video
// file. Implementations must leave no output file behind on failure.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, videoPath, outPath string) error
}

// FFmpegExtractor shells out to ffmpeg to grab the closest sync frame to the
// 1-second mark and encode it as a high-quality JPEG.
type FFmpegExtractor struct {
	FFmpegPath string
}

var _ FrameExtractor = (*FFmpegExtractor)(nil)

func NewFFmpegExtractor() *FFmpegExtractor {
	return &FFmpegExtractor{FFmpegPath: "ffmpeg"}
}

func (e *FFmpegExtractor) ExtractFrame(ctx context.Context, videoPath, outPath string) error {
	cmd := exec.CommandContext(ctx, e.FFmpegPath,
		"-y",
		"-ss", "1",
		"-i", videoPath,
		"-vframes", "1",
		"-vf", "scale=640:-1",
		"-q:v", "2",
		outPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(outPath)
		return fmt.Errorf("ffmpeg frame extraction failed: %w: %s", err, string(output))
	}

	// ffmpeg can exit zero without producing a frame on a corrupt input.
	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("ffmpeg produced no frame: %w", err)
	}

	return nil
}
