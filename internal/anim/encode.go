package anim

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// encode shells out to ffmpeg to build an H.264 mp4 from the downloaded
// frames. ffmpeg must be on PATH; its stderr is surfaced in the error.
func encode(ctx context.Context, destDir, ext, outName string, framerate int, holdLast time.Duration) (string, error) {
	if framerate <= 0 {
		framerate = 30
	}

	pattern, err := filepath.Abs(filepath.Join(destDir, "*"+ext))
	if err != nil {
		return "", err
	}
	outPath, err := filepath.Abs(filepath.Join(destDir, outName))
	if err != nil {
		return "", err
	}

	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-framerate", strconv.Itoa(framerate),
		"-pattern_type", "glob",
		"-i", pattern,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
	}
	if holdLast > 0 {
		args = append(args, "-vf",
			fmt.Sprintf("tpad=stop_mode=clone:stop_duration=%d", int(holdLast.Seconds())))
	}
	args = append(args, outPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("anim: ffmpeg failed: %w: %s", err, out)
	}
	return outPath, nil
}
