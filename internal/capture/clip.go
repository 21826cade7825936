package capture

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// ClipMuxer turns a sequence of JPEG frames into a playable video clip.
type ClipMuxer interface {
	Mux(ctx context.Context, frames [][]byte, fps int) ([]byte, error)
}

// collectClipFrames drains the live frame flow for roughly the clip duration.
// The session blocks here on purpose: no matching happens while the clip is
// being captured.
func collectClipFrames(ctx context.Context, frames <-chan []byte, d time.Duration) [][]byte {
	var collected [][]byte
	deadline := time.NewTimer(d)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return collected
		case <-deadline.C:
			return collected
		case frame, ok := <-frames:
			if !ok {
				return collected
			}
			collected = append(collected, frame)
		}
	}
}

// FFmpegMuxer packs JPEG frames into an MJPEG AVI container via FFmpeg.
type FFmpegMuxer struct{}

func (FFmpegMuxer) Mux(ctx context.Context, frames [][]byte, fps int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to mux")
	}
	if fps <= 0 {
		fps = 5
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "image2pipe",
		"-framerate", fmt.Sprintf("%d", fps),
		"-vcodec", "mjpeg",
		"-i", "pipe:0",
		"-c:v", "copy",
		"-f", "avi",
		"pipe:1",
	)

	var in bytes.Buffer
	for _, f := range frames {
		in.Write(f)
	}
	cmd.Stdin = &in

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("mux clip: %w (%s)", err, errBuf.String())
	}
	return out.Bytes(), nil
}
