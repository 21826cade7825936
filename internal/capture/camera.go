package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ErrDeviceUnavailable means the camera could not be opened. It is fatal to
// starting a surveillance session.
var ErrDeviceUnavailable = errors.New("camera device unavailable")

// FrameSource delivers JPEG frames from a camera. Stop releases the device
// and must be safe to call after any exit path. Err reports the terminal
// stream error once the frame channel closes; nil means a clean end.
type FrameSource interface {
	Start(ctx context.Context) error
	Frames() <-chan []byte
	Err() error
	Stop()
}

// Camera pulls MJPEG frames from a video device through FFmpeg. Device paths
// under /dev/ are opened as v4l2 capture devices; anything else (a file or
// URL) is passed to FFmpeg as-is, which is handy for development.
type Camera struct {
	device string
	fps    int
	width  int

	mu      sync.Mutex
	cancel  context.CancelFunc
	cmd     *exec.Cmd
	readErr error
	frames  chan []byte
}

func NewCamera(device string, fps, width int) *Camera {
	return &Camera{
		device: device,
		fps:    fps,
		width:  width,
		frames: make(chan []byte, 4),
	}
}

func (c *Camera) Frames() <-chan []byte {
	return c.frames
}

// Err reports why the frame stream ended. Valid once Frames() is closed;
// a device that ffmpeg opened but never produced frames from surfaces here
// as ErrDeviceUnavailable.
func (c *Camera) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// Start launches FFmpeg and begins feeding frames into the channel. The
// channel is closed when the device stream ends or the context is cancelled.
func (c *Camera) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
	}
	if strings.HasPrefix(c.device, "/dev/") {
		args = append(args, "-f", "v4l2", "-framerate", fmt.Sprintf("%d", c.fps))
	}
	args = append(args,
		"-i", c.device,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:-1", c.fps, c.width),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	c.mu.Lock()
	c.cancel = cancel
	c.cmd = cmd
	c.mu.Unlock()

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Warn("ffmpeg stderr", "output", scanner.Text())
		}
	}()

	go func() {
		defer close(c.frames)
		if err := c.readFrames(ctx, stdout); err != nil && ctx.Err() == nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			slog.Error("camera frame reader", "device", c.device, "error", err)
		}
		_ = cmd.Wait()
	}()

	return nil
}

// Stop terminates the FFmpeg process and releases the device.
func (c *Camera) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
}

// readFrames reads a stream of concatenated JPEG images into the frame
// channel. Tolerates initial EOF while ffmpeg is still opening the device
// (up to 5 seconds).
func (c *Camera) readFrames(ctx context.Context, r io.Reader) error {
	reader := bufio.NewReaderSize(r, 512*1024)
	framesRead := 0
	const maxStartupRetries = 50 // 50 * 100ms = 5s max wait for first frame
	startupRetries := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := findJPEGStart(reader)
		if err != nil {
			if err == io.EOF {
				if framesRead == 0 && startupRetries < maxStartupRetries {
					startupRetries++
					time.Sleep(100 * time.Millisecond)
					continue
				}
				if framesRead > 0 {
					return nil
				}
				return fmt.Errorf("%w: no frames received (waited %.1fs)",
					ErrDeviceUnavailable, float64(startupRetries)*0.1)
			}
			return err
		}

		frameData, err := readUntilJPEGEnd(reader)
		if err != nil {
			if err == io.EOF && framesRead > 0 {
				return nil
			}
			return err
		}

		if len(frameData) > 0 {
			framesRead++
			select {
			case c.frames <- frameData:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func findJPEGStart(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b != 0xFF {
			continue
		}
		b, err = r.ReadByte()
		if err != nil {
			return err
		}
		if b == 0xD8 {
			return nil
		}
	}
}

func readUntilJPEGEnd(r *bufio.Reader) ([]byte, error) {
	data := []byte{0xFF, 0xD8}

	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		data = append(data, b)

		if b == 0xFF {
			next, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			data = append(data, next)
			if next == 0xD9 {
				return data, nil
			}
		}

		// Safety: max 10MB per frame
		if len(data) > 10*1024*1024 {
			return nil, fmt.Errorf("jpeg frame too large: %d bytes", len(data))
		}
	}
}
