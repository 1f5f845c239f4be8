// Package camera captures single frames from the configured video source.
package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/hpungsan/snapstrip/internal/config"
	"github.com/hpungsan/snapstrip/internal/errors"
)

// Frame is one captured still, written to disk under the captures directory.
type Frame struct {
	Path       string
	CapturedAt time.Time
}

// Source produces frames on demand. Capture blocks until a frame is written
// or the context is done.
type Source interface {
	Capture(ctx context.Context) (*Frame, error)
	Close() error
}

// NewSource returns the source for the given config: an ffmpeg RTSP grabber
// when a stream URL is set, otherwise a synthetic test-pattern source so the
// rest of the pipeline can run without a camera.
func NewSource(cfg *config.Config) Source {
	if cfg.Camera.StreamURL == "" {
		return &testPatternSource{dir: cfg.CapturesDir()}
	}
	return &FFmpegSource{
		streamURL: cfg.Camera.StreamURL,
		transport: cfg.Camera.Transport,
		timeout:   time.Duration(cfg.Camera.CaptureTimeoutSeconds) * time.Second,
		dir:       cfg.CapturesDir(),
	}
}

// FFmpegSource grabs one frame per Capture call by running ffmpeg against an
// RTSP stream. Each call is a fresh subprocess; there is no persistent
// connection to the camera.
type FFmpegSource struct {
	streamURL string
	transport string
	timeout   time.Duration
	dir       string
}

func (s *FFmpegSource) Capture(ctx context.Context) (*Frame, error) {
	now := time.Now()
	outPath := filepath.Join(s.dir, fmt.Sprintf("capture_%s.jpg", now.Format("20060102_150405")))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-rtsp_transport", s.transport,
		"-i", s.streamURL,
		"-frames:v", "1",
		"-q:v", "2",
		"-y",
		outPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(outPath)
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewCaptureFailed(fmt.Errorf("ffmpeg timed out after %s", s.timeout))
		}
		return nil, errors.NewCaptureFailed(fmt.Errorf("ffmpeg: %w: %s", err, tail(output, 300)))
	}

	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		os.Remove(outPath)
		return nil, errors.NewCaptureFailed(fmt.Errorf("ffmpeg produced no frame"))
	}

	return &Frame{Path: outPath, CapturedAt: now}, nil
}

func (s *FFmpegSource) Close() error { return nil }

// tail returns the last n bytes of ffmpeg output, which is where the useful
// error lives.
func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
