package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/hpungsan/snapstrip/internal/errors"
)

// testPatternSource renders a synthetic frame per capture. It stands in for a
// real camera when no stream URL is configured, so the pipeline stays
// exercisable end to end.
type testPatternSource struct {
	dir string
	seq atomic.Int64
}

func (s *testPatternSource) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCaptureFailed(err)
	}

	n := s.seq.Add(1)
	now := time.Now()

	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	// Color bars shifted by sequence number so consecutive frames differ.
	bars := []color.RGBA{
		{235, 235, 235, 255}, {235, 235, 16, 255}, {16, 235, 235, 255},
		{16, 235, 16, 255}, {235, 16, 235, 255}, {235, 16, 16, 255},
		{16, 16, 235, 255},
	}
	barWidth := 640 / len(bars)
	for x := 0; x < 640; x++ {
		bar := bars[(x/barWidth+int(n))%len(bars)]
		for y := 0; y < 480; y++ {
			img.Set(x, y, bar)
		}
	}

	outPath := filepath.Join(s.dir, fmt.Sprintf("capture_%s_%d.jpg", now.Format("20060102_150405"), n))
	f, err := os.Create(outPath)
	if err != nil {
		return nil, errors.NewCaptureFailed(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 85}); err != nil {
		os.Remove(outPath)
		return nil, errors.NewCaptureFailed(err)
	}

	return &Frame{Path: outPath, CapturedAt: now}, nil
}

func (s *testPatternSource) Close() error { return nil }
