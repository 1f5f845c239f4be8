// Package pipeline sequences the daily cycle: capture, filter, score, rank
// all day, then stylize, collage, and push once per publish trigger.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hpungsan/snapstrip/internal/camera"
	"github.com/hpungsan/snapstrip/internal/config"
	"github.com/hpungsan/snapstrip/internal/errors"
	"github.com/hpungsan/snapstrip/internal/hosting"
	"github.com/hpungsan/snapstrip/internal/imaging"
	"github.com/hpungsan/snapstrip/internal/push"
	"github.com/hpungsan/snapstrip/internal/ranking"
	"github.com/hpungsan/snapstrip/internal/vision"
)

// Pipeline owns one run of each stage. Stages run sequentially on the
// caller's goroutine; every remote call blocks until done or its own timeout.
type Pipeline struct {
	Cfg        *config.Config
	DB         *sql.DB
	Source     camera.Source
	Classifier vision.Classifier
	Scorer     vision.Scorer
	Stylizer   vision.Stylizer
	Uploader   hosting.Uploader // may be nil
	Notifier   push.Notifier
	Log        *slog.Logger

	// DegradedScoring marks that Scorer is the random fallback, so entries
	// are flagged and the dashboard can show the degradation.
	DegradedScoring bool
}

// CaptureTick runs one capture cycle for the given day. A stage failure
// skips the tick; it never takes the process down.
func (p *Pipeline) CaptureTick(ctx context.Context, day string) error {
	frame, err := p.Source.Capture(ctx)
	if err != nil {
		return err
	}

	verdict, err := p.Classifier.HasPerson(ctx, frame.Path)
	if err != nil {
		// Fail-closed: an undecidable frame is treated as having no person.
		p.discard(frame.Path)
		return err
	}
	if !verdict.Person {
		p.Log.Debug("no person in frame, skipping", "frame", frame.Path)
		p.discard(frame.Path)
		return nil
	}

	score, err := p.Scorer.Score(ctx, frame.Path)
	if err != nil {
		p.discard(frame.Path)
		return err
	}
	if score < p.Cfg.Capture.QualityThreshold {
		p.Log.Debug("below quality threshold, skipping",
			"frame", frame.Path, "score", score, "threshold", p.Cfg.Capture.QualityThreshold)
		p.discard(frame.Path)
		return nil
	}

	out, err := ranking.Offer(p.DB, p.Cfg.Capture.TopN, ranking.OfferInput{
		Day:        day,
		Score:      score,
		Degraded:   p.DegradedScoring,
		FramePath:  frame.Path,
		CapturedAt: frame.CapturedAt,
	})
	if err != nil {
		p.discard(frame.Path)
		return err
	}
	if !out.Admitted {
		p.Log.Debug("score below today's cut, frame dropped", "score", score)
		p.discard(frame.Path)
		return nil
	}

	p.Log.Info("frame ranked", "id", out.ID, "day", day, "score", score,
		"label", verdict.Label, "degraded", p.DegradedScoring)
	return nil
}

// Publish stylizes the day's ranked frames, assembles the strip, records it,
// and pushes it. An empty ranking is a no-op. Stylization failures fall back
// to the raw frame so one bad remote call never stalls the strip.
func (p *Pipeline) Publish(ctx context.Context, day string) error {
	ranked, err := ranking.TopN(p.DB, day)
	if err != nil {
		return err
	}
	if len(ranked) == 0 {
		p.Log.Info("nothing ranked, skipping publish", "day", day)
		return nil
	}

	for _, e := range ranked {
		if e.StylizedPath != nil {
			continue
		}
		dst := filepath.Join(p.Cfg.StylizedDir(), fmt.Sprintf("stylized_%s.jpg", e.ID))
		if err := p.Stylizer.Stylize(ctx, e.FramePath, dst); err != nil {
			p.Log.Warn("stylize failed, using raw frame", "id", e.ID, "error", err)
			continue
		}
		if err := ranking.SetStylized(p.DB, e.ID, dst); err != nil {
			p.Log.Warn("could not record stylized path", "id", e.ID, "error", err)
		}
	}

	// Panels run in capture order regardless of rank.
	entries, err := ranking.ByTime(p.DB, day)
	if err != nil {
		return err
	}
	items := make([]imaging.Item, len(entries))
	for i, e := range entries {
		items[i] = imaging.Item{Path: e.RenderPath(), Clock: e.Clock}
	}

	strip, err := imaging.Collage(items, imaging.DefaultOptions())
	if err != nil {
		return errors.NewInternal(fmt.Errorf("collage: %w", err))
	}

	stripPath := filepath.Join(p.Cfg.CollagesDir(), fmt.Sprintf("collage_%s.jpg", day))
	if err := imaging.SaveJPEG(strip, stripPath, 90); err != nil {
		return errors.NewInternal(err)
	}
	if err := ranking.RecordStrip(p.DB, day, stripPath, len(items)); err != nil {
		return err
	}
	p.Log.Info("strip assembled", "day", day, "panels", len(items), "path", stripPath)

	var hostedURL string
	if p.Uploader != nil {
		data, err := os.ReadFile(stripPath)
		if err != nil {
			return errors.NewInternal(err)
		}
		hostedURL, err = p.Uploader.Upload(data, "strip_"+day)
		if err != nil {
			p.Log.Warn("strip upload failed, push will inline", "day", day, "error", err)
			hostedURL = ""
		}
	}

	if !p.Cfg.Push.Enabled {
		p.Log.Info("push disabled, strip kept locally", "day", day)
		return nil
	}
	if err := p.Notifier.PublishStrip(ctx, push.Notice{
		Day:        day,
		PhotoCount: len(items),
		StripPath:  stripPath,
		HostedURL:  hostedURL,
	}); err != nil {
		return err
	}
	if err := ranking.MarkPushed(p.DB, day, hostedURL); err != nil {
		return err
	}
	p.Log.Info("strip pushed", "day", day, "hosted", hostedURL != "")
	return nil
}

// discard removes a frame file that will not be ranked.
func (p *Pipeline) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.Log.Warn("could not remove frame", "path", path, "error", err)
	}
}
