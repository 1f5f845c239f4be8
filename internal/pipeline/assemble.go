package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hpungsan/snapstrip/internal/camera"
	"github.com/hpungsan/snapstrip/internal/config"
	"github.com/hpungsan/snapstrip/internal/errors"
	"github.com/hpungsan/snapstrip/internal/hosting"
	"github.com/hpungsan/snapstrip/internal/push"
	"github.com/hpungsan/snapstrip/internal/vision"
)

// New assembles a pipeline from config: remote adapters when credentials
// exist, the local classifier and the documented degraded scoring mode when
// they do not.
func New(ctx context.Context, cfg *config.Config, database *sql.DB, log *slog.Logger) (*Pipeline, error) {
	p := &Pipeline{
		Cfg:      cfg,
		DB:       database,
		Source:   camera.NewSource(cfg),
		Notifier: push.NewClient(cfg.Push, log),
		Log:      log,
	}
	if cfg.Camera.StreamURL == "" {
		log.Warn("no camera stream configured, capturing synthetic test frames")
	}

	if u := hosting.NewImgBB(cfg.Hosting.ImgBBKey); u != nil {
		p.Uploader = u
	}

	remote := vision.NewClient(cfg.Vision, p.Uploader, log)
	p.Stylizer = remote

	if cfg.Vision.Token != "" {
		p.Classifier = remote
	} else {
		local, err := vision.NewOllamaClassifier(ctx, cfg.Vision, log)
		if err != nil {
			return nil, err
		}
		log.Info("no vision token, using local person classifier",
			"model", cfg.Vision.OllamaModel)
		p.Classifier = local
	}

	switch {
	case cfg.Vision.Token != "" && p.Uploader != nil:
		p.Scorer = remote
	case cfg.Capture.DegradedPolicy == config.DegradedRandom:
		log.Warn("scoring dependencies missing, degraded random scoring is active")
		p.Scorer = vision.NewRandomScorer(time.Now().UnixNano(), log)
		p.DegradedScoring = true
	default:
		log.Warn("scoring dependencies missing, frames will be rejected")
		p.Scorer = rejectScorer{}
	}

	return p, nil
}

// rejectScorer implements degraded_policy "reject": every frame fails
// scoring and is dropped for that tick.
type rejectScorer struct{}

func (rejectScorer) Score(context.Context, string) (float64, error) {
	return 0, errors.NewScoringFailed(fmt.Errorf("scoring requires a vision token and image hosting"))
}
