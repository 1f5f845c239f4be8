package vision

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
)

// RandomScorer is the documented degraded mode used when scoring's hosting
// dependency is missing and degraded_policy is "random": a uniform score in
// [Min, Max). Ranking still runs, but the order is meaningless and each score
// is logged as degraded.
type RandomScorer struct {
	Min, Max float64

	log *slog.Logger
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomScorer builds a degraded scorer over the standard 0-100 range.
func NewRandomScorer(seed int64, log *slog.Logger) *RandomScorer {
	return &RandomScorer{
		Min: 0,
		Max: 100,
		log: log,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Score never fails and never looks at the image.
func (s *RandomScorer) Score(_ context.Context, imagePath string) (float64, error) {
	s.mu.Lock()
	score := s.Min + s.rng.Float64()*(s.Max-s.Min)
	s.mu.Unlock()

	s.log.Warn("degraded scoring: random score, ranking order is not meaningful",
		"image", imagePath, "score", score)
	return score, nil
}
