// Package scheduler drives the pipeline: the capture tick on a fixed
// interval, the publish pipeline at configured times of day, and the day
// rollover in between.
package scheduler

import (
	"context"
	"database/sql"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hpungsan/snapstrip/internal/config"
	"github.com/hpungsan/snapstrip/internal/ranking"
)

// Runner is the slice of the pipeline the loop drives.
type Runner interface {
	CaptureTick(ctx context.Context, day string) error
	Publish(ctx context.Context, day string) error
}

// Loop is the single timeline the daemon runs on. All pipeline stages execute
// sequentially on the loop goroutine; when a tick fires while the previous one
// is still in flight, the new tick is skipped rather than run concurrently.
type Loop struct {
	cfg  *config.Config
	pipe Runner
	db   *sql.DB
	log  *slog.Logger

	// Now is swapped out by tests.
	Now func() time.Time

	busy    atomic.Bool
	ticks   atomic.Int64
	skipped atomic.Int64

	mu    sync.Mutex
	day   string
	fired map[string]bool // publish slots already run today
}

// Snapshot is the loop state the dashboard and MCP tools report.
type Snapshot struct {
	Day          string   `json:"day"`
	Busy         bool     `json:"busy"`
	Ticks        int64    `json:"ticks"`
	SkippedTicks int64    `json:"skipped_ticks"`
	FiredSlots   []string `json:"fired_slots"`
}

func New(cfg *config.Config, pipe Runner, database *sql.DB, log *slog.Logger) *Loop {
	return &Loop{
		cfg:   cfg,
		pipe:  pipe,
		db:    database,
		log:   log,
		Now:   time.Now,
		fired: make(map[string]bool),
	}
}

// Run blocks until ctx is done, firing capture ticks every interval and the
// publish pipeline at each configured clock time once per day.
func (l *Loop) Run(ctx context.Context) {
	l.mu.Lock()
	l.day = ranking.DayOf(l.Now())
	l.mu.Unlock()

	interval := time.Duration(l.cfg.Capture.IntervalSeconds) * time.Second
	capture := time.NewTicker(interval)
	defer capture.Stop()

	// Publish slots are minute-granular, so one coarse ticker covers both
	// the slot check and the day rollover.
	minute := time.NewTicker(20 * time.Second)
	defer minute.Stop()

	l.log.Info("scheduler running",
		"interval", interval, "publish_times", l.cfg.Publish.Times)

	for {
		select {
		case <-ctx.Done():
			l.log.Info("scheduler stopping", "ticks", l.ticks.Load(), "skipped", l.skipped.Load())
			return
		case <-capture.C:
			l.captureTick(ctx)
		case <-minute.C:
			l.rollover()
			l.publishDue(ctx)
		}
	}
}

func (l *Loop) captureTick(ctx context.Context) {
	if !l.busy.CompareAndSwap(false, true) {
		l.skipped.Add(1)
		l.log.Warn("previous tick still in flight, skipping", "skipped", l.skipped.Load())
		return
	}
	defer l.busy.Store(false)

	l.ticks.Add(1)
	day := l.currentDay()
	if err := l.pipe.CaptureTick(ctx, day); err != nil && ctx.Err() == nil {
		l.log.Error("capture tick failed", "day", day, "error", err)
	}
}

// rollover archives finished days and resets the publish slots when the
// calendar date changes.
func (l *Loop) rollover() {
	today := ranking.DayOf(l.Now())

	l.mu.Lock()
	if l.day == today {
		l.mu.Unlock()
		return
	}
	previous := l.day
	l.day = today
	l.fired = make(map[string]bool)
	l.mu.Unlock()

	l.log.Info("day rollover", "from", previous, "to", today)
	if n, err := ranking.ArchiveBefore(l.db, today); err != nil {
		l.log.Error("archiving previous days failed", "error", err)
	} else if n > 0 {
		l.log.Info("archived previous entries", "count", n)
	}
}

// publishDue runs the publish pipeline for every configured slot whose time
// has passed and which has not fired today.
func (l *Loop) publishDue(ctx context.Context) {
	if !l.cfg.Publish.Enabled {
		return
	}
	now := l.Now()
	clock := now.Format("15:04")

	for _, slot := range l.cfg.Publish.Times {
		l.mu.Lock()
		done := l.fired[slot]
		l.mu.Unlock()
		if done || clock < slot {
			continue
		}

		l.mu.Lock()
		l.fired[slot] = true
		day := l.day
		l.mu.Unlock()

		l.log.Info("publish slot due", "slot", slot, "day", day)
		if !l.busy.CompareAndSwap(false, true) {
			// Leave the slot marked; a half-hour retry dance is worse
			// than catching the strip at the next slot.
			l.log.Warn("capture in flight at publish slot, slot skipped", "slot", slot)
			continue
		}
		err := l.pipe.Publish(ctx, day)
		l.busy.Store(false)
		if err != nil && ctx.Err() == nil {
			l.log.Error("publish failed", "slot", slot, "day", day, "error", err)
		}
	}
}

func (l *Loop) currentDay() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.day
}

// Status reports the loop state.
func (l *Loop) Status() Snapshot {
	l.mu.Lock()
	fired := make([]string, 0, len(l.fired))
	for slot := range l.fired {
		fired = append(fired, slot)
	}
	day := l.day
	l.mu.Unlock()
	sort.Strings(fired)

	return Snapshot{
		Day:          day,
		Busy:         l.busy.Load(),
		Ticks:        l.ticks.Load(),
		SkippedTicks: l.skipped.Load(),
		FiredSlots:   fired,
	}
}
