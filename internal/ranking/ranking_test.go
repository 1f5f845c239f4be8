package ranking

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hpungsan/snapstrip/internal/db"
	"github.com/hpungsan/snapstrip/internal/errors"
)

const testDay = "2026-03-14"

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// writeFrame creates a throwaway file so eviction cleanup has something to remove.
func writeFrame(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("jpeg"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func offerScore(t *testing.T, database *sql.DB, topN int, score float64, at time.Time) *OfferOutput {
	t.Helper()
	out, err := Offer(database, topN, OfferInput{
		Day:        testDay,
		Score:      score,
		FramePath:  fmt.Sprintf("/nonexistent/frame_%.0f_%d.jpg", score, at.Unix()),
		CapturedAt: at,
	})
	if err != nil {
		t.Fatalf("Offer(%v) failed: %v", score, err)
	}
	return out
}

func TestOffer_FillsUpToN(t *testing.T) {
	database := openTestDB(t)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i, score := range []float64{50, 30, 70} {
		out := offerScore(t, database, 3, score, base.Add(time.Duration(i)*time.Minute))
		if !out.Admitted {
			t.Fatalf("offer %d (score %v) not admitted while set below N", i, score)
		}
		if out.Evicted != nil {
			t.Fatalf("offer %d evicted %v while set below N", i, out.Evicted)
		}
	}

	entries, err := TopN(database, testDay)
	if err != nil {
		t.Fatalf("TopN failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
}

func TestOffer_SpecExample(t *testing.T) {
	// Top-N=3; offering [10, 40, 25, 60, 5] leaves {60, 40, 25}.
	database := openTestDB(t)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i, score := range []float64{10, 40, 25, 60, 5} {
		offerScore(t, database, 3, score, base.Add(time.Duration(i)*time.Minute))
	}

	entries, err := TopN(database, testDay)
	if err != nil {
		t.Fatalf("TopN failed: %v", err)
	}
	got := make([]float64, len(entries))
	for i, e := range entries {
		got[i] = e.Score
	}
	want := []float64{60, 40, 25}
	if len(got) != len(want) {
		t.Fatalf("scores = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scores = %v, want %v", got, want)
		}
	}
}

func TestOffer_LowScoreLeavesSetUnchanged(t *testing.T) {
	database := openTestDB(t)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i, score := range []float64{50, 30, 70} {
		offerScore(t, database, 3, score, base.Add(time.Duration(i)*time.Minute))
	}
	before, _ := TopN(database, testDay)

	out := offerScore(t, database, 3, 20, base.Add(time.Hour))
	if out.Admitted {
		t.Fatal("score below minimum must not be admitted")
	}

	after, err := TopN(database, testDay)
	if err != nil {
		t.Fatalf("TopN failed: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("set size changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if after[i].ID != before[i].ID {
			t.Fatalf("set changed at %d: %s -> %s", i, before[i].ID, after[i].ID)
		}
	}
}

func TestOffer_EvictsExactlyTheMinimum(t *testing.T) {
	database := openTestDB(t)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	offerScore(t, database, 3, 50, base)
	minOut := offerScore(t, database, 3, 30, base.Add(time.Minute))
	offerScore(t, database, 3, 70, base.Add(2*time.Minute))

	out := offerScore(t, database, 3, 60, base.Add(3*time.Minute))
	if !out.Admitted {
		t.Fatal("higher score must be admitted")
	}
	if out.Evicted == nil || out.Evicted.ID != minOut.ID {
		t.Fatalf("evicted = %+v, want entry %s (score 30)", out.Evicted, minOut.ID)
	}
}

func TestOffer_EqualScoreKeepsIncumbent(t *testing.T) {
	database := openTestDB(t)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i, score := range []float64{50, 30, 70} {
		offerScore(t, database, 3, score, base.Add(time.Duration(i)*time.Minute))
	}

	out := offerScore(t, database, 3, 30, base.Add(time.Hour))
	if out.Admitted {
		t.Fatal("score equal to the minimum must keep the earlier incumbent")
	}
}

func TestOffer_TieEvictsLatestCaptured(t *testing.T) {
	database := openTestDB(t)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	early := offerScore(t, database, 2, 30, base)
	late := offerScore(t, database, 2, 30, base.Add(time.Minute))

	out := offerScore(t, database, 2, 40, base.Add(2*time.Minute))
	if !out.Admitted || out.Evicted == nil {
		t.Fatal("expected admission with eviction")
	}
	if out.Evicted.ID != late.ID {
		t.Errorf("evicted %s, want the later-captured %s", out.Evicted.ID, late.ID)
	}

	entries, _ := TopN(database, testDay)
	for _, e := range entries {
		if e.ID == early.ID {
			return
		}
	}
	t.Error("earlier-captured tie entry should survive")
}

func TestOffer_NeverExceedsN(t *testing.T) {
	database := openTestDB(t)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 20; i++ {
		offerScore(t, database, 3, float64(i*7%100), base.Add(time.Duration(i)*time.Minute))

		entries, err := TopN(database, testDay)
		if err != nil {
			t.Fatalf("TopN failed: %v", err)
		}
		if len(entries) > 3 {
			t.Fatalf("after offer %d: %d entries, want <= 3", i, len(entries))
		}
	}
}

func TestOffer_EvictionRemovesFiles(t *testing.T) {
	database := openTestDB(t)
	tmpDir := t.TempDir()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	lowPath := writeFrame(t, tmpDir, "low.jpg")
	out, err := Offer(database, 1, OfferInput{
		Day: testDay, Score: 10, FramePath: lowPath, CapturedAt: base,
	})
	if err != nil {
		t.Fatalf("Offer failed: %v", err)
	}
	stylized := writeFrame(t, tmpDir, "low_stylized.jpg")
	if err := SetStylized(database, out.ID, stylized); err != nil {
		t.Fatalf("SetStylized failed: %v", err)
	}

	highPath := writeFrame(t, tmpDir, "high.jpg")
	if _, err := Offer(database, 1, OfferInput{
		Day: testDay, Score: 90, FramePath: highPath, CapturedAt: base.Add(time.Minute),
	}); err != nil {
		t.Fatalf("Offer failed: %v", err)
	}

	for _, path := range []string{lowPath, stylized} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("evicted file %s should be removed", path)
		}
	}
	if _, err := os.Stat(highPath); err != nil {
		t.Errorf("admitted file %s should remain: %v", highPath, err)
	}
}

func TestOffer_ShrunkTopNPrunes(t *testing.T) {
	database := openTestDB(t)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i, score := range []float64{50, 30, 70} {
		offerScore(t, database, 3, score, base.Add(time.Duration(i)*time.Minute))
	}

	// Re-offer with top_n now 2: the 30 must be pruned, 80 admitted.
	out := offerScore(t, database, 2, 80, base.Add(time.Hour))
	if !out.Admitted {
		t.Fatal("expected admission")
	}

	entries, _ := TopN(database, testDay)
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Score != 80 || entries[1].Score != 70 {
		t.Fatalf("scores = [%v %v], want [80 70]", entries[0].Score, entries[1].Score)
	}
}

func TestOffer_InvalidInputs(t *testing.T) {
	database := openTestDB(t)

	_, err := Offer(database, 3, OfferInput{Day: "14-03-2026", FramePath: "x.jpg", CapturedAt: time.Now()})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad day: got %v, want INVALID_REQUEST", err)
	}

	_, err = Offer(database, 3, OfferInput{Day: testDay, CapturedAt: time.Now()})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("missing frame_path: got %v, want INVALID_REQUEST", err)
	}

	_, err = Offer(database, 0, OfferInput{Day: testDay, FramePath: "x.jpg", CapturedAt: time.Now()})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("zero top_n: got %v, want INVALID_REQUEST", err)
	}
}

func TestByTime_CaptureOrder(t *testing.T) {
	database := openTestDB(t)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	// High score captured last.
	offerScore(t, database, 3, 40, base.Add(2*time.Minute))
	offerScore(t, database, 3, 90, base.Add(4*time.Minute))
	offerScore(t, database, 3, 60, base)

	entries, err := ByTime(database, testDay)
	if err != nil {
		t.Fatalf("ByTime failed: %v", err)
	}
	var prev int64
	for i, e := range entries {
		if e.CapturedAt < prev {
			t.Fatalf("entry %d out of capture order", i)
		}
		prev = e.CapturedAt
	}
}

func TestDaysAndArchive(t *testing.T) {
	database := openTestDB(t)
	base := time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC)

	for _, day := range []string{"2026-03-12", "2026-03-13", "2026-03-14"} {
		if _, err := Offer(database, 3, OfferInput{
			Day: day, Score: 50, FramePath: "/nonexistent/" + day + ".jpg", CapturedAt: base,
		}); err != nil {
			t.Fatalf("Offer(%s) failed: %v", day, err)
		}
	}

	days, err := Days(database)
	if err != nil {
		t.Fatalf("Days failed: %v", err)
	}
	if len(days) != 3 || days[0] != "2026-03-14" {
		t.Fatalf("Days = %v, want newest first", days)
	}

	n, err := ArchiveBefore(database, "2026-03-14")
	if err != nil {
		t.Fatalf("ArchiveBefore failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("archived %d rows, want 2", n)
	}

	// Archived rows remain readable.
	old, err := TopN(database, "2026-03-12")
	if err != nil {
		t.Fatalf("TopN on archived day failed: %v", err)
	}
	if len(old) != 1 || old[0].ArchivedAt == nil {
		t.Fatalf("archived day entries = %+v", old)
	}

	// Archiving again is a no-op.
	n, err = ArchiveBefore(database, "2026-03-14")
	if err != nil || n != 0 {
		t.Fatalf("second ArchiveBefore = (%d, %v), want (0, nil)", n, err)
	}
}

func TestClearDay(t *testing.T) {
	database := openTestDB(t)
	tmpDir := t.TempDir()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	path := writeFrame(t, tmpDir, "clear.jpg")
	if _, err := Offer(database, 3, OfferInput{
		Day: testDay, Score: 50, FramePath: path, CapturedAt: base,
	}); err != nil {
		t.Fatalf("Offer failed: %v", err)
	}

	n, err := ClearDay(database, testDay)
	if err != nil {
		t.Fatalf("ClearDay failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("ClearDay removed %d, want 1", n)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("cleared frame file should be removed")
	}

	entries, _ := TopN(database, testDay)
	if len(entries) != 0 {
		t.Fatalf("entries after clear = %d, want 0", len(entries))
	}
}

func TestSetStylized_NotFound(t *testing.T) {
	database := openTestDB(t)

	err := SetStylized(database, "01NOPE", "/tmp/x.jpg")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("SetStylized on missing entry: got %v, want NOT_FOUND", err)
	}
}

func TestRenderPath_Fallback(t *testing.T) {
	e := &Entry{FramePath: "/data/frame.jpg"}
	if e.RenderPath() != "/data/frame.jpg" {
		t.Errorf("RenderPath = %q, want frame path", e.RenderPath())
	}

	stylized := "/data/stylized.jpg"
	e.StylizedPath = &stylized
	if e.RenderPath() != stylized {
		t.Errorf("RenderPath = %q, want stylized path", e.RenderPath())
	}
}
