package ranking

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/snapstrip/internal/db"
	"github.com/hpungsan/snapstrip/internal/errors"
)

// TestFullWorkflow exercises one day end to end:
// offer → rank → stylize → strip → push → archive → clear
func TestFullWorkflow(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	require.NoError(t, err)
	defer database.Close()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	// 1. Offer three frames over the day, one of them below the pack.
	var ids []string
	for i, score := range []float64{62, 35, 88} {
		frame := writeFrame(t, tmpDir, fmt.Sprintf("frame_%d.jpg", i))
		out, err := Offer(database, 2, OfferInput{
			Day:        testDay,
			Score:      score,
			FramePath:  frame,
			CapturedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
		if out.Admitted {
			ids = append(ids, out.ID)
		}
	}

	// 2. Rank check: the weakest frame was evicted, best score first.
	entries, err := TopN(database, testDay)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 88.0, entries[0].Score)
	require.Equal(t, 62.0, entries[1].Score)

	// Capture order for the collage is the reverse here.
	byTime, err := ByTime(database, testDay)
	require.NoError(t, err)
	require.Equal(t, 62.0, byTime[0].Score)

	// 3. Stylize one entry and verify RenderPath switches over.
	styled := writeFrame(t, tmpDir, "styled.jpg")
	require.NoError(t, SetStylized(database, entries[0].ID, styled))
	got, err := Get(database, entries[0].ID)
	require.NoError(t, err)
	require.Equal(t, styled, got.RenderPath())

	// 4. Record the assembled strip, then mark it pushed.
	strip := writeFrame(t, tmpDir, "strip.jpg")
	require.NoError(t, RecordStrip(database, testDay, strip, 2))
	require.NoError(t, MarkPushed(database, testDay, "https://img.example/abc.jpg"))

	stripOut, err := GetStrip(database, testDay)
	require.NoError(t, err)
	require.Equal(t, 2, stripOut.PhotoCount)
	require.NotNil(t, stripOut.PushedAt)
	require.NotNil(t, stripOut.HostedURL)
	require.Equal(t, "https://img.example/abc.jpg", *stripOut.HostedURL)

	// 5. Day rollover: archive everything before a later day.
	archived, err := ArchiveBefore(database, "2026-03-15")
	require.NoError(t, err)
	require.Equal(t, 2, archived)

	entries, err = TopN(database, testDay)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].ArchivedAt)

	// 6. Clear the day and verify nothing is left, on disk or in the store.
	removed, err := ClearDay(database, testDay)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	days, err := Days(database)
	require.NoError(t, err)
	require.Empty(t, days)

	_, err = Get(database, ids[0])
	require.True(t, errors.Is(err, errors.ErrNotFound))
}
