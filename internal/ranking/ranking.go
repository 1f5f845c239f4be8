package ranking

import (
	"database/sql"
	"os"
	"time"

	"github.com/hpungsan/snapstrip/internal/errors"
)

// OfferInput contains parameters for the Offer operation.
type OfferInput struct {
	Day        string
	Score      float64 // 0-100
	Degraded   bool
	FramePath  string
	CapturedAt time.Time
}

// OfferOutput contains the result of the Offer operation.
type OfferOutput struct {
	Admitted bool   `json:"admitted"`
	ID       string `json:"id,omitempty"`
	Evicted  *Entry `json:"evicted,omitempty"`
}

// Offer presents a scored frame to the day's Top-N set.
//
// If the active set for the day holds fewer than topN entries the frame is
// admitted. Otherwise it replaces the current minimum only when its score is
// strictly greater; equal scores keep the incumbent, and among several
// minimum-scored entries the latest-captured one is the eviction candidate,
// so earlier timestamps win ties. Runs in a single transaction; the active
// set for a day never exceeds topN members.
//
// An evicted entry's image files are removed from disk, best effort.
func Offer(database *sql.DB, topN int, in OfferInput) (*OfferOutput, error) {
	if err := ValidateDay(in.Day); err != nil {
		return nil, err
	}
	if in.FramePath == "" {
		return nil, errors.NewInvalidRequest("frame_path is required")
	}
	if topN < 1 {
		return nil, errors.NewInvalidRequest("top_n must be at least 1")
	}

	id, err := newULID()
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	entry := &Entry{
		ID:         id,
		Day:        in.Day,
		Score:      in.Score,
		Degraded:   in.Degraded,
		FramePath:  in.FramePath,
		CapturedAt: in.CapturedAt.Unix(),
		Clock:      in.CapturedAt.Format("15:04"),
		CreatedAt:  now,
	}

	tx, err := database.Begin()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback()

	// A shrunk top_n prunes extras before the admission decision.
	pruned, err := pruneTx(tx, in.Day, topN)
	if err != nil {
		return nil, err
	}

	var count int
	err = tx.QueryRow(
		"SELECT COUNT(*) FROM entries WHERE day = ? AND archived_at IS NULL", in.Day,
	).Scan(&count)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	var evicted *Entry
	if count >= topN {
		lowest, err := scanEntry(tx.QueryRow(selectEntry+`
			WHERE day = ? AND archived_at IS NULL
			ORDER BY score ASC, captured_at DESC LIMIT 1`, in.Day))
		if err != nil {
			return nil, err
		}
		if in.Score <= lowest.Score {
			if err := tx.Commit(); err != nil {
				return nil, errors.NewInternal(err)
			}
			cleanup(pruned)
			return &OfferOutput{Admitted: false}, nil
		}
		if _, err := tx.Exec("DELETE FROM entries WHERE id = ?", lowest.ID); err != nil {
			return nil, errors.NewInternal(err)
		}
		evicted = lowest
	}

	_, err = tx.Exec(`
		INSERT INTO entries (id, day, score, degraded, frame_path, stylized_path,
			captured_at, clock, created_at, archived_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?, ?, NULL)`,
		entry.ID, entry.Day, entry.Score, boolToInt(entry.Degraded),
		entry.FramePath, entry.CapturedAt, entry.Clock, entry.CreatedAt,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	cleanup(pruned)
	if evicted != nil {
		cleanup([]*Entry{evicted})
	}

	return &OfferOutput{Admitted: true, ID: entry.ID, Evicted: evicted}, nil
}

// TopN returns the day's entries ordered by score descending, earliest
// capture first among equal scores.
func TopN(database *sql.DB, day string) ([]*Entry, error) {
	if err := ValidateDay(day); err != nil {
		return nil, err
	}
	return scanEntries(database.Query(selectEntry+`
		WHERE day = ? ORDER BY score DESC, captured_at ASC`, day))
}

// ByTime returns the day's entries in capture order, which is the collage order.
func ByTime(database *sql.DB, day string) ([]*Entry, error) {
	if err := ValidateDay(day); err != nil {
		return nil, err
	}
	return scanEntries(database.Query(selectEntry+`
		WHERE day = ? ORDER BY captured_at ASC`, day))
}

// Get returns a single entry by ID.
func Get(database *sql.DB, id string) (*Entry, error) {
	return scanEntry(database.QueryRow(selectEntry+" WHERE id = ?", id))
}

// SetStylized records the stylized rendering path for an entry.
func SetStylized(database *sql.DB, id, path string) error {
	res, err := database.Exec("UPDATE entries SET stylized_path = ? WHERE id = ?", path, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// Remove deletes an entry and its image files.
func Remove(database *sql.DB, id string) error {
	entry, err := Get(database, id)
	if err != nil {
		return err
	}
	if _, err := database.Exec("DELETE FROM entries WHERE id = ?", id); err != nil {
		return errors.NewInternal(err)
	}
	cleanup([]*Entry{entry})
	return nil
}

// ClearDay deletes all of a day's entries and their files.
func ClearDay(database *sql.DB, day string) (int, error) {
	if err := ValidateDay(day); err != nil {
		return 0, err
	}
	entries, err := ByTime(database, day)
	if err != nil {
		return 0, err
	}
	if _, err := database.Exec("DELETE FROM entries WHERE day = ?", day); err != nil {
		return 0, errors.NewInternal(err)
	}
	cleanup(entries)
	return len(entries), nil
}

// Days lists days that have entries, most recent first.
func Days(database *sql.DB) ([]string, error) {
	rows, err := database.Query("SELECT DISTINCT day FROM entries ORDER BY day DESC")
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, errors.NewInternal(err)
		}
		days = append(days, day)
	}
	return days, rows.Err()
}

// ArchiveBefore marks all entries from days earlier than day as archived.
// Archived rows stay readable for history but no longer participate in
// ranking. Called at day rollover.
func ArchiveBefore(database *sql.DB, day string) (int, error) {
	if err := ValidateDay(day); err != nil {
		return 0, err
	}
	res, err := database.Exec(
		"UPDATE entries SET archived_at = ? WHERE day < ? AND archived_at IS NULL",
		time.Now().Unix(), day,
	)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// pruneTx removes the lowest-scored active entries beyond limit for the day,
// returning the removed entries so their files can be cleaned up after commit.
func pruneTx(tx *sql.Tx, day string, limit int) ([]*Entry, error) {
	extras, err := scanEntries(tx.Query(selectEntry+`
		WHERE day = ? AND archived_at IS NULL
		ORDER BY score DESC, captured_at ASC LIMIT -1 OFFSET ?`, day, limit))
	if err != nil {
		return nil, err
	}
	for _, e := range extras {
		if _, err := tx.Exec("DELETE FROM entries WHERE id = ?", e.ID); err != nil {
			return nil, errors.NewInternal(err)
		}
	}
	return extras, nil
}

const selectEntry = `
	SELECT id, day, score, degraded, frame_path, stylized_path,
		captured_at, clock, created_at, archived_at
	FROM entries`

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntryFrom(s rowScanner) (*Entry, error) {
	var e Entry
	var degraded int
	var stylized sql.NullString
	var archived sql.NullInt64

	err := s.Scan(&e.ID, &e.Day, &e.Score, &degraded, &e.FramePath, &stylized,
		&e.CapturedAt, &e.Clock, &e.CreatedAt, &archived)
	if err != nil {
		return nil, err
	}

	e.Degraded = degraded != 0
	if stylized.Valid {
		e.StylizedPath = &stylized.String
	}
	if archived.Valid {
		e.ArchivedAt = &archived.Int64
	}
	return &e, nil
}

func scanEntry(row *sql.Row) (*Entry, error) {
	e, err := scanEntryFrom(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("entry")
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return e, nil
}

func scanEntries(rows *sql.Rows, err error) ([]*Entry, error) {
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntryFrom(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return entries, nil
}

// cleanup removes image files for evicted entries, best effort. Rows are
// already gone; a stale file is preferable to a failed eviction.
func cleanup(entries []*Entry) {
	for _, e := range entries {
		if e == nil {
			continue
		}
		if e.FramePath != "" {
			_ = os.Remove(e.FramePath)
		}
		if e.StylizedPath != nil && *e.StylizedPath != "" {
			_ = os.Remove(*e.StylizedPath)
		}
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
