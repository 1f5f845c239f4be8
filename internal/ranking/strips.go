package ranking

import (
	"database/sql"
	"time"

	"github.com/hpungsan/snapstrip/internal/errors"
)

// RecordStrip upserts the assembled collage for a day. Re-publishing a day
// replaces the previous record and resets its pushed state.
func RecordStrip(database *sql.DB, day, path string, photoCount int) error {
	if err := ValidateDay(day); err != nil {
		return err
	}
	_, err := database.Exec(`
		INSERT INTO strips (day, path, photo_count, created_at, pushed_at, hosted_url)
		VALUES (?, ?, ?, ?, NULL, NULL)
		ON CONFLICT(day) DO UPDATE SET
			path = excluded.path,
			photo_count = excluded.photo_count,
			created_at = excluded.created_at,
			pushed_at = NULL,
			hosted_url = NULL`,
		day, path, photoCount, time.Now().Unix(),
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// MarkPushed records a successful push, with the hosted URL when one was used.
func MarkPushed(database *sql.DB, day, hostedURL string) error {
	var hosted sql.NullString
	if hostedURL != "" {
		hosted = sql.NullString{String: hostedURL, Valid: true}
	}
	res, err := database.Exec(
		"UPDATE strips SET pushed_at = ?, hosted_url = ? WHERE day = ?",
		time.Now().Unix(), hosted, day,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(day)
	}
	return nil
}

// GetStrip returns the strip record for a day.
func GetStrip(database *sql.DB, day string) (*Strip, error) {
	if err := ValidateDay(day); err != nil {
		return nil, err
	}

	var s Strip
	var pushed sql.NullInt64
	var hosted sql.NullString
	err := database.QueryRow(`
		SELECT day, path, photo_count, created_at, pushed_at, hosted_url
		FROM strips WHERE day = ?`, day,
	).Scan(&s.Day, &s.Path, &s.PhotoCount, &s.CreatedAt, &pushed, &hosted)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(day)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if pushed.Valid {
		s.PushedAt = &pushed.Int64
	}
	if hosted.Valid {
		s.HostedURL = &hosted.String
	}
	return &s, nil
}
