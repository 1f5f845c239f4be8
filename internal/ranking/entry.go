package ranking

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/snapstrip/internal/errors"
)

// Entry is one ranked frame for a calendar day.
type Entry struct {
	ID           string  `json:"id"`
	Day          string  `json:"day"` // YYYY-MM-DD
	Score        float64 `json:"score"`
	Degraded     bool    `json:"degraded"` // score came from the degraded random scorer
	FramePath    string  `json:"frame_path"`
	StylizedPath *string `json:"stylized_path,omitempty"`
	CapturedAt   int64   `json:"captured_at"` // unix seconds
	Clock        string  `json:"clock"`       // HH:MM capture label for the watermark
	CreatedAt    int64   `json:"created_at"`
	ArchivedAt   *int64  `json:"archived_at,omitempty"`
}

// RenderPath returns the stylized image when present, the raw frame otherwise.
// Style-transfer failure falls back to the original so the collage never
// stalls on one frame.
func (e *Entry) RenderPath() string {
	if e.StylizedPath != nil && *e.StylizedPath != "" {
		return *e.StylizedPath
	}
	return e.FramePath
}

// Strip records one assembled collage for a day.
type Strip struct {
	Day        string  `json:"day"`
	Path       string  `json:"path"`
	PhotoCount int     `json:"photo_count"`
	CreatedAt  int64   `json:"created_at"`
	PushedAt   *int64  `json:"pushed_at,omitempty"`
	HostedURL  *string `json:"hosted_url,omitempty"`
}

// DayOf formats t as a store day key.
func DayOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// ValidateDay checks that day is a YYYY-MM-DD date.
func ValidateDay(day string) error {
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return errors.NewInvalidRequest("day must be YYYY-MM-DD")
	}
	return nil
}

// newULID generates a new entry ID.
func newULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return id.String(), nil
}
