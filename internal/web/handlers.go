package web

import (
	"database/sql"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/snapstrip/internal/config"
	"github.com/hpungsan/snapstrip/internal/errors"
	"github.com/hpungsan/snapstrip/internal/ranking"
)

// Handlers contains HTTP route handlers for the dashboard.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
}

// HandleToday handles GET /today, the current day's ranking.
func (h *Handlers) HandleToday(w http.ResponseWriter, r *http.Request) {
	h.renderDay(w, r, ranking.DayOf(time.Now()), "today")
}

// HandleDay handles GET /days/{day}, a past day's ranking.
func (h *Handlers) HandleDay(w http.ResponseWriter, r *http.Request) {
	day := r.PathValue("day")
	if err := ranking.ValidateDay(day); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderDay(w, r, day, "days")
}

func (h *Handlers) renderDay(w http.ResponseWriter, r *http.Request, day, nav string) {
	entries, err := ranking.TopN(h.db, day)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data := DayPageData{
		PageData: PageData{
			Title:   "Strip " + day,
			Version: h.renderer.version,
			Nav:     nav,
		},
		Day:     day,
		Entries: make([]EntryView, len(entries)),
	}
	for i, e := range entries {
		data.Entries[i] = EntryView{
			Entry:    e,
			Rank:     i + 1,
			ImageURL: h.mediaURL(e.RenderPath()),
			Degraded: e.Degraded,
		}
		if e.Degraded {
			data.Degraded = true
		}
	}

	strip, err := ranking.GetStrip(h.db, day)
	switch {
	case err == nil:
		data.Strip = &StripView{Strip: strip, ImageURL: h.mediaURL(strip.Path)}
	case errors.Is(err, errors.ErrNotFound):
		// No strip yet today.
	default:
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "day", data)
}

// HandleDays handles GET /days, the history listing.
func (h *Handlers) HandleDays(w http.ResponseWriter, r *http.Request) {
	days, err := ranking.Days(h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "days", DaysPageData{
		PageData: PageData{
			Title:   "History",
			Version: h.renderer.version,
			Nav:     "days",
		},
		Days: days,
	})
}

// HandleConfig handles GET /config, the masked running configuration.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	masked, err := yaml.Marshal(h.cfg.Masked())
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(err))
		return
	}

	h.renderer.renderPage(w, "config", ConfigPageData{
		PageData: PageData{
			Title:   "Configuration",
			Version: h.renderer.version,
			Nav:     "config",
		},
		YAML: string(masked),
	})
}

// HandleMedia handles GET /media/{kind}/{name}, serving capture, stylized,
// and collage images out of the data directory. Only bare file names inside
// the known kind directories are served.
func (h *Handlers) HandleMedia(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	name := r.PathValue("name")

	var dir string
	switch kind {
	case "captures":
		dir = h.cfg.CapturesDir()
	case "stylized":
		dir = h.cfg.StylizedDir()
	case "collages":
		dir = h.cfg.CollagesDir()
	default:
		h.renderer.renderError(w, r, errors.NewNotFound(kind))
		return
	}

	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid media name"))
		return
	}

	http.ServeFile(w, r, filepath.Join(dir, name))
}

// mediaURL maps an on-disk image path to its /media/ route. Paths outside
// the data directory map to nothing.
func (h *Handlers) mediaURL(path string) string {
	dir := filepath.Dir(path)
	var kind string
	switch dir {
	case h.cfg.CapturesDir():
		kind = "captures"
	case h.cfg.StylizedDir():
		kind = "stylized"
	case h.cfg.CollagesDir():
		kind = "collages"
	default:
		return ""
	}
	return fmt.Sprintf("/media/%s/%s", kind, filepath.Base(path))
}
