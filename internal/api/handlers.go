package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"onair/internal/domain"
	"onair/internal/util"
)

var validate = validator.New()

type handler struct {
	station Station
	log     zerolog.Logger
	now     func() time.Time
}

// DaySchedule is one weekday's slots in start order.
type DaySchedule struct {
	Day   string            `json:"day"`
	Slots []domain.ShowSlot `json:"slots"`
}

// ScheduleView is the weekly grid as served to clients.
type ScheduleView struct {
	Days []DaySchedule `json:"days"`
	// Stale is set when the latest refresh failed and an older schedule is
	// being served.
	Stale bool `json:"stale,omitempty"`
}

type playlistQuery struct {
	Show string `validate:"required,max=200"`
	Date string `validate:"omitempty,datetime=2006-01-02"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) schedule(w http.ResponseWriter, r *http.Request) {
	week, err := h.station.FetchSchedule(r.Context())
	view := ScheduleView{Days: make([]DaySchedule, 0, len(week))}
	total := 0
	for d, slots := range week {
		if slots == nil {
			slots = []domain.ShowSlot{}
		}
		total += len(slots)
		view.Days = append(view.Days, DaySchedule{Day: time.Weekday(d).String(), Slots: slots})
	}
	if err != nil {
		if total == 0 {
			writeError(h.log, w, r, err)
			return
		}
		h.log.Warn().Err(err).Msg("serving stale schedule")
		view.Stale = true
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) current(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.station.CurrentShow(r.Context()))
}

func (h *handler) recent(w http.ResponseWriter, r *http.Request) {
	force := false
	if raw := r.URL.Query().Get("refresh"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(h.log, w, r, badRequest("refresh must be true or false"))
			return
		}
		force = v
	}
	groups, err := h.station.FetchRecentlyPlayed(r.Context(), force)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	if groups == nil {
		groups = []domain.ShowGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *handler) latestPlaylist(w http.ResponseWriter, r *http.Request) {
	page, err := h.station.LatestPlaylist(r.Context())
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handler) playlist(w http.ResponseWriter, r *http.Request) {
	q := playlistQuery{Show: showParam(r), Date: strings.TrimSpace(r.URL.Query().Get("date"))}
	if err := validate.Struct(q); err != nil {
		writeError(h.log, w, r, badRequest("date must be YYYY-MM-DD"))
		return
	}
	loc := h.station.Location()
	date := util.Midnight(h.now().In(loc))
	if q.Date != "" {
		d, err := util.ParseDate(q.Date, loc)
		if err != nil {
			writeError(h.log, w, r, badRequest(err.Error()))
			return
		}
		date = d
	}
	songs, err := h.station.FetchPlaylist(r.Context(), q.Show, date)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	if songs == nil {
		songs = []domain.ProcessedSong{}
	}
	show, ok := h.station.FindShow(q.Show)
	if !ok {
		show = domain.ShowSlot{Name: q.Show}
	}
	writeJSON(w, http.StatusOK, domain.PlaylistPage{
		Show:  show,
		Date:  util.FormatDate(date),
		Songs: songs,
	})
}

func (h *handler) previous(w http.ResponseWriter, r *http.Request) {
	prev, ok, err := h.station.FindPreviousShow(r.Context(), showParam(r))
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	if !ok {
		writeError(h.log, w, r, notFound("no earlier show today"))
		return
	}
	writeJSON(w, http.StatusOK, prev)
}

func (h *handler) archives(w http.ResponseWriter, r *http.Request) {
	list, err := h.station.Archives(r.Context(), showParam(r))
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	if list == nil {
		list = []domain.Archive{}
	}
	writeJSON(w, http.StatusOK, list)
}

func showParam(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if v, err := url.PathUnescape(raw); err == nil {
		raw = v
	}
	return strings.TrimSpace(raw)
}
