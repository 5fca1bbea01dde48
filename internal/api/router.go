// Package api serves the station engine over HTTP for the web player.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"onair/internal/domain"
)

// Station is the part of domain.Station the API needs.
type Station interface {
	Location() *time.Location
	FetchSchedule(ctx context.Context) (domain.WeekSchedule, error)
	CurrentShow(ctx context.Context) domain.CurrentShow
	FetchRecentlyPlayed(ctx context.Context, force bool) ([]domain.ShowGroup, error)
	FetchPlaylist(ctx context.Context, showName string, date time.Time) ([]domain.ProcessedSong, error)
	FindShow(name string) (domain.ShowSlot, bool)
	LatestPlaylist(ctx context.Context) (domain.PlaylistPage, error)
	FindPreviousShow(ctx context.Context, currentShow string) (domain.PreviousShow, bool, error)
	Archives(ctx context.Context, showName string) ([]domain.Archive, error)
}

// Options configures the router.
type Options struct {
	// RequestsPerSecond limits each client IP; 0 disables limiting.
	RequestsPerSecond int
	AllowedOrigins    []string
	Logger            zerolog.Logger
}

// NewRouter mounts every endpoint on a chi router.
func NewRouter(st Station, opts Options) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if opts.RequestsPerSecond > 0 {
		r.Use(httprate.LimitByIP(opts.RequestsPerSecond, time.Second))
	}

	h := &handler{station: st, log: opts.Logger, now: time.Now}
	r.Get("/healthz", h.health)
	r.Get("/schedule", h.schedule)
	r.Get("/now", h.current)
	r.Get("/recent", h.recent)
	r.Get("/playlist/latest", h.latestPlaylist)
	r.Route("/shows/{name}", func(r chi.Router) {
		r.Get("/playlist", h.playlist)
		r.Get("/previous", h.previous)
		r.Get("/archives", h.archives)
	})
	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("took", time.Since(start)).
				Msg("http request")
		})
	}
}
