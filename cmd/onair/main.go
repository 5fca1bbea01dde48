package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"onair/internal/api"
	"onair/internal/cache"
	"onair/internal/cli"
	"onair/internal/config"
	"onair/internal/domain"
	"onair/internal/netx"
	"onair/internal/notify"
	"onair/internal/util"
)

var (
	stdout       io.Writer = os.Stdout
	stderr       io.Writer = os.Stderr
	loadConfigFn           = config.Load
	exitFn                 = cli.Exit
	newStationFn           = buildStation
	dialMQTTFn             = notify.DialMQTT
	newRedisFn             = cache.NewRedisClient
)

type loggerAPI interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Success(msg string)
	Failure(msg string)
	Zerolog() zerolog.Logger
}

type stationAPI interface {
	api.Station
	SubscribeCurrentShow(fn func(domain.CurrentShow)) notify.Subscription
	Start(ctx context.Context)
	Stop()
}

type stationFactory func(ctx context.Context, cfg config.Config, log loggerAPI) (stationAPI, func(), error)

const usage = `usage: onair [-c config.yaml] [command]

commands:
  serve                      run the HTTP API and current-show watcher (default)
  schedule                   print the weekly schedule
  now                        print the show on air
  recent [--refresh]         print recently played songs grouped by show
  playlist <show> [date]     print a show's playlist (date as YYYY-MM-DD)
  previous <show>            print the show that aired before <show> today
  archives <show>            print a show's recorded episodes`

func execute(ctx context.Context, argv []string, cfgLoader func(path string) (config.Config, error), build stationFactory) int {
	args := cli.ParseArgs(argv)
	boot := cli.NewLogger(stderr, "info", "console")

	resolvedCfg, err := filepath.Abs(args.ConfigPath)
	if err != nil {
		boot.Error(formatError(err))
		return 1
	}
	cfg, err := cfgLoader(resolvedCfg)
	if err != nil {
		boot.Error(formatError(err))
		return 1
	}
	log := cli.NewLogger(stderr, cfg.Log.Level, cfg.Log.Format)

	switch args.Command {
	case "serve", "schedule", "now", "recent", "playlist", "previous", "archives":
	case "help":
		_, _ = fmt.Fprintln(stdout, usage)
		return 0
	default:
		log.Error("unknown command: " + args.Command)
		_, _ = fmt.Fprintln(stderr, usage)
		return 1
	}

	st, cleanup, err := build(ctx, cfg, log)
	if err != nil {
		log.Error(formatError(err))
		return 1
	}
	defer cleanup()

	if args.Command == "serve" {
		return serve(ctx, cfg, st, log)
	}
	return runCommand(ctx, args, st, log)
}

func runCommand(ctx context.Context, args cli.Args, st stationAPI, log loggerAPI) int {
	param := func(i int) string {
		if i < len(args.Params) {
			return strings.TrimSpace(args.Params[i])
		}
		return ""
	}
	needShow := func() (string, bool) {
		show := param(0)
		if show == "" {
			log.Error(args.Command + ": missing show name")
			return "", false
		}
		return show, true
	}

	var (
		out any
		err error
	)
	switch args.Command {
	case "schedule":
		out, err = st.FetchSchedule(ctx)
	case "now":
		out = st.CurrentShow(ctx)
	case "recent":
		out, err = st.FetchRecentlyPlayed(ctx, args.Refresh)
	case "playlist":
		show, ok := needShow()
		if !ok {
			return 1
		}
		date := util.Midnight(time.Now().In(st.Location()))
		if raw := param(1); raw != "" {
			if date, err = util.ParseDate(raw, st.Location()); err != nil {
				log.Error(formatError(err))
				return 1
			}
		}
		out, err = st.FetchPlaylist(ctx, show, date)
	case "previous":
		show, ok := needShow()
		if !ok {
			return 1
		}
		prev, found, ferr := st.FindPreviousShow(ctx, show)
		if ferr == nil && !found {
			log.Warn("no earlier show today than " + show)
			return 0
		}
		out, err = prev, ferr
	case "archives":
		show, ok := needShow()
		if !ok {
			return 1
		}
		out, err = st.Archives(ctx, show)
	}
	if err != nil {
		log.Failure(args.Command + " -> " + formatError(err))
		return 2
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Error(formatError(err))
		return 1
	}
	_, _ = fmt.Fprintln(stdout, string(b))
	return 0
}

func serve(ctx context.Context, cfg config.Config, st stationAPI, log loggerAPI) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MQTT.Broker != "" {
		pub, closeMQTT, err := dialMQTTFn(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic, log.Zerolog())
		if err != nil {
			// The API is still useful without push updates.
			log.Warn("MQTT disabled: " + formatError(err))
		} else {
			sub := notify.Forward(st.SubscribeCurrentShow, pub)
			defer closeMQTT()
			defer sub.Unsubscribe()
		}
	}

	st.Start(ctx)
	defer st.Stop()

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewRouter(st, api.Options{
			RequestsPerSecond: cfg.Server.RequestsPerSecond,
			AllowedOrigins:    cfg.Server.AllowedOrigins,
			Logger:            log.Zerolog().With().Str("component", "api").Logger(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("Listening on " + cfg.Server.Addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed: " + formatError(err))
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	log.Info("Shutting down; waiting for in-flight requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown: " + formatError(err))
		return 1
	}
	log.Success("Server stopped")
	return 0
}

func buildStation(ctx context.Context, cfg config.Config, log loggerAPI) (stationAPI, func(), error) {
	zl := log.Zerolog()
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	net := netx.NewClient(netx.Options{
		Timeout: cfg.HTTP.Timeout,
		Retry: netx.RetryOptions{
			Retries:   cfg.HTTP.Retries,
			BaseDelay: cfg.HTTP.BaseDelay,
			MaxDelay:  cfg.HTTP.MaxDelay,
			OnRetry: func(attempt int, err error) {
				zl.Debug().Int("attempt", attempt).Err(err).Msg("retrying feed request")
			},
		},
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		UserAgent:         cfg.HTTP.UserAgent,
	})

	var songCache cache.Cache = cache.NewMemory()
	cleanup := func() {}
	if cfg.Cache.RedisAddr != "" {
		rdb, err := newRedisFn(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		songCache = cache.NewRedis(rdb, cfg.Cache.KeyPrefix)
		cleanup = func() { _ = rdb.Close() }
		log.Info("Song cache: redis at " + cfg.Cache.RedisAddr)
	}

	st := domain.NewStation(net, domain.StationOptions{
		ScheduleURL: cfg.Station.ScheduleURL,
		ArchiveURL:  cfg.Station.ArchiveURL,
		PlayLogURL:  cfg.Station.PlayLogURL,
		PlaylistURL: cfg.Station.PlaylistURL,
		Location:    loc,
		ScheduleTTL: cfg.Cache.ScheduleTTL,
		SongTTL:     cfg.Cache.SongTTL,
		Cache:       songCache,
		WatchSpec:   cfg.Watch.Spec,
		Logger:      zl,
	})
	return st, cleanup, nil
}

func main() {
	exitFn(execute(context.Background(), os.Args[1:], loadConfigFn, newStationFn))
}

func formatError(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
