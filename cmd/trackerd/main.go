package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	trackercfg "github.com/Adityaachaudhary/true-view-progress/internal/config"
	"github.com/Adityaachaudhary/true-view-progress/internal/events"
	"github.com/Adityaachaudhary/true-view-progress/internal/handlers"
	"github.com/Adityaachaudhary/true-view-progress/internal/kv"
	"github.com/Adityaachaudhary/true-view-progress/internal/platform/auth"
	"github.com/Adityaachaudhary/true-view-progress/internal/platform/config"
	"github.com/Adityaachaudhary/true-view-progress/internal/platform/httpserver"
	"github.com/Adityaachaudhary/true-view-progress/internal/platform/logging"
	"github.com/Adityaachaudhary/true-view-progress/internal/platform/natsconn"
	"github.com/Adityaachaudhary/true-view-progress/internal/platform/run"
	"github.com/Adityaachaudhary/true-view-progress/internal/playback"
	"github.com/Adityaachaudhary/true-view-progress/internal/tracker"
)

func main() {
	cfg := config.Load()
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	trackerCfg := trackercfg.Load()
	isProd := trackercfg.IsProd()

	store, err := kv.New(context.Background(), trackerCfg.RedisDSN, trackerCfg.DatabaseURL, isProd)
	if err != nil {
		log.Error("progress store", zap.Error(err))
		run.Exit(1)
	}
	log.Info("progress store initialised",
		zap.Bool("redis", trackerCfg.RedisDSN != ""),
		zap.Bool("postgres", trackerCfg.RedisDSN == "" && trackerCfg.DatabaseURL != ""),
	)

	pub, err := events.NewPublisher(trackerCfg.NATSURL, log)
	if err != nil {
		if isProd {
			log.Error("NATS is required in production", zap.Error(err))
			run.Exit(1)
		}
		log.Warn("NATS unavailable, progress events will not be published", zap.Error(err))
		pub, _ = events.NewPublisher("", log) // stub
	}

	trackers := tracker.NewRegistry(store, log, tracker.WithObserver(pub.Observer()))
	reg := playback.NewRegistry(trackers)

	r := chi.NewRouter()
	httpserver.SetupRouter(r)
	r.Route("/v1/videos/{video_id}", func(r chi.Router) {
		if trackerCfg.JWTSecret != "" {
			r.Use(auth.RequireUser(auth.JWTVerifier{Secret: []byte(trackerCfg.JWTSecret)}))
			// Reset is destructive; with auth enabled it needs the admin role.
			r.With(auth.RequireAdmin).Delete("/progress", handlers.ResetProgress(reg))
		} else {
			r.Delete("/progress", handlers.ResetProgress(reg))
		}
		r.Get("/progress", handlers.GetProgress(reg))
		r.Post("/events", handlers.PostEvent(reg))
		r.Put("/position", handlers.PutPosition(reg))
		r.Get("/progress/export", handlers.ExportProgress(reg))
		r.Post("/progress/import", handlers.ImportProgress(reg))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		if nc, err := natsconn.Connect(natsconn.Options{URL: trackerCfg.NATSURL}); err != nil {
			if isProd {
				return err
			}
			log.Warn("NATS unavailable, playback ingest disabled", zap.Error(err))
		} else {
			defer nc.Close()
			if err := events.StartPlaybackConsumer(ctx, nc, reg, log); err != nil {
				log.Warn("playback consumer not started", zap.Error(err))
			}
		}

		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
