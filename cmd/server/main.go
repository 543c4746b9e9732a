package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/shared-sketch/backend/api/handlers"
	"github.com/shared-sketch/backend/internal/config"
	"github.com/shared-sketch/backend/internal/db"
	"github.com/shared-sketch/backend/internal/discovery"
	"github.com/shared-sketch/backend/internal/hub"
	"github.com/shared-sketch/backend/internal/journal"
	"github.com/shared-sketch/backend/internal/repository"
	"github.com/shared-sketch/backend/internal/session"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := config.ApplyLogging(cfg.Log); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	if err := run(*configPath, cfg); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func run(configPath string, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hubConfig := hub.Config{
		QueueSize:   cfg.Hub.QueueSize,
		SendTimeout: cfg.Hub.SendTimeout,
	}

	// Optional activity journal
	var journalHandler *handlers.JournalHandler
	dropped := func() uint64 { return 0 }
	recorderDone := make(chan struct{})
	if cfg.Journal.Enabled {
		database, err := db.InitDB(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("initialize journal: %w", err)
		}
		defer db.CloseDB()

		repo := repository.NewJournalRepository(database)
		recorder := journal.NewRecorder(repo, cfg.Journal.Buffer)
		go func() {
			defer close(recorderDone)
			recorder.Run(ctx)
		}()
		// The recorder flushes on ctx cancellation; wait before the DB closes.
		defer func() { <-recorderDone }()

		hubConfig.Observer = recorder
		dropped = recorder.Dropped
		journalHandler = handlers.NewJournalHandler(repo)
		log.WithField("path", cfg.Journal.Path).Info("journal enabled")
	}

	h := hub.New(hubConfig)
	go h.Run(ctx)

	if cfg.Discovery.MDNS {
		server, err := discovery.Advertise(discovery.Options{
			Instance: cfg.Discovery.Instance,
			Port:     cfg.Server.HTTPPort,
		})
		if err != nil {
			log.WithError(err).Warn("mDNS advertisement disabled")
		} else {
			defer server.Shutdown()
		}
	}

	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, cfg, func(next *config.Config) {
				if err := config.ApplyLogging(next.Log); err != nil {
					log.WithError(err).Warn("could not apply reloaded log settings")
				}
			})
			if err != nil {
				log.WithError(err).Warn("config watch stopped")
			}
		}()
	}

	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(handlers.AccessLog())
	r.Use(handlers.CORSMiddleware())

	r.GET("/health", handlers.Health)

	wsHandler := handlers.NewWebSocketHandler(ctx, h, session.Config{
		WriteWait:      cfg.Session.WriteWait,
		PongWait:       cfg.Session.PongWait,
		MaxMessageSize: cfg.Session.MaxMessageSize,
		OutboxSize:     cfg.Session.OutboxSize,
	})
	wsHandler.RegisterRoutes(r)

	canvasHandler := handlers.NewCanvasHandler(h, cfg.Export.MarginMM, dropped)
	canvasHandler.RegisterMetricsRoute(r)

	api := r.Group("/api")
	{
		canvasHandler.RegisterRoutes(api)
		if journalHandler != nil {
			journalHandler.RegisterRoutes(api)
		}
	}

	if fallback := handlers.StaticFallback(cfg.Server.StaticDir); fallback != nil {
		r.NoRoute(fallback)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: r,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Starting server on port %d", cfg.Server.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP shutdown incomplete")
	}

	select {
	case <-h.Done():
	case <-shutdownCtx.Done():
	}
	return nil
}
