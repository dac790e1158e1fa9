package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GrainArc/MopedMap/agol"
	"github.com/GrainArc/MopedMap/config"
	"github.com/GrainArc/MopedMap/logging"
	"github.com/GrainArc/MopedMap/models"
	"github.com/GrainArc/MopedMap/routers"
	"github.com/GrainArc/MopedMap/services"
	"github.com/GrainArc/MopedMap/views"
	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
)

func main() {
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		logging.Fatal("failed to parse flags", "error", err)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		logging.Fatal("failed to load config", "error", err)
	}
	level := logging.ParseLevel(cfg.Log.Level)
	logging.Setup(os.Stderr, level, cfg.Log.JSON)
	if level > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := models.InitDB(cfg.DB)
	if err != nil {
		logging.Fatal("failed to init database", "error", err)
	}
	ctx := context.Background()
	catalog, err := services.LoadComponentCatalog(ctx, db)
	if err != nil {
		logging.Fatal("failed to load component types", "error", err)
	}

	agol.UseFastJSON()
	cache := agol.NewQueryCache(cfg.Agol.Cache.Size, cfg.Agol.Cache.TTL)
	client := agol.NewClient(cfg.Agol.Endpoint, cfg.Agol.Timeout, cache)
	components := services.NewComponentService(db)

	base := services.EditorOptionsFromConfig(*cfg)
	base.Querier = client
	base.Catalog = catalog

	sessions := views.NewSessionHandler(components, base)
	router := routers.SetupRouter(routers.Handlers{
		Agol:      views.NewAgolHandler(services.NewNetworkService(client, cfg.Agol)),
		Component: views.NewComponentHandler(components, catalog, sessions),
		Session:   sessions,
	})

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: router,
	}
	go func() {
		logging.Info("server listening", "addr", cfg.Listen, "db", cfg.DB.Driver, "agol", cfg.Agol.Endpoint)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server stopped", "error", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cache.Cleanup()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("shutdown failed", "error", err)
	}
}
