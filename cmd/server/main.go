// VisionEdge Engine: video and image analytics orchestration.
//
// This is the main entry point for the engine server. It provides:
//   - Skill catalog (detection pipelines and their alert rules)
//   - Pipeline executor (sequential, cascade, parallel topologies)
//   - Stream supervisor (continuous analysis of video sources)
//   - Evidence path (alert stills, clips, and notifications)
//   - REST API

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/visionedge/engine/internal/config"
	"github.com/visionedge/engine/pkg/server"
)

func main() {
	// .env is optional, for local development
	godotenv.Load()

	cfg := config.Load()
	setupLogging(cfg.Log)

	log.Info().Str("version", cfg.Version).Msg("VisionEdge engine starting...")

	ctx := context.Background()
	srv, err := server.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}
	defer srv.ShutdownFunc(ctx)

	// Background retention sweep
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go srv.Janitor.Start(janitorCtx)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.Port),
		Handler:      srv.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
		srv.Close(shutdownCtx)
	}()

	log.Info().Int("port", srv.Port).Msg("VisionEdge engine is serving")

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// setupLogging configures zerolog for the console and, when a log file is
// configured, a size-rotated file as well.
func setupLogging(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	var out io.Writer = console
	if cfg.File != "" {
		out = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	log.Logger = log.Output(out)
}
