// Package server is the composition root for the vision engine. It wires
// the skill catalog, pipeline executor, evidence path, stream supervisor,
// and HTTP API into a ready-to-serve Server.
//
// Usage:
//
//	srv, err := server.New(ctx, config.Load())
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/visionedge/engine/internal/api"
	"github.com/visionedge/engine/internal/api/handlers"
	"github.com/visionedge/engine/internal/config"
	"github.com/visionedge/engine/internal/evidence"
	"github.com/visionedge/engine/internal/inference"
	"github.com/visionedge/engine/internal/notify"
	"github.com/visionedge/engine/internal/pipeline"
	"github.com/visionedge/engine/internal/retention"
	"github.com/visionedge/engine/internal/skill"
	"github.com/visionedge/engine/internal/storage"
	"github.com/visionedge/engine/internal/stream"
	"github.com/visionedge/engine/internal/telemetry"
	"github.com/visionedge/engine/internal/video"
	"github.com/visionedge/engine/internal/vision"
)

// janitorInterval is how often the retention sweep runs.
const janitorInterval = time.Hour

// Server holds the initialized vision engine.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Streams is the session supervisor, exposed for graceful shutdown.
	Streams *stream.Manager

	// Janitor prunes expired evidence; run Janitor.Start in a goroutine.
	Janitor *retention.Janitor

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc flushes telemetry on graceful shutdown.
	ShutdownFunc func(context.Context) error

	publisher notify.Publisher
}

// New initializes all engine components and returns a ready Server.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	catalog := skill.NewBuiltinCatalog(skill.AlwaysInRegion)
	log.Info().Int("skills", catalog.Count()).Msg("skill catalog loaded")

	backend := inference.NewHTTPBackend(cfg.Inference.BaseURL, cfg.Inference.Namespace)
	executor := pipeline.NewExecutor(catalog, backend)

	store, err := storage.NewLocalStore(cfg.Evidence.Dir, cfg.Evidence.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("init evidence store: %w", err)
	}

	publisher, err := notify.NewRedisPublisher(ctx, cfg.Notify.RedisAddr, cfg.Notify.RedisPassword, cfg.Notify.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	recorder := evidence.NewRecorder(store, publisher, video.MP4Encoder{}, cfg.Notify.Topic)
	streams := stream.NewManager(catalog, executor, recorder, video.OpenSource, cfg.Stream.FrameInterval, cfg.Stream.ChunkDuration)
	svc := vision.NewService(catalog, executor, recorder, streams)

	janitor := retention.NewJanitor(store.Root(), cfg.Evidence.RetentionDays, janitorInterval)

	router := api.NewRouter(cfg, handlers.New(svc), cfg.Evidence.Dir)

	return &Server{
		Handler:      router,
		Streams:      streams,
		Janitor:      janitor,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
		publisher:    publisher,
	}, nil
}

// Close stops all stream sessions and releases the notification client.
func (s *Server) Close(ctx context.Context) error {
	if err := s.Streams.StopAll(ctx); err != nil {
		log.Warn().Err(err).Msg("stream shutdown incomplete")
	}
	return s.publisher.Close()
}
