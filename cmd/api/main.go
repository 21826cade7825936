package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/mpr/internal/api"
	"github.com/your-org/mpr/internal/api/ws"
	"github.com/your-org/mpr/internal/config"
	"github.com/your-org/mpr/internal/models"
	"github.com/your-org/mpr/internal/notify"
	"github.com/your-org/mpr/internal/observability"
	"github.com/your-org/mpr/internal/queue"
	"github.com/your-org/mpr/internal/registry"
	"github.com/your-org/mpr/internal/storage"
	"github.com/your-org/mpr/internal/vision"
	"github.com/your-org/mpr/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging)

	slog.Info("starting MPR API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("apply schema", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Consume sighting events: persist and broadcast via WebSocket
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create sighting consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeSightings(ctx, "api-sightings", func(ctx context.Context, msg jetstream.Msg) error {
		var event models.SightingEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			return err
		}

		sighting := &models.Sighting{
			PersonID:   event.PersonID,
			SessionID:  event.SessionID,
			Score:      event.Score,
			Notified:   event.Notified,
			ClipKey:    event.ClipKey,
			DetectedAt: event.DetectedAt,
		}
		if err := db.CreateSighting(ctx, sighting); err != nil {
			slog.Error("store sighting", "error", err)
		} else {
			observability.SightingsStored.Inc()
		}

		hub.BroadcastSighting(&dto.WSSighting{
			Type:       "sighting",
			SessionID:  event.SessionID,
			PersonID:   event.PersonID,
			PersonName: event.PersonName,
			Score:      event.Score,
			Notified:   event.Notified,
			ClipKey:    event.ClipKey,
			DetectedAt: event.DetectedAt.Format(time.RFC3339),
		})

		return nil
	})
	if err != nil {
		slog.Warn("start sighting consumer", "error", err)
	}

	// Initialize ONNX Runtime for registration photo encoding and Search
	var embedFn func([]byte) ([]float32, error)

	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Warn("onnx runtime init failed — photo encoding and Search will be unavailable", "error", err)
	} else {
		engine, err := vision.NewEngine(cfg.Vision)
		if err != nil {
			slog.Warn("vision engine init failed — photo encoding and Search will be unavailable", "error", err)
		} else {
			embedFn = engine.EmbedImage
			defer engine.Close()
			defer ort.DestroyEnvironment()
			slog.Info("vision engine ready for API")
		}
	}

	mailer := notify.NewMailer(cfg.SMTP)
	registrySvc := registry.NewService(db, minioStore, mailer, embedFn)

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:         cfg.Server.APIKey,
		AdminAPIKey:    cfg.Server.AdminAPIKey,
		Registry:       registrySvc,
		DB:             db,
		MinIO:          minioStore,
		Producer:       producer,
		Hub:            hub,
		EmbedFn:        embedFn,
		MatchThreshold: cfg.Vision.MatchThreshold,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
