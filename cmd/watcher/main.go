package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/mpr/internal/capture"
	"github.com/your-org/mpr/internal/config"
	"github.com/your-org/mpr/internal/geo"
	"github.com/your-org/mpr/internal/notify"
	"github.com/your-org/mpr/internal/observability"
	"github.com/your-org/mpr/internal/queue"
	"github.com/your-org/mpr/internal/storage"
	"github.com/your-org/mpr/internal/vision"
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

	slog.Info("starting MPR watcher", "device", cfg.Capture.Device)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
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

	// Vision engine is mandatory here: the watcher exists to match faces.
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("onnx runtime init", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	engine, err := vision.NewEngine(cfg.Vision)
	if err != nil {
		slog.Error("vision engine init", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	deps := capture.SessionDeps{
		Roster:    db,
		Locations: db,
		Finder:    engine,
		Locator:   geo.NewIPLocator(cfg.Geolocation),
		Notifier:  notify.NewMailer(cfg.SMTP),
		Publisher: producer,
		Clips:     minioStore,
		Muxer:     capture.FFmpegMuxer{},
	}

	newSource := func(device string) capture.FrameSource {
		return capture.NewCamera(device, cfg.Capture.FPS, cfg.Capture.FrameWidth)
	}

	manager := capture.NewManager(deps, newSource, cfg.Capture.Device,
		cfg.Capture.FPS, cfg.Capture.ClipSeconds, float32(cfg.Vision.MatchThreshold))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Listen for session start/stop commands from the API
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create control consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	sub, err := consumer.SubscribeControl(ctx, manager.HandleCommand)
	if err != nil {
		slog.Error("subscribe control subject", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sub.Unsubscribe() }()

	slog.Info("watcher ready, waiting for session commands")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down watcher...")
	cancel()
	manager.StopAll()

	slog.Info("watcher stopped")
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
