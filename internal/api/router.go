package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/mpr/internal/api/handlers"
	"github.com/your-org/mpr/internal/api/ws"
	"github.com/your-org/mpr/internal/auth"
	"github.com/your-org/mpr/internal/queue"
	"github.com/your-org/mpr/internal/registry"
	"github.com/your-org/mpr/internal/storage"
)

type RouterConfig struct {
	APIKey      string
	AdminAPIKey string
	Registry    *registry.Service
	DB          *storage.PostgresStore
	MinIO       *storage.MinIOStore
	Producer    *queue.Producer
	Hub         *ws.Hub
	// EmbedFn extracts a face embedding from image bytes (from vision engine).
	EmbedFn func(imageData []byte) ([]float32, error)
	// MatchThreshold is the configured similarity floor, shared with the
	// capture session.
	MatchThreshold float64
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey, cfg.AdminAPIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Persons
	personH := handlers.NewPersonHandler(cfg.Registry, cfg.DB, cfg.MinIO)
	personH.EmbedFn = cfg.EmbedFn
	personH.MatchThreshold = cfg.MatchThreshold
	v1.POST("/persons", personH.Register)
	v1.GET("/persons", personH.List)
	v1.GET("/persons/:id", personH.Get)
	v1.PUT("/persons/:id", personH.Update)
	v1.GET("/persons/:id/photo", personH.Photo)
	v1.GET("/persons/:id/locations", personH.Locations)
	v1.POST("/search", personH.Search)

	// Sightings
	sightingH := handlers.NewSightingHandler(cfg.DB, cfg.MinIO)
	v1.GET("/sightings", sightingH.List)
	v1.GET("/clips/*key", sightingH.Clip)

	// Sessions
	sessionH := handlers.NewSessionHandler(cfg.Producer)
	v1.POST("/sessions", sessionH.Start)
	v1.POST("/sessions/:id/stop", sessionH.Stop)

	// Admin: status, approval, deletion
	adminH := handlers.NewAdminHandler(cfg.Registry)
	admin := v1.Group("")
	admin.Use(auth.RequireAdmin())
	admin.PUT("/persons/:id/status", adminH.SetStatus)
	admin.PUT("/persons/:id/approval", adminH.SetApproval)
	admin.DELETE("/persons/:id", adminH.Delete)

	return r
}
