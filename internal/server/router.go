package server

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/debhub/debhub-backend/internal/handlers"
	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/middleware"
	"github.com/debhub/debhub-backend/internal/utils"
)

type RouterConfig struct {
	Log      *logger.Logger
	Batch    *handlers.BatchHandler
	Line     *handlers.LineHandler
	Document *handlers.DocumentHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if utils.GetEnv("APP_MODE", "development", cfg.Log) == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("debhub"))

	origins := strings.Split(utils.GetEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000", cfg.Log), ",")
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthcheck", handlers.Healthcheck)

	api := r.Group("/api/v1")
	api.Use(middleware.Auth(cfg.Log))
	{
		batches := api.Group("/batches")
		{
			batches.POST("", cfg.Batch.Create)
			batches.GET("", cfg.Batch.List)
			batches.GET("/:id", cfg.Batch.Get)
			batches.DELETE("/:id", cfg.Batch.Delete)
			batches.POST("/:id/process", cfg.Batch.Process)
			batches.GET("/:id/documents", cfg.Batch.ListDocuments)
			batches.GET("/:id/lines", cfg.Line.List)
			batches.PATCH("/:id/lines", cfg.Line.Update)
		}

		documents := api.Group("/documents")
		{
			documents.GET("", cfg.Document.List)
			documents.GET("/:id", cfg.Document.Get)
			documents.GET("/:id/download", cfg.Document.Download)
			documents.POST("/:id/approve", cfg.Document.Approve)
			documents.POST("/:id/export", cfg.Document.Export)
			documents.GET("/:id/links", cfg.Document.Links)
			documents.POST("/:id/links", cfg.Document.CreateLink)
		}
	}

	return r
}
