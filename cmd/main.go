package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/debhub/debhub-backend/internal/db"
	"github.com/debhub/debhub-backend/internal/enrichment"
	"github.com/debhub/debhub-backend/internal/extraction"
	"github.com/debhub/debhub-backend/internal/handlers"
	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/observability"
	"github.com/debhub/debhub-backend/internal/platform/gcp"
	"github.com/debhub/debhub-backend/internal/platform/openai"
	"github.com/debhub/debhub-backend/internal/platform/pdftools"
	"github.com/debhub/debhub-backend/internal/repos"
	"github.com/debhub/debhub-backend/internal/server"
	"github.com/debhub/debhub-backend/internal/services"
	"github.com/debhub/debhub-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	ctx := context.Background()
	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "debhub",
		Environment: utils.GetEnv("APP_MODE", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
	})
	if shutdownOtel != nil {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOtel(sctx)
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	batchRepo := repos.NewBatchRepo(thePG, log)
	documentRepo := repos.NewDocumentRepo(thePG, log)
	lineRepo := repos.NewLineRepo(thePG, log)
	linkRepo := repos.NewDocumentLinkRepo(thePG, log)
	referenceRepo := repos.NewReferenceRepo(thePG, log)
	auditRepo := repos.NewAuditLogRepo(thePG, log)

	// Platform clients
	log.Info("Setting up platform clients from main...")
	bucketService, err := gcp.NewBucketService(log)
	if err != nil {
		log.Error("Could not init BucketService", "error", err)
		os.Exit(1)
	}
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}
	pdfTools := pdftools.New(log)

	strategyName := utils.GetEnv("EXTRACTION_STRATEGY", extraction.StrategyVision, log)
	var docaiClient gcp.Document
	if strategyName == extraction.StrategyOCR {
		docaiClient, err = gcp.NewDocument(log)
		if err != nil {
			log.Error("Could not init Document AI client", "error", err)
			os.Exit(1)
		}
		defer docaiClient.Close()
	}
	strategy, err := extraction.NewStrategy(strategyName, log, openaiClient, docaiClient, bucketService, pdfTools)
	if err != nil {
		log.Error("Could not build extraction strategy", "error", err)
		os.Exit(1)
	}
	extractor := extraction.NewOrchestrator(log, strategy, utils.GetEnv("DEFAULT_CURRENCY", "EUR", log))

	// Enrichment cascade
	cascade := enrichment.NewCascade(log,
		enrichment.NewReferenceResolver(referenceRepo),
		enrichment.NewCorrectionResolver(referenceRepo),
		enrichment.NewModelResolver(openaiClient),
		enrichment.NewExtractedResolver(),
	)

	// Services
	log.Info("Setting up services from main...")
	enrichmentService := services.NewEnrichmentService(thePG, log, cascade, lineRepo)
	batchService := services.NewBatchService(thePG, log, bucketService, batchRepo, documentRepo, lineRepo)
	processService := services.NewProcessService(thePG, log, bucketService, extractor, enrichmentService, batchRepo, documentRepo, lineRepo, linkRepo)
	validationService := services.NewValidationService(thePG, log, batchRepo, documentRepo, lineRepo, referenceRepo, auditRepo)
	documentService := services.NewDocumentService(log, bucketService, documentRepo, linkRepo)

	// Handlers
	log.Info("Setting up handlers from main...")
	batchHandler := handlers.NewBatchHandler(log, batchService, processService)
	lineHandler := handlers.NewLineHandler(log, validationService)
	documentHandler := handlers.NewDocumentHandler(log, documentService, validationService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		Log:      log,
		Batch:    batchHandler,
		Line:     lineHandler,
		Document: documentHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
