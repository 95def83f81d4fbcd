package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lamb-project/kb-server/internal/config"
	"github.com/lamb-project/kb-server/internal/middleware"
	"github.com/lamb-project/kb-server/internal/plugin"
	"github.com/lamb-project/kb-server/internal/repository"
	"github.com/lamb-project/kb-server/internal/service"
	"github.com/lamb-project/kb-server/internal/vectorstore"
)

func SetupRouter(cfg *config.Config, db *gorm.DB, vectors *vectorstore.Store) *gin.Engine {
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	// Health check stays unauthenticated
	r.GET("/health", healthCheck)

	// Initialize repositories
	collectionRepo := repository.NewCollectionRepository(db)
	fileRepo := repository.NewFileRepository(db)

	// Register plugins
	registry := plugin.NewRegistry()
	registry.RegisterIngestion(plugin.NewSimpleIngest())
	registry.RegisterIngestion(plugin.NewMarkdownIngest())
	registry.RegisterIngestion(plugin.NewURLIngest())
	registry.RegisterQuery(plugin.NewSimpleQuery())

	// Initialize services
	collectionSvc := service.NewCollectionService(collectionRepo, fileRepo, vectors, cfg)
	ingestionSvc := service.NewIngestionService(collectionSvc, fileRepo, vectors, registry, cfg)
	querySvc := service.NewQueryService(collectionSvc, vectors, registry, cfg)
	fileSvc := service.NewFileService(fileRepo, vectors)
	consistencySvc := service.NewConsistencyService(collectionRepo, vectors)

	// Initialize handlers
	collectionHandler := NewCollectionHandler(collectionSvc)
	ingestHandler := NewIngestHandler(ingestionSvc)
	queryHandler := NewQueryHandler(querySvc)
	fileHandler := NewFileHandler(fileSvc)
	pluginHandler := NewPluginHandler(registry)
	statusHandler := NewStatusHandler(consistencySvc)

	authed := r.Group("/", middleware.BearerAuth(cfg.APIToken))
	{
		collections := authed.Group("/collections")
		{
			collections.POST("", collectionHandler.Create)
			collections.GET("", collectionHandler.List)
			collections.GET("/:id", collectionHandler.Get)
			collections.PATCH("/:id", collectionHandler.Update)
			collections.DELETE("/:id", collectionHandler.Delete)
			collections.GET("/:id/files", fileHandler.ListByCollection)
			collections.POST("/:id/upload", ingestHandler.Upload)
			collections.POST("/:id/ingest", ingestHandler.Process)
			collections.POST("/:id/documents", ingestHandler.CommitDocuments)
			collections.POST("/:id/ingest-file", ingestHandler.IngestFile)
			collections.POST("/:id/ingest-url", ingestHandler.IngestURLs)
			collections.POST("/:id/query", queryHandler.Query)
		}

		files := authed.Group("/files")
		{
			files.GET("/:id", fileHandler.Get)
			files.PUT("/:id/status", fileHandler.ForceStatus)
			files.DELETE("/:id", fileHandler.Delete)
		}

		authed.GET("/ingestion/plugins", pluginHandler.ListIngestion)
		authed.GET("/query/plugins", pluginHandler.ListQuery)
		authed.GET("/database/status", statusHandler.DatabaseStatus)
	}

	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "kb-server",
	})
}
