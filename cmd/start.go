/*
Copyright © 2025 phamduchanh
*/
package cmd

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/phamduchanh/docvec-be/config"
	"github.com/phamduchanh/docvec-be/handler"
	"github.com/phamduchanh/docvec-be/repository"
	"github.com/phamduchanh/docvec-be/service"
	"github.com/phamduchanh/docvec-be/types"
)

// startServerCmd represents the start command
var startServerCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ingestion server",
	Long:  `Starts the HTTP server that accepts document uploads, tracks ingestion tasks and answers semantic search queries.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		logger, err := zap.NewProduction()
		if err != nil {
			log.Fatalf("Failed to create logger: %v", err)
		}
		defer logger.Sync()

		vectorDB, err := newVectorDatabase(cfg)
		if err != nil {
			log.Fatalf("Failed to open vector database: %v", err)
		}

		// The Mongo task archive is optional; without it task history only
		// lives in memory.
		var archive service.TaskArchive
		if cfg.MongoURI != "" {
			mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
			if err != nil {
				log.Fatalf("Failed to connect to MongoDB: %v", err)
			}
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := mongoClient.Ping(pingCtx, nil); err != nil {
				cancel()
				log.Fatalf("Failed to ping MongoDB: %v", err)
			}
			cancel()
			archive = repository.NewTaskRepo(mongoClient.Database("docvec"))
		}

		documentService := newDocumentService(cfg, vectorDB)
		taskService := service.NewTaskService(logger, documentService, archive, cfg.Pipeline.Workers, cfg.Pipeline.TaskTTL())
		defer taskService.Close()

		// Initialize handlers
		corsHandler := handler.NewCorsHandler()
		ingestHandler := handler.NewIngestHandler(taskService, cfg.UploadDir)
		taskHandler := handler.NewTaskHandler(taskService)
		searchHandler := handler.NewSearchHandler(vectorDB, newDocumentEmbedding(cfg))
		collectionHandler := handler.NewCollectionHandler(vectorDB)
		wsHandler := handler.NewWsHandler(taskService)

		// Setup Gin router
		router := gin.Default()
		router.Use(corsHandler.CorsMiddleware)

		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, types.DataResponse{
				Status:  true,
				Message: "ok",
				Data:    map[string]string{"backend": vectorDB.Backend()},
			})
		})

		apiV1 := router.Group("/api/v1")
		{
			apiV1.POST("/documents", ingestHandler.SubmitDocumentHandler)

			apiV1.GET("/tasks", taskHandler.ListTasksHandler)
			apiV1.GET("/tasks/:id/status", taskHandler.GetTaskStatusHandler)
			apiV1.GET("/tasks/:id/result", taskHandler.GetTaskResultHandler)
			apiV1.POST("/tasks/:id/cancel", taskHandler.CancelTaskHandler)
			apiV1.DELETE("/tasks/:id", taskHandler.ClearTaskHandler)

			apiV1.POST("/search", searchHandler.SearchHandler)

			apiV1.POST("/collections", collectionHandler.CreateCollectionHandler)
			apiV1.GET("/collections/:name", collectionHandler.GetCollectionInfoHandler)
			apiV1.DELETE("/collections/:name", collectionHandler.DeleteCollectionHandler)
			apiV1.GET("/collections/:name/backup", collectionHandler.BackupCollectionHandler)
			apiV1.POST("/collections/restore", collectionHandler.RestoreCollectionHandler)
		}

		router.GET("/ws/tasks", wsHandler.TaskEventsHandler)

		log.Printf("Starting server on port %s...\n", cfg.Port)
		if err := router.Run(":" + cfg.Port); err != nil {
			log.Fatal("Server error:", err)
		}
	},
}

func newDocumentEmbedding(cfg *config.Config) *service.EmbeddingService {
	return service.NewEmbeddingService(newEmbedderChain(cfg), time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second)
}

func init() {
	rootCmd.AddCommand(startServerCmd)
}
