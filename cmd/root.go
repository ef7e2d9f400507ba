/*
Copyright © 2025 phamduchanh
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/phamduchanh/docvec-be/config"
	"github.com/phamduchanh/docvec-be/database"
	"github.com/phamduchanh/docvec-be/service"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docvec-be",
	Short: "Document-to-vector ingestion backend",
	Long: `docvec-be ingests PDF and slide documents: it renders pages, extracts
layout regions through an external vision service, deduplicates repeated
figures, summarizes content with an LLM and stores embeddings in a local
or Weaviate vector collection.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config/config.yaml", "config file")
}

// newVectorDatabase picks the backend the config names.
func newVectorDatabase(cfg *config.Config) (database.VectorDatabase, error) {
	switch cfg.VectorBackend {
	case "weaviate":
		return database.NewWeaviateStore(cfg.WeaviateStoreConfig)
	case "local":
		return database.NewLocalStore(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

// newAIService builds the completion backend, or returns nil when no
// provider is configured; synthesis then degrades to warnings.
func newAIService(cfg *config.Config) service.AIService {
	switch cfg.LLM.Provider {
	case "openai":
		return service.NewOpenAIService(cfg.LLM.BaseURL, cfg.LLM.OpenAIAPIKey, cfg.LLM.Model)
	case "gemini":
		gemini, err := service.NewGeminiService(context.Background(), cfg.LLM.GeminiAPIKey, cfg.LLM.Model)
		if err != nil {
			log.Printf("Warning: Gemini backend unavailable: %v", err)
			return nil
		}
		return gemini
	default:
		return nil
	}
}

func newEmbedderChain(cfg *config.Config) []service.Embedder {
	timeout := time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second
	var chain []service.Embedder
	for _, name := range cfg.Embedding.Providers {
		switch name {
		case "openai":
			chain = append(chain, service.NewOpenAIEmbedder(cfg.LLM.BaseURL, cfg.LLM.OpenAIAPIKey, cfg.Embedding.OpenAIModel))
		case "ollama":
			chain = append(chain, service.NewOllamaEmbedder(cfg.Embedding.OllamaEndpoint, cfg.Embedding.OllamaModel, timeout))
		case "charfreq":
			chain = append(chain, service.NewCharFreqEmbedder())
		default:
			log.Printf("Warning: unknown embedding provider %q skipped", name)
		}
	}
	return chain
}

// newDocumentService wires the full ingestion pipeline from the config.
func newDocumentService(cfg *config.Config, vectorDB database.VectorDatabase) *service.DocumentService {
	vision := service.NewRemoteVisionService(cfg.Vision.Endpoint, time.Duration(cfg.Vision.TimeoutSeconds)*time.Second)
	extract := service.NewExtractService(vision, cfg.Pipeline.OverlapThreshold)
	dedupe := service.NewDedupeService(cfg.Pipeline.DedupeThreshold)
	synth := service.NewSynthesisService(newAIService(cfg), cfg.LLM.MaxPromptChars, time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)
	embed := service.NewEmbeddingService(newEmbedderChain(cfg), time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second)

	return service.NewDocumentService(
		service.NewPopplerRenderer(),
		extract,
		dedupe,
		synth,
		embed,
		vectorDB,
		cfg.Pipeline.PageWorkers,
	)
}
