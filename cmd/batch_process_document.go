/*
Copyright © 2025 phamduchanh
*/
package cmd

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phamduchanh/docvec-be/config"
	"github.com/phamduchanh/docvec-be/types"
	"github.com/phamduchanh/docvec-be/utils"
)

// batchProcessDocumentCmd represents the batch-process-document command
var batchProcessDocumentCmd = &cobra.Command{
	Use:   "batch-process-document",
	Short: "Process every document in a directory",
	Long: `Walks a directory, runs the ingestion pipeline for every PDF and slide
file found and reports per-file results. Files that fail are logged and
skipped; the batch keeps going.`,
	Run: func(cmd *cobra.Command, args []string) {
		directory, _ := cmd.Flags().GetString("directory")
		collection, _ := cmd.Flags().GetString("collection")
		tags, _ := cmd.Flags().GetStringArray("tags")

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		vectorDB, err := newVectorDatabase(cfg)
		if err != nil {
			log.Fatalf("Failed to open vector database: %v", err)
		}
		documentService := newDocumentService(cfg, vectorDB)

		entries, err := os.ReadDir(directory)
		if err != nil {
			log.Fatalf("Failed to read directory: %v", err)
		}

		processed, failed := 0, 0
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if ext != ".pdf" && ext != ".ppt" && ext != ".pptx" {
				continue
			}
			path := filepath.Join(directory, entry.Name())
			log.Printf("Processing %s", path)

			result, err := documentService.Process(context.Background(), path, types.ProcessOptions{
				Collection: collection,
				Title:      utils.GetFileNameWithoutExt(entry.Name()),
				Tags:       tags,
			}, nil, nil)
			if err != nil {
				log.Printf("Warning: %s failed: %v", path, err)
				failed++
				continue
			}
			log.Printf("Done %s: %d pages, %d units embedded via %s",
				path, result.TotalPages, result.EmbeddedUnits, result.EmbeddingProvider)
			processed++
		}
		log.Printf("Batch complete: %d processed, %d failed", processed, failed)
	},
}

func init() {
	rootCmd.AddCommand(batchProcessDocumentCmd)
	batchProcessDocumentCmd.Flags().StringP("directory", "d", "", "directory holding documents")
	batchProcessDocumentCmd.Flags().String("collection", "", "target collection")
	batchProcessDocumentCmd.Flags().StringArray("tags", nil, "tags stored in metadata")
	batchProcessDocumentCmd.MarkFlagRequired("directory")
	batchProcessDocumentCmd.MarkFlagRequired("collection")
}
