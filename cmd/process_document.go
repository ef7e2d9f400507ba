/*
Copyright © 2025 phamduchanh
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/phamduchanh/docvec-be/config"
	"github.com/phamduchanh/docvec-be/types"
)

// processDocumentCmd represents the process-document command
var processDocumentCmd = &cobra.Command{
	Use:   "process-document",
	Short: "Process one document synchronously",
	Long: `Runs the full ingestion pipeline for a single PDF or slide file and
prints the result as JSON. Useful for scripted ingestion and debugging
without the HTTP server.`,
	Run: func(cmd *cobra.Command, args []string) {
		filePath, _ := cmd.Flags().GetString("file")
		collection, _ := cmd.Flags().GetString("collection")
		title, _ := cmd.Flags().GetString("title")
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

		progress := func(stage string, processed, total int) {
			if total > 0 {
				log.Printf("%s %d/%d", stage, processed, total)
			} else {
				log.Printf("%s", stage)
			}
		}

		result, err := documentService.Process(context.Background(), filePath, types.ProcessOptions{
			Collection: collection,
			Title:      title,
			Tags:       tags,
		}, progress, nil)
		if err != nil {
			log.Fatalf("Processing failed: %v", err)
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode result: %v", err)
		}
		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(processDocumentCmd)
	processDocumentCmd.Flags().StringP("file", "f", "", "path to the document")
	processDocumentCmd.Flags().String("collection", "", "target collection")
	processDocumentCmd.Flags().String("title", "", "document title stored in metadata")
	processDocumentCmd.Flags().StringArray("tags", nil, "tags stored in metadata")
	processDocumentCmd.MarkFlagRequired("file")
	processDocumentCmd.MarkFlagRequired("collection")
}
