package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/phamduchanh/docvec-be/database"
	"github.com/phamduchanh/docvec-be/types"
)

// ProgressFunc reports pipeline progress; stage is a short human-readable
// label, processed/total count pages.
type ProgressFunc func(stage string, processed, total int)

// CancelledFunc is polled between pipeline stages.
type CancelledFunc func() bool

// DocumentService runs the full ingestion pipeline: render, extract,
// dedupe, synthesize, embed, store.
type DocumentService struct {
	renderer    PageRenderer
	extract     *ExtractService
	dedupe      *DedupeService
	synth       *SynthesisService
	embed       *EmbeddingService
	vectorDB    database.VectorDatabase
	pageWorkers int
}

func NewDocumentService(
	renderer PageRenderer,
	extract *ExtractService,
	dedupe *DedupeService,
	synth *SynthesisService,
	embed *EmbeddingService,
	vectorDB database.VectorDatabase,
	pageWorkers int,
) *DocumentService {
	if pageWorkers < 1 {
		pageWorkers = 1
	}
	return &DocumentService{
		renderer:    renderer,
		extract:     extract,
		dedupe:      dedupe,
		synth:       synth,
		embed:       embed,
		vectorDB:    vectorDB,
		pageWorkers: pageWorkers,
	}
}

// Process ingests one document end to end. progress and cancelled may be
// nil. Cancellation is honored at stage boundaries; a stage already running
// finishes first.
func (s *DocumentService) Process(ctx context.Context, filePath string, opts types.ProcessOptions, progress ProgressFunc, cancelled CancelledFunc) (*types.ProcessResult, error) {
	if progress == nil {
		progress = func(string, int, int) {}
	}
	if cancelled == nil {
		cancelled = func() bool { return false }
	}

	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("file not readable: %v: %w", err, types.ErrInvalidInput)
	}
	kind, err := DetectKind(filePath)
	if err != nil {
		return nil, err
	}
	if opts.Collection == "" {
		return nil, fmt.Errorf("collection is required: %w", types.ErrInvalidInput)
	}

	result := &types.ProcessResult{
		Source:     filePath,
		Kind:       kind,
		Collection: opts.Collection,
	}

	// Render.
	progress("rendering", 0, 0)
	outDir, err := os.MkdirTemp("", "docvec-pages-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(outDir)

	imagePaths, err := s.renderer.RenderPages(ctx, filePath, outDir)
	if err != nil {
		return nil, err
	}
	result.TotalPages = len(imagePaths)

	if cancelled() {
		return nil, types.ErrTaskCancelled
	}

	// Extract, page-parallel with the order restored by index.
	pages := s.extractPages(ctx, imagePaths, progress)

	if cancelled() {
		return nil, types.ErrTaskCancelled
	}

	// Dedupe figures across the whole document.
	progress("deduplicating", 0, 0)
	result.DedupedFigures = s.dedupe.Dedupe(pages)
	s.countRegions(pages, result)

	if cancelled() {
		return nil, types.ErrTaskCancelled
	}

	// One text unit per page, regions already in reading order.
	units := buildTextUnits(pages)

	// Synthesis is best effort; the document never fails on LLM errors.
	progress("summarizing", 0, 0)
	texts := make([]string, len(units))
	for i, unit := range units {
		texts[i] = unit.Text
	}
	synthesis := s.synth.Synthesize(ctx, texts)
	result.Summary = synthesis.Summary
	result.Keywords = synthesis.Keywords
	result.Warnings = append(result.Warnings, synthesis.Warnings...)
	for i := range units {
		units[i].Summary = synthesis.UnitSummaries[i]
		units[i].Source = filePath
	}

	if cancelled() {
		return nil, types.ErrTaskCancelled
	}

	// Embed the raw page text in one batch so all vectors share a provider.
	progress("embedding", 0, 0)
	vectors, provider, err := s.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	result.EmbeddingProvider = provider

	if cancelled() {
		return nil, types.ErrTaskCancelled
	}

	// Store. Insert failure is a warning so the extracted content and the
	// result survive a vector backend outage.
	progress("storing", 0, 0)
	records := buildRecords(units, vectors, provider, filePath, opts)
	if err := s.vectorDB.Insert(ctx, opts.Collection, records); err != nil {
		log.Printf("Warning: vector insert into %s failed: %v", opts.Collection, err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("vector insert failed: %v", err))
	} else {
		result.EmbeddedUnits = len(records)
	}

	return result, nil
}

func (s *DocumentService) extractPages(ctx context.Context, imagePaths []string, progress ProgressFunc) []types.Page {
	total := len(imagePaths)
	pages := make([]types.Page, total)

	var wg sync.WaitGroup
	var mu sync.Mutex
	processed := 0
	sem := make(chan struct{}, s.pageWorkers)

	for i, imagePath := range imagePaths {
		wg.Add(1)
		sem <- struct{}{}
		go func(index int, path string) {
			defer wg.Done()
			defer func() { <-sem }()
			pages[index] = s.extract.ExtractPage(ctx, path, index)
			mu.Lock()
			processed++
			progress("extracting", processed, total)
			mu.Unlock()
		}(i, imagePath)
	}
	wg.Wait()
	return pages
}

func (s *DocumentService) countRegions(pages []types.Page, result *types.ProcessResult) {
	for _, page := range pages {
		if page.ExtractError != "" {
			result.FailedPages = append(result.FailedPages, page.Index)
			result.Warnings = append(result.Warnings, fmt.Sprintf("page %d extraction failed: %s", page.Index, page.ExtractError))
		}
		for _, region := range page.Regions {
			switch region.Kind {
			case types.RegionKindText, types.RegionKindTitle:
				result.TextRegions++
			case types.RegionKindFigure:
				if !region.Duplicate {
					result.FigureRegions++
				}
			case types.RegionKindTable:
				result.TableRegions++
			}
		}
	}
}

// buildTextUnits concatenates each page's text content in reading order.
// Table cells are flattened row by row, tab-separated. Pages without text
// still get a unit so unit indexes stay aligned with page indexes.
func buildTextUnits(pages []types.Page) []types.TextUnit {
	units := make([]types.TextUnit, len(pages))
	for i, page := range pages {
		var parts []string
		for _, region := range page.Regions {
			switch region.Kind {
			case types.RegionKindText, types.RegionKindTitle:
				if region.Text != "" {
					parts = append(parts, region.Text)
				}
			case types.RegionKindTable:
				if table := flattenTable(region.Cells); table != "" {
					parts = append(parts, table)
				}
			}
		}
		units[i] = types.TextUnit{
			Text:      strings.Join(parts, "\n"),
			PageIndex: page.Index,
		}
	}
	return units
}

func flattenTable(cells [][]string) string {
	var rows []string
	for _, row := range cells {
		rows = append(rows, strings.Join(row, "\t"))
	}
	return strings.Join(rows, "\n")
}

func buildRecords(units []types.TextUnit, vectors [][]float32, provider, source string, opts types.ProcessOptions) []database.EmbeddingRecord {
	records := make([]database.EmbeddingRecord, 0, len(units))
	for i, unit := range units {
		if strings.TrimSpace(unit.Text) == "" {
			continue
		}
		metadata := map[string]string{
			"source": source,
			"page":   strconv.Itoa(unit.PageIndex),
		}
		if opts.Title != "" {
			metadata["title"] = opts.Title
		}
		if len(opts.Tags) > 0 {
			metadata["tags"] = strings.Join(opts.Tags, ",")
		}
		if unit.Summary != "" {
			metadata["summary"] = unit.Summary
		}
		records = append(records, database.EmbeddingRecord{
			Text:      unit.Text,
			Vector:    vectors[i],
			Provider:  provider,
			Metadata:  metadata,
			CreatedAt: time.Now().Unix(),
		})
	}
	return records
}
