package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamduchanh/docvec-be/database"
	"github.com/phamduchanh/docvec-be/types"
)

type fakeRenderer struct {
	pages []string
	err   error
}

func (f *fakeRenderer) RenderPages(ctx context.Context, filePath string, outDir string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

// docVision answers per page image path so individual pages can fail.
type docVision struct {
	layouts   map[string][]LayoutRegion
	texts     map[types.BBox]string
	failPages map[string]bool
}

func (f *docVision) DetectLayout(ctx context.Context, imagePath string) ([]LayoutRegion, error) {
	if f.failPages[imagePath] {
		return nil, errors.New("layout service down")
	}
	return f.layouts[imagePath], nil
}

func (f *docVision) RecognizeText(ctx context.Context, imagePath string, bbox types.BBox) (string, error) {
	text, ok := f.texts[bbox]
	if !ok {
		return "", fmt.Errorf("no text at %v", bbox)
	}
	return text, nil
}

func (f *docVision) ExtractTable(ctx context.Context, imagePath string, bbox types.BBox) ([][]string, error) {
	return nil, errors.New("no table structure found")
}

func tempPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0644))
	return path
}

func newTestDocumentService(t *testing.T, renderer PageRenderer, vision VisionService) (*DocumentService, database.VectorDatabase) {
	t.Helper()
	store, err := database.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	svc := NewDocumentService(
		renderer,
		NewExtractService(vision, 0.5),
		NewDedupeService(0.8),
		NewSynthesisService(nil, 6000, time.Second),
		NewEmbeddingService(nil, time.Second),
		store,
		2,
	)
	return svc, store
}

func TestProcessDocumentEndToEnd(t *testing.T) {
	boxA := box(10, 10, 100, 20)
	boxC := box(10, 40, 100, 20)

	vision := &docVision{
		layouts: map[string][]LayoutRegion{
			"p0.png": {{Kind: types.RegionKindText, BBox: boxA, Confidence: 0.9}},
			"p2.png": {{Kind: types.RegionKindText, BBox: boxC, Confidence: 0.9}},
		},
		texts: map[types.BBox]string{
			boxA: "first page content",
			boxC: "third page content",
		},
		failPages: map[string]bool{"p1.png": true},
	}
	renderer := &fakeRenderer{pages: []string{"p0.png", "p1.png", "p2.png"}}
	svc, store := newTestDocumentService(t, renderer, vision)

	result, err := svc.Process(context.Background(), tempPDF(t), types.ProcessOptions{
		Collection: "reports",
		Title:      "Quarterly",
		Tags:       []string{"finance"},
	}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, types.DocumentKindPDF, result.Kind)
	assert.Equal(t, 3, result.TotalPages)
	assert.Equal(t, 2, result.TextRegions)
	assert.Equal(t, []int{1}, result.FailedPages)
	assert.Equal(t, "charfreq", result.EmbeddingProvider)
	// The failed page yields no text unit; only two records stored.
	assert.Equal(t, 2, result.EmbeddedUnits)

	info, err := store.Info(context.Background(), "reports")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Records)

	matches, err := store.Search(context.Background(), "reports", mustEmbed(t, "first page content"), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "first page content", matches[0].Record.Text)
	assert.Equal(t, "Quarterly", matches[0].Record.Metadata["title"])
	assert.Equal(t, "finance", matches[0].Record.Metadata["tags"])
	assert.Equal(t, "0", matches[0].Record.Metadata["page"])
}

func mustEmbed(t *testing.T, text string) []float32 {
	t.Helper()
	vector, err := NewCharFreqEmbedder().Embed(context.Background(), text)
	require.NoError(t, err)
	return vector
}

func TestProcessRejectsMissingFile(t *testing.T) {
	svc, _ := newTestDocumentService(t, &fakeRenderer{}, &docVision{})

	_, err := svc.Process(context.Background(), "/nonexistent/report.pdf", types.ProcessOptions{Collection: "c"}, nil, nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestProcessRejectsUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))
	svc, _ := newTestDocumentService(t, &fakeRenderer{}, &docVision{})

	_, err := svc.Process(context.Background(), path, types.ProcessOptions{Collection: "c"}, nil, nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestProcessRequiresCollection(t *testing.T) {
	svc, _ := newTestDocumentService(t, &fakeRenderer{pages: []string{"p0.png"}}, &docVision{})

	_, err := svc.Process(context.Background(), tempPDF(t), types.ProcessOptions{}, nil, nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestProcessHonorsCancellation(t *testing.T) {
	renderer := &fakeRenderer{pages: []string{"p0.png"}}
	svc, _ := newTestDocumentService(t, renderer, &docVision{})

	_, err := svc.Process(context.Background(), tempPDF(t), types.ProcessOptions{Collection: "c"},
		nil, func() bool { return true })
	assert.ErrorIs(t, err, types.ErrTaskCancelled)
}

func TestProcessRenderFailure(t *testing.T) {
	renderer := &fakeRenderer{err: errors.New("pdftoppm not found")}
	svc, _ := newTestDocumentService(t, renderer, &docVision{})

	_, err := svc.Process(context.Background(), tempPDF(t), types.ProcessOptions{Collection: "c"}, nil, nil)
	assert.Error(t, err)
}
