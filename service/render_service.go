package service

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/phamduchanh/docvec-be/types"
)

// PageRenderer turns a document file into one raster image per page, in
// page order.
type PageRenderer interface {
	RenderPages(ctx context.Context, filePath string, outDir string) ([]string, error)
}

// DetectKind maps a file extension to the document kind.
func DetectKind(filePath string) (types.DocumentKind, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return types.DocumentKindPDF, nil
	case ".ppt", ".pptx":
		return types.DocumentKindSlide, nil
	default:
		return "", fmt.Errorf("unsupported file type %q: %w", filepath.Ext(filePath), types.ErrInvalidInput)
	}
}

// PopplerRenderer renders with the poppler command line tools. Slide decks
// are first converted to PDF with a headless LibreOffice run.
type PopplerRenderer struct{}

func NewPopplerRenderer() *PopplerRenderer {
	return &PopplerRenderer{}
}

func (r *PopplerRenderer) RenderPages(ctx context.Context, filePath string, outDir string) ([]string, error) {
	kind, err := DetectKind(filePath)
	if err != nil {
		return nil, err
	}

	pdfPath := filePath
	if kind == types.DocumentKindSlide {
		pdfPath, err = r.convertToPDF(ctx, filePath, outDir)
		if err != nil {
			return nil, err
		}
	}

	totalPages, err := getNumPages(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	if totalPages == 0 {
		return nil, fmt.Errorf("document has no pages: %w", types.ErrInvalidInput)
	}

	convertCmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", "150", pdfPath, filepath.Join(outDir, "page"))
	if out, err := convertCmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %v: %s", err, strings.TrimSpace(string(out)))
	}

	pages, err := filepath.Glob(filepath.Join(outDir, "page-*.png"))
	if err != nil || len(pages) == 0 {
		return nil, fmt.Errorf("no page images produced for %s", filePath)
	}
	// pdftoppm zero-pads page numbers, so a lexical sort is page order.
	sort.Strings(pages)
	return pages, nil
}

// convertToPDF runs LibreOffice headless; the output file keeps the input
// base name with a .pdf extension.
func (r *PopplerRenderer) convertToPDF(ctx context.Context, filePath string, outDir string) (string, error) {
	cmd := exec.CommandContext(ctx, "libreoffice", "--headless", "--convert-to", "pdf", "--outdir", outDir, filePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("slide conversion failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	pdfPath := filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("slide conversion produced no output: %w", err)
	}
	return pdfPath, nil
}

var pdfinfoPagesRe = regexp.MustCompile(`Pages:\s+(\d+)`)

// getNumPages uses pdfinfo to get the total number of pages in a PDF file.
func getNumPages(ctx context.Context, pdfPath string) (int, error) {
	cmd := exec.CommandContext(ctx, "pdfinfo", pdfPath)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("error running pdfinfo: %v", err)
	}

	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		if matches := pdfinfoPagesRe.FindStringSubmatch(scanner.Text()); len(matches) == 2 {
			return strconv.Atoi(matches[1])
		}
	}

	return 0, fmt.Errorf("unable to determine page count from pdfinfo")
}
