package service

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/phamduchanh/docvec-be/types"
)

// ExtractService turns one rendered page image into an ordered sequence of
// typed regions. Layout classification and text recognition are delegated
// to the external vision service.
type ExtractService struct {
	vision           VisionService
	overlapThreshold float64
}

func NewExtractService(vision VisionService, overlapThreshold float64) *ExtractService {
	return &ExtractService{
		vision:           vision,
		overlapThreshold: overlapThreshold,
	}
}

// ExtractPage processes one rendered page image. A layout-classifier
// failure yields a page with an empty region list and ExtractError set; it
// never aborts the enclosing document.
func (s *ExtractService) ExtractPage(ctx context.Context, imagePath string, pageIndex int) types.Page {
	page := types.Page{Index: pageIndex}

	candidates, err := s.vision.DetectLayout(ctx, imagePath)
	if err != nil {
		log.Printf("Warning: layout detection failed for page %d: %v", pageIndex, err)
		page.ExtractError = err.Error()
		return page
	}

	candidates = resolveOverlaps(candidates, s.overlapThreshold)
	sortReadingOrder(candidates)

	// Figure fingerprints need the pixel data; decode the page image once.
	img := loadImage(imagePath)

	for _, cand := range candidates {
		switch cand.Kind {
		case types.RegionKindText, types.RegionKindTitle:
			text, err := s.vision.RecognizeText(ctx, imagePath, cand.BBox)
			if err != nil {
				log.Printf("Warning: text recognition failed on page %d: %v", pageIndex, err)
				continue
			}
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			page.Regions = append(page.Regions, types.Region{
				Kind:       types.RegionKindText,
				BBox:       cand.BBox,
				Confidence: cand.Confidence,
				Text:       text,
			})
		case types.RegionKindFigure:
			region := types.Region{
				Kind:       types.RegionKindFigure,
				BBox:       cand.BBox,
				Confidence: cand.Confidence,
			}
			if img != nil {
				region.Fingerprint = averageHash(img, cand.BBox)
			}
			page.Regions = append(page.Regions, region)
		case types.RegionKindTable:
			page.Regions = append(page.Regions, s.extractTable(ctx, imagePath, pageIndex, cand))
		}
	}
	return page
}

// extractTable attempts structured cell extraction and falls back to
// treating the region as unstructured text.
func (s *ExtractService) extractTable(ctx context.Context, imagePath string, pageIndex int, cand LayoutRegion) types.Region {
	cells, err := s.vision.ExtractTable(ctx, imagePath, cand.BBox)
	if err == nil {
		return types.Region{
			Kind:       types.RegionKindTable,
			BBox:       cand.BBox,
			Confidence: cand.Confidence,
			Cells:      cells,
		}
	}
	log.Printf("Warning: table extraction failed on page %d, treating as text: %v", pageIndex, err)

	text, err := s.vision.RecognizeText(ctx, imagePath, cand.BBox)
	if err != nil {
		log.Printf("Warning: table text fallback failed on page %d: %v", pageIndex, err)
	}
	return types.Region{
		Kind:       types.RegionKindText,
		BBox:       cand.BBox,
		Confidence: cand.Confidence,
		Text:       strings.TrimSpace(text),
	}
}

// resolveOverlaps drops the lower-confidence region of any pair whose boxes
// overlap above the threshold, so no page reports conflicting labels for
// the same area.
func resolveOverlaps(regions []LayoutRegion, threshold float64) []LayoutRegion {
	dropped := make([]bool, len(regions))
	for i := 0; i < len(regions); i++ {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < len(regions); j++ {
			if dropped[j] {
				continue
			}
			if intersectionOverUnion(regions[i].BBox, regions[j].BBox) < threshold {
				continue
			}
			if regions[i].Confidence >= regions[j].Confidence {
				dropped[j] = true
			} else {
				dropped[i] = true
				break
			}
		}
	}
	kept := regions[:0]
	for i, r := range regions {
		if !dropped[i] {
			kept = append(kept, r)
		}
	}
	return kept
}

// sortReadingOrder approximates reading order: top-to-bottom, then
// left-to-right. Boxes within one line band compare by x.
func sortReadingOrder(regions []LayoutRegion) {
	const lineBand = 20
	sort.SliceStable(regions, func(i, j int) bool {
		yi, yj := regions[i].BBox.Y, regions[j].BBox.Y
		if yi+lineBand < yj {
			return true
		}
		if yj+lineBand < yi {
			return false
		}
		return regions[i].BBox.X < regions[j].BBox.X
	})
}

func intersectionOverUnion(a, b types.BBox) float64 {
	ax2, ay2 := a.X+a.Width, a.Y+a.Height
	bx2, by2 := b.X+b.Width, b.Y+b.Height

	ix := min(ax2, bx2) - max(a.X, b.X)
	iy := min(ay2, by2) - max(a.Y, b.Y)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	intersection := float64(ix * iy)
	union := float64(a.Width*a.Height+b.Width*b.Height) - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func loadImage(imagePath string) image.Image {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil
	}
	return img
}

// averageHash computes a 64-bit perceptual fingerprint of the boxed area:
// the box is divided into an 8x8 grid, each bit is set when its cell's mean
// luminance is at or above the overall mean.
func averageHash(img image.Image, box types.BBox) uint64 {
	bounds := img.Bounds()
	x0 := max(box.X, bounds.Min.X)
	y0 := max(box.Y, bounds.Min.Y)
	x1 := min(box.X+box.Width, bounds.Max.X)
	y1 := min(box.Y+box.Height, bounds.Max.Y)
	if x1-x0 < 8 || y1-y0 < 8 {
		return 0
	}

	var cells [64]float64
	cellW := float64(x1-x0) / 8
	cellH := float64(y1-y0) / 8
	var total float64
	for cy := 0; cy < 8; cy++ {
		for cx := 0; cx < 8; cx++ {
			sx0 := x0 + int(float64(cx)*cellW)
			sy0 := y0 + int(float64(cy)*cellH)
			sx1 := x0 + int(float64(cx+1)*cellW)
			sy1 := y0 + int(float64(cy+1)*cellH)
			var sum, n float64
			for y := sy0; y < sy1; y++ {
				for x := sx0; x < sx1; x++ {
					r, g, b, _ := img.At(x, y).RGBA()
					sum += 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
					n++
				}
			}
			if n > 0 {
				cells[cy*8+cx] = sum / n
			}
			total += cells[cy*8+cx]
		}
	}
	mean := total / 64

	var hash uint64
	for i, v := range cells {
		if v >= mean {
			hash |= 1 << uint(i)
		}
	}
	return hash
}
