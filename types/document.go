package types

// DocumentKind distinguishes page-paginated documents from slide decks.
type DocumentKind string

const (
	DocumentKindPDF   DocumentKind = "pdf"
	DocumentKindSlide DocumentKind = "slide"
)

// RegionKind classifies a sub-area of a rendered page image.
type RegionKind string

const (
	RegionKindText   RegionKind = "text"
	RegionKindTitle  RegionKind = "title"
	RegionKindFigure RegionKind = "figure"
	RegionKindTable  RegionKind = "table"
)

// BBox is a bounding box in source-image pixel coordinates.
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Region is one classified area of a page or slide image.
// Text regions carry the recognized string, figure regions carry a
// perceptual fingerprint used for deduplication, table regions carry
// the extracted cell grid.
type Region struct {
	Kind        RegionKind `json:"kind"`
	BBox        BBox       `json:"bbox"`
	Confidence  float64    `json:"confidence"`
	Text        string     `json:"text,omitempty"`
	Fingerprint uint64     `json:"fingerprint,omitempty"`
	Cells       [][]string `json:"cells,omitempty"`
	Duplicate   bool       `json:"duplicate,omitempty"`
}

// Page holds the ordered regions extracted from one rendered page or slide.
// Index is 0-based; page order is significant for summary coherence.
type Page struct {
	Index   int      `json:"index"`
	Regions []Region `json:"regions"`
	// ExtractError records a per-page layout failure. The page stays in the
	// document with an empty region list.
	ExtractError string `json:"extract_error,omitempty"`
}

// TextUnit is the granule submitted for embedding, one per page/slide.
// PageIndex is a back-reference only, never an ownership edge.
type TextUnit struct {
	Text      string `json:"text"`
	Summary   string `json:"summary,omitempty"`
	Source    string `json:"source"`
	PageIndex int    `json:"page_index"`
}

// ProcessOptions are the caller-supplied knobs for one document run.
type ProcessOptions struct {
	Collection string   `json:"collection"`
	Title      string   `json:"title,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// ProcessResult is the structured outcome of one document run.
// Sub-stage failures degrade individual fields instead of failing the run.
type ProcessResult struct {
	Source            string       `json:"source"`
	Kind              DocumentKind `json:"kind"`
	Collection        string       `json:"collection"`
	TotalPages        int          `json:"total_pages"`
	TextRegions       int          `json:"text_regions"`
	FigureRegions     int          `json:"figure_regions"`
	TableRegions      int          `json:"table_regions"`
	DedupedFigures    int          `json:"deduped_figures"`
	FailedPages       []int        `json:"failed_pages,omitempty"`
	Summary           string       `json:"summary,omitempty"`
	Keywords          []string     `json:"keywords,omitempty"`
	EmbeddingProvider string       `json:"embedding_provider,omitempty"`
	EmbeddedUnits     int          `json:"embedded_units"`
	Warnings          []string     `json:"warnings,omitempty"`
}
