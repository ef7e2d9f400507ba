package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/phamduchanh/docvec-be/types"
)

// LayoutRegion is one candidate region returned by the external layout
// classifier.
type LayoutRegion struct {
	Kind       types.RegionKind
	BBox       types.BBox
	Confidence float64
}

// VisionService is the boundary to the external layout-classification and
// text-recognition capabilities. Both are consumed as black-box services;
// this package never implements recognition itself.
type VisionService interface {
	DetectLayout(ctx context.Context, imagePath string) ([]LayoutRegion, error)
	RecognizeText(ctx context.Context, imagePath string, bbox types.BBox) (string, error)
	ExtractTable(ctx context.Context, imagePath string, bbox types.BBox) ([][]string, error)
}

// RemoteVisionService talks to the recognition server over HTTP with a
// bounded per-call timeout. Images travel base64-encoded in JSON bodies.
type RemoteVisionService struct {
	endpoint string
	client   *http.Client
}

func NewRemoteVisionService(endpoint string, timeout time.Duration) *RemoteVisionService {
	return &RemoteVisionService{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type layoutRequest struct {
	Image string `json:"image"`
}

type layoutResponse struct {
	Regions []struct {
		BBox       [4]int  `json:"bbox"`
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	} `json:"regions"`
}

type recognizeRequest struct {
	Image string `json:"image"`
	BBox  [4]int `json:"bbox"`
}

type recognizeResponse struct {
	Text string `json:"text"`
}

type tableResponse struct {
	Cells [][]string `json:"cells"`
}

func (s *RemoteVisionService) DetectLayout(ctx context.Context, imagePath string) ([]LayoutRegion, error) {
	image, err := encodeImage(imagePath)
	if err != nil {
		return nil, err
	}
	var resp layoutResponse
	if err := s.post(ctx, "/layout", layoutRequest{Image: image}, &resp); err != nil {
		return nil, err
	}

	regions := make([]LayoutRegion, 0, len(resp.Regions))
	for _, r := range resp.Regions {
		kind, ok := categoryToKind(r.Category)
		if !ok {
			continue // headers, footers and unknown categories are skipped
		}
		regions = append(regions, LayoutRegion{
			Kind:       kind,
			BBox:       bboxFromCorners(r.BBox),
			Confidence: r.Confidence,
		})
	}
	return regions, nil
}

func (s *RemoteVisionService) RecognizeText(ctx context.Context, imagePath string, bbox types.BBox) (string, error) {
	image, err := encodeImage(imagePath)
	if err != nil {
		return "", err
	}
	var resp recognizeResponse
	if err := s.post(ctx, "/ocr", recognizeRequest{Image: image, BBox: cornersFromBBox(bbox)}, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (s *RemoteVisionService) ExtractTable(ctx context.Context, imagePath string, bbox types.BBox) ([][]string, error) {
	image, err := encodeImage(imagePath)
	if err != nil {
		return nil, err
	}
	var resp tableResponse
	if err := s.post(ctx, "/table", recognizeRequest{Image: image, BBox: cornersFromBBox(bbox)}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Cells) == 0 {
		return nil, fmt.Errorf("no table structure found: %w", types.ErrServiceUnavailable)
	}
	return resp.Cells, nil
}

func (s *RemoteVisionService) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("vision call %s failed: %v: %w", path, err, types.ErrServiceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vision call %s returned %d: %w", path, resp.StatusCode, types.ErrServiceUnavailable)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("vision call %s returned malformed body: %w", path, types.ErrServiceUnavailable)
	}
	return nil
}

func encodeImage(imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", imagePath, types.ErrInvalidInput)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func categoryToKind(category string) (types.RegionKind, bool) {
	switch category {
	case "text":
		return types.RegionKindText, true
	case "title":
		return types.RegionKindTitle, true
	case "figure":
		return types.RegionKindFigure, true
	case "table":
		return types.RegionKindTable, true
	default:
		return "", false
	}
}

func bboxFromCorners(c [4]int) types.BBox {
	return types.BBox{X: c[0], Y: c[1], Width: c[2] - c[0], Height: c[3] - c[1]}
}

func cornersFromBBox(b types.BBox) [4]int {
	return [4]int{b.X, b.Y, b.X + b.Width, b.Y + b.Height}
}
