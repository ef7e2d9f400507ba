package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/phamduchanh/docvec-be/types"
)

// Embedder converts text into a fixed-length numeric vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingService tries an ordered provider chain; the first provider to
// return a well-formed vector wins. The char-frequency tier is always
// appended so the chain can never fully fail.
type EmbeddingService struct {
	chain   []Embedder
	timeout time.Duration
}

func NewEmbeddingService(chain []Embedder, timeout time.Duration) *EmbeddingService {
	hasFallback := false
	for _, e := range chain {
		if _, ok := e.(*CharFreqEmbedder); ok {
			hasFallback = true
		}
	}
	if !hasFallback {
		chain = append(chain, NewCharFreqEmbedder())
	}
	return &EmbeddingService{chain: chain, timeout: timeout}
}

// Embed returns the vector and the name of the producing provider.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, string, error) {
	vectors, provider, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, "", err
	}
	return vectors[0], provider, nil
}

// EmbedBatch embeds all texts with one provider so every vector in the
// batch has the same length. A provider failing or returning malformed
// output anywhere in the batch discards the batch and moves down the chain.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, string, error) {
	var lastErr error
	for _, embedder := range s.chain {
		vectors, err := s.tryProvider(ctx, embedder, texts)
		if err != nil {
			log.Printf("Warning: embedding provider %s failed: %v", embedder.Name(), err)
			lastErr = err
			continue
		}
		return vectors, embedder.Name(), nil
	}
	// Unreachable with the char-frequency tier in the chain.
	return nil, "", fmt.Errorf("all embedding providers failed: %w", lastErr)
}

// EmbedForDimension embeds with the chain provider whose vector length
// matches an existing collection, so searches stay comparable with the
// vectors stored at ingestion time.
func (s *EmbeddingService) EmbedForDimension(ctx context.Context, text string, dimension int) ([]float32, string, error) {
	for _, embedder := range s.chain {
		if embedder.Dimension() != dimension {
			continue
		}
		vectors, err := s.tryProvider(ctx, embedder, []string{text})
		if err != nil {
			return nil, "", err
		}
		return vectors[0], embedder.Name(), nil
	}
	return nil, "", fmt.Errorf("no embedding provider with dimension %d: %w", dimension, types.ErrDimensionMismatch)
}

func (s *EmbeddingService) tryProvider(ctx context.Context, embedder Embedder, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		vector, err := embedder.Embed(callCtx, text)
		cancel()
		if err != nil {
			return nil, err
		}
		if err := validateVector(vector, embedder.Dimension()); err != nil {
			return nil, err
		}
		vectors = append(vectors, vector)
	}
	return vectors, nil
}

// validateVector rejects partial and non-finite provider output; malformed
// vectors count as provider failure.
func validateVector(vector []float32, dimension int) error {
	if len(vector) != dimension {
		return fmt.Errorf("provider returned %d values, expected %d: %w",
			len(vector), dimension, types.ErrServiceUnavailable)
	}
	for _, v := range vector {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("provider returned non-finite value: %w", types.ErrServiceUnavailable)
		}
	}
	return nil
}

// OpenAIEmbedder calls the OpenAI embeddings API (or a compatible server).
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

const openAIEmbeddingDimension = 1536

func NewOpenAIEmbedder(baseURL, apiKey, model string) *OpenAIEmbedder {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (e *OpenAIEmbedder) Name() string   { return "openai" }
func (e *OpenAIEmbedder) Dimension() int { return openAIEmbeddingDimension }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding failed: %v: %w", err, types.ErrServiceUnavailable)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embedding returned no data: %w", types.ErrServiceUnavailable)
	}
	return resp.Data[0].Embedding, nil
}

// OllamaEmbedder calls a local Ollama server. The default model is a
// BGE-large variant with 1024-dimensional output.
type OllamaEmbedder struct {
	endpoint string
	model    string
	client   *http.Client
}

const ollamaEmbeddingDimension = 1024

func NewOllamaEmbedder(endpoint, model string, timeout time.Duration) *OllamaEmbedder {
	return &OllamaEmbedder{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

func (e *OllamaEmbedder) Name() string   { return "ollama" }
func (e *OllamaEmbedder) Dimension() int { return ollamaEmbeddingDimension }

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(map[string]string{
		"model":  e.model,
		"prompt": text,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embedding failed: %v: %w", err, types.ErrServiceUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embedding returned %d: %w", resp.StatusCode, types.ErrServiceUnavailable)
	}

	var body struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("ollama embedding returned malformed body: %w", types.ErrServiceUnavailable)
	}
	return body.Embedding, nil
}

// CharFreqEmbedder is the always-available fallback tier: a deterministic,
// dependency-free character-frequency encoding over a-z and 0-9,
// L2-normalized. It never fails, which guarantees the chain never fails.
type CharFreqEmbedder struct{}

const charFreqDimension = 36

func NewCharFreqEmbedder() *CharFreqEmbedder { return &CharFreqEmbedder{} }

func (e *CharFreqEmbedder) Name() string   { return "charfreq" }
func (e *CharFreqEmbedder) Dimension() int { return charFreqDimension }

func (e *CharFreqEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vector := make([]float32, charFreqDimension)
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z':
			vector[r-'a']++
		case r >= 'A' && r <= 'Z':
			vector[r-'A']++
		case r >= '0' && r <= '9':
			vector[26+r-'0']++
		}
	}
	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vector {
			vector[i] = float32(float64(vector[i]) / norm)
		}
	}
	return vector, nil
}
