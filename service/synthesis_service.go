package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

const (
	promptUnitSummary = "Summarize the following page content in two or three sentences. Keep technical terms intact.\n\n%s"
	promptDocSummary  = "The following are per-page summaries of one document, in page order. Write a single concise summary of the whole document.\n\n%s"
	promptKeywords    = "Extract up to 10 keywords from the following document content, ranked by importance, one per line.\n\n%s"
)

// SynthesisResult carries whatever the LLM produced; fields stay empty for
// every call that failed.
type SynthesisResult struct {
	UnitSummaries []string
	Summary       string
	Keywords      []string
	Warnings      []string
}

// SynthesisService produces per-page summaries, a document summary and a
// ranked keyword list through the configured completion backend. Every LLM
// failure is a non-fatal warning; the document's status is never affected.
type SynthesisService struct {
	ai             AIService
	maxPromptChars int
	timeout        time.Duration
}

func NewSynthesisService(ai AIService, maxPromptChars int, timeout time.Duration) *SynthesisService {
	return &SynthesisService{
		ai:             ai,
		maxPromptChars: maxPromptChars,
		timeout:        timeout,
	}
}

// Synthesize expects texts in reading order, one per page/slide.
func (s *SynthesisService) Synthesize(ctx context.Context, texts []string) SynthesisResult {
	result := SynthesisResult{UnitSummaries: make([]string, len(texts))}
	if s.ai == nil {
		result.Warnings = append(result.Warnings, "no LLM backend configured, synthesis skipped")
		return result
	}

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		summary, err := s.complete(ctx, fmt.Sprintf(promptUnitSummary, s.truncate(text)))
		if err != nil {
			log.Printf("Warning: summary generation failed for unit %d: %v", i, err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("unit %d summary failed: %v", i, err))
			continue
		}
		result.UnitSummaries[i] = strings.TrimSpace(summary)
	}

	// The document-level prompts run over unit summaries where available
	// and fall back to the raw text of units whose summary call failed.
	joined := s.truncate(joinPreferring(result.UnitSummaries, texts))
	if strings.TrimSpace(joined) == "" {
		return result
	}

	summary, err := s.complete(ctx, fmt.Sprintf(promptDocSummary, joined))
	if err != nil {
		log.Printf("Warning: document summary generation failed: %v", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("document summary failed: %v", err))
	} else {
		result.Summary = strings.TrimSpace(summary)
	}

	keywords, err := s.complete(ctx, fmt.Sprintf(promptKeywords, joined))
	if err != nil {
		log.Printf("Warning: keyword extraction failed: %v", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("keyword extraction failed: %v", err))
	} else {
		result.Keywords = parseKeywords(keywords)
	}
	return result
}

func (s *SynthesisService) complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.ai.Complete(callCtx, prompt)
}

// truncate bounds prompt size so an oversized page cannot stall the LLM.
func (s *SynthesisService) truncate(text string) string {
	if s.maxPromptChars <= 0 || len(text) <= s.maxPromptChars {
		return text
	}
	return text[:s.maxPromptChars]
}

func joinPreferring(summaries, fallbacks []string) string {
	parts := make([]string, 0, len(summaries))
	for i, summary := range summaries {
		if summary != "" {
			parts = append(parts, summary)
		} else if i < len(fallbacks) && strings.TrimSpace(fallbacks[i]) != "" {
			parts = append(parts, fallbacks[i])
		}
	}
	return strings.Join(parts, "\n\n")
}

// parseKeywords strips list numbering and bullets from the LLM output and
// keeps at most 10 entries.
func parseKeywords(text string) []string {
	var keywords []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimLeft(line, "0123456789.)- •*\t")
		line = strings.TrimSpace(line)
		if len(line) > 1 {
			keywords = append(keywords, line)
		}
		if len(keywords) == 10 {
			break
		}
	}
	return keywords
}
