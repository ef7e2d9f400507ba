package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAI struct {
	reply string
	err   error
}

func (s *stubAI) Complete(ctx context.Context, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func TestSynthesizeWithoutBackend(t *testing.T) {
	svc := NewSynthesisService(nil, 6000, time.Second)

	result := svc.Synthesize(context.Background(), []string{"page one", "page two"})

	assert.Empty(t, result.Summary)
	assert.Empty(t, result.Keywords)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "synthesis skipped")
}

func TestSynthesizeFailingBackendDegradesToWarnings(t *testing.T) {
	svc := NewSynthesisService(&stubAI{err: errors.New("model overloaded")}, 6000, time.Second)

	result := svc.Synthesize(context.Background(), []string{"page one", "page two"})

	assert.Empty(t, result.Summary)
	assert.Empty(t, result.Keywords)
	require.Len(t, result.UnitSummaries, 2)
	assert.Empty(t, result.UnitSummaries[0])
	// Two unit failures plus document summary and keyword failures.
	assert.Len(t, result.Warnings, 4)
}

func TestSynthesizeHappyPath(t *testing.T) {
	svc := NewSynthesisService(&stubAI{reply: "  generated output  "}, 6000, time.Second)

	result := svc.Synthesize(context.Background(), []string{"page one", ""})

	assert.Equal(t, "generated output", result.Summary)
	require.Len(t, result.UnitSummaries, 2)
	assert.Equal(t, "generated output", result.UnitSummaries[0])
	// Blank pages get no summary call.
	assert.Empty(t, result.UnitSummaries[1])
	assert.Empty(t, result.Warnings)
}

func TestSynthesizeEmptyDocument(t *testing.T) {
	svc := NewSynthesisService(&stubAI{reply: "should not be called"}, 6000, time.Second)

	result := svc.Synthesize(context.Background(), []string{"", "   "})

	assert.Empty(t, result.Summary)
	assert.Empty(t, result.Keywords)
}

func TestParseKeywords(t *testing.T) {
	raw := strings.Join([]string{
		"# Keywords",
		"1. vector database",
		"2) embeddings",
		"- document layout",
		"• OCR",
		"",
		"plain keyword",
	}, "\n")

	keywords := parseKeywords(raw)

	assert.Equal(t, []string{
		"vector database",
		"embeddings",
		"document layout",
		"OCR",
		"plain keyword",
	}, keywords)
}

func TestParseKeywordsCapsAtTen(t *testing.T) {
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, "keyword"+strings.Repeat("x", i+1))
	}

	keywords := parseKeywords(strings.Join(lines, "\n"))
	assert.Len(t, keywords, 10)
}

func TestTruncateBoundsPrompt(t *testing.T) {
	svc := NewSynthesisService(nil, 10, time.Second)
	assert.Equal(t, "0123456789", svc.truncate("0123456789abcdef"))
	assert.Equal(t, "short", svc.truncate("short"))
}
