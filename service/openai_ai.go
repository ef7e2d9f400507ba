package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/phamduchanh/docvec-be/types"
)

var systemMessageDocumentAnalyst = openai.ChatCompletionMessage{
	Role:    openai.ChatMessageRoleSystem,
	Content: "You are a document analysis assistant. You summarize technical documents and extract keywords. Answer concisely and only with the requested content.",
}

// OpenAIService completes prompts against an OpenAI-compatible endpoint
// (including local LLM servers).
type OpenAIService struct {
	client *openai.Client
	model  string
}

func NewOpenAIService(baseURL, apiKey, model string) *OpenAIService {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIService{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (s *OpenAIService) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Messages: []openai.ChatCompletionMessage{
				systemMessageDocumentAnalyst,
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Model: s.model,
		},
	)
	if err != nil {
		return "", fmt.Errorf("completion failed: %v: %w", err, types.ErrServiceUnavailable)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response generated")
	}
	return resp.Choices[0].Message.Content, nil
}
