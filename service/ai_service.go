package service

import "context"

// AIService is one language-model completion backend.
type AIService interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
