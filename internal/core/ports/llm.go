package ports

import (
	"context"

	"github.com/aibutler/butler-api/internal/core/domain"
)

// Chat message roles understood by a Completer.
const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string
	Content string
}

// Completer produces a single answer for an ordered chat prompt.
type Completer interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever returns up to topK passages relevant to question, best first.
type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int) ([]domain.Passage, error)
}
