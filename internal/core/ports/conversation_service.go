package ports

import (
	"context"

	"github.com/aibutler/butler-api/internal/core/domain"
)

// AskInput carries one question. A nil Caller means the question is anonymous.
type AskInput struct {
	Business     string
	Question     string
	Caller       *domain.Identity
	UseRetrieval bool
}

// AskResult is returned by a successful Ask.
type AskResult struct {
	Answer       string
	Passages     []domain.Passage
	Conversation *domain.Conversation
}

// ListConversationsInput selects a page of conversations visible to Caller.
// A non-empty Search narrows the listing to matching question or answer text.
type ListConversationsInput struct {
	Caller domain.Identity
	Search string
	Page   Page
}

type ConversationService interface {
	Ask(ctx context.Context, input AskInput) (*AskResult, error)
	List(ctx context.Context, input ListConversationsInput) ([]*domain.Conversation, error)
	Get(ctx context.Context, caller domain.Identity, id int64) (*domain.Conversation, error)
	Delete(ctx context.Context, caller domain.Identity, id int64) error
}
