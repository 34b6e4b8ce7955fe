package ports

import (
	"context"

	"github.com/aibutler/butler-api/internal/core/domain"
)

// ConversationRepository defines persistence operations for conversations.
// Every listing is ordered newest first.
type ConversationRepository interface {
	// Create stamps CreatedAt and assigns ID.
	Create(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, error)
	List(ctx context.Context, page Page) ([]*domain.Conversation, error)
	ListByUser(ctx context.Context, userID int64, page Page) ([]*domain.Conversation, error)
	Get(ctx context.Context, id int64) (*domain.Conversation, error)
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, id int64) (bool, error)
	// Search does a case-insensitive substring match over question and answer.
	// A nil userID searches every conversation.
	Search(ctx context.Context, term string, userID *int64, page Page) ([]*domain.Conversation, error)
}

// Store bundles the repositories of one storage backend.
type Store interface {
	Users() UserRepository
	Conversations() ConversationRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
