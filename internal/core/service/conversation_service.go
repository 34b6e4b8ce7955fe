package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/aibutler/butler-api/internal/core/domain"
	"github.com/aibutler/butler-api/internal/core/ports"
)

const (
	defaultTopK            = 3
	defaultUpstreamTimeout = 30 * time.Second

	stageRetrieval  = "retrieval"
	stageCompletion = "completion"
)

// ConversationOptions tunes the answering flow.
type ConversationOptions struct {
	TopK            int
	UpstreamTimeout time.Duration
}

// ConversationService answers questions and manages the stored conversations.
type ConversationService struct {
	repo      ports.ConversationRepository
	llm       ports.Completer
	retriever ports.Retriever
	topK      int
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewConversationService wires the answering flow. retriever may be nil, in
// which case every question is answered with the few-shot prompt.
func NewConversationService(repo ports.ConversationRepository, llm ports.Completer, retriever ports.Retriever, opts ConversationOptions, logger zerolog.Logger) *ConversationService {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.UpstreamTimeout <= 0 {
		opts.UpstreamTimeout = defaultUpstreamTimeout
	}
	return &ConversationService{
		repo:      repo,
		llm:       llm,
		retriever: retriever,
		topK:      opts.TopK,
		timeout:   opts.UpstreamTimeout,
		logger:    logger,
	}
}

// Ask runs retrieval (when requested and available), asks the model and then
// persists the exchange. Nothing is written when an upstream call fails.
func (s *ConversationService) Ask(ctx context.Context, input ports.AskInput) (*ports.AskResult, error) {
	business := strings.TrimSpace(input.Business)
	question := strings.TrimSpace(input.Question)
	if err := validateQuestion(business, question); err != nil {
		return nil, err
	}

	upCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var passages []domain.Passage
	if input.UseRetrieval && s.retriever != nil {
		found, err := s.retriever.Retrieve(upCtx, question, s.topK)
		if err != nil {
			s.logger.Error().Err(err).Str("business", business).Msg("retrieval failed")
			return nil, &domain.UpstreamError{Stage: stageRetrieval, Err: err}
		}
		passages = found
	}

	answer, err := s.llm.Complete(upCtx, buildPrompt(business, question, passages))
	if err == nil && strings.TrimSpace(answer) == "" {
		err = errors.New("empty completion")
	}
	if err != nil {
		s.logger.Error().Err(err).Str("business", business).Msg("completion failed")
		return nil, &domain.UpstreamError{Stage: stageCompletion, Err: err}
	}
	answer = strings.TrimSpace(answer)

	conv := &domain.Conversation{
		Business: business,
		Question: question,
		Answer:   domain.ClipAnswer(answer),
	}
	if input.Caller != nil {
		id := input.Caller.ID
		conv.UserID = &id
	}

	stored, err := s.repo.Create(ctx, conv)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to store conversation")
		return nil, err
	}

	s.logger.Info().
		Int64("conversation_id", stored.ID).
		Str("business", business).
		Int("passages", len(passages)).
		Msg("question answered")

	return &ports.AskResult{Answer: answer, Passages: passages, Conversation: stored}, nil
}

// List returns conversations visible to the caller: every conversation for an
// admin, only their own for a regular user.
func (s *ConversationService) List(ctx context.Context, input ports.ListConversationsInput) ([]*domain.Conversation, error) {
	page := input.Page.Normalize()
	term := strings.TrimSpace(input.Search)

	var owner *int64
	if !input.Caller.IsAdmin() {
		id := input.Caller.ID
		owner = &id
	}

	switch {
	case term != "":
		return s.repo.Search(ctx, term, owner, page)
	case owner != nil:
		return s.repo.ListByUser(ctx, *owner, page)
	default:
		return s.repo.List(ctx, page)
	}
}

// Get returns one conversation. Conversations the caller may not see are
// reported as not found.
func (s *ConversationService) Get(ctx context.Context, caller domain.Identity, id int64) (*domain.Conversation, error) {
	conv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !conv.OwnedBy(caller.ID) {
		return nil, domain.ErrConversationNotFound
	}
	return conv, nil
}

func (s *ConversationService) Delete(ctx context.Context, caller domain.Identity, id int64) error {
	if !caller.IsAdmin() {
		return domain.ErrForbidden
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrConversationNotFound
	}

	s.logger.Info().Int64("conversation_id", id).Str("by", caller.Username).Msg("conversation deleted")
	return nil
}

func validateQuestion(business, question string) error {
	if business == "" {
		return fmt.Errorf("%w: business must not be empty", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(business) > domain.MaxBusinessLen {
		return fmt.Errorf("%w: business must be at most %d characters", domain.ErrInvalidInput, domain.MaxBusinessLen)
	}
	if n := utf8.RuneCountInString(question); n < domain.MinQuestionLen || n > domain.MaxQuestionLen {
		return fmt.Errorf("%w: question must be between %d and %d characters", domain.ErrInvalidInput, domain.MinQuestionLen, domain.MaxQuestionLen)
	}
	return nil
}
