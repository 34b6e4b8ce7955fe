package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aibutler/butler-api/internal/core/domain"
	"github.com/aibutler/butler-api/internal/core/ports"
)

const conversationColumns = `id, business, question, answer, created_at, user_id`

type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

// Create lets the database stamp created_at so all writers share one clock.
func (r *ConversationRepository) Create(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO conversations (business, question, answer, user_id) VALUES ($1, $2, $3, $4) RETURNING `+conversationColumns,
		conv.Business, conv.Question, conv.Answer, conv.UserID,
	)
	created, err := scanConversation(row)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return created, nil
}

func (r *ConversationRepository) List(ctx context.Context, page ports.Page) ([]*domain.Conversation, error) {
	return r.list(ctx, "", nil, page)
}

func (r *ConversationRepository) ListByUser(ctx context.Context, userID int64, page ports.Page) ([]*domain.Conversation, error) {
	return r.list(ctx, "", &userID, page)
}

func (r *ConversationRepository) Search(ctx context.Context, term string, userID *int64, page ports.Page) ([]*domain.Conversation, error) {
	return r.list(ctx, term, userID, page)
}

func (r *ConversationRepository) Get(ctx context.Context, id int64) (*domain.Conversation, error) {
	c, err := scanConversation(r.pool.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ConversationRepository) list(ctx context.Context, term string, userID *int64, page ports.Page) ([]*domain.Conversation, error) {
	page = page.Normalize()

	var (
		where []string
		args  []any
	)
	if userID != nil {
		args = append(args, *userID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if term != "" {
		args = append(args, likePattern(term))
		n := len(args)
		where = append(where, fmt.Sprintf("(question ILIKE $%d OR answer ILIKE $%d)", n, n))
	}

	query := `SELECT ` + conversationColumns + ` FROM conversations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, page.Limit, page.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	convs := make([]*domain.Conversation, 0, page.Limit)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := row.Scan(&c.ID, &c.Business, &c.Question, &c.Answer, &c.CreatedAt, &c.UserID); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}
