package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aibutler/butler-api/internal/core/domain"
	"github.com/aibutler/butler-api/internal/core/ports"
)

const conversationColumns = `id, business, question, answer, created_at, user_id`

type ConversationRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db, now: time.Now}
}

func (r *ConversationRepository) Create(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, error) {
	created := *conv
	created.CreatedAt = r.now().UTC()

	var userID sql.NullInt64
	if created.UserID != nil {
		userID = sql.NullInt64{Int64: *created.UserID, Valid: true}
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (business, question, answer, created_at, user_id) VALUES (?, ?, ?, ?, ?)`,
		created.Business, created.Question, created.Answer, created.CreatedAt, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	if created.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("insert conversation id: %w", err)
	}
	return &created, nil
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
	row := r.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *ConversationRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	return n > 0, nil
}

func (r *ConversationRepository) list(ctx context.Context, term string, userID *int64, page ports.Page) ([]*domain.Conversation, error) {
	page = page.Normalize()

	var (
		where []string
		args  []any
	)
	if userID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *userID)
	}
	if term != "" {
		where = append(where, `(ulower(question) LIKE ? ESCAPE '\' OR ulower(answer) LIKE ? ESCAPE '\')`)
		p := likePattern(term)
		args = append(args, p, p)
	}

	query := `SELECT ` + conversationColumns + ` FROM conversations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, page.Limit, page.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	convs := make([]*domain.Conversation, 0, page.Limit)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	var (
		c      domain.Conversation
		userID sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.Business, &c.Question, &c.Answer, &c.CreatedAt, &userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	if userID.Valid {
		id := userID.Int64
		c.UserID = &id
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}
