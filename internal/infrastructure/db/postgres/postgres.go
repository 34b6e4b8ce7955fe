// Package postgres implements the user and conversation stores on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aibutler/butler-api/internal/core/ports"
)

const (
	defaultTimeout = 10 * time.Second

	uniqueViolation = "23505"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	username      VARCHAR(30)  NOT NULL UNIQUE,
	email         VARCHAR(255) UNIQUE,
	password_hash TEXT         NOT NULL,
	role          VARCHAR(16)  NOT NULL DEFAULT 'user',
	created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conversations (
	id         BIGSERIAL PRIMARY KEY,
	business   VARCHAR(80)   NOT NULL,
	question   VARCHAR(400)  NOT NULL,
	answer     VARCHAR(1000) NOT NULL,
	created_at TIMESTAMPTZ   NOT NULL DEFAULT now(),
	user_id    BIGINT REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations (created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations (user_id);
`

// Config captures the pool settings for a PostgreSQL connection.
type Config struct {
	URL      string
	MaxConns int32
	Timeout  time.Duration
}

// Store is a PostgreSQL backed ports.Store.
type Store struct {
	pool          *pgxpool.Pool
	users         *UserRepository
	conversations *ConversationRepository
}

// Connect builds the pool, verifies connectivity with a ping and applies the schema.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(connectCtx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	return &Store{
		pool:          pool,
		users:         NewUserRepository(pool),
		conversations: NewConversationRepository(pool),
	}, nil
}

func (s *Store) Users() ports.UserRepository                 { return s.users }
func (s *Store) Conversations() ports.ConversationRepository { return s.conversations }

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}
