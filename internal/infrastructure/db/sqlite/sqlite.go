// Package sqlite implements the user and conversation stores on an embedded
// SQLite database through mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/aibutler/butler-api/internal/core/ports"
)

// driverName is go-sqlite3 with a Unicode-aware ulower() function. The
// built-in LOWER only folds ASCII.
const driverName = "sqlite3_butler"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("ulower", strings.ToLower, true)
		},
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT     NOT NULL UNIQUE,
	email         TEXT     UNIQUE,
	password_hash TEXT     NOT NULL,
	role          TEXT     NOT NULL DEFAULT 'user',
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	business   TEXT     NOT NULL,
	question   TEXT     NOT NULL,
	answer     TEXT     NOT NULL,
	created_at DATETIME NOT NULL,
	user_id    INTEGER REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations(created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id);
`

// Store is a SQLite backed ports.Store.
type Store struct {
	db            *sql.DB
	users         *UserRepository
	conversations *ConversationRepository
}

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open(driverName, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	return &Store{
		db:            db,
		users:         NewUserRepository(db),
		conversations: NewConversationRepository(db),
	}, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

func (s *Store) Users() ports.UserRepository                 { return s.users }
func (s *Store) Conversations() ports.ConversationRepository { return s.conversations }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// likePattern lowercases term and escapes LIKE wildcards for use with ESCAPE '\'.
// Columns compared against it must go through ulower.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(term)) + "%"
}
