// Package db selects the storage backend named by the configured database URL.
package db

import (
	"context"
	"strings"
	"time"

	"github.com/aibutler/butler-api/internal/core/ports"
	"github.com/aibutler/butler-api/internal/infrastructure/db/mongo"
	"github.com/aibutler/butler-api/internal/infrastructure/db/postgres"
	"github.com/aibutler/butler-api/internal/infrastructure/db/sqlite"
)

// Backend names reported by Kind.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendSQLite   = "sqlite"
)

// Options configures Open.
type Options struct {
	URL           string
	MongoDatabase string
	Timeout       time.Duration
}

// Kind maps a database URL to a backend: postgres:// and postgresql:// use
// PostgreSQL, mongodb:// and mongodb+srv:// use MongoDB, anything else is a
// SQLite file path (an optional sqlite:// or sqlite3:// prefix is stripped).
func Kind(url string) string {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return BackendPostgres
	case strings.HasPrefix(url, "mongodb://"), strings.HasPrefix(url, "mongodb+srv://"):
		return BackendMongo
	default:
		return BackendSQLite
	}
}

// Open connects to the backend selected by opts.URL and prepares its schema.
func Open(ctx context.Context, opts Options) (ports.Store, error) {
	var (
		store ports.Store
		err   error
	)
	switch Kind(opts.URL) {
	case BackendPostgres:
		store, err = postgres.Connect(ctx, postgres.Config{URL: opts.URL, Timeout: opts.Timeout})
	case BackendMongo:
		store, err = mongo.Connect(ctx, mongo.Config{URI: opts.URL, Database: opts.MongoDatabase, Timeout: opts.Timeout})
	default:
		store, err = sqlite.Open(ctx, sqlitePath(opts.URL))
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

func sqlitePath(url string) string {
	for _, prefix := range []string{"sqlite3://", "sqlite://"} {
		if strings.HasPrefix(url, prefix) {
			return strings.TrimPrefix(url, prefix)
		}
	}
	return url
}
