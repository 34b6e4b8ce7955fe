package ports

import (
	"time"

	"github.com/aibutler/butler-api/internal/core/domain"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify reports whether password matches hash. Malformed hashes never match.
	Verify(password, hash string) bool
}

type TokenIssuer interface {
	Issue(identity domain.Identity) (token string, expiresAt time.Time, err error)
}

type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}
