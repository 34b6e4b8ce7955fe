package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}
	if !isUniqueViolation(fmt.Errorf("insert: %w", dup)) {
		t.Fatalf("expected wrapped 23505 to be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("foreign key violation must not be reported as unique")
	}
	if isUniqueViolation(errors.New("boom")) {
		t.Fatalf("plain error must not be reported as unique")
	}
}

func TestLikePattern(t *testing.T) {
	cases := map[string]string{
		"pizza":  "%pizza%",
		"100%":   `%100\%%`,
		"a_b":    `%a\_b%`,
		`back\s`: `%back\\s%`,
	}
	for in, want := range cases {
		if got := likePattern(in); got != want {
			t.Fatalf("likePattern(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNullableText(t *testing.T) {
	if nullableText("") != nil {
		t.Fatalf("empty email must map to NULL")
	}
	if v := nullableText("a@b.c"); v == nil || *v != "a@b.c" {
		t.Fatalf("unexpected value %v", v)
	}
}
