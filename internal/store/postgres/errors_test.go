package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/plantpal/plantpal/internal/model"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", sql.ErrNoRows, model.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), model.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, model.ErrConflict},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, model.ErrTransient},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, model.ErrTransient},
		{"connection failure", &pgconn.PgError{Code: "08006"}, model.ErrTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classify(tc.in); !errors.Is(got, tc.want) {
				t.Fatalf("classify(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}

	if classify(nil) != nil {
		t.Fatalf("classify(nil) should be nil")
	}
	syntax := &pgconn.PgError{Code: "42601"}
	if got := classify(syntax); got != syntax {
		t.Fatalf("unclassified error should pass through, got %v", got)
	}
}
