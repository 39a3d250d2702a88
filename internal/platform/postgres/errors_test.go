package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/veloxi/forge-api/internal/store"
)

func TestMapErrorNil(t *testing.T) {
	assert.NoError(t, MapError(nil))
}

func TestMapErrorNoRows(t *testing.T) {
	err := MapError(fmt.Errorf("query failed: %w", sql.ErrNoRows))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMapErrorUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "generations_primary_id_key"}

	err := MapError(pgErr)

	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.True(t, IsUniqueViolation(pgErr))
}

func TestMapErrorConstraintViolations(t *testing.T) {
	cases := []struct {
		name string
		code string
	}{
		{"foreign key", foreignKeyViolationCode},
		{"check", checkViolationCode},
		{"not null", notNullViolationCode},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := MapError(&pgconn.PgError{Code: tc.code, ConstraintName: "some_constraint"})
			assert.ErrorIs(t, err, store.ErrInvalidEntity)
		})
	}
}

func TestMapErrorPassthrough(t *testing.T) {
	original := errors.New("connection refused")
	assert.Equal(t, original, MapError(original))
}
