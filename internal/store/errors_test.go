package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	plain := errors.New("connection refused")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{
			name: "license number collision",
			in:   &pq.Error{Code: pqUniqueViolation, Constraint: constraintLicenseNumber},
			want: ErrDuplicateNumber,
		},
		{
			name: "second current license",
			in:   &pq.Error{Code: pqUniqueViolation, Constraint: "licenses_user_current_key"},
			want: ErrConflict,
		},
		{
			name: "wrapped unique violation",
			in:   fmt.Errorf("insert: %w", &pq.Error{Code: pqUniqueViolation, Constraint: "payments_transaction_id_key"}),
			want: ErrConflict,
		},
		{
			name: "missing referenced row",
			in:   &pq.Error{Code: pqForeignKeyViolation},
			want: ErrNotFound,
		},
		{
			name: "other driver errors pass through",
			in:   plain,
			want: plain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.in), tt.want)
		})
	}
}

func TestMapError_UnknownPQCodePassesThrough(t *testing.T) {
	in := &pq.Error{Code: "40001"}
	got := mapError(in)

	var pqErr *pq.Error
	assert.True(t, errors.As(got, &pqErr))
	assert.NotErrorIs(t, got, ErrConflict)
}
