package attendance

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "redemptions_code_student_id_key"}

	assert.True(t, isUniqueViolation(unique))
	// Must survive wrapping: the pool decorates driver errors before they
	// reach the repository.
	assert.True(t, isUniqueViolation(fmt.Errorf("exec: %w", unique)))

	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("connection reset")))
	assert.False(t, isUniqueViolation(nil))
}
