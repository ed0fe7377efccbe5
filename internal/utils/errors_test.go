package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := NewKeyedValidationError("g1|dk|moneyline|home", "odds %d out of range", 25000)
	assert.Equal(t, "g1|dk|moneyline|home: odds 25000 out of range", err.Error())

	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, "g1|dk|moneyline|home", vErr.Key)

	bare := NewValidationError("missing field")
	assert.Equal(t, "missing field", bare.Error())
}

func TestDataQualityWarning(t *testing.T) {
	err := NewDataQualityWarning("g1|dk", "no complementary quote within %s", "5m0s")
	assert.Contains(t, err.Error(), "data quality")
	assert.Contains(t, err.Error(), "g1|dk")
}

func TestInvariantViolation(t *testing.T) {
	err := NewInvariantViolation("series mismatch: %s vs %s", "a", "b")
	assert.Contains(t, err.Error(), "invariant violation")
}

func TestPersistenceError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewPersistenceError("g1|dk|moneyline|home|1600000000", 3, cause)

	var pErr *PersistenceError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, 3, pErr.Attempt)
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "after 3 attempts")
}
