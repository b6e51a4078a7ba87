package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gridhq/tablecache/internal/schema"
)

func TestValidateAllowedOperator(t *testing.T) {
	v := NewValidator()

	ok, err := v.Validate("status", "is", schema.TypeText, true)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = v.Validate("due", "is_overdue", schema.TypeDueDate, true)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = v.Validate("attachments", "file_name_contains", schema.TypeFile, true)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestValidateMismatchNonStrict(t *testing.T) {
	v := NewValidator()

	// Only due-date fields accept is_overdue.
	ok, err := v.Validate("status", "is_overdue", schema.TypeText, false)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestValidateMismatchStrict(t *testing.T) {
	v := NewValidator()

	ok, err := v.Validate("status", "is_overdue", schema.TypeText, true)
	require.Error(t, err)
	require.False(t, ok)
	require.Contains(t, err.Error(), "is_overdue")
	require.Contains(t, err.Error(), "status")
}

func TestValidateUnknownOperator(t *testing.T) {
	v := NewValidator()

	// Non-strict preserves the permissive fall-through to equality.
	ok, err := v.Validate("status", "resembles", schema.TypeText, false)
	require.NoError(t, err)
	require.True(t, ok)

	// Strict mode makes the policy explicit and rejects it.
	ok, err = v.Validate("status", "resembles", schema.TypeText, true)
	require.Error(t, err)
	require.False(t, ok)
}

func TestValidateUnknownFieldTypeAccepted(t *testing.T) {
	v := NewValidator()

	ok, err := v.Validate("custom", "is", schema.FieldType("hologram"), true)
	require.NoError(t, err)
	require.True(t, ok)
}
