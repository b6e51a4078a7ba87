package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type queryPayload struct {
	Page    int `json:"page" validate:"gte=0"`
	PerPage int `json:"per_page" validate:"gte=0,lte=500"`
}

func TestValidateStructAccepts(t *testing.T) {
	require.NoError(t, ValidateStruct(queryPayload{Page: 1, PerPage: 100}))
	require.NoError(t, ValidateStruct(queryPayload{}))
	require.NoError(t, ValidateStruct(queryPayload{PerPage: 500}))
}

func TestValidateStructRejectsOversizedPerPage(t *testing.T) {
	err := ValidateStruct(queryPayload{PerPage: 501})
	require.Error(t, err)

	var failures FieldErrors
	require.ErrorAs(t, err, &failures)
	require.Len(t, failures, 1)
	require.Equal(t, "per_page", failures[0].Field)
	require.Equal(t, "lte", failures[0].Rule)
	require.Equal(t, "per_page must be at most 500", failures[0].Message())
}

func TestValidateStructReportsWireNames(t *testing.T) {
	err := ValidateStruct(queryPayload{Page: -1, PerPage: -5})
	require.Error(t, err)

	var failures FieldErrors
	require.ErrorAs(t, err, &failures)
	require.Len(t, failures, 2)
	require.Contains(t, err.Error(), "page must be at least 0")
	require.Contains(t, err.Error(), "per_page must be at least 0")
}
