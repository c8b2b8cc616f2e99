package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decisionRequest struct {
	Command string   `validate:"required"`
	Args    []string `validate:"max=64"`
}

func TestValidateStruct_Valid(t *testing.T) {
	err := ValidateStruct(decisionRequest{Command: "git", Args: []string{"status"}})
	assert.NoError(t, err)
}

func TestValidateStruct_MissingRequired(t *testing.T) {
	err := ValidateStruct(decisionRequest{})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	fields := GetValidationFields(err)
	assert.Contains(t, fields, "Command")
	assert.Equal(t, "Command is required", fields["Command"])
}

func TestIsValidationError_OtherError(t *testing.T) {
	assert.False(t, IsValidationError(errors.New("boom")))
	assert.Nil(t, GetValidationFields(errors.New("boom")))
}
