package validation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" validate:"required"`
	Theme string `json:"theme,omitempty" validate:"omitempty,oneof=light dark sepia"`
	Size  int    `json:"font_size" validate:"gte=50,lte=200"`
}

func TestValidate_Valid(t *testing.T) {
	err := New().Validate(sample{Name: "x", Theme: "dark", Size: 100})
	assert.NoError(t, err)
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	err := New().Validate(sample{Theme: "blue", Size: 10})
	require.Error(t, err)

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["name"])
	assert.Equal(t, "must be one of: light dark sepia", verr.Fields["theme"])
	assert.Equal(t, "must be greater than or equal to 50", verr.Fields["font_size"])
	assert.Contains(t, err.Error(), "name is required")
}

func TestIsValidationError(t *testing.T) {
	err := Struct(sample{})
	assert.True(t, IsValidationError(err))
	assert.True(t, IsValidationError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsValidationError(assert.AnError))
}
