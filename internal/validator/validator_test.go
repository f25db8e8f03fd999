package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStruct(t *testing.T) {
	type sample struct {
		Name  string `validate:"required"`
		Level string `validate:"oneof=debug info"`
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, ValidateStruct(sample{Name: "x", Level: "info"}))
	})

	t.Run("collects every violation", func(t *testing.T) {
		err := ValidateStruct(sample{Level: "loud"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Field: Name, Tag: required")
		assert.Contains(t, err.Error(), "Field: Level, Tag: oneof, Param: debug info")
	})

	t.Run("non-struct input", func(t *testing.T) {
		err := ValidateStruct(42)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})
}
