// Package core_test tests the core value types.
package core_test

import (
	"errors"
	"testing"

	"github.com/book-expert/blog-workflow/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLength(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"short", "medium", "long"} {
		length, err := core.ParseLength(raw)
		require.NoError(t, err)
		assert.Equal(t, core.Length(raw), length)
	}

	_, err := core.ParseLength("huge")
	require.ErrorIs(t, err, core.ErrUnknownLength)
}

func TestParsePolishStyle(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"blog", "article", "story", "other"} {
		style, err := core.ParsePolishStyle(raw)
		require.NoError(t, err)
		assert.Equal(t, core.PolishStyle(raw), style)
	}

	_, err := core.ParsePolishStyle("poem")
	require.ErrorIs(t, err, core.ErrUnknownPolishStyle)
}

func TestServiceError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("quota exceeded")
	err := core.NewServiceError("llm", "generate", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "llm generate failed: quota exceeded", err.Error())
}
