package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		assert.True(t, Is(NewNotFound(3), ErrNotFound))
		assert.False(t, Is(NewNotFound(3), ErrStorage))
	})

	t.Run("wrapped", func(t *testing.T) {
		err := fmt.Errorf("failed to load detail: %w", NewStorage("get", stderrors.New("disk")))
		assert.True(t, Is(err, ErrStorage))
		assert.Equal(t, ErrStorage, CodeOf(err))
	})

	t.Run("plain error", func(t *testing.T) {
		assert.False(t, Is(stderrors.New("x"), ErrNotFound))
		assert.Equal(t, Code(""), CodeOf(nil))
	})
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := NewEncoding("encode jpeg", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "ENCODING")
	assert.Contains(t, err.Error(), "boom")
}
