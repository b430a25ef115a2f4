package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestHashContent(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := HashContent([]byte("hello"))
		assert.Equal(t, a, HashContent([]byte("hello")))
		assert.True(t, ValidHash(a))
	})

	t.Run("distinct inputs", func(t *testing.T) {
		assert.NotEqual(t, HashContent([]byte("A")), HashContent([]byte("B")))
	})

	t.Run("empty has no hash", func(t *testing.T) {
		assert.Equal(t, "", HashContent(nil))
		assert.Equal(t, "", HashContent([]byte{}))
		assert.False(t, ValidHash(""))
	})
}

func TestNewTaskID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewTaskID()
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
