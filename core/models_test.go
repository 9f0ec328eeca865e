package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDFromContent(t *testing.T) {
	t.Run("same content produces same ID", func(t *testing.T) {
		a := IDFromContent("test content")
		b := IDFromContent("test content")
		assert.Equal(t, a, b)
	})

	t.Run("different content produces different IDs", func(t *testing.T) {
		a := IDFromContent("first")
		b := IDFromContent("second")
		assert.NotEqual(t, a, b)
	})

	t.Run("empty string is stable", func(t *testing.T) {
		assert.Equal(t, IDFromContent(""), IDFromContent(""))
	})
}
