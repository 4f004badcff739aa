package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate(t *testing.T) {
	assert.Equal(t, 0, Estimate(""))
	assert.Equal(t, 1, Estimate("hi"))
	assert.Equal(t, 3, Estimate("hello world!"))

	// Word count floors whitespace-heavy input.
	assert.Equal(t, 4, Estimate("a b c d"))
}

func TestCompletionSize(t *testing.T) {
	assert.Equal(t, 64, CompletionSize(64, 0))
	assert.Equal(t, 64, CompletionSize(64, -1))
	assert.Equal(t, 16, CompletionSize(64, 16))
	assert.Equal(t, 64, CompletionSize(64, 100))
}
