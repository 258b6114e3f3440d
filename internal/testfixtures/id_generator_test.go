package testfixtures

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDGenerator(t *testing.T) {
	gen := NewIDGenerator("session")
	assert.Equal(t, "session-1", gen.Next())
	assert.Equal(t, "session-2", gen.Next())

	gen.Reset()
	assert.Equal(t, "session-1", gen.NextFunc()())

	assert.Equal(t, "id-1", NewIDGenerator("").Next())

	var nilGen *IDGenerator
	assert.Empty(t, nilGen.NextFunc()())
}

func TestUUIDGeneratorIsDeterministic(t *testing.T) {
	a := NewUUIDGenerator("series")
	b := NewUUIDGenerator("series")

	first := a.Next()
	assert.Equal(t, first, b.Next())
	assert.NotEqual(t, first, a.Next())

	parsed, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
	assert.NotEqual(t, first, NewUUIDGenerator("other").Next())
}
