package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := GenerateID("po")
		require.True(t, strings.HasPrefix(id, "po-"))
		assert.Len(t, id, len("po-")+12)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestNewUUID(t *testing.T) {
	assert.NotEqual(t, NewUUID(), NewUUID())
	assert.Len(t, NewUUID(), 36)
}
