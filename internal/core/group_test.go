package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityGroup_Order(t *testing.T) {
	g := NewEntityGroup()

	require.NoError(t, g.Add("B", GroupEntry{Index: 0}))
	require.NoError(t, g.Add("A", GroupEntry{Index: 1}))
	require.NoError(t, g.Add("B", GroupEntry{Index: 2}))

	assert.Equal(t, []string{"B", "A"}, g.Keys())
	assert.Equal(t, 3, g.Len())

	var visited []RowIndex
	g.Each(func(_ string, e GroupEntry) bool {
		visited = append(visited, e.Index)
		return true
	})
	assert.Equal(t, []RowIndex{0, 2, 1}, visited)
}

func TestEntityGroup_RejectsEmptyKey(t *testing.T) {
	g := NewEntityGroup()

	assert.ErrorIs(t, g.Add("  ", GroupEntry{}), ErrEmptyKey)
	assert.True(t, g.Empty())
	assert.Empty(t, g.Keys())
}
