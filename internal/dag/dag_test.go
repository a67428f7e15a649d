package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.Zero(t, g.Len())
}

func TestAddNode(t *testing.T) {
	g := New()

	g.AddNode("a")
	assert.Equal(t, 1, g.Len())

	g.AddNode("a") // idempotent
	assert.Equal(t, 1, g.Len())

	g.AddNode("b")
	assert.Equal(t, 2, g.Len())
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")

		err := g.AddEdge("a", "b") // b depends on a
		require.NoError(t, err)

		deps, err := g.Dependencies("b")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, deps)
	})

	t.Run("error cases", func(t *testing.T) {
		g := New()
		g.AddNode("a")

		err := g.AddEdge("dne", "a")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "source node not found")

		err = g.AddEdge("a", "dne")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "destination node not found")

		err = g.AddEdge("a", "a")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "self-referential")
	})
}

func TestDetectCycles(t *testing.T) {
	t.Run("acyclic graph passes", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		g.AddNode("c")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("a", "c"))

		assert.NoError(t, g.DetectCycles())
	})

	t.Run("cycle is reported", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		g.AddNode("c")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("c", "a"))

		err := g.DetectCycles()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCycle)
	})
}
