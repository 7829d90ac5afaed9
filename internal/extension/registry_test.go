package extension

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddAndList(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(Entry{File: "b.go", Tool: "beta"}))
	require.NoError(t, r.Add(Entry{File: "a.go", Tool: "alpha"}))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "beta", list[0].Tool)
	assert.Equal(t, "alpha", list[1].Tool)
	assert.False(t, list[0].LoadedAt.IsZero())
	assert.Equal(t, 2, r.Count())

	e, ok := r.Get("a.go")
	require.True(t, ok)
	assert.Equal(t, "alpha", e.Tool)
	assert.False(t, r.Has("c.go"))
}

func TestRegistryDuplicateFile(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(Entry{File: "a.go", Tool: "alpha"}))
	err := r.Add(Entry{File: "a.go", Tool: "other"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already loaded")

	e, _ := r.Get("a.go")
	assert.Equal(t, "alpha", e.Tool)
}
