package viewer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHistory(t *testing.T) {
	h := NewMemoryHistory("")
	assert.Equal(t, "", h.Search())

	h.Push("?a=1")
	h.Push("?a=2")
	assert.Equal(t, "?a=2", h.Search())
	assert.Equal(t, 2, h.Index())

	search, ok := h.Back()
	assert.True(t, ok)
	assert.Equal(t, "?a=1", search)

	search, ok = h.Forward()
	assert.True(t, ok)
	assert.Equal(t, "?a=2", search)

	_, ok = h.Forward()
	assert.False(t, ok)
	assert.Equal(t, "?a=2", h.Search())
}

func TestMemoryHistoryPushTruncatesForward(t *testing.T) {
	h := NewMemoryHistory("")
	h.Push("?a=1")
	h.Push("?a=2")

	_, _ = h.Go(0)
	h.Push("?b=1")

	assert.Equal(t, []string{"", "?b=1"}, h.Entries())
	assert.Equal(t, 1, h.Index())
}

func TestMemoryHistoryGoOutOfRange(t *testing.T) {
	h := NewMemoryHistory("?x")

	_, ok := h.Go(-1)
	assert.False(t, ok)

	_, ok = h.Go(1)
	assert.False(t, ok)

	_, ok = h.Back()
	assert.False(t, ok)
	assert.Equal(t, "?x", h.Search())
}

func TestMemoryHistoryReplace(t *testing.T) {
	h := NewMemoryHistory("?x")
	h.Replace("?y")

	assert.Equal(t, []string{"?y"}, h.Entries())
}

func TestMemoryHistoryAt(t *testing.T) {
	h := NewMemoryHistory("?a")
	h.Push("?b")

	entry, ok := h.At(0)
	require.True(t, ok)
	assert.Equal(t, "?a", entry)
	assert.Equal(t, 1, h.Index(), "At does not move the cursor")

	_, ok = h.At(2)
	assert.False(t, ok)

	_, ok = h.At(-1)
	assert.False(t, ok)
}
