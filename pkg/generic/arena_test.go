package generic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaInsertGetRemove(t *testing.T) {
	a := NewArena[string](4)

	h1 := a.Insert("ball")
	h2 := a.Insert("wall")
	assert.False(t, h1.IsZero())
	assert.Equal(t, 2, a.Len())

	v, ok := a.Get(h1)
	require.True(t, ok)
	assert.Equal(t, "ball", v)

	removed, ok := a.Remove(h1)
	require.True(t, ok)
	assert.Equal(t, "ball", removed)
	assert.False(t, a.Contains(h1))
	assert.True(t, a.Contains(h2))
	assert.Equal(t, 1, a.Len())

	_, ok = a.Remove(h1)
	assert.False(t, ok, "double remove must fail")
}

func TestArenaStaleHandleAfterReuse(t *testing.T) {
	a := NewArena[int](1)
	old := a.Insert(1)
	_, _ = a.Remove(old)

	fresh := a.Insert(2)
	assert.Equal(t, old.Index, fresh.Index, "slot is recycled")
	assert.NotEqual(t, old.Generation, fresh.Generation)

	_, ok := a.Get(old)
	assert.False(t, ok, "stale handle must not see the new value")
	v, ok := a.Get(fresh)
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestArenaZeroHandleNeverResolves(t *testing.T) {
	a := NewArena[int](0)
	a.Insert(7)
	_, ok := a.Get(Handle{})
	assert.False(t, ok)
}

func TestArenaEachSkipsFreeSlots(t *testing.T) {
	a := NewArena[int](0)
	h := make([]Handle, 0, 4)
	for i := 0; i < 4; i++ {
		h = append(h, a.Insert(i))
	}
	_, _ = a.Remove(h[1])

	var seen []int
	a.Each(func(_ Handle, v int) bool {
		seen = append(seen, v)
		return true
	})
	assert.Equal(t, []int{0, 2, 3}, seen)
}
