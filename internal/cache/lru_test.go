package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Set("c", 3)

	_, ok = c.Get("b")
	require.False(t, ok, "b was least recently used")
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.Equal(t, 2, c.Len())
}

func TestLRU_Expiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRU[string](10, time.Minute)
	c.now = func() time.Time { return now }
	c.Set("k", "v")
	c.Set("k2", "v2")

	now = now.Add(30 * time.Second)
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)

	now = now.Add(time.Minute)
	_, ok = c.Get("k")
	require.False(t, ok)
	require.Equal(t, 1, c.Purge())
	require.Zero(t, c.Len())
}

func TestLRU_SetReplacesAndDelete(t *testing.T) {
	c := NewLRU[int](3, time.Hour)
	c.Set("x", 1)
	c.Set("x", 2)
	v, _ := c.Get("x")
	require.Equal(t, 2, v)
	require.Equal(t, 1, c.Len())
	c.Delete("x")
	_, ok := c.Get("x")
	require.False(t, ok)
}
