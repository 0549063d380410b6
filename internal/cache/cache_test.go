package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MM25Zamanian/prismate/internal/apperrors"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(t *testing.T, cfg Config) (*Cache[string, int], *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New[string, int](cfg, WithClock[string, int](clk.now)), clk
}

func TestExpiry(t *testing.T) {
	const ttl = 100 * time.Millisecond

	c, clk := newTestCache(t, Config{MaxSize: 10, TTL: ttl})
	require.NoError(t, c.Set("k", 1))
	clk.advance(ttl - time.Millisecond)
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, 1, v)

	c, clk = newTestCache(t, Config{MaxSize: 10, TTL: ttl})
	require.NoError(t, c.Set("k", 1))
	clk.advance(ttl + time.Millisecond)
	_, ok = c.Get("k")
	require.False(t, ok)
	require.Equal(t, 0, c.Len(), "expired entry is removed on read")
	require.Equal(t, uint64(1), c.Stats().Expired)
}

func TestHasExpires(t *testing.T) {
	c, clk := newTestCache(t, Config{TTL: time.Second})
	require.NoError(t, c.Set("k", 1))
	require.True(t, c.Has("k"))
	clk.advance(2 * time.Second)
	require.False(t, c.Has("k"))
	require.Equal(t, 0, c.Len())
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c, clk := newTestCache(t, Config{MaxSize: 2})
	require.NoError(t, c.Set("k", 1))
	clk.advance(24 * time.Hour)
	require.True(t, c.Has("k"))
}

func TestSetWithTTL(t *testing.T) {
	c, clk := newTestCache(t, Config{TTL: time.Hour})
	require.NoError(t, c.SetWithTTL("short", 1, time.Second))
	require.NoError(t, c.SetWithTTL("forever", 2, 0))
	clk.advance(2 * time.Hour)
	require.False(t, c.Has("short"))
	require.True(t, c.Has("forever"))

	err := c.SetWithTTL("bad", 3, -time.Second)
	require.ErrorIs(t, err, apperrors.ErrCache)
}

func TestFIFOEviction(t *testing.T) {
	const n = 3
	c, _ := newTestCache(t, Config{MaxSize: n})
	for i := 1; i <= n+1; i++ {
		require.NoError(t, c.Set(fmt.Sprintf("k%d", i), i))
	}
	require.False(t, c.Has("k1"))
	for i := 2; i <= n+1; i++ {
		require.True(t, c.Has(fmt.Sprintf("k%d", i)))
	}
	require.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestReadDoesNotRefreshPosition(t *testing.T) {
	c, _ := newTestCache(t, Config{MaxSize: 2})
	require.NoError(t, c.Set("a", 1))
	require.NoError(t, c.Set("b", 2))
	_, _ = c.Get("a")
	require.NoError(t, c.Set("c", 3))
	require.False(t, c.Has("a"))
	require.True(t, c.Has("b"))
}

func TestUpdateInPlaceDoesNotEvict(t *testing.T) {
	var evicted []string
	c := New[string, int](Config{MaxSize: 2}, WithOnEvict[string, int](func(k string, _ int) {
		evicted = append(evicted, k)
	}))
	require.NoError(t, c.Set("a", 1))
	require.NoError(t, c.Set("b", 2))
	require.NoError(t, c.Set("a", 10))
	require.Empty(t, evicted)
	v, _ := c.Get("a")
	require.Equal(t, 10, v)

	// "a" keeps its original slot, so it goes first
	require.NoError(t, c.Set("c", 3))
	require.Equal(t, []string{"a"}, evicted)
	require.Equal(t, []string{"b", "c"}, c.Keys())
}

func TestUpdateConfigShrinks(t *testing.T) {
	c, _ := newTestCache(t, Config{MaxSize: 5, TTL: time.Minute})
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Set(fmt.Sprintf("k%d", i), i))
	}
	size := 2
	ttl := time.Hour
	require.NoError(t, c.UpdateConfig(Update{MaxSize: &size, TTL: &ttl}))
	require.Equal(t, []string{"k3", "k4"}, c.Keys())

	st := c.Stats()
	require.Equal(t, 2, st.Size)
	require.Equal(t, 2, st.MaxSize)
	require.Equal(t, time.Hour, st.TTL)
	require.Equal(t, uint64(3), st.Evictions)

	neg := -time.Second
	require.ErrorIs(t, c.UpdateConfig(Update{TTL: &neg}), apperrors.ErrCache)
}

func TestUnbounded(t *testing.T) {
	c := New[int, int](Config{})
	for i := 0; i < 1000; i++ {
		require.NoError(t, c.Set(i, i))
	}
	require.Equal(t, 1000, c.Len())
}

func TestDeleteClearStats(t *testing.T) {
	c, _ := newTestCache(t, DefaultConfig())
	require.NoError(t, c.Set("a", 1))
	require.True(t, c.Delete("a"))
	require.False(t, c.Delete("a"))

	_, _ = c.Get("a")
	require.NoError(t, c.Set("b", 2))
	_, _ = c.Get("b")
	st := c.Stats()
	require.Equal(t, uint64(1), st.Hits)
	require.Equal(t, uint64(1), st.Misses)
	require.Equal(t, DefaultMaxSize, st.MaxSize)
	require.Equal(t, DefaultTTL, st.TTL)

	c.Clear()
	require.Equal(t, 0, c.Len())
	require.Empty(t, c.Keys())
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int, int](Config{MaxSize: 16})
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_ = c.Set(w*1000+i, i)
				c.Get(i)
				c.Has(w)
			}
		}(w)
	}
	wg.Wait()
	require.LessOrEqual(t, c.Len(), 16)
}
