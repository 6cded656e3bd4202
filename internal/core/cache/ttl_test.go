package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTL_SetGet(t *testing.T) {
	c := NewTTL[string]()

	c.Set("k", "v", time.Minute)
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestTTL_Expiry(t *testing.T) {
	c := NewTTL[int]()
	current := time.Now()
	c.now = func() time.Time { return current }

	c.Set("k", 42, time.Minute)

	_, ok := c.Get("k")
	assert.True(t, ok)

	current = current.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestTTL_Overwrite(t *testing.T) {
	c := NewTTL[int]()

	c.Set("k", 1, time.Minute)
	c.Set("k", 2, time.Minute)

	got, _ := c.Get("k")
	assert.Equal(t, 2, got)
	assert.Equal(t, 1, c.Len())
}

func TestTTL_DeleteAndFlush(t *testing.T) {
	c := NewTTL[int]()

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Flush()
	assert.Equal(t, 0, c.Len())
}

func TestTTL_ConcurrentAccess(t *testing.T) {
	c := NewTTL[int]()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("shared", n, time.Minute)
				c.Get("shared")
			}
		}(i)
	}
	wg.Wait()

	_, ok := c.Get("shared")
	assert.True(t, ok)
}
