package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set("a", "1")
	c.Set("a", "2")
	if v, ok := c.Get("a"); !ok || v != "2" {
		t.Fatalf("Get(a) = %q, %v; want 2, true", v, ok)
	}
	if c.Size() != 1 {
		t.Errorf("overwrite should not grow the cache, size = %d", c.Size())
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a") // a is now most recent
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
}

func TestLRUCache_TTL(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)

	c.Set("a", "1")
	clock.advance(30 * time.Second)
	c.Set("b", "2")
	clock.advance(45 * time.Second)

	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("b should still be live")
	}

	clock.advance(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("size = %d after cleanup", c.Size())
	}
}

func TestLRUCache_DeleteAndClear(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), "v")
	}

	c.Delete("k0")
	c.Delete("nope")
	if c.Size() != 4 {
		t.Fatalf("size = %d, want 4", c.Size())
	}

	c.Clear()
	if c.Size() != 0 {
		t.Fatalf("size = %d after Clear", c.Size())
	}
	c.Set("k1", "again")
	if v, ok := c.Get("k1"); !ok || v != "again" {
		t.Fatal("cache should be usable after Clear")
	}
}

func TestLRUCache_Concurrent(t *testing.T) {
	c := NewLRUCache[int](50, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("%d-%d", g, i%20)
				c.Set(key, i)
				c.Get(key)
				if i%50 == 0 {
					c.Clear()
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Size() > 50 {
		t.Errorf("size %d exceeds capacity", c.Size())
	}
}

type countingCleaner struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCleaner) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 1
}

func (c *countingCleaner) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestManager(t *testing.T) {
	m := NewManager()
	a, b := &countingCleaner{}, &countingCleaner{}
	m.Register(a)
	m.Register(b)

	if n := m.CleanAll(); n != 2 {
		t.Fatalf("CleanAll() = %d, want 2", n)
	}

	m.StartCleanup(5 * time.Millisecond)
	deadline := time.Now().Add(time.Second)
	for a.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()
	m.Stop()

	if a.count() < 3 || b.count() < 3 {
		t.Fatalf("expected periodic cleanup, got %d and %d calls", a.count(), b.count())
	}
}
