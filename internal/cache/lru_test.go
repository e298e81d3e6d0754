package cache

import (
	"testing"
	"time"
)

func TestLRUCache_SetGet(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v; want 1, true", v, ok)
	}

	// "b" is now least recently used and gets evicted
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	c.SetWithExpiry("old", "x", time.Now().Add(-time.Second))
	c.Set("new", "y")

	if _, ok := c.Get("old"); ok {
		t.Error("expired entry returned by Get")
	}
	if v, ok := c.Get("new"); !ok || v != "y" {
		t.Errorf("Get(new) = %q, %v", v, ok)
	}
}

func TestLRUCache_Peek(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	c.SetWithExpiry("stale", "v", time.Now().Add(-time.Second))

	v, fresh, found := c.Peek("stale")
	if !found || fresh || v != "v" {
		t.Errorf("Peek(stale) = %q, fresh=%v, found=%v", v, fresh, found)
	}
	if _, _, found := c.Peek("missing"); found {
		t.Error("Peek(missing) reported found")
	}
}

func TestManager_CleanNow(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.SetWithExpiry("a", 1, time.Now().Add(-time.Second))
	c.SetWithExpiry("b", 2, time.Now().Add(-time.Second))
	c.Set("c", 3)

	m := NewManager()
	m.Register(c)
	if n := m.CleanNow(); n != 2 {
		t.Errorf("CleanNow() = %d, want 2", n)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestManager_StartStop(t *testing.T) {
	m := NewManager()
	m.Register(NewLRUCache[int](1, time.Minute))
	m.StartCleanup(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	m.Stop()
}

func TestLRUCache_OnEvict(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	var evicted []string
	c.OnEvict(func(key string, _ int) { evicted = append(evicted, key) })

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3) // pushes out a
	c.SetWithExpiry("b", 2, time.Now().Add(-time.Second))
	c.Get("b") // expired on read
	c.Delete("c")
	c.Set("d", 4)
	c.Purge()

	want := []string{"a", "b", "d"}
	if len(evicted) != len(want) {
		t.Fatalf("evicted = %v, want %v", evicted, want)
	}
	for i := range want {
		if evicted[i] != want[i] {
			t.Fatalf("evicted = %v, want %v", evicted, want)
		}
	}
	if c.Size() != 0 {
		t.Errorf("Size() after Purge = %d", c.Size())
	}
}
