package cache

import (
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := NewLRU[string](4, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) = true, want false")
	}

	c.Set("a", "one")
	got, ok := c.Get("a")
	if !ok || got != "one" {
		t.Errorf("Get(a) = %q, %v, want one, true", got, ok)
	}

	c.Set("a", "two")
	got, _ = c.Get("a")
	if got != "two" {
		t.Errorf("Get(a) after overwrite = %q, want two", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	// Touch "a" so "b" becomes the eviction candidate.
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive eviction")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
}

func TestExpiry(t *testing.T) {
	c := NewLRU[int](4, 10*time.Millisecond)
	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("Get(expired) = true, want false")
	}
	if c.Len() != 0 {
		t.Errorf("Len() after expired read = %d, want 0", c.Len())
	}
}

func TestInvalidate(t *testing.T) {
	c := NewLRU[int](4, time.Minute)
	c.Set("a", 1)
	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Error("Get(invalidated) = true, want false")
	}
	c.Invalidate("a") // idempotent
}

func TestSweepRemovesExpired(t *testing.T) {
	c := NewLRU[int](8, 10*time.Millisecond)
	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	c.Set("c", 3)

	if n := c.sweep(); n != 2 {
		t.Errorf("sweep() = %d, want 2", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len() after sweep = %d, want 1", c.Len())
	}
}
