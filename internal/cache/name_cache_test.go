package cache

import (
	"fmt"
	"testing"
)

func TestNameCachePutGet(t *testing.T) {
	c := NewNameCache(10)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) = ok, want miss")
	}

	c.Put("Ivanov", 7)
	id, ok := c.Get("Ivanov")
	if !ok || id != 7 {
		t.Errorf("Get(Ivanov) = (%d, %v), want (7, true)", id, ok)
	}

	// Overwrite keeps a single entry
	c.Put("Ivanov", 9)
	id, _ = c.Get("Ivanov")
	if id != 9 || c.Len() != 1 {
		t.Errorf("after overwrite: id=%d len=%d, want id=9 len=1", id, c.Len())
	}
}

func TestNameCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewNameCache(3)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	// Touch "a" so "b" becomes the eviction candidate
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Get(a) missed")
	}

	c.Put("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("b survived eviction, want evicted")
	}
	for name, want := range map[string]int64{"a": 1, "c": 3, "d": 4} {
		id, ok := c.Get(name)
		if !ok || id != want {
			t.Errorf("Get(%s) = (%d, %v), want (%d, true)", name, id, ok, want)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
}

func TestNameCacheBoundedUnderChurn(t *testing.T) {
	c := NewNameCache(50)
	for i := 0; i < 10_000; i++ {
		c.Put(fmt.Sprintf("rep-%d", i), int64(i))
	}
	if c.Len() != 50 {
		t.Errorf("Len() = %d, want 50", c.Len())
	}
}

func TestNameCacheClear(t *testing.T) {
	c := NewNameCache(4)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("Get(a) after Clear = ok, want miss")
	}
}
