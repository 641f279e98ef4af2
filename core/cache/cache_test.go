package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLRUCache_BasicOperations(t *testing.T) {
	c := NewLRUCache[string, int](DefaultConfig())

	c.Put("a", 1)
	c.Put("b", 2)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should miss")
	}
	c.Remove("a")
	if _, ok := c.Get("a"); ok {
		t.Error("Get(a) after Remove should miss")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
}

func TestLRUCache_Eviction(t *testing.T) {
	var evicted []string
	c := NewLRUCache[string, int](Config{
		MaxSize: 2,
		OnEvict: func(key, _ interface{}) { evicted = append(evicted, key.(string)) },
	})
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // b is now least recently used
	c.Put("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should survive")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Errorf("evicted = %v, want [b]", evicted)
	}
	if s := c.Stats(); s.Evictions != 1 || s.Size != 2 || s.MaxSize != 2 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestLRUCache_TTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	orig := timeNow
	timeNow = func() time.Time { return now }
	defer func() { timeNow = orig }()

	c := NewLRUCache[string, int](Config{TTL: time.Minute})
	c.Put("a", 1)
	now = now.Add(30 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Error("entry expired early")
	}
	now = now.Add(time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("entry should have expired")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not removed, Len() = %d", c.Len())
	}
}

func TestStats_HitRate(t *testing.T) {
	c := NewLRUCache[string, int](DefaultConfig())
	if c.Stats().HitRate() != 0 {
		t.Error("HitRate() before lookups should be 0")
	}
	c.Put("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("a")
	c.Get("b")
	if got := c.Stats().HitRate(); got != 0.75 {
		t.Errorf("HitRate() = %v, want 0.75", got)
	}
}

func TestNewLRUCache_NegativeMaxSize(t *testing.T) {
	c := NewLRUCache[int, int](Config{MaxSize: -5})
	for i := 0; i < 100; i++ {
		c.Put(i, i)
	}
	if c.Len() != 100 {
		t.Errorf("Len() = %d, want unlimited", c.Len())
	}
}

func TestLRUCache_Concurrency(t *testing.T) {
	c := NewLRUCache[int, int](Config{MaxSize: 50})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Put(g*1000+i, i)
				c.Get(g*1000 + i/2)
			}
		}(g)
	}
	wg.Wait()
	if c.Len() > 50 {
		t.Errorf("Len() = %d exceeds MaxSize", c.Len())
	}
}

func TestBoundedCache_ByteLimit(t *testing.T) {
	size := func(s string) int64 { return int64(len(s)) }
	b := NewBoundedCache[string, string](Config{}, 10, size)

	b.Put("a", "aaaa")
	b.Put("b", "bbbb")
	if got := b.Stats().TotalBytes; got != 8 {
		t.Fatalf("TotalBytes = %d, want 8", got)
	}
	b.Get("a")
	b.Put("c", "cccc") // evicts b, the least recently used
	if _, ok := b.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := b.Get("a"); !ok {
		t.Error("a should survive")
	}
	if got := b.Stats().TotalBytes; got != 8 {
		t.Errorf("TotalBytes = %d, want 8", got)
	}

	b.Put("huge", "0123456789x")
	if _, ok := b.Get("huge"); ok {
		t.Error("oversized value should not be cached")
	}

	b.Put("a", "aa")
	if got := b.Stats().TotalBytes; got != 6 {
		t.Errorf("TotalBytes after replace = %d, want 6", got)
	}
	b.Remove("a")
	if got := b.Stats().TotalBytes; got != 4 || b.Len() != 1 {
		t.Errorf("after Remove: TotalBytes = %d, Len = %d", got, b.Len())
	}
	b.Clear()
	if b.Len() != 0 || b.Stats().TotalBytes != 0 {
		t.Error("Clear did not reset the cache")
	}
}

func TestBoundedCache_CountLimit(t *testing.T) {
	b := NewBoundedCache[int, string](Config{MaxSize: 3}, 0, func(s string) int64 { return int64(len(s)) })
	for i := 0; i < 5; i++ {
		b.Put(i, "xx")
	}
	if b.Len() != 3 {
		t.Errorf("Len() = %d, want 3", b.Len())
	}
	if got := b.Stats().TotalBytes; got != 6 {
		t.Errorf("TotalBytes = %d, want 6", got)
	}
}

func TestMathCache(t *testing.T) {
	c := NewMathCache(2, 0)
	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("x^%d", i), fmt.Sprintf("<math>%d</math>", i))
	}
	if _, ok := c.Get("x^0"); ok {
		t.Error("oldest conversion should have been evicted")
	}
	if v, ok := c.Get("x^2"); !ok || v != "<math>2</math>" {
		t.Errorf("Get(x^2) = %q, %v", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	if s := c.Stats(); s.Hits != 1 || s.Misses != 1 || s.TotalBytes != int64(2*len("<math>0</math>")) {
		t.Errorf("Stats() = %+v", s)
	}
	c.Clear()
	if c.Len() != 0 || c.Stats().TotalBytes != 0 {
		t.Errorf("after Clear: Len() = %d, Stats() = %+v", c.Len(), c.Stats())
	}
}
