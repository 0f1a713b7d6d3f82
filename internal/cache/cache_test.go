package cache

import (
	"testing"
	"time"
)

// ristretto admits writes asynchronously, so reads poll with a deadline.
func eventuallyGet(t *testing.T, c *Cache, key string) ([]byte, bool) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if v, ok := c.Get(key); ok {
			return v, true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil, false
}

func TestCache_SetAndGet(t *testing.T) {
	c, err := New(1<<20, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c.Set("key", []byte("value"))

	v, ok := eventuallyGet(t, c, "key")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(v) != "value" {
		t.Errorf("expected value, got %q", v)
	}
}

func TestCache_Expiry(t *testing.T) {
	c, err := New(1<<20, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c.Set("key", []byte("value"))
	if _, ok := eventuallyGet(t, c, "key"); !ok {
		t.Fatal("expected cache hit before expiry")
	}

	time.Sleep(50 * time.Millisecond)
	if _, ok := c.Get("key"); ok {
		t.Error("expected entry to expire")
	}
}

func TestCache_Del(t *testing.T) {
	c, err := New(1<<20, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c.Set("key", []byte("value"))
	if _, ok := eventuallyGet(t, c, "key"); !ok {
		t.Fatal("expected cache hit")
	}

	c.Del("key")
	if _, ok := c.Get("key"); ok {
		t.Error("expected entry deleted")
	}
}

func TestCache_Miss(t *testing.T) {
	c, err := New(1<<20, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, ok := c.Get("absent"); ok {
		t.Error("expected miss for absent key")
	}
}
