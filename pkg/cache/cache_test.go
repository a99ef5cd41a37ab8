package cache

import (
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	c := New[string](time.Minute)
	c.Set("name:u1", "Jane Agent")
	val, ok := c.Get("name:u1")
	if !ok || val != "Jane Agent" {
		t.Fatalf("expected Jane Agent, got %v, exists=%v", val, ok)
	}
}

func TestExpiration(t *testing.T) {
	c := New[string](time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("name:u1", "Jane")

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, ok := c.Get("name:u1"); ok {
		t.Fatalf("expected expired key to return false")
	}
}

func TestDisabledWithZeroTTL(t *testing.T) {
	c := New[string](0)
	c.Set("name:u1", "Jane")
	if _, ok := c.Get("name:u1"); ok {
		t.Fatalf("expected zero ttl to disable caching")
	}
	if c.Len() != 0 {
		t.Fatalf("expected no stored entries, got %d", c.Len())
	}
}

func TestDelete(t *testing.T) {
	c := New[int](time.Minute)
	c.Set("k", 1)
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected deleted key to return false")
	}
}

func TestInvalidate(t *testing.T) {
	c := New[string](time.Minute)
	c.Set("Bank:u1", "a")
	c.Set("Bank:u2", "b")
	c.Set("Airline:u1", "c")
	c.Invalidate("Bank:")
	_, ok1 := c.Get("Bank:u1")
	_, ok2 := c.Get("Bank:u2")
	_, ok3 := c.Get("Airline:u1")
	if ok1 || ok2 {
		t.Fatalf("expected Bank keys to be invalidated")
	}
	if !ok3 {
		t.Fatalf("expected Airline:u1 to still exist")
	}
}
