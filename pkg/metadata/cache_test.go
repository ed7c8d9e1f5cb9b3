package metadata

import (
	"sync"
	"testing"
	"time"
)

// fakeNow installs a controllable clock on a cache and returns the
// advance function.
func fakeNow(c *Cache) func(d time.Duration) {
	var mu sync.Mutex
	current := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	return func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(d)
	}
}

// TestCache tests TTL cache semantics.
func TestCache(t *testing.T) {
	meta := Aircraft{
		ICAO24:       "4ca1fc",
		Registration: "G-EUYV",
		Manufacturer: "Airbus",
		Type:         "A319-131",
		Operator:     "British Airways",
	}

	t.Run("Put then Get returns stored value", func(t *testing.T) {
		cache := NewCache(time.Hour)
		cache.Put(meta)

		got, ok := cache.Get("4ca1fc")
		if !ok {
			t.Fatal("Expected cache hit")
		}
		if got != meta {
			t.Errorf("Expected %+v, got %+v", meta, got)
		}
	})

	t.Run("Keys are case-insensitive", func(t *testing.T) {
		cache := NewCache(time.Hour)
		cache.Put(meta)

		if _, ok := cache.Get("4CA1FC"); !ok {
			t.Error("Expected hit for upper-case key")
		}
	})

	t.Run("Miss for unknown aircraft", func(t *testing.T) {
		cache := NewCache(time.Hour)
		if _, ok := cache.Get("abcdef"); ok {
			t.Error("Expected miss for unknown key")
		}
	})

	t.Run("Expired entry is a miss", func(t *testing.T) {
		cache := NewCache(time.Hour)
		advance := fakeNow(cache)
		cache.Put(meta)

		advance(time.Hour + time.Second)
		if _, ok := cache.Get("4ca1fc"); ok {
			t.Error("Expected miss after TTL elapsed")
		}
		// The stale entry remains until overwritten
		if cache.Len() != 1 {
			t.Errorf("Expected stale entry to remain, Len = %d", cache.Len())
		}
	})

	t.Run("Hit just before expiry", func(t *testing.T) {
		cache := NewCache(time.Hour)
		advance := fakeNow(cache)
		cache.Put(meta)

		advance(time.Hour - time.Second)
		if _, ok := cache.Get("4ca1fc"); !ok {
			t.Error("Expected hit before TTL elapsed")
		}
	})

	t.Run("Put overwrites and restarts TTL", func(t *testing.T) {
		cache := NewCache(time.Hour)
		advance := fakeNow(cache)
		cache.Put(meta)

		advance(2 * time.Hour)
		refreshed := meta
		refreshed.Operator = "New Operator"
		cache.Put(refreshed)

		got, ok := cache.Get("4ca1fc")
		if !ok {
			t.Fatal("Expected hit after refresh")
		}
		if got.Operator != "New Operator" {
			t.Errorf("Expected refreshed record, got %+v", got)
		}
	})

	t.Run("Concurrent readers with one writer", func(t *testing.T) {
		cache := NewCache(time.Hour)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for i := 0; i < 1000; i++ {
				cache.Put(meta)
			}
		}()

		var wg sync.WaitGroup
		for r := 0; r < 4; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 1000; i++ {
					cache.Get("4ca1fc")
					cache.Len()
				}
			}()
		}
		wg.Wait()
		<-done
	})
}

// TestDescription tests airframe description assembly.
func TestDescription(t *testing.T) {
	tests := []struct {
		name     string
		meta     Aircraft
		expected string
	}{
		{"Manufacturer and type", Aircraft{Manufacturer: "Airbus", Type: "A319-131"}, "Airbus A319-131"},
		{"Manufacturer only", Aircraft{Manufacturer: "Boeing"}, "Boeing"},
		{"Type only", Aircraft{Type: "B738"}, "B738"},
		{"Empty", Aircraft{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.meta.Description(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
