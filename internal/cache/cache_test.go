package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"weatherproxy/internal/models"
)

func payloadFor(city string) models.ForecastPayload {
	return models.ForecastPayload{
		Location: models.Location{Name: city},
		Current:  models.Current{TempC: 12.5},
	}
}

// TestBoundedCache_GetSet verifies that Set stores values and Get retrieves
// them correctly with the expected data.
func TestBoundedCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewBoundedCache(10)

	val := payloadFor("Seattle")
	if err := c.Set(ctx, "seattle", val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "seattle")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.Location.Name != val.Location.Name || got.Current.TempC != val.Current.TempC {
		t.Errorf("Get() = %+v, want %+v", got, val)
	}
}

// TestBoundedCache_Get_Miss verifies that Get returns ok=false when the
// requested key does not exist in cache.
func TestBoundedCache_Get_Miss(t *testing.T) {
	ctx := context.Background()
	c := NewBoundedCache(10)

	_, ok, err := c.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestBoundedCache_Get_Expired verifies that Get returns ok=false for expired
// entries and removes them from cache on access.
func TestBoundedCache_Get_Expired(t *testing.T) {
	ctx := context.Background()
	c := NewBoundedCache(10)

	if err := c.Set(ctx, "seattle", payloadFor("Seattle"), 1*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	time.Sleep(2 * time.Millisecond)

	_, ok, err := c.Get(ctx, "seattle")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for expired entry")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after expired access, want 0", c.Len())
	}
}

// TestBoundedCache_EvictsOldestAtCapacity verifies that inserting past
// capacity evicts the oldest inserted entry and nothing else.
func TestBoundedCache_EvictsOldestAtCapacity(t *testing.T) {
	ctx := context.Background()
	c := NewBoundedCache(3)

	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("city-%d", i)
		if err := c.Set(ctx, key, payloadFor(key), time.Minute); err != nil {
			t.Fatalf("Set(%s) error = %v", key, err)
		}
	}
	if err := c.Set(ctx, "city-3", payloadFor("city-3"), time.Minute); err != nil {
		t.Fatalf("Set(city-3) error = %v", err)
	}

	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (capacity)", c.Len())
	}
	if _, ok, _ := c.Get(ctx, "city-0"); ok {
		t.Error("oldest entry city-0 still present, want evicted")
	}
	for _, key := range []string{"city-1", "city-2", "city-3"} {
		if _, ok, _ := c.Get(ctx, key); !ok {
			t.Errorf("entry %s missing, want present", key)
		}
	}
}

// TestBoundedCache_ResetKeepsCapacity verifies that re-setting an existing key
// does not evict anything and refreshes the entry's insertion position.
func TestBoundedCache_ResetKeepsCapacity(t *testing.T) {
	ctx := context.Background()
	c := NewBoundedCache(2)

	_ = c.Set(ctx, "a", payloadFor("a"), time.Minute)
	_ = c.Set(ctx, "b", payloadFor("b"), time.Minute)
	_ = c.Set(ctx, "a", payloadFor("a2"), time.Minute)

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}

	// "b" is now oldest; adding "c" should evict it, not "a".
	_ = c.Set(ctx, "c", payloadFor("c"), time.Minute)
	if _, ok, _ := c.Get(ctx, "b"); ok {
		t.Error("entry b still present, want evicted as oldest")
	}
	got, ok, _ := c.Get(ctx, "a")
	if !ok {
		t.Fatal("entry a missing after re-set")
	}
	if got.Location.Name != "a2" {
		t.Errorf("entry a = %q, want refreshed value %q", got.Location.Name, "a2")
	}
}

// TestBoundedCache_EvictionHook verifies the hook fires with the right reason
// for capacity and expiry evictions.
func TestBoundedCache_EvictionHook(t *testing.T) {
	ctx := context.Background()
	c := NewBoundedCache(1)

	var mu sync.Mutex
	reasons := make(map[string]int)
	c.SetEvictionHook(func(reason string) {
		mu.Lock()
		reasons[reason]++
		mu.Unlock()
	})

	_ = c.Set(ctx, "a", payloadFor("a"), time.Minute)
	_ = c.Set(ctx, "b", payloadFor("b"), 1*time.Millisecond)
	time.Sleep(2 * time.Millisecond)
	_, _, _ = c.Get(ctx, "b")

	mu.Lock()
	defer mu.Unlock()
	if reasons["capacity"] != 1 {
		t.Errorf("capacity evictions = %d, want 1", reasons["capacity"])
	}
	if reasons["expired"] != 1 {
		t.Errorf("expired evictions = %d, want 1", reasons["expired"])
	}
}

// TestBoundedCache_ConcurrentAccess exercises concurrent Get/Set to catch
// races under the -race detector.
func TestBoundedCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewBoundedCache(50)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d", j%20)
				_ = c.Set(ctx, key, payloadFor(key), time.Minute)
				_, _, _ = c.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 50 {
		t.Errorf("Len() = %d, want <= capacity 50", c.Len())
	}
}
