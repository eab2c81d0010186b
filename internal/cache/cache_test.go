package cache

import (
	"context"
	"testing"
	"time"

	"github.com/open-hospitality/kestrel/internal/domain"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()
	venueID := "venue-001"

	t.Run("SetAndGet", func(t *testing.T) {
		err := cache.Set(ctx, venueID, "key1", []byte("value1"), time.Minute)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, venueID, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, venueID, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, venueID, "key2", []byte("value2"), time.Minute)

		err := cache.Delete(ctx, venueID, "key2")
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, venueID, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, venueID, "expiring", []byte("temp"), 10*time.Millisecond)

		// Should be available immediately
		val, _ := cache.Get(ctx, venueID, "expiring")
		if val == nil {
			t.Error("expected value before expiration")
		}

		// Wait for expiration
		time.Sleep(20 * time.Millisecond)

		val, _ = cache.Get(ctx, venueID, "expiring")
		if val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, venueID, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, venueID, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, venueID, "c", []byte("3"), time.Minute)

		// Access 'a' to make it recently used
		_, _ = smallCache.Get(ctx, venueID, "a")

		// Add 'd' - should evict 'b' (oldest accessed)
		_ = smallCache.Set(ctx, venueID, "d", []byte("4"), time.Minute)

		// 'b' should be evicted
		val, _ := smallCache.Get(ctx, venueID, "b")
		if val != nil {
			t.Error("expected 'b' to be evicted")
		}

		// 'a' should still be there
		val, _ = smallCache.Get(ctx, venueID, "a")
		if val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("VenueIsolation", func(t *testing.T) {
		venue1 := "venue-001"
		venue2 := "venue-002"

		_ = cache.Set(ctx, venue1, "shared-key", []byte("venue1-value"), time.Minute)
		_ = cache.Set(ctx, venue2, "shared-key", []byte("venue2-value"), time.Minute)

		val1, _ := cache.Get(ctx, venue1, "shared-key")
		val2, _ := cache.Get(ctx, venue2, "shared-key")

		if string(val1) != "venue1-value" {
			t.Errorf("expected 'venue1-value', got '%s'", string(val1))
		}
		if string(val2) != "venue2-value" {
			t.Errorf("expected 'venue2-value', got '%s'", string(val2))
		}
	})

	t.Run("RequiresVenueID", func(t *testing.T) {
		err := cache.Set(ctx, "", "key", []byte("value"), time.Minute)
		if err == nil {
			t.Error("expected error for empty venueID")
		}

		_, err = cache.Get(ctx, "", "key")
		if err == nil {
			t.Error("expected error for empty venueID")
		}
	})

	t.Run("IncrementCounter", func(t *testing.T) {
		window := 100 * time.Millisecond

		count1, err := cache.IncrementCounter(ctx, venueID, "nosale:emp-001", window)
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if count1 != 1 {
			t.Errorf("expected count 1, got %d", count1)
		}

		count2, _ := cache.IncrementCounter(ctx, venueID, "nosale:emp-001", window)
		if count2 != 2 {
			t.Errorf("expected count 2, got %d", count2)
		}

		// Wait for window to expire
		time.Sleep(150 * time.Millisecond)

		count3, _ := cache.IncrementCounter(ctx, venueID, "nosale:emp-001", window)
		if count3 != 1 {
			t.Errorf("expected count 1 after window reset, got %d", count3)
		}
	})

	t.Run("BaselineCache", func(t *testing.T) {
		b := &domain.Baseline{
			EmployeeID:  "emp-001",
			AvgVoidRate: 0.025,
			AvgTicket:   31.50,
			AvgHourlyTx: 14.2,
			SampleDays:  60,
		}

		err := cache.SetBaseline(ctx, venueID, b, time.Minute)
		if err != nil {
			t.Fatalf("SetBaseline failed: %v", err)
		}

		retrieved, err := cache.GetBaseline(ctx, venueID, "emp-001")
		if err != nil {
			t.Fatalf("GetBaseline failed: %v", err)
		}

		if retrieved.AvgVoidRate != b.AvgVoidRate {
			t.Errorf("expected AvgVoidRate %.3f, got %.3f", b.AvgVoidRate, retrieved.AvgVoidRate)
		}
		if retrieved.SampleDays != b.SampleDays {
			t.Errorf("expected SampleDays %d, got %d", b.SampleDays, retrieved.SampleDays)
		}

		miss, err := cache.GetBaseline(ctx, venueID, "emp-unknown")
		if err != nil {
			t.Fatalf("GetBaseline miss failed: %v", err)
		}
		if miss != nil {
			t.Errorf("expected nil on baseline miss, got %+v", miss)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(50)
		_ = statsCache.Set(ctx, venueID, "k1", []byte("v1"), time.Minute)
		_ = statsCache.Set(ctx, venueID, "k2", []byte("v2"), time.Minute)

		size, capacity := statsCache.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 50 {
			t.Errorf("expected capacity 50, got %d", capacity)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		testCache := NewLRUCache(10)
		_ = testCache.Set(ctx, venueID, "k", []byte("v"), time.Minute)

		err := testCache.Close()
		if err != nil {
			t.Errorf("Close failed: %v", err)
		}

		// Cache should be empty after close
		val, _ := testCache.Get(ctx, venueID, "k")
		if val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type:         "memory",
			LocalMaxSize: 100,
		}

		cache, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		_, ok := cache.(*LRUCache)
		if !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type: "memcached",
		}

		_, err := New(cfg)
		if err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}
