package cache

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		err := cache.Set(ctx, "key1", []byte("value1"), time.Minute)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, "key2", []byte("value2"), time.Minute)

		err := cache.Delete(ctx, "key2")
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, "expiring", []byte("temp"), 10*time.Millisecond)

		// Should be available immediately
		val, _ := cache.Get(ctx, "expiring")
		if val == nil {
			t.Error("expected value before expiration")
		}

		// Wait for expiration
		time.Sleep(20 * time.Millisecond)

		val, _ = cache.Get(ctx, "expiring")
		if val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, "c", []byte("3"), time.Minute)

		// Access 'a' to make it recently used
		_, _ = smallCache.Get(ctx, "a")

		// Add 'd' - should evict 'b' (oldest accessed)
		_ = smallCache.Set(ctx, "d", []byte("4"), time.Minute)

		// 'b' should be evicted
		val, _ := smallCache.Get(ctx, "b")
		if val != nil {
			t.Error("expected 'b' to be evicted")
		}

		// 'a' should still be there
		val, _ = smallCache.Get(ctx, "a")
		if val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(50)
		_ = statsCache.Set(ctx, "k1", []byte("v1"), time.Minute)
		_ = statsCache.Set(ctx, "k2", []byte("v2"), time.Minute)

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
		_ = testCache.Set(ctx, "k", []byte("v"), time.Minute)

		err := testCache.Close()
		if err != nil {
			t.Errorf("Close failed: %v", err)
		}

		// Cache should be empty after close
		val, _ := testCache.Get(ctx, "k")
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
		if !ierr.IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("RedisUnreachable", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type:      "redis",
			RedisAddr: "127.0.0.1:1",
		}

		_, err := New(cfg)
		if err == nil {
			t.Fatal("expected error for unreachable redis")
		}
		if ierr.Hint(err) == "" {
			t.Error("expected a hint naming the redis address")
		}
	})
}

func TestLRUCacheKeysAreIndependent(t *testing.T) {
	cache := NewLRUCache(10)
	ctx := context.Background()

	_ = cache.Set(ctx, PlanKey(1), []byte("a"), time.Minute)
	_ = cache.Set(ctx, CompanyKey(1), []byte("b"), time.Minute)

	val1, _ := cache.Get(ctx, PlanKey(1))
	val2, _ := cache.Get(ctx, CompanyKey(1))
	if string(val1) != "a" || string(val2) != "b" {
		t.Errorf("expected a/b, got %s/%s", val1, val2)
	}

	// Overwrite refreshes the value in place
	_ = cache.Set(ctx, PlanKey(1), []byte("c"), time.Minute)
	val1, _ = cache.Get(ctx, PlanKey(1))
	if string(val1) != "c" {
		t.Errorf("expected c, got %s", val1)
	}
	if size, _ := cache.Stats(); size != 2 {
		t.Errorf("expected size 2, got %d", size)
	}
}

func TestCatalogKeys(t *testing.T) {
	if PlanKey(7) == CompanyKey(7) {
		t.Fatal("plan and company keys must not collide")
	}
	if FeaturesKey(1, 23) == FeaturesKey(12, 3) {
		t.Fatal("features keys must separate company and plan ids")
	}

	tests := []struct {
		name      string
		planID    int64
		companyID int64
		want      []string
	}{
		{"PlanOnly", 4, 0, []string{PlanKey(4)}},
		{"CompanyOnly", 0, 9, []string{CompanyKey(9)}},
		{"Both", 4, 9, []string{PlanKey(4), CompanyKey(9), FeaturesKey(9, 4)}},
		{"Neither", 0, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CatalogKeys(tt.planID, tt.companyID)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("key %d: expected %s, got %s", i, tt.want[i], got[i])
				}
			}
		})
	}
}
