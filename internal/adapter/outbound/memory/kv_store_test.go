package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/reelgate/reelgate/internal/port/outbound"
)

func TestKVStore_GetSetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewKVStore()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, outbound.ErrKeyNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrKeyNotFound", err)
	}

	if err := s.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(ctx, "b", "2"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get(a) error = %v", err)
	}
	if got != "1" {
		t.Errorf("Get(a) = %q, want %q", got, "1")
	}

	if err := s.Delete(ctx, "a", "never-set"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "a"); !errors.Is(err, outbound.ErrKeyNotFound) {
		t.Errorf("Get(a) after delete error = %v, want ErrKeyNotFound", err)
	}
	if s.Size() != 1 {
		t.Errorf("Size() = %d, want 1", s.Size())
	}
}

func TestKVStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewKVStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			_ = s.Set(ctx, key, fmt.Sprint(i))
			_, _ = s.Get(ctx, key)
			if i%7 == 0 {
				_ = s.Delete(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	if s.Size() > 5 {
		t.Errorf("Size() = %d, want <= 5", s.Size())
	}
}
