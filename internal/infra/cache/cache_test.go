package cache_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/burgerhero/burgerhero-bff/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected cache entry to be expired")
	}
	if n := c.Len(); n != 0 {
		t.Errorf("expected 0 live entries, got %d", n)
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	c.Delete("key1")

	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_GetOrCreateBuildsOnce(t *testing.T) {
	c := cache.New[*int](5 * time.Minute)
	defer c.Close()

	var built atomic.Int32
	var wg sync.WaitGroup
	results := make([]*int, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrCreate("device-1", func() (*int, error) {
				built.Add(1)
				time.Sleep(10 * time.Millisecond)
				v := 42
				return &v, nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	if built.Load() != 1 {
		t.Fatalf("expected a single build, got %d", built.Load())
	}
	for _, r := range results {
		if r != results[0] {
			t.Fatal("expected every caller to observe the same value")
		}
	}
}

func TestCache_GetOrCreateDoesNotCacheErrors(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	_, err := c.GetOrCreate("device-1", func() (string, error) {
		return "", errors.New("backend down")
	})
	if err == nil {
		t.Fatal("expected the build error")
	}
	if _, ok := c.Get("device-1"); ok {
		t.Fatal("failed build must not be cached")
	}

	v, err := c.GetOrCreate("device-1", func() (string, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Fatalf("expected ok, got %q, %v", v, err)
	}
}

func TestCache_SlowBuildDoesNotBlockOtherKeys(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()
	c.Set("device-2", "ready")

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = c.GetOrCreate("device-1", func() (string, error) {
			close(started)
			<-release
			return "slow", nil
		})
	}()
	<-started
	defer close(release)

	done := make(chan struct{})
	go func() {
		c.Get("device-2")
		c.Set("device-3", "x")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cache stayed locked while another key was being built")
	}
}
