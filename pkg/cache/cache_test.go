package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if hit || data != nil {
		t.Errorf("Get() = (%v, %v), want miss", data, hit)
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestFileCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}
	defer c.Close()

	if err := c.Set(ctx, "manifest:v1", []byte("payload"), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	data, hit, err := c.Get(ctx, "manifest:v1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !hit || string(data) != "payload" {
		t.Errorf("Get() = (%q, %v), want hit with payload", data, hit)
	}

	if err := c.Delete(ctx, "manifest:v1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, hit, _ := c.Get(ctx, "manifest:v1"); hit {
		t.Error("entry survived Delete")
	}
	if err := c.Delete(ctx, "manifest:v1"); err != nil {
		t.Errorf("Delete() of absent key error = %v, want nil", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}

	if err := c.Set(ctx, "short", []byte("x"), time.Nanosecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, hit, err := c.Get(ctx, "short"); err != nil || hit {
		t.Errorf("Get() after expiry = (hit=%v, err=%v), want clean miss", hit, err)
	}
}

func TestFileCacheZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}

	if err := c.Set(ctx, "pin", []byte("x"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, hit, _ := c.Get(ctx, "pin"); !hit {
		t.Error("zero-ttl entry missing")
	}
}

func TestFileCacheCorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fc, err := NewFileCache(dir)
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}
	c := fc.(*FileCache)

	if err := c.Set(ctx, "key", []byte("x"), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	// Corrupt the stored entry in place.
	if err := os.WriteFile(c.path("key"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt entry: %v", err)
	}

	if _, hit, err := c.Get(ctx, "key"); err != nil || hit {
		t.Errorf("Get() of corrupt entry = (hit=%v, err=%v), want clean miss", hit, err)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	fc, err := NewFileCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}
	c := fc.(*FileCache)

	for _, key := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, key, []byte(key), 0); err != nil {
			t.Fatalf("Set(%s) error = %v", key, err)
		}
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	for _, key := range []string{"a", "b", "c"} {
		if _, hit, _ := c.Get(ctx, key); hit {
			t.Errorf("entry %q survived Clear", key)
		}
	}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	c, err := NewRedisCache("redis://" + srv.Addr())
	if err != nil {
		t.Fatalf("NewRedisCache() error = %v", err)
	}
	defer c.Close()

	if err := c.Set(ctx, "content:abc", []byte("bytes"), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	data, hit, err := c.Get(ctx, "content:abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !hit || string(data) != "bytes" {
		t.Errorf("Get() = (%q, %v), want hit with bytes", data, hit)
	}

	if err := c.Delete(ctx, "content:abc"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, hit, _ := c.Get(ctx, "content:abc"); hit {
		t.Error("entry survived Delete")
	}
}

func TestRedisCacheTTL(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	c := NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
	defer c.Close()

	if err := c.Set(ctx, "manifest:v1", []byte("m"), ManifestTTL); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	srv.FastForward(ManifestTTL + time.Second)

	if _, hit, err := c.Get(ctx, "manifest:v1"); err != nil || hit {
		t.Errorf("Get() after TTL = (hit=%v, err=%v), want clean miss", hit, err)
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	h3 := Hash([]byte("world"))

	if h1 != h2 {
		t.Error("Hash not deterministic")
	}
	if h1 == h3 {
		t.Error("distinct inputs share a hash")
	}
	if len(h1) != 64 {
		t.Errorf("len(hash) = %d, want 64", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	if got := k.ManifestKey("vault-1"); got != "manifest:vault-1" {
		t.Errorf("ManifestKey() = %q", got)
	}

	// Same file at a different checksum must produce a different key.
	k1 := k.ContentKey("file-1", "aaa")
	k2 := k.ContentKey("file-1", "bbb")
	if k1 == k2 {
		t.Error("ContentKey ignores the checksum")
	}
	if !strings.HasPrefix(k1, "content:") {
		t.Errorf("ContentKey() = %q, want content: prefix", k1)
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(NewDefaultKeyer(), "remote:abc:")

	if got := scoped.ManifestKey("vault-1"); got != "remote:abc:manifest:vault-1" {
		t.Errorf("ManifestKey() = %q", got)
	}
	if got := scoped.ContentKey("f", "c"); !strings.HasPrefix(got, "remote:abc:content:") {
		t.Errorf("ContentKey() = %q, want scoped prefix", got)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	scoped := NewScopedKeyer(nil, "p:")
	if got := scoped.ManifestKey("v"); got != "p:manifest:v" {
		t.Errorf("ManifestKey() with nil inner = %q", got)
	}
}
