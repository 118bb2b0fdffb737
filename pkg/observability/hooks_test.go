package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	// Layout hooks
	l := NoopLayoutHooks{}
	l.OnLayoutStart(ctx, "doc-1", 40)
	l.OnLayoutComplete(ctx, "doc-1", 40, true, time.Second)

	// Sync hooks
	s := NoopSyncHooks{}
	s.OnPushStart(ctx, "doc-1")
	s.OnPushComplete(ctx, "doc-1", time.Second, nil)
	s.OnSyncStart(ctx, "vault-1")
	s.OnSyncComplete(ctx, "vault-1", 2, 1, 0, time.Second, nil)
	s.OnConflict(ctx, "doc-1")

	// Cache hooks
	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "manifest")
	c.OnCacheMiss(ctx, "content")
	c.OnCacheSet(ctx, "content", 1024)
}

func TestGlobalHooksRegistry(t *testing.T) {
	// Reset to known state
	Reset()

	// Verify defaults are noop
	if _, ok := Layout().(NoopLayoutHooks); !ok {
		t.Error("Layout() should return NoopLayoutHooks by default")
	}
	if _, ok := Sync().(NoopSyncHooks); !ok {
		t.Error("Sync() should return NoopSyncHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}

	// Set custom hooks
	customLayout := &testLayoutHooks{}
	SetLayoutHooks(customLayout)
	if Layout() != customLayout {
		t.Error("SetLayoutHooks should set custom hooks")
	}

	customSync := &testSyncHooks{}
	SetSyncHooks(customSync)
	if Sync() != customSync {
		t.Error("SetSyncHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	// Reset and verify
	Reset()
	if _, ok := Layout().(NoopLayoutHooks); !ok {
		t.Error("Reset() should restore NoopLayoutHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testSyncHooks{}
	SetSyncHooks(custom)

	// Setting nil should be ignored
	SetSyncHooks(nil)

	if Sync() != custom {
		t.Error("SetSyncHooks(nil) should be ignored")
	}

	Reset()
}

// Test implementations
type testLayoutHooks struct{ NoopLayoutHooks }
type testSyncHooks struct{ NoopSyncHooks }
type testCacheHooks struct{ NoopCacheHooks }
