// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about layout runs, sync activity, and cache operations.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, DataDog, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetLayoutHooks(&myLayoutHooks{})
//	    observability.SetSyncHooks(&mySyncHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Layout().OnLayoutStart(ctx, docID, nodeCount)
//	// ... place nodes ...
//	observability.Layout().OnLayoutComplete(ctx, docID, nodeCount, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Layout Hooks
// =============================================================================

// LayoutHooks receives events from full-document layout runs.
type LayoutHooks interface {
	// OnLayoutStart fires before a full-document resolution run.
	OnLayoutStart(ctx context.Context, docID string, nodeCount int)

	// OnLayoutComplete fires after resolution. converged reports whether
	// every sibling group separated within the iteration cap.
	OnLayoutComplete(ctx context.Context, docID string, nodeCount int, converged bool, duration time.Duration)
}

// =============================================================================
// Sync Hooks
// =============================================================================

// SyncHooks receives events from the sync engine.
type SyncHooks interface {
	// Push events cover single-document uploads from the queue worker.
	OnPushStart(ctx context.Context, docID string)
	OnPushComplete(ctx context.Context, docID string, duration time.Duration, err error)

	// Sync events cover full vault passes.
	OnSyncStart(ctx context.Context, vaultID string)
	OnSyncComplete(ctx context.Context, vaultID string, downloads, uploads, conflicts int, duration time.Duration, err error)

	// OnConflict records a detected conflict, before resolution.
	OnConflict(ctx context.Context, docID string)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopLayoutHooks is a no-op implementation of LayoutHooks.
type NoopLayoutHooks struct{}

func (NoopLayoutHooks) OnLayoutStart(context.Context, string, int) {}
func (NoopLayoutHooks) OnLayoutComplete(context.Context, string, int, bool, time.Duration) {
}

// NoopSyncHooks is a no-op implementation of SyncHooks.
type NoopSyncHooks struct{}

func (NoopSyncHooks) OnPushStart(context.Context, string)                          {}
func (NoopSyncHooks) OnPushComplete(context.Context, string, time.Duration, error) {}
func (NoopSyncHooks) OnSyncStart(context.Context, string)                          {}
func (NoopSyncHooks) OnSyncComplete(context.Context, string, int, int, int, time.Duration, error) {
}
func (NoopSyncHooks) OnConflict(context.Context, string) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	layoutHooks LayoutHooks = NoopLayoutHooks{}
	syncHooks   SyncHooks   = NoopSyncHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	hooksMu     sync.RWMutex
)

// SetLayoutHooks registers custom layout hooks.
// This should be called once at application startup before any layout operations.
func SetLayoutHooks(h LayoutHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		layoutHooks = h
	}
}

// SetSyncHooks registers custom sync hooks.
// This should be called once at application startup before any sync operations.
func SetSyncHooks(h SyncHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		syncHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Layout returns the registered layout hooks.
func Layout() LayoutHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return layoutHooks
}

// Sync returns the registered sync hooks.
func Sync() SyncHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return syncHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	layoutHooks = NoopLayoutHooks{}
	syncHooks = NoopSyncHooks{}
	cacheHooks = NoopCacheHooks{}
}
