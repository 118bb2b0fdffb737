// Package cache stores remote fetch results so reconciliation and vault
// listings don't re-download unchanged content.
//
// The sync engine consults the cache on read paths (manifest and file
// fetches) and invalidates on writes. Backends: FileCache (XDG cache
// dir), RedisCache (shared between sessions), and NullCache (disabled).
package cache

import (
	"context"
	"time"
)

// Default expirations. Manifests go stale fast because any peer can push;
// content entries are keyed by checksum and only expire to bound disk use.
const (
	ManifestTTL = 5 * time.Minute
	ContentTTL  = time.Hour
)

// Cache is a byte-oriented key-value store with per-entry expiration.
// Get reports a miss with ok == false and a nil error; errors are
// reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Keyer builds cache keys for the sync engine's remote fetches.
type Keyer interface {
	// ManifestKey identifies the cached repository manifest of a vault.
	ManifestKey(vaultID string) string
	// ContentKey identifies cached file content at a specific checksum.
	// Content changes miss naturally because the checksum changes; no
	// explicit invalidation is needed when the checksum is known.
	ContentKey(fileID, checksum string) string
}

// DefaultKeyer produces unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// ManifestKey implements [Keyer].
func (k *DefaultKeyer) ManifestKey(vaultID string) string {
	return "manifest:" + vaultID
}

// ContentKey implements [Keyer].
func (k *DefaultKeyer) ContentKey(fileID, checksum string) string {
	return hashKey("content", fileID, checksum)
}
