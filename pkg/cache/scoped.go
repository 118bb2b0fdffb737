package cache

// ScopedKeyer prefixes every key so multiple remotes can share one cache
// backend without colliding. Scope by the remote endpoint (or account)
// when the same vault id may exist on more than one remote:
//
//	keyer := cache.NewScopedKeyer(nil, "remote:"+cache.Hash([]byte(endpoint))[:12]+":")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer that prepends prefix to every key the
// inner keyer produces. A nil inner falls back to the default keyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// ManifestKey implements [Keyer].
func (k *ScopedKeyer) ManifestKey(vaultID string) string {
	return k.prefix + k.inner.ManifestKey(vaultID)
}

// ContentKey implements [Keyer].
func (k *ScopedKeyer) ContentKey(fileID, checksum string) string {
	return k.prefix + k.inner.ContentKey(fileID, checksum)
}
