// Package sync keeps local documents and a remote vault convergent
// without ever blocking the editing path on the network.
//
// The local store is the source of truth: saves land there first and a
// background worker pushes them out one at a time. Loads return the
// local copy immediately and reconcile against the remote in the
// background, overwriting only when the remote copy is strictly newer
// (whole-document last-write-wins, no field merges). Vault-wide
// convergence runs as a locked partial-sync pass that diffs repository
// manifests and applies the plan in both directions.
//
// A [Manager] owns the moving parts; [Tracker] and [Bus] are injected
// context objects so several managers can share them or tests can watch
// them directly.
package sync

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/canopyhq/canopy/pkg/cache"
	"github.com/canopyhq/canopy/pkg/document"
	"github.com/canopyhq/canopy/pkg/errors"
	"github.com/canopyhq/canopy/pkg/observability"
	"github.com/canopyhq/canopy/pkg/provider"
	"github.com/canopyhq/canopy/pkg/store"
)

const (
	defaultDebounce  = 250 * time.Millisecond
	defaultQueueSize = 256

	// reconcileTimeout bounds one background reconciliation fetch.
	reconcileTimeout = 30 * time.Second
	// releaseTimeout bounds the deferred lock release so a dead remote
	// cannot hang a finished pass.
	releaseTimeout = 10 * time.Second
)

// Options configures a [Manager]. Store and Provider are required;
// everything else has a working default.
type Options struct {
	// Store is the local persistence backend.
	Store store.Store
	// Provider is the remote backend. Use provider.NewMemoryProvider for
	// purely local setups.
	Provider provider.Provider

	// Tracker records structural changes between passes. Nil gets a
	// fresh one.
	Tracker *Tracker
	// Bus receives vault events. Nil gets a fresh one.
	Bus *Bus
	// Cache holds remote fetch results. Nil disables caching.
	Cache cache.Cache
	// Keyer builds cache keys. Nil uses the default keyer.
	Keyer cache.Keyer
	// Logger, nil means log.Default().
	Logger *log.Logger

	// Policy settles conflicts during SyncVault. Default PolicyAsk.
	Policy ConflictPolicy
	// Resolver handles conflicts under PolicyAsk. Nil skips them all.
	Resolver ConflictResolver

	// Debounce is the pause between queued pushes.
	Debounce time.Duration
	// QueueSize caps ids waiting for push.
	QueueSize int
	// Owner identifies this manager in remote lock markers. Default
	// hostname plus a random suffix.
	Owner string
	// FolderName is the remote folder used for documents outside any
	// vault and for vaults without a name.
	FolderName string
}

// ValidateAndSetDefaults checks required fields and fills the rest.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Store == nil {
		return errors.New(errors.ErrCodeInvalidConfig, "sync manager needs a store")
	}
	if o.Provider == nil {
		return errors.New(errors.ErrCodeInvalidConfig, "sync manager needs a provider")
	}
	if o.Tracker == nil {
		o.Tracker = NewTracker()
	}
	if o.Bus == nil {
		o.Bus = NewBus()
	}
	if o.Cache == nil {
		o.Cache = cache.NewNullCache()
	}
	if o.Keyer == nil {
		o.Keyer = cache.NewDefaultKeyer()
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Policy == "" {
		o.Policy = PolicyAsk
	}
	if !o.Policy.Valid() {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown conflict policy %q", o.Policy)
	}
	if o.Debounce <= 0 {
		o.Debounce = defaultDebounce
	}
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.Owner == "" {
		host, _ := os.Hostname()
		if host == "" {
			host = "canopy"
		}
		o.Owner = host + "-" + uuid.NewString()[:8]
	}
	if o.FolderName == "" {
		o.FolderName = "canopy"
	}
	return nil
}

// keyedMutex hands out one mutex per id so same-document work
// serializes without a global lock. Entries are reference-counted and
// dropped once the last holder unlocks, so the map stays bounded by the
// number of ids currently in flight.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

// lock acquires the mutex for id and returns its unlock function.
func (k *keyedMutex) lock(id string) (unlock func()) {
	k.mu.Lock()
	if k.m == nil {
		k.m = make(map[string]*keyedLock)
	}
	l, ok := k.m[id]
	if !ok {
		l = &keyedLock{}
		k.m[id] = l
	}
	l.refs++
	k.mu.Unlock()
	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.m, id)
		}
		k.mu.Unlock()
	}
}

// Manager is the sync engine: local-first document CRUD, a serialized
// background push queue, read-path reconciliation, and the vault-wide
// partial-sync pass. Construct with [NewManager]; Close stops the
// worker.
type Manager struct {
	opts    Options
	store   store.Store
	prov    provider.Provider
	tracker *Tracker
	bus     *Bus
	cache   cache.Cache
	keyer   cache.Keyer
	logger  *log.Logger

	queue   chan string
	pendMu  sync.Mutex
	pending map[string]bool

	reconciles singleflight.Group
	locks      keyedMutex

	// syncMu serializes partial-sync passes locally; the remote lock
	// marker handles other peers.
	syncMu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewManager validates opts, starts the push worker, and returns the
// manager.
func NewManager(opts Options) (*Manager, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		opts:    opts,
		store:   opts.Store,
		prov:    opts.Provider,
		tracker: opts.Tracker,
		bus:     opts.Bus,
		cache:   opts.Cache,
		keyer:   opts.Keyer,
		logger:  opts.Logger,
		queue:   make(chan string, opts.QueueSize),
		pending: make(map[string]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
	m.wg.Add(1)
	go m.worker()
	return m, nil
}

// Close stops the push worker and waits for an in-flight push to finish.
// The store, provider, and cache stay open; their owner closes them.
func (m *Manager) Close() error {
	m.closeOnce.Do(m.cancel)
	m.wg.Wait()
	return nil
}

// Bus returns the event bus the manager publishes on.
func (m *Manager) Bus() *Bus { return m.bus }

// Tracker returns the change tracker the manager records into.
func (m *Manager) Tracker() *Tracker { return m.tracker }

// Owner returns the lock-owner identity used in remote lock markers.
func (m *Manager) Owner() string { return m.opts.Owner }

// SaveDocument persists doc locally and queues a background push. The
// local write is the source of truth: a storage failure aborts before
// anything is enqueued, and the document is readable the moment this
// returns. The push outcome lands in the document's sync meta.
func (m *Manager) SaveDocument(ctx context.Context, doc *document.Document) error {
	if doc == nil || doc.ID == "" {
		return errors.New(errors.ErrCodeInvalidDocument, "save needs a document with an id")
	}

	// Serialize against an in-flight push of the same id, whose
	// post-upload bookkeeping write would otherwise clobber this save.
	unlock := m.locks.lock(doc.ID)
	defer unlock()

	meta := doc.Meta(document.StatusPending)
	if prev, err := m.getMeta(ctx, doc.ID); err == nil {
		if meta.RemoteRef == "" {
			meta.RemoteRef = prev.RemoteRef
		}
		meta.SyncedAt = prev.SyncedAt
	} else if !errors.IsNotFound(err) {
		return err
	}

	err := m.store.Transaction(ctx, store.ReadWrite, kinds(store.KindDocument, store.KindMeta), func(tx store.Tx) error {
		return putDocumentTx(ctx, tx, doc, meta)
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, err, "save document %s", doc.ID)
	}

	m.tracker.RecordModified(doc.ID)
	m.enqueue(doc.ID)
	return nil
}

// LoadDocument is local-first: a local copy returns immediately, with a
// background reconciliation kicked off when a remote ref is known. With
// no local copy and a known ref the fetch is synchronous; with neither,
// DOCUMENT_NOT_FOUND. remoteRef may be empty when the store already
// knows the ref.
func (m *Manager) LoadDocument(ctx context.Context, id, remoteRef string) (*document.Document, error) {
	doc, err := m.getDocument(ctx, id)
	switch {
	case err == nil:
		ref := remoteRef
		if ref == "" {
			ref = doc.RemoteRef
		}
		if ref != "" {
			m.reconcileAsync(id, ref)
		}
		return doc, nil
	case !errors.IsNotFound(err):
		return nil, err
	}

	if remoteRef == "" {
		if meta, merr := m.getMeta(ctx, id); merr == nil {
			remoteRef = meta.RemoteRef
		}
	}
	if remoteRef == "" {
		return nil, errors.New(errors.ErrCodeDocumentNotFound, "document %s is not in the local store and no remote ref is known", id)
	}
	return m.fetchDocument(ctx, id, remoteRef)
}

// fetchDocument pulls a document from the remote and persists it as
// synced. Used when a load finds no local copy.
func (m *Manager) fetchDocument(ctx context.Context, id, remoteRef string) (*document.Document, error) {
	unlock := m.locks.lock(id)
	defer unlock()

	file, content, err := m.prov.GetFile(ctx, remoteRef)
	if err != nil {
		return nil, err
	}
	doc, err := document.Unmarshal(content)
	if err != nil {
		return nil, err
	}
	if doc.ID != id {
		m.logger.Warn("remote payload id differs from requested id", "requested", id, "payload", doc.ID)
	}
	doc.RemoteRef = remoteRef

	meta := doc.Meta(document.StatusSynced)
	meta.MarkSynced(remoteRef, file.Modified)
	err = m.store.Transaction(ctx, store.ReadWrite, kinds(store.KindDocument, store.KindMeta), func(tx store.Tx) error {
		return putDocumentTx(ctx, tx, doc, meta)
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageWrite, err, "persist fetched document %s", doc.ID)
	}
	m.cacheContent(ctx, remoteRef, content)
	return doc, nil
}

// reconcileAsync refreshes a local document from the remote without
// blocking the caller. Concurrent loads of the same id share one flight.
// Failures are logged and swallowed; the local copy stays authoritative.
func (m *Manager) reconcileAsync(id, remoteRef string) {
	go func() {
		_, err, _ := m.reconciles.Do(id, func() (any, error) {
			ctx, cancel := context.WithTimeout(m.ctx, reconcileTimeout)
			defer cancel()
			return nil, m.reconcile(ctx, id, remoteRef)
		})
		if err != nil {
			m.logger.Debug("background reconcile failed", "doc", id, "err", err)
		}
	}()
}

// reconcile overwrites the local copy only when the remote one is
// strictly newer. Whole-document last-write-wins; no field merges.
func (m *Manager) reconcile(ctx context.Context, id, remoteRef string) error {
	if !m.prov.Online() {
		return nil
	}
	file, content, err := m.prov.GetFile(ctx, remoteRef)
	if err != nil {
		return err
	}
	remote, err := document.Unmarshal(content)
	if err != nil {
		return err
	}
	m.cacheContent(ctx, remoteRef, content)

	unlock := m.locks.lock(id)
	defer unlock()

	local, err := m.getDocument(ctx, id)
	if errors.IsNotFound(err) {
		// Deleted while the fetch was in flight; don't resurrect it.
		return nil
	}
	if err != nil {
		return err
	}
	if !remote.Modified.After(local.Modified) {
		return nil
	}

	remote.RemoteRef = remoteRef
	meta := remote.Meta(document.StatusSynced)
	meta.MarkSynced(remoteRef, file.Modified)
	err = m.store.Transaction(ctx, store.ReadWrite, kinds(store.KindDocument, store.KindMeta), func(tx store.Tx) error {
		return putDocumentTx(ctx, tx, remote, meta)
	})
	if err != nil {
		return err
	}
	m.logger.Debug("reconciled from remote", "doc", id, "remote_modified", remote.Modified)
	return nil
}

// DocumentMeta returns the sync envelope for one document.
func (m *Manager) DocumentMeta(ctx context.Context, id string) (document.Meta, error) {
	return m.getMeta(ctx, id)
}

// Documents lists the sync envelopes of every document, or of one
// vault's documents when vaultID is set.
func (m *Manager) Documents(ctx context.Context, vaultID string) ([]document.Meta, error) {
	var (
		items []store.Item
		err   error
	)
	if vaultID == "" {
		items, err = m.store.QueryByIndex(ctx, store.IndexKind, string(store.KindMeta))
	} else {
		items, err = m.store.QueryByIndex(ctx, store.IndexVault, vaultID)
	}
	if err != nil {
		return nil, err
	}
	metas := make([]document.Meta, 0, len(items))
	for _, it := range items {
		if it.Kind != store.KindMeta {
			continue
		}
		meta, derr := decodeMeta(it.Data)
		if derr != nil {
			m.logger.Warn("skipping unreadable sync meta", "item", it.ID, "err", derr)
			continue
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas, nil
}

// RequeuePending re-enqueues every document whose last push never
// succeeded. Called on startup and before manual syncs so work
// interrupted by a crash or an offline stretch is retried.
func (m *Manager) RequeuePending(ctx context.Context) (int, error) {
	metas, err := m.Documents(ctx, "")
	if err != nil {
		return 0, err
	}
	n := 0
	for _, meta := range metas {
		if meta.Status == document.StatusPending || meta.Status == document.StatusError {
			m.enqueue(meta.ID)
			n++
		}
	}
	return n, nil
}

// cacheContent stores fetched or pushed content under its checksum key.
func (m *Manager) cacheContent(ctx context.Context, ref string, content []byte) {
	key := m.keyer.ContentKey(ref, document.Checksum(content))
	if err := m.cache.Set(ctx, key, content, cache.ContentTTL); err != nil {
		m.logger.Debug("cache content write failed", "ref", ref, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "content", len(content))
}

// cachedContent looks up content by ref and expected checksum. A stale
// or missing entry is a miss, never an error.
func (m *Manager) cachedContent(ctx context.Context, ref, checksum string) ([]byte, bool) {
	if checksum == "" {
		return nil, false
	}
	data, ok, err := m.cache.Get(ctx, m.keyer.ContentKey(ref, checksum))
	if err != nil {
		m.logger.Debug("cache content read failed", "ref", ref, "err", err)
		return nil, false
	}
	if ok {
		observability.Cache().OnCacheHit(ctx, "content")
	} else {
		observability.Cache().OnCacheMiss(ctx, "content")
	}
	return data, ok
}

// remoteName is the provider-side file name for a document.
func remoteName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "untitled"
	}
	return name + ".json"
}
