package sync

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/canopyhq/canopy/pkg/document"
	"github.com/canopyhq/canopy/pkg/errors"
	"github.com/canopyhq/canopy/pkg/provider"
	"github.com/canopyhq/canopy/pkg/store"
)

// testManager wires a manager to in-memory backends with a fast queue.
// Missing fields in opts get test defaults, not production ones.
func testManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	if opts.Provider == nil {
		opts.Provider = provider.NewMemoryProvider()
	}
	if opts.Debounce == 0 {
		opts.Debounce = time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	m, err := NewManager(opts)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

// waitStatus polls until the document's sync meta reaches want.
func waitStatus(t *testing.T, m *Manager, id string, want document.SyncStatus) document.Meta {
	t.Helper()
	var (
		meta document.Meta
		err  error
	)
	deadline := time.After(2 * time.Second)
	for {
		meta, err = m.DocumentMeta(context.Background(), id)
		if err == nil && meta.Status == want {
			return meta
		}
		select {
		case <-deadline:
			t.Fatalf("document %s never reached %s: meta=%+v err=%v", id, want, meta, err)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestOptionsValidation(t *testing.T) {
	if _, err := NewManager(Options{Provider: provider.NewMemoryProvider()}); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("NewManager() without store error = %v, want INVALID_CONFIG", err)
	}
	if _, err := NewManager(Options{Store: store.NewMemoryStore()}); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("NewManager() without provider error = %v, want INVALID_CONFIG", err)
	}
	if _, err := NewManager(Options{
		Store:    store.NewMemoryStore(),
		Provider: provider.NewMemoryProvider(),
		Policy:   ConflictPolicy("whatever"),
	}); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("NewManager() with bad policy error = %v, want INVALID_CONFIG", err)
	}

	opts := Options{Store: store.NewMemoryStore(), Provider: provider.NewMemoryProvider()}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults() error = %v", err)
	}
	if opts.Policy != PolicyAsk || opts.Owner == "" || opts.Tracker == nil || opts.Bus == nil {
		t.Errorf("defaults not filled: %+v", opts)
	}
}

func TestSaveDocumentIsLocalFirst(t *testing.T) {
	prov := provider.NewMemoryProvider()
	prov.SetOnline(false)
	m := testManager(t, Options{Provider: prov})
	ctx := context.Background()

	doc := document.New("plan")
	if err := m.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("SaveDocument() offline error = %v, save must not touch the network", err)
	}

	// Readable immediately, whatever the push does.
	got, err := m.LoadDocument(ctx, doc.ID, "")
	if err != nil {
		t.Fatalf("LoadDocument() error = %v", err)
	}
	if got.Name != "plan" {
		t.Errorf("Name = %q, want %q", got.Name, "plan")
	}

	// The failed push lands in the meta, not in the caller's lap.
	meta := waitStatus(t, m, doc.ID, document.StatusError)
	if meta.SyncError == "" {
		t.Error("SyncError empty after an offline push")
	}

	prov.SetOnline(true)
	n, err := m.RequeuePending(ctx)
	if err != nil {
		t.Fatalf("RequeuePending() error = %v", err)
	}
	if n != 1 {
		t.Errorf("RequeuePending() = %d, want 1", n)
	}
	meta = waitStatus(t, m, doc.ID, document.StatusSynced)
	if meta.RemoteRef == "" {
		t.Error("RemoteRef empty after a successful push")
	}
}

func TestSaveDocumentValidation(t *testing.T) {
	m := testManager(t, Options{})
	if err := m.SaveDocument(context.Background(), nil); !errors.Is(err, errors.ErrCodeInvalidDocument) {
		t.Errorf("SaveDocument(nil) error = %v, want INVALID_DOCUMENT", err)
	}
	if err := m.SaveDocument(context.Background(), &document.Document{}); !errors.Is(err, errors.ErrCodeInvalidDocument) {
		t.Errorf("SaveDocument(no id) error = %v, want INVALID_DOCUMENT", err)
	}
}

func TestLoadDocumentNotFound(t *testing.T) {
	m := testManager(t, Options{})
	_, err := m.LoadDocument(context.Background(), "ghost", "")
	if !errors.Is(err, errors.ErrCodeDocumentNotFound) {
		t.Errorf("LoadDocument() error = %v, want DOCUMENT_NOT_FOUND", err)
	}
}

func TestLoadDocumentFetchesMissingLocal(t *testing.T) {
	prov := provider.NewMemoryProvider()
	m := testManager(t, Options{Provider: prov})
	ctx := context.Background()

	doc := document.New("remote-only")
	payload, err := document.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	file, err := prov.CreateFile(ctx, "folder", "remote-only.json", payload)
	if err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}

	got, err := m.LoadDocument(ctx, doc.ID, file.ID)
	if err != nil {
		t.Fatalf("LoadDocument() error = %v", err)
	}
	if got.Name != "remote-only" || got.RemoteRef != file.ID {
		t.Errorf("fetched doc = (%q, %q)", got.Name, got.RemoteRef)
	}

	// Persisted as synced; later loads are purely local.
	meta, err := m.DocumentMeta(ctx, doc.ID)
	if err != nil {
		t.Fatalf("DocumentMeta() error = %v", err)
	}
	if meta.Status != document.StatusSynced {
		t.Errorf("Status = %s, want synced", meta.Status)
	}
}

func TestReconcileLastWriteWins(t *testing.T) {
	prov := provider.NewMemoryProvider()
	m := testManager(t, Options{Provider: prov})
	ctx := context.Background()

	local := document.New("doc")
	local.Modified = at(100)
	seedLocal(t, m, local, document.StatusSynced)

	newer := local.Clone()
	newer.Name = "doc (edited elsewhere)"
	newer.Modified = at(200)
	payload, _ := document.Marshal(newer)
	file, err := prov.CreateFile(ctx, "folder", "doc.json", payload)
	if err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}

	// Strictly newer remote replaces the local copy wholesale.
	if err := m.reconcile(ctx, local.ID, file.ID); err != nil {
		t.Fatalf("reconcile() error = %v", err)
	}
	got, err := m.LoadDocument(ctx, local.ID, "")
	if err != nil {
		t.Fatalf("LoadDocument() error = %v", err)
	}
	if got.Name != "doc (edited elsewhere)" {
		t.Errorf("Name = %q, remote copy should have won", got.Name)
	}

	// An older remote never rolls the local copy back.
	older := local.Clone()
	older.Name = "stale"
	older.Modified = at(50)
	stale, _ := document.Marshal(older)
	if _, err := prov.UpdateFile(ctx, file.ID, stale); err != nil {
		t.Fatalf("UpdateFile() error = %v", err)
	}
	if err := m.reconcile(ctx, local.ID, file.ID); err != nil {
		t.Fatalf("reconcile() error = %v", err)
	}
	got, _ = m.LoadDocument(ctx, local.ID, "")
	if got.Name != "doc (edited elsewhere)" {
		t.Errorf("Name = %q, older remote overwrote a newer local copy", got.Name)
	}
}

func TestLoadDocumentReconcilesInBackground(t *testing.T) {
	prov := provider.NewMemoryProvider()
	m := testManager(t, Options{Provider: prov})
	ctx := context.Background()

	local := document.New("doc")
	local.Modified = at(100)

	newer := local.Clone()
	newer.Name = "fresh"
	newer.Modified = at(200)
	payload, _ := document.Marshal(newer)
	file, err := prov.CreateFile(ctx, "folder", "doc.json", payload)
	if err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	local.RemoteRef = file.ID
	seedLocal(t, m, local, document.StatusSynced)

	// The stale local copy comes back immediately.
	got, err := m.LoadDocument(ctx, local.ID, "")
	if err != nil {
		t.Fatalf("LoadDocument() error = %v", err)
	}
	if got.Name != "doc" {
		t.Errorf("Name = %q, load must return the local copy first", got.Name)
	}

	// The background pass converges on the remote copy.
	deadline := time.After(2 * time.Second)
	for {
		got, err = m.LoadDocument(ctx, local.ID, "")
		if err == nil && got.Name == "fresh" {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("local copy never reconciled: %+v", got)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

// orderedProvider records upload order and whether two uploads ever
// overlapped.
type orderedProvider struct {
	*provider.MemoryProvider
	mu         sync.Mutex
	names      []string
	inFlight   int
	overlapped bool
}

func (p *orderedProvider) CreateFile(ctx context.Context, folderID, name string, content []byte) (provider.File, error) {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > 1 {
		p.overlapped = true
	}
	p.mu.Unlock()

	// Widen the window an overlapping push would need.
	time.Sleep(2 * time.Millisecond)

	p.mu.Lock()
	p.names = append(p.names, name)
	p.inFlight--
	p.mu.Unlock()
	return p.MemoryProvider.CreateFile(ctx, folderID, name, content)
}

func TestPushQueueSerializesInOrder(t *testing.T) {
	op := &orderedProvider{MemoryProvider: provider.NewMemoryProvider()}
	m := testManager(t, Options{Provider: op})
	ctx := context.Background()

	docs := []*document.Document{
		document.New("a"), document.New("b"), document.New("c"),
	}
	for _, d := range docs {
		if err := m.SaveDocument(ctx, d); err != nil {
			t.Fatalf("SaveDocument(%s) error = %v", d.Name, err)
		}
	}
	for _, d := range docs {
		waitStatus(t, m, d.ID, document.StatusSynced)
	}

	op.mu.Lock()
	defer op.mu.Unlock()
	want := []string{"a.json", "b.json", "c.json"}
	if len(op.names) != len(want) {
		t.Fatalf("uploads = %v, want %v", op.names, want)
	}
	for i := range want {
		if op.names[i] != want[i] {
			t.Fatalf("uploads = %v, want %v in order", op.names, want)
		}
	}
	if op.overlapped {
		t.Error("two pushes were in flight at once")
	}
}

// countingProvider tallies create and update calls.
type countingProvider struct {
	*provider.MemoryProvider
	mu      sync.Mutex
	creates int
	updates int
}

func (p *countingProvider) CreateFile(ctx context.Context, folderID, name string, content []byte) (provider.File, error) {
	p.mu.Lock()
	p.creates++
	p.mu.Unlock()
	return p.MemoryProvider.CreateFile(ctx, folderID, name, content)
}

func (p *countingProvider) UpdateFile(ctx context.Context, fileID string, content []byte) (provider.File, error) {
	p.mu.Lock()
	p.updates++
	p.mu.Unlock()
	return p.MemoryProvider.UpdateFile(ctx, fileID, content)
}

func TestPushQueueCoalescesBursts(t *testing.T) {
	cp := &countingProvider{MemoryProvider: provider.NewMemoryProvider()}
	m := testManager(t, Options{Provider: cp, Debounce: 150 * time.Millisecond})
	ctx := context.Background()

	doc := document.New("v1")
	if err := m.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("SaveDocument() error = %v", err)
	}
	for _, name := range []string{"v2", "v3"} {
		doc.Name = name
		doc.Touch()
		if err := m.SaveDocument(ctx, doc); err != nil {
			t.Fatalf("SaveDocument(%s) error = %v", name, err)
		}
	}

	// Converges on the last save with at most one follow-up push.
	deadline := time.After(5 * time.Second)
	for {
		meta, err := m.DocumentMeta(ctx, doc.ID)
		if err == nil && meta.Status == document.StatusSynced && meta.RemoteRef != "" && !m.tracker.HasChanges() {
			_, content, gerr := cp.GetFile(ctx, meta.RemoteRef)
			if gerr == nil {
				if remote, derr := document.Unmarshal(content); derr == nil && remote.Name == "v3" {
					break
				}
			}
		}
		select {
		case <-deadline:
			t.Fatal("remote never converged on the last save")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.creates != 1 {
		t.Errorf("creates = %d, want 1", cp.creates)
	}
	if cp.updates > 2 {
		t.Errorf("updates = %d, a three-save burst should coalesce", cp.updates)
	}
}

func TestDocumentsSortedByName(t *testing.T) {
	m := testManager(t, Options{})
	ctx := context.Background()

	for _, name := range []string{"zebra", "apple", "mango"} {
		if err := m.SaveDocument(ctx, document.New(name)); err != nil {
			t.Fatalf("SaveDocument(%s) error = %v", name, err)
		}
	}
	metas, err := m.Documents(ctx, "")
	if err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	want := []string{"apple", "mango", "zebra"}
	if len(metas) != len(want) {
		t.Fatalf("len = %d, want %d", len(metas), len(want))
	}
	for i, name := range want {
		if metas[i].Name != name {
			t.Errorf("metas[%d].Name = %q, want %q", i, metas[i].Name, name)
		}
	}
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	var km keyedMutex

	// Serialized per id: the critical section over a shared counter must
	// never see concurrent holders of the same key.
	var wg sync.WaitGroup
	var held, maxHeld int
	var mu sync.Mutex
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "doc-a"
			if i%2 == 1 {
				id = "doc-b"
			}
			unlock := km.lock(id)
			mu.Lock()
			held++
			if held > maxHeld {
				maxHeld = held
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			held--
			mu.Unlock()
			unlock()
		}(i)
	}
	wg.Wait()

	if maxHeld > 2 {
		t.Errorf("max concurrent holders = %d, want <= 2 (one per id)", maxHeld)
	}

	// Once every holder is done the per-id entries are dropped, so a
	// long-lived manager does not accumulate one mutex per id ever seen.
	km.mu.Lock()
	n := len(km.m)
	km.mu.Unlock()
	if n != 0 {
		t.Errorf("keyedMutex retained %d entries after all unlocks, want 0", n)
	}
}
