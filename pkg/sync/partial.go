package sync

import (
	"context"
	"path"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/canopyhq/canopy/pkg/cache"
	"github.com/canopyhq/canopy/pkg/document"
	"github.com/canopyhq/canopy/pkg/errors"
	"github.com/canopyhq/canopy/pkg/observability"
	"github.com/canopyhq/canopy/pkg/provider"
	"github.com/canopyhq/canopy/pkg/store"
)

// SyncResult summarizes one vault pass: the plan the diff produced and
// what actually moved. Skipped counts conflicts left unsettled; they
// reappear in the next pass.
type SyncResult struct {
	VaultID    string
	Plan       SyncChanges
	Downloaded int
	Uploaded   int
	Deleted    int
	Resolved   int
	Skipped    int
	Duration   time.Duration
}

// SyncVault runs one vault-wide partial-sync pass:
//
//  1. take the remote advisory lock (a fresh marker held by another
//     owner fails the pass with NETWORK_LOCK)
//  2. fetch the remote repository manifest
//  3. describe the local state as a manifest, off the store, the
//     tracker, and the previous baseline
//  4. diff the two and settle conflicts per the configured policy
//  5. apply the plan in both directions
//  6. persist the merged manifest locally and remotely
//
// The lock is released on every path, success or failure, under its own
// timeout so a dead remote cannot hold the vault hostage. A failed
// transfer aborts the pass without persisting the merged manifest;
// transfers applied before the failure are durable and the next pass
// skips them by checksum.
func (m *Manager) SyncVault(ctx context.Context, vaultID string) (*SyncResult, error) {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()

	start := time.Now()
	observability.Sync().OnSyncStart(ctx, vaultID)
	res, changed, err := m.syncVault(ctx, vaultID)
	var downloads, uploads, conflicts int
	if res != nil {
		downloads, uploads, conflicts = res.Downloaded, res.Uploaded, len(res.Plan.Conflicts)
	}
	observability.Sync().OnSyncComplete(ctx, vaultID, downloads, uploads, conflicts, time.Since(start), err)
	if err != nil {
		m.bus.Publish(Event{Topic: TopicError, Source: "sync-vault", VaultID: vaultID, Err: err})
		return res, err
	}
	res.Duration = time.Since(start)
	m.bus.Publish(Event{Topic: TopicStructureRefreshed, Source: "sync-vault", VaultID: vaultID, IDs: changed})
	m.logger.Info("vault synced", "vault", vaultID,
		"downloaded", res.Downloaded, "uploaded", res.Uploaded,
		"deleted", res.Deleted, "skipped", res.Skipped, "took", res.Duration)
	return res, nil
}

func (m *Manager) syncVault(ctx context.Context, vaultID string) (*SyncResult, []string, error) {
	if vaultID == "" {
		return nil, nil, errors.New(errors.ErrCodeInvalidInput, "sync needs a vault id")
	}
	if !m.prov.Online() {
		return nil, nil, errors.New(errors.ErrCodeOffline, "remote unreachable, vault %s not synced", vaultID)
	}

	if err := m.prov.AcquireLock(ctx, vaultID, m.opts.Owner); err != nil {
		return nil, nil, err
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if rerr := m.prov.ReleaseLock(rctx, vaultID, m.opts.Owner); rerr != nil {
			m.logger.Warn("release vault lock", "vault", vaultID, "err", rerr)
		}
	}()

	remote, err := m.remoteManifest(ctx, vaultID, false)
	if err != nil {
		return nil, nil, err
	}
	base, err := m.baseline(ctx, vaultID)
	if err != nil {
		return nil, nil, err
	}
	snap := m.tracker.Snapshot()
	local, err := m.localRepository(ctx, vaultID, base, snap)
	if err != nil {
		return nil, nil, err
	}

	plan := Diff(local, remote)
	res := &SyncResult{VaultID: vaultID, Plan: plan}

	downloads := append([]string(nil), plan.Download...)
	uploads := append([]string(nil), plan.Upload...)
	var keepBoth []Conflict
	skipped := make(map[string]bool)
	for _, c := range plan.Conflicts {
		observability.Sync().OnConflict(ctx, c.ID)
		resolution, rerr := m.resolveConflict(ctx, c)
		if rerr != nil {
			return res, nil, rerr
		}
		switch resolution {
		case ResolutionServer:
			downloads = append(downloads, c.ID)
			res.Resolved++
		case ResolutionLocal:
			uploads = append(uploads, c.ID)
			res.Resolved++
		case ResolutionKeepBoth:
			keepBoth = append(keepBoth, c)
			res.Resolved++
		default:
			m.logger.Debug("conflict skipped", "doc", c.ID, "path", c.Path)
			skipped[c.ID] = true
			res.Skipped++
		}
	}

	merged := local.Clone()
	changed := make([]string, 0, plan.Total())

	for _, id := range downloads {
		entry, ok := remote.Files[id]
		if !ok {
			continue
		}
		if err := m.applyDownload(ctx, id, entry); err != nil {
			return res, nil, err
		}
		merged.SetFile(id, entry)
		res.Downloaded++
		changed = append(changed, id)
	}

	for _, id := range uploads {
		entry, err := m.applyUpload(ctx, vaultID, id, local.Files[id])
		if err != nil {
			return res, nil, err
		}
		merged.SetFile(id, entry)
		res.Uploaded++
		changed = append(changed, id)
	}

	for _, c := range keepBoth {
		dupID, err := m.applyKeepBoth(ctx, vaultID, c, remote, merged)
		if err != nil {
			return res, nil, err
		}
		res.Downloaded++
		res.Uploaded++
		changed = append(changed, c.ID, dupID)
	}

	for _, id := range plan.Delete {
		if err := m.applyDelete(ctx, id, local, remote); err != nil {
			return res, nil, err
		}
		merged.MarkDeleted(id)
		m.tracker.ClearItem(id)
		res.Deleted++
		changed = append(changed, id)
	}

	// An entry that moved nothing may still be ref-less locally (equal
	// content uploaded by a peer). Adopt the remote ref so the manifest
	// keeps pointing at the file and the next push updates instead of
	// duplicating it.
	for id, re := range remote.Files {
		me, ok := merged.Files[id]
		if !ok || me.Ref != "" || re.Ref == "" {
			continue
		}
		me.Ref = re.Ref
		merged.SetFile(id, me)
		if meta, merr := m.getMeta(ctx, id); merr == nil && meta.RemoteRef == "" {
			meta.RemoteRef = re.Ref
			if perr := m.putMeta(ctx, meta); perr != nil {
				m.logger.Debug("adopt remote ref", "doc", id, "err", perr)
			}
		}
	}

	// Folders the remote knows and we don't ride along in the manifest
	// so peers keep seeing them; local folder records are owned by the
	// vault operations, not by this pass.
	for id, e := range remote.Folders {
		if _, ok := merged.Folders[id]; !ok && !merged.IsDeleted(id) {
			merged.SetFolder(id, e)
		}
	}

	// A skipped conflict must surface again, so the baseline keeps the
	// old LastSyncedAt: the local edit stays "after the last pass" and
	// the diff re-detects it.
	now := time.Now().UTC()
	if res.Skipped == 0 {
		merged.LastSyncedAt = now
	}
	if err := m.putBaseline(ctx, vaultID, merged); err != nil {
		return res, nil, err
	}

	// The remote manifest describes the remote's files: for unsettled
	// conflicts that is still the remote copy, not ours.
	remoteView := merged.Clone()
	remoteView.LastSyncedAt = now
	for id := range skipped {
		if e, ok := remote.Files[id]; ok {
			remoteView.SetFile(id, e)
		}
	}
	data, err := remoteView.Marshal()
	if err != nil {
		return res, nil, err
	}
	if err := m.prov.PutManifest(ctx, vaultID, data); err != nil {
		return res, nil, err
	}
	key := m.keyer.ManifestKey(vaultID)
	if cerr := m.cache.Set(ctx, key, data, cache.ManifestTTL); cerr != nil {
		m.logger.Debug("cache manifest write failed", "vault", vaultID, "err", cerr)
	}

	// Structural records from before the pass are settled now; content
	// records were cleared per upload, and anything recorded mid-pass
	// stays for the next one.
	for _, id := range snap.Deleted {
		m.tracker.ClearItem(id)
	}
	for id := range snap.Renamed {
		m.tracker.ClearItem(id)
	}
	for id := range snap.Moved {
		m.tracker.ClearItem(id)
	}
	return res, changed, nil
}

// PlanVault computes the transfer plan without taking the lock or moving
// anything. The remote manifest may come from cache, so the plan is
// advisory; SyncVault recomputes it under the lock before applying.
func (m *Manager) PlanVault(ctx context.Context, vaultID string) (SyncChanges, error) {
	if vaultID == "" {
		return SyncChanges{}, errors.New(errors.ErrCodeInvalidInput, "plan needs a vault id")
	}
	remote, err := m.remoteManifest(ctx, vaultID, true)
	if err != nil {
		return SyncChanges{}, err
	}
	base, err := m.baseline(ctx, vaultID)
	if err != nil {
		return SyncChanges{}, err
	}
	local, err := m.localRepository(ctx, vaultID, base, m.tracker.Snapshot())
	if err != nil {
		return SyncChanges{}, err
	}
	return Diff(local, remote), nil
}

// resolveConflict settles one conflict per the configured policy. Under
// PolicyAsk a missing resolver skips everything.
func (m *Manager) resolveConflict(ctx context.Context, c Conflict) (Resolution, error) {
	switch m.opts.Policy {
	case PolicyServerWins:
		return ResolutionServer, nil
	case PolicyLocalWins:
		return ResolutionLocal, nil
	}
	if m.opts.Resolver == nil {
		return ResolutionSkip, nil
	}
	return m.opts.Resolver(ctx, c)
}

// remoteManifest fetches the vault's repository manifest, through the
// cache when fromCache is set. A vault never synced yields an empty
// repository, not an error.
func (m *Manager) remoteManifest(ctx context.Context, vaultID string, fromCache bool) (*Repository, error) {
	key := m.keyer.ManifestKey(vaultID)
	if fromCache {
		data, ok, err := m.cache.Get(ctx, key)
		if err != nil {
			m.logger.Debug("cache manifest read failed", "vault", vaultID, "err", err)
		} else if ok {
			observability.Cache().OnCacheHit(ctx, "manifest")
			if repo, perr := UnmarshalRepository(data); perr == nil {
				return repo, nil
			}
		} else {
			observability.Cache().OnCacheMiss(ctx, "manifest")
		}
	}

	data, ok, err := m.prov.GetManifest(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewRepository(vaultID), nil
	}
	repo, err := UnmarshalRepository(data)
	if err != nil {
		return nil, err
	}
	if cerr := m.cache.Set(ctx, key, data, cache.ManifestTTL); cerr != nil {
		m.logger.Debug("cache manifest write failed", "vault", vaultID, "err", cerr)
	} else {
		observability.Cache().OnCacheSet(ctx, "manifest", len(data))
	}
	return repo, nil
}

// localRepository describes the vault's current local state as a
// manifest: live files and folders from the store, tombstones from the
// tracker and the previous baseline, LastSyncedAt from the baseline.
func (m *Manager) localRepository(ctx context.Context, vaultID string, base *Repository, snap ChangeSet) (*Repository, error) {
	repo := NewRepository(vaultID)
	repo.LastSyncedAt = base.LastSyncedAt

	items, err := m.store.QueryByIndex(ctx, store.IndexVault, vaultID)
	if err != nil {
		return nil, err
	}

	folders := make(map[string]*document.Folder)
	for _, it := range items {
		if it.Kind != store.KindFolder {
			continue
		}
		var f document.Folder
		if uerr := json.Unmarshal(it.Data, &f); uerr != nil {
			m.logger.Warn("skipping unreadable folder", "item", it.ID, "err", uerr)
			continue
		}
		folders[f.ID] = &f
	}
	for id, f := range folders {
		repo.SetFolder(id, Entry{Path: folderPath(folders, f)})
	}

	for _, it := range items {
		if it.Kind != store.KindDocument {
			continue
		}
		doc, derr := document.Unmarshal(it.Data)
		if derr != nil {
			m.logger.Warn("skipping unreadable document", "item", it.ID, "err", derr)
			continue
		}
		entry := Entry{
			Path:     docPath(folders, doc),
			Ref:      doc.RemoteRef,
			Modified: doc.Modified,
			Size:     int64(len(it.Data)),
			Checksum: document.Checksum(it.Data),
		}
		if meta, merr := m.getMeta(ctx, doc.ID); merr == nil && meta.RemoteRef != "" {
			entry.Ref = meta.RemoteRef
		}
		repo.SetFile(doc.ID, entry)
	}

	// Old tombstones carry forward unless the id is live again; fresh
	// local deletions always win.
	for _, id := range base.Deleted {
		if _, live := repo.Files[id]; !live {
			repo.MarkDeleted(id)
		}
	}
	for _, id := range snap.Deleted {
		repo.MarkDeleted(id)
	}
	return repo, nil
}

// applyDownload takes the remote copy of a document: cache-first fetch,
// then a synced local write. The per-document lock keeps it from racing
// a concurrent push or reconcile of the same id.
func (m *Manager) applyDownload(ctx context.Context, id string, entry Entry) error {
	unlock := m.locks.lock(id)
	defer unlock()

	modified := entry.Modified
	content, ok := m.cachedContent(ctx, entry.Ref, entry.Checksum)
	if !ok {
		file, data, err := m.prov.GetFile(ctx, entry.Ref)
		if err != nil {
			return err
		}
		content = data
		if !file.Modified.IsZero() {
			modified = file.Modified
		}
		m.cacheContent(ctx, entry.Ref, content)
	}

	doc, err := document.Unmarshal(content)
	if err != nil {
		return err
	}
	doc.RemoteRef = entry.Ref
	meta := doc.Meta(document.StatusSynced)
	meta.MarkSynced(entry.Ref, modified)
	err = m.store.Transaction(ctx, store.ReadWrite, kinds(store.KindDocument, store.KindMeta), func(tx store.Tx) error {
		return putDocumentTx(ctx, tx, doc, meta)
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, err, "persist downloaded document %s", id)
	}
	m.tracker.ClearItem(id)
	m.logger.Debug("downloaded", "doc", id, "ref", entry.Ref, "bytes", len(content))
	return nil
}

// applyUpload pushes a document's local copy and returns the manifest
// entry describing what the remote now holds.
func (m *Manager) applyUpload(ctx context.Context, vaultID, id string, prev Entry) (Entry, error) {
	unlock := m.locks.lock(id)
	defer unlock()

	doc, err := m.getDocument(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	meta, err := m.getMeta(ctx, id)
	if errors.IsNotFound(err) {
		meta = doc.Meta(document.StatusPending)
	} else if err != nil {
		return Entry{}, err
	}

	// For an update the ref is known up front, so the uploaded bytes
	// match the stored ones and checksum comparisons stay meaningful.
	if meta.RemoteRef != "" {
		doc.RemoteRef = meta.RemoteRef
	}
	payload, err := document.Marshal(doc)
	if err != nil {
		return Entry{}, err
	}

	var file provider.File
	if meta.RemoteRef == "" {
		folderID, ferr := m.remoteFolder(ctx, vaultID)
		if ferr != nil {
			return Entry{}, ferr
		}
		file, err = m.prov.CreateFile(ctx, folderID, remoteName(doc.Name), payload)
	} else {
		file, err = m.prov.UpdateFile(ctx, meta.RemoteRef, payload)
	}
	if err != nil {
		return Entry{}, err
	}

	meta.Name = doc.Name
	meta.Modified = doc.Modified
	meta.MarkSynced(file.ID, time.Now().UTC())
	doc.RemoteRef = file.ID
	err = m.store.Transaction(ctx, store.ReadWrite, kinds(store.KindDocument, store.KindMeta), func(tx store.Tx) error {
		return putDocumentTx(ctx, tx, doc, meta)
	})
	if err != nil {
		return Entry{}, errors.Wrap(errors.ErrCodeStorageWrite, err, "record upload of %s", id)
	}
	m.cacheContent(ctx, file.ID, payload)
	m.tracker.ClearItem(id)
	m.logger.Debug("uploaded", "doc", id, "ref", file.ID, "bytes", len(payload))

	entryPath := prev.Path
	if entryPath == "" {
		entryPath = remoteName(doc.Name)
	}
	return Entry{
		Path:     entryPath,
		Ref:      file.ID,
		Modified: doc.Modified,
		Size:     int64(len(payload)),
		Checksum: document.Checksum(payload),
	}, nil
}

// applyKeepBoth settles a conflict by keeping both copies: the local one
// is duplicated under a conflict name and uploaded as a new file, then
// the remote copy takes over the original id.
func (m *Manager) applyKeepBoth(ctx context.Context, vaultID string, c Conflict, remote, merged *Repository) (string, error) {
	doc, err := m.getDocument(ctx, c.ID)
	if err != nil {
		return "", err
	}
	dup := doc.Clone()
	dup.ID = uuid.NewString()
	dup.Name = ConflictName(doc.Name, time.Now().UTC())
	dup.RemoteRef = ""
	dup.Touch()

	meta := dup.Meta(document.StatusPending)
	err = m.store.Transaction(ctx, store.ReadWrite, kinds(store.KindDocument, store.KindMeta), func(tx store.Tx) error {
		return putDocumentTx(ctx, tx, dup, meta)
	})
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeStorageWrite, err, "persist conflict copy of %s", c.ID)
	}

	dupPath := remoteName(dup.Name)
	if dir := path.Dir(c.Path); dir != "." && dir != "/" && dir != "" {
		dupPath = dir + "/" + dupPath
	}
	entry, err := m.applyUpload(ctx, vaultID, dup.ID, Entry{Path: dupPath})
	if err != nil {
		return "", err
	}
	merged.SetFile(dup.ID, entry)

	rentry, ok := remote.Files[c.ID]
	if !ok {
		return dup.ID, errors.New(errors.ErrCodeInternal, "conflict %s has no remote entry", c.ID)
	}
	if err := m.applyDownload(ctx, c.ID, rentry); err != nil {
		return dup.ID, err
	}
	merged.SetFile(c.ID, rentry)
	m.logger.Info("conflict kept both copies", "doc", c.ID, "copy", dup.ID, "name", dup.Name)
	return dup.ID, nil
}

// applyDelete propagates a tombstone to whichever side still has the
// file. A remote copy already gone is fine; the tombstone's job is done.
func (m *Manager) applyDelete(ctx context.Context, id string, local, remote *Repository) error {
	if e, ok := remote.Files[id]; ok && e.Ref != "" {
		if err := m.prov.TrashFile(ctx, e.Ref); err != nil && !errors.IsNotFound(err) {
			return err
		}
	}
	if _, ok := local.Files[id]; ok {
		if err := m.deleteDocumentRecords(ctx, id); err != nil && !errors.IsNotFound(err) {
			return err
		}
	}
	m.logger.Debug("tombstone applied", "doc", id)
	return nil
}

// folderPath renders a folder's path from vault root. The depth guard
// keeps a corrupted parent chain from looping.
func folderPath(folders map[string]*document.Folder, f *document.Folder) string {
	parts := []string{f.Name}
	for cur := f.ParentID; cur != "" && len(parts) < 64; {
		p, ok := folders[cur]
		if !ok {
			break
		}
		parts = append([]string{p.Name}, parts...)
		cur = p.ParentID
	}
	return strings.Join(parts, "/")
}

// docPath renders a document's vault-relative path.
func docPath(folders map[string]*document.Folder, doc *document.Document) string {
	name := remoteName(doc.Name)
	if doc.FolderID == "" {
		return name
	}
	f, ok := folders[doc.FolderID]
	if !ok {
		return name
	}
	return folderPath(folders, f) + "/" + name
}
