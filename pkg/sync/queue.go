package sync

import (
	"context"
	"time"

	"github.com/canopyhq/canopy/pkg/document"
	"github.com/canopyhq/canopy/pkg/errors"
	"github.com/canopyhq/canopy/pkg/observability"
	"github.com/canopyhq/canopy/pkg/provider"
	"github.com/canopyhq/canopy/pkg/store"
)

// enqueue marks id for a background push. Duplicates collapse while the
// id is still waiting; a full queue drops the id with a warning (the
// next save or a manual sync retries it).
func (m *Manager) enqueue(id string) {
	m.pendMu.Lock()
	if m.pending[id] {
		m.pendMu.Unlock()
		return
	}
	m.pending[id] = true
	m.pendMu.Unlock()

	select {
	case m.queue <- id:
	default:
		m.pendMu.Lock()
		delete(m.pending, id)
		m.pendMu.Unlock()
		m.logger.Warn("push queue full, dropping", "doc", id)
	}
}

// worker drains the push queue one id at a time. Strictly one push is in
// flight; a fixed debounce pause separates items so bursts of saves
// coalesce instead of hammering the remote.
func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case id := <-m.queue:
			// Unmark before pushing so a save arriving mid-push
			// re-enqueues the id for the new content.
			m.pendMu.Lock()
			delete(m.pending, id)
			m.pendMu.Unlock()

			m.push(m.ctx, id)

			select {
			case <-m.ctx.Done():
				return
			case <-time.After(m.opts.Debounce):
			}
		}
	}
}

// push uploads one document and records the outcome. Failures mark the
// document's meta and are not returned; the worker moves on and the
// status surface carries the message.
func (m *Manager) push(ctx context.Context, id string) {
	start := time.Now()
	observability.Sync().OnPushStart(ctx, id)
	err := m.pushDocument(ctx, id)
	observability.Sync().OnPushComplete(ctx, id, time.Since(start), err)
	if err != nil {
		m.logger.Warn("push failed", "doc", id, "err", err)
		m.bus.Publish(Event{Topic: TopicError, Source: "push", IDs: []string{id}, Err: err})
	}
}

func (m *Manager) pushDocument(ctx context.Context, id string) error {
	unlock := m.locks.lock(id)
	defer unlock()

	doc, err := m.getDocument(ctx, id)
	if errors.IsNotFound(err) {
		// Deleted after it was enqueued; nothing to push.
		return nil
	}
	if err != nil {
		return err
	}

	meta, err := m.getMeta(ctx, id)
	if errors.IsNotFound(err) {
		meta = doc.Meta(document.StatusPending)
	} else if err != nil {
		return err
	}
	meta.Name = doc.Name
	meta.Modified = doc.Modified

	if !m.prov.Online() {
		offline := errors.New(errors.ErrCodeOffline, "remote unreachable")
		m.recordPushFailure(ctx, meta, offline)
		return offline
	}

	payload, err := document.Marshal(doc)
	if err != nil {
		return err
	}

	var file provider.File
	if meta.RemoteRef == "" {
		folderID, ferr := m.remoteFolder(ctx, doc.VaultID)
		if ferr != nil {
			m.recordPushFailure(ctx, meta, ferr)
			return ferr
		}
		file, err = m.prov.CreateFile(ctx, folderID, remoteName(doc.Name), payload)
	} else {
		file, err = m.prov.UpdateFile(ctx, meta.RemoteRef, payload)
	}
	if err != nil {
		m.recordPushFailure(ctx, meta, err)
		return err
	}

	meta.MarkSynced(file.ID, time.Now().UTC())
	doc.RemoteRef = file.ID
	err = m.store.Transaction(ctx, store.ReadWrite, kinds(store.KindDocument, store.KindMeta), func(tx store.Tx) error {
		return putDocumentTx(ctx, tx, doc, meta)
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, err, "record push of %s", id)
	}

	m.cacheContent(ctx, file.ID, payload)
	m.tracker.ClearItem(id)
	m.logger.Debug("pushed", "doc", id, "ref", file.ID, "bytes", len(payload))
	return nil
}

// recordPushFailure sets the error status; the write is best effort
// because the push error is the one worth surfacing.
func (m *Manager) recordPushFailure(ctx context.Context, meta document.Meta, cause error) {
	meta.MarkError(cause)
	if err := m.putMeta(ctx, meta); err != nil {
		m.logger.Error("record push failure", "doc", meta.ID, "err", err)
	}
}

// remoteFolder resolves the provider folder a vault's files live in,
// creating it on first use and caching the id on the vault record.
// Documents without a vault share the default folder.
func (m *Manager) remoteFolder(ctx context.Context, vaultID string) (string, error) {
	name := m.opts.FolderName
	var vault *document.Vault
	if vaultID != "" {
		v, err := m.getVault(ctx, vaultID)
		if err == nil {
			vault = v
			if v.RemoteFolder != "" {
				return v.RemoteFolder, nil
			}
			if v.Name != "" {
				name = v.Name
			}
		} else if !errors.IsNotFound(err) {
			return "", err
		}
	}

	id, err := m.prov.FindOrCreateFolder(ctx, name)
	if err != nil {
		return "", err
	}
	if vault != nil {
		vault.RemoteFolder = id
		if err := m.putVault(ctx, vault); err != nil {
			m.logger.Warn("remember remote folder", "vault", vault.ID, "err", err)
		}
	}
	return id, nil
}
