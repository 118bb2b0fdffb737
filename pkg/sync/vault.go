package sync

import (
	"context"
	"sort"
	"strings"

	"github.com/canopyhq/canopy/pkg/document"
	"github.com/canopyhq/canopy/pkg/errors"
	"github.com/canopyhq/canopy/pkg/provider"
	"github.com/canopyhq/canopy/pkg/store"
)

// CreateVault registers a new vault in the local store and announces it.
func (m *Manager) CreateVault(ctx context.Context, name string) (*document.Vault, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "vault name is empty")
	}
	v := document.NewVault(name)
	if err := m.putVault(ctx, v); err != nil {
		return nil, err
	}
	m.bus.Publish(Event{Topic: TopicVaultCreated, Source: "create-vault", VaultID: v.ID, IDs: []string{v.ID}, Name: name})
	return v, nil
}

// LoadVault fetches a vault record and announces the load.
func (m *Manager) LoadVault(ctx context.Context, vaultID string) (*document.Vault, error) {
	v, err := m.getVault(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	m.bus.Publish(Event{Topic: TopicVaultLoaded, Source: "load-vault", VaultID: v.ID, IDs: []string{v.ID}, Name: v.Name})
	return v, nil
}

// Vaults lists every vault in the store, sorted by name.
func (m *Manager) Vaults(ctx context.Context) ([]*document.Vault, error) {
	items, err := m.store.QueryByIndex(ctx, store.IndexKind, string(store.KindVault))
	if err != nil {
		return nil, err
	}
	vaults := make([]*document.Vault, 0, len(items))
	for _, it := range items {
		v, verr := m.getVault(ctx, it.ID)
		if verr != nil {
			m.logger.Warn("skipping unreadable vault", "item", it.ID, "err", verr)
			continue
		}
		vaults = append(vaults, v)
	}
	sort.Slice(vaults, func(i, j int) bool { return vaults[i].Name < vaults[j].Name })
	return vaults, nil
}

// CreateDocument makes an empty document in a vault, persists it, and
// schedules its first push.
func (m *Manager) CreateDocument(ctx context.Context, vaultID, name string) (*document.Document, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "document name is empty")
	}
	doc := document.New(name)
	doc.VaultID = vaultID
	if err := m.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}
	m.bus.Publish(Event{Topic: TopicFileCreated, Source: "create-document", VaultID: vaultID, IDs: []string{doc.ID}, Name: name})
	return doc, nil
}

// CreateFolder adds a folder under parentID ("" = vault root).
func (m *Manager) CreateFolder(ctx context.Context, vaultID, parentID, name string) (*document.Folder, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "folder name is empty")
	}
	if parentID != "" {
		if _, err := m.getFolder(ctx, parentID); err != nil {
			return nil, err
		}
	}
	f := document.NewFolder(vaultID, parentID, name)
	if err := m.putFolder(ctx, f); err != nil {
		return nil, err
	}
	m.bus.Publish(Event{Topic: TopicFileCreated, Source: "create-folder", VaultID: vaultID, IDs: []string{f.ID}, Name: name})
	return f, nil
}

// Folders lists a vault's folders.
func (m *Manager) Folders(ctx context.Context, vaultID string) ([]*document.Folder, error) {
	items, err := m.store.QueryByIndex(ctx, store.IndexVault, vaultID)
	if err != nil {
		return nil, err
	}
	folders := make([]*document.Folder, 0, len(items))
	for _, it := range items {
		if it.Kind != store.KindFolder {
			continue
		}
		f, ferr := m.getFolder(ctx, it.ID)
		if ferr != nil {
			m.logger.Warn("skipping unreadable folder", "item", it.ID, "err", ferr)
			continue
		}
		folders = append(folders, f)
	}
	return folders, nil
}

// RenameItem renames a document or folder, records the change, and
// announces it. Documents get a bumped modification time and a queued
// push; folder renames are local structure only until the next pass.
func (m *Manager) RenameItem(ctx context.Context, id, newName string) error {
	if strings.TrimSpace(newName) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "new name is empty")
	}

	vaultID := ""
	doc, err := m.getDocument(ctx, id)
	switch {
	case err == nil:
		doc.Name = newName
		doc.Touch()
		if err := m.SaveDocument(ctx, doc); err != nil {
			return err
		}
		vaultID = doc.VaultID
	case errors.IsNotFound(err):
		f, ferr := m.getFolder(ctx, id)
		if ferr != nil {
			return ferr
		}
		f.Name = newName
		if err := m.putFolder(ctx, f); err != nil {
			return err
		}
		vaultID = f.VaultID
	default:
		return err
	}

	m.tracker.RecordRenamed(id, newName)
	m.bus.Publish(Event{Topic: TopicItemRenamed, Source: "rename", VaultID: vaultID, IDs: []string{id}, Name: newName})
	return nil
}

// MoveItem reparents a document or folder to newParentID ("" = vault
// root). Moving a folder under its own descendant is rejected before any
// mutation.
func (m *Manager) MoveItem(ctx context.Context, id, newParentID string) error {
	if id == newParentID {
		return errors.New(errors.ErrCodeTreeCycle, "cannot move %s into itself", id)
	}

	vaultID := ""
	doc, err := m.getDocument(ctx, id)
	switch {
	case err == nil:
		if newParentID != "" {
			if _, ferr := m.getFolder(ctx, newParentID); ferr != nil {
				return ferr
			}
		}
		doc.FolderID = newParentID
		doc.Touch()
		if err := m.SaveDocument(ctx, doc); err != nil {
			return err
		}
		vaultID = doc.VaultID
	case errors.IsNotFound(err):
		f, ferr := m.getFolder(ctx, id)
		if ferr != nil {
			return ferr
		}
		if newParentID != "" {
			if cerr := m.checkFolderCycle(ctx, id, newParentID); cerr != nil {
				return cerr
			}
		}
		f.ParentID = newParentID
		if err := m.putFolder(ctx, f); err != nil {
			return err
		}
		vaultID = f.VaultID
	default:
		return err
	}

	m.tracker.RecordMoved(id, newParentID)
	m.bus.Publish(Event{Topic: TopicItemMoved, Source: "move", VaultID: vaultID, IDs: []string{id}, ParentID: newParentID})
	return nil
}

// checkFolderCycle walks newParentID's ancestor chain and rejects the
// move when id appears on it.
func (m *Manager) checkFolderCycle(ctx context.Context, id, newParentID string) error {
	cur := newParentID
	for cur != "" {
		if cur == id {
			return errors.New(errors.ErrCodeTreeCycle, "cannot move folder %s under its own descendant", id)
		}
		f, err := m.getFolder(ctx, cur)
		if err != nil {
			return err
		}
		cur = f.ParentID
	}
	return nil
}

// DeleteItem removes a document or folder from the local store and
// tombstones it for the next sync pass. Deleting a folder cascades to
// everything inside it. The remote copy is trashed by the tombstone
// during SyncVault, not here.
func (m *Manager) DeleteItem(ctx context.Context, id string) error {
	vaultID := ""
	removed := []string{id}

	doc, err := m.getDocument(ctx, id)
	switch {
	case err == nil:
		if derr := m.deleteDocumentRecords(ctx, id); derr != nil {
			return derr
		}
		vaultID = doc.VaultID
	case errors.IsNotFound(err):
		f, ferr := m.getFolder(ctx, id)
		if ferr != nil {
			return ferr
		}
		vaultID = f.VaultID
		docIDs, folderIDs, cerr := m.folderContents(ctx, f.VaultID, id)
		if cerr != nil {
			return cerr
		}
		for _, did := range docIDs {
			if derr := m.deleteDocumentRecords(ctx, did); derr != nil {
				return derr
			}
			removed = append(removed, did)
		}
		for _, fid := range append(folderIDs, id) {
			if derr := m.store.Delete(ctx, fid); derr != nil {
				return derr
			}
			if fid != id {
				removed = append(removed, fid)
			}
		}
	default:
		return err
	}

	for _, rid := range removed {
		m.tracker.RecordDeleted(rid)
	}
	m.bus.Publish(Event{Topic: TopicItemDeleted, Source: "delete", VaultID: vaultID, IDs: removed})
	return nil
}

func (m *Manager) deleteDocumentRecords(ctx context.Context, id string) error {
	return m.store.Transaction(ctx, store.ReadWrite, kinds(store.KindDocument, store.KindMeta), func(tx store.Tx) error {
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		return tx.Delete(ctx, metaID(id))
	})
}

// folderContents collects the documents and subfolders under folderID,
// transitively.
func (m *Manager) folderContents(ctx context.Context, vaultID, folderID string) (docIDs, folderIDs []string, err error) {
	items, err := m.store.QueryByIndex(ctx, store.IndexVault, vaultID)
	if err != nil {
		return nil, nil, err
	}

	childFolders := make(map[string][]string) // parent folder -> folders
	childDocs := make(map[string][]string)    // folder -> documents
	for _, it := range items {
		switch it.Kind {
		case store.KindFolder:
			f, ferr := m.getFolder(ctx, it.ID)
			if ferr != nil {
				continue
			}
			childFolders[f.ParentID] = append(childFolders[f.ParentID], f.ID)
		case store.KindDocument:
			doc, derr := document.Unmarshal(it.Data)
			if derr != nil {
				continue
			}
			if doc.FolderID != "" {
				childDocs[doc.FolderID] = append(childDocs[doc.FolderID], doc.ID)
			}
		}
	}

	queue := []string{folderID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		docIDs = append(docIDs, childDocs[cur]...)
		for _, sub := range childFolders[cur] {
			folderIDs = append(folderIDs, sub)
			queue = append(queue, sub)
		}
	}
	return docIDs, folderIDs, nil
}

// RefreshStructure re-lists the vault's remote folder and announces the
// result. It does not mutate local state; SyncVault does that.
func (m *Manager) RefreshStructure(ctx context.Context, vaultID string) ([]provider.File, error) {
	folderID, err := m.remoteFolder(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	files, err := m.prov.ListFiles(ctx, folderID)
	if err != nil {
		m.bus.Publish(Event{Topic: TopicError, Source: "refresh-structure", VaultID: vaultID, Err: err})
		return nil, err
	}
	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	m.bus.Publish(Event{Topic: TopicStructureRefreshed, Source: "refresh-structure", VaultID: vaultID, IDs: ids})
	return files, nil
}
