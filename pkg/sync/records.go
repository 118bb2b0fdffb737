package sync

import (
	"context"

	json "github.com/goccy/go-json"

	"github.com/canopyhq/canopy/pkg/document"
	"github.com/canopyhq/canopy/pkg/errors"
	"github.com/canopyhq/canopy/pkg/store"
)

// Store id prefixes keep the per-document records apart in the shared
// item table. Document items use the bare document id.
const (
	metaPrefix     = "meta:"
	manifestPrefix = "manifest:"
)

func metaID(docID string) string { return metaPrefix + docID }

func manifestID(vaultID string) string { return manifestPrefix + vaultID }

func kinds(ks ...store.Kind) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = string(k)
	}
	return out
}

func docItem(doc *document.Document, payload []byte) store.Item {
	return store.Item{
		ID:       doc.ID,
		Kind:     store.KindDocument,
		VaultID:  doc.VaultID,
		Name:     doc.Name,
		Modified: doc.Modified,
		Data:     payload,
	}
}

func metaItem(meta document.Meta) (store.Item, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return store.Item{}, errors.Wrap(errors.ErrCodeInternal, err, "marshal meta %s", meta.ID)
	}
	return store.Item{
		ID:       metaID(meta.ID),
		Kind:     store.KindMeta,
		VaultID:  meta.VaultID,
		Name:     meta.Name,
		Modified: meta.Modified,
		Data:     data,
	}, nil
}

func decodeMeta(data []byte) (document.Meta, error) {
	var meta document.Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return document.Meta{}, errors.Wrap(errors.ErrCodeStorageRead, err, "parse sync meta")
	}
	return meta, nil
}

// putDocumentTx writes a document and its sync envelope together.
func putDocumentTx(ctx context.Context, tx store.Tx, doc *document.Document, meta document.Meta) error {
	payload, err := document.Marshal(doc)
	if err != nil {
		return err
	}
	if err := tx.Put(ctx, docItem(doc, payload)); err != nil {
		return err
	}
	mi, err := metaItem(meta)
	if err != nil {
		return err
	}
	return tx.Put(ctx, mi)
}

func (m *Manager) getDocument(ctx context.Context, id string) (*document.Document, error) {
	it, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.Kind != store.KindDocument {
		return nil, errors.New(errors.ErrCodeDocumentNotFound, "item %s is a %s, not a document", id, it.Kind)
	}
	return document.Unmarshal(it.Data)
}

func (m *Manager) getMeta(ctx context.Context, docID string) (document.Meta, error) {
	it, err := m.store.Get(ctx, metaID(docID))
	if err != nil {
		return document.Meta{}, err
	}
	return decodeMeta(it.Data)
}

func (m *Manager) putMeta(ctx context.Context, meta document.Meta) error {
	it, err := metaItem(meta)
	if err != nil {
		return err
	}
	return m.store.Put(ctx, it)
}

func (m *Manager) getVault(ctx context.Context, vaultID string) (*document.Vault, error) {
	it, err := m.store.Get(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if it.Kind != store.KindVault {
		return nil, errors.New(errors.ErrCodeVaultNotFound, "item %s is a %s, not a vault", vaultID, it.Kind)
	}
	var v document.Vault
	if err := json.Unmarshal(it.Data, &v); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageRead, err, "parse vault %s", vaultID)
	}
	return &v, nil
}

func (m *Manager) putVault(ctx context.Context, v *document.Vault) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "marshal vault %s", v.ID)
	}
	return m.store.Put(ctx, store.Item{
		ID:       v.ID,
		Kind:     store.KindVault,
		Name:     v.Name,
		Modified: v.CreatedAt,
		Data:     data,
	})
}

func (m *Manager) getFolder(ctx context.Context, folderID string) (*document.Folder, error) {
	it, err := m.store.Get(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if it.Kind != store.KindFolder {
		return nil, errors.New(errors.ErrCodeNotFound, "item %s is a %s, not a folder", folderID, it.Kind)
	}
	var f document.Folder
	if err := json.Unmarshal(it.Data, &f); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageRead, err, "parse folder %s", folderID)
	}
	return &f, nil
}

func (m *Manager) putFolder(ctx context.Context, f *document.Folder) error {
	data, err := json.Marshal(f)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "marshal folder %s", f.ID)
	}
	return m.store.Put(ctx, store.Item{
		ID:      f.ID,
		Kind:    store.KindFolder,
		VaultID: f.VaultID,
		Name:    f.Name,
		Data:    data,
	})
}

// baseline loads the locally persisted manifest of the previous sync
// pass, or an empty one for never-synced vaults.
func (m *Manager) baseline(ctx context.Context, vaultID string) (*Repository, error) {
	it, err := m.store.Get(ctx, manifestID(vaultID))
	if errors.IsNotFound(err) {
		return NewRepository(vaultID), nil
	}
	if err != nil {
		return nil, err
	}
	return UnmarshalRepository(it.Data)
}

func (m *Manager) putBaseline(ctx context.Context, vaultID string, repo *Repository) error {
	data, err := repo.Marshal()
	if err != nil {
		return err
	}
	return m.store.Put(ctx, store.Item{
		ID:       manifestID(vaultID),
		Kind:     store.KindManifest,
		VaultID:  vaultID,
		Modified: repo.LastSyncedAt,
		Data:     data,
	})
}
