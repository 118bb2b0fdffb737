// Package store is the local persistence boundary for documents, sync
// metadata, vaults, and repository manifests.
//
// Records are untyped [Item] envelopes: an id, a kind, a few indexed
// columns, and an opaque payload. Higher layers own serialization; the
// store guarantees atomic transactions with rollback on error and
// secondary-index lookups, nothing more. Backends: in-memory, SQLite
// (modernc.org/sqlite), and MongoDB.
package store

import (
	"context"
	"time"

	"github.com/canopyhq/canopy/pkg/errors"
)

// Kind classifies stored items so one table can hold every record type.
type Kind string

const (
	KindDocument Kind = "document"
	KindMeta     Kind = "meta"
	KindVault    Kind = "vault"
	KindFolder   Kind = "folder"
	KindManifest Kind = "manifest"
)

// Indexed fields accepted by QueryByIndex.
const (
	IndexKind  = "kind"
	IndexVault = "vaultId"
	IndexName  = "name"
)

// Item is one stored record. Data is opaque to the store; Kind, VaultID,
// and Name are the queryable columns.
type Item struct {
	ID       string    `bson:"_id" json:"id"`
	Kind     Kind      `bson:"kind" json:"kind"`
	VaultID  string    `bson:"vaultId,omitempty" json:"vaultId,omitempty"`
	Name     string    `bson:"name,omitempty" json:"name,omitempty"`
	Modified time.Time `bson:"modified" json:"modified"`
	Data     []byte    `bson:"data,omitempty" json:"data,omitempty"`
}

// Mode selects transaction semantics.
type Mode string

const (
	// ReadOnly transactions reject Put and Delete.
	ReadOnly Mode = "readonly"
	// ReadWrite transactions commit on success and roll back when the
	// callback returns an error.
	ReadWrite Mode = "readwrite"
)

// Tx is the operation surface inside and outside transactions.
//
// Get returns NOT_FOUND for missing ids. Delete is idempotent: deleting
// an absent id is not an error. QueryByIndex accepts the Index* field
// names and returns every matching item.
type Tx interface {
	Get(ctx context.Context, id string) (Item, error)
	Put(ctx context.Context, item Item) error
	Delete(ctx context.Context, id string) error
	QueryByIndex(ctx context.Context, field, value string) ([]Item, error)
}

// Store is a persistence backend.
//
// Transaction runs fn atomically: every mutation fn makes through its Tx
// argument is committed together, or rolled back when fn returns an error.
// Inside fn, operate through the Tx argument, not the enclosing Store.
// The tables hint names the record kinds fn touches; backends with a
// single table treat it as advisory.
type Store interface {
	Tx
	Transaction(ctx context.Context, mode Mode, tables []string, fn func(tx Tx) error) error
	Close() error
}

// columnFor maps an exported index field name to a backend column and
// reports whether the field is queryable at all.
func columnFor(field string) (string, bool) {
	switch field {
	case IndexKind:
		return "kind", true
	case IndexVault:
		return "vault_id", true
	case IndexName:
		return "name", true
	}
	return "", false
}

// readonlyTx rejects mutations for backends that enforce ReadOnly above
// the driver.
type readonlyTx struct {
	Tx
}

func (t readonlyTx) Put(ctx context.Context, item Item) error {
	return readonlyErr("put " + item.ID)
}

func (t readonlyTx) Delete(ctx context.Context, id string) error {
	return readonlyErr("delete " + id)
}

func readonlyErr(op string) error {
	return errors.New(errors.ErrCodeStorageTransaction, "%s in a readonly transaction", op)
}
