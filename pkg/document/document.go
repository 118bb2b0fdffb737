// Package document defines the unit of persistence and sync: a named
// collection of mindmap nodes plus the metadata envelope the sync engine
// tracks alongside it.
//
// The sync engine never looks inside a document. It moves the serialized
// payload as opaque bytes and works off the [Meta] envelope (modification
// time, remote reference, sync status), so the node model can evolve
// without touching the sync protocol.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/canopyhq/canopy/pkg/errors"
	"github.com/canopyhq/canopy/pkg/mindmap"
)

// Document is a mindmap with identity and sync bookkeeping.
//
// Nodes are stored flat; use [Document.Tree] to get the indexed arena form
// and [Document.SetTree] to write a mutated tree back. Modified is bumped
// by SetTree and Touch and is the timestamp last-write-wins reconciliation
// compares.
type Document struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	VaultID  string         `json:"vaultId,omitempty"`
	FolderID string         `json:"folderId,omitempty"`
	Nodes    []mindmap.Node `json:"nodes"`

	Modified time.Time `json:"modified"`

	// RemoteRef is the provider-side file id, empty until the first
	// successful push. Rev counts local revisions for debugging; it is
	// not part of any sync decision.
	RemoteRef string `json:"remoteRef,omitempty"`
	Rev       int64  `json:"rev,omitempty"`
}

// New creates an empty document with a fresh id.
func New(name string) *Document {
	return &Document{
		ID:       uuid.NewString(),
		Name:     name,
		Modified: time.Now().UTC(),
	}
}

// Tree builds the arena form of the document's nodes. The returned tree is
// independent: mutations do not touch the document until [Document.SetTree].
func (d *Document) Tree() (*mindmap.Tree, error) {
	t, err := mindmap.FromNodes(d.Nodes)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "document %s has an inconsistent node set", d.ID)
	}
	return t, nil
}

// SetTree replaces the document's nodes with the tree's current state and
// bumps the modification time and revision.
func (d *Document) SetTree(t *mindmap.Tree) {
	d.Nodes = t.Nodes()
	d.Touch()
}

// Touch marks the document as changed now.
func (d *Document) Touch() {
	d.Modified = time.Now().UTC()
	d.Rev++
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	out := *d
	out.Nodes = make([]mindmap.Node, len(d.Nodes))
	copy(out.Nodes, d.Nodes)
	return &out
}

// Meta derives the sync envelope for the document with the given status.
func (d *Document) Meta(status SyncStatus) Meta {
	return Meta{
		ID:        d.ID,
		Name:      d.Name,
		VaultID:   d.VaultID,
		Modified:  d.Modified,
		RemoteRef: d.RemoteRef,
		Status:    status,
	}
}

// Marshal serializes the document for storage and transport.
func Marshal(d *Document) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "marshal document %s", d.ID)
	}
	return data, nil
}

// MarshalIndent serializes the document for human-readable file output.
func MarshalIndent(d *Document) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "marshal document %s", d.ID)
	}
	return data, nil
}

// Unmarshal parses a serialized document and rejects payloads without an id.
func Unmarshal(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "parse document")
	}
	if d.ID == "" {
		return nil, errors.New(errors.ErrCodeInvalidDocument, "document payload has no id")
	}
	return &d, nil
}

// Checksum returns the hex SHA-256 of a serialized payload. Repository
// entries carry it so unchanged content can skip the upload round trip.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
