package document

import "time"

// SyncStatus is a document's position in the push lifecycle.
//
// Transitions: local-only → pending (save enqueues a push), pending →
// synced (push succeeded) or error (push failed), error → pending (retry).
type SyncStatus string

const (
	// StatusLocalOnly means the document exists only in the local store.
	StatusLocalOnly SyncStatus = "local-only"
	// StatusPending means a push is queued or in flight.
	StatusPending SyncStatus = "pending"
	// StatusSynced means the remote copy matched the local one at SyncedAt.
	StatusSynced SyncStatus = "synced"
	// StatusError means the last push failed; SyncError has the message.
	StatusError SyncStatus = "error"
)

// Meta is the sync envelope stored next to each document. The sync engine
// reads and writes only this; the document payload stays opaque to it.
type Meta struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	VaultID   string     `json:"vaultId,omitempty"`
	Modified  time.Time  `json:"modified"`
	RemoteRef string     `json:"remoteRef,omitempty"`
	Status    SyncStatus `json:"status"`
	SyncError string     `json:"syncError,omitempty"`
	SyncedAt  time.Time  `json:"syncedAt,omitempty"`
}

// MarkSynced records a successful push.
func (m *Meta) MarkSynced(remoteRef string, at time.Time) {
	m.RemoteRef = remoteRef
	m.Status = StatusSynced
	m.SyncError = ""
	m.SyncedAt = at
}

// MarkError records a failed push without losing the remote reference.
func (m *Meta) MarkError(err error) {
	m.Status = StatusError
	if err != nil {
		m.SyncError = err.Error()
	}
}
