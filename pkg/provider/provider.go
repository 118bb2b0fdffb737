// Package provider abstracts the remote storage side of sync.
//
// A Provider moves opaque file content in and out of a remote backend and
// carries the two vault-wide extension points partial sync needs: an
// advisory lock marker and the repository manifest. Backends: in-memory
// (tests, offline development), HTTP (the canopy remote protocol), and
// S3-compatible object storage.
package provider

import (
	"context"
	"time"
)

// LockStaleAfter is how long a lock marker stays authoritative. Markers
// older than this are treated as leftovers from a crashed peer and may be
// stolen.
const LockStaleAfter = 10 * time.Minute

// File is remote file metadata. ID is provider-scoped and opaque to the
// rest of the system; it lands in document.Meta.RemoteRef.
type File struct {
	ID       string    `json:"id"`
	FolderID string    `json:"folderId,omitempty"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Lock is the advisory vault-wide mutual-exclusion marker. It is not
// enforced by the backend; peers honor it cooperatively.
type Lock struct {
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// Stale reports whether the marker is old enough to steal.
func (l Lock) Stale(now time.Time) bool {
	return now.Sub(l.AcquiredAt) >= LockStaleAfter
}

// Provider is the remote storage boundary.
//
// All calls take a context and surface failures as NETWORK_* coded
// errors; GetFile on an unknown id returns FILE_NOT_FOUND. Online is a
// cheap local check (last observed transport state), not a probe.
type Provider interface {
	// ListFiles returns the metadata of every live file in a folder.
	ListFiles(ctx context.Context, folderID string) ([]File, error)
	// CreateFile uploads a new file and returns its remote metadata.
	CreateFile(ctx context.Context, folderID, name string, content []byte) (File, error)
	// UpdateFile replaces the content of an existing file.
	UpdateFile(ctx context.Context, fileID string, content []byte) (File, error)
	// GetFile fetches metadata and content.
	GetFile(ctx context.Context, fileID string) (File, []byte, error)
	// TrashFile moves a file out of the live set without destroying it.
	TrashFile(ctx context.Context, fileID string) error
	// FindOrCreateFolder resolves a folder name to its id, creating the
	// folder on first use.
	FindOrCreateFolder(ctx context.Context, name string) (string, error)

	// Online reports the last observed reachability of the remote.
	Online() bool

	// AcquireLock places the vault lock marker. A fresh marker held by
	// another owner fails with NETWORK_LOCK; a stale one is stolen.
	// Re-acquiring an own lock refreshes it.
	AcquireLock(ctx context.Context, vaultID, owner string) error
	// ReleaseLock removes the marker when owned; releasing a lock that
	// is absent or owned by someone else is not an error.
	ReleaseLock(ctx context.Context, vaultID, owner string) error
	// GetManifest fetches the vault's repository manifest; ok is false
	// when the vault has never been synced.
	GetManifest(ctx context.Context, vaultID string) (data []byte, ok bool, err error)
	// PutManifest replaces the vault's repository manifest.
	PutManifest(ctx context.Context, vaultID string, data []byte) error
}
