package sync

import (
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"github.com/canopyhq/canopy/pkg/errors"
)

// repositoryVersion tags the manifest schema so a future shape change
// can migrate old baselines.
const repositoryVersion = 1

// Entry is one tracked file or folder inside a repository manifest.
// Ref is the provider-side id the content lives under; Checksum is the
// hex SHA-256 of the serialized payload, used to skip no-op transfers.
type Entry struct {
	Path     string    `json:"path"`
	Ref      string    `json:"ref,omitempty"`
	Modified time.Time `json:"modified"`
	Size     int64     `json:"size,omitempty"`
	Checksum string    `json:"checksum,omitempty"`
	Deleted  bool      `json:"deleted,omitempty"`
}

// Repository is the manifest each side of a sync pass describes itself
// with: live files keyed by document id, tombstones for removed ones,
// and the time of the last successful pass. It exists for diffing and
// is otherwise never consulted.
type Repository struct {
	ID           string           `json:"id"`
	Version      int              `json:"version"`
	Files        map[string]Entry `json:"files"`
	Folders      map[string]Entry `json:"folders,omitempty"`
	Deleted      []string         `json:"deleted,omitempty"`
	LastSyncedAt time.Time        `json:"lastSyncedAt"`
}

// NewRepository creates an empty manifest for a vault. LastSyncedAt
// stays zero until the first pass persists a baseline.
func NewRepository(vaultID string) *Repository {
	return &Repository{
		ID:      vaultID,
		Version: repositoryVersion,
		Files:   make(map[string]Entry),
		Folders: make(map[string]Entry),
	}
}

// Clone returns an independent deep copy.
func (r *Repository) Clone() *Repository {
	out := &Repository{
		ID:           r.ID,
		Version:      r.Version,
		Files:        make(map[string]Entry, len(r.Files)),
		Folders:      make(map[string]Entry, len(r.Folders)),
		LastSyncedAt: r.LastSyncedAt,
	}
	for id, e := range r.Files {
		out.Files[id] = e
	}
	for id, e := range r.Folders {
		out.Folders[id] = e
	}
	if len(r.Deleted) > 0 {
		out.Deleted = append([]string(nil), r.Deleted...)
	}
	return out
}

// SetFile records the current state of a live file.
func (r *Repository) SetFile(id string, e Entry) {
	if r.Files == nil {
		r.Files = make(map[string]Entry)
	}
	r.Files[id] = e
}

// SetFolder records the current state of a folder.
func (r *Repository) SetFolder(id string, e Entry) {
	if r.Folders == nil {
		r.Folders = make(map[string]Entry)
	}
	r.Folders[id] = e
}

// MarkDeleted tombstones an id: the live entry goes away and the id
// joins the deleted list exactly once.
func (r *Repository) MarkDeleted(id string) {
	delete(r.Files, id)
	delete(r.Folders, id)
	for _, d := range r.Deleted {
		if d == id {
			return
		}
	}
	r.Deleted = append(r.Deleted, id)
	sort.Strings(r.Deleted)
}

// IsDeleted reports whether id is tombstoned.
func (r *Repository) IsDeleted(id string) bool {
	for _, d := range r.Deleted {
		if d == id {
			return true
		}
	}
	if e, ok := r.Files[id]; ok && e.Deleted {
		return true
	}
	return false
}

// Marshal serializes the manifest.
func (r *Repository) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "marshal repository %s", r.ID)
	}
	return data, nil
}

// UnmarshalRepository parses a manifest, tolerating nil maps in old or
// hand-written payloads.
func UnmarshalRepository(data []byte) (*Repository, error) {
	var r Repository
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse repository manifest")
	}
	if r.Files == nil {
		r.Files = make(map[string]Entry)
	}
	if r.Folders == nil {
		r.Folders = make(map[string]Entry)
	}
	return &r, nil
}
