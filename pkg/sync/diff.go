package sync

import (
	"sort"
	"time"
)

// Conflict is a file changed on both sides since the last sync: the
// remote copy is newer than the local one, and the local one was
// modified after the last pass. Conflicts are data, not errors; a pass
// that detects them still succeeds.
type Conflict struct {
	ID             string
	Path           string
	LocalModified  time.Time
	RemoteModified time.Time
}

// SyncChanges is the plan a diff produces: ids to download, upload, and
// delete, plus the conflicts that need a resolution before they move in
// either direction.
type SyncChanges struct {
	Download  []string
	Upload    []string
	Delete    []string
	Conflicts []Conflict
}

// Empty reports whether the plan has nothing to do.
func (c SyncChanges) Empty() bool {
	return len(c.Download) == 0 && len(c.Upload) == 0 &&
		len(c.Delete) == 0 && len(c.Conflicts) == 0
}

// Total counts the planned operations, conflicts included.
func (c SyncChanges) Total() int {
	return len(c.Download) + len(c.Upload) + len(c.Delete) + len(c.Conflicts)
}

// Diff compares the local manifest against the remote one and plans the
// transfers that make them converge.
//
// Per remote file: absent locally → download; remote newer → download,
// unless the local copy changed after the last sync, which is a
// conflict. Per live local file: absent remotely → upload; local newer
// and not conflicting → upload. Equal checksums mean the content already
// matches and nothing moves, whatever the timestamps say. Tombstones
// from either side are honored in both directions and never conflict.
func Diff(local, remote *Repository) SyncChanges {
	var changes SyncChanges

	tombstones := make(map[string]bool)
	for _, id := range local.Deleted {
		tombstones[id] = true
	}
	for _, id := range remote.Deleted {
		tombstones[id] = true
	}
	for id, e := range local.Files {
		if e.Deleted {
			tombstones[id] = true
		}
	}
	for id, e := range remote.Files {
		if e.Deleted {
			tombstones[id] = true
		}
	}

	conflicted := make(map[string]bool)

	for id, r := range remote.Files {
		if tombstones[id] {
			continue
		}
		l, ok := local.Files[id]
		if !ok {
			changes.Download = append(changes.Download, id)
			continue
		}
		if !r.Modified.After(l.Modified) {
			continue
		}
		if l.Checksum != "" && l.Checksum == r.Checksum {
			continue
		}
		if l.Modified.After(local.LastSyncedAt) {
			conflicted[id] = true
			changes.Conflicts = append(changes.Conflicts, Conflict{
				ID:             id,
				Path:           r.Path,
				LocalModified:  l.Modified,
				RemoteModified: r.Modified,
			})
			continue
		}
		changes.Download = append(changes.Download, id)
	}

	for id, l := range local.Files {
		if tombstones[id] || conflicted[id] {
			continue
		}
		r, ok := remote.Files[id]
		if !ok {
			changes.Upload = append(changes.Upload, id)
			continue
		}
		if !l.Modified.After(r.Modified) {
			continue
		}
		if l.Checksum != "" && l.Checksum == r.Checksum {
			continue
		}
		changes.Upload = append(changes.Upload, id)
	}

	// A tombstone is actionable while the other side still has the file.
	for id := range tombstones {
		_, inLocal := local.Files[id]
		_, inRemote := remote.Files[id]
		if inLocal || inRemote {
			changes.Delete = append(changes.Delete, id)
		}
	}

	sort.Strings(changes.Download)
	sort.Strings(changes.Upload)
	sort.Strings(changes.Delete)
	sort.Slice(changes.Conflicts, func(i, j int) bool {
		return changes.Conflicts[i].ID < changes.Conflicts[j].ID
	})
	return changes
}
