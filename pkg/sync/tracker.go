package sync

import (
	"sort"
	"sync"
)

// Tracker accumulates which items changed between sync passes. Save,
// rename, move, and delete operations record into it; the sync manager
// drains it when building the local side of a vault diff.
//
// Tracking is advisory and cannot fail: a store mutation is never rolled
// back on account of its tracker record.
type Tracker struct {
	mu       sync.Mutex
	modified map[string]struct{}
	deleted  map[string]struct{}
	renamed  map[string]string
	moved    map[string]string
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		modified: make(map[string]struct{}),
		deleted:  make(map[string]struct{}),
		renamed:  make(map[string]string),
		moved:    make(map[string]string),
	}
}

// RecordModified flags an item's content as changed.
func (t *Tracker) RecordModified(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modified[id] = struct{}{}
}

// RecordDeleted flags an item as removed. Deletion wins over every other
// record for the same id when a snapshot is taken.
func (t *Tracker) RecordDeleted(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deleted[id] = struct{}{}
}

// RecordRenamed notes an item's new name.
func (t *Tracker) RecordRenamed(id, newName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.renamed[id] = newName
}

// RecordMoved notes an item's new parent.
func (t *Tracker) RecordMoved(id, newParentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.moved[id] = newParentID
}

// ChangeSet is a point-in-time resolution of tracked changes. Ids
// deleted in the window appear only in Deleted, whatever else was
// recorded for them; id slices come back sorted.
type ChangeSet struct {
	Modified []string
	Deleted  []string
	Renamed  map[string]string
	Moved    map[string]string
}

// Empty reports whether nothing was tracked.
func (c ChangeSet) Empty() bool {
	return len(c.Modified) == 0 && len(c.Deleted) == 0 &&
		len(c.Renamed) == 0 && len(c.Moved) == 0
}

// Snapshot resolves and returns the current changes without clearing them.
func (t *Tracker) Snapshot() ChangeSet {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := ChangeSet{
		Renamed: make(map[string]string),
		Moved:   make(map[string]string),
	}
	for id := range t.modified {
		if _, dead := t.deleted[id]; dead {
			continue
		}
		out.Modified = append(out.Modified, id)
	}
	for id := range t.deleted {
		out.Deleted = append(out.Deleted, id)
	}
	for id, name := range t.renamed {
		if _, dead := t.deleted[id]; dead {
			continue
		}
		out.Renamed[id] = name
	}
	for id, parent := range t.moved {
		if _, dead := t.deleted[id]; dead {
			continue
		}
		out.Moved[id] = parent
	}
	sort.Strings(out.Modified)
	sort.Strings(out.Deleted)
	return out
}

// HasChanges reports whether anything is tracked.
func (t *Tracker) HasChanges() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.modified) > 0 || len(t.deleted) > 0 ||
		len(t.renamed) > 0 || len(t.moved) > 0
}

// Clear forgets everything tracked so far.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modified = make(map[string]struct{})
	t.deleted = make(map[string]struct{})
	t.renamed = make(map[string]string)
	t.moved = make(map[string]string)
}

// ClearItem forgets every record for one id, typically after the item
// was pushed or its deletion propagated.
func (t *Tracker) ClearItem(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.modified, id)
	delete(t.deleted, id)
	delete(t.renamed, id)
	delete(t.moved, id)
}
