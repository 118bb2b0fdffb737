package sync

import (
	"testing"
	"time"
)

func TestRepositoryMarkDeleted(t *testing.T) {
	r := NewRepository("vault-1")
	r.SetFile("a", Entry{Path: "a.json", Modified: at(10)})
	r.SetFolder("f", Entry{Path: "notes"})

	r.MarkDeleted("a")
	r.MarkDeleted("a") // idempotent
	r.MarkDeleted("f")

	if _, ok := r.Files["a"]; ok {
		t.Error("tombstoned file still live")
	}
	if _, ok := r.Folders["f"]; ok {
		t.Error("tombstoned folder still live")
	}
	if len(r.Deleted) != 2 {
		t.Errorf("Deleted = %v, want exactly [a f]", r.Deleted)
	}
	if !r.IsDeleted("a") || !r.IsDeleted("f") {
		t.Error("IsDeleted() = false for tombstoned ids")
	}
	if r.IsDeleted("other") {
		t.Error("IsDeleted() = true for an unknown id")
	}
}

func TestRepositoryIsDeletedViaEntryFlag(t *testing.T) {
	r := NewRepository("vault-1")
	r.SetFile("a", Entry{Path: "a.json", Deleted: true})
	if !r.IsDeleted("a") {
		t.Error("entry-level deleted flag not honored")
	}
}

func TestRepositoryCloneIsIndependent(t *testing.T) {
	r := NewRepository("vault-1")
	r.LastSyncedAt = at(100)
	r.SetFile("a", Entry{Path: "a.json", Modified: at(10)})
	r.MarkDeleted("gone")

	c := r.Clone()
	c.SetFile("b", Entry{Path: "b.json"})
	c.MarkDeleted("a")
	c.LastSyncedAt = at(200)

	if _, ok := r.Files["b"]; ok {
		t.Error("clone write leaked into the original")
	}
	if r.IsDeleted("a") {
		t.Error("clone tombstone leaked into the original")
	}
	if !r.LastSyncedAt.Equal(at(100)) {
		t.Errorf("LastSyncedAt = %v, want %v", r.LastSyncedAt, at(100))
	}
}

func TestRepositoryMarshalRoundTrip(t *testing.T) {
	r := NewRepository("vault-1")
	r.LastSyncedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.SetFile("a", Entry{Path: "a.json", Ref: "ref-a", Modified: at(10), Size: 42, Checksum: "c"})
	r.SetFolder("f", Entry{Path: "notes"})
	r.MarkDeleted("gone")

	data, err := r.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got, err := UnmarshalRepository(data)
	if err != nil {
		t.Fatalf("UnmarshalRepository() error = %v", err)
	}

	if got.ID != "vault-1" || got.Version != repositoryVersion {
		t.Errorf("identity = (%q, %d)", got.ID, got.Version)
	}
	if e := got.Files["a"]; e.Ref != "ref-a" || e.Size != 42 || e.Checksum != "c" {
		t.Errorf("file entry = %+v", e)
	}
	if !got.IsDeleted("gone") {
		t.Error("tombstone lost in round trip")
	}
	if !got.LastSyncedAt.Equal(r.LastSyncedAt) {
		t.Errorf("LastSyncedAt = %v, want %v", got.LastSyncedAt, r.LastSyncedAt)
	}
}

func TestUnmarshalRepositoryToleratesNilMaps(t *testing.T) {
	got, err := UnmarshalRepository([]byte(`{"id":"v","version":1}`))
	if err != nil {
		t.Fatalf("UnmarshalRepository() error = %v", err)
	}
	// Writable maps even when the payload omitted them.
	got.SetFile("a", Entry{})
	got.SetFolder("f", Entry{})

	if _, err := UnmarshalRepository([]byte(`{"id":`)); err == nil {
		t.Error("UnmarshalRepository() accepted truncated JSON")
	}
}
