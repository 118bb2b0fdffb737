package document

import (
	"strings"
	"testing"
	"time"

	"github.com/canopyhq/canopy/pkg/errors"
	"github.com/canopyhq/canopy/pkg/mindmap"
)

func TestMarshalUnmarshal(t *testing.T) {
	doc := New("roadmap")
	doc.VaultID = "vault-1"
	root := mindmap.NewNode("root")
	child := mindmap.NewNode("child")
	child.ParentID = root.ID
	doc.Nodes = []mindmap.Node{*root, *child}

	data, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.ID != doc.ID {
		t.Errorf("ID = %q, want %q", got.ID, doc.ID)
	}
	if got.Name != "roadmap" {
		t.Errorf("Name = %q, want %q", got.Name, "roadmap")
	}
	if len(got.Nodes) != 2 {
		t.Fatalf("len(Nodes) = %d, want 2", len(got.Nodes))
	}
	if got.Nodes[1].ParentID != root.ID {
		t.Errorf("child ParentID = %q, want %q", got.Nodes[1].ParentID, root.ID)
	}
}

func TestUnmarshalRejectsMissingID(t *testing.T) {
	_, err := Unmarshal([]byte(`{"name":"no id","nodes":[]}`))
	if !errors.Is(err, errors.ErrCodeInvalidDocument) {
		t.Errorf("Unmarshal() error = %v, want INVALID_DOCUMENT", err)
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte(`{not json`))
	if !errors.Is(err, errors.ErrCodeInvalidDocument) {
		t.Errorf("Unmarshal() error = %v, want INVALID_DOCUMENT", err)
	}
}

func TestTreeRoundTrip(t *testing.T) {
	doc := New("notes")
	root := mindmap.NewNode("root")
	doc.Nodes = []mindmap.Node{*root}

	tree, err := doc.Tree()
	if err != nil {
		t.Fatalf("Tree() error = %v", err)
	}
	child := mindmap.NewNode("child")
	child.ParentID = root.ID
	if err := tree.Add(child); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	before := doc.Modified
	rev := doc.Rev
	doc.SetTree(tree)

	if len(doc.Nodes) != 2 {
		t.Errorf("len(Nodes) = %d, want 2", len(doc.Nodes))
	}
	if !doc.Modified.After(before) && !doc.Modified.Equal(before) {
		t.Errorf("Modified went backwards: %v -> %v", before, doc.Modified)
	}
	if doc.Rev != rev+1 {
		t.Errorf("Rev = %d, want %d", doc.Rev, rev+1)
	}
}

func TestTreeRejectsCorruptNodes(t *testing.T) {
	doc := New("broken")
	orphan := mindmap.NewNode("orphan")
	orphan.ParentID = "missing-parent"
	doc.Nodes = []mindmap.Node{*orphan}

	if _, err := doc.Tree(); !errors.Is(err, errors.ErrCodeInvalidDocument) {
		t.Errorf("Tree() error = %v, want INVALID_DOCUMENT", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	doc := New("original")
	doc.Nodes = []mindmap.Node{*mindmap.NewNode("a")}

	clone := doc.Clone()
	clone.Nodes[0].Text = "mutated"

	if doc.Nodes[0].Text != "a" {
		t.Errorf("clone mutation leaked into original: %q", doc.Nodes[0].Text)
	}
}

func TestMetaTransitions(t *testing.T) {
	doc := New("doc")
	m := doc.Meta(StatusPending)
	if m.Status != StatusPending {
		t.Fatalf("Status = %q, want %q", m.Status, StatusPending)
	}

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.MarkSynced("remote-42", at)
	if m.Status != StatusSynced || m.RemoteRef != "remote-42" || !m.SyncedAt.Equal(at) {
		t.Errorf("MarkSynced() = %+v", m)
	}

	m.MarkError(errors.New(errors.ErrCodeOffline, "no connection"))
	if m.Status != StatusError {
		t.Errorf("Status = %q, want %q", m.Status, StatusError)
	}
	if !strings.Contains(m.SyncError, "no connection") {
		t.Errorf("SyncError = %q, want it to mention the cause", m.SyncError)
	}
	if m.RemoteRef != "remote-42" {
		t.Errorf("MarkError dropped RemoteRef: %q", m.RemoteRef)
	}
}

func TestChecksumStable(t *testing.T) {
	a := Checksum([]byte("payload"))
	b := Checksum([]byte("payload"))
	c := Checksum([]byte("different"))

	if a != b {
		t.Errorf("Checksum not deterministic: %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("distinct payloads share checksum %q", a)
	}
	if len(a) != 64 {
		t.Errorf("len(checksum) = %d, want 64 hex chars", len(a))
	}
}
