package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/canopyhq/canopy/pkg/errors"
)

// backends returns every Store implementation the contract tests cover.
// Mongo needs a running server and is exercised against real deployments.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "canopy.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func testItem(id string) Item {
	return Item{
		ID:       id,
		Kind:     KindDocument,
		VaultID:  "vault-1",
		Name:     "doc " + id,
		Modified: time.Date(2025, 5, 1, 10, 30, 0, 12345, time.UTC),
		Data:     []byte(`{"id":"` + id + `"}`),
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := testItem("a")
			if err := s.Put(ctx, want); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			got, err := s.Get(ctx, "a")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.ID != want.ID || got.Kind != want.Kind || got.VaultID != want.VaultID || got.Name != want.Name {
				t.Errorf("Get() = %+v, want %+v", got, want)
			}
			if !got.Modified.Equal(want.Modified) {
				t.Errorf("Modified = %v, want %v", got.Modified, want.Modified)
			}
			if string(got.Data) != string(want.Data) {
				t.Errorf("Data = %s, want %s", got.Data, want.Data)
			}
		})
	}
}

func TestPutOverwrites(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			item := testItem("a")
			if err := s.Put(ctx, item); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			item.Name = "renamed"
			if err := s.Put(ctx, item); err != nil {
				t.Fatalf("Put() overwrite error = %v", err)
			}

			got, err := s.Get(ctx, "a")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.Name != "renamed" {
				t.Errorf("Name = %q, want %q", got.Name, "renamed")
			}
		})
	}
}

func TestPutRejectsEmptyID(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Put(ctx, Item{Kind: KindDocument}); !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("Put() error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, "nope"); !errors.Is(err, errors.ErrCodeNotFound) {
				t.Errorf("Get() error = %v, want NOT_FOUND", err)
			}
		})
	}
}

func TestDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Put(ctx, testItem("a")); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if err := s.Delete(ctx, "a"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if err := s.Delete(ctx, "a"); err != nil {
				t.Errorf("second Delete() error = %v, want nil", err)
			}
			if _, err := s.Get(ctx, "a"); !errors.Is(err, errors.ErrCodeNotFound) {
				t.Errorf("Get() after delete error = %v, want NOT_FOUND", err)
			}
		})
	}
}

func TestQueryByIndex(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a := testItem("a")
			b := testItem("b")
			b.Kind = KindMeta
			c := testItem("c")
			c.VaultID = "vault-2"
			for _, item := range []Item{a, b, c} {
				if err := s.Put(ctx, item); err != nil {
					t.Fatalf("Put(%s) error = %v", item.ID, err)
				}
			}

			tests := []struct {
				field string
				value string
				want  int
			}{
				{IndexKind, string(KindDocument), 2},
				{IndexKind, string(KindMeta), 1},
				{IndexVault, "vault-1", 2},
				{IndexVault, "vault-2", 1},
				{IndexName, "doc b", 1},
				{IndexName, "absent", 0},
			}
			for _, tt := range tests {
				got, err := s.QueryByIndex(ctx, tt.field, tt.value)
				if err != nil {
					t.Fatalf("QueryByIndex(%s, %s) error = %v", tt.field, tt.value, err)
				}
				if len(got) != tt.want {
					t.Errorf("QueryByIndex(%s, %s) returned %d items, want %d", tt.field, tt.value, len(got), tt.want)
				}
			}

			if _, err := s.QueryByIndex(ctx, "size", "10"); !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("QueryByIndex(size) error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestTransactionCommit(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Transaction(ctx, ReadWrite, []string{"items"}, func(tx Tx) error {
				if err := tx.Put(ctx, testItem("a")); err != nil {
					return err
				}
				return tx.Put(ctx, testItem("b"))
			})
			if err != nil {
				t.Fatalf("Transaction() error = %v", err)
			}

			for _, id := range []string{"a", "b"} {
				if _, err := s.Get(ctx, id); err != nil {
					t.Errorf("Get(%s) after commit error = %v", id, err)
				}
			}
		})
	}
}

func TestTransactionRollback(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Put(ctx, testItem("keep")); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			boom := errors.New(errors.ErrCodeInternal, "boom")
			err := s.Transaction(ctx, ReadWrite, []string{"items"}, func(tx Tx) error {
				if err := tx.Put(ctx, testItem("staged")); err != nil {
					return err
				}
				if err := tx.Delete(ctx, "keep"); err != nil {
					return err
				}
				return boom
			})
			if !errors.Is(err, errors.ErrCodeInternal) {
				t.Fatalf("Transaction() error = %v, want the callback error", err)
			}

			if _, err := s.Get(ctx, "staged"); !errors.Is(err, errors.ErrCodeNotFound) {
				t.Errorf("staged item survived rollback: err = %v", err)
			}
			if _, err := s.Get(ctx, "keep"); err != nil {
				t.Errorf("pre-existing item lost in rollback: err = %v", err)
			}
		})
	}
}

func TestReadOnlyTransactionRejectsWrites(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Put(ctx, testItem("a")); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			err := s.Transaction(ctx, ReadOnly, []string{"items"}, func(tx Tx) error {
				if _, err := tx.Get(ctx, "a"); err != nil {
					return err
				}
				return tx.Put(ctx, testItem("b"))
			})
			if !errors.Is(err, errors.ErrCodeStorageTransaction) {
				t.Errorf("Transaction() error = %v, want STORAGE_TRANSACTION", err)
			}
			if _, err := s.Get(ctx, "b"); !errors.Is(err, errors.ErrCodeNotFound) {
				t.Errorf("write leaked out of readonly transaction: err = %v", err)
			}
		})
	}
}
