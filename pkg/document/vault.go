package document

import (
	"time"

	"github.com/google/uuid"
)

// Vault is a named collection of documents and folders. Each document
// belongs to exactly one vault; partial sync operates vault-wide.
type Vault struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// RemoteFolder is the provider folder holding the vault's files,
	// empty until the first sync creates it.
	RemoteFolder string    `json:"remoteFolder,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewVault creates a vault with a fresh id.
func NewVault(name string) *Vault {
	return &Vault{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}

// Folder is a grouping entry inside a vault. ParentID is empty for
// top-level folders.
type Folder struct {
	ID       string `json:"id"`
	VaultID  string `json:"vaultId"`
	ParentID string `json:"parentId,omitempty"`
	Name     string `json:"name"`
}

// NewFolder creates a folder with a fresh id under the given parent.
func NewFolder(vaultID, parentID, name string) *Folder {
	return &Folder{
		ID:       uuid.NewString(),
		VaultID:  vaultID,
		ParentID: parentID,
		Name:     name,
	}
}
