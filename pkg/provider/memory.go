package provider

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/canopyhq/canopy/pkg/errors"
)

// MemoryProvider keeps the remote in process memory. It backs tests and
// offline development sessions.
type MemoryProvider struct {
	// Hook, when set, runs before every operation with its name
	// (e.g. "GetManifest"); returning an error fails the operation.
	// Tests use it to inject remote failures.
	Hook func(op string) error

	mu        sync.Mutex
	online    bool
	files     map[string]*memFile
	trash     map[string]*memFile
	folders   map[string]string // name → id
	locks     map[string]Lock   // vaultID → marker
	manifests map[string][]byte // vaultID → manifest
}

type memFile struct {
	meta    File
	content []byte
}

// NewMemoryProvider creates an empty, online in-memory remote.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		online:    true,
		files:     make(map[string]*memFile),
		trash:     make(map[string]*memFile),
		folders:   make(map[string]string),
		locks:     make(map[string]Lock),
		manifests: make(map[string][]byte),
	}
}

// SetOnline toggles simulated reachability. While offline every
// operation fails with NETWORK_OFFLINE.
func (p *MemoryProvider) SetOnline(online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = online
}

// Online implements [Provider].
func (p *MemoryProvider) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// check gates an operation on reachability and the test hook.
func (p *MemoryProvider) check(op string) error {
	if !p.online {
		return errors.New(errors.ErrCodeOffline, "remote unreachable")
	}
	if p.Hook != nil {
		if err := p.Hook(op); err != nil {
			return err
		}
	}
	return nil
}

// ListFiles implements [Provider].
func (p *MemoryProvider) ListFiles(ctx context.Context, folderID string) ([]File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check("ListFiles"); err != nil {
		return nil, err
	}
	var out []File
	for _, f := range p.files {
		if f.meta.FolderID == folderID {
			out = append(out, f.meta)
		}
	}
	return out, nil
}

// CreateFile implements [Provider].
func (p *MemoryProvider) CreateFile(ctx context.Context, folderID, name string, content []byte) (File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check("CreateFile"); err != nil {
		return File{}, err
	}
	f := &memFile{
		meta: File{
			ID:       uuid.NewString(),
			FolderID: folderID,
			Name:     name,
			Size:     int64(len(content)),
			Modified: time.Now().UTC(),
		},
		content: append([]byte(nil), content...),
	}
	p.files[f.meta.ID] = f
	return f.meta, nil
}

// UpdateFile implements [Provider].
func (p *MemoryProvider) UpdateFile(ctx context.Context, fileID string, content []byte) (File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check("UpdateFile"); err != nil {
		return File{}, err
	}
	f, ok := p.files[fileID]
	if !ok {
		return File{}, errors.New(errors.ErrCodeFileNotFound, "file %s", fileID)
	}
	f.content = append([]byte(nil), content...)
	f.meta.Size = int64(len(content))
	f.meta.Modified = time.Now().UTC()
	return f.meta, nil
}

// GetFile implements [Provider].
func (p *MemoryProvider) GetFile(ctx context.Context, fileID string) (File, []byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check("GetFile"); err != nil {
		return File{}, nil, err
	}
	f, ok := p.files[fileID]
	if !ok {
		return File{}, nil, errors.New(errors.ErrCodeFileNotFound, "file %s", fileID)
	}
	return f.meta, append([]byte(nil), f.content...), nil
}

// TrashFile implements [Provider].
func (p *MemoryProvider) TrashFile(ctx context.Context, fileID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check("TrashFile"); err != nil {
		return err
	}
	f, ok := p.files[fileID]
	if !ok {
		return errors.New(errors.ErrCodeFileNotFound, "file %s", fileID)
	}
	delete(p.files, fileID)
	p.trash[fileID] = f
	return nil
}

// FindOrCreateFolder implements [Provider].
func (p *MemoryProvider) FindOrCreateFolder(ctx context.Context, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check("FindOrCreateFolder"); err != nil {
		return "", err
	}
	if id, ok := p.folders[name]; ok {
		return id, nil
	}
	id := uuid.NewString()
	p.folders[name] = id
	return id, nil
}

// AcquireLock implements [Provider].
func (p *MemoryProvider) AcquireLock(ctx context.Context, vaultID, owner string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check("AcquireLock"); err != nil {
		return err
	}
	now := time.Now().UTC()
	if held, ok := p.locks[vaultID]; ok && held.Owner != owner && !held.Stale(now) {
		return errors.New(errors.ErrCodeLock, "vault %s locked by %s", vaultID, held.Owner)
	}
	p.locks[vaultID] = Lock{Owner: owner, AcquiredAt: now}
	return nil
}

// ReleaseLock implements [Provider].
func (p *MemoryProvider) ReleaseLock(ctx context.Context, vaultID, owner string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check("ReleaseLock"); err != nil {
		return err
	}
	if held, ok := p.locks[vaultID]; ok && held.Owner == owner {
		delete(p.locks, vaultID)
	}
	return nil
}

// GetManifest implements [Provider].
func (p *MemoryProvider) GetManifest(ctx context.Context, vaultID string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check("GetManifest"); err != nil {
		return nil, false, err
	}
	data, ok := p.manifests[vaultID]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// PutManifest implements [Provider].
func (p *MemoryProvider) PutManifest(ctx context.Context, vaultID string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check("PutManifest"); err != nil {
		return err
	}
	p.manifests[vaultID] = append([]byte(nil), data...)
	return nil
}

// Locked reports whether a vault currently has a lock marker. Test
// helper; not part of [Provider].
func (p *MemoryProvider) Locked(vaultID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.locks[vaultID]
	return ok
}

// Trashed reports whether a file sits in the trash. Test helper.
func (p *MemoryProvider) Trashed(fileID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.trash[fileID]
	return ok
}

var _ Provider = (*MemoryProvider)(nil)
