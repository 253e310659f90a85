package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"telecloud/internal/domain"
)

// memStore is an in-memory stand-in for the Postgres repositories with the
// same owner scoping rules.
type memStore struct {
	mu          sync.Mutex
	nextFolder  int64
	folders     map[int64]domain.Folder
	files       map[uuid.UUID]domain.File
	links       map[uuid.UUID]*domain.ShareLink
	folderLinks map[int64]*domain.FolderShareLink
}

func newMemStore() *memStore {
	return &memStore{
		nextFolder:  100,
		folders:     make(map[int64]domain.Folder),
		files:       make(map[uuid.UUID]domain.File),
		links:       make(map[uuid.UUID]*domain.ShareLink),
		folderLinks: make(map[int64]*domain.FolderShareLink),
	}
}

// putFolder inserts a row as-is, without the checks the services apply.
func (m *memStore) putFolder(id int64, owner string, parent *int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.folders[id] = domain.Folder{ID: id, OwnerID: owner, Name: fmt.Sprintf("f%d", id), ParentID: parent, CreatedAt: time.Now()}
}

func (m *memStore) putFile(owner string, folder *int64, kind domain.Kind) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	ref := "100:" + id.String()[:4]
	m.files[id] = domain.File{ID: id, OwnerID: owner, FolderID: folder, ObjectID: "obj-" + id.String(), ProviderRef: &ref, Kind: kind, Name: id.String()[:8] + ".bin", MIMEType: defaultMIMEType}
	return id
}

func (m *memStore) file(id uuid.UUID) (domain.File, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	return f, ok
}

func ptr(v int64) *int64 { return &v }

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func likeToSubstring(pattern string) string {
	p := strings.TrimSuffix(strings.TrimPrefix(pattern, "%"), "%")
	return strings.NewReplacer(`\%`, `%`, `\_`, `_`, `\\`, `\`).Replace(p)
}

type memFolders struct{ *memStore }

func (m memFolders) Create(_ context.Context, folder *domain.Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextFolder++
	folder.ID = m.nextFolder
	folder.CreatedAt = time.Now()
	m.folders[folder.ID] = *folder
	return nil
}

func (m memFolders) GetByID(_ context.Context, id int64) (*domain.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.folders[id]
	if !ok {
		return nil, fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
	}
	return &f, nil
}

func (m memFolders) Rename(_ context.Context, ownerID string, id int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.folders[id]
	if !ok || f.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	f.Name = name
	m.folders[id] = f
	return nil
}

func (m memFolders) Move(_ context.Context, ownerID string, id int64, parentID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.folders[id]
	if !ok || f.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	f.ParentID = parentID
	m.folders[id] = f
	return nil
}

func (m memFolders) ListChildren(_ context.Context, ownerID string, parentID *int64) ([]domain.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Folder{}
	for _, f := range m.folders {
		if f.OwnerID == ownerID && sameParent(f.ParentID, parentID) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m memFolders) ChildIDs(_ context.Context, ownerID string, parentIDs []int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parents := make(map[int64]bool, len(parentIDs))
	for _, id := range parentIDs {
		parents[id] = true
	}
	out := []int64{}
	for _, f := range m.folders {
		if f.OwnerID == ownerID && f.ParentID != nil && parents[*f.ParentID] {
			out = append(out, f.ID)
		}
	}
	return out, nil
}

func (m memFolders) Search(_ context.Context, ownerID, pattern string) ([]domain.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	needle := strings.ToLower(likeToSubstring(pattern))
	out := []domain.Folder{}
	for _, f := range m.folders {
		if f.OwnerID == ownerID && strings.Contains(strings.ToLower(f.Name), needle) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m memFolders) DeleteSubtree(_ context.Context, ownerID string, folderIDs []int64) (*domain.SubtreeDeletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[int64]bool, len(folderIDs))
	for _, id := range folderIDs {
		set[id] = true
	}
	res := &domain.SubtreeDeletion{FolderIDs: []int64{}, Files: []domain.File{}}
	for id, f := range m.files {
		if f.OwnerID == ownerID && f.FolderID != nil && set[*f.FolderID] {
			res.Files = append(res.Files, f)
			delete(m.files, id)
			delete(m.links, id)
		}
	}
	for id, f := range m.folders {
		if f.OwnerID == ownerID && set[id] {
			res.FolderIDs = append(res.FolderIDs, id)
			delete(m.folders, id)
			delete(m.folderLinks, id)
		}
	}
	return res, nil
}

type memFiles struct{ *memStore }

func (m memFiles) Create(_ context.Context, file *domain.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	file.CreatedAt = time.Now()
	m.files[file.ID] = *file
	return nil
}

func (m memFiles) GetByID(_ context.Context, id uuid.UUID) (*domain.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}
	return &f, nil
}

func (m memFiles) ListByFolder(_ context.Context, ownerID string, folderID *int64, kind domain.Kind) ([]domain.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.File{}
	for _, f := range m.files {
		if f.OwnerID == ownerID && sameParent(f.FolderID, folderID) && (kind == "" || f.Kind == kind) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m memFiles) ListByFolders(_ context.Context, ownerID string, folderIDs []int64) ([]domain.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[int64]bool, len(folderIDs))
	for _, id := range folderIDs {
		set[id] = true
	}
	out := []domain.File{}
	for _, f := range m.files {
		if f.OwnerID == ownerID && f.FolderID != nil && set[*f.FolderID] {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m memFiles) ListByOwner(_ context.Context, ownerID string, kind domain.Kind) ([]domain.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.File{}
	for _, f := range m.files {
		if f.OwnerID == ownerID && (kind == "" || f.Kind == kind) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m memFiles) Search(_ context.Context, ownerID, pattern string) ([]domain.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	needle := strings.ToLower(likeToSubstring(pattern))
	out := []domain.File{}
	for _, f := range m.files {
		if f.OwnerID == ownerID && strings.Contains(strings.ToLower(f.Name), needle) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m memFiles) Move(_ context.Context, ownerID string, ids []uuid.UUID, folderID *int64) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	moved := []uuid.UUID{}
	for _, id := range ids {
		f, ok := m.files[id]
		if !ok || f.OwnerID != ownerID {
			continue
		}
		f.FolderID = folderID
		m.files[id] = f
		moved = append(moved, id)
	}
	return moved, nil
}

func (m memFiles) Rename(_ context.Context, ownerID string, id uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok || f.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	f.Name = name
	m.files[id] = f
	return nil
}

func (m memFiles) Delete(_ context.Context, ownerID string, ids []uuid.UUID) ([]domain.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := []domain.File{}
	for _, id := range ids {
		f, ok := m.files[id]
		if !ok || f.OwnerID != ownerID {
			continue
		}
		deleted = append(deleted, f)
		delete(m.files, id)
		delete(m.links, id)
	}
	return deleted, nil
}

type memShares struct{ *memStore }

func (m memShares) UpsertFileLink(_ context.Context, ownerID string, fileID uuid.UUID, candidate string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok || f.OwnerID != ownerID {
		return "", domain.ErrNotFound
	}
	if link, ok := m.links[fileID]; ok {
		link.IsActive = true
		return link.Token, nil
	}
	m.links[fileID] = &domain.ShareLink{ID: uuid.New(), FileID: fileID, Token: candidate, IsActive: true, CreatedAt: time.Now()}
	return candidate, nil
}

func (m memShares) UpsertFolderLink(_ context.Context, ownerID string, folderID int64, candidate string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.folders[folderID]
	if !ok || f.OwnerID != ownerID {
		return "", domain.ErrNotFound
	}
	if link, ok := m.folderLinks[folderID]; ok {
		link.IsActive = true
		return link.Token, nil
	}
	m.folderLinks[folderID] = &domain.FolderShareLink{ID: uuid.New(), FolderID: folderID, Token: candidate, IsActive: true, CreatedAt: time.Now()}
	return candidate, nil
}

func (m memShares) DeactivateFileLinks(_ context.Context, ownerID string, ids []uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		f, ok := m.files[id]
		link, linked := m.links[id]
		if ok && linked && f.OwnerID == ownerID {
			link.IsActive = false
			n++
		}
	}
	return n, nil
}

func (m memShares) DeactivateFolderLink(_ context.Context, ownerID string, folderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.folders[folderID]
	if link, linked := m.folderLinks[folderID]; ok && linked && f.OwnerID == ownerID {
		link.IsActive = false
	}
	return nil
}

func (m memShares) DeactivateToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.Token == token {
			l.IsActive = false
		}
	}
	for _, l := range m.folderLinks {
		if l.Token == token {
			l.IsActive = false
		}
	}
	return nil
}

func (m memShares) ActiveFileByToken(_ context.Context, token string) (*domain.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, l := range m.links {
		if l.Token == token && l.IsActive {
			f := m.files[id]
			return &f, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m memShares) ActiveFolderByToken(_ context.Context, token string) (*domain.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, l := range m.folderLinks {
		if l.Token == token && l.IsActive {
			f := m.folders[id]
			return &f, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m memShares) ActiveFileTokens(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]string)
	for _, id := range ids {
		if l, ok := m.links[id]; ok && l.IsActive {
			out[id] = l.Token
		}
	}
	return out, nil
}

func (m memShares) FileLink(_ context.Context, fileID uuid.UUID) (*domain.ShareLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[fileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

type services struct {
	store   *memStore
	folders *FolderService
	files   *FileService
	shares  *ShareService
}

func newServices() *services {
	store := newMemStore()
	folders := NewFolderService(memFolders{store}, memFiles{store})
	files := NewFileService(memFiles{store}, memFolders{store})
	return &services{
		store:   store,
		folders: folders,
		files:   files,
		shares:  NewShareService(memShares{store}, folders, files),
	}
}
