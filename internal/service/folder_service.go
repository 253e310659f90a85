package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"telecloud/internal/domain"
)

type FolderService struct {
	folderRepo FolderStore
	fileRepo   FileStore
}

func NewFolderService(folderRepo FolderStore, fileRepo FileStore) *FolderService {
	return &FolderService{
		folderRepo: folderRepo,
		fileRepo:   fileRepo,
	}
}

func (s *FolderService) Create(ctx context.Context, ownerID, name string, parentID *int64) (*domain.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("folder name is required: %w", domain.ErrValidation)
	}

	if parentID != nil {
		if _, err := s.Get(ctx, ownerID, *parentID); err != nil {
			return nil, err
		}
	}

	folder := &domain.Folder{
		OwnerID:  ownerID,
		Name:     name,
		ParentID: parentID,
	}
	if err := s.folderRepo.Create(ctx, folder); err != nil {
		return nil, err
	}

	return folder, nil
}

// Get returns the folder if it exists and belongs to ownerID.
func (s *FolderService) Get(ctx context.Context, ownerID string, id int64) (*domain.Folder, error) {
	folder, err := s.folderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if folder.OwnerID != ownerID {
		return nil, fmt.Errorf("folder %d: %w", id, domain.ErrAccessDenied)
	}
	return folder, nil
}

func (s *FolderService) Rename(ctx context.Context, ownerID string, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("folder name is required: %w", domain.ErrValidation)
	}
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return s.folderRepo.Rename(ctx, ownerID, id, name)
}

// Move reparents a folder. The new parent must belong to the same owner and
// must not lie inside the folder's own subtree.
func (s *FolderService) Move(ctx context.Context, ownerID string, id int64, parentID *int64) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}

	if parentID != nil {
		if _, err := s.Get(ctx, ownerID, *parentID); err != nil {
			return err
		}

		subtree, err := s.subtreeIDs(ctx, ownerID, id)
		if err != nil {
			return err
		}
		for _, fid := range subtree {
			if fid == *parentID {
				return fmt.Errorf("cannot move folder %d into its own subtree: %w", id, domain.ErrValidation)
			}
		}
	}

	return s.folderRepo.Move(ctx, ownerID, id, parentID)
}

// ListChildren returns one level of the hierarchy. A nil parentID lists the
// owner's root.
func (s *FolderService) ListChildren(ctx context.Context, ownerID string, parentID *int64, kind domain.Kind) (*domain.FolderContent, error) {
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("unknown kind %q: %w", kind, domain.ErrValidation)
	}

	content := &domain.FolderContent{}

	if parentID != nil {
		folder, err := s.Get(ctx, ownerID, *parentID)
		if err != nil {
			return nil, err
		}
		content.Folder = folder

		content.Breadcrumb, err = s.Breadcrumb(ctx, ownerID, folder.ID)
		if err != nil {
			return nil, err
		}
	}

	folders, err := s.folderRepo.ListChildren(ctx, ownerID, parentID)
	if err != nil {
		return nil, err
	}
	files, err := s.fileRepo.ListByFolder(ctx, ownerID, parentID, kind)
	if err != nil {
		return nil, err
	}

	content.Folders = folders
	content.Files = files
	if content.Folders == nil {
		content.Folders = []domain.Folder{}
	}
	if content.Files == nil {
		content.Files = []domain.File{}
	}

	return content, nil
}

// CollectSubtreeFolderIDs returns rootID and every folder of ownerID below it.
func (s *FolderService) CollectSubtreeFolderIDs(ctx context.Context, ownerID string, rootID int64) ([]int64, error) {
	if _, err := s.Get(ctx, ownerID, rootID); err != nil {
		return nil, err
	}
	return s.subtreeIDs(ctx, ownerID, rootID)
}

// subtreeIDs walks the tree breadth first, one query per level. The visited
// set bounds the walk on corrupted data where parent links form a cycle.
func (s *FolderService) subtreeIDs(ctx context.Context, ownerID string, rootID int64) ([]int64, error) {
	visited := map[int64]struct{}{rootID: {}}
	ids := []int64{rootID}
	frontier := []int64{rootID}

	for len(frontier) > 0 {
		children, err := s.folderRepo.ChildIDs(ctx, ownerID, frontier)
		if err != nil {
			return nil, fmt.Errorf("failed to collect subtree of %d: %w", rootID, err)
		}

		var next []int64
		for _, id := range children {
			if _, seen := visited[id]; seen {
				continue
			}
			visited[id] = struct{}{}
			ids = append(ids, id)
			next = append(next, id)
		}
		frontier = next
	}

	return ids, nil
}

func (s *FolderService) CollectFilesInSubtree(ctx context.Context, ownerID string, rootID int64) ([]domain.File, error) {
	ids, err := s.CollectSubtreeFolderIDs(ctx, ownerID, rootID)
	if err != nil {
		return nil, err
	}
	return s.fileRepo.ListByFolders(ctx, ownerID, ids)
}

// DeleteSubtree removes the folder, every folder below it and all their
// files. Deleting a folder that is already gone returns an empty result.
func (s *FolderService) DeleteSubtree(ctx context.Context, ownerID string, rootID int64) (*domain.SubtreeDeletion, error) {
	if _, err := s.Get(ctx, ownerID, rootID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.SubtreeDeletion{FolderIDs: []int64{}, Files: []domain.File{}}, nil
		}
		return nil, err
	}

	ids, err := s.subtreeIDs(ctx, ownerID, rootID)
	if err != nil {
		return nil, err
	}

	return s.folderRepo.DeleteSubtree(ctx, ownerID, ids)
}

// Breadcrumb returns the ancestor chain of id, root first, id last.
func (s *FolderService) Breadcrumb(ctx context.Context, ownerID string, id int64) ([]domain.Folder, error) {
	var chain []domain.Folder
	visited := make(map[int64]struct{})

	next := &id
	for next != nil {
		if _, seen := visited[*next]; seen {
			break
		}
		visited[*next] = struct{}{}

		folder, err := s.folderRepo.GetByID(ctx, *next)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				break
			}
			return nil, err
		}
		if folder.OwnerID != ownerID {
			break
		}

		chain = append(chain, *folder)
		next = folder.ParentID
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	return chain, nil
}
