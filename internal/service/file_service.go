package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"telecloud/internal/domain"
)

const defaultMIMEType = "application/octet-stream"

type FileService struct {
	fileRepo   FileStore
	folderRepo FolderStore
}

func NewFileService(fileRepo FileStore, folderRepo FolderStore) *FileService {
	return &FileService{
		fileRepo:   fileRepo,
		folderRepo: folderRepo,
	}
}

// Create registers a newly arrived remote object as a file record.
func (s *FileService) Create(ctx context.Context, in domain.NewFile) (*domain.File, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return nil, fmt.Errorf("owner id is required: %w", domain.ErrValidation)
	}
	if strings.TrimSpace(in.ObjectID) == "" {
		return nil, fmt.Errorf("object id is required: %w", domain.ErrValidation)
	}
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("unknown kind %q: %w", in.Kind, domain.ErrValidation)
	}
	if in.SizeBytes < 0 {
		return nil, fmt.Errorf("negative size: %w", domain.ErrValidation)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("file name is required: %w", domain.ErrValidation)
	}

	if in.FolderID != nil {
		if err := s.checkFolder(ctx, in.OwnerID, *in.FolderID); err != nil {
			return nil, err
		}
	}

	file := &domain.File{
		ID:        uuid.New(),
		OwnerID:   in.OwnerID,
		FolderID:  in.FolderID,
		ObjectID:  in.ObjectID,
		Kind:      in.Kind,
		Name:      name,
		MIMEType:  in.MIMEType,
		SizeBytes: in.SizeBytes,
	}
	if file.MIMEType == "" {
		file.MIMEType = defaultMIMEType
	}
	if in.ThumbObjectID != "" {
		thumb := in.ThumbObjectID
		file.ThumbObjectID = &thumb
	}
	if in.ProviderRef != "" {
		ref := in.ProviderRef
		file.ProviderRef = &ref
	}

	if err := s.fileRepo.Create(ctx, file); err != nil {
		return nil, err
	}

	return file, nil
}

// Get returns the file if it exists and belongs to ownerID.
func (s *FileService) Get(ctx context.Context, ownerID string, id uuid.UUID) (*domain.File, error) {
	file, err := s.fileRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != ownerID {
		return nil, fmt.Errorf("file %s: %w", id, domain.ErrAccessDenied)
	}
	return file, nil
}

func (s *FileService) List(ctx context.Context, ownerID string, kind domain.Kind) ([]domain.File, error) {
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("unknown kind %q: %w", kind, domain.ErrValidation)
	}
	return s.fileRepo.ListByOwner(ctx, ownerID, kind)
}

// Move places a file into folderID, or the root when folderID is nil.
func (s *FileService) Move(ctx context.Context, ownerID string, id uuid.UUID, folderID *int64) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if folderID != nil {
		if err := s.checkFolder(ctx, ownerID, *folderID); err != nil {
			return err
		}
	}

	moved, err := s.fileRepo.Move(ctx, ownerID, []uuid.UUID{id}, folderID)
	if err != nil {
		return err
	}
	if len(moved) == 0 {
		return fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// BulkMove moves every owned file in ids. Ids that are absent or belong to
// another owner are skipped and counted.
func (s *FileService) BulkMove(ctx context.Context, ownerID string, ids []uuid.UUID, folderID *int64) (*domain.BatchResult, error) {
	set := uniqueIDs(ids)
	if len(set) == 0 {
		return nil, fmt.Errorf("no file ids given: %w", domain.ErrValidation)
	}
	if folderID != nil {
		if err := s.checkFolder(ctx, ownerID, *folderID); err != nil {
			return nil, err
		}
	}

	moved, err := s.fileRepo.Move(ctx, ownerID, set, folderID)
	if err != nil {
		return nil, err
	}

	return newBatchResult(len(set), len(moved)), nil
}

func (s *FileService) Rename(ctx context.Context, ownerID string, id uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("file name is required: %w", domain.ErrValidation)
	}
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return s.fileRepo.Rename(ctx, ownerID, id, name)
}

// Delete removes the file record and returns it so the caller can clean up
// the remote object.
func (s *FileService) Delete(ctx context.Context, ownerID string, id uuid.UUID) (*domain.File, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}

	deleted, err := s.fileRepo.Delete(ctx, ownerID, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(deleted) == 0 {
		return nil, fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}

	return &deleted[0], nil
}

func (s *FileService) BulkDelete(ctx context.Context, ownerID string, ids []uuid.UUID) (*domain.BatchResult, error) {
	set := uniqueIDs(ids)
	if len(set) == 0 {
		return nil, fmt.Errorf("no file ids given: %w", domain.ErrValidation)
	}

	deleted, err := s.fileRepo.Delete(ctx, ownerID, set)
	if err != nil {
		return nil, err
	}

	result := newBatchResult(len(set), len(deleted))
	result.Deleted = deleted
	return result, nil
}

// Search matches file and folder names case-insensitively.
func (s *FileService) Search(ctx context.Context, ownerID, query string) (*domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is required: %w", domain.ErrValidation)
	}

	pattern := "%" + escapeLike(query) + "%"

	folders, err := s.folderRepo.Search(ctx, ownerID, pattern)
	if err != nil {
		return nil, err
	}
	files, err := s.fileRepo.Search(ctx, ownerID, pattern)
	if err != nil {
		return nil, err
	}

	return &domain.SearchResult{Folders: folders, Files: files}, nil
}

func (s *FileService) checkFolder(ctx context.Context, ownerID string, folderID int64) error {
	folder, err := s.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return err
	}
	if folder.OwnerID != ownerID {
		return fmt.Errorf("folder %d: %w", folderID, domain.ErrAccessDenied)
	}
	return nil
}

func newBatchResult(requested, processed int) *domain.BatchResult {
	return &domain.BatchResult{
		Requested: requested,
		Processed: processed,
		Skipped:   requested - processed,
		Partial:   processed < requested,
	}
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
