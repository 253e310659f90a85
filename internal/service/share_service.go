package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"telecloud/internal/domain"
)

// FolderTree is the part of the hierarchy the share registry reads.
type FolderTree interface {
	Get(ctx context.Context, ownerID string, id int64) (*domain.Folder, error)
	CollectSubtreeFolderIDs(ctx context.Context, ownerID string, rootID int64) ([]int64, error)
	CollectFilesInSubtree(ctx context.Context, ownerID string, rootID int64) ([]domain.File, error)
	ListChildren(ctx context.Context, ownerID string, parentID *int64, kind domain.Kind) (*domain.FolderContent, error)
	Breadcrumb(ctx context.Context, ownerID string, id int64) ([]domain.Folder, error)
}

type FileLookup interface {
	Get(ctx context.Context, ownerID string, id uuid.UUID) (*domain.File, error)
}

type ShareService struct {
	shareRepo ShareStore
	folders   FolderTree
	files     FileLookup
}

func NewShareService(shareRepo ShareStore, folders FolderTree, files FileLookup) *ShareService {
	return &ShareService{
		shareRepo: shareRepo,
		folders:   folders,
		files:     files,
	}
}

// generateToken returns 256 bits of randomness, base64url encoded.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ShareFile returns the file's token, creating or reactivating its link.
func (s *ShareService) ShareFile(ctx context.Context, ownerID string, fileID uuid.UUID) (string, error) {
	if _, err := s.files.Get(ctx, ownerID, fileID); err != nil {
		return "", err
	}
	return s.upsertFileLink(ctx, ownerID, fileID)
}

func (s *ShareService) upsertFileLink(ctx context.Context, ownerID string, fileID uuid.UUID) (string, error) {
	candidate, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return s.shareRepo.UpsertFileLink(ctx, ownerID, fileID, candidate)
}

// FileShare returns the current link of an owned file, if any.
func (s *ShareService) FileShare(ctx context.Context, ownerID string, fileID uuid.UUID) (*domain.ShareLink, error) {
	if _, err := s.files.Get(ctx, ownerID, fileID); err != nil {
		return nil, err
	}
	return s.shareRepo.FileLink(ctx, fileID)
}

// UnshareFile deactivates the file's link. A file without a link is a no-op.
func (s *ShareService) UnshareFile(ctx context.Context, ownerID string, fileID uuid.UUID) error {
	if _, err := s.files.Get(ctx, ownerID, fileID); err != nil {
		return err
	}
	_, err := s.shareRepo.DeactivateFileLinks(ctx, ownerID, []uuid.UUID{fileID})
	return err
}

// RevokeByToken deactivates whatever link carries token. The result does
// not depend on whether the token existed.
func (s *ShareService) RevokeByToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.shareRepo.DeactivateToken(ctx, token)
}

// ShareFolder activates the folder link and then the link of every file in
// the folder's subtree. A failure on one file is logged and the cascade
// carries on.
func (s *ShareService) ShareFolder(ctx context.Context, ownerID string, folderID int64) (string, error) {
	if _, err := s.folders.Get(ctx, ownerID, folderID); err != nil {
		return "", err
	}

	candidate, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token, err := s.shareRepo.UpsertFolderLink(ctx, ownerID, folderID, candidate)
	if err != nil {
		return "", err
	}

	files, err := s.folders.CollectFilesInSubtree(ctx, ownerID, folderID)
	if err != nil {
		return "", err
	}

	var merr *multierror.Error
	for _, file := range files {
		if _, err := s.upsertFileLink(ctx, ownerID, file.ID); err != nil {
			// the file may have been deleted since the subtree was read
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			merr = multierror.Append(merr, fmt.Errorf("file %s: %w", file.ID, err))
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		log.Warn().Err(err).
			Str("owner_id", ownerID).
			Int64("folder_id", folderID).
			Int("failed", merr.Len()).
			Msg("folder share cascade incomplete")
	}

	return token, nil
}

// UnshareFolder deactivates the folder link and every file link below it.
func (s *ShareService) UnshareFolder(ctx context.Context, ownerID string, folderID int64) error {
	if _, err := s.folders.Get(ctx, ownerID, folderID); err != nil {
		return err
	}

	if err := s.shareRepo.DeactivateFolderLink(ctx, ownerID, folderID); err != nil {
		return err
	}

	files, err := s.folders.CollectFilesInSubtree(ctx, ownerID, folderID)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}

	_, err = s.shareRepo.DeactivateFileLinks(ctx, ownerID, ids)
	return err
}

// ResolveFileShare returns the file behind an active file token.
func (s *ShareService) ResolveFileShare(ctx context.Context, token string) (*domain.File, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token: %w", domain.ErrNotFound)
	}
	return s.shareRepo.ActiveFileByToken(ctx, token)
}

// ResolveFolderShare lists a shared folder, or one of its subfolders when
// folderID is set. Only files whose own link is active are included.
func (s *ShareService) ResolveFolderShare(ctx context.Context, token string, folderID *int64) (*domain.SharedFolder, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token: %w", domain.ErrNotFound)
	}

	root, err := s.shareRepo.ActiveFolderByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	ownerID := root.OwnerID

	target := root
	if folderID != nil && *folderID != root.ID {
		ids, err := s.folders.CollectSubtreeFolderIDs(ctx, ownerID, root.ID)
		if err != nil {
			return nil, err
		}
		if !containsID(ids, *folderID) {
			return nil, fmt.Errorf("folder %d outside shared tree: %w", *folderID, domain.ErrNotFound)
		}
		if target, err = s.folders.Get(ctx, ownerID, *folderID); err != nil {
			return nil, err
		}
	}

	content, err := s.folders.ListChildren(ctx, ownerID, &target.ID, "")
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(content.Files))
	for i, f := range content.Files {
		ids[i] = f.ID
	}
	tokens, err := s.shareRepo.ActiveFileTokens(ctx, ids)
	if err != nil {
		return nil, err
	}

	shared := &domain.SharedFolder{
		Root:       *root,
		Folder:     *target,
		Breadcrumb: trimToRoot(content.Breadcrumb, root.ID),
		Subfolders: content.Folders,
		Files:      []domain.SharedFile{},
	}
	for _, f := range content.Files {
		if t, ok := tokens[f.ID]; ok {
			shared.Files = append(shared.Files, domain.SharedFile{File: f, Token: t})
		}
	}

	return shared, nil
}

// trimToRoot drops the ancestors above the shared root.
func trimToRoot(chain []domain.Folder, rootID int64) []domain.Folder {
	for i, f := range chain {
		if f.ID == rootID {
			return chain[i:]
		}
	}
	return chain
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
