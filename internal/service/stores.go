package service

import (
	"context"

	"github.com/google/uuid"

	"telecloud/internal/domain"
)

// FolderStore is the persistence the hierarchy needs for folders.
// Every method except GetByID is owner-scoped.
type FolderStore interface {
	Create(ctx context.Context, folder *domain.Folder) error
	GetByID(ctx context.Context, id int64) (*domain.Folder, error)
	Rename(ctx context.Context, ownerID string, id int64, name string) error
	Move(ctx context.Context, ownerID string, id int64, parentID *int64) error
	ListChildren(ctx context.Context, ownerID string, parentID *int64) ([]domain.Folder, error)
	ChildIDs(ctx context.Context, ownerID string, parentIDs []int64) ([]int64, error)
	Search(ctx context.Context, ownerID, pattern string) ([]domain.Folder, error)
	DeleteSubtree(ctx context.Context, ownerID string, folderIDs []int64) (*domain.SubtreeDeletion, error)
}

type FileStore interface {
	Create(ctx context.Context, file *domain.File) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.File, error)
	ListByFolder(ctx context.Context, ownerID string, folderID *int64, kind domain.Kind) ([]domain.File, error)
	ListByFolders(ctx context.Context, ownerID string, folderIDs []int64) ([]domain.File, error)
	ListByOwner(ctx context.Context, ownerID string, kind domain.Kind) ([]domain.File, error)
	Search(ctx context.Context, ownerID, pattern string) ([]domain.File, error)
	Move(ctx context.Context, ownerID string, ids []uuid.UUID, folderID *int64) ([]uuid.UUID, error)
	Rename(ctx context.Context, ownerID string, id uuid.UUID, name string) error
	Delete(ctx context.Context, ownerID string, ids []uuid.UUID) ([]domain.File, error)
}

type ShareStore interface {
	UpsertFileLink(ctx context.Context, ownerID string, fileID uuid.UUID, candidate string) (string, error)
	UpsertFolderLink(ctx context.Context, ownerID string, folderID int64, candidate string) (string, error)
	DeactivateFileLinks(ctx context.Context, ownerID string, ids []uuid.UUID) (int64, error)
	DeactivateFolderLink(ctx context.Context, ownerID string, folderID int64) error
	DeactivateToken(ctx context.Context, token string) error
	ActiveFileByToken(ctx context.Context, token string) (*domain.File, error)
	ActiveFolderByToken(ctx context.Context, token string) (*domain.Folder, error)
	ActiveFileTokens(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	FileLink(ctx context.Context, fileID uuid.UUID) (*domain.ShareLink, error)
}

// RemoteDeleter removes an object from the remote store by its provider ref.
type RemoteDeleter interface {
	DeleteRemoteObject(ctx context.Context, providerRef string) error
}
