package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"telecloud/internal/domain"
)

const folderColumns = `id, owner_id, name, parent_id, created_at`

const foreignKeyViolation pq.ErrorCode = "23503"

type FolderRepository struct {
	db *sqlx.DB
}

func NewFolderRepository(db *sqlx.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) Create(ctx context.Context, folder *domain.Folder) error {
	query := `
        INSERT INTO folders (owner_id, name, parent_id)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, folder.OwnerID, folder.Name, folder.ParentID).
		Scan(&folder.ID, &folder.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	return nil
}

func (r *FolderRepository) GetByID(ctx context.Context, id int64) (*domain.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders WHERE id = $1`

	var folder domain.Folder
	if err := r.db.GetContext(ctx, &folder, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	return &folder, nil
}

func (r *FolderRepository) Rename(ctx context.Context, ownerID string, id int64, name string) error {
	query := `UPDATE folders SET name = $1 WHERE id = $2 AND owner_id = $3`

	result, err := r.db.ExecContext(ctx, query, name, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to rename folder: %w", err)
	}

	return expectAffected(result, fmt.Sprintf("folder %d", id))
}

func (r *FolderRepository) Move(ctx context.Context, ownerID string, id int64, parentID *int64) error {
	query := `UPDATE folders SET parent_id = $1 WHERE id = $2 AND owner_id = $3`

	result, err := r.db.ExecContext(ctx, query, parentID, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to move folder: %w", err)
	}

	return expectAffected(result, fmt.Sprintf("folder %d", id))
}

// ListChildren returns the direct subfolders of parentID (nil for the root).
func (r *FolderRepository) ListChildren(ctx context.Context, ownerID string, parentID *int64) ([]domain.Folder, error) {
	query := `
        SELECT ` + folderColumns + `
        FROM folders
        WHERE owner_id = $1 AND parent_id IS NOT DISTINCT FROM $2
        ORDER BY name`

	folders := []domain.Folder{}
	if err := r.db.SelectContext(ctx, &folders, query, ownerID, parentID); err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	return folders, nil
}

// ChildIDs returns the ids of folders whose parent is any of parentIDs.
// Used one level at a time by the subtree walk.
func (r *FolderRepository) ChildIDs(ctx context.Context, ownerID string, parentIDs []int64) ([]int64, error) {
	query := `SELECT id FROM folders WHERE owner_id = $1 AND parent_id = ANY($2)`

	ids := []int64{}
	if err := r.db.SelectContext(ctx, &ids, query, ownerID, pq.Array(parentIDs)); err != nil {
		return nil, fmt.Errorf("failed to list child folders: %w", err)
	}

	return ids, nil
}

func (r *FolderRepository) Search(ctx context.Context, ownerID, pattern string) ([]domain.Folder, error) {
	query := `
        SELECT ` + folderColumns + `
        FROM folders
        WHERE owner_id = $1 AND name ILIKE $2 ESCAPE '\'
        ORDER BY name
        LIMIT 100`

	folders := []domain.Folder{}
	if err := r.db.SelectContext(ctx, &folders, query, ownerID, pattern); err != nil {
		return nil, fmt.Errorf("failed to search folders: %w", err)
	}

	return folders, nil
}

// DeleteSubtree removes every file in folderIDs and then the folders
// themselves in one transaction. Share links go with them through
// ON DELETE CASCADE.
func (r *FolderRepository) DeleteSubtree(ctx context.Context, ownerID string, folderIDs []int64) (*domain.SubtreeDeletion, error) {
	result := &domain.SubtreeDeletion{FolderIDs: []int64{}, Files: []domain.File{}}
	if len(folderIDs) == 0 {
		return result, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	filesQuery := `
        DELETE FROM files
        WHERE owner_id = $1 AND folder_id = ANY($2)
        RETURNING ` + fileColumns

	if err := tx.SelectContext(ctx, &result.Files, filesQuery, ownerID, pq.Array(folderIDs)); err != nil {
		return nil, fmt.Errorf("failed to delete files: %w", err)
	}

	foldersQuery := `DELETE FROM folders WHERE owner_id = $1 AND id = ANY($2) RETURNING id`

	if err := tx.SelectContext(ctx, &result.FolderIDs, foldersQuery, ownerID, pq.Array(folderIDs)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return nil, fmt.Errorf("folder holds items of another owner: %w", domain.ErrConflict)
		}
		return nil, fmt.Errorf("failed to delete folders: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

func expectAffected(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}
