package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"telecloud/internal/domain"
)

const fileColumns = `id, owner_id, folder_id, object_id, thumb_object_id, provider_ref,
            kind, name, mime_type, size_bytes, created_at`

type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, file *domain.File) error {
	query := `
        INSERT INTO files (id, owner_id, folder_id, object_id, thumb_object_id, provider_ref,
                           kind, name, mime_type, size_bytes)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		file.ID,
		file.OwnerID,
		file.FolderID,
		file.ObjectID,
		file.ThumbObjectID,
		file.ProviderRef,
		file.Kind,
		file.Name,
		file.MIMEType,
		file.SizeBytes,
	).Scan(&file.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	return nil
}

func (r *FileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	var file domain.File
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	return &file, nil
}

// ListByFolder returns files directly inside folderID (nil for the root),
// optionally filtered by kind.
func (r *FileRepository) ListByFolder(ctx context.Context, ownerID string, folderID *int64, kind domain.Kind) ([]domain.File, error) {
	query := `
        SELECT ` + fileColumns + `
        FROM files
        WHERE owner_id = $1 AND folder_id IS NOT DISTINCT FROM $2
          AND ($3 = '' OR kind = $3)
        ORDER BY created_at DESC`

	files := []domain.File{}
	if err := r.db.SelectContext(ctx, &files, query, ownerID, folderID, string(kind)); err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return files, nil
}

func (r *FileRepository) ListByFolders(ctx context.Context, ownerID string, folderIDs []int64) ([]domain.File, error) {
	query := `
        SELECT ` + fileColumns + `
        FROM files
        WHERE owner_id = $1 AND folder_id = ANY($2)
        ORDER BY created_at DESC`

	files := []domain.File{}
	if err := r.db.SelectContext(ctx, &files, query, ownerID, pq.Array(folderIDs)); err != nil {
		return nil, fmt.Errorf("failed to list subtree files: %w", err)
	}

	return files, nil
}

func (r *FileRepository) ListByOwner(ctx context.Context, ownerID string, kind domain.Kind) ([]domain.File, error) {
	query := `
        SELECT ` + fileColumns + `
        FROM files
        WHERE owner_id = $1 AND ($2 = '' OR kind = $2)
        ORDER BY created_at DESC`

	files := []domain.File{}
	if err := r.db.SelectContext(ctx, &files, query, ownerID, string(kind)); err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return files, nil
}

func (r *FileRepository) Search(ctx context.Context, ownerID, pattern string) ([]domain.File, error) {
	query := `
        SELECT ` + fileColumns + `
        FROM files
        WHERE owner_id = $1 AND name ILIKE $2 ESCAPE '\'
        ORDER BY created_at DESC
        LIMIT 100`

	files := []domain.File{}
	if err := r.db.SelectContext(ctx, &files, query, ownerID, pattern); err != nil {
		return nil, fmt.Errorf("failed to search files: %w", err)
	}

	return files, nil
}

// Move sets the folder of every owned file in ids and returns the ids that
// were actually updated. Ids owned by someone else are left untouched.
func (r *FileRepository) Move(ctx context.Context, ownerID string, ids []uuid.UUID, folderID *int64) ([]uuid.UUID, error) {
	query := `
        UPDATE files SET folder_id = $1
        WHERE owner_id = $2 AND id = ANY($3)
        RETURNING id`

	moved := []uuid.UUID{}
	if err := r.db.SelectContext(ctx, &moved, query, folderID, ownerID, pq.Array(uuidStrings(ids))); err != nil {
		return nil, fmt.Errorf("failed to move files: %w", err)
	}

	return moved, nil
}

func (r *FileRepository) Rename(ctx context.Context, ownerID string, id uuid.UUID, name string) error {
	query := `UPDATE files SET name = $1 WHERE id = $2 AND owner_id = $3`

	result, err := r.db.ExecContext(ctx, query, name, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return expectAffected(result, fmt.Sprintf("file %s", id))
}

// Delete removes every owned file in ids and returns the deleted rows.
func (r *FileRepository) Delete(ctx context.Context, ownerID string, ids []uuid.UUID) ([]domain.File, error) {
	query := `
        DELETE FROM files
        WHERE owner_id = $1 AND id = ANY($2)
        RETURNING ` + fileColumns

	deleted := []domain.File{}
	if err := r.db.SelectContext(ctx, &deleted, query, ownerID, pq.Array(uuidStrings(ids))); err != nil {
		return nil, fmt.Errorf("failed to delete files: %w", err)
	}

	return deleted, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
