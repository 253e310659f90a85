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

type ShareRepository struct {
	db *sqlx.DB
}

func NewShareRepository(db *sqlx.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

// UpsertFileLink creates the link for an owned file or reactivates the
// existing one. The stored token wins over the candidate on conflict, so
// repeated shares return the same token.
func (r *ShareRepository) UpsertFileLink(ctx context.Context, ownerID string, fileID uuid.UUID, candidate string) (string, error) {
	query := `
        INSERT INTO share_links (id, file_id, token, is_active)
        SELECT $1, f.id, $2, TRUE
        FROM files f
        WHERE f.id = $3 AND f.owner_id = $4
        ON CONFLICT (file_id) DO UPDATE SET is_active = TRUE
        RETURNING token`

	var token string
	err := r.db.QueryRowContext(ctx, query, uuid.New(), candidate, fileID, ownerID).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("file %s: %w", fileID, domain.ErrNotFound)
		}
		return "", fmt.Errorf("failed to upsert share link: %w", err)
	}

	return token, nil
}

func (r *ShareRepository) UpsertFolderLink(ctx context.Context, ownerID string, folderID int64, candidate string) (string, error) {
	query := `
        INSERT INTO folder_share_links (id, folder_id, token, is_active)
        SELECT $1, f.id, $2, TRUE
        FROM folders f
        WHERE f.id = $3 AND f.owner_id = $4
        ON CONFLICT (folder_id) DO UPDATE SET is_active = TRUE
        RETURNING token`

	var token string
	err := r.db.QueryRowContext(ctx, query, uuid.New(), candidate, folderID, ownerID).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("folder %d: %w", folderID, domain.ErrNotFound)
		}
		return "", fmt.Errorf("failed to upsert folder share link: %w", err)
	}

	return token, nil
}

// DeactivateFileLinks turns off the links of the owned files in ids.
// Files without a link are ignored.
func (r *ShareRepository) DeactivateFileLinks(ctx context.Context, ownerID string, ids []uuid.UUID) (int64, error) {
	query := `
        UPDATE share_links s
        SET is_active = FALSE
        FROM files f
        WHERE s.file_id = f.id AND f.owner_id = $1 AND f.id = ANY($2)`

	result, err := r.db.ExecContext(ctx, query, ownerID, pq.Array(uuidStrings(ids)))
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate share links: %w", err)
	}

	return result.RowsAffected()
}

func (r *ShareRepository) DeactivateFolderLink(ctx context.Context, ownerID string, folderID int64) error {
	query := `
        UPDATE folder_share_links s
        SET is_active = FALSE
        FROM folders f
        WHERE s.folder_id = f.id AND f.owner_id = $1 AND f.id = $2`

	if _, err := r.db.ExecContext(ctx, query, ownerID, folderID); err != nil {
		return fmt.Errorf("failed to deactivate folder share link: %w", err)
	}

	return nil
}

// DeactivateToken turns off whichever link carries token.
func (r *ShareRepository) DeactivateToken(ctx context.Context, token string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE share_links SET is_active = FALSE WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to revoke share link: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE folder_share_links SET is_active = FALSE WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to revoke folder share link: %w", err)
	}

	return tx.Commit()
}

// ActiveFileByToken returns the file behind an active file token.
func (r *ShareRepository) ActiveFileByToken(ctx context.Context, token string) (*domain.File, error) {
	query := `
        SELECT f.id, f.owner_id, f.folder_id, f.object_id, f.thumb_object_id, f.provider_ref,
               f.kind, f.name, f.mime_type, f.size_bytes, f.created_at
        FROM share_links s
        JOIN files f ON f.id = s.file_id
        WHERE s.token = $1 AND s.is_active`

	var file domain.File
	if err := r.db.GetContext(ctx, &file, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("share token: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get shared file: %w", err)
	}

	return &file, nil
}

// ActiveFolderByToken returns the folder behind an active folder token.
func (r *ShareRepository) ActiveFolderByToken(ctx context.Context, token string) (*domain.Folder, error) {
	query := `
        SELECT f.id, f.owner_id, f.name, f.parent_id, f.created_at
        FROM folder_share_links s
        JOIN folders f ON f.id = s.folder_id
        WHERE s.token = $1 AND s.is_active`

	var folder domain.Folder
	if err := r.db.GetContext(ctx, &folder, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("folder share token: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get shared folder: %w", err)
	}

	return &folder, nil
}

// ActiveFileTokens maps each file id in ids that has an active link to its token.
func (r *ShareRepository) ActiveFileTokens(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	tokens := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return tokens, nil
	}

	query := `SELECT file_id, token FROM share_links WHERE file_id = ANY($1) AND is_active`

	var rows []struct {
		FileID uuid.UUID `db:"file_id"`
		Token  string    `db:"token"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(uuidStrings(ids))); err != nil {
		return nil, fmt.Errorf("failed to get active share links: %w", err)
	}

	for _, row := range rows {
		tokens[row.FileID] = row.Token
	}

	return tokens, nil
}

// FileLink returns the link row of a file, active or not.
func (r *ShareRepository) FileLink(ctx context.Context, fileID uuid.UUID) (*domain.ShareLink, error) {
	query := `SELECT id, file_id, token, is_active, created_at FROM share_links WHERE file_id = $1`

	var link domain.ShareLink
	if err := r.db.GetContext(ctx, &link, query, fileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("share link for %s: %w", fileID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get share link: %w", err)
	}

	return &link, nil
}
