package repository

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var fileRowColumns = []string{
	"id", "owner_id", "folder_id", "object_id", "thumb_object_id", "provider_ref",
	"kind", "name", "mime_type", "size_bytes", "created_at",
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return sqlx.NewDb(db, "postgres"), mock
}

func q(s string) string {
	return regexp.QuoteMeta(s)
}

func fileRow(rows *sqlmock.Rows, id uuid.UUID, owner string, folder interface{}, kind string) *sqlmock.Rows {
	return rows.AddRow(id.String(), owner, folder, "obj-"+id.String()[:8], nil, "1:2", kind, "a.bin", "application/octet-stream", int64(10), time.Now())
}
