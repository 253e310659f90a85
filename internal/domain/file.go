package domain

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindDocument Kind = "document"
	KindPhoto    Kind = "photo"
	KindVideo    Kind = "video"
)

func (k Kind) Valid() bool {
	switch k {
	case KindDocument, KindPhoto, KindVideo:
		return true
	}
	return false
}

// Seekable reports whether range requests are honoured for the kind.
func (k Kind) Seekable() bool {
	return k == KindVideo
}

// File is an owned file record. ObjectID is fixed at creation.
type File struct {
	ID            uuid.UUID `json:"id" db:"id"`
	OwnerID       string    `json:"owner_id" db:"owner_id"`
	FolderID      *int64    `json:"folder_id,omitempty" db:"folder_id"`
	ObjectID      string    `json:"-" db:"object_id"`
	ThumbObjectID *string   `json:"-" db:"thumb_object_id"`
	ProviderRef   *string   `json:"-" db:"provider_ref"`
	Kind          Kind      `json:"kind" db:"kind"`
	Name          string    `json:"name" db:"name"`
	MIMEType      string    `json:"mime_type" db:"mime_type"`
	SizeBytes     int64     `json:"size_bytes" db:"size_bytes"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

func (f *File) HasThumb() bool {
	return f.ThumbObjectID != nil && *f.ThumbObjectID != ""
}

// NewFile is what the ingestion side hands over when an object arrives.
type NewFile struct {
	OwnerID       string `json:"owner_id"`
	FolderID      *int64 `json:"folder_id,omitempty"`
	ObjectID      string `json:"object_id"`
	ThumbObjectID string `json:"thumb_object_id,omitempty"`
	ProviderRef   string `json:"provider_ref,omitempty"`
	Kind          Kind   `json:"kind"`
	Name          string `json:"name"`
	MIMEType      string `json:"mime_type"`
	SizeBytes     int64  `json:"size_bytes"`
}

// BatchResult summarises a bulk move or delete.
type BatchResult struct {
	Requested int    `json:"requested"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Partial   bool   `json:"partial"`
	Deleted   []File `json:"-"`
}

// Err returns ErrPartialBatchFailure when some ids were skipped.
func (r *BatchResult) Err() error {
	if r.Partial {
		return ErrPartialBatchFailure
	}
	return nil
}
