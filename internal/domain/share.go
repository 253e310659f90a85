package domain

import (
	"time"

	"github.com/google/uuid"
)

type ShareLink struct {
	ID        uuid.UUID `json:"id" db:"id"`
	FileID    uuid.UUID `json:"file_id" db:"file_id"`
	Token     string    `json:"token" db:"token"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type FolderShareLink struct {
	ID        uuid.UUID `json:"id" db:"id"`
	FolderID  int64     `json:"folder_id" db:"folder_id"`
	Token     string    `json:"token" db:"token"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SharedFile is a file visible through a folder share, with its own token.
type SharedFile struct {
	File
	Token string `json:"token" db:"token"`
}

// SharedFolder is the public listing behind a folder token.
type SharedFolder struct {
	Root       Folder       `json:"root"`
	Folder     Folder       `json:"folder"`
	Breadcrumb []Folder     `json:"breadcrumb"`
	Subfolders []Folder     `json:"subfolders"`
	Files      []SharedFile `json:"files"`
}
