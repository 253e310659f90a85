package domain

import "time"

type Folder struct {
	ID        int64     `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	ParentID  *int64    `json:"parent_id,omitempty" db:"parent_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FolderContent is one level of the hierarchy.
type FolderContent struct {
	Folder     *Folder  `json:"folder,omitempty"`
	Breadcrumb []Folder `json:"breadcrumb,omitempty"`
	Folders    []Folder `json:"subfolders"`
	Files      []File   `json:"files"`
}

// SubtreeDeletion is the outcome of a recursive folder delete. Files carry
// provider refs so the caller can clean up the remote store.
type SubtreeDeletion struct {
	FolderIDs []int64 `json:"deleted_folder_ids"`
	Files     []File  `json:"-"`
}

type SearchResult struct {
	Folders []Folder `json:"folders"`
	Files   []File   `json:"files"`
}
