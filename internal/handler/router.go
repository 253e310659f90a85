package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Previewer serves inline previews and thumbnails of owned files.
type Previewer interface {
	Preview(w http.ResponseWriter, r *http.Request)
	Thumbnail(w http.ResponseWriter, r *http.Request)
}

type Handlers struct {
	Folders *FolderHandler
	Files   *FileHandler
	Shares  *ShareHandler
	Preview Previewer
}

// Mount registers the owner API under /v1 behind requireOwner and the
// public share endpoints at the top level.
func (h *Handlers) Mount(r chi.Router, requireOwner func(http.Handler) http.Handler) {
	r.Route("/v1", func(r chi.Router) {
		r.Use(requireOwner)

		r.Route("/folders", func(r chi.Router) {
			r.Get("/", h.Folders.GetRoot)
			r.Post("/", h.Folders.CreateFolder)
			r.Get("/{id}", h.Folders.GetFolderContent)
			r.Put("/{id}/rename", h.Folders.RenameFolder)
			r.Put("/{id}/move", h.Folders.MoveFolder)
			r.Delete("/{id}", h.Folders.DeleteFolder)
			r.Post("/{id}/share", h.Folders.ShareFolder)
			r.Delete("/{id}/share", h.Folders.UnshareFolder)
		})

		r.Get("/search", h.Files.Search)

		r.Route("/files", func(r chi.Router) {
			r.Get("/", h.Files.ListFiles)
			r.Post("/bulk-move", h.Files.BulkMove)
			r.Post("/bulk-delete", h.Files.BulkDelete)
			r.Get("/{id}", h.Files.GetFile)
			r.Get("/{id}/download", h.Files.Download)
			r.Get("/{id}/preview", h.Preview.Preview)
			r.Get("/{id}/thumb", h.Preview.Thumbnail)
			r.Put("/{id}/move", h.Files.MoveFile)
			r.Put("/{id}/rename", h.Files.RenameFile)
			r.Delete("/{id}", h.Files.DeleteFile)
			r.Get("/{id}/share", h.Files.GetShare)
			r.Post("/{id}/share", h.Files.ShareFile)
			r.Delete("/{id}/share", h.Files.UnshareFile)
		})
	})

	r.Get("/s/{token}", h.Shares.GetSharedFile)
	r.Post("/s/{token}/revoke", h.Shares.RevokeShare)
	r.Get("/sf/{token}", h.Shares.GetSharedFolder)
}
