package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"telecloud/internal/auth"
	"telecloud/internal/domain"
	"telecloud/internal/service"
)

// Purger removes remote objects of deleted files.
type Purger interface {
	Purge(ctx context.Context, files []domain.File) error
}

type FolderHandler struct {
	folderService *service.FolderService
	shareService  *service.ShareService
	purger        Purger
}

type createFolderRequest struct {
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type moveFolderRequest struct {
	ParentID *int64 `json:"parent_id"`
}

type shareResponse struct {
	Token string `json:"token"`
}

func NewFolderHandler(folderService *service.FolderService, shareService *service.ShareService, purger Purger) *FolderHandler {
	return &FolderHandler{
		folderService: folderService,
		shareService:  shareService,
		purger:        purger,
	}
}

func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	owner := auth.FromContext(r.Context()).OwnerID

	var req createFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	folder, err := h.folderService.Create(r.Context(), owner, req.Name, req.ParentID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, folder)
}

// GetRoot lists the top level of the caller's hierarchy.
func (h *FolderHandler) GetRoot(w http.ResponseWriter, r *http.Request) {
	h.listChildren(w, r, nil)
}

func (h *FolderHandler) GetFolderContent(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.listChildren(w, r, &id)
}

func (h *FolderHandler) listChildren(w http.ResponseWriter, r *http.Request, parentID *int64) {
	owner := auth.FromContext(r.Context()).OwnerID

	kind, err := kindQuery(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	content, err := h.folderService.ListChildren(r.Context(), owner, parentID, kind)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, content)
}

func (h *FolderHandler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	owner := auth.FromContext(r.Context()).OwnerID

	id, err := int64Param(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req renameRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.folderService.Rename(r.Context(), owner, id, req.Name); err != nil {
		WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *FolderHandler) MoveFolder(w http.ResponseWriter, r *http.Request) {
	owner := auth.FromContext(r.Context()).OwnerID

	id, err := int64Param(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req moveFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.folderService.Move(r.Context(), owner, id, req.ParentID); err != nil {
		WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteFolder removes the folder with everything below it, then deletes
// the remote objects. A failed remote delete does not fail the request.
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	owner := auth.FromContext(r.Context()).OwnerID

	id, err := int64Param(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	deletion, err := h.folderService.DeleteSubtree(r.Context(), owner, id)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.purger.Purge(context.WithoutCancel(r.Context()), deletion.Files); err != nil {
		log.Warn().Err(err).Int64("folder_id", id).Msg("remote cleanup incomplete")
	}

	writeJSON(w, http.StatusOK, deletion)
}

func (h *FolderHandler) ShareFolder(w http.ResponseWriter, r *http.Request) {
	owner := auth.FromContext(r.Context()).OwnerID

	id, err := int64Param(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	token, err := h.shareService.ShareFolder(r.Context(), owner, id)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, shareResponse{Token: token})
}

func (h *FolderHandler) UnshareFolder(w http.ResponseWriter, r *http.Request) {
	owner := auth.FromContext(r.Context()).OwnerID

	id, err := int64Param(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.shareService.UnshareFolder(r.Context(), owner, id); err != nil {
		WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
