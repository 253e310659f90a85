package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"telecloud/internal/auth"
	"telecloud/internal/domain"
	"telecloud/internal/proxy"
	"telecloud/internal/service"
)

type FileHandler struct {
	fileService  *service.FileService
	shareService *service.ShareService
	streamer     *proxy.Streamer
	purger       Purger
}

type moveFileRequest struct {
	FolderID *int64 `json:"folder_id"`
}

type bulkMoveRequest struct {
	FileIDs  []uuid.UUID `json:"file_ids"`
	FolderID *int64      `json:"folder_id"`
}

type bulkDeleteRequest struct {
	FileIDs []uuid.UUID `json:"file_ids"`
}

type fileShareResponse struct {
	Token    string `json:"token"`
	IsActive bool   `json:"is_active"`
}

func NewFileHandler(
	fileService *service.FileService,
	shareService *service.ShareService,
	streamer *proxy.Streamer,
	purger Purger,
) *FileHandler {
	return &FileHandler{
		fileService:  fileService,
		shareService: shareService,
		streamer:     streamer,
		purger:       purger,
	}
}

func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	owner := auth.FromContext(r.Context()).OwnerID

	kind, err := kindQuery(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	files, err := h.fileService.List(r.Context(), owner, kind)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if files == nil {
		files = []domain.File{}
	}

	writeJSON(w, http.StatusOK, files)
}

func (h *FileHandler) Search(w http.ResponseWriter, r *http.Request) {
	owner := auth.FromContext(r.Context()).OwnerID

	result, err := h.fileService.Search(r.Context(), owner, r.URL.Query().Get("q"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *FileHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	file, ok := h.ownedFile(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, file)
}

// Download streams the file as an attachment under its stored name.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	file, ok := h.ownedFile(w, r)
	if !ok {
		return
	}

	err := h.streamer.Stream(w, r, file.ObjectID, proxy.Options{
		ContentType: file.MIMEType,
		Seekable:    file.Kind.Seekable(),
		Disposition: proxy.Attachment(file.Name),
	})
	if err != nil {
		StreamError(w, r, err)
	}
}

func (h *FileHandler) MoveFile(w http.ResponseWriter, r *http.Request) {
	owner := auth.FromContext(r.Context()).OwnerID

	id, err := UUIDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req moveFileRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.fileService.Move(r.Context(), owner, id, req.FolderID); err != nil {
		WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *FileHandler) RenameFile(w http.ResponseWriter, r *http.Request) {
	owner := auth.FromContext(r.Context()).OwnerID

	id, err := UUIDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req renameRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.fileService.Rename(r.Context(), owner, id, req.Name); err != nil {
		WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	owner := auth.FromContext(r.Context()).OwnerID

	id, err := UUIDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	deleted, err := h.fileService.Delete(r.Context(), owner, id)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	h.purge(r, []domain.File{*deleted})
	w.WriteHeader(http.StatusNoContent)
}

func (h *FileHandler) BulkMove(w http.ResponseWriter, r *http.Request) {
	owner := auth.FromContext(r.Context()).OwnerID

	var req bulkMoveRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	result, err := h.fileService.BulkMove(r.Context(), owner, req.FileIDs, req.FolderID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	logPartial(r, result)
	writeJSON(w, http.StatusOK, result)
}

func (h *FileHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	owner := auth.FromContext(r.Context()).OwnerID

	var req bulkDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	result, err := h.fileService.BulkDelete(r.Context(), owner, req.FileIDs)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	logPartial(r, result)
	h.purge(r, result.Deleted)
	writeJSON(w, http.StatusOK, result)
}

// logPartial notes a bulk request that skipped ids; the response still
// reports success with the counts.
func logPartial(r *http.Request, result *domain.BatchResult) {
	if err := result.Err(); err != nil {
		log.Info().Err(err).
			Str("path", r.URL.Path).
			Int("requested", result.Requested).
			Int("skipped", result.Skipped).
			Msg("bulk request skipped files")
	}
}

func (h *FileHandler) GetShare(w http.ResponseWriter, r *http.Request) {
	owner := auth.FromContext(r.Context()).OwnerID

	id, err := UUIDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	link, err := h.shareService.FileShare(r.Context(), owner, id)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fileShareResponse{Token: link.Token, IsActive: link.IsActive})
}

func (h *FileHandler) ShareFile(w http.ResponseWriter, r *http.Request) {
	owner := auth.FromContext(r.Context()).OwnerID

	id, err := UUIDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	token, err := h.shareService.ShareFile(r.Context(), owner, id)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fileShareResponse{Token: token, IsActive: true})
}

func (h *FileHandler) UnshareFile(w http.ResponseWriter, r *http.Request) {
	owner := auth.FromContext(r.Context()).OwnerID

	id, err := UUIDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.shareService.UnshareFile(r.Context(), owner, id); err != nil {
		WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *FileHandler) ownedFile(w http.ResponseWriter, r *http.Request) (*domain.File, bool) {
	owner := auth.FromContext(r.Context()).OwnerID

	id, err := UUIDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return nil, false
	}

	file, err := h.fileService.Get(r.Context(), owner, id)
	if err != nil {
		WriteError(w, r, err)
		return nil, false
	}
	return file, true
}

func (h *FileHandler) purge(r *http.Request, files []domain.File) {
	if len(files) == 0 {
		return
	}
	if err := h.purger.Purge(context.WithoutCancel(r.Context()), files); err != nil {
		log.Warn().Err(err).Int("files", len(files)).Msg("remote cleanup incomplete")
	}
}
