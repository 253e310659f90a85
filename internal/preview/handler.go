// Package preview serves owned files inline: the file itself for viewing in
// the browser, and the thumbnail the provider generated at upload time.
package preview

import (
	"fmt"
	"net/http"

	"telecloud/internal/auth"
	"telecloud/internal/domain"
	"telecloud/internal/handler"
	"telecloud/internal/proxy"
	"telecloud/internal/service"
)

const thumbContentType = "image/jpeg"

type Handler struct {
	fileService *service.FileService
	streamer    *proxy.Streamer
}

func NewHandler(fileService *service.FileService, streamer *proxy.Streamer) *Handler {
	return &Handler{
		fileService: fileService,
		streamer:    streamer,
	}
}

// Preview streams the file inline. Video honours Range.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	file, ok := h.file(w, r)
	if !ok {
		return
	}

	err := h.streamer.Stream(w, r, file.ObjectID, proxy.Options{
		ContentType: file.MIMEType,
		Seekable:    file.Kind.Seekable(),
		Disposition: proxy.Inline(),
	})
	if err != nil {
		handler.StreamError(w, r, err)
	}
}

func (h *Handler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	file, ok := h.file(w, r)
	if !ok {
		return
	}
	if !file.HasThumb() {
		handler.WriteError(w, r, fmt.Errorf("thumbnail of %s: %w", file.ID, domain.ErrNotFound))
		return
	}

	// a thumbnail never changes for a file
	w.Header().Set("Cache-Control", "private, max-age=3600")

	err := h.streamer.Stream(w, r, *file.ThumbObjectID, proxy.Options{
		ContentType: thumbContentType,
		Disposition: proxy.Inline(),
	})
	if err != nil {
		w.Header().Del("Cache-Control")
		handler.StreamError(w, r, err)
	}
}

func (h *Handler) file(w http.ResponseWriter, r *http.Request) (*domain.File, bool) {
	id, err := handler.UUIDParam(r, "id")
	if err != nil {
		handler.WriteError(w, r, err)
		return nil, false
	}

	file, err := h.fileService.Get(r.Context(), auth.FromContext(r.Context()).OwnerID, id)
	if err != nil {
		handler.WriteError(w, r, err)
		return nil, false
	}
	return file, true
}
