package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"telecloud/internal/proxy"
	"telecloud/internal/service"
)

// ShareHandler serves the public, token-addressed endpoints. No identity is
// required.
type ShareHandler struct {
	shareService *service.ShareService
	streamer     *proxy.Streamer
}

func NewShareHandler(shareService *service.ShareService, streamer *proxy.Streamer) *ShareHandler {
	return &ShareHandler{
		shareService: shareService,
		streamer:     streamer,
	}
}

// GetSharedFile streams the file behind a file token. Video is served
// inline with range support, ?download=1 forces an attachment.
func (h *ShareHandler) GetSharedFile(w http.ResponseWriter, r *http.Request) {
	file, err := h.shareService.ResolveFileShare(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	disposition := proxy.Inline()
	if r.URL.Query().Get("download") == "1" {
		disposition = proxy.Attachment(file.Name)
	}

	err = h.streamer.Stream(w, r, file.ObjectID, proxy.Options{
		ContentType: file.MIMEType,
		Seekable:    file.Kind.Seekable(),
		Disposition: disposition,
	})
	if err != nil {
		StreamError(w, r, err)
	}
}

// RevokeShare answers the same way whether or not the token existed.
func (h *ShareHandler) RevokeShare(w http.ResponseWriter, r *http.Request) {
	if err := h.shareService.RevokeByToken(r.Context(), chi.URLParam(r, "token")); err != nil {
		log.Error().Err(err).Msg("failed to revoke share token")
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *ShareHandler) GetSharedFolder(w http.ResponseWriter, r *http.Request) {
	var folderID *int64
	if raw := r.URL.Query().Get("folder"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			WriteError(w, r, badRequest("invalid folder"))
			return
		}
		folderID = &id
	}

	shared, err := h.shareService.ResolveFolderShare(r.Context(), chi.URLParam(r, "token"), folderID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, shared)
}
