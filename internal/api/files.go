package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/dharsanguruparan/VaultForm/internal/model"
	"github.com/dharsanguruparan/VaultForm/internal/storage"
)

const downloadURLTTL = 15 * time.Minute

type fileInfo struct {
	*model.StoredUpload
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// handleFile returns the metadata of an upload owned by the caller.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	u, err := s.meta.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondDetail(w, r, http.StatusNotFound, "Not found.")
			return
		}
		hlog.FromRequest(r).Error().Err(err).Str("upload_id", id).Msg("load upload")
		respondDetail(w, r, http.StatusInternalServerError, "Failed to load file.")
		return
	}
	if u.Owner != Subject(r.Context()) {
		respondDetail(w, r, http.StatusNotFound, "Not found.")
		return
	}
	info := fileInfo{StoredUpload: u}
	if p, ok := s.blobs.(Presigner); ok && u.Status != model.StatusExpired {
		url, err := p.PresignURL(r.Context(), u.ObjectKey, downloadURLTTL)
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("upload_id", id).Msg("presign download url")
		} else {
			info.DownloadURL = url
		}
	}
	respondJSON(w, r, http.StatusOK, info)
}
