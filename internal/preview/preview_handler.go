package preview

import (
	"context"
	"errors"
	"github.com/go-chi/chi/v5"
	"io"
	"log"
	"net/http"
	"quotedesk/internal/domain"
	"quotedesk/internal/service/s3"
)

// maxSourceSize bounds how much of an original is read to render a missing thumbnail.
const maxSourceSize = 50 << 20

// ArtworkOpener is implemented by service.ArtworkService.
type ArtworkOpener interface {
	OpenArtwork(ctx context.Context, token string, thumbnail bool) (s3.Object, error)
}

type Handler struct {
	service *Service
	artwork ArtworkOpener
}

func NewHandler(service *Service, artwork ArtworkOpener) *Handler {
	return &Handler{
		service: service,
		artwork: artwork,
	}
}

// GetThumbnail serves the stored thumbnail for an artwork link and renders one
// from the original when none was stored at upload time.
func (h *Handler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	thumb, err := h.artwork.OpenArtwork(r.Context(), token, true)
	if err == nil {
		defer thumb.Close()
		data, err := io.ReadAll(thumb)
		if err != nil {
			log.Printf("[Preview] Failed to read stored thumbnail: %v", err)
			http.Error(w, "Failed to read thumbnail", http.StatusInternalServerError)
			return
		}
		writeJPEG(w, data)
		return
	}
	if !errors.Is(err, domain.ErrNotFound) {
		writeOpenError(w, err)
		return
	}

	original, err := h.artwork.OpenArtwork(r.Context(), token, false)
	if err != nil {
		writeOpenError(w, err)
		return
	}
	defer original.Close()

	if !Supports(original.ContentType()) {
		http.Error(w, "No preview for this file type", http.StatusNotFound)
		return
	}
	data, err := io.ReadAll(io.LimitReader(original, maxSourceSize))
	if err != nil {
		log.Printf("[Preview] Failed to read artwork: %v", err)
		http.Error(w, "Failed to read artwork", http.StatusInternalServerError)
		return
	}

	previewData, err := h.service.Thumbnail(data, original.ContentType())
	if err != nil {
		log.Printf("[Preview] Failed to generate preview: %v", err)
		http.Error(w, "Failed to generate preview", http.StatusInternalServerError)
		return
	}
	writeJPEG(w, previewData)
}

func writeOpenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrTokenInvalid), errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	default:
		log.Printf("[Preview] Failed to open artwork: %v", err)
		http.Error(w, "Failed to open artwork", http.StatusInternalServerError)
	}
}

func writeJPEG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/jpeg")
	// Tokens rotate with each version, so a cached thumbnail never goes stale under its URL.
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
