package handler

import (
	"io"
	"log"
	"net/http"
	"quotedesk/internal/domain"
	"quotedesk/internal/service"
	"strings"
)

const (
	maxArtworkUpload = 50 << 20
	// multipart framing on top of the file itself
	multipartOverhead = 1 << 20
)

type ArtworkHandler struct {
	artworkService *service.ArtworkService
}

func NewArtworkHandler(artworkService *service.ArtworkService) *ArtworkHandler {
	return &ArtworkHandler{artworkService: artworkService}
}

// UploadArtwork accepts a multipart "file" field or a JSON body with a URL.
func (h *ArtworkHandler) UploadArtwork(w http.ResponseWriter, r *http.Request) {
	id, err := quoteID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var up service.ArtworkUpload
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		up, err = readMultipartArtwork(w, r)
	} else {
		err = decodeJSON(r, &up)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	q, err := h.artworkService.UploadArtwork(r.Context(), actor(r), id, up)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func readMultipartArtwork(w http.ResponseWriter, r *http.Request) (service.ArtworkUpload, error) {
	const op = "upload artwork"
	r.Body = http.MaxBytesReader(w, r.Body, maxArtworkUpload+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return service.ArtworkUpload{}, domain.Invalid(op, "invalid multipart body: %v", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return service.ArtworkUpload{}, domain.Invalid(op, "file field is required")
	}
	defer file.Close()

	if header.Size > maxArtworkUpload {
		return service.ArtworkUpload{}, domain.Invalid(op, "artwork exceeds %d MB", maxArtworkUpload>>20)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return service.ArtworkUpload{}, domain.Invalid(op, "failed to read file: %v", err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	log.Printf("[Artwork] Received %s (%d bytes, %s)", header.Filename, len(data), contentType)

	return service.ArtworkUpload{
		FileName:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func (h *ArtworkHandler) SendArtwork(w http.ResponseWriter, r *http.Request) {
	id, err := quoteID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q, err := h.artworkService.SendArtwork(r.Context(), actor(r), id)
	if err != nil {
		writeDeliveryAware(w, q, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}
