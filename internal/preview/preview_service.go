package preview

import (
	"errors"
	"fmt"
	"github.com/h2non/bimg"
	"log"
	"strings"
)

const (
	maxThumbnailSize = 480 // longest edge, px
	jpegQuality      = 85
)

var ErrUnsupportedType = errors.New("thumbnail not supported for this content type")

// Service renders artwork thumbnails with libvips.
type Service struct {
	maxSize int
}

func NewService() *Service {
	return &Service{maxSize: maxThumbnailSize}
}

// Supports reports whether a thumbnail can be produced for the content type.
func Supports(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg", "image/png", "image/webp", "image/gif", "image/tiff", "application/pdf":
		return true
	}
	return false
}

// Thumbnail returns a JPEG no larger than maxSize on its longest edge.
func (s *Service) Thumbnail(data []byte, contentType string) ([]byte, error) {
	if !Supports(contentType) {
		return nil, ErrUnsupportedType
	}

	image := bimg.NewImage(data)
	size, err := image.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to get image size: %w", err)
	}

	width, height := calculateNewDimensions(size.Width, size.Height, s.maxSize)
	processed, err := image.Process(bimg.Options{
		Width:   width,
		Height:  height,
		Quality: jpegQuality,
		Type:    bimg.JPEG,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	log.Printf("[Preview] Thumbnail %dx%d -> %dx%d (%d bytes)", size.Width, size.Height, width, height, len(processed))
	return processed, nil
}

// calculateNewDimensions keeps the aspect ratio and never upscales.
func calculateNewDimensions(width, height, maxSize int) (newWidth, newHeight int) {
	if width <= 0 || height <= 0 {
		return maxSize, maxSize
	}
	if width <= maxSize && height <= maxSize {
		return width, height
	}
	if width > height {
		newWidth = maxSize
		newHeight = (height * maxSize) / width
	} else {
		newHeight = maxSize
		newWidth = (width * maxSize) / height
	}
	if newWidth == 0 {
		newWidth = 1
	}
	if newHeight == 0 {
		newHeight = 1
	}
	return
}
