// storage.go
package s3

import (
	"context"
	"io"
)

// Object is a readable stored object.
type Object interface {
	io.ReadCloser
	ContentLength() int64
	ContentType() string
}

type s3Object struct {
	io.ReadCloser
	contentLength int64
	contentType   string
}

func (o *s3Object) ContentLength() int64 {
	return o.contentLength
}

func (o *s3Object) ContentType() string {
	return o.contentType
}

// Storage is the S3-compatible object store used for artwork files and thumbnails.
type Storage interface {
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) (Object, error)
	DeleteObject(ctx context.Context, key string) error
	// DeletePrefix removes every object under prefix and reports how many went.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	// URL returns the address customers use to fetch the object.
	URL(key string) string
}
