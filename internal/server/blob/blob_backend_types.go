package blob

import (
	"context"
	"errors"
	"io"
)

var (
	ErrInvalidKey         = errors.New("invalid key")
	ErrObjectNotFound     = errors.New("object not found")
	ErrPresignUnsupported = errors.New("presigned urls not supported")
)

// Backend stores file content under opaque keys. Keys are validated with ValidateKey.
type Backend interface {
	// PutObject stores size bytes read from body under key, replacing any previous object.
	PutObject(ctx context.Context, params *PutObjectParams) (*PutObjectResponse, error)

	// GetObject opens the object stored under key. The caller closes the body.
	GetObject(ctx context.Context, key string) (*GetObjectResponse, error)

	// GetObjectPresigned returns a time limited download URL, or ErrPresignUnsupported.
	GetObjectPresigned(ctx context.Context, key string) (string, error)

	// DeleteObject removes the object. Deleting a missing object is not an error.
	DeleteObject(ctx context.Context, key string) error
}

type PutObjectParams struct {
	Key  string
	Body io.Reader
	Size int64
}

type PutObjectResponse struct {
	Key  string
	Size int64
	ETag string
}

type GetObjectResponse struct {
	Body io.ReadCloser
	Size int64
}
