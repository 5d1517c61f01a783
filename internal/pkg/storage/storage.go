package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStore stores generated documents such as wallet statements and hands out time-limited download links.
type ObjectStore interface {
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}
