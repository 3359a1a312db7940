package blobstore

import (
	"context"
	"io"
)

// BlobStore is the byte-storage abstraction behind stored meal images.
//
// Keys are relative, slash-separated paths under the store root. Put overwrites
// existing content; Delete of a missing key is a no-op.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
