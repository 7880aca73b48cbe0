package resource

import (
	"context"
)

// Blobs is the part of a blob store whose transfers are rate limited.
type Blobs interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// RateLimitedBlobs charges the bytes of every transfer against the IO limit.
// Blobs move whole, so a Put waits for its full budget before it starts and
// a Get is charged once its bytes have arrived.
type RateLimitedBlobs struct {
	b  Blobs
	rc *Controller
}

// NewRateLimitedBlobs wraps b. A nil controller only checks the context.
func NewRateLimitedBlobs(b Blobs, rc *Controller) *RateLimitedBlobs {
	return &RateLimitedBlobs{b: b, rc: rc}
}

// Put waits for len(data) bytes of budget, then writes the blob.
func (l *RateLimitedBlobs) Put(ctx context.Context, key string, data []byte) error {
	if err := l.rc.AcquireIO(ctx, len(data)); err != nil {
		return err
	}
	return l.b.Put(ctx, key, data)
}

// Get reads the blob and charges its size before returning it.
func (l *RateLimitedBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := l.b.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := l.rc.AcquireIO(ctx, len(data)); err != nil {
		return nil, err
	}
	return data, nil
}
