package store

import (
	"context"
	"errors"

	"github.com/robertof/go-thermo-sync/utils"
)

// Error classes. Every error returned by a Store wraps exactly one of these.
var (
	ErrNotFound   = errors.New("object not found")
	ErrPermission = errors.New("permission denied")
	ErrTransient  = errors.New("transient store failure")
)

// Store is a flat key/value object store without partial or append writes.
type Store interface {
	// Get returns the full content of key, or an error wrapping ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put replaces the content of key in full.
	Put(ctx context.Context, key string, data []byte) error
	// List returns every key starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// IsRetryable reports whether err is worth retrying without operator intervention.
func IsRetryable(err error) bool {
	return utils.ErrorIsAnyOf(err, ErrTransient, context.DeadlineExceeded)
}
