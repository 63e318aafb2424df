package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when no value is stored under the key.
var ErrNotFound = errors.New("storage: key not found")

// Backend persists opaque values by key. Writes replace the whole value.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ErrConflict is returned when an optimistic update kept losing to concurrent writers.
var ErrConflict = errors.New("storage: concurrent update conflict")

// UpdateFunc maps the current value (nil when absent) to the value to store. A nil
// result leaves the key untouched. It may run more than once.
type UpdateFunc func(current []byte) ([]byte, error)

// Updater is implemented by backends that can apply a read-modify-write atomically
// against writers in other processes.
type Updater interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
}
