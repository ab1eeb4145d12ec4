// Package kv provides a small key-value persistence contract with
// file-based and sqlite-based implementations.
package kv

import "errors"

var (
	// ErrNotFound indicates the requested key does not exist.
	ErrNotFound = errors.New("kv: key not found")
	// ErrInvalidKey indicates an empty or malformed key.
	ErrInvalidKey = errors.New("kv: invalid key")
	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("kv: store closed")
)

// Store is a minimal durable key-value store.
//
// Keys are slash-separated paths such as "session/<id>". Values are
// opaque byte payloads owned by the caller.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Set writes the value for key, replacing any existing value.
	Set(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Keys returns all keys with the given prefix, sorted ascending.
	Keys(prefix string) ([]string, error)

	// Close releases any underlying resources.
	Close() error
}
