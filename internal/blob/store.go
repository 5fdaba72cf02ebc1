// Package blob defines the durable key/value boundary both core subsystems
// write through. The original deployment backed it with an object store; the
// single-node implementation here sits on Pebble. Values are opaque JSON
// bodies; descriptive metadata is a typed record stored beside the body so
// Head never touches body bytes.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key (or its metadata) is absent.
var ErrNotFound = errors.New("blob: not found")

// Metadata is the typed descriptive record attached to stored objects.
// JSON field names match the original store's bare metadata names.
type Metadata struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Type        string `json:"type,omitempty"`
	URL         string `json:"url,omitempty"`
	UserID      string `json:"user-id,omitempty"`
	GraphID     string `json:"graph-id,omitempty"`
	GraphURL    string `json:"graph-url,omitempty"`
	ArtifactURL string `json:"artifact-url,omitempty"`
}

// Store is the durable key/value surface with prefix listing.
type Store interface {
	// Get returns the stored body. ErrNotFound when absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes body and metadata under key, overwriting either.
	Set(ctx context.Context, key string, body []byte, meta Metadata) error
	// Remove deletes the object. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// RemovePath deletes every object under prefix.
	RemovePath(ctx context.Context, prefix string) error
	// Head returns only the metadata. ErrNotFound when absent.
	Head(ctx context.Context, key string) (Metadata, error)
	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}
