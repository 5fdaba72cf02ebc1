package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pebblestore "github.com/plastic-io/graph-server/internal/storage/pebble"
)

// Body and metadata live under separate sub-prefixes of the same logical key
// so Head and List never deserialize bodies.
const (
	bodyPrefix = "b/"
	metaPrefix = "m/"
)

// PebbleStore implements Store on the Pebble wrapper.
type PebbleStore struct {
	db *pebblestore.DB
}

// NewPebbleStore creates a Store over an open Pebble database.
func NewPebbleStore(db *pebblestore.DB) *PebbleStore {
	return &PebbleStore{db: db}
}

// Get returns the stored body for key.
func (s *PebbleStore) Get(_ context.Context, key string) ([]byte, error) {
	b, err := s.db.Get([]byte(bodyPrefix + key))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("blob get %s: %w", key, err)
	}
	return b, nil
}

// Set writes body and metadata under key.
func (s *PebbleStore) Set(_ context.Context, key string, body []byte, meta Metadata) error {
	mb, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("blob set %s: marshal metadata: %w", key, err)
	}
	if err := s.db.Set([]byte(bodyPrefix+key), body); err != nil {
		return fmt.Errorf("blob set %s: %w", key, err)
	}
	if err := s.db.Set([]byte(metaPrefix+key), mb); err != nil {
		return fmt.Errorf("blob set %s: metadata: %w", key, err)
	}
	return nil
}

// Remove deletes body and metadata. Absent keys are ignored.
func (s *PebbleStore) Remove(_ context.Context, key string) error {
	if err := s.db.Delete([]byte(bodyPrefix + key)); err != nil {
		return fmt.Errorf("blob remove %s: %w", key, err)
	}
	if err := s.db.Delete([]byte(metaPrefix + key)); err != nil {
		return fmt.Errorf("blob remove %s: metadata: %w", key, err)
	}
	return nil
}

// RemovePath deletes every object under prefix.
func (s *PebbleStore) RemovePath(_ context.Context, prefix string) error {
	for _, p := range []string{bodyPrefix + prefix, metaPrefix + prefix} {
		start := []byte(p)
		end := rangeUpperBound(start)
		if err := s.db.DeleteRange(start, end); err != nil {
			return fmt.Errorf("blob remove path %s: %w", prefix, err)
		}
	}
	return nil
}

// Head returns only the metadata for key.
func (s *PebbleStore) Head(_ context.Context, key string) (Metadata, error) {
	b, err := s.db.Get([]byte(metaPrefix + key))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return Metadata{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return Metadata{}, fmt.Errorf("blob head %s: %w", key, err)
	}
	var meta Metadata
	if err := json.Unmarshal(b, &meta); err != nil {
		return Metadata{}, fmt.Errorf("blob head %s: decode metadata: %w", key, err)
	}
	return meta, nil
}

// List returns the logical keys under prefix in lexical order.
func (s *PebbleStore) List(_ context.Context, prefix string) ([]string, error) {
	var out []string
	err := s.db.ScanPrefix([]byte(bodyPrefix+prefix), func(k, _ []byte) bool {
		out = append(out, strings.TrimPrefix(string(k), bodyPrefix))
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("blob list %s: %w", prefix, err)
	}
	return out, nil
}

func rangeUpperBound(start []byte) []byte {
	end := append([]byte(nil), start...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
