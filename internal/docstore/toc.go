package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/plastic-io/graph-server/internal/blob"
	"github.com/plastic-io/graph-server/internal/keys"
	logpkg "github.com/plastic-io/graph-server/pkg/log"
)

const publishedPrefix = "graphs/projections/published/"

// TocEntry is one row of the table of contents, built from projection
// metadata alone so a rebuild never reads document bodies.
type TocEntry struct {
	Key         string `json:"key"`
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Type        string `json:"type"`
	URL         string `json:"url,omitempty"`
	UserID      string `json:"userId,omitempty"`
}

// tocScheduler debounces index rebuilds so a burst of mutations produces one
// rebuild and one broadcast.
type tocScheduler struct {
	svc      *Service
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func newTocScheduler(svc *Service, debounce time.Duration) *tocScheduler {
	return &tocScheduler{svc: svc, debounce: debounce}
}

// schedule arms (or re-arms) the debounced rebuild. The rebuild runs on a
// background context: it must complete even when the triggering request is
// long gone.
func (t *tocScheduler) schedule() {
	if t.debounce <= 0 {
		t.fire()
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.debounce, t.fire)
}

func (t *tocScheduler) fire() {
	if err := t.svc.RebuildToc(context.Background()); err != nil {
		t.svc.logger.Error("toc rebuild failed", logpkg.Err(err))
	}
}

func (t *tocScheduler) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// RebuildToc regenerates the table of contents from every projection's
// metadata, overwrites the stored index, and broadcasts the result. A write
// failure aborts the broadcast for this cycle; the index is repaired by the
// rebuild the next mutation triggers.
func (s *Service) RebuildToc(ctx context.Context) error {
	listed, err := s.store.List(ctx, keys.ProjectionsPrefix)
	if err != nil {
		s.countTocRebuild("error")
		return fmt.Errorf("rebuild toc: %w", err)
	}
	toc := make(map[string]TocEntry)
	for _, k := range listed {
		if k == keys.Toc {
			continue
		}
		meta, err := s.store.Head(ctx, k)
		if err != nil {
			if errors.Is(err, blob.ErrNotFound) {
				continue
			}
			s.countTocRebuild("error")
			return fmt.Errorf("rebuild toc: head %s: %w", k, err)
		}
		entry := TocEntry{
			Key:         k,
			ID:          meta.ID,
			Name:        meta.Name,
			Version:     meta.Version,
			Description: meta.Description,
			Icon:        meta.Icon,
			Type:        meta.Type,
			URL:         meta.URL,
			UserID:      meta.UserID,
		}
		tocKey := entry.ID
		switch {
		case keys.IsEndpointProjection(k):
			entry.Type = "endpoint"
			tocKey = "endpoint/" + entry.ID
		case strings.HasPrefix(k, publishedPrefix):
			tocKey = entry.ID + "." + entry.Version
		}
		toc[tocKey] = entry
	}
	body, err := json.Marshal(toc)
	if err != nil {
		s.countTocRebuild("error")
		return fmt.Errorf("rebuild toc: %w", err)
	}
	if err := s.store.Set(ctx, keys.Toc, body, blob.Metadata{ID: "toc", Type: "toc"}); err != nil {
		s.countTocRebuild("error")
		return fmt.Errorf("rebuild toc: %w", err)
	}
	s.countTocRebuild("ok")
	if err := s.bus.Broadcast(ctx, TocChannel, map[string]any{
		"channelId": TocChannel,
		"response":  map[string]any{"type": "toc", "toc": toc},
	}); err != nil {
		s.logger.Error("cannot broadcast toc update", logpkg.Err(err))
	}
	return nil
}

func (s *Service) countTocRebuild(result string) {
	if s.metrics != nil {
		s.metrics.TocRebuilds.WithLabelValues(result).Inc()
	}
}
