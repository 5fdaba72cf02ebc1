package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plastic-io/graph-server/internal/blob"
	"github.com/plastic-io/graph-server/internal/config"
	"github.com/plastic-io/graph-server/internal/keys"
	"github.com/plastic-io/graph-server/internal/metrics"
	logpkg "github.com/plastic-io/graph-server/pkg/log"
)

var (
	// ErrConcurrency is returned when a mutation's base checksum no longer
	// matches the stored latest projection.
	ErrConcurrency = errors.New("docstore: graph was changed before your changes arrived")
	// ErrMissingGraph rejects requests without a graph id.
	ErrMissingGraph = errors.New("docstore: missing graphId")
	// ErrBadVersion rejects version selectors that are neither "latest" nor
	// a number.
	ErrBadVersion = errors.New("docstore: version must be a number or \"latest\"")
)

// TocChannel is the broadcast channel carrying table-of-contents updates.
const TocChannel = "toc.json"

// GraphEventChannel returns the broadcast channel for one graph's events.
func GraphEventChannel(graphID string) string {
	return "graph-event-" + graphID
}

// Broadcaster is the slice of the fan-out engine the store needs to announce
// accepted mutations and index updates.
type Broadcaster interface {
	Broadcast(ctx context.Context, channelID string, message any) error
}

// EditEvent is a client-submitted mutation: a change list against a known
// base state, identified by the base state's checksum.
type EditEvent struct {
	ID      string   `json:"id"`
	GraphID string   `json:"graphId"`
	CRC     uint32   `json:"crc"`
	Changes []Change `json:"changes"`
	Time    int64    `json:"time,omitempty"`
	UserID  string   `json:"userId,omitempty"`
}

// VersionEvent is the store-derived record of one accepted mutation: the
// full structural delta between the prior and new latest projections.
type VersionEvent struct {
	ID      string   `json:"id"`
	GraphID string   `json:"graphId"`
	Version int      `json:"version"`
	Changes []Change `json:"changes"`
	CRC     uint32   `json:"crc"`
	Time    int64    `json:"time"`
	UserID  string   `json:"userId,omitempty"`
}

// Service is the event-sourced document store: mutations in, projections and
// derived events out, with broadcasts for every accepted change.
type Service struct {
	store   blob.Store
	bus     Broadcaster
	logger  logpkg.Logger
	metrics *metrics.Metrics
	cache   readCache

	// mu serializes mutations so the checksum gate observes a stable
	// latest projection.
	mu  sync.Mutex
	toc *tocScheduler
}

// New creates a document store service.
func New(store blob.Store, bus Broadcaster, cfg config.Config, logger logpkg.Logger) *Service {
	s := &Service{
		store:  store,
		bus:    bus,
		logger: logger,
		cache:  newReadCache(cfg.Cache),
	}
	s.toc = newTocScheduler(s, time.Duration(cfg.Toc.DebounceMs)*time.Millisecond)
	return s
}

// WithMetrics attaches prometheus collectors.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Close stops any pending background index rebuild.
func (s *Service) Close() {
	s.toc.stop()
}

// AddEvent applies a mutation to a graph. The event's checksum must match
// the CRC-32 of the stored latest projection (zero skips the gate, for the
// first write to a new graph); on mismatch nothing is written and
// ErrConcurrency is returned so the client can rebase.
//
// An accepted mutation produces six writes: the latest projection, an
// immutable versioned projection, the stored edit event, the derived version
// event, the endpoint alias for the graph's url, and removal of the stale
// alias when the mutation renamed the url. There is no rollback; a partial
// failure surfaces as an error and the next index rebuild repairs the
// listing.
func (s *Service) AddEvent(ctx context.Context, ev EditEvent) (EditEvent, VersionEvent, error) {
	if ev.GraphID == "" {
		return EditEvent{}, VersionEvent{}, ErrMissingGraph
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	latestKey := keys.LatestProjection(ev.GraphID)
	raw, err := s.loadLatest(ctx, ev.GraphID)
	if err != nil {
		return EditEvent{}, VersionEvent{}, fmt.Errorf("add event: %w", err)
	}

	var pre, post map[string]any
	if err := json.Unmarshal(raw, &pre); err != nil {
		return EditEvent{}, VersionEvent{}, fmt.Errorf("add event: corrupt latest projection: %w", err)
	}
	if err := json.Unmarshal(raw, &post); err != nil {
		return EditEvent{}, VersionEvent{}, fmt.Errorf("add event: corrupt latest projection: %w", err)
	}

	preCRC, err := Checksum(pre)
	if err != nil {
		return EditEvent{}, VersionEvent{}, fmt.Errorf("add event: %w", err)
	}
	if ev.CRC != 0 && ev.CRC != preCRC {
		s.countMutation("conflict")
		return EditEvent{}, VersionEvent{}, fmt.Errorf("%w: expected crc %d, got %d", ErrConcurrency, preCRC, ev.CRC)
	}

	for _, c := range ev.Changes {
		post, err = Apply(post, c)
		if err != nil {
			s.countMutation("bad_change")
			return EditEvent{}, VersionEvent{}, fmt.Errorf("add event: %w", err)
		}
	}

	now := time.Now().UnixMilli()
	newVersion := docVersion(post) + 1
	post["version"] = newVersion
	if docString(post, "id") == "" {
		post["id"] = ev.GraphID
	}
	if docString(post, "url") == "" {
		post["url"] = docString(post, "id")
	}
	props := ensureProperties(post)
	props["lastUpdate"] = now
	props["lastUpdatedBy"] = ev.UserID

	nodes := docNodes(post)
	for _, idx := range changedNodeIndices(ev.Changes) {
		if idx >= 0 && idx < len(nodes) {
			stampNode(nodes[idx], newVersion, now, ev.UserID)
		}
	}

	versionChanges := Diff(pre, post)
	versionCRC, err := Checksum(post)
	if err != nil {
		return EditEvent{}, VersionEvent{}, fmt.Errorf("add event: %w", err)
	}

	ev.Time = now
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	verEvent := VersionEvent{
		ID:      uuid.NewString(),
		GraphID: ev.GraphID,
		Version: newVersion,
		Changes: versionChanges,
		CRC:     versionCRC,
		Time:    now,
		UserID:  ev.UserID,
	}

	postBytes, err := json.Marshal(post)
	if err != nil {
		return EditEvent{}, VersionEvent{}, fmt.Errorf("add event: %w", err)
	}
	evBytes, err := json.Marshal(ev)
	if err != nil {
		return EditEvent{}, VersionEvent{}, fmt.Errorf("add event: %w", err)
	}
	verBytes, err := json.Marshal(verEvent)
	if err != nil {
		return EditEvent{}, VersionEvent{}, fmt.Errorf("add event: %w", err)
	}

	meta := projectionMetadata(post, newVersion, ev.UserID)
	eventMeta := blob.Metadata{ID: ev.ID, Type: "event", GraphID: ev.GraphID, UserID: ev.UserID}
	verMeta := blob.Metadata{ID: verEvent.ID, Type: "event", GraphID: ev.GraphID, UserID: ev.UserID}
	url := docString(post, "url")

	tasks := []func() error{
		func() error { return s.store.Set(ctx, latestKey, postBytes, meta) },
		func() error {
			return s.store.Set(ctx, keys.VersionedProjection(ev.GraphID, newVersion), postBytes, meta)
		},
		func() error { return s.store.Set(ctx, keys.Event(ev.GraphID, ev.ID), evBytes, eventMeta) },
		func() error { return s.store.Set(ctx, keys.Event(ev.GraphID, verEvent.ID), verBytes, verMeta) },
		func() error { return s.store.Set(ctx, keys.Endpoint(url), postBytes, meta) },
	}
	if oldURL := docString(pre, "url"); oldURL != "" && oldURL != url {
		tasks = append(tasks, func() error { return s.store.Remove(ctx, keys.Endpoint(oldURL)) })
	}
	if err := runAll(tasks); err != nil {
		s.countMutation("error")
		return EditEvent{}, VersionEvent{}, fmt.Errorf("add event: %w", err)
	}
	s.cache.add(latestKey, postBytes)
	s.countMutation("ok")

	channel := GraphEventChannel(ev.GraphID)
	if err := s.bus.Broadcast(ctx, channel, map[string]any{
		"channelId": channel,
		"response":  []any{ev, verEvent},
	}); err != nil {
		s.logger.Error("cannot broadcast graph event",
			logpkg.Str("graph_id", ev.GraphID), logpkg.Err(err))
	}
	s.toc.schedule()
	return ev, verEvent, nil
}

// GetGraph returns a projection body. version is "latest" (or empty) for the
// mutable head, otherwise a number selecting an immutable snapshot.
func (s *Service) GetGraph(ctx context.Context, graphID, version string) (json.RawMessage, error) {
	if graphID == "" {
		return nil, ErrMissingGraph
	}
	if version == "" || version == "latest" {
		return s.loadLatestStrict(ctx, graphID)
	}
	n, err := strconv.Atoi(version)
	if err != nil {
		return nil, ErrBadVersion
	}
	return s.get(ctx, keys.VersionedProjection(graphID, n))
}

// GetEndpoint returns the projection stored under a graph's url alias.
func (s *Service) GetEndpoint(ctx context.Context, url string) (json.RawMessage, error) {
	return s.get(ctx, keys.Endpoint(url))
}

// GetEvents returns every stored event of a graph, in key order.
func (s *Service) GetEvents(ctx context.Context, graphID string) ([]json.RawMessage, error) {
	if graphID == "" {
		return nil, ErrMissingGraph
	}
	listed, err := s.store.List(ctx, keys.EventsPrefix(graphID))
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	out := make([]json.RawMessage, 0, len(listed))
	for _, k := range listed {
		body, err := s.store.Get(ctx, k)
		if err != nil {
			if errors.Is(err, blob.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get events: %w", err)
		}
		out = append(out, body)
	}
	return out, nil
}

// GetToc returns the table of contents, or an empty object before the first
// rebuild.
func (s *Service) GetToc(ctx context.Context) (json.RawMessage, error) {
	body, err := s.store.Get(ctx, keys.Toc)
	if errors.Is(err, blob.ErrNotFound) {
		return json.RawMessage("{}"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get toc: %w", err)
	}
	return body, nil
}

// GetArtifact returns a published artifact body for (id, version).
func (s *Service) GetArtifact(ctx context.Context, id string, version int) (json.RawMessage, error) {
	return s.get(ctx, keys.PublishedArtifact(id, version))
}

// PublishResult reports what a publish operation froze.
type PublishResult struct {
	Type        string `json:"type"`
	URL         string `json:"url"`
	PublishedOn int64  `json:"publishedOn"`
	PublishedBy string `json:"publishedBy"`
}

// PublishGraph freezes one versioned projection of a graph as a published
// artifact and alias, stamped with who published it and when, then rebuilds
// the index.
func (s *Service) PublishGraph(ctx context.Context, graphID string, version int, userID string) (PublishResult, error) {
	if graphID == "" {
		return PublishResult{}, ErrMissingGraph
	}
	body, err := s.get(ctx, keys.VersionedProjection(graphID, version))
	if err != nil {
		return PublishResult{}, fmt.Errorf("publish graph: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return PublishResult{}, fmt.Errorf("publish graph: %w", err)
	}
	now := time.Now().UnixMilli()
	publishedBy := orUnknown(userID)
	doc["publishedOn"] = now
	doc["publishedBy"] = publishedBy
	stamped, err := json.Marshal(doc)
	if err != nil {
		return PublishResult{}, fmt.Errorf("publish graph: %w", err)
	}
	meta := artifactMetadata(doc, graphID, version, userID, "mdi-graph", "publishedGraph")
	tasks := []func() error{
		func() error { return s.store.Set(ctx, keys.PublishedArtifact(graphID, version), stamped, meta) },
		func() error { return s.store.Set(ctx, keys.PublishedEndpoint(meta.URL), stamped, meta) },
	}
	if err := runAll(tasks); err != nil {
		return PublishResult{}, fmt.Errorf("publish graph: %w", err)
	}
	s.logger.Info("graph published",
		logpkg.Str("graph_id", graphID), logpkg.Int("version", version))
	s.toc.schedule()
	return PublishResult{Type: "graph", URL: meta.URL, PublishedOn: now, PublishedBy: publishedBy}, nil
}

// PublishNode freezes one node of a graph's versioned projection as a
// standalone published artifact carrying linkage back to its source graph.
// The artifact is keyed by the node's own version stamp.
func (s *Service) PublishNode(ctx context.Context, graphID, nodeID string, version int, userID string) (PublishResult, error) {
	if graphID == "" {
		return PublishResult{}, ErrMissingGraph
	}
	body, err := s.get(ctx, keys.VersionedProjection(graphID, version))
	if err != nil {
		return PublishResult{}, fmt.Errorf("publish node: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return PublishResult{}, fmt.Errorf("publish node: %w", err)
	}
	var node map[string]any
	for _, n := range docNodes(doc) {
		if nodeID != "" && nodeID == idOfNode(n) {
			node, _ = n.(map[string]any)
			break
		}
	}
	if node == nil {
		return PublishResult{}, fmt.Errorf("publish node: node %q: %w", nodeID, blob.ErrNotFound)
	}
	nodeVersion := docVersion(node)
	if nodeVersion == 0 {
		nodeVersion = version
	}
	now := time.Now().UnixMilli()
	publishedBy := orUnknown(userID)
	node["publishedOn"] = now
	node["publishedBy"] = publishedBy
	nodeBytes, err := json.Marshal(node)
	if err != nil {
		return PublishResult{}, fmt.Errorf("publish node: %w", err)
	}
	meta := artifactMetadata(node, nodeID, nodeVersion, userID, "mdi-node-point", "publishedNode")
	meta.GraphID = docString(doc, "id")
	meta.GraphURL = docString(doc, "url")
	if err := s.store.Set(ctx, keys.PublishedArtifact(nodeID, nodeVersion), nodeBytes, meta); err != nil {
		return PublishResult{}, fmt.Errorf("publish node: %w", err)
	}
	s.logger.Info("node published",
		logpkg.Str("graph_id", graphID), logpkg.Str("node_id", nodeID),
		logpkg.Int("version", nodeVersion))
	s.toc.schedule()
	return PublishResult{Type: "node", URL: meta.URL, PublishedOn: now, PublishedBy: publishedBy}, nil
}

// DeleteGraph removes a graph's events, versioned projections, latest
// projection, and endpoint alias, then rebuilds the index. Removals are
// independent and best-effort against absent keys.
func (s *Service) DeleteGraph(ctx context.Context, graphID string) error {
	if graphID == "" {
		return ErrMissingGraph
	}
	latestKey := keys.LatestProjection(graphID)
	// aliases exist under both the graph id and its url; remove both
	tasks := []func() error{
		func() error { return s.store.RemovePath(ctx, keys.EventsPrefix(graphID)) },
		func() error { return s.store.RemovePath(ctx, keys.GraphProjectionsPrefix(graphID)) },
		func() error { return s.store.Remove(ctx, latestKey) },
		func() error { return s.store.Remove(ctx, keys.Endpoint(graphID)) },
	}
	if meta, err := s.store.Head(ctx, latestKey); err == nil && meta.URL != "" && meta.URL != graphID {
		tasks = append(tasks, func() error { return s.store.Remove(ctx, keys.Endpoint(meta.URL)) })
	}
	if err := runAll(tasks); err != nil {
		return fmt.Errorf("delete graph: %w", err)
	}
	s.cache.remove(latestKey)
	s.logger.Info("graph deleted", logpkg.Str("graph_id", graphID))
	s.toc.schedule()
	return nil
}

// loadLatest returns the latest projection body, or the empty object for a
// graph that does not exist yet.
func (s *Service) loadLatest(ctx context.Context, graphID string) ([]byte, error) {
	body, err := s.loadLatestStrict(ctx, graphID)
	if errors.Is(err, blob.ErrNotFound) {
		return []byte("{}"), nil
	}
	return body, err
}

func (s *Service) loadLatestStrict(ctx context.Context, graphID string) ([]byte, error) {
	key := keys.LatestProjection(graphID)
	if body, ok := s.cache.get(key); ok {
		return body, nil
	}
	body, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	s.cache.add(key, body)
	return body, nil
}

func (s *Service) get(ctx context.Context, key string) (json.RawMessage, error) {
	body, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (s *Service) countMutation(result string) {
	if s.metrics != nil {
		s.metrics.Mutations.WithLabelValues(result).Inc()
	}
}

// projectionMetadata builds the descriptive record stored beside every
// projection of a document. Missing display fields get the placeholders the
// editor expects in listings.
func projectionMetadata(doc map[string]any, version int, userID string) blob.Metadata {
	return blob.Metadata{
		ID:          docString(doc, "id"),
		Name:        orDefault(docProperty(doc, "name"), "Unnamed"),
		Version:     strconv.Itoa(version),
		Description: orDefault(docProperty(doc, "description"), "No description"),
		Icon:        orDefault(docProperty(doc, "icon"), "mdi-graph"),
		Type:        "graph",
		URL:         docString(doc, "url"),
		UserID:      orUnknown(userID),
	}
}

// artifactMetadata builds the descriptive record for a published artifact of
// doc (a graph or a single node).
func artifactMetadata(doc map[string]any, artifactID string, version int, userID, defaultIcon, artifactType string) blob.Metadata {
	return blob.Metadata{
		ID:          "artifacts/" + artifactID,
		Name:        orDefault(docProperty(doc, "name"), "Unnamed"),
		Version:     strconv.Itoa(version),
		Description: orDefault(docProperty(doc, "description"), "No description"),
		Icon:        orDefault(docProperty(doc, "icon"), defaultIcon),
		Type:        artifactType,
		URL:         orDefault(docString(doc, "url"), artifactID),
		UserID:      orUnknown(userID),
		ArtifactURL: "artifacts/" + artifactID + "/" + strconv.Itoa(version),
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orUnknown(s string) string { return orDefault(s, "Unknown") }

// runAll runs the tasks concurrently and returns the first error. Tasks are
// independent writes; there is no rollback of the ones that succeeded.
func runAll(tasks []func() error) error {
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task func() error) {
			defer wg.Done()
			errs[i] = task()
		}(i, task)
	}
	wg.Wait()
	return errors.Join(errs...)
}
