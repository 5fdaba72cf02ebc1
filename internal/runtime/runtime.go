package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/plastic-io/graph-server/internal/blob"
	cfgpkg "github.com/plastic-io/graph-server/internal/config"
	"github.com/plastic-io/graph-server/internal/docstore"
	"github.com/plastic-io/graph-server/internal/metrics"
	"github.com/plastic-io/graph-server/internal/registry"
	pebblestore "github.com/plastic-io/graph-server/internal/storage/pebble"
	"github.com/plastic-io/graph-server/internal/transport"
	logpkg "github.com/plastic-io/graph-server/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Logger        logpkg.Logger
}

// Runtime wires storage, transport, and both core services for a
// single-node instance.
type Runtime struct {
	db       *pebblestore.DB
	store    blob.Store
	hub      *transport.Hub
	registry *registry.Service
	docs     *docstore.Service
	metrics  *metrics.Metrics
	config   cfgpkg.Config
	logger   logpkg.Logger
}

// Open initializes storage and wires the services.
func Open(opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	m := metrics.New()
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Metrics:       m,
	})
	if err != nil {
		return nil, err
	}
	store := blob.NewPebbleStore(db)
	hub := transport.NewHub(opts.Config.Socket.SendBuffer, logger.WithComponent("hub"))
	reg := registry.New(store, hub, opts.Config.Delivery, logger.WithComponent("registry")).WithMetrics(m)
	docs := docstore.New(store, reg, opts.Config, logger.WithComponent("docstore")).WithMetrics(m)
	return &Runtime{
		db:       db,
		store:    store,
		hub:      hub,
		registry: reg,
		docs:     docs,
		metrics:  m,
		config:   opts.Config,
		logger:   logger,
	}, nil
}

// Close releases underlying resources.
func (r *Runtime) Close() error {
	if r.docs != nil {
		r.docs.Close()
	}
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple storage read to confirm the database serves.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	it.Close()
	return nil
}

// Store exposes the blob store.
func (r *Runtime) Store() blob.Store { return r.store }

// Hub exposes the websocket session hub.
func (r *Runtime) Hub() *transport.Hub { return r.hub }

// Registry exposes the broadcast registry service.
func (r *Runtime) Registry() *registry.Service { return r.registry }

// Docs exposes the document store service.
func (r *Runtime) Docs() *docstore.Service { return r.docs }

// Metrics exposes the collector bundle.
func (r *Runtime) Metrics() *metrics.Metrics { return r.metrics }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the root logger.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }
