package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plastic-io/graph-server/internal/runtime"
	logpkg "github.com/plastic-io/graph-server/pkg/log"
)

type Server struct {
	rt     *runtime.Runtime
	srv    *http.Server
	lis    net.Listener
	logger logpkg.Logger
}

func New(rt *runtime.Runtime, logger logpkg.Logger) *Server {
	r := chi.NewRouter()
	s := &Server{rt: rt, logger: logger, srv: &http.Server{Handler: cors(r)}}

	r.Get("/v1/healthz", s.handleHealth)
	r.Get("/v1/toc", s.handleToc)
	r.Post("/v1/events", s.handleAddEvent)
	r.Get("/v1/graphs/{graphID}/events", s.handleEvents)
	r.Get("/v1/graphs/{graphID}/{version}", s.handleGraph)
	r.Delete("/v1/graphs/{graphID}", s.handleDeleteGraph)
	r.Post("/v1/graphs/{graphID}/{version}/publish", s.handlePublishGraph)
	r.Post("/v1/graphs/{graphID}/{version}/nodes/{nodeID}/publish", s.handlePublishNode)
	r.Get("/v1/artifacts/{id}/{version}", s.handleArtifact)
	r.Get("/v1/endpoints/{url}", s.handleEndpoint)
	r.Get("/ws", s.handleSocket)
	r.Handle("/metrics", promhttp.HandlerFor(rt.Metrics().Registry, promhttp.HandlerOpts{}))
	return s
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

// Addr returns the bound listen address, usable once ListenAndServe has
// created the listener.
func (s *Server) Addr() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
