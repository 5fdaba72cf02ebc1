package transport

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	logpkg "github.com/plastic-io/graph-server/pkg/log"
)

// Hub is the websocket Transport: it tracks live sockets by endpoint and
// pushes payloads onto each socket's bounded outbound queue. A writer
// goroutine per session drains the queue so slow readers never block the
// fan-out path; a full queue reports ErrThrottled and a missing session
// reports ErrGone.
type Hub struct {
	mu       sync.RWMutex
	sessions map[Endpoint]*Session
	buffer   int
	logger   logpkg.Logger
}

// NewHub creates a Hub whose sessions buffer up to sendBuffer outbound frames.
func NewHub(sendBuffer int, logger logpkg.Logger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Hub{
		sessions: make(map[Endpoint]*Session),
		buffer:   sendBuffer,
		logger:   logger,
	}
}

// Session is one attached websocket connection.
type Session struct {
	ep   Endpoint
	conn *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

// Attach registers conn under ep and starts its writer. Re-attaching an
// endpoint replaces the previous session.
func (h *Hub) Attach(ep Endpoint, conn *websocket.Conn) *Session {
	s := &Session{
		ep:   ep,
		conn: conn,
		send: make(chan []byte, h.buffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	prev := h.sessions[ep]
	h.sessions[ep] = s
	h.mu.Unlock()
	if prev != nil {
		prev.close()
	}
	go s.writeLoop(h.logger)
	return s
}

// Detach removes the session for ep if it is still the registered one.
func (h *Hub) Detach(ep Endpoint, s *Session) {
	h.mu.Lock()
	if h.sessions[ep] == s {
		delete(h.sessions, ep)
	}
	h.mu.Unlock()
	s.close()
}

// Push implements Transport.
func (h *Hub) Push(ctx context.Context, ep Endpoint, payload []byte) error {
	h.mu.RLock()
	s := h.sessions[ep]
	h.mu.RUnlock()
	if s == nil {
		return ErrGone
	}
	select {
	case <-s.done:
		return ErrGone
	case <-ctx.Done():
		return ctx.Err()
	case s.send <- payload:
		return nil
	default:
		return ErrThrottled
	}
}

func (s *Session) writeLoop(logger logpkg.Logger) {
	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if logger != nil {
					logger.Warn("socket write failed, closing session",
						logpkg.Str("connection_id", s.ep.ConnectionID),
						logpkg.Err(err))
				}
				s.close()
				return
			}
		}
	}
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}
