package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/plastic-io/graph-server/internal/docstore"
	"github.com/plastic-io/graph-server/internal/registry"
	"github.com/plastic-io/graph-server/internal/transport"
	logpkg "github.com/plastic-io/graph-server/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The editor is served from arbitrary origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

// socketRequest is the action envelope clients send over the websocket.
type socketRequest struct {
	Action    string              `json:"action"`
	MessageID string              `json:"messageId,omitempty"`
	ChannelID string              `json:"channelId,omitempty"`
	Filter    string              `json:"filter,omitempty"`
	To        string              `json:"to,omitempty"`
	Value     json.RawMessage     `json:"value,omitempty"`
	Event     *docstore.EditEvent `json:"event,omitempty"`
	GraphID   string              `json:"graphId,omitempty"`
	NodeID    string              `json:"nodeId,omitempty"`
	Version   string              `json:"version,omitempty"`
	UserID    string              `json:"userId,omitempty"`
}

// handleSocket upgrades the connection, registers it with the hub and the
// registry under a fresh connection id, and serves the action loop until the
// client goes away. Teardown cascades through the registry so subscriptions
// never outlive their socket.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", logpkg.Err(err))
		return
	}
	connectionID := uuid.NewString()
	domain := s.rt.Config().DomainName
	ep := transport.Endpoint{DomainName: domain, ConnectionID: connectionID}
	sess := s.rt.Hub().Attach(ep, conn)

	reg := s.rt.Registry()
	if err := reg.Connect(r.Context(), registry.ConnectionInfo{
		ConnectionID: connectionID,
		DomainName:   domain,
	}); err != nil {
		s.logger.Error("cannot register connection", logpkg.Err(err))
		s.rt.Hub().Detach(ep, sess)
		return
	}
	defer func() {
		s.rt.Hub().Detach(ep, sess)
		_ = reg.Disconnect(context.Background(), connectionID, domain)
	}()

	reg.PostToClient(r.Context(), domain, connectionID, map[string]any{
		"connectionId": connectionID,
		"domainName":   domain,
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req socketRequest
		if err := json.Unmarshal(data, &req); err != nil {
			s.replyError(r.Context(), ep, "", errors.New("malformed request"))
			continue
		}
		s.dispatchSocket(r.Context(), ep, req)
	}
}

func (s *Server) dispatchSocket(ctx context.Context, ep transport.Endpoint, req socketRequest) {
	reg := s.rt.Registry()
	docs := s.rt.Docs()

	var response any
	var err error
	switch req.Action {
	case "subscribe":
		err = reg.Subscribe(ctx, ep.ConnectionID, ep.DomainName, req.ChannelID, req.Filter)
		response = true
	case "unsubscribe":
		err = reg.Unsubscribe(ctx, ep.ConnectionID, ep.DomainName, req.ChannelID)
		response = true
	case "sendToChannel":
		err = reg.SendToChannel(ctx, req.ChannelID, decodeValue(req.Value))
		response = true
	case "sendToConnection":
		err = reg.SendToConnection(ctx, ep.DomainName, req.To, ep.ConnectionID, decodeValue(req.Value))
		response = true
	case "sendToAll":
		err = reg.SendToAll(ctx, ep.ConnectionID, decodeValue(req.Value))
		response = true
	case "listSubscribers":
		response, err = reg.ListSubscribers(ctx, req.ChannelID)
	case "listSubscriptions":
		response, err = reg.ListSubscriptions(ctx, ep.ConnectionID)
	case "addEvent":
		if req.Event == nil {
			err = errors.New("addEvent: missing event")
			break
		}
		response, _, err = docs.AddEvent(ctx, *req.Event)
	case "getGraph":
		response, err = rawResponse(docs.GetGraph(ctx, req.GraphID, req.Version))
	case "getEvents":
		response, err = docs.GetEvents(ctx, req.GraphID)
	case "getToc":
		response, err = rawResponse(docs.GetToc(ctx))
	case "deleteGraph":
		err = docs.DeleteGraph(ctx, req.GraphID)
		response = true
	case "publishGraph":
		var v int
		if v, err = strconv.Atoi(req.Version); err != nil {
			err = docstore.ErrBadVersion
			break
		}
		response, err = docs.PublishGraph(ctx, req.GraphID, v, req.UserID)
	case "publishNode":
		var v int
		if v, err = strconv.Atoi(req.Version); err != nil {
			err = docstore.ErrBadVersion
			break
		}
		response, err = docs.PublishNode(ctx, req.GraphID, req.NodeID, v, req.UserID)
	default:
		err = errors.New("unknown action " + req.Action)
	}

	if err != nil {
		s.logger.Warn("socket action failed",
			logpkg.Str("action", req.Action),
			logpkg.Str("connection_id", ep.ConnectionID),
			logpkg.Err(err))
		s.replyError(ctx, ep, req.MessageID, err)
		return
	}
	if req.MessageID != "" {
		s.rt.Registry().PostToClient(ctx, ep.DomainName, ep.ConnectionID, map[string]any{
			"messageId": req.MessageID,
			"response":  response,
		})
	}
}

func (s *Server) replyError(ctx context.Context, ep transport.Endpoint, messageID string, err error) {
	if messageID == "" {
		return
	}
	s.rt.Registry().PostToClient(ctx, ep.DomainName, ep.ConnectionID, map[string]any{
		"messageId": messageID,
		"error":     true,
		"response":  err.Error(),
	})
}

func decodeValue(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func rawResponse(body json.RawMessage, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return body, nil
}
