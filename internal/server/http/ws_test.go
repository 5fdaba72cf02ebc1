package httpserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialSocket(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.srv.Handler)
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads frames until pred accepts one, failing on timeout. Frames
// arrive in no fixed order because replies and confirmations are posted
// independently.
func readUntil(t *testing.T, conn *websocket.Conn, what string, pred func(map[string]any) bool) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", what)
		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		if pred(msg) {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestSocketHelloCarriesConnectionID(t *testing.T) {
	s := newTestServer(t)
	conn := dialSocket(t, s)

	hello := readUntil(t, conn, "hello", func(m map[string]any) bool {
		_, ok := m["connectionId"]
		return ok
	})
	require.NotEmpty(t, hello["connectionId"])
	require.Equal(t, "localhost", hello["domainName"])
}

func TestSocketSubscribeThenGraphEventBroadcast(t *testing.T) {
	s := newTestServer(t)
	conn := dialSocket(t, s)
	readUntil(t, conn, "hello", func(m map[string]any) bool {
		_, ok := m["connectionId"]
		return ok
	})

	send(t, conn, map[string]any{
		"action": "subscribe", "messageId": "m1", "channelId": "graph-event-g1",
	})
	readUntil(t, conn, "subscribe reply", func(m map[string]any) bool {
		return m["messageId"] == "m1"
	})

	send(t, conn, map[string]any{
		"action": "addEvent", "messageId": "m2",
		"event": map[string]any{
			"graphId": "g1",
			"userId":  "u1",
			"changes": []map[string]any{
				{"kind": "N", "path": []any{"id"}, "rhs": "g1"},
			},
		},
	})

	// reply and broadcast land in no fixed order
	var sawReply bool
	var broadcast map[string]any
	deadline := time.Now().Add(3 * time.Second)
	for !sawReply || broadcast == nil {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		switch {
		case msg["messageId"] == "m2":
			require.NotEqual(t, true, msg["error"], "addEvent failed: %v", msg["response"])
			sawReply = true
		case msg["channelId"] == "graph-event-g1":
			broadcast = msg
		}
	}
	pair, ok := broadcast["response"].([]any)
	require.True(t, ok)
	require.Len(t, pair, 2)
}

func TestSocketUnknownActionReportsError(t *testing.T) {
	s := newTestServer(t)
	conn := dialSocket(t, s)

	send(t, conn, map[string]any{"action": "explode", "messageId": "m1"})
	reply := readUntil(t, conn, "error reply", func(m map[string]any) bool {
		return m["messageId"] == "m1"
	})
	require.Equal(t, true, reply["error"])
}

func TestSocketListSubscriptions(t *testing.T) {
	s := newTestServer(t)
	conn := dialSocket(t, s)
	readUntil(t, conn, "hello", func(m map[string]any) bool {
		_, ok := m["connectionId"]
		return ok
	})

	send(t, conn, map[string]any{"action": "subscribe", "messageId": "m1", "channelId": "ch-a"})
	readUntil(t, conn, "subscribe reply", func(m map[string]any) bool {
		return m["messageId"] == "m1"
	})

	send(t, conn, map[string]any{"action": "listSubscriptions", "messageId": "m2"})
	reply := readUntil(t, conn, "list reply", func(m map[string]any) bool {
		return m["messageId"] == "m2"
	})
	refs, ok := reply["response"].([]any)
	require.True(t, ok)
	require.Len(t, refs, 1)
}

func TestSocketDisconnectCleansRegistry(t *testing.T) {
	s := newTestServer(t)
	conn := dialSocket(t, s)
	readUntil(t, conn, "hello", func(m map[string]any) bool {
		_, ok := m["connectionId"]
		return ok
	})
	send(t, conn, map[string]any{"action": "subscribe", "messageId": "m1", "channelId": "ch-a"})
	readUntil(t, conn, "subscribe reply", func(m map[string]any) bool {
		return m["messageId"] == "m1"
	})

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		conns, err := s.rt.Store().List(context.Background(), "connections/")
		if err != nil || len(conns) != 0 {
			return false
		}
		subs, err := s.rt.Store().List(context.Background(), "subscriptions")
		return err == nil && len(subs) == 0
	}, 3*time.Second, 20*time.Millisecond)
}
