package devhub

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/orderbell-io/orderbell-go/types"
)

func newTestServer(t *testing.T, token string) (*Server, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := NewServer(token)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readServerFrame(t *testing.T, conn *websocket.Conn) types.ServerFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f types.ServerFrame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func writeClientFrame(t *testing.T, conn *websocket.Conn, f types.ClientFrame) {
	t.Helper()
	payload, err := json.Marshal(f)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func TestHandshakeSendsConnectedFrame(t *testing.T) {
	_, srv := newTestServer(t, "")
	conn := dialWS(t, srv, "")

	hello := readServerFrame(t, conn)
	require.Equal(t, types.FrameConnected, hello.Type)
	require.Equal(t, "devhub/1.0", hello.ServerInfo)
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	_, srv := newTestServer(t, "secret")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{}
	header.Set("Authorization", "Bearer wrong")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Correct token connects.
	conn := dialWS(t, srv, "secret")
	require.Equal(t, types.FrameConnected, readServerFrame(t, conn).Type)
}

func TestPingPong(t *testing.T) {
	_, srv := newTestServer(t, "")
	conn := dialWS(t, srv, "")
	readServerFrame(t, conn) // connected

	writeClientFrame(t, conn, types.ClientFrame{Type: types.FramePing, ID: "p1"})
	pong := readServerFrame(t, conn)
	require.Equal(t, types.FramePong, pong.Type)
	require.Equal(t, "p1", pong.ID)
	require.NotZero(t, pong.ServerTimestamp)
}

func TestRoomScopedBroadcast(t *testing.T) {
	s, srv := newTestServer(t, "")
	member := dialWS(t, srv, "")
	outsider := dialWS(t, srv, "")
	readServerFrame(t, member)
	readServerFrame(t, outsider)

	writeClientFrame(t, member, types.ClientFrame{Type: types.FrameJoinRoom, Room: "admin_orders"})
	require.Equal(t, types.FrameRoomJoined, readServerFrame(t, member).Type)

	sent := s.Hub().Broadcast("admin_orders", types.NotificationEvent{
		ID:   "n1",
		Kind: types.EventKindNewOrder,
	})
	require.Equal(t, 1, sent)

	got := readServerFrame(t, member)
	require.Equal(t, types.FrameNotification, got.Type)
	require.Equal(t, "n1", got.Event.ID)

	// The outsider never joined the room and gets nothing.
	require.NoError(t, outsider.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := outsider.ReadMessage()
	require.Error(t, err)
}

func TestNotifyEndpointFillsDefaults(t *testing.T) {
	_, srv := newTestServer(t, "")
	conn := dialWS(t, srv, "")
	readServerFrame(t, conn)

	body, _ := json.Marshal(map[string]any{
		"event": map[string]any{"kind": "new_order", "orderId": "ord-00000001", "customerName": "Asha"},
	})
	resp, err := http.Post(srv.URL+"/api/dev/notify", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		ID        string `json:"id"`
		Delivered int    `json:"delivered"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.ID, "missing id must be generated")
	require.Equal(t, 1, out.Delivered)

	got := readServerFrame(t, conn)
	require.Equal(t, out.ID, got.Event.ID)
	require.False(t, got.Event.CreatedAt.IsZero())
}

func TestRedeliverRepeatsLastEventVerbatim(t *testing.T) {
	s, srv := newTestServer(t, "")
	conn := dialWS(t, srv, "")
	readServerFrame(t, conn)

	s.Hub().Broadcast("", types.NotificationEvent{ID: "n1", Kind: types.EventKindGeneric, Message: "hi"})
	first := readServerFrame(t, conn)

	resp, err := http.Post(srv.URL+"/api/dev/redeliver", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	second := readServerFrame(t, conn)
	require.Equal(t, first.Event.ID, second.Event.ID, "redelivery must keep the id")
}

func TestRedeliverWithoutHistory(t *testing.T) {
	_, srv := newTestServer(t, "")
	resp, err := http.Post(srv.URL+"/api/dev/redeliver", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQREndpoint(t *testing.T) {
	_, srv := newTestServer(t, "")
	resp, err := http.Get(srv.URL + "/qr?size=128")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}
