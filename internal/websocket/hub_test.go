package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu           sync.Mutex
	connected    []uint
	disconnected []uint
	received     []MessageType
}

func (h *recordingHandler) Connected(_ context.Context, c *Client) {
	h.mu.Lock()
	h.connected = append(h.connected, c.UserID())
	h.mu.Unlock()

	msg, _ := NewMessage(MessageTypeConnected, ConnectedData{ClientID: c.ID(), UserID: c.UserID()})
	_ = c.Send(msg)
}

func (h *recordingHandler) Disconnected(_ context.Context, c *Client) {
	h.mu.Lock()
	h.disconnected = append(h.disconnected, c.UserID())
	h.mu.Unlock()
}

func (h *recordingHandler) HandleMessage(_ context.Context, c *Client, msg *Message) {
	h.mu.Lock()
	h.received = append(h.received, msg.Type)
	h.mu.Unlock()

	echo, _ := NewMessage(MessageTypeTypingStart, map[string]uint{"senderId": c.UserID()})
	_ = c.Send(echo)
}

func (h *recordingHandler) counts() (int, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connected), len(h.disconnected), len(h.received)
}

func startTestServer(t *testing.T, userID uint) (*Hub, *recordingHandler, string) {
	t.Helper()
	handler := &recordingHandler{}
	hub := NewHub(handler)
	go hub.Run()
	t.Cleanup(hub.Stop)

	upgrader := NewUpgrader(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, upgrader, w, r, userID)
	}))
	t.Cleanup(srv.Close)

	return hub, handler, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readMessage(t *testing.T, conn *websocket.Conn) *Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return &msg
}

func TestHubConnectMessageDisconnect(t *testing.T) {
	hub, handler, url := startTestServer(t, 7)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	hello := readMessage(t, conn)
	assert.Equal(t, MessageTypeConnected, hello.Type)
	var data ConnectedData
	require.NoError(t, hello.Decode(&data))
	assert.Equal(t, uint(7), data.UserID)
	assert.Equal(t, 1, hub.ClientCount())

	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypeTypingStart, Data: []byte(`{"receiverId":2}`)}))
	echo := readMessage(t, conn)
	assert.Equal(t, MessageTypeTypingStart, echo.Type)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		_, disconnected, _ := handler.counts()
		return disconnected == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubRejectsUnknownAndMalformedFrames(t *testing.T) {
	_, handler, url := startTestServer(t, 1)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	readMessage(t, conn) // connected

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	errMsg := readMessage(t, conn)
	assert.Equal(t, MessageTypeError, errMsg.Type)

	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypeNewMessage}))
	errMsg = readMessage(t, conn)
	assert.Equal(t, MessageTypeError, errMsg.Type)

	var data ErrorData
	require.NoError(t, errMsg.Decode(&data))
	assert.Equal(t, "INVALID_MESSAGE", data.Code)

	_, _, received := handler.counts()
	assert.Zero(t, received)
}

func TestHubStopDisconnectsClients(t *testing.T) {
	hub, handler, url := startTestServer(t, 3)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	readMessage(t, conn)

	hub.Stop()

	_, disconnected, _ := handler.counts()
	assert.Equal(t, 1, disconnected)
}

func TestUpgraderOrigins(t *testing.T) {
	up := NewUpgrader([]string{"https://app.example.com/"})

	check := func(origin string) bool {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return up.CheckOrigin(r)
	}

	assert.True(t, check(""))
	assert.True(t, check("https://app.example.com"))
	assert.True(t, check("http://localhost:3000"))
	assert.False(t, check("https://evil.example.com"))
}

func TestMessageDecode(t *testing.T) {
	msg, err := NewMessage(MessageTypeCallSignal, map[string]string{"callId": "abc"})
	require.NoError(t, err)
	assert.NotZero(t, msg.Timestamp)

	var out map[string]string
	require.NoError(t, msg.Decode(&out))
	assert.Equal(t, "abc", out["callId"])

	empty := &Message{Type: MessageTypeMarkRead}
	assert.Error(t, empty.Decode(&out))
	assert.True(t, MessageTypeCallSignal.IsInbound())
	assert.False(t, MessageTypeFriendOnline.IsInbound())
}

// stallingHandler blocks the connect callback of one user until released.
type stallingHandler struct {
	recordingHandler
	stallUser uint
	release   chan struct{}
	order     []string
}

func (h *stallingHandler) Connected(ctx context.Context, c *Client) {
	if c.UserID() == h.stallUser {
		<-h.release
	}
	h.mu.Lock()
	h.order = append(h.order, "connected")
	h.mu.Unlock()
	h.recordingHandler.Connected(ctx, c)
}

func (h *stallingHandler) Disconnected(ctx context.Context, c *Client) {
	h.mu.Lock()
	h.order = append(h.order, "disconnected")
	h.mu.Unlock()
	h.recordingHandler.Disconnected(ctx, c)
}

func TestSlowConnectDoesNotBlockOtherClients(t *testing.T) {
	handler := &stallingHandler{stallUser: 1, release: make(chan struct{})}
	hub := NewHub(handler)
	go hub.Run()
	t.Cleanup(hub.Stop)

	upgrader := NewUpgrader(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := uint(1)
		if r.URL.Query().Get("user") == "2" {
			userID = 2
		}
		ServeWS(hub, upgrader, w, r, userID)
	}))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	slow, _, err := websocket.DefaultDialer.Dial(url+"?user=1", nil)
	require.NoError(t, err)
	defer slow.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, time.Millisecond)

	fast, _, err := websocket.DefaultDialer.Dial(url+"?user=2", nil)
	require.NoError(t, err)
	defer fast.Close()
	hello := readMessage(t, fast)
	assert.Equal(t, MessageTypeConnected, hello.Type)

	// the stalled client drops before its connect callback finishes
	require.NoError(t, slow.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, time.Millisecond)
	connected, disconnected, _ := handler.counts()
	assert.Equal(t, 1, connected)
	assert.Zero(t, disconnected)

	close(handler.release)
	require.Eventually(t, func() bool {
		_, disconnected, _ := handler.counts()
		return disconnected == 1
	}, 2*time.Second, 10*time.Millisecond)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Equal(t, []string{"connected", "connected", "disconnected"}, handler.order)
}
