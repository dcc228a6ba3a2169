package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/wricardo/boxcast/game/scheduler"
	"github.com/wricardo/boxcast/game/service"
	"github.com/wricardo/boxcast/game/session"
)

type closeInfo struct {
	code   int
	reason string
}

// fakeCore assigns ids and records what the hub reports
type fakeCore struct {
	mu         sync.Mutex
	next       int
	connectErr error
	greetings  int

	received     chan []byte
	disconnected chan closeInfo
}

func newFakeCore() *fakeCore {
	return &fakeCore{
		greetings:    1,
		received:     make(chan []byte, 16),
		disconnected: make(chan closeInfo, 16),
	}
}

func (f *fakeCore) Connect(ctx context.Context, h session.Handle) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return 0, f.connectErr
	}
	f.next++
	for i := 0; i < f.greetings; i++ {
		h.Send([]byte(fmt.Sprintf(`{"action":"assigned_id","userId":%d}`, f.next)))
	}
	return f.next, nil
}

func (f *fakeCore) Receive(h session.Handle, raw []byte) {
	f.received <- raw
}

func (f *fakeCore) Disconnect(h session.Handle, code int, reason string) {
	f.disconnected <- closeInfo{code: code, reason: reason}
}

func newTestServer(t *testing.T, core Core) (*Hub, string) {
	t.Helper()
	hub := NewHub(core, log.New(io.Discard))
	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(server.Close)
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected CORS header on upgrade, got %q", got)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("Expected text frame, got %d", kind)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Frame is not a single JSON message %q: %v", data, err)
	}
	return m
}

func waitDisconnect(t *testing.T, core *fakeCore) closeInfo {
	t.Helper()
	select {
	case info := <-core.disconnected:
		return info
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for disconnect")
		return closeInfo{}
	}
}

func TestServeWS_Connect(t *testing.T) {
	core := newFakeCore()
	hub, url := newTestServer(t, core)

	conn := dial(t, url)
	msg := readJSON(t, conn)
	if msg["action"] != "assigned_id" || msg["userId"] != float64(1) {
		t.Errorf("Unexpected greeting %v", msg)
	}
	if hub.Count() != 1 {
		t.Errorf("Expected 1 client, got %d", hub.Count())
	}

	second := dial(t, url)
	if msg := readJSON(t, second); msg["userId"] != float64(2) {
		t.Errorf("Expected second viewer to get id 2, got %v", msg["userId"])
	}
}

func TestServeWS_OneMessagePerFrame(t *testing.T) {
	core := newFakeCore()
	core.greetings = 5
	_, url := newTestServer(t, core)

	conn := dial(t, url)
	for i := 0; i < 5; i++ {
		readJSON(t, conn)
	}
}

func TestServeWS_ForwardsInbound(t *testing.T) {
	core := newFakeCore()
	_, url := newTestServer(t, core)

	conn := dial(t, url)
	readJSON(t, conn)

	payload := `{"action":"chat","text":"hello"}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-core.received:
		if string(got) != payload {
			t.Errorf("Expected %s, got %s", payload, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Inbound frame never reached the core")
	}
}

func TestServeWS_CloseReportsCodeAndReason(t *testing.T) {
	core := newFakeCore()
	hub, url := newTestServer(t, core)

	conn := dial(t, url)
	readJSON(t, conn)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		t.Fatal(err)
	}

	info := waitDisconnect(t, core)
	if info.code != websocket.CloseNormalClosure || info.reason != "bye" {
		t.Errorf("Expected 1000/bye, got %d/%q", info.code, info.reason)
	}
	if hub.Count() != 0 {
		t.Errorf("Expected no clients after close, got %d", hub.Count())
	}
}

func TestServeWS_AbruptDisconnect(t *testing.T) {
	core := newFakeCore()
	_, url := newTestServer(t, core)

	conn := dial(t, url)
	readJSON(t, conn)
	conn.UnderlyingConn().Close()

	if info := waitDisconnect(t, core); info.code != websocket.CloseAbnormalClosure {
		t.Errorf("Expected 1006 for a dropped connection, got %d", info.code)
	}
}

func TestServeWS_OversizedMessage(t *testing.T) {
	core := newFakeCore()
	_, url := newTestServer(t, core)

	conn := dial(t, url)
	readJSON(t, conn)

	big := make([]byte, maxMessageSize+1)
	for i := range big {
		big[i] = 'a'
	}
	conn.WriteMessage(websocket.TextMessage, big)

	waitDisconnect(t, core)
	select {
	case <-core.received:
		t.Error("Oversized frame reached the core")
	default:
	}
}

func TestServeWS_ConnectFailure(t *testing.T) {
	core := newFakeCore()
	core.connectErr = service.ErrServiceClosed
	hub, url := newTestServer(t, core)

	conn := dial(t, url)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("Expected 1001 close, got %v", err)
	}
	if hub.Count() != 0 {
		t.Errorf("Expected rejected client to be removed, got %d", hub.Count())
	}
}

func TestHub_Shutdown(t *testing.T) {
	core := newFakeCore()
	hub, url := newTestServer(t, core)

	conns := []*websocket.Conn{dial(t, url), dial(t, url)}
	for _, c := range conns {
		readJSON(t, c)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hub.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	for i, c := range conns {
		c.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, _, err := c.ReadMessage()
		if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
			t.Errorf("Client %d: expected 1001 close, got %v", i, err)
		}
	}
	for range conns {
		if info := waitDisconnect(t, core); info.code != websocket.CloseGoingAway {
			t.Errorf("Expected core to see 1001, got %d", info.code)
		}
	}

	// New connections are turned away
	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial after shutdown: %v", err)
	}
	defer late.Close()
	late.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := late.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("Expected late client to be closed with 1001, got %v", err)
	}
}

func TestClient_Send(t *testing.T) {
	t.Run("buffer full closes client", func(t *testing.T) {
		c := &Client{send: make(chan []byte, 1), logger: log.New(io.Discard)}

		if err := c.Send([]byte("one")); err != nil {
			t.Fatalf("First send failed: %v", err)
		}
		if err := c.Send([]byte("two")); !errors.Is(err, ErrSendBufferFull) {
			t.Errorf("Expected ErrSendBufferFull, got %v", err)
		}
		if err := c.Send([]byte("three")); !errors.Is(err, ErrClientClosed) {
			t.Errorf("Expected ErrClientClosed after overflow, got %v", err)
		}
	})

	t.Run("send after close", func(t *testing.T) {
		c := &Client{send: make(chan []byte, 4), logger: log.New(io.Discard)}
		c.closeSend(websocket.CloseNormalClosure, "")
		c.closeSend(websocket.CloseNormalClosure, "")

		if err := c.Send([]byte("late")); !errors.Is(err, ErrClientClosed) {
			t.Errorf("Expected ErrClientClosed, got %v", err)
		}
	})
}

func TestServeWS_WithBoxService(t *testing.T) {
	svc, err := service.NewBoxService(service.Options{
		Clock:  scheduler.NewManualClock(time.Unix(0, 0)),
		Logger: log.New(io.Discard),
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Close(context.Background())

	_, url := newTestServer(t, svc)
	conn := dial(t, url)

	if msg := readJSON(t, conn); msg["action"] != "update_boxes" {
		t.Fatalf("Expected initial state, got %v", msg)
	}
	if msg := readJSON(t, conn); msg["action"] != "assigned_id" || msg["userId"] != float64(1) {
		t.Fatalf("Expected assigned_id 1, got %v", msg)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"chat","text":"jump"}`)); err != nil {
		t.Fatal(err)
	}

	chat := readJSON(t, conn)
	if chat["action"] != "chat" || chat["text"] != "User 1: jump" {
		t.Errorf("Unexpected chat %v", chat)
	}
	state := readJSON(t, conn)
	boxes := state["boxes"].([]any)
	if y := boxes[0].(map[string]any)["y"]; y != float64(50) {
		t.Errorf("Expected y 50 after jump, got %v", y)
	}
}
