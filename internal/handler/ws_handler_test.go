package handler

import (
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/vhvplatform/go-delivery-service/internal/realtime"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
)

func newWSServer(t *testing.T) (*realtime.Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewLogger()
	hub := realtime.NewHub(log)
	h := NewWSHandler(hub, log)
	router := gin.New()
	router.GET("/ws/:user_id", h.Connect)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})
	return hub, srv
}

func wsURL(srv *httptest.Server, userID string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + userID
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestWSConnectReceivesPush(t *testing.T) {
	hub, srv := newWSServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "user-1"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return hub.Connections("user-1") == 1 },
		"connection never registered with the hub")

	if !hub.SendJSON("user-1", map[string]string{"event": "new_notification"}) {
		t.Fatal("expected push to a live connection to succeed")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if !strings.Contains(string(msg), "new_notification") {
		t.Errorf("unexpected payload: %s", msg)
	}
}

func TestWSDisconnectUnregisters(t *testing.T) {
	hub, srv := newWSServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "user-1"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	waitFor(t, func() bool { return hub.Connections("user-1") == 1 },
		"connection never registered with the hub")

	conn.Close()
	waitFor(t, func() bool { return hub.Connections("user-1") == 0 },
		"connection never unregistered after close")
}

// TestWSGoroutinesReleasedAfterClose guards against per-connection goroutine
// leaks: the write pump, read pump, and ping loop must all exit once the
// peer disconnects.
func TestWSGoroutinesReleasedAfterClose(t *testing.T) {
	hub, srv := newWSServer(t)

	baseline := runtime.NumGoroutine()

	for i := 0; i < 5; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "user-1"), nil)
		if err != nil {
			t.Fatalf("Dial %d failed: %v", i, err)
		}
		waitFor(t, func() bool { return hub.Connections("user-1") == 1 },
			"connection never registered with the hub")
		conn.Close()
		waitFor(t, func() bool { return hub.Connections("user-1") == 0 },
			"connection never unregistered after close")
	}

	waitFor(t, func() bool { return runtime.NumGoroutine() <= baseline+3 },
		"goroutines leaked after closing connections")
}
