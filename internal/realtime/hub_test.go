package realtime

import (
	"testing"

	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
)

// TestHubSend delivers to a registered client and reports absence otherwise
func TestHubSend(t *testing.T) {
	hub := NewHub(logger.NewLogger())
	defer hub.Close()

	client := NewClient("user-1", nil)
	hub.Register(client)

	if !hub.Send("user-1", []byte(`{"event":"new_notification"}`)) {
		t.Error("expected send to a registered client to succeed")
	}

	select {
	case msg := <-client.send:
		if string(msg) != `{"event":"new_notification"}` {
			t.Errorf("payload = %s", msg)
		}
	default:
		t.Error("expected payload on the client channel")
	}

	// Absence of a live connection is not an error, just a false result.
	if hub.Send("user-2", []byte("x")) {
		t.Error("expected send to an unknown user to report no listeners")
	}
}

// TestHubUnregister removes the connection from the directory
func TestHubUnregister(t *testing.T) {
	hub := NewHub(logger.NewLogger())
	defer hub.Close()

	client := NewClient("user-1", nil)
	hub.Register(client)
	if hub.Connections("user-1") != 1 {
		t.Fatalf("Connections = %d, want 1", hub.Connections("user-1"))
	}

	hub.Unregister(client)
	if hub.Connections("user-1") != 0 {
		t.Errorf("Connections = %d, want 0", hub.Connections("user-1"))
	}
	if hub.Send("user-1", []byte("x")) {
		t.Error("expected send after unregister to report no listeners")
	}
}

// TestSendToClosedClientDoesNotPanic covers the race between Send's client
// snapshot and a concurrent unregister: the closed client must be skipped,
// not written to
func TestSendToClosedClientDoesNotPanic(t *testing.T) {
	hub := NewHub(logger.NewLogger())
	defer hub.Close()

	client := NewClient("user-1", nil)
	hub.Register(client)
	hub.Unregister(client)

	// A stale snapshot from a concurrent Send still holds the client.
	if hub.trySend(client, []byte("x")) {
		t.Error("expected send to a closed client to report failure")
	}

	select {
	case <-client.send:
		t.Error("expected no payload to reach a closed client")
	default:
	}
}

// TestSendUnregisterRace hammers Send against Unregister; the send channel
// is never closed, so no interleaving may panic
func TestSendUnregisterRace(t *testing.T) {
	hub := NewHub(logger.NewLogger())
	defer hub.Close()

	for i := 0; i < 100; i++ {
		client := NewClient("user-1", nil)
		hub.Register(client)

		ready := make(chan struct{})
		finished := make(chan struct{})
		go func() {
			close(ready)
			for j := 0; j < 50; j++ {
				hub.Send("user-1", []byte("x"))
			}
			close(finished)
		}()

		<-ready
		hub.Unregister(client)
		<-finished
	}
}

// TestHubMultipleConnections fans a payload out to every live connection
func TestHubMultipleConnections(t *testing.T) {
	hub := NewHub(logger.NewLogger())
	defer hub.Close()

	first := NewClient("user-1", nil)
	second := NewClient("user-1", nil)
	hub.Register(first)
	hub.Register(second)

	if !hub.SendJSON("user-1", map[string]string{"event": "new_notification"}) {
		t.Fatal("expected fan-out to succeed")
	}

	for i, c := range []*Client{first, second} {
		select {
		case <-c.send:
		default:
			t.Errorf("connection %d received nothing", i)
		}
	}
}
