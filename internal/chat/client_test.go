package chat

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/orderdesk/orderdesk/internal/auth"
)

var errTest = errors.New("store failure")

func newWSServer(t *testing.T, store MessageStore) (*httptest.Server, *auth.Manager, *Hub) {
	t.Helper()
	tokens := auth.NewManager("test-secret", time.Hour)
	hub := NewHub(tokens, store, zerolog.Nop())
	srv := httptest.NewServer(ServeWS(hub, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv, tokens, hub
}

func wsURL(srv *httptest.Server, query string) string {
	u := strings.Replace(srv.URL, "http://", "ws://", 1)
	if query != "" {
		u += "?" + query
	}
	return u
}

func TestUpgradeRefusedWithoutToken(t *testing.T) {
	srv, _, _ := newWSServer(t, &fakeStore{})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	if err == nil {
		t.Fatal("expected dial to fail without token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func TestUpgradeRefusedWithBadToken(t *testing.T) {
	srv, _, _ := newWSServer(t, &fakeStore{})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "token=garbage"), nil)
	if err == nil {
		t.Fatal("expected dial to fail with bad token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func TestSupportMessageRoundTrip(t *testing.T) {
	store := &fakeStore{}
	srv, tokens, _ := newWSServer(t, store)

	token, err := tokens.IssueToken(auth.Identity{UserID: 42, Username: "alice", Role: "client"})
	if err != nil {
		t.Fatal(err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "token="+token), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	err = conn.WriteJSON(map[string]interface{}{
		"event": EventSendUserMsg,
		"data":  map[string]string{"text": "hello support", "client_message_id": "c-1"},
	})
	if err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatal(err)
	}

	if env.Event != EventNewSupportMessage {
		t.Fatalf("expected %s, got %s", EventNewSupportMessage, env.Event)
	}
	if env.Data.Text != "hello support" || env.Data.UserID != 42 {
		t.Fatalf("unexpected payload: %+v", env.Data)
	}
	if env.Data.ClientMessageID != "c-1" {
		t.Fatalf("expected client_message_id echoed, got %q", env.Data.ClientMessageID)
	}
	if store.count() != 1 {
		t.Fatalf("expected 1 persisted message, got %d", store.count())
	}
}

func TestMalformedFrameIgnored(t *testing.T) {
	store := &fakeStore{}
	srv, tokens, _ := newWSServer(t, store)

	token, err := tokens.IssueToken(auth.Identity{UserID: 7, Username: "bob", Role: "client"})
	if err != nil {
		t.Fatal(err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "token="+token), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// Garbage frame must be dropped without closing the connection
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}

	// A valid message afterwards still goes through
	err = conn.WriteJSON(map[string]interface{}{
		"event": EventSendUserMsg,
		"data":  map[string]string{"text": "still alive"},
	})
	if err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatal(err)
	}
	if env.Data.Text != "still alive" {
		t.Fatalf("unexpected payload: %+v", env.Data)
	}
}

func TestConnectionClosedOnPersistenceFailure(t *testing.T) {
	store := &fakeStore{err: errTest}
	srv, tokens, hub := newWSServer(t, store)

	token, err := tokens.IssueToken(auth.Identity{UserID: 7, Username: "bob", Role: "client"})
	if err != nil {
		t.Fatal(err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "token="+token), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	err = conn.WriteJSON(map[string]interface{}{
		"event": EventSendUserMsg,
		"data":  map[string]string{"text": "doomed"},
	})
	if err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to close after persistence failure")
	}

	deadline := time.Now().Add(3 * time.Second)
	for hub.Connections() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session not cleaned up after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
