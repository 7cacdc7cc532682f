package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"rey-arena/internal/protocol"
)

// fakeArena is a scripted websocket server
type fakeArena struct {
	t        *testing.T
	upgrader websocket.Upgrader

	// onJoin answers the join; nil means never answer
	onJoin func(conn *websocket.Conn, nickname string)
	// afterJoin runs once joined, before reading client frames
	afterJoin func(conn *websocket.Conn)

	mu       sync.Mutex
	received []protocol.Envelope
	gotLeave chan struct{}
}

func newFakeArena(t *testing.T) *fakeArena {
	return &fakeArena{
		t:        t,
		gotLeave: make(chan struct{}, 1),
		onJoin: func(conn *websocket.Conn, nickname string) {
			writeEnvelope(conn, protocol.KindJoined, protocol.Joined{SessionID: "sess-" + nickname})
		},
	}
}

func (f *fakeArena) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.t.Errorf("upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	if err != nil {
		return
	}
	env, _ := protocol.Decode(data)
	var join protocol.Join
	json.Unmarshal(env.Data, &join)

	if f.onJoin == nil {
		// Hold the connection open without answering.
		conn.ReadMessage()
		return
	}
	f.onJoin(conn, join.Nickname)
	if f.afterJoin != nil {
		f.afterJoin(conn)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		f.mu.Lock()
		f.received = append(f.received, env)
		f.mu.Unlock()
		if env.Type == protocol.KindLeave {
			f.gotLeave <- struct{}{}
		}
	}
}

func (f *fakeArena) inputs() []protocol.InputPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.InputPayload
	for _, env := range f.received {
		if env.Type != protocol.KindInput {
			continue
		}
		var p protocol.InputPayload
		json.Unmarshal(env.Data, &p)
		out = append(out, p)
	}
	return out
}

func writeEnvelope(conn *websocket.Conn, kind string, payload interface{}) {
	data, _ := protocol.Encode(kind, payload)
	conn.WriteMessage(websocket.TextMessage, data)
}

func startArena(t *testing.T, f *fakeArena) (*httptest.Server, string) {
	server := httptest.NewServer(f)
	return server, "ws" + strings.TrimPrefix(server.URL, "http")
}

func testOptions(url string) Options {
	opts := DefaultOptions(url, "ana")
	opts.JoinTimeout = 500 * time.Millisecond
	opts.WriteWait = time.Second
	return opts
}

// TestConnectAndReceive tests join and inbound dispatch
func TestConnectAndReceive(t *testing.T) {
	arena := newFakeArena(t)
	arena.afterJoin = func(conn *websocket.Conn) {
		writeEnvelope(conn, protocol.KindState, protocol.Snapshot{
			Players: map[string]protocol.PlayerState{"sess-ana": {Role: "rey"}},
		})
		writeEnvelope(conn, protocol.KindPlayerAnimation, protocol.PlayerAnimation{PlayerID: "sess-ana", Action: "kick"})
		writeEnvelope(conn, "chat", map[string]string{"text": "hi"})
	}
	server, url := startArena(t, arena)
	defer server.Close()

	states := make(chan *protocol.Snapshot, 1)
	messages := make(chan string, 4)

	s := New(testOptions(url))
	s.OnStateChange(func(snap *protocol.Snapshot) { states <- snap })
	s.OnMessage(func(kind string, data json.RawMessage) { messages <- kind })

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Close()

	if s.SessionID() != "sess-ana" {
		t.Errorf("Expected session id sess-ana, got %q", s.SessionID())
	}
	if !s.IsConnected() {
		t.Error("Expected connected")
	}

	select {
	case snap := <-states:
		if snap.Players["sess-ana"].Role != "rey" {
			t.Errorf("Unexpected snapshot %+v", snap)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for state")
	}

	select {
	case kind := <-messages:
		if kind != protocol.KindPlayerAnimation {
			t.Errorf("Expected playerAnimation, got %s", kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for message")
	}
}

// TestConnectRejected tests a join error is reported and not retried
func TestConnectRejected(t *testing.T) {
	arena := newFakeArena(t)
	arena.onJoin = func(conn *websocket.Conn, nickname string) {
		writeEnvelope(conn, protocol.KindError, protocol.ErrorMessage{Message: "room full"})
	}
	server, url := startArena(t, arena)
	defer server.Close()

	s := New(testOptions(url))
	err := s.Connect(context.Background())
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Expected ErrRejected, got %v", err)
	}
	if !strings.Contains(err.Error(), "room full") {
		t.Errorf("Expected server message in error, got %v", err)
	}
	if s.IsConnected() {
		t.Error("Rejected session should not be connected")
	}
	if err := s.Send(protocol.KindInput, protocol.InputPayload{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	s.Close()
}

// TestConnectTimeout tests a silent server fails the handshake
func TestConnectTimeout(t *testing.T) {
	arena := newFakeArena(t)
	arena.onJoin = nil
	server, url := startArena(t, arena)
	defer server.Close()

	opts := testOptions(url)
	opts.JoinTimeout = 100 * time.Millisecond
	s := New(opts)

	start := time.Now()
	if err := s.Connect(context.Background()); err == nil {
		t.Fatal("Expected handshake timeout")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Handshake should give up near the join timeout")
	}
}

// TestConnectDialFailure tests an unreachable server
func TestConnectDialFailure(t *testing.T) {
	s := New(testOptions("ws://127.0.0.1:1/arena"))
	if err := s.Connect(context.Background()); err == nil {
		t.Fatal("Expected dial error")
	}
	s.Close()
}

// TestSendInputLatestWins tests the last input always reaches the server
func TestSendInputLatestWins(t *testing.T) {
	arena := newFakeArena(t)
	server, url := startArena(t, arena)
	defer server.Close()

	s := New(testOptions(url))
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	const n = 200
	for i := 1; i <= n; i++ {
		if err := s.Send(protocol.KindInput, protocol.InputPayload{Move: [2]float64{float64(i) / n, 0}}); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		in := arena.inputs()
		if len(in) > 0 && in[len(in)-1].Move[0] == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	in := arena.inputs()
	if len(in) == 0 || in[len(in)-1].Move[0] != 1 {
		t.Fatalf("Expected the final input to arrive, got %d inputs", len(in))
	}
	if len(in) > n {
		t.Errorf("Expected at most %d inputs, got %d", n, len(in))
	}
	stats := s.GetStats()
	if stats["sent"]+stats["dropped"] < uint64(len(in)) {
		t.Errorf("Stats do not account for inputs: %+v", stats)
	}

	s.Close()
}

// TestCloseSendsLeave tests the close handshake and idempotence
func TestCloseSendsLeave(t *testing.T) {
	arena := newFakeArena(t)
	server, url := startArena(t, arena)
	defer server.Close()

	disconnected := make(chan error, 1)
	s := New(testOptions(url))
	s.OnDisconnect(func(err error) { disconnected <- err })
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	s.Close()
	s.Close()

	select {
	case <-arena.gotLeave:
	case <-time.After(2 * time.Second):
		t.Error("Server never saw leave")
	}
	select {
	case <-s.Done():
	default:
		t.Error("Session should be done after Close")
	}
	select {
	case err := <-disconnected:
		t.Errorf("OnDisconnect should not fire on Close, got %v", err)
	default:
	}
	if err := s.Send(protocol.KindInput, protocol.InputPayload{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
}

// TestServerDropReportsDisconnect tests an unexpected close
func TestServerDropReportsDisconnect(t *testing.T) {
	arena := newFakeArena(t)
	arena.afterJoin = func(conn *websocket.Conn) {
		conn.Close()
	}
	server, url := startArena(t, arena)
	defer server.Close()

	disconnected := make(chan error, 1)
	s := New(testOptions(url))
	s.OnDisconnect(func(err error) { disconnected <- err })
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Close()

	select {
	case err := <-disconnected:
		if err == nil {
			t.Error("Expected a non-nil disconnect error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for disconnect")
	}
	if s.IsConnected() {
		t.Error("Expected not connected after drop")
	}
}
