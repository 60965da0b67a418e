package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"chatbox/internal/models"

	"github.com/gorilla/websocket"
)

// testRelay is a minimal in-process relay speaking the wire protocol:
// it assigns a session id, records join events and lets tests push
// server events to the most recent connection.
type testRelay struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu        sync.Mutex
	conns     int
	active    *websocket.Conn
	joins     []string
	sessionID string
	push      chan models.ServerEvent
}

func newTestRelay(sessionID string) *testRelay {
	r := &testRelay{
		sessionID: sessionID,
		push:      make(chan models.ServerEvent, 10),
	}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/ws" {
			http.NotFound(w, req)
			return
		}
		conn, err := r.upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		r.mu.Lock()
		r.conns++
		r.active = conn
		r.mu.Unlock()

		_ = conn.WriteJSON(models.ServerEvent{
			Type:      models.ServerEventSession,
			SessionID: r.sessionID,
		})

		done := make(chan struct{})
		go func() {
			for {
				select {
				case ev := <-r.push:
					if err := conn.WriteJSON(ev); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			var ev models.ClientEvent
			if err := conn.ReadJSON(&ev); err != nil {
				break
			}
			if ev.Type == models.ClientEventJoin {
				r.mu.Lock()
				r.joins = append(r.joins, ev.ChannelID)
				r.mu.Unlock()
			}
		}
		close(done)
		_ = conn.Close()
	}))
	return r
}

// dropActive severs the newest connection from the server side,
// simulating a relay restart or network blip.
func (r *testRelay) dropActive() {
	r.mu.Lock()
	conn := r.active
	r.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (r *testRelay) connCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns
}

func (r *testRelay) joinCount(channelID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range r.joins {
		if id == channelID {
			n++
		}
	}
	return n
}

type recordingSink struct {
	ch chan models.Message
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ch: make(chan models.Message, 10)}
}

func (s *recordingSink) AddIncoming(msg models.Message) {
	s.ch <- msg
}

func (s *recordingSink) next(t *testing.T) models.Message {
	t.Helper()
	select {
	case msg := <-s.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
		return models.Message{}
	}
}

func (s *recordingSink) expectNone(t *testing.T) {
	t.Helper()
	select {
	case msg := <-s.ch:
		t.Fatalf("unexpected message delivered: %+v", msg)
	case <-time.After(200 * time.Millisecond):
	}
}

func waitForSession(t *testing.T, c *Channel) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.SessionID() != "" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session id never captured")
}

func TestConnect_CapturesSession(t *testing.T) {
	relay := newTestRelay("sess-abc")
	defer relay.srv.Close()

	c := New(newRecordingSink())
	defer func() { _ = c.Close() }()

	if err := c.Connect(context.Background(), relay.srv.URL); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitForSession(t, c)
	if c.SessionID() != "sess-abc" {
		t.Errorf("expected session sess-abc, got %s", c.SessionID())
	}
}

func TestConnect_SameURLReusesConnection(t *testing.T) {
	relay := newTestRelay("sess-1")
	defer relay.srv.Close()

	sink := newRecordingSink()
	c := New(sink)
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	if err := c.Connect(ctx, relay.srv.URL); err != nil {
		t.Fatalf("first Connect failed: %v", err)
	}
	waitForSession(t, c)
	if err := c.Connect(ctx, relay.srv.URL); err != nil {
		t.Fatalf("second Connect failed: %v", err)
	}
	if err := c.Connect(ctx, relay.srv.URL+"/"); err != nil {
		t.Fatalf("Connect with trailing slash failed: %v", err)
	}

	if got := relay.connCount(); got != 1 {
		t.Errorf("expected 1 underlying connection, got %d", got)
	}

	// A broadcast arrives exactly once, proving no duplicate handlers.
	relay.push <- models.ServerEvent{
		Type:    models.ServerEventMessage,
		Message: &models.Message{ID: "srv-1", ChannelID: "gen", SenderSocketID: "someone-else", Text: "hi"},
	}
	msg := sink.next(t)
	if msg.ID != "srv-1" {
		t.Errorf("expected srv-1, got %s", msg.ID)
	}
	sink.expectNone(t)
}

func TestEchoFiltered(t *testing.T) {
	relay := newTestRelay("sess-echo")
	defer relay.srv.Close()

	sink := newRecordingSink()
	c := New(sink)
	defer func() { _ = c.Close() }()

	if err := c.Connect(context.Background(), relay.srv.URL); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitForSession(t, c)

	// Echo of our own send: dropped.
	relay.push <- models.ServerEvent{
		Type:    models.ServerEventMessage,
		Message: &models.Message{ID: "echo-1", ChannelID: "gen", SenderSocketID: "sess-echo", Text: "mine"},
	}
	// Legacy echo shape without senderSocketId: also dropped.
	relay.push <- models.ServerEvent{
		Type:    models.ServerEventMessage,
		Message: &models.Message{ID: "echo-2", ChannelID: "gen", SenderID: "sess-echo", Text: "mine too"},
	}
	// Someone else's message: delivered.
	relay.push <- models.ServerEvent{
		Type:    models.ServerEventMessage,
		Message: &models.Message{ID: "other-1", ChannelID: "gen", SenderSocketID: "sess-other", Text: "theirs"},
	}

	msg := sink.next(t)
	if msg.ID != "other-1" {
		t.Errorf("expected other-1 delivered, got %s", msg.ID)
	}
	sink.expectNone(t)
}

func TestJoin_Idempotent(t *testing.T) {
	relay := newTestRelay("sess-join")
	defer relay.srv.Close()

	c := New(newRecordingSink())
	defer func() { _ = c.Close() }()

	if err := c.Connect(context.Background(), relay.srv.URL); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitForSession(t, c)

	if err := c.Join("gen"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := c.Join("gen"); err != nil {
		t.Fatalf("second Join failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if got := relay.joinCount("gen"); got != 1 {
		t.Errorf("expected 1 join frame, got %d", got)
	}
}

func TestConnect_SwitchAddress(t *testing.T) {
	relayA := newTestRelay("sess-a")
	defer relayA.srv.Close()
	relayB := newTestRelay("sess-b")
	defer relayB.srv.Close()

	sink := newRecordingSink()
	c := New(sink)
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	if err := c.Connect(ctx, relayA.srv.URL); err != nil {
		t.Fatalf("Connect to A failed: %v", err)
	}
	waitForSession(t, c)
	if err := c.Join("gen"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if err := c.Connect(ctx, relayB.srv.URL); err != nil {
		t.Fatalf("Connect to B failed: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && c.SessionID() != "sess-b" {
		time.Sleep(10 * time.Millisecond)
	}
	if c.SessionID() != "sess-b" {
		t.Fatalf("expected session sess-b after rebind, got %s", c.SessionID())
	}

	// Joined rooms carry over to the new connection.
	time.Sleep(100 * time.Millisecond)
	if got := relayB.joinCount("gen"); got != 1 {
		t.Errorf("expected join replayed on B, got %d", got)
	}

	// Only B's pushes arrive.
	relayB.push <- models.ServerEvent{
		Type:    models.ServerEventMessage,
		Message: &models.Message{ID: "from-b", ChannelID: "gen", SenderSocketID: "x", Text: "b"},
	}
	if msg := sink.next(t); msg.ID != "from-b" {
		t.Errorf("expected from-b, got %s", msg.ID)
	}
	if got := relayB.connCount(); got != 1 {
		t.Errorf("expected 1 connection to B, got %d", got)
	}
}

func TestReconnect_RejoinsAfterDrop(t *testing.T) {
	relay := newTestRelay("sess-r")
	defer relay.srv.Close()

	sink := newRecordingSink()
	c := New(sink)
	defer func() { _ = c.Close() }()

	if err := c.Connect(context.Background(), relay.srv.URL); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitForSession(t, c)
	if err := c.Join("gen"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	relay.dropActive()

	// The client redials the same address with backoff and replays the
	// join on the fresh connection, once per connection.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && relay.connCount() < 2 {
		time.Sleep(20 * time.Millisecond)
	}
	if got := relay.connCount(); got != 2 {
		t.Fatalf("expected a second connection after drop, got %d", got)
	}
	time.Sleep(100 * time.Millisecond)
	if got := relay.joinCount("gen"); got != 2 {
		t.Errorf("expected one join frame per connection, got %d", got)
	}

	// A push after the reconnect arrives exactly once.
	relay.push <- models.ServerEvent{
		Type:    models.ServerEventMessage,
		Message: &models.Message{ID: "after-drop", ChannelID: "gen", SenderSocketID: "peer", Text: "back"},
	}
	if msg := sink.next(t); msg.ID != "after-drop" {
		t.Errorf("expected after-drop, got %s", msg.ID)
	}
	sink.expectNone(t)
}

func TestConnect_ContextCancelTearsDown(t *testing.T) {
	relay := newTestRelay("sess-ctx")
	defer relay.srv.Close()

	c := New(newRecordingSink())
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Connect(ctx, relay.srv.URL); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitForSession(t, c)

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && c.Connected() {
		time.Sleep(10 * time.Millisecond)
	}
	if c.Connected() {
		t.Error("expected teardown after context cancel")
	}
}

func TestSend_RequiresConnection(t *testing.T) {
	c := New(newRecordingSink())
	err := c.Send(models.ClientEvent{ChannelID: "gen", Text: "hi"})
	if err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}
