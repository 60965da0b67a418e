// Package realtime maintains a client's single live connection to the
// negotiated relay and routes server pushes into the message store.
package realtime

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"chatbox/internal/models"

	"github.com/gorilla/websocket"
)

var ErrNotConnected = errors.New("realtime: not connected")

const (
	dialTimeout      = 5 * time.Second
	reconnectBackoff = time.Second
	maxBackoff       = 30 * time.Second
)

// MessageSink receives inbound messages that survive the echo filter.
type MessageSink interface {
	AddIncoming(msg models.Message)
}

// Channel owns at most one live websocket at a time. Connecting to the
// address it is already on is a no-op; connecting to a different
// address tears the old connection down first. The read loop is started
// exactly once per underlying connection, so repeated Connect calls
// never stack duplicate handlers.
type Channel struct {
	sink   MessageSink
	dialer *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	baseURL   string
	sessionID string
	joined    map[string]bool
	cancel    context.CancelFunc
	gen       int
}

func New(sink MessageSink) *Channel {
	return &Channel{
		sink:   sink,
		dialer: &websocket.Dialer{HandshakeTimeout: dialTimeout},
		joined: make(map[string]bool),
	}
}

// Connect ensures a live connection to baseURL. If the channel is
// already connected there, the existing connection is reused. Channels
// joined on a previous connection are re-joined automatically. The
// connection lives until ctx is cancelled, Close is called, or a later
// Connect rebinds the channel to another address.
func (c *Channel) Connect(ctx context.Context, baseURL string) error {
	url := strings.TrimSuffix(baseURL, "/")

	c.mu.Lock()
	if c.conn != nil && c.baseURL == url {
		c.mu.Unlock()
		return nil
	}
	c.teardownLocked()
	c.gen++
	gen := c.gen
	c.baseURL = url
	c.mu.Unlock()

	conn, err := c.dial(ctx, url)
	if err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if gen != c.gen {
		// A concurrent Connect superseded this one.
		c.mu.Unlock()
		cancel()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.cancel = cancel
	c.rejoinLocked(conn)
	c.mu.Unlock()

	go c.readLoop(loopCtx, conn, url, gen)
	return nil
}

// Join subscribes to a channel's broadcasts. Joining the same channel
// twice is a no-op, so duplicate calls cannot cause duplicate
// deliveries. Joins issued while disconnected are replayed once the
// connection is back.
func (c *Channel) Join(channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.joined[channelID] {
		return nil
	}
	c.joined[channelID] = true

	if c.conn == nil {
		return nil
	}
	return c.conn.WriteJSON(models.ClientEvent{
		Type:      models.ClientEventJoin,
		ChannelID: channelID,
	})
}

// Send transmits a message:send event. The caller is expected to have
// already appended the message optimistically; the server's echo is
// dropped by the session filter.
func (c *Channel) Send(ev models.ClientEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	ev.Type = models.ClientEventSend
	return c.conn.WriteJSON(ev)
}

// SessionID returns the session identifier the server assigned to the
// current connection, or empty while disconnected.
func (c *Channel) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Connected reports whether a live connection exists right now.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close tears down the connection and stops the reconnect loop. The
// joined set is kept, so a later Connect resumes the same rooms.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.teardownLocked()
	return nil
}

func (c *Channel) teardownLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = c.conn.Close()
		c.conn = nil
	}
	c.sessionID = ""
}

func (c *Channel) dial(ctx context.Context, baseURL string) (*websocket.Conn, error) {
	wsURL := baseURL
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	conn, _, err := c.dialer.DialContext(ctx, wsURL+"/ws", nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// rejoinLocked re-emits join for every channel joined so far. Called
// with c.mu held, right after a (re)connect.
func (c *Channel) rejoinLocked(conn *websocket.Conn) {
	for channelID := range c.joined {
		if err := conn.WriteJSON(models.ClientEvent{
			Type:      models.ClientEventJoin,
			ChannelID: channelID,
		}); err != nil {
			log.Printf("realtime: rejoin %s failed: %v", channelID, err)
			return
		}
	}
}

// readLoop consumes server events for one underlying connection and,
// when it drops, keeps redialing the same address with backoff until
// the context is cancelled or the channel is rebound elsewhere.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn, baseURL string, gen int) {
	backoff := reconnectBackoff
	for {
		err := c.consumeUntilDone(ctx, conn, gen)

		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.conn = nil
		c.sessionID = ""
		c.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		log.Printf("realtime: connection to %s lost: %v", baseURL, err)

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}

			next, dialErr := c.dial(ctx, baseURL)
			if dialErr == nil {
				c.mu.Lock()
				if gen != c.gen {
					c.mu.Unlock()
					_ = next.Close()
					return
				}
				c.conn = next
				c.rejoinLocked(next)
				c.mu.Unlock()
				conn = next
				backoff = reconnectBackoff
				break
			}

			log.Printf("realtime: reconnect to %s failed: %v", baseURL, dialErr)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// consumeUntilDone runs consume and closes the connection when ctx is
// cancelled, so a parked read cannot outlive the caller's context.
func (c *Channel) consumeUntilDone(ctx context.Context, conn *websocket.Conn, gen int) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()
	return c.consume(conn, gen)
}

// consume reads events off one connection until it fails. Inbound
// messages matching our own session are echoes of sends this client
// already applied optimistically and are dropped.
func (c *Channel) consume(conn *websocket.Conn, gen int) error {
	for {
		var ev models.ServerEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}

		switch ev.Type {
		case models.ServerEventSession:
			c.mu.Lock()
			if gen == c.gen {
				c.sessionID = ev.SessionID
			}
			c.mu.Unlock()
		case models.ServerEventMessage:
			if ev.Message == nil {
				continue
			}
			if c.isEcho(*ev.Message) {
				continue
			}
			c.sink.AddIncoming(*ev.Message)
		default:
			log.Printf("realtime: ignoring unknown event type %q", ev.Type)
		}
	}
}

func (c *Channel) isEcho(msg models.Message) bool {
	c.mu.Lock()
	session := c.sessionID
	c.mu.Unlock()

	if session == "" {
		return false
	}
	if msg.SenderSocketID != "" {
		return msg.SenderSocketID == session
	}
	// Older relays only carry senderId, which defaults to the session
	// id for anonymous senders.
	return msg.SenderID == session
}
