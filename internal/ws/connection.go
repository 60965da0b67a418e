package ws

import (
	"context"
	"errors"
	"sync"

	"chatbox/internal/models"
)

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
}

type broadcastHub interface {
	Connect() (string, chan models.ServerEvent)
	Disconnect(sessionID string)
	Dispatch(sessionID string, ev models.ClientEvent)
}

// Connection ties one websocket to the hub: it registers a session,
// announces the session id to the client, pumps inbound events into the
// hub and outbound events onto the wire.
type Connection struct {
	ws         wsConnection
	hub        broadcastHub
	sessionID  string
	fromClient chan models.ClientEvent
	fromServer chan models.ServerEvent
	errorCh    chan error
}

func NewConnection(hub broadcastHub, ws wsConnection) *Connection {
	sessionID, fromServer := hub.Connect()
	return &Connection{
		ws:         ws,
		hub:        hub,
		sessionID:  sessionID,
		fromClient: make(chan models.ClientEvent),
		fromServer: fromServer,
		errorCh:    make(chan error, 2),
	}
}

func (c *Connection) SessionID() string {
	return c.sessionID
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		close(c.fromClient)
		close(c.errorCh)
		c.hub.Disconnect(c.sessionID)
	}()

	// Session hello so the client can filter its own echoes.
	if err := c.ws.WriteJSON(models.ServerEvent{
		Type:      models.ServerEventSession,
		SessionID: c.sessionID,
	}); err != nil {
		cancel()
		_ = c.ws.Close()
		return err
	}

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpEvents(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) pumpEvents(ctx context.Context) error {
	for {
		var ev models.ClientEvent
		if err := c.ws.ReadJSON(&ev); err != nil {
			return err
		}
		select {
		case c.fromClient <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	for {
		select {
		case ev := <-c.fromClient:
			c.hub.Dispatch(c.sessionID, ev)
		case ev, ok := <-c.fromServer:
			if !ok {
				return nil
			}
			if err := c.ws.WriteJSON(ev); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
