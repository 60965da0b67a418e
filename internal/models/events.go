package models

import "errors"

var (
	ErrMissingChannel = errors.New("event is missing channelId")
	ErrEmptyText      = errors.New("message text is empty")
	ErrUnknownEvent   = errors.New("unknown event type")
)

type ClientEventType string

const (
	ClientEventJoin ClientEventType = "join"
	ClientEventSend ClientEventType = "message:send"
)

// ClientEvent is the envelope for everything a client sends over the
// realtime connection. Sender fields are only meaningful for
// message:send and are optional; the server defaults them.
type ClientEvent struct {
	Type            ClientEventType `json:"type"`
	ChannelID       string          `json:"channelId,omitempty"`
	Text            string          `json:"text,omitempty"`
	SenderID        string          `json:"senderId,omitempty"`
	SenderName      string          `json:"senderName,omitempty"`
	SenderAvatarURL string          `json:"senderAvatarUrl,omitempty"`
	Priority        MessagePriority `json:"priority,omitempty"`
}

// Validate checks that the routing fields required by the event type are
// present. Optional fields are defaulted later, never rejected.
func (e ClientEvent) Validate() error {
	switch e.Type {
	case ClientEventJoin:
		if e.ChannelID == "" {
			return ErrMissingChannel
		}
	case ClientEventSend:
		if e.ChannelID == "" {
			return ErrMissingChannel
		}
		if e.Text == "" {
			return ErrEmptyText
		}
	default:
		return ErrUnknownEvent
	}
	return nil
}

type ServerEventType string

const (
	// ServerEventSession is sent once right after the connection is
	// established and carries the session id the server assigned.
	ServerEventSession ServerEventType = "session"
	ServerEventMessage ServerEventType = "message:new"
)

// ServerEvent is the envelope for everything the server pushes to a
// client.
type ServerEvent struct {
	Type      ServerEventType `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Message   *Message        `json:"message,omitempty"`
}
