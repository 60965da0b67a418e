package models

import "errors"

var (
	ErrNotFound = errors.New("not found")
)

type ChannelKind string

const (
	ChannelKindSubject      ChannelKind = "subject"
	ChannelKindSection      ChannelKind = "section"
	ChannelKindDM           ChannelKind = "dm"
	ChannelKindAnnouncement ChannelKind = "announcement"
)

// Channel represents a chat channel. List order is display order and is
// preserved as-is, never re-sorted.
type Channel struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Topic string      `json:"topic,omitempty"`
	Kind  ChannelKind `json:"kind"`
}

type MessagePriority string

const (
	PriorityNormal    MessagePriority = "normal"
	PriorityHigh      MessagePriority = "high"
	PriorityEmergency MessagePriority = "emergency"
)

// Message represents a chat message. CreatedAt is epoch milliseconds.
// SenderSocketID is stamped by the server with the session id of the
// connection the message arrived on; clients use it to drop their own
// echoes.
type Message struct {
	ID              string          `json:"id"`
	ChannelID       string          `json:"channelId"`
	SenderID        string          `json:"senderId"`
	SenderName      string          `json:"senderName"`
	SenderAvatarURL string          `json:"senderAvatarUrl,omitempty"`
	SenderSocketID  string          `json:"senderSocketId,omitempty"`
	Text            string          `json:"text"`
	CreatedAt       int64           `json:"createdAt"`
	Priority        MessagePriority `json:"priority"`
}

type ConnectionMode string

const (
	ModeLan     ConnectionMode = "lan"
	ModeCloud   ConnectionMode = "cloud"
	ModeOffline ConnectionMode = "offline"
)

// ConnectionState is the outcome of a negotiation. BaseURL is non-empty
// exactly when Mode is lan or cloud.
type ConnectionState struct {
	Mode         ConnectionMode `json:"mode"`
	BaseURL      string         `json:"baseUrl,omitempty"`
	Initializing bool           `json:"initializing"`
}

// SeedChannels returns the channels the relay server starts with.
func SeedChannels() []Channel {
	return []Channel{
		{ID: "gen", Name: "General", Topic: "Campus-wide", Kind: ChannelKindSubject},
	}
}
