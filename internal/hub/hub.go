package hub

import (
	"fmt"
	"log"
	"sync"
	"time"

	"chatbox/internal/content"
	"chatbox/internal/models"

	"github.com/c-pro/geche"
	"github.com/google/uuid"
)

const sessionBufferSize = 100

// Hub is the process-wide broadcast authority: it owns channel and
// message identity, room membership of every live session, and fan-out.
// All state is in memory; a restart resets it to the seeded defaults.
type Hub struct {
	// Ordered channel list, display order.
	channels []models.Channel

	// Map of channelID -> ordered message log.
	messages map[string][]models.Message

	// Map of channelID -> set of session ids currently joined.
	rooms map[string]map[string]bool

	// Map of sessionID -> outbound event channel.
	sessions geche.Geche[string, chan models.ServerEvent]

	now func() time.Time

	mu sync.RWMutex
}

func NewHub() *Hub {
	h := &Hub{
		channels: models.SeedChannels(),
		messages: make(map[string][]models.Message),
		rooms:    make(map[string]map[string]bool),
		sessions: geche.NewMapCache[string, chan models.ServerEvent](),
		now:      time.Now,
	}

	for _, c := range h.channels {
		h.messages[c.ID] = []models.Message{}
	}

	return h
}

// Connect registers a new session and returns its id together with the
// channel the session's events will be delivered on.
func (h *Hub) Connect() (string, chan models.ServerEvent) {
	sessionID := uuid.NewString()
	ch := make(chan models.ServerEvent, sessionBufferSize)
	h.sessions.Set(sessionID, ch)
	return sessionID, ch
}

// Disconnect removes the session from every room it joined and closes
// its event channel. Room membership is session-scoped and never
// survives the connection.
func (h *Hub) Disconnect(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for channelID, members := range h.rooms {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(h.rooms, channelID)
		}
	}
	if ch, err := h.sessions.Get(sessionID); err == nil {
		close(ch)
		_ = h.sessions.Del(sessionID)
	}
}

// Join adds the session to the broadcast group for channelID. Joining
// twice is a no-op; a session may belong to any number of groups.
func (h *Hub) Join(sessionID, channelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[channelID]
	if !ok {
		members = make(map[string]bool)
		h.rooms[channelID] = members
	}
	members[sessionID] = true
}

// Dispatch routes a validated client event from the given session.
// Events that fail validation are logged and dropped; nothing is sent
// back to the client.
func (h *Hub) Dispatch(sessionID string, ev models.ClientEvent) {
	if err := ev.Validate(); err != nil {
		log.Printf("hub: dropping event from %s: %v", sessionID, err)
		return
	}

	switch ev.Type {
	case models.ClientEventJoin:
		if err := content.ValidateChannelID(ev.ChannelID); err != nil {
			log.Printf("hub: dropping join from %s: %v", sessionID, err)
			return
		}
		h.Join(sessionID, ev.ChannelID)
	case models.ClientEventSend:
		h.handleSend(sessionID, ev)
	}
}

// handleSend stamps the authoritative message fields, appends the
// message to the channel log and broadcasts it to every session in the
// room, including the sender's own.
func (h *Hub) handleSend(sessionID string, ev models.ClientEvent) {
	text := content.Sanitize(ev.Text)
	if text == "" {
		log.Printf("hub: dropping message from %s: empty after sanitization", sessionID)
		return
	}

	now := h.now()
	msg := models.Message{
		ID:              newMessageID(now),
		ChannelID:       ev.ChannelID,
		SenderID:        ev.SenderID,
		SenderName:      ev.SenderName,
		SenderAvatarURL: ev.SenderAvatarURL,
		SenderSocketID:  sessionID,
		Text:            text,
		CreatedAt:       now.UnixMilli(),
		Priority:        ev.Priority,
	}
	if msg.SenderID == "" {
		msg.SenderID = sessionID
	}
	if msg.SenderName == "" {
		msg.SenderName = "User"
	}
	switch msg.Priority {
	case models.PriorityNormal, models.PriorityHigh, models.PriorityEmergency:
	default:
		msg.Priority = models.PriorityNormal
	}

	out := models.ServerEvent{
		Type:    models.ServerEventMessage,
		Message: &msg,
	}

	// Append and fan-out run under one lock: concurrent sends apply in
	// receipt order and delivery never races a Disconnect close.
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages[msg.ChannelID] = append(h.messages[msg.ChannelID], msg)
	for id := range h.rooms[msg.ChannelID] {
		ch, err := h.sessions.Get(id)
		if err != nil {
			continue
		}
		select {
		case ch <- out:
		default:
			// Slow consumer, best effort only.
			log.Printf("hub: dropping broadcast to %s: buffer full", id)
		}
	}
}

// Channels returns the channel list in display order.
func (h *Hub) Channels() []models.Channel {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]models.Channel, len(h.channels))
	copy(out, h.channels)
	return out
}

// ChannelMessages returns the message log for channelID. An unknown
// channel yields an empty list, matching the permissive send path.
func (h *Hub) ChannelMessages(channelID string) []models.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msgs := h.messages[channelID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}

func newMessageID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
