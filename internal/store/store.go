// Package store holds a client's view of channels and messages: the
// optimistic local writes plus everything merged in from the server.
package store

import (
	"sort"
	"sync"
	"time"

	"chatbox/internal/models"

	"github.com/c-pro/geche"
	"github.com/google/uuid"
)

// Identity is the local user as messages should present them.
type Identity struct {
	ID        string
	Name      string
	AvatarURL string
}

// Store is safe for concurrent use. The channel list keeps its display
// order; per-channel message logs are ordered by creation time.
type Store struct {
	identity Identity

	channels        []models.Channel
	activeChannelID string
	mu              sync.RWMutex

	// Map of channelID -> ordered message log.
	messages *geche.Locker[string, []models.Message]

	now   func() time.Time
	genID func() string
}

func New(identity Identity) *Store {
	if identity.ID == "" {
		identity.ID = "me"
	}
	if identity.Name == "" {
		identity.Name = "You"
	}

	s := &Store{
		identity: identity,
		messages: geche.NewLocker[string, []models.Message](
			geche.NewMapCache[string, []models.Message](),
		),
		now:   time.Now,
		genID: uuid.NewString,
	}
	s.seed()
	return s
}

// seed fills the store with the campus defaults the client shows before
// (or without) ever reaching a server.
func (s *Store) seed() {
	s.channels = []models.Channel{
		{ID: "gen", Name: "General", Topic: "Campus-wide", Kind: models.ChannelKindSubject},
		{ID: "bsit3-b4", Name: "BSIT • 3rd yr • Block 4", Topic: "Schedule: MWF 8:00–10:00", Kind: models.ChannelKindSubject},
		{ID: "bsit2-b1", Name: "BSIT • 2nd yr • Block 1", Topic: "Schedule: TTh 1:00–3:00", Kind: models.ChannelKindSubject},
		{ID: "cs1-b2", Name: "BSCS • 1st yr • Block 2", Topic: "Schedule: MWF 10:00–12:00", Kind: models.ChannelKindSubject},
		{ID: "sci101", Name: "SCI 101", Topic: "Section A", Kind: models.ChannelKindSubject},
		{ID: "dm-guest", Name: "Guest", Topic: "Direct Message", Kind: models.ChannelKindDM},
	}
	s.activeChannelID = "gen"

	now := s.now().UnixMilli()
	tx := s.messages.Lock()
	defer tx.Unlock()
	for _, c := range s.channels {
		tx.Set(c.ID, []models.Message{})
	}
	tx.Set("gen", []models.Message{{
		ID:         "m1",
		ChannelID:  "gen",
		SenderID:   "u1",
		SenderName: "System",
		Text:       "Welcome to ChatBox!",
		CreatedAt:  now - time.Minute.Milliseconds(),
		Priority:   models.PriorityNormal,
	}})
	tx.Set("dm-guest", []models.Message{{
		ID:         "m-dm1",
		ChannelID:  "dm-guest",
		SenderID:   "guest",
		SenderName: "Guest",
		Text:       "Hi! This is a demo DM.",
		CreatedAt:  now - 30*time.Second.Milliseconds(),
		Priority:   models.PriorityNormal,
	}})
}

func (s *Store) Channels() []models.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Channel, len(s.channels))
	copy(out, s.channels)
	return out
}

// SetChannels replaces the channel list wholesale, preserving the
// server's order.
func (s *Store) SetChannels(channels []models.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = make([]models.Channel, len(channels))
	copy(s.channels, channels)
}

func (s *Store) ActiveChannelID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeChannelID
}

func (s *Store) SetActiveChannel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeChannelID = id
}

// Messages returns a copy of the channel's message log.
func (s *Store) Messages(channelID string) []models.Message {
	tx := s.messages.Lock()
	defer tx.Unlock()
	msgs, err := tx.Get(channelID)
	if err != nil {
		return nil
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}

// SendMessage appends an optimistic local message and returns it for
// transmission. The sender sees their message immediately, regardless
// of transport health; the server's echo is filtered upstream and the
// id dedupe here is a second line of defense.
func (s *Store) SendMessage(channelID, text string) models.Message {
	msg := models.Message{
		ID:              s.genID(),
		ChannelID:       channelID,
		SenderID:        s.identity.ID,
		SenderName:      s.identity.Name,
		SenderAvatarURL: s.identity.AvatarURL,
		Text:            text,
		CreatedAt:       s.now().UnixMilli(),
		Priority:        models.PriorityNormal,
	}

	s.append(msg)
	return msg
}

// AddIncoming merges a server-pushed message into the channel log. A
// message whose id is already present is dropped.
func (s *Store) AddIncoming(msg models.Message) {
	s.append(msg)
}

func (s *Store) append(msg models.Message) {
	tx := s.messages.Lock()
	defer tx.Unlock()

	msgs, err := tx.Get(msg.ChannelID)
	if err != nil {
		msgs = nil
	}
	for _, m := range msgs {
		if m.ID == msg.ID {
			return
		}
	}
	tx.Set(msg.ChannelID, append(msgs, msg))
}

// SetChannelMessages reconciles a fetched history with whatever is
// already in the channel log. Entries are merged by message id and
// ordered by timestamp, so a history fetch racing a live push neither
// drops nor duplicates a message.
func (s *Store) SetChannelMessages(channelID string, history []models.Message) {
	tx := s.messages.Lock()
	defer tx.Unlock()

	existing, err := tx.Get(channelID)
	if err != nil {
		existing = nil
	}

	seen := make(map[string]bool, len(history))
	merged := make([]models.Message, 0, len(history)+len(existing))
	for _, m := range history {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		merged = append(merged, m)
	}
	for _, m := range existing {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		merged = append(merged, m)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].CreatedAt != merged[j].CreatedAt {
			return merged[i].CreatedAt < merged[j].CreatedAt
		}
		return merged[i].ID < merged[j].ID
	})

	tx.Set(channelID, merged)
}

// CreateDm activates the DM channel for the given person, creating it
// if needed. The channel id derives deterministically from the person
// id, so repeated calls always land on the same channel.
func (s *Store) CreateDm(personID, personName string) string {
	dmID := "dm-" + personID

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.channels {
		if c.Kind == models.ChannelKindDM && (c.ID == dmID || c.Name == personName) {
			s.activeChannelID = c.ID
			return c.ID
		}
	}

	s.channels = append(s.channels, models.Channel{
		ID:    dmID,
		Name:  personName,
		Topic: "Direct Message",
		Kind:  models.ChannelKindDM,
	})
	s.activeChannelID = dmID

	tx := s.messages.Lock()
	defer tx.Unlock()
	if _, err := tx.Get(dmID); err != nil {
		tx.Set(dmID, []models.Message{})
	}

	return dmID
}
