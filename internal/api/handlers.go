package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"chatbox/internal/hub"
	"chatbox/internal/models"
)

type API struct {
	hub *hub.Hub
}

func New(h *hub.Hub) *API {
	return &API{hub: h}
}

type healthResponse struct {
	OK   bool   `json:"ok"`
	Mode string `json:"mode"`
	TS   int64  `json:"ts"`
}

type channelsResponse struct {
	Channels []models.Channel `json:"channels"`
}

type messagesResponse struct {
	Messages []models.Message `json:"messages"`
}

// HealthHandler answers liveness probes. Clients require the explicit
// ok flag, not just a 200.
func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, healthResponse{
		OK:   true,
		Mode: string(models.ModeLan),
		TS:   time.Now().UnixMilli(),
	})
}

func (a *API) ChannelsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, channelsResponse{Channels: a.hub.Channels()})
}

func (a *API) ChannelMessagesHandler(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("id")
	writeJSON(w, messagesResponse{Messages: a.hub.ChannelMessages(channelID)})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: failed to encode response: %v", err)
	}
}
