package ws

import (
	"log"
	"net/http"

	"chatbox/internal/hub"

	"github.com/gorilla/websocket"
)

// Server upgrades HTTP requests to websocket connections and hands each
// one to the hub.
type Server struct {
	hub      *hub.Hub
	upgrader *websocket.Upgrader
}

// NewServer creates a websocket server. allowedOrigins is the CORS
// allowlist; empty means any origin is accepted (dev mode).
func NewServer(h *hub.Hub, allowedOrigins []string) *Server {
	return &Server{
		hub: h,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					// Non-browser clients send no Origin header.
					return true
				}
				for _, allowed := range allowedOrigins {
					if origin == allowed {
						return true
					}
				}
				return false
			},
		},
	}
}

func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: error upgrading to websocket: %v", err)
		return
	}

	conn := NewConnection(s.hub, ws)
	log.Printf("ws: connected session=%s from %s", conn.SessionID(), r.RemoteAddr)

	if err := conn.Handle(r.Context()); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			log.Printf("ws: session %s closed: %v", conn.SessionID(), err)
		}
	}
	log.Printf("ws: disconnected session=%s", conn.SessionID())
}
