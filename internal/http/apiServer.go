package http

import (
	"context"
	"log"
	"net/http"
	"sync"

	"chatbox/internal/api"
	"chatbox/internal/hub"
	"chatbox/internal/ws"
)

// APIServer serves the relay's HTTP surface (health, channel list,
// channel history) and the websocket endpoint.
type APIServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

func NewAPIServer(h *hub.Hub, allowedOrigins []string, addr string) *APIServer {
	wsServer := ws.NewServer(h, allowedOrigins)
	apiHandlers := api.New(h)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", apiHandlers.HealthHandler)
	mux.HandleFunc("GET /channels", apiHandlers.ChannelsHandler)
	mux.HandleFunc("GET /channels/{id}/messages", apiHandlers.ChannelMessagesHandler)

	// WebSocket endpoint
	mux.HandleFunc("/ws", wsServer.HandleConnections)

	if addr == "" {
		addr = ":4000"
	}

	return &APIServer{
		server: &http.Server{
			Addr:    addr,
			Handler: allowOrigins(allowedOrigins, mux),
		},
	}
}

func (s *APIServer) Start() error {
	log.Printf("Relay server started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}

// allowOrigins applies the CORS allowlist to the HTTP endpoints. An
// empty allowlist reflects any caller's origin (dev mode).
func allowOrigins(allowed []string, next http.Handler) http.Handler {
	permitted := func(origin string) bool {
		if len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == origin {
				return true
			}
		}
		return false
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && permitted(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
