// Package httpapi exposes the chat pipeline over HTTP: a JSON /chat
// endpoint, a websocket variant, health probes, and Prometheus metrics.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/recallhq/recall/config"
	"github.com/recallhq/recall/observability"
)

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// ChatResponse is the outbound chat payload.
type ChatResponse struct {
	Response string `json:"response"`
	UserID   string `json:"user_id"`
}

// Server serves the chat API.
type Server struct {
	cfg      config.Config
	service  *ChatService
	upgrader websocket.Upgrader
}

// New creates a server over the given chat service.
func New(cfg config.Config, service *ChatService) *Server {
	return &Server{
		cfg:     cfg,
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser clients may open chat sockets
				// unless the config opens it up. Non-browser clients
				// usually omit Origin and are allowed.
				if cfg.Server.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Group(func(r chi.Router) {
		if s.cfg.Server.RateRPS > 0 {
			r.Use(rateLimit(s.cfg.Server.RateRPS, s.cfg.Server.RateBurst))
		}
		r.Post("/chat", s.handleChat)
		r.Get("/chat/ws", s.handleChatWS)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": s.cfg.App.Name,
		"version": s.cfg.App.Version,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleChat processes one turn. The user always gets a textual response
// for a valid request; only malformed payloads produce an error status.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}
	if req.UserID == "" {
		req.UserID = DefaultUserID
	}

	response := s.service.ProcessMessage(r.Context(), req.Message, req.UserID)
	writeJSON(w, http.StatusOK, ChatResponse{Response: response, UserID: req.UserID})
}

// handleChatWS serves chat over a websocket: one ChatRequest per message
// frame, one ChatResponse back.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[HTTP] Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var req ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[HTTP] Websocket read failed: %v", err)
			}
			return
		}

		if strings.TrimSpace(req.Message) == "" {
			if err := conn.WriteJSON(map[string]string{"error": "message is required"}); err != nil {
				return
			}
			continue
		}
		if req.UserID == "" {
			req.UserID = DefaultUserID
		}

		response := s.service.ProcessMessage(r.Context(), req.Message, req.UserID)
		if err := conn.WriteJSON(ChatResponse{Response: response, UserID: req.UserID}); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Write response failed: %v", err)
	}
}
