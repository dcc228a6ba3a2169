package api

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/wricardo/boxcast/game/config"
	"github.com/wricardo/boxcast/game/service"
	"github.com/wricardo/boxcast/transport/websocket"
)

// maxChatBody caps operator chat requests, matching the viewer frame limit
const maxChatBody = 16 * 1024

// ProfileLister lists the simulation profiles available to the server.
// config.Manager satisfies it.
type ProfileLister interface {
	ListProfiles() ([]*config.ProfileInfo, error)
}

// Server represents the HTTP surface of the broadcast server
type Server struct {
	service  service.BoxService
	hub      *websocket.Hub
	profiles ProfileLister
	logger   *log.Logger
	router   *mux.Router
}

// NewServer creates a new API server. profiles may be nil, in which case
// /api/profiles reports only the running profile.
func NewServer(svc service.BoxService, hub *websocket.Hub, profiles ProfileLister, logger *log.Logger) *Server {
	s := &Server{
		service:  svc,
		hub:      hub,
		profiles: profiles,
		logger:   logger,
		router:   mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Viewers may upgrade on any path
	s.router.MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool {
		return websocket.IsUpgrade(r)
	}).HandlerFunc(s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/api/world", s.handleWorld).Methods("GET")
	s.router.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/chat", s.handleChat).Methods("POST")
	s.router.HandleFunc("/api/profiles", s.handleListProfiles).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")

	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps core errors to HTTP status codes
func statusFor(err error) int {
	if errors.Is(err, service.ErrServiceClosed) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"connections": s.service.Connections(),
	})
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>Boxcast</title>
    <style>
      body { font-family: Arial, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; }
      code { background: #f2f2f2; padding: 2px 4px; }
    </style>
  </head>
  <body>
    <h1>WebSocket Server Running</h1>
    <p>Connect to this server using a WebSocket client.</p>
    <p>Current active connections: {{.Connections}}</p>
    <p>Profile: <code>{{.Profile}}</code> ({{.Variant}})</p>
    <p>Send <code>{"action":"chat","text":"jump"}</code>, <code>run</code> or <code>stress</code> to drive the world.</p>
  </body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	cfg := s.service.Config()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := indexTemplate.Execute(w, map[string]interface{}{
		"Connections": s.service.Connections(),
		"Profile":     cfg.Name,
		"Variant":     cfg.Variant,
	}); err != nil {
		s.logger.Warn("Failed to render index", "err", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r)
}

// Introspection handlers

func (s *Server) handleWorld(w http.ResponseWriter, r *http.Request) {
	world, err := s.service.Snapshot(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"population": world.Len(),
		"boxes":      world.Boxes,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.Status(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// ChatRequest injects a chat line as a named server-side sender
type ChatRequest struct {
	Text string `json:"text"`
	From string `json:"from,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	if err := s.service.Inject(r.Context(), req.Text, req.From); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	s.logger.Info("Operator chat injected", "from", req.From, "text", req.Text)
	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":      "sent",
		"connections": s.service.Connections(),
	})
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	current := s.service.Config()

	var profiles []*config.ProfileInfo
	if s.profiles != nil {
		list, err := s.profiles.ListProfiles()
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		profiles = list
	} else {
		profiles = []*config.ProfileInfo{{
			ProfileID:   current.Name,
			Name:        current.Name,
			Description: current.Description,
			Variant:     current.Variant,
		}}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"active":   current.Name,
		"count":    len(profiles),
		"profiles": profiles,
	})
}
