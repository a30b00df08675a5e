package adminapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/distsys-sim/byzantine-generals/internal/coordinator"
	"github.com/distsys-sim/byzantine-generals/internal/events"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server serves the fleet's observability surface: /health, /events,
// /ws, and /metrics.
type Server struct {
	mux   *http.ServeMux
	hub   *hub
	coord *coordinator.Coordinator
	bus   *events.Bus
}

// New builds the admin HTTP surface for coord, streaming bus events to
// any connected WebSocket client.
func New(coord *coordinator.Coordinator, bus *events.Bus) *Server {
	h := newHub()
	h.attach(bus)
	go h.run()

	s := &Server{mux: http.NewServeMux(), hub: h, coord: coord, bus: bus}

	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/events", s.handleEvents)
	s.mux.Handle("/ws", http.HandlerFunc(s.handleWS))
	s.mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler returns the server's http.Handler for use with http.ListenAndServe.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "healthy",
		"generals": s.coord.Count(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var recent []events.Event
	if s.bus != nil {
		recent = s.bus.Recent(100)
	}
	json.NewEncoder(w).Encode(recent)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("adminapi: upgrade: %v", err)
		return
	}

	c := &client{hub: s.hub, conn: conn, send: make(chan []byte, 256), coord: s.coord}
	s.hub.register <- c

	go c.writePump()
	go c.readPump()
}
