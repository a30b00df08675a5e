// Package adminapi exposes the fleet over HTTP/WebSocket: a live event
// feed, a Prometheus scrape endpoint, a health check, and the same
// command set the operator REPL exposes over stdin. It is the concrete
// driver↔coordinator remote-call transport spec.md treats as an
// external collaborator, adapted from the register/unregister/
// broadcast hub and per-connection read/write pump pair used elsewhere
// in the pack for WebSocket fan-out — rewired here to fan out
// events.Bus events and to dispatch inbound command requests instead
// of relaying simulation-engine ticks.
package adminapi

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/distsys-sim/byzantine-generals/internal/command"
	"github.com/distsys-sim/byzantine-generals/internal/coordinator"
	"github.com/distsys-sim/byzantine-generals/internal/events"
	"github.com/gorilla/websocket"
)

// commandRequest is the JSON shape a remote driver sends over /ws to
// invoke a §6 command: {"command": "g-add", "args": ["3"]}.
type commandRequest struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// commandResponse is echoed back to the requesting connection only —
// it is never broadcast to other clients.
type commandResponse struct {
	OK    bool     `json:"ok"`
	Error string   `json:"error,omitempty"`
	Lines []string `json:"lines,omitempty"`
}

// exit is excluded from the remote surface: a remote driver tearing
// down the whole process is not a "same command set as §6" operation.
const disallowedRemoteCommand = "exit"

type client struct {
	hub   *hub
	conn  *websocket.Conn
	send  chan []byte
	coord *coordinator.Coordinator
}

type hub struct {
	mu         sync.RWMutex
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
}

func newHub() *hub {
	return &hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// attach subscribes the hub to bus so every event is broadcast to
// connected WebSocket clients as JSON.
func (h *hub) attach(bus *events.Bus) {
	if bus == nil {
		return
	}
	bus.Subscribe(func(ev events.Event) {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Printf("adminapi: marshal event: %v", err)
			return
		}
		h.broadcast <- data
	})
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		resp := c.dispatch(data)
		encoded, err := json.Marshal(resp)
		if err != nil {
			log.Printf("adminapi: marshal command response: %v", err)
			continue
		}
		select {
		case c.send <- encoded:
		default:
		}
	}
}

// dispatch decodes an inbound WebSocket message as a commandRequest and
// runs it through the same command.REPL the operator's stdin loop uses,
// with "exit" excluded — a remote driver disconnecting does not tear
// down the fleet. Each request gets its own REPL over a fresh buffer so
// concurrent clients never share mutable dispatch state.
func (c *client) dispatch(data []byte) commandResponse {
	var req commandRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return commandResponse{Error: "malformed command request"}
	}

	cmd := strings.ToLower(strings.TrimSpace(req.Command))
	if cmd == "" {
		return commandResponse{Error: "missing command"}
	}
	if cmd == disallowedRemoteCommand {
		return commandResponse{Error: "exit is not available over the remote API"}
	}

	var out bytes.Buffer
	repl := command.NewREPL(c.coord, &out)
	repl.Execute(strings.TrimSpace(cmd + " " + strings.Join(req.Args, " ")))

	lines := make([]string, 0)
	for _, line := range strings.Split(out.String(), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return commandResponse{OK: true, Lines: lines}
}
