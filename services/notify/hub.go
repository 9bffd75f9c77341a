package notify

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Constants for hub configuration
const (
	MaxWindowClients      = 100 // Maximum concurrent dashboard windows
	WebSocketWriteTimeout = 10 * time.Second
	WebSocketPongTimeout  = 60 * time.Second
	WebSocketPingInterval = 30 * time.Second
)

// Command types sent to dashboard windows
const (
	CommandNotification      = "notification"
	CommandNotificationClose = "notification-close"
	CommandNavigate          = "navigate"
	CommandFocus             = "focus"
	CommandOpenWindow        = "open-window"
	CommandControllerChange  = "controller-change"
	CommandSyncReplayed      = "sync-replayed"
)

// Command is a message sent to one or all windows
type Command struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
	Time string      `json:"time"`
}

// Window represents one connected dashboard window
type Window struct {
	conn       *websocket.Conn
	send       chan []byte
	currentURL string
	mu         sync.RWMutex
}

// windowLocation is the message a window sends when it navigates
type windowLocation struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Hub tracks connected dashboard windows and pushes commands to them
type Hub struct {
	mu       sync.RWMutex
	windows  map[*Window]bool
	upgrader websocket.Upgrader
}

// NewHub creates a new window hub
func NewHub() *Hub {
	return &Hub{
		windows: make(map[*Window]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // same-origin enforcement happens at the proxy layer
			},
		},
	}
}

// Attach upgrades an HTTP request to a window connection and starts its pumps.
func (h *Hub) Attach(w http.ResponseWriter, r *http.Request) error {
	h.mu.RLock()
	count := len(h.windows)
	h.mu.RUnlock()
	if count >= MaxWindowClients {
		return fmt.Errorf("window limit reached (%d)", MaxWindowClients)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade failed: %w", err)
	}

	window := &Window{
		conn: conn,
		send: make(chan []byte, 16),
	}

	h.mu.Lock()
	h.windows[window] = true
	h.mu.Unlock()
	log.Printf("Dashboard window attached (%d connected)", count+1)

	go h.writePump(window)
	go h.readPump(window)
	return nil
}

// WindowCount returns the number of connected windows.
func (h *Hub) WindowCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.windows)
}

// Broadcast sends a command to every connected window.
func (h *Hub) Broadcast(cmd Command) {
	payload, err := marshalCommand(cmd)
	if err != nil {
		log.Printf("Command marshal failed: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for window := range h.windows {
		select {
		case window.send <- payload:
		default:
			// Slow window; drop the command rather than block the hub.
		}
	}
}

// ClaimAll announces that a new engine controls all open windows, without
// requiring a reload.
func (h *Hub) ClaimAll() {
	h.Broadcast(Command{Type: CommandControllerChange})
}

// Focus navigates one connected window to targetURL and focuses it. It
// returns false when no window is connected.
func (h *Hub) Focus(targetURL string) bool {
	h.mu.RLock()
	var target *Window
	for window := range h.windows {
		target = window
		// Prefer a window already showing the target.
		window.mu.RLock()
		onTarget := window.currentURL == targetURL
		window.mu.RUnlock()
		if onTarget {
			break
		}
	}
	h.mu.RUnlock()

	if target == nil {
		return false
	}

	payload, err := marshalCommand(Command{
		Type: CommandFocus,
		Data: map[string]string{"url": targetURL},
	})
	if err != nil {
		log.Printf("Command marshal failed: %v", err)
		return false
	}
	select {
	case target.send <- payload:
		return true
	default:
		return false
	}
}

// Open instructs the client side to open a new window at targetURL. With no
// connections the command has nowhere to go; it is logged and the persisted
// notification record lets the next window catch up.
func (h *Hub) Open(targetURL string) error {
	h.mu.RLock()
	connected := len(h.windows)
	h.mu.RUnlock()
	if connected == 0 {
		log.Printf("No window connected to open %s", targetURL)
		return nil
	}
	h.Broadcast(Command{
		Type: CommandOpenWindow,
		Data: map[string]string{"url": targetURL},
	})
	return nil
}

// writePump pushes queued commands and keepalive pings to one window.
func (h *Hub) writePump(window *Window) {
	ticker := time.NewTicker(WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		window.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-window.send:
			window.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if !ok {
				window.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := window.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			window.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if err := window.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes window messages (location updates) and detects closure.
func (h *Hub) readPump(window *Window) {
	defer h.detach(window)

	window.conn.SetReadLimit(4096)
	window.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
	window.conn.SetPongHandler(func(string) error {
		window.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
		return nil
	})

	for {
		_, payload, err := window.conn.ReadMessage()
		if err != nil {
			return
		}
		var loc windowLocation
		if err := json.Unmarshal(payload, &loc); err != nil {
			continue
		}
		if loc.Type == "location" {
			window.mu.Lock()
			window.currentURL = loc.URL
			window.mu.Unlock()
		}
	}
}

// detach unregisters a window and closes its connection.
func (h *Hub) detach(window *Window) {
	h.mu.Lock()
	if _, ok := h.windows[window]; ok {
		delete(h.windows, window)
		close(window.send)
	}
	remaining := len(h.windows)
	h.mu.Unlock()
	window.conn.Close()
	log.Printf("Dashboard window detached (%d connected)", remaining)
}

func marshalCommand(cmd Command) ([]byte, error) {
	if cmd.Time == "" {
		cmd.Time = time.Now().UTC().Format(time.RFC3339)
	}
	return json.Marshal(cmd)
}
