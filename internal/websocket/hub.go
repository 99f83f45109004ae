// Package websocket pushes printer connectivity state to the GUI shell
// over a WebSocket connection, so the system tray can reflect "online" /
// "offline" without polling the HTTP status endpoint. The hub has exactly
// one kind of client (a GUI observer) and exactly one kind of outbound
// message (a connectivity/event notice); there is no client-to-server
// protocol beyond the read pump needed to detect a closed socket.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reika/escpos-bridge/internal/status"
)

// MessageType names the one-way notices the hub sends.
type MessageType string

const (
	// MessageTypeStatus carries a connectivity transition or the initial
	// snapshot a newly connected observer receives.
	MessageTypeStatus MessageType = "status"
	// MessageTypeEvent carries a USB or print failure notice.
	MessageTypeEvent MessageType = "event"
)

// Message is the one outbound shape every GUI observer receives.
type Message struct {
	Type      MessageType `json:"type"`
	Online    bool        `json:"online,omitempty"`
	Event     string      `json:"event,omitempty"`
	Detail    string      `json:"detail,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Hub fans the status broadcaster's connectivity transitions and sensor
// events out to every connected GUI observer.
type Hub struct {
	clients   map[*Client]struct{}
	clientsMu sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan Message

	logger *zap.Logger
}

// NewHub returns a Hub; call Run to start its event loop and Watch to wire
// it to a status.Broadcaster and status.EventQueue.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 64),
		logger:     logger,
	}
}

// Run drives the hub's registration and broadcast loop. It has no stop
// condition and never returns.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = struct{}{}
			h.clientsMu.Unlock()
			h.logger.Info("gui observer connected", zap.String("client_id", client.id))

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			h.logger.Info("gui observer disconnected", zap.String("client_id", client.id))

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("failed to marshal gui message", zap.Error(err))
				continue
			}
			h.clientsMu.RLock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					h.logger.Warn("gui observer send buffer full, dropping", zap.String("client_id", client.id))
				}
			}
			h.clientsMu.RUnlock()
		}
	}
}

// Watch subscribes to st and events and republishes every transition and
// event to connected observers until ctx is canceled. A newly registered
// client still needs the latest snapshot, which Register sends directly.
func (h *Hub) Watch(ctx context.Context, st *status.Broadcaster, events *status.EventQueue) {
	online, cancel := st.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case isOnline := <-online:
			h.broadcast <- Message{Type: MessageTypeStatus, Online: isOnline, Timestamp: time.Now().Unix()}
		case <-events.Ready():
			for {
				ev, ok := events.Pop()
				if !ok {
					break
				}
				h.broadcast <- Message{
					Type:      MessageTypeEvent,
					Event:     eventName(ev.Kind),
					Detail:    ev.Detail,
					Timestamp: time.Now().Unix(),
				}
			}
		}
	}
}

func eventName(kind status.EventKind) string {
	if kind == status.EventUsbError {
		return "usb_error"
	}
	return "print_fail"
}

// Register attaches client to the hub and immediately sends it the
// current snapshot, so an observer that connects mid-outage sees "offline"
// without waiting for the next transition.
func (h *Hub) Register(client *Client, snapshot bool) {
	h.register <- client
	data, err := json.Marshal(Message{Type: MessageTypeStatus, Online: snapshot, Timestamp: time.Now().Unix()})
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// Unregister detaches client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}
