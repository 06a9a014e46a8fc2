package broker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/coder/websocket"

	"github.com/dohr-michael/rootd/internal/events"
)

// wsClient represents a connected WebSocket client.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub manages WebSocket clients and bridges them to the event bus. It
// also answers file queries over the socket so a caller can hold one
// connection for both.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*wsClient]struct{}
	bus         *events.Bus
	resolve     func(string) (string, error)
	unsubscribe func()
}

// NewHub creates a hub connected to an event bus. resolve maps a
// requested path to a served one and rejects anything outside the
// broker roots.
func NewHub(bus *events.Bus, resolve func(string) (string, error)) *Hub {
	h := &Hub{
		clients: make(map[*wsClient]struct{}),
		bus:     bus,
		resolve: resolve,
	}

	// Bridge every bus event to connected clients.
	h.unsubscribe = bus.Subscribe(func(e events.Event) {
		frame, err := NewEventFrame(string(e.Type), e)
		if err != nil {
			slog.Error("marshal event frame", "error", err)
			return
		}
		data, err := MarshalFrame(frame)
		if err != nil {
			slog.Error("marshal frame", "error", err)
			return
		}
		h.broadcast(data)
	})

	return h
}

// broadcast sends data to all connected clients.
func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client too slow, skip
		}
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	slog.Info("ws client connected", "clients", len(h.clients))
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		slog.Info("ws client disconnected", "clients", len(h.clients))
	}
}

// ServeWS handles a WebSocket upgrade and manages the client lifecycle.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The listener is a local unix socket; origins do not apply.
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("ws accept", "error", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	h.register(client)

	ctx := r.Context()
	go client.writePump(ctx)
	client.readPump(ctx)
}

// readPump reads frames from the WS connection and dispatches them.
func (c *wsClient) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("ws read closed", "status", websocket.CloseStatus(err))
			} else {
				slog.Debug("ws read error", "error", err)
			}
			return
		}

		frame, err := UnmarshalFrame(data)
		if err != nil {
			slog.Error("ws unmarshal frame", "error", err)
			continue
		}

		if frame.Type == FrameTypeRequest {
			c.handleRequest(frame)
		} else {
			slog.Debug("ws unknown frame type", "type", frame.Type)
		}
	}
}

type pathParams struct {
	Path string `json:"path"`
}

// handleRequest processes a request frame (method dispatch).
func (c *wsClient) handleRequest(frame Frame) {
	switch frame.Method {
	case MethodPing:
		c.sendOK(frame.ID, map[string]string{"status": "ok"})

	case MethodExists:
		var params pathParams
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			c.sendError(frame.ID, "invalid params")
			return
		}
		resolved, err := c.hub.resolve(params.Path)
		if err != nil {
			c.sendError(frame.ID, err.Error())
			return
		}
		_, statErr := os.Lstat(resolved)
		c.sendOK(frame.ID, map[string]bool{"exists": statErr == nil})

	case MethodReadFile:
		var params pathParams
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			c.sendError(frame.ID, "invalid params")
			return
		}
		resolved, err := c.hub.resolve(params.Path)
		if err != nil {
			c.sendError(frame.ID, err.Error())
			return
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			c.sendError(frame.ID, err.Error())
			return
		}
		c.sendOK(frame.ID, map[string]string{
			"content": base64.StdEncoding.EncodeToString(data),
		})

	default:
		c.sendError(frame.ID, "unknown method: "+frame.Method)
	}
}

// writePump writes queued messages to the WS connection.
func (c *wsClient) writePump(ctx context.Context) {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *wsClient) sendOK(id string, payload any) {
	f, err := NewResponseFrame(id, true, payload, "")
	if err != nil {
		return
	}
	data, err := MarshalFrame(f)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *wsClient) sendError(id string, errMsg string) {
	f, err := NewResponseFrame(id, false, nil, errMsg)
	if err != nil {
		return
	}
	data, err := MarshalFrame(f)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// Close shuts down the hub and all client connections.
func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close(websocket.StatusGoingAway, "server shutdown")
		delete(h.clients, c)
	}
}
