// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/questplay/internal/catalog"
	"github.com/ManuGH/questplay/internal/engine"
	"github.com/ManuGH/questplay/internal/log"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Event types pushed to websocket clients.
const (
	EventScene          = "scene"
	EventCatalog        = "catalog"
	EventContentMissing = "content_missing"
	EventFetchFailed    = "fetch_failed"
	EventWelcome        = "welcome"
)

const (
	clientBuffer = 16
	writeWait    = 2 * time.Second
)

// Event is the envelope of every websocket message.
type Event struct {
	Type    string `json:"type"`
	TitleID string `json:"titleId,omitempty"`
	SceneID string `json:"sceneId,omitempty"`
	Error   string `json:"error,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans engine events out to websocket clients. It implements
// engine.Presenter; broadcasts never block, and a client whose buffer is
// full is dropped.
type Hub struct {
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

var _ engine.Presenter = (*Hub)(nil)

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		logger: log.WithComponent("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) SceneRendered(view engine.SceneView) {
	h.broadcast(Event{Type: EventScene, TitleID: view.TitleID, SceneID: view.SceneID, Payload: view})
}

func (h *Hub) CatalogChanged(result catalog.Result) {
	h.broadcast(Event{Type: EventCatalog, Payload: result})
}

func (h *Hub) FatalContentError(titleID, sceneID string) {
	h.broadcast(Event{Type: EventContentMissing, TitleID: titleID, SceneID: sceneID})
}

func (h *Hub) FetchFailed(titleID string, err error) {
	h.broadcast(Event{Type: EventFetchFailed, TitleID: titleID, Error: err.Error()})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str(log.FieldEvent, "ws.encode_failed").Msg("cannot encode event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.logger.Warn().Str(log.FieldEvent, "ws.client_dropped").Msg("websocket client too slow, dropping")
			h.removeLocked(c)
		}
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	welcome, _ := json.Marshal(Event{Type: EventWelcome})
	c.send <- welcome

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	logger := log.WithContext(r.Context(), h.logger)
	logger.Debug().Str(log.FieldEvent, "ws.connected").Msg("websocket client connected")

	go h.writePump(c)
	h.readPump(c)

	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
	logger.Debug().Str(log.FieldEvent, "ws.disconnected").Msg("websocket client disconnected")
}

// readPump discards inbound messages and returns once the peer is gone.
func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer h.wg.Done()
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Close disconnects every client and waits for their writers to finish or
// for ctx to expire.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
