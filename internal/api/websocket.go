package api

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mescon/beepwatch/internal/domain"
	"github.com/mescon/beepwatch/internal/eventbus"
	"github.com/mescon/beepwatch/internal/logger"
	"github.com/mescon/beepwatch/internal/stopwatch"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second

	// DefaultStatePeriod is how often connected clients receive a state snapshot.
	DefaultStatePeriod = 250 * time.Millisecond

	hubQueueSize = 256
)

// Message types pushed to WebSocket clients.
const (
	MessageEvent = "event"
	MessageState = "state"
	MessageLog   = "log"
)

// wsMessage is the envelope for every message sent to clients.
type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type snapshotter interface {
	Snapshot() stopwatch.Snapshot
}

// WebSocketHub fans stopwatch events, state snapshots and log lines out to
// connected clients. Publishing never blocks: when the hub falls behind,
// messages are dropped.
type WebSocketHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan interface{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.Mutex
	upgrader   websocket.Upgrader

	eventBus *eventbus.EventBus
	subs     map[domain.EventType]eventbus.SubscriptionID
	logCh    chan logger.LogEntry
	source   snapshotter

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewWebSocketHub starts a hub fed by eventBus. When source is non-nil a
// state snapshot is pushed every statePeriod while clients are connected.
func NewWebSocketHub(eventBus *eventbus.EventBus, source snapshotter, statePeriod time.Duration, origins originPolicy) *WebSocketHub {
	h := &WebSocketHub{
		broadcast:  make(chan interface{}, hubQueueSize),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		clients:    make(map[*websocket.Conn]bool),
		upgrader:   websocket.Upgrader{CheckOrigin: origins.allowUpgrade},
		eventBus:   eventBus,
		subs:       make(map[domain.EventType]eventbus.SubscriptionID),
		source:     source,
		done:       make(chan struct{}),
	}

	for _, t := range domain.AllEventTypes {
		h.subs[t] = eventBus.Subscribe(t, func(e domain.Event) error {
			h.send(wsMessage{Type: MessageEvent, Data: e})
			return nil
		})
	}

	h.logCh = logger.Subscribe()
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for entry := range h.logCh {
			h.send(wsMessage{Type: MessageLog, Data: entry})
		}
	}()

	if source != nil && statePeriod > 0 {
		h.wg.Add(1)
		go h.pushState(statePeriod)
	}

	h.wg.Add(1)
	go h.run()
	return h
}

func (h *WebSocketHub) send(msg interface{}) {
	select {
	case h.broadcast <- msg:
	default:
		// Not logged: log lines are themselves forwarded through send
	}
}

func (h *WebSocketHub) pushState(period time.Duration) {
	defer h.wg.Done()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			if h.ClientCount() > 0 {
				h.send(wsMessage{Type: MessageState, Data: h.source.Snapshot()})
			}
		}
	}
}

func (h *WebSocketHub) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			logger.Debugf("WebSocket client connected (Total: %d)", len(h.clients))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if err := writeJSON(client, message); err != nil {
					logger.Debugf("WebSocket write failed, dropping client: %v", err)
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *WebSocketHub) removeLocked(client *websocket.Conn) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	if err := client.Close(); err != nil {
		logger.Debugf("WebSocket close error: %v", err)
	}
	logger.Debugf("WebSocket client disconnected (Total: %d)", len(h.clients))
}

func writeJSON(ws *websocket.Conn, v interface{}) error {
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return ws.WriteJSON(v)
}

// HandleConnection upgrades the request and serves the client until it disconnects.
func (h *WebSocketHub) HandleConnection(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	select {
	case h.register <- ws:
	case <-h.done:
		_ = ws.Close()
		return
	}

	defer func() {
		select {
		case h.unregister <- ws:
		case <-h.done:
		}
	}()

	// Initial state so clients can render before the first push
	if h.source != nil {
		h.mu.Lock()
		if err := writeJSON(ws, wsMessage{Type: MessageState, Data: h.source.Snapshot()}); err != nil {
			logger.Debugf("Failed to send initial state: %v", err)
		}
		h.mu.Unlock()
	}

	if err := ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Debugf("Failed to set initial read deadline: %v", err)
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	connDone := make(chan struct{})
	defer close(connDone)
	go h.keepAlive(ws, connDone)

	// Reads drive the pong handler; the loop ends when the client goes away
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHub) keepAlive(ws *websocket.Conn, connDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-connDone:
			return
		case <-h.done:
			return
		case <-ticker.C:
			h.mu.Lock()
			if !h.clients[ws] {
				h.mu.Unlock()
				return
			}
			// Written under mu so pings never interleave with broadcasts
			err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			h.mu.Unlock()
			if err != nil {
				logger.Debugf("WebSocket ping error: %v", err)
				return
			}
		}
	}
}

// ClientCount returns the number of connected WebSocket clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Stop unsubscribes from the bus and the logger, stops the hub goroutines
// and closes every client connection.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		for t, id := range h.subs {
			h.eventBus.Unsubscribe(t, id)
		}
		logger.Unsubscribe(h.logCh)
		close(h.done)
		h.wg.Wait()

		h.mu.Lock()
		for client := range h.clients {
			h.removeLocked(client)
		}
		h.mu.Unlock()
	})
}
