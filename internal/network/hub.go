package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MRamiBalles/CalculusMatrix/internal/engine"
	"github.com/MRamiBalles/CalculusMatrix/internal/events"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/logger"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/metrics"
)

// Envelope is every server-to-client message.
type Envelope struct {
	Type  string            `json:"type"` // "EVENT", "VIEW", "REPLY"
	Event *events.GameEvent `json:"event,omitempty"`
	View  *engine.View      `json:"view,omitempty"`
	Reply *Reply            `json:"reply,omitempty"`
}

// Reply answers one command.
type Reply struct {
	ID    string      `json:"id,omitempty"`
	OK    bool        `json:"ok"`
	Error string      `json:"error,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// Options tunes buffers and limits. Zero values use defaults.
type Options struct {
	BroadcastBuffer      int
	ClientSendBuffer     int
	MaxMessagesPerSecond int
	MaxClients           int
}

// Hub maintains the set of active clients, broadcasts engine events to them
// and routes their commands to the session.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex

	session   *engine.Session
	validator *CommandValidator
	opts      Options
	logger    *logger.Logger
	metrics   *metrics.Collector
}

// NewHub initializes a new WebSocket Hub around a session.
func NewHub(session *engine.Session, opts Options, m *metrics.Collector, log *logger.Logger) (*Hub, error) {
	validator, err := NewCommandValidator()
	if err != nil {
		return nil, err
	}
	if opts.BroadcastBuffer <= 0 {
		opts.BroadcastBuffer = 256
	}
	if opts.ClientSendBuffer <= 0 {
		opts.ClientSendBuffer = 64
	}
	if opts.MaxMessagesPerSecond <= 0 {
		opts.MaxMessagesPerSecond = 100
	}
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		broadcast:  make(chan []byte, opts.BroadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		session:    session,
		validator:  validator,
		opts:       opts,
		logger:     log,
		metrics:    m,
	}, nil
}

// Run handles client connections and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer func() {
		close(h.done)
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		h.mu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("websocket hub shutting down")
			return nil
		case client := <-h.register:
			h.mu.Lock()
			if h.opts.MaxClients > 0 && len(h.clients) >= h.opts.MaxClients {
				close(client.send)
				h.mu.Unlock()
				h.logger.Warn("client rejected, hub full", zap.Int("max", h.opts.MaxClients))
				continue
			}
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Debug("websocket client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.metrics.RecordWSConnection(-1)
				h.logger.Debug("websocket client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					h.metrics.RecordWSMessage(false)
				default:
					close(client.send)
					delete(h.clients, client)
					h.metrics.RecordWSConnection(-1)
					h.metrics.RecordWSError()
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues an envelope for every client. It drops the message when
// the hub has stopped.
func (h *Hub) Broadcast(env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("failed to serialize broadcast", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	}
}

// BroadcastEvent sends one engine event to all connected clients.
func (h *Hub) BroadcastEvent(event events.GameEvent) {
	h.Broadcast(Envelope{Type: "EVENT", Event: &event})
}

// PollEvents pushes new EventLog entries to the clients, and a fresh view
// every interval, until ctx is cancelled. It runs independently from the
// ticker while picking up the same events.
func (h *Hub) PollEvents(ctx context.Context, eventLog *events.EventLog, interval time.Duration) error {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	poll := time.NewTicker(interval)
	defer poll.Stop()

	last := eventLog.Len()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-poll.C:
			var fresh []events.GameEvent
			fresh, last = eventLog.Since(last)
			for _, ev := range fresh {
				h.BroadcastEvent(ev)
			}
			if h.session != nil && h.ClientCount() > 0 {
				view := h.session.View()
				h.Broadcast(Envelope{Type: "VIEW", View: &view})
			}
		}
	}
}

// Handle validates one raw command and runs it against the session.
func (h *Hub) Handle(raw []byte) Reply {
	cmd, err := h.validator.Parse(raw)
	if err != nil {
		return Reply{Error: err.Error()}
	}
	return h.Execute(cmd)
}

// Execute runs a validated command.
func (h *Hub) Execute(cmd Command) Reply {
	reply := Reply{ID: cmd.ID}
	if h.session == nil {
		reply.Error = "no session"
		return reply
	}

	switch cmd.Type {
	case CommandPublish:
		reply.Data = h.session.Publish()
	case CommandPurchase:
		level, err := h.session.Purchase(cmd.UpgradeID)
		if err != nil {
			reply.Error = err.Error()
			return reply
		}
		reply.Data = map[string]interface{}{"upgrade_id": cmd.UpgradeID, "level": level}
	case CommandRestart:
		h.session.Restart()
	case CommandSetState:
		if err := h.session.SetInternalState(cmd.State); err != nil {
			reply.Error = err.Error()
			return reply
		}
	case CommandView:
		view := h.session.View()
		reply.Data = view
	default:
		reply.Error = "unsupported command " + cmd.Type
		return reply
	}
	reply.OK = true
	return reply
}
