// Package sse streams run events to HTTP clients as Server-Sent Events.
//
// A Hub receives events.Event values and routes each one to the connected
// clients whose run filter matches the event's run ID:
//
//	hub := sse.NewHub(log)
//	go hub.Run()
//	router.GET("/events", sse.Handler(hub, 30*time.Second, log))
package sse

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/kbukum/caseflow/events"
	"github.com/kbukum/caseflow/logger"
)

const (
	clientBuffer    = 256
	broadcastBuffer = 256
)

var (
	// ErrStopped is returned by Publish after Stop.
	ErrStopped = errors.New("sse: hub stopped")
	// ErrBacklog is returned when the hub cannot keep up and drops an event.
	ErrBacklog = errors.New("sse: broadcast backlog full")
)

// Frame is one encoded event.
type Frame struct {
	Name  string
	RunID string
	Data  []byte
}

// Client is one connected subscriber.
type Client struct {
	id     string
	filter string
	frames chan Frame
	log    *logger.Logger
}

// NewClient creates a client. filter is a glob matched against run IDs;
// empty means every run.
func NewClient(id, filter string) *Client {
	if filter == "" {
		filter = "*"
	}
	return &Client{id: id, filter: filter, frames: make(chan Frame, clientBuffer), log: logger.NewNop()}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Filter() string { return c.filter }

// Frames delivers events until the client is unregistered.
func (c *Client) Frames() <-chan Frame { return c.frames }

func (c *Client) send(f Frame) bool {
	select {
	case c.frames <- f:
		return true
	default:
		c.log.Warn("client too slow, dropping event", logger.Fields("client_id", c.id, logger.FieldRunID, f.RunID))
		return false
	}
}

func (c *Client) matches(runID string) bool {
	ok, err := filepath.Match(c.filter, runID)
	return err == nil && ok
}

// Hub routes events to clients. Run owns the client set; the other methods
// talk to it over channels.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Frame
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	log        *logger.Logger
	dropped    atomic.Int64
}

var _ events.Sink = (*Hub)(nil)

// NewHub creates a hub. Call Run before publishing.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Frame, broadcastBuffer),
		done:       make(chan struct{}),
		log:        log.WithComponent("sse"),
	}
}

// Run is the hub loop. It returns after Stop, closing every client.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client registered", logger.Fields("client_id", c.id, "filter", c.filter, "clients", n))
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.frames)
			}
			h.mu.Unlock()
			h.log.Debug("client unregistered", logger.Fields("client_id", c.id))
		case f := <-h.broadcast:
			h.deliver(f)
		}
	}
}

// Stop ends Run. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.frames)
		delete(h.clients, id)
	}
}

// Register adds c. It reports false once the hub is stopped.
func (h *Hub) Register(c *Client) bool {
	c.log = h.log
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes c and closes its frame channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues e for delivery without waiting for clients.
func (h *Hub) Publish(_ context.Context, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	select {
	case <-h.done:
		return ErrStopped
	default:
	}
	select {
	case h.broadcast <- Frame{Name: string(e.Type), RunID: e.RunID, Data: data}:
		return nil
	default:
		h.dropped.Add(1)
		return ErrBacklog
	}
}

func (h *Hub) deliver(f Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for _, c := range h.clients {
		if c.matches(f.RunID) && c.send(f) {
			sent++
		}
	}
	h.log.Debug("event delivered", logger.Fields("event", f.Name, logger.FieldRunID, f.RunID, "clients", sent))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped counts events discarded because the broadcast queue was full.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }
