package services

import (
	"sync"
	"time"
)

// NotificationEvent is pushed to SSE clients when an in-app notification is written.
type NotificationEvent struct {
	ID        uint      `json:"id"`
	BrandID   uint      `json:"brand_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type sseClient struct {
	ch      chan NotificationEvent
	brandID uint // 0 receives every brand
}

// SSEHub fans notification events out to connected clients.
type SSEHub struct {
	clients map[string]*sseClient
	mu      sync.RWMutex
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]*sseClient),
	}
}

// Subscribe registers a client for brandID, or every brand when brandID is 0.
func (h *SSEHub) Subscribe(clientID string, brandID uint) <-chan NotificationEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan NotificationEvent, 100)
	h.clients[clientID] = &sseClient{ch: ch, brandID: brandID}
	return ch
}

func (h *SSEHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[clientID]; ok {
		close(c.ch)
		delete(h.clients, clientID)
	}
}

// Publish never blocks; a client with a full buffer misses the event.
func (h *SSEHub) Publish(event NotificationEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if c.brandID != 0 && c.brandID != event.BrandID {
			continue
		}
		select {
		case c.ch <- event:
		default:
		}
	}
}

func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var (
	globalSSEHub *SSEHub
	sseHubOnce   sync.Once
)

// GetSSEHub returns the process-wide hub.
func GetSSEHub() *SSEHub {
	sseHubOnce.Do(func() {
		globalSSEHub = NewSSEHub()
	})
	return globalSSEHub
}
