package debugserver

import "sync"

// Hub fans out published bytes to every registered subscriber channel, the
// same client-registry/broadcast shape as the teacher's wsClients map, but
// channel-based rather than holding *websocket.Conn directly so Publish
// can be called from the supervisor's heartbeat goroutine without
// depending on the websocket package.
type Hub struct {
	mu       sync.RWMutex
	clients  map[chan []byte]bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]bool)}
}

// Register returns a channel that receives every subsequently published
// message. The caller must call Unregister when done.
func (h *Hub) Register() chan []byte {
	ch := make(chan []byte, 16)
	h.mu.Lock()
	h.clients[ch] = true
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unregister(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

// Publish fans data out to every registered subscriber. A subscriber whose
// buffer is full misses this message (it stays registered) rather than
// blocking the publisher.
func (h *Hub) Publish(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- data:
		default:
		}
	}
}
