package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// LogBroadcaster manages WebSocket clients and broadcasts log messages.
// It is a tee.Sink, so it can be bound into a stream next to the console.
type LogBroadcaster struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex

	closeMu sync.RWMutex
	closed  bool
}

// NewLogBroadcaster creates a new LogBroadcaster.
func NewLogBroadcaster() *LogBroadcaster {
	return &LogBroadcaster{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 256), // Buffer to prevent blocking
	}
}

// Start begins the broadcasting loop. Run this in a goroutine. It returns
// once Close has been called and the queue is drained.
func (b *LogBroadcaster) Start() {
	for message := range b.broadcast {
		b.mutex.Lock()
		for client := range b.clients {
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				client.Close()
				delete(b.clients, client)
			}
		}
		b.mutex.Unlock()
	}

	b.mutex.Lock()
	for client := range b.clients {
		client.Close()
		delete(b.clients, client)
	}
	b.mutex.Unlock()
}

// HandleWebsocket handles incoming WebSocket requests.
func (b *LogBroadcaster) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// Held across the insert so Start's final sweep sees every client
	// registered before Close.
	b.closeMu.RLock()
	if b.closed {
		b.closeMu.RUnlock()
		conn.Close()
		return
	}
	b.mutex.Lock()
	b.clients[conn] = true
	b.mutex.Unlock()
	b.closeMu.RUnlock()

	// Keep connection open and handle close
	go func() {
		defer func() {
			b.mutex.Lock()
			delete(b.clients, conn)
			b.mutex.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// Clients returns the number of connected subscribers.
func (b *LogBroadcaster) Clients() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.clients)
}

// Write queues p for every connected client. It never blocks and never
// fails: when the queue is full, or after Close, the message is dropped.
func (b *LogBroadcaster) Write(p []byte) (n int, err error) {
	// Copy: the caller may reuse p before the loop consumes it.
	msg := make([]byte, len(p))
	copy(msg, p)

	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.closed {
		return len(p), nil
	}

	select {
	case b.broadcast <- msg:
	default:
	}
	return len(p), nil
}

// Flush is a no-op; messages are delivered by the Start loop.
func (b *LogBroadcaster) Flush() error {
	return nil
}

// Close stops accepting messages and lets Start return.
func (b *LogBroadcaster) Close() error {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.broadcast)
	}
	return nil
}
