package chat

import (
	"sync"
	"sync/atomic"
)

// Client is one open connection as seen by the hub. Outbound frames go through
// Send, a bounded queue drained by a single writer goroutine, so every
// recipient observes frames in the order they were enqueued.
type Client struct {
	ID string

	mu      sync.RWMutex
	send    chan []byte
	closed  bool
	dropped atomic.Int64
}

func NewClient(id string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 256
	}
	return &Client{
		ID:   id,
		send: make(chan []byte, sendQueueSize),
	}
}

// Send returns the outbound queue. It is closed once the client is closed.
func (c *Client) Send() <-chan []byte { return c.send }

// Enqueue never blocks: a full queue drops the frame for this client only.
func (c *Client) Enqueue(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

func (c *Client) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// Close stops accepting frames and lets the writer drain what is queued. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Dropped counts frames discarded because the queue was full.
func (c *Client) Dropped() int64 { return c.dropped.Load() }
