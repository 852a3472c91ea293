// Package inbox stores inbound frames of a connection as opaque strings.
package inbox

import "sync"

type Inbox interface {
	Push(msg string)
}

// Buffered keeps every inbound message in arrival order until drained.
type Buffered struct {
	mu       sync.Mutex
	data     []string
	capacity int
	dropped  uint64
}

// NewBuffered creates a buffered inbox. A capacity of zero or less means
// unbounded; otherwise the oldest message is dropped once the inbox is full.
func NewBuffered(capacity int) *Buffered {
	return &Buffered{
		capacity: capacity,
	}
}

func (b *Buffered) Push(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.capacity > 0 && len(b.data) >= b.capacity {
		b.data = b.data[1:]
		b.dropped++
	}
	b.data = append(b.data, msg)
}

// Drain returns all messages received since the previous call and empties
// the inbox.
func (b *Buffered) Drain() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs := b.data
	b.data = nil
	return msgs
}

func (b *Buffered) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

func (b *Buffered) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Latest retains only the most recent inbound message.
type Latest struct {
	mu    sync.RWMutex
	msg   string
	has   bool
	count uint64
}

func NewLatest() *Latest {
	return &Latest{}
}

func (l *Latest) Push(msg string) {
	l.mu.Lock()
	l.msg = msg
	l.has = true
	l.count++
	l.mu.Unlock()
}

// Latest returns the most recent message, and false if none has arrived yet.
// Reading does not clear it.
func (l *Latest) Latest() (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.msg, l.has
}

// Received is the number of messages pushed so far, overwritten ones included.
func (l *Latest) Received() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}
