package monitor

import (
	"sync"

	"github.com/genricoloni/marquee/internal/domain"
)

// Mailbox is a single-slot channel: a new snapshot replaces one that has
// not been consumed yet.
type Mailbox struct {
	mu sync.Mutex
	ch chan domain.Snapshot
}

// NewMailbox creates an empty mailbox
func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan domain.Snapshot, 1)}
}

// Put stores s, dropping any unread snapshot. It never blocks.
func (m *Mailbox) Put(s domain.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.ch:
	default:
	}
	m.ch <- s
}

// C returns the receive side
func (m *Mailbox) C() <-chan domain.Snapshot {
	return m.ch
}
