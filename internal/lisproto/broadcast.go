package lisproto

import (
	"net"
	"sync"

	"github.com/labsim/atellica-sim/internal/logging"
)

// Broadcaster is the process-wide set of live LIS sockets. Result
// transmissions are pushed to every connected client; writes to a single
// socket are serialized through that socket's own mutex so a result push
// can never interleave with another write in progress on the same
// connection.
type Broadcaster struct {
	mu     sync.Mutex
	conns  map[net.Conn]*sync.Mutex
	logger logging.Logger
}

// NewBroadcaster builds an empty Broadcaster.
func NewBroadcaster(logger logging.Logger) *Broadcaster {
	if logger == nil {
		logger = logging.Discard{}
	}
	return &Broadcaster{conns: make(map[net.Conn]*sync.Mutex), logger: logger}
}

// Add registers conn as a broadcast target.
func (b *Broadcaster) Add(conn net.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[conn] = &sync.Mutex{}
}

// Remove deregisters conn. Safe to call more than once.
func (b *Broadcaster) Remove(conn net.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, conn)
}

// Broadcast writes payload to every currently registered connection,
// removing (but not closing) any connection whose write fails — the
// owning session's read loop will observe the error independently and
// close the socket itself.
func (b *Broadcaster) Broadcast(payload []byte) {
	b.mu.Lock()
	targets := make(map[net.Conn]*sync.Mutex, len(b.conns))
	for c, m := range b.conns {
		targets[c] = m
	}
	b.mu.Unlock()

	for conn, wmu := range targets {
		wmu.Lock()
		_, err := conn.Write(payload)
		wmu.Unlock()
		if err != nil {
			b.Remove(conn)
			b.logger.Warn("lis", "broadcast_write_error", "dropping unresponsive LIS connection", map[string]any{
				"addr": conn.RemoteAddr().String(), "error": err.Error(),
			})
		}
	}
}
